/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the cashbook engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present), parse command-line flags
  2. Open the store (SQLite by default, PostgreSQL via -driver)
  3. Wire the posting/reconciliation/reporting engines
  4. Optionally attach the Kafka publisher
  5. Start the HTTP server with graceful shutdown

COMMAND-LINE FLAGS (env fallback in parentheses):
  -port     HTTP server port (PORT, default 8080)
  -driver   "sqlite" or "postgres" (DB_DRIVER, default sqlite)
  -db       SQLite path or Postgres DSN (DATABASE_URL, default cashbook.db)
            Use ":memory:" for an in-memory SQLite database
  -brokers  Comma-separated Kafka brokers (KAFKA_BROKERS, empty = no
            event publishing)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close publisher and database
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - store/sqlite, store/postgres: Database implementations
*/
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/finbooks/cashbook-engine/api"
	"github.com/finbooks/cashbook-engine/events/kafka"
	"github.com/finbooks/cashbook-engine/ledger"
	"github.com/finbooks/cashbook-engine/store/postgres"
	"github.com/finbooks/cashbook-engine/store/sqlite"
)

func main() {
	// .env is optional; flags override environment.
	_ = godotenv.Load()

	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	driver := flag.String("driver", envStr("DB_DRIVER", "sqlite"), "database driver: sqlite or postgres")
	dbPath := flag.String("db", envStr("DATABASE_URL", "cashbook.db"), "SQLite path or Postgres DSN")
	brokers := flag.String("brokers", envStr("KAFKA_BROKERS", ""), "comma-separated Kafka brokers, empty disables publishing")
	flag.Parse()

	// Store: both implementations also act as the stock valuation source.
	var (
		entryStore ledger.Store
		valuer     ledger.StockValuer
		closeStore func() error
	)
	switch *driver {
	case "sqlite":
		store, err := sqlite.New(*dbPath)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		entryStore, valuer, closeStore = store, store, store.Close
	case "postgres":
		db, err := sql.Open("postgres", *dbPath)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		store, err := postgres.New(db)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		entryStore, valuer, closeStore = store, store, store.Close
	default:
		log.Fatalf("Unknown driver %q (want sqlite or postgres)", *driver)
	}
	defer closeStore()

	handler := api.NewHandler(entryStore, valuer)

	if *brokers != "" {
		publisher := kafka.NewPublisher(strings.Split(*brokers, ","))
		defer publisher.Close()
		handler.Posting.Publisher = publisher
		log.Printf("Publishing posting events to %s", *brokers)
	}

	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Cashbook engine listening on http://localhost:%d", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return fallback
	}
	return n
}
