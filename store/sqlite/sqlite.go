/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements ledger.Store and ledger.StockValuer using SQLite. In
  production the same patterns apply to PostgreSQL - see store/postgres,
  which shares this schema with only placeholder-dialect differences.

INTERFACES IMPLEMENTED:
  ledger.Store:       Entry persistence and reconciliation flag flips
  ledger.StockValuer: Stock valuation snapshots for the P&L report

APPEND-ONLY ENFORCEMENT:
  - Entries are only ever INSERTed; no DELETE exists
  - The only UPDATE statements touch is_reconciled/reconciled_with_id

RECONCILIATION GUARD:
  Reconcile() runs both flag flips inside one transaction with a
  `WHERE is_reconciled = 0` condition. A concurrent claim makes one of the
  two updates affect zero rows; the transaction rolls back and the caller
  gets ledger.ErrAlreadyReconciled to retry its match search.

KEY TABLES:
  cashbooks:        Named tenant-scoped containers, created lazily
  entries:          The append-only ledger lines
  stock_valuations: Valuation snapshots keyed (tenant, as_of)

WAL MODE:
  SQLite is opened with WAL for better concurrency: multiple readers
  don't block, single writer at a time, better crash recovery.

USAGE:
  store, err := sqlite.New("./data/cashbook.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - ledger/store.go: Interface definitions
  - store/postgres/postgres.go: Same schema on PostgreSQL
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/finbooks/cashbook-engine/ledger"
)

// Store implements ledger.Store and ledger.StockValuer using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps :memory: databases coherent and sidesteps
	// SQLITE_BUSY under concurrent writers.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Cashbooks (tenant-scoped named containers)
	CREATE TABLE IF NOT EXISTS cashbooks (
		name TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (name, tenant_id)
	);

	-- Entries (append-only ledger lines)
	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		cashbook_name TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		transaction_date TEXT NOT NULL,
		reference TEXT,
		description TEXT,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		entry_type TEXT NOT NULL,
		category TEXT NOT NULL,
		source_id TEXT,
		is_reconciled INTEGER NOT NULL DEFAULT 0,
		reconciled_with_id TEXT,
		reconciled_by TEXT,
		created_at TEXT NOT NULL,
		FOREIGN KEY (cashbook_name, tenant_id) REFERENCES cashbooks(name, tenant_id)
	);

	CREATE INDEX IF NOT EXISTS idx_entries_tenant_date
		ON entries(tenant_id, transaction_date);
	CREATE INDEX IF NOT EXISTS idx_entries_tenant_unreconciled
		ON entries(tenant_id, is_reconciled);
	CREATE INDEX IF NOT EXISTS idx_entries_cashbook
		ON entries(cashbook_name, tenant_id);

	-- Stock valuation snapshots (external collaborator data)
	CREATE TABLE IF NOT EXISTS stock_valuations (
		tenant_id TEXT NOT NULL,
		as_of TEXT NOT NULL,
		value TEXT NOT NULL,
		currency TEXT NOT NULL,
		PRIMARY KEY (tenant_id, as_of)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// WRITES
// =============================================================================

// AppendLines inserts a posting's entries in one transaction, creating the
// cashbook row lazily. All-or-nothing.
func (s *Store) AppendLines(ctx context.Context, cashbookName, tenantID string, entries []ledger.CashbookEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO cashbooks (name, tenant_id, created_at) VALUES (?, ?, ?)`,
		cashbookName, tenantID, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return err
	}

	for _, e := range entries {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO entries (id, cashbook_name, tenant_id, transaction_date,
				reference, description, amount, currency, entry_type, category,
				source_id, is_reconciled, reconciled_with_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, NULL, ?)`,
			e.ID, cashbookName, tenantID, e.TransactionDate.UTC().Format(time.RFC3339),
			e.Reference, e.Description, e.Amount.Amount.String(), e.Amount.Currency,
			string(e.Type), string(e.Category), e.SourceID,
			time.Now().UTC().Format(time.RFC3339))
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Reconcile flips both entries inside one transaction, conditionally on
// both still being unreconciled.
func (s *Store) Reconcile(ctx context.Context, debitID, creditID, performedBy string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, pair := range [][2]string{{debitID, creditID}, {creditID, debitID}} {
		res, err := tx.ExecContext(ctx, `
			UPDATE entries
			SET is_reconciled = 1, reconciled_with_id = ?, reconciled_by = ?
			WHERE id = ? AND is_reconciled = 0`,
			pair[1], performedBy, pair[0])
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			exists, err := entryExists(ctx, tx, pair[0])
			if err != nil {
				return err
			}
			if !exists {
				return ledger.ErrEntryNotFound
			}
			return ledger.ErrAlreadyReconciled
		}
	}
	return tx.Commit()
}

// Unreconcile resets only the named entry. The partner's flags stay as
// they are.
func (s *Store) Unreconcile(ctx context.Context, entryID, performedBy string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE entries
		SET is_reconciled = 0, reconciled_with_id = NULL, reconciled_by = ?
		WHERE id = ? AND is_reconciled = 1`,
		performedBy, entryID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var one int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM entries WHERE id = ?`, entryID).Scan(&one)
		if err == sql.ErrNoRows {
			return ledger.ErrEntryNotFound
		}
		if err != nil {
			return err
		}
		return ledger.ErrNotReconciled
	}
	return nil
}

func entryExists(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM entries WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// =============================================================================
// READS
// =============================================================================

const entryColumns = `id, cashbook_name, tenant_id, transaction_date, reference,
	description, amount, currency, entry_type, category, source_id,
	is_reconciled, reconciled_with_id`

func (s *Store) Unreconciled(ctx context.Context, tenantID string) ([]ledger.CashbookEntry, error) {
	return s.queryEntries(ctx, `
		SELECT `+entryColumns+` FROM entries
		WHERE tenant_id = ? AND is_reconciled = 0
		ORDER BY transaction_date, id`, tenantID)
}

func (s *Store) ByID(ctx context.Context, id string) (ledger.CashbookEntry, error) {
	entries, err := s.queryEntries(ctx, `
		SELECT `+entryColumns+` FROM entries WHERE id = ?`, id)
	if err != nil {
		return ledger.CashbookEntry{}, err
	}
	if len(entries) == 0 {
		return ledger.CashbookEntry{}, ledger.ErrEntryNotFound
	}
	return entries[0], nil
}

func (s *Store) ByDateRange(ctx context.Context, tenantID string, from, to time.Time) ([]ledger.CashbookEntry, error) {
	return s.queryEntries(ctx, `
		SELECT `+entryColumns+` FROM entries
		WHERE tenant_id = ? AND transaction_date >= ? AND transaction_date <= ?
		ORDER BY transaction_date, id`,
		tenantID, from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
}

func (s *Store) ByTenant(ctx context.Context, tenantID string) ([]ledger.CashbookEntry, error) {
	return s.queryEntries(ctx, `
		SELECT `+entryColumns+` FROM entries
		WHERE tenant_id = ?
		ORDER BY transaction_date, id`, tenantID)
}

func (s *Store) CashbookByName(ctx context.Context, name, tenantID string) (ledger.Cashbook, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM cashbooks WHERE name = ? AND tenant_id = ?`, name, tenantID).Scan(&one)
	if err == sql.ErrNoRows {
		return ledger.Cashbook{}, ledger.ErrCashbookNotFound
	}
	if err != nil {
		return ledger.Cashbook{}, err
	}

	entries, err := s.queryEntries(ctx, `
		SELECT `+entryColumns+` FROM entries
		WHERE cashbook_name = ? AND tenant_id = ?
		ORDER BY transaction_date, id`, name, tenantID)
	if err != nil {
		return ledger.Cashbook{}, err
	}
	return ledger.Cashbook{Name: name, TenantID: tenantID, Entries: entries}, nil
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]ledger.CashbookEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ledger.CashbookEntry
	for rows.Next() {
		var (
			e             ledger.CashbookEntry
			cashbookName  string
			dateStr       string
			amountStr     string
			currency      string
			typeStr       string
			categoryStr   string
			reconciled    int
			reconciledRef sql.NullString
		)
		err := rows.Scan(&e.ID, &cashbookName, &e.TenantID, &dateStr, &e.Reference,
			&e.Description, &amountStr, &currency, &typeStr, &categoryStr,
			&e.SourceID, &reconciled, &reconciledRef)
		if err != nil {
			return nil, err
		}

		e.TransactionDate, err = time.Parse(time.RFC3339, dateStr)
		if err != nil {
			return nil, fmt.Errorf("corrupt transaction_date for entry %s: %w", e.ID, err)
		}
		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("corrupt amount for entry %s: %w", e.ID, err)
		}
		e.Amount = ledger.NewMoney(amount, currency)
		e.Type = ledger.EntryType(typeStr)
		e.Category = ledger.Category(categoryStr)
		e.IsReconciled = reconciled == 1
		if reconciledRef.Valid {
			e.ReconciledWithID = reconciledRef.String
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// STOCK VALUATION
// =============================================================================

// RecordStockValue upserts a valuation snapshot for (tenant, asOf).
func (s *Store) RecordStockValue(ctx context.Context, tenantID string, asOf time.Time, value ledger.Money) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stock_valuations (tenant_id, as_of, value, currency)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (tenant_id, as_of) DO UPDATE SET value = excluded.value, currency = excluded.currency`,
		tenantID, asOf.UTC().Format("2006-01-02"), value.Amount.String(), value.Currency)
	return err
}

// TotalStockValue returns the latest snapshot at or before asOf.
// ledger.ErrValuationUnavailable when none exists: the P&L fails closed.
func (s *Store) TotalStockValue(ctx context.Context, asOf time.Time, tenantID string) (ledger.Money, error) {
	var valueStr, currency string
	err := s.db.QueryRowContext(ctx, `
		SELECT value, currency FROM stock_valuations
		WHERE tenant_id = ? AND as_of <= ?
		ORDER BY as_of DESC LIMIT 1`,
		tenantID, asOf.UTC().Format("2006-01-02")).Scan(&valueStr, &currency)
	if err == sql.ErrNoRows {
		return ledger.Money{}, ledger.ErrValuationUnavailable
	}
	if err != nil {
		return ledger.Money{}, err
	}

	value, err := decimal.NewFromString(valueStr)
	if err != nil {
		return ledger.Money{}, fmt.Errorf("corrupt stock valuation for %s: %w", tenantID, err)
	}
	return ledger.NewMoney(value, currency), nil
}
