/*
Package postgres provides a PostgreSQL-backed implementation of the
storage interfaces.

Same schema and semantics as store/sqlite; differences are the
placeholder dialect ($n), TIMESTAMPTZ/NUMERIC column types, and relying
on database-level concurrency control instead of a single connection.
The reconciliation guard is identical: conditional UPDATEs inside one
transaction, ledger.ErrAlreadyReconciled on a lost claim.

USAGE:
  db, err := sql.Open("postgres", os.Getenv("DATABASE_URL"))
  ...
  store, err := postgres.New(db)
*/
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/finbooks/cashbook-engine/ledger"
)

// Store implements ledger.Store and ledger.StockValuer on PostgreSQL.
type Store struct {
	db *sql.DB
}

// New wraps an open database handle and ensures the schema exists.
func New(db *sql.DB) (*Store, error) {
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cashbooks (
		name TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (name, tenant_id)
	);

	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		cashbook_name TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		transaction_date TIMESTAMPTZ NOT NULL,
		reference TEXT,
		description TEXT,
		amount NUMERIC(20, 6) NOT NULL,
		currency TEXT NOT NULL,
		entry_type TEXT NOT NULL,
		category TEXT NOT NULL,
		source_id TEXT,
		is_reconciled BOOLEAN NOT NULL DEFAULT FALSE,
		reconciled_with_id TEXT,
		reconciled_by TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		FOREIGN KEY (cashbook_name, tenant_id) REFERENCES cashbooks(name, tenant_id)
	);

	CREATE INDEX IF NOT EXISTS idx_entries_tenant_date
		ON entries(tenant_id, transaction_date);
	CREATE INDEX IF NOT EXISTS idx_entries_tenant_unreconciled
		ON entries(tenant_id, is_reconciled);

	CREATE TABLE IF NOT EXISTS stock_valuations (
		tenant_id TEXT NOT NULL,
		as_of DATE NOT NULL,
		value NUMERIC(20, 6) NOT NULL,
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

func (s *Store) AppendLines(ctx context.Context, cashbookName, tenantID string, entries []ledger.CashbookEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO cashbooks (name, tenant_id, created_at)
		VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		cashbookName, tenantID, time.Now().UTC())
	if err != nil {
		return err
	}

	for _, e := range entries {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO entries (id, cashbook_name, tenant_id, transaction_date,
				reference, description, amount, currency, entry_type, category,
				source_id, is_reconciled, reconciled_with_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, FALSE, NULL, $12)`,
			e.ID, cashbookName, tenantID, e.TransactionDate.UTC(),
			e.Reference, e.Description, e.Amount.Amount.String(), e.Amount.Currency,
			string(e.Type), string(e.Category), e.SourceID, time.Now().UTC())
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) Reconcile(ctx context.Context, debitID, creditID, performedBy string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, pair := range [][2]string{{debitID, creditID}, {creditID, debitID}} {
		res, err := tx.ExecContext(ctx, `
			UPDATE entries
			SET is_reconciled = TRUE, reconciled_with_id = $1, reconciled_by = $2
			WHERE id = $3 AND is_reconciled = FALSE`,
			pair[1], performedBy, pair[0])
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			var one int
			err := tx.QueryRowContext(ctx, `SELECT 1 FROM entries WHERE id = $1`, pair[0]).Scan(&one)
			if err == sql.ErrNoRows {
				return ledger.ErrEntryNotFound
			}
			if err != nil {
				return err
			}
			return ledger.ErrAlreadyReconciled
		}
	}
	return tx.Commit()
}

func (s *Store) Unreconcile(ctx context.Context, entryID, performedBy string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE entries
		SET is_reconciled = FALSE, reconciled_with_id = NULL, reconciled_by = $1
		WHERE id = $2 AND is_reconciled = TRUE`,
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
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM entries WHERE id = $1`, entryID).Scan(&one)
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

// =============================================================================
// READS
// =============================================================================

const entryColumns = `id, tenant_id, transaction_date, reference, description,
	amount, currency, entry_type, category, source_id, is_reconciled,
	reconciled_with_id`

func (s *Store) Unreconciled(ctx context.Context, tenantID string) ([]ledger.CashbookEntry, error) {
	return s.queryEntries(ctx, `
		SELECT `+entryColumns+` FROM entries
		WHERE tenant_id = $1 AND is_reconciled = FALSE
		ORDER BY transaction_date, id`, tenantID)
}

func (s *Store) ByID(ctx context.Context, id string) (ledger.CashbookEntry, error) {
	entries, err := s.queryEntries(ctx, `
		SELECT `+entryColumns+` FROM entries WHERE id = $1`, id)
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
		WHERE tenant_id = $1 AND transaction_date >= $2 AND transaction_date <= $3
		ORDER BY transaction_date, id`, tenantID, from.UTC(), to.UTC())
}

func (s *Store) ByTenant(ctx context.Context, tenantID string) ([]ledger.CashbookEntry, error) {
	return s.queryEntries(ctx, `
		SELECT `+entryColumns+` FROM entries
		WHERE tenant_id = $1
		ORDER BY transaction_date, id`, tenantID)
}

func (s *Store) CashbookByName(ctx context.Context, name, tenantID string) (ledger.Cashbook, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM cashbooks WHERE name = $1 AND tenant_id = $2`, name, tenantID).Scan(&one)
	if err == sql.ErrNoRows {
		return ledger.Cashbook{}, ledger.ErrCashbookNotFound
	}
	if err != nil {
		return ledger.Cashbook{}, err
	}

	entries, err := s.queryEntries(ctx, `
		SELECT `+entryColumns+` FROM entries
		WHERE cashbook_name = $1 AND tenant_id = $2
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
			amountStr     string
			currency      string
			typeStr       string
			categoryStr   string
			reconciledRef sql.NullString
		)
		err := rows.Scan(&e.ID, &e.TenantID, &e.TransactionDate, &e.Reference,
			&e.Description, &amountStr, &currency, &typeStr, &categoryStr,
			&e.SourceID, &e.IsReconciled, &reconciledRef)
		if err != nil {
			return nil, err
		}

		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("corrupt amount for entry %s: %w", e.ID, err)
		}
		e.Amount = ledger.NewMoney(amount, currency)
		e.Type = ledger.EntryType(typeStr)
		e.Category = ledger.Category(categoryStr)
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

func (s *Store) RecordStockValue(ctx context.Context, tenantID string, asOf time.Time, value ledger.Money) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stock_valuations (tenant_id, as_of, value, currency)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, as_of) DO UPDATE SET value = EXCLUDED.value, currency = EXCLUDED.currency`,
		tenantID, asOf.UTC().Format("2006-01-02"), value.Amount.String(), value.Currency)
	return err
}

func (s *Store) TotalStockValue(ctx context.Context, asOf time.Time, tenantID string) (ledger.Money, error) {
	var valueStr, currency string
	err := s.db.QueryRowContext(ctx, `
		SELECT value, currency FROM stock_valuations
		WHERE tenant_id = $1 AND as_of <= $2
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
