/*
store.go - Persistence interface for cashbook entries

PURPOSE:
  Defines the interface between engine logic and the database. The Store
  owns all entry state; the engines are stateless and never cache entries
  across calls. Different implementations use SQLite, PostgreSQL, or
  in-memory storage.

APPEND-ONLY CONTRACT:
  - AppendLines(): the ONLY way entries come into existence, atomic per call
  - NO delete, NO amount mutation
  - Reconcile()/Unreconcile() flip reconciliation flags, nothing else

RECONCILIATION ATOMICITY:
  Reconcile() is a conditional pair flip: it succeeds only if BOTH entries
  are still unreconciled at flip time, checked inside the store's own
  transaction. Two concurrent reconcilers cannot both claim the same entry;
  the loser gets ErrAlreadyReconciled and retries its match search.

IMPLEMENTATIONS:
  - ledger/store/memory.go: In-memory for testing/dev
  - store/sqlite/sqlite.go: SQLite with WAL
  - store/postgres/postgres.go: PostgreSQL via lib/pq

SEE ALSO:
  - entry.go: The record model
  - errors.go: Sentinel errors returned here
*/
package ledger

import (
	"context"
	"time"
)

// =============================================================================
// STORE - Entry persistence
// =============================================================================

// Store handles persistence of cashbook entries.
// IMPORTANT: entries are append-only; only reconciliation flags ever change.
type Store interface {
	// AppendLines persists a posting's entries atomically, creating the named
	// cashbook for the tenant if it does not exist. Either every entry is
	// visible or none are.
	AppendLines(ctx context.Context, cashbookName, tenantID string, entries []CashbookEntry) error

	// Unreconciled returns every unreconciled entry for the tenant.
	Unreconciled(ctx context.Context, tenantID string) ([]CashbookEntry, error)

	// ByID returns a single entry. ErrEntryNotFound when absent.
	ByID(ctx context.Context, id string) (CashbookEntry, error)

	// ByDateRange returns the tenant's entries with transaction date in
	// [from, to] inclusive, ordered by transaction date.
	ByDateRange(ctx context.Context, tenantID string, from, to time.Time) ([]CashbookEntry, error)

	// ByTenant returns every entry for the tenant, ordered by transaction date.
	ByTenant(ctx context.Context, tenantID string) ([]CashbookEntry, error)

	// CashbookByName returns the cashbook and its entries.
	// ErrCashbookNotFound when absent.
	CashbookByName(ctx context.Context, name, tenantID string) (Cashbook, error)

	// Reconcile marks both entries reconciled and cross-links them, atomically
	// and conditionally: fails with ErrAlreadyReconciled if either entry is no
	// longer unreconciled, with ErrEntryNotFound if either id is unknown.
	Reconcile(ctx context.Context, debitID, creditID, performedBy string) error

	// Unreconcile resets IsReconciled on the single named entry only. The
	// partner referenced by ReconciledWithID is left untouched.
	Unreconcile(ctx context.Context, entryID, performedBy string) error
}

// =============================================================================
// STOCK VALUATION - External collaborator, consumed only by reporting
// =============================================================================

// StockValuer supplies the inventory valuation snapshot the P&L report
// needs. ErrValuationUnavailable when no figure exists for the date; the
// report fails closed rather than presenting an unvalidated zero.
type StockValuer interface {
	TotalStockValue(ctx context.Context, asOf time.Time, tenantID string) (Money, error)
}
