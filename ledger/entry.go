/*
entry.go - Cashbook entries and the Cashbook container

PURPOSE:
  CashbookEntry is the append-only ledger line every engine works with.
  Entries are created only by the posting engine (or directly in tests);
  after creation the only fields that ever change are the reconciliation
  flags, and only the Store mutates those.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: Entries are never deleted and amounts never mutated
  2. PAIRED RECONCILIATION: IsReconciled flips to true only in pairs
  3. TENANT SCOPED: Every entry carries its TenantID; engines never
     mix tenants in a single operation

SEE ALSO:
  - money.go: Money and the canonical rounding rule
  - store.go: The persistence interface that owns entry state
*/
package ledger

import "time"

// =============================================================================
// ENTRY TYPE - Debit or Credit
// =============================================================================

type EntryType string

const (
	Debit  EntryType = "debit"
	Credit EntryType = "credit"
)

// Opposite returns the other side of the book.
func (t EntryType) Opposite() EntryType {
	if t == Debit {
		return Credit
	}
	return Debit
}

// =============================================================================
// CATEGORY - Classification driving reporting aggregation
// =============================================================================

type Category string

const (
	CategorySale        Category = "sale"
	CategorySalesTax    Category = "sales_tax"
	CategoryPurchase    Category = "purchase"
	CategoryPurchaseTax Category = "purchase_tax"
	CategoryAdjustment  Category = "adjustment"
	CategoryCashReceipt Category = "cash_receipt"
	CategoryCashPayment Category = "cash_payment"
	CategoryRent        Category = "rent"
)

// IsExpense reports whether the category counts as an operating expense for
// P&L purposes. Purchase is excluded (it is COGS), tax categories are
// excluded (pass-through), and Sale is revenue.
func (c Category) IsExpense() bool {
	switch c {
	case CategoryRent:
		return true
	default:
		return false
	}
}

// IsCashOutflow reports whether the category is counted as a cash outflow by
// the cash-position report.
func (c Category) IsCashOutflow() bool {
	return c.IsExpense()
}

// IsTax reports whether the category is a pass-through tax bucket.
func (c Category) IsTax() bool {
	return c == CategorySalesTax || c == CategoryPurchaseTax
}

// =============================================================================
// CASHBOOK ENTRY - One ledger line
// =============================================================================

// CashbookEntry is a single debit or credit line. Immutable after creation
// except for the reconciliation flags, which only the Store mutates.
type CashbookEntry struct {
	ID              string
	TransactionDate time.Time
	Reference       string
	Description     string
	Amount          Money
	Type            EntryType
	Category        Category
	SourceID        string // id of the originating business event
	TenantID        string

	IsReconciled     bool
	ReconciledWithID string // partner entry id, set when reconciled
}

// SignedAmount returns the amount signed by entry side: debits positive,
// credits negative. Used for running-balance computation.
func (e CashbookEntry) SignedAmount() Money {
	if e.Type == Credit {
		return e.Amount.Neg()
	}
	return e.Amount
}

// =============================================================================
// CASHBOOK - Tenant-scoped named container
// =============================================================================

// MainCashbookName is the conventional cashbook created lazily by posting.
const MainCashbookName = "Main Cashbook"

// Cashbook is a named, tenant-scoped, append-only collection of entries.
// Total debits and credits over its lifetime only ever grow.
type Cashbook struct {
	Name     string
	TenantID string
	Entries  []CashbookEntry
}

// DaysBetween returns the absolute whole-day distance between two transaction
// dates, ignoring time-of-day. Shared by reconciliation tolerance checks.
func DaysBetween(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	d := int(db.Sub(da).Hours() / 24)
	if d < 0 {
		d = -d
	}
	return d
}
