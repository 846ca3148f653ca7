/*
errors.go - Centralized error types for the cashbook core

PURPOSE:
  All error types in one place for consistency and discoverability.
  Engine packages wrap these with additional context where useful.

ERROR CATEGORIES:
  1. Validation errors - bad event input, rejected before any write
  2. Reconciliation errors - tolerance/type/claim violations
  3. Lookup errors - unknown entry or cashbook ids
  4. Collaborator errors - stock valuation unavailable

USAGE:
  Callers branch with errors.Is():

    if errors.Is(err, ledger.ErrAlreadyReconciled) {
        // concurrent claim, retry the match search
    }

SEE ALSO:
  - store.go: Store methods returning these errors
  - reconcile: engine that maps them to user-actionable rejections
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the root of all bad-input rejections. Nothing is
	// written when a validation error surfaces.
	ErrValidation = errors.New("validation failed")

	// ErrCurrencyMismatch is returned when arithmetic or posting mixes
	// currencies. Posting fails all-or-nothing before any line is written.
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// ErrEntryNotFound is returned for an unknown entry id. Distinct from
	// validation errors so callers can 404 instead of 400.
	ErrEntryNotFound = errors.New("cashbook entry not found")

	// ErrCashbookNotFound is returned for an unknown (name, tenant) pair.
	ErrCashbookNotFound = errors.New("cashbook not found")

	// ErrAlreadyReconciled is returned when a conditional pair flip loses a
	// race: one of the two entries is no longer unreconciled. Callers retry
	// the match search rather than double-claiming.
	ErrAlreadyReconciled = errors.New("entry already reconciled")

	// ErrNotReconciled is returned by Unreconcile on an entry that is not
	// currently reconciled.
	ErrNotReconciled = errors.New("entry is not reconciled")

	// ErrSameEntryType is returned when a manual pairing names two debits or
	// two credits. A pair is always one of each.
	ErrSameEntryType = errors.New("entries have the same type")

	// ErrAmountOutOfTolerance is returned when a pairing's rounded amounts
	// differ by more than the tolerance.
	ErrAmountOutOfTolerance = errors.New("amounts differ beyond tolerance")

	// ErrValuationUnavailable is returned when the stock-valuation
	// collaborator has no answer. The P&L report fails closed on it.
	ErrValuationUnavailable = errors.New("stock valuation unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// CurrencyMismatchError reports the two currencies that were mixed.
type CurrencyMismatchError struct {
	Left  string
	Right string
}

func (e *CurrencyMismatchError) Error() string {
	return fmt.Sprintf("currency mismatch: %s vs %s", e.Left, e.Right)
}

func (e *CurrencyMismatchError) Unwrap() error { return ErrCurrencyMismatch }

// ToleranceError reports an out-of-tolerance manual pairing.
type ToleranceError struct {
	DebitID    string
	CreditID   string
	Difference decimal.Decimal
}

func (e *ToleranceError) Error() string {
	return fmt.Sprintf("entries %s and %s differ by %s after rounding, tolerance is %s",
		e.DebitID, e.CreditID, e.Difference.StringFixed(2), AmountTolerance.StringFixed(2))
}

func (e *ToleranceError) Unwrap() error { return ErrAmountOutOfTolerance }
