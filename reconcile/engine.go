/*
Package reconcile pairs debit and credit entries that settle each other.

PURPOSE:
  Bank-style reconciliation without external references: two entries are
  treated as the same real-world settlement when their rounded amounts
  differ by at most 0.01 and their transaction dates by at most 2 days.

MATCHING ALGORITHM (AutoReconcile):
  1. Fetch unreconciled entries in [from, to], split into debits/credits
  2. Walk debits in ascending transaction-date order
  3. Candidates: credits within amount AND date tolerance
  4. Pick the candidate with the smallest date distance; on a tie, the
     lowest entry id wins, so repeated runs over the same data always
     produce the same pairs
  5. Flip both via the store's conditional pair flip; a concurrent claim
     surfaces as ErrAlreadyReconciled and the candidate is dropped and the
     search retried
  6. Matched credits leave the pool; unmatched debits stay unreconciled

STATE MODEL:
  Unreconciled -> Reconciled  (always in pairs, auto or manual)
  Reconciled -> Unreconciled  (always singly, via Unreconcile)

  NOTE: Unreconcile resets ONLY the named entry. The partner keeps
  IsReconciled=true with a now-dangling ReconciledWithID. That asymmetry
  matches the upstream system and is flagged as a data-integrity gap with
  the finance stakeholders; do not cascade here without their sign-off.

SEE ALSO:
  - ledger/store.go: The conditional Reconcile contract
*/
package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/finbooks/cashbook-engine/ledger"
)

// DateToleranceDays is the maximum whole-day distance for an automatic match.
const DateToleranceDays = 2

// =============================================================================
// RESULT
// =============================================================================

// AutoReconcileResult reports one AutoReconcile run. Not persisted.
type AutoReconcileResult struct {
	PairsReconciled       int
	RemainingUnreconciled int
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine matches unreconciled entries through a ledger.Store.
type Engine struct {
	Store ledger.Store
}

func NewEngine(store ledger.Store) *Engine {
	return &Engine{Store: store}
}

// AutoReconcile scans the tenant's unreconciled entries dated in
// [from, to] inclusive and pairs debits with their closest in-tolerance
// credit. Safe to run concurrently: lost claims are retried against the
// remaining pool.
func (e *Engine) AutoReconcile(ctx context.Context, tenantID string, from, to time.Time, performedBy string) (AutoReconcileResult, error) {
	unreconciled, err := e.Store.Unreconciled(ctx, tenantID)
	if err != nil {
		return AutoReconcileResult{}, err
	}

	var debits, credits []ledger.CashbookEntry
	inRange := 0
	for _, entry := range unreconciled {
		if entry.TransactionDate.Before(from) || entry.TransactionDate.After(to) {
			continue
		}
		inRange++
		switch entry.Type {
		case ledger.Debit:
			debits = append(debits, entry)
		case ledger.Credit:
			credits = append(credits, entry)
		}
	}
	// Store.Unreconciled returns entries date-ascending already; the debit
	// walk depends on that order.

	result := AutoReconcileResult{RemainingUnreconciled: inRange}
	claimed := make(map[string]bool)

	for _, debit := range debits {
		for {
			credit, found := bestCandidate(debit, credits, claimed)
			if !found {
				break
			}

			err := e.Store.Reconcile(ctx, debit.ID, credit.ID, performedBy)
			if errors.Is(err, ledger.ErrAlreadyReconciled) {
				// Lost the claim race; drop this candidate and re-search.
				claimed[credit.ID] = true
				continue
			}
			if err != nil {
				return result, err
			}

			claimed[credit.ID] = true
			result.PairsReconciled++
			result.RemainingUnreconciled -= 2
			break
		}
	}
	return result, nil
}

// bestCandidate returns the in-tolerance credit closest in date to the
// debit. Ties on date distance resolve to the lowest entry id.
func bestCandidate(debit ledger.CashbookEntry, credits []ledger.CashbookEntry, claimed map[string]bool) (ledger.CashbookEntry, bool) {
	var best ledger.CashbookEntry
	bestDist := -1

	for _, credit := range credits {
		if claimed[credit.ID] {
			continue
		}
		if !ledger.WithinAmountTolerance(debit.Amount.Amount, credit.Amount.Amount) {
			continue
		}
		dist := ledger.DaysBetween(debit.TransactionDate, credit.TransactionDate)
		if dist > DateToleranceDays {
			continue
		}
		if bestDist == -1 || dist < bestDist || (dist == bestDist && credit.ID < best.ID) {
			best = credit
			bestDist = dist
		}
	}
	return best, bestDist != -1
}

// ReconcilePair manually pairs two entries. Rejections (same type, amount
// out of tolerance) leave both entries untouched.
func (e *Engine) ReconcilePair(ctx context.Context, debitID, creditID, performedBy string) error {
	a, err := e.Store.ByID(ctx, debitID)
	if err != nil {
		return err
	}
	b, err := e.Store.ByID(ctx, creditID)
	if err != nil {
		return err
	}

	if a.Type == b.Type {
		return ledger.ErrSameEntryType
	}
	if !ledger.WithinAmountTolerance(a.Amount.Amount, b.Amount.Amount) {
		diff := ledger.RoundMoney(a.Amount.Amount).Sub(ledger.RoundMoney(b.Amount.Amount)).Abs()
		return &ledger.ToleranceError{DebitID: debitID, CreditID: creditID, Difference: diff}
	}

	return e.Store.Reconcile(ctx, debitID, creditID, performedBy)
}

// Unreconcile resets the single named entry only; the partner recorded in
// ReconciledWithID is deliberately left reconciled.
func (e *Engine) Unreconcile(ctx context.Context, entryID, performedBy string) error {
	return e.Store.Unreconcile(ctx, entryID, performedBy)
}
