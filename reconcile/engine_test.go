package reconcile_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finbooks/cashbook-engine/ledger"
	"github.com/finbooks/cashbook-engine/ledger/store"
	"github.com/finbooks/cashbook-engine/reconcile"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const tenant = "tenant-a"

func newTestEngine(t *testing.T) (*reconcile.Engine, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	return reconcile.NewEngine(mem), mem
}

func day(dayOfMonth int) time.Time {
	return time.Date(2025, time.March, dayOfMonth, 0, 0, 0, 0, time.UTC)
}

func entry(id string, typ ledger.EntryType, amount string, date time.Time) ledger.CashbookEntry {
	return ledger.CashbookEntry{
		ID:              id,
		TransactionDate: date,
		Amount:          ledger.MustParseMoney(amount, "USD"),
		Type:            typ,
		Category:        ledger.CategorySale,
		TenantID:        tenant,
	}
}

func seed(t *testing.T, mem *store.Memory, entries ...ledger.CashbookEntry) {
	t.Helper()
	require.NoError(t, mem.AppendLines(context.Background(), ledger.MainCashbookName, tenant, entries))
}

func get(t *testing.T, mem *store.Memory, id string) ledger.CashbookEntry {
	t.Helper()
	e, err := mem.ByID(context.Background(), id)
	require.NoError(t, err)
	return e
}

// =============================================================================
// AUTO RECONCILE
// =============================================================================

func TestAutoReconcile_ExactMatchWithinWindow(t *testing.T) {
	// GIVEN: Debit 100.00 on day 2 and credit 100.00 on day 3
	// WHEN: Auto-reconciling a 31-day window
	// THEN: One pair reconciled, nothing left unreconciled

	engine, mem := newTestEngine(t)
	ctx := context.Background()

	seed(t, mem,
		entry("d-1", ledger.Debit, "100.00", day(2)),
		entry("c-1", ledger.Credit, "100.00", day(3)),
	)

	result, err := engine.AutoReconcile(ctx, tenant, day(1), day(31), "auditor")
	require.NoError(t, err)

	assert.Equal(t, 1, result.PairsReconciled)
	assert.Equal(t, 0, result.RemainingUnreconciled)

	d := get(t, mem, "d-1")
	c := get(t, mem, "c-1")
	assert.True(t, d.IsReconciled)
	assert.True(t, c.IsReconciled)
	assert.Equal(t, "c-1", d.ReconciledWithID)
	assert.Equal(t, "d-1", c.ReconciledWithID)
}

func TestAutoReconcile_AmountBeyondTolerance_NoMatch(t *testing.T) {
	// GIVEN: Debit 100.00 and credit 100.05 (0.05 apart, tolerance 0.01)
	// WHEN: Auto-reconciling
	// THEN: Zero pairs, both remain unreconciled

	engine, mem := newTestEngine(t)

	seed(t, mem,
		entry("d-1", ledger.Debit, "100.00", day(2)),
		entry("c-1", ledger.Credit, "100.05", day(2)),
	)

	result, err := engine.AutoReconcile(context.Background(), tenant, day(1), day(31), "auditor")
	require.NoError(t, err)

	assert.Equal(t, 0, result.PairsReconciled)
	assert.Equal(t, 2, result.RemainingUnreconciled)
	assert.False(t, get(t, mem, "d-1").IsReconciled)
	assert.False(t, get(t, mem, "c-1").IsReconciled)
}

func TestAutoReconcile_OneCentDifference_Matches(t *testing.T) {
	engine, mem := newTestEngine(t)

	seed(t, mem,
		entry("d-1", ledger.Debit, "100.00", day(5)),
		entry("c-1", ledger.Credit, "100.01", day(5)),
	)

	result, err := engine.AutoReconcile(context.Background(), tenant, day(1), day(31), "auditor")
	require.NoError(t, err)
	assert.Equal(t, 1, result.PairsReconciled)
}

func TestAutoReconcile_PrefersNearestDate(t *testing.T) {
	// GIVEN: Debit on day 10, credit-far on day 13 (diff 3, out of tolerance)
	//        and credit-near on day 11 (diff 1)
	// WHEN: Auto-reconciling
	// THEN: Only the near credit is matched; the far one is untouched

	engine, mem := newTestEngine(t)

	seed(t, mem,
		entry("d-1", ledger.Debit, "100.00", day(10)),
		entry("c-far", ledger.Credit, "100.00", day(13)),
		entry("c-near", ledger.Credit, "100.00", day(11)),
	)

	result, err := engine.AutoReconcile(context.Background(), tenant, day(1), day(31), "auditor")
	require.NoError(t, err)

	assert.Equal(t, 1, result.PairsReconciled)
	assert.Equal(t, 1, result.RemainingUnreconciled)

	d := get(t, mem, "d-1")
	assert.Equal(t, "c-near", d.ReconciledWithID)
	assert.False(t, get(t, mem, "c-far").IsReconciled)
}

func TestAutoReconcile_DateBeyondTolerance_NoMatch(t *testing.T) {
	engine, mem := newTestEngine(t)

	// 3 days apart, tolerance is 2.
	seed(t, mem,
		entry("d-1", ledger.Debit, "100.00", day(10)),
		entry("c-1", ledger.Credit, "100.00", day(13)),
	)

	result, err := engine.AutoReconcile(context.Background(), tenant, day(1), day(31), "auditor")
	require.NoError(t, err)
	assert.Equal(t, 0, result.PairsReconciled)
	assert.Equal(t, 2, result.RemainingUnreconciled)
}

func TestAutoReconcile_TieBreak_LowestID(t *testing.T) {
	// GIVEN: Two equal-amount credits one day before and one day after the
	//        debit - identical date distance
	// WHEN: Auto-reconciling
	// THEN: The lowest entry id wins (deterministic tie-break)

	engine, mem := newTestEngine(t)

	seed(t, mem,
		entry("d-1", ledger.Debit, "100.00", day(10)),
		entry("c-after", ledger.Credit, "100.00", day(11)),
		entry("c-before", ledger.Credit, "100.00", day(9)),
	)

	_, err := engine.AutoReconcile(context.Background(), tenant, day(1), day(31), "auditor")
	require.NoError(t, err)

	// "c-after" < "c-before" lexicographically.
	assert.Equal(t, "c-after", get(t, mem, "d-1").ReconciledWithID)
	assert.False(t, get(t, mem, "c-before").IsReconciled)
}

func TestAutoReconcile_WindowIsInclusive(t *testing.T) {
	engine, mem := newTestEngine(t)

	// Entries sitting exactly on the window edges take part.
	seed(t, mem,
		entry("d-1", ledger.Debit, "50.00", day(1)),
		entry("c-1", ledger.Credit, "50.00", day(2)),
		entry("d-out", ledger.Debit, "70.00", day(20)),
	)

	result, err := engine.AutoReconcile(context.Background(), tenant, day(1), day(2), "auditor")
	require.NoError(t, err)

	assert.Equal(t, 1, result.PairsReconciled)
	assert.Equal(t, 0, result.RemainingUnreconciled, "out-of-window entries are not counted")
	assert.False(t, get(t, mem, "d-out").IsReconciled)
}

func TestAutoReconcile_CreditUsedOnlyOnce(t *testing.T) {
	// GIVEN: Two debits competing for a single matching credit
	// WHEN: Auto-reconciling
	// THEN: Only one pair forms; the earlier debit wins

	engine, mem := newTestEngine(t)

	seed(t, mem,
		entry("d-early", ledger.Debit, "100.00", day(9)),
		entry("d-late", ledger.Debit, "100.00", day(11)),
		entry("c-1", ledger.Credit, "100.00", day(10)),
	)

	result, err := engine.AutoReconcile(context.Background(), tenant, day(1), day(31), "auditor")
	require.NoError(t, err)

	assert.Equal(t, 1, result.PairsReconciled)
	assert.Equal(t, 1, result.RemainingUnreconciled)
	assert.Equal(t, "c-1", get(t, mem, "d-early").ReconciledWithID)
	assert.False(t, get(t, mem, "d-late").IsReconciled)
}

func TestAutoReconcile_EmptyWindow(t *testing.T) {
	engine, _ := newTestEngine(t)

	result, err := engine.AutoReconcile(context.Background(), tenant, day(1), day(31), "auditor")
	require.NoError(t, err)
	assert.Equal(t, reconcile.AutoReconcileResult{}, result)
}

// =============================================================================
// CONCURRENT CLAIMS
// =============================================================================

// claimOnceStore makes the first Reconcile call lose its claim, simulating a
// concurrent reconciler grabbing the credit first.
type claimOnceStore struct {
	*store.Memory
	stolen bool
}

func (s *claimOnceStore) Reconcile(ctx context.Context, debitID, creditID, performedBy string) error {
	if !s.stolen {
		s.stolen = true
		return ledger.ErrAlreadyReconciled
	}
	return s.Memory.Reconcile(ctx, debitID, creditID, performedBy)
}

func TestAutoReconcile_LostClaim_RetriesNextCandidate(t *testing.T) {
	// GIVEN: Two in-tolerance credits; the claim on the best one is lost to
	//        a concurrent run
	// WHEN: Auto-reconciling
	// THEN: The engine falls back to the remaining candidate instead of
	//       double-claiming or giving up

	mem := store.NewMemory()
	engine := reconcile.NewEngine(&claimOnceStore{Memory: mem})
	ctx := context.Background()

	require.NoError(t, mem.AppendLines(ctx, ledger.MainCashbookName, tenant, []ledger.CashbookEntry{
		entry("d-1", ledger.Debit, "100.00", day(10)),
		entry("c-best", ledger.Credit, "100.00", day(10)),
		entry("c-next", ledger.Credit, "100.00", day(11)),
	}))

	result, err := engine.AutoReconcile(ctx, tenant, day(1), day(31), "auditor")
	require.NoError(t, err)

	assert.Equal(t, 1, result.PairsReconciled)
	assert.Equal(t, "c-next", get(t, mem, "d-1").ReconciledWithID)
	assert.False(t, get(t, mem, "c-best").IsReconciled, "the stolen candidate is left alone")
}

// =============================================================================
// MANUAL PAIRING
// =============================================================================

func TestReconcilePair_HappyPath(t *testing.T) {
	engine, mem := newTestEngine(t)
	ctx := context.Background()

	seed(t, mem,
		entry("d-1", ledger.Debit, "42.00", day(1)),
		entry("c-1", ledger.Credit, "42.00", day(25)),
	)

	// Manual pairing has no date tolerance: far-apart dates are fine.
	require.NoError(t, engine.ReconcilePair(ctx, "d-1", "c-1", "auditor"))
	assert.True(t, get(t, mem, "d-1").IsReconciled)
	assert.True(t, get(t, mem, "c-1").IsReconciled)
}

func TestReconcilePair_SameType_Rejected(t *testing.T) {
	engine, mem := newTestEngine(t)
	ctx := context.Background()

	seed(t, mem,
		entry("d-1", ledger.Debit, "42.00", day(1)),
		entry("d-2", ledger.Debit, "42.00", day(1)),
		entry("c-1", ledger.Credit, "42.00", day(1)),
		entry("c-2", ledger.Credit, "42.00", day(1)),
	)

	// Rejected in both directions, no side effects.
	assert.ErrorIs(t, engine.ReconcilePair(ctx, "d-1", "d-2", "auditor"), ledger.ErrSameEntryType)
	assert.ErrorIs(t, engine.ReconcilePair(ctx, "c-1", "c-2", "auditor"), ledger.ErrSameEntryType)

	for _, id := range []string{"d-1", "d-2", "c-1", "c-2"} {
		assert.False(t, get(t, mem, id).IsReconciled, "rejection must not mutate %s", id)
	}
}

func TestReconcilePair_OutOfTolerance_Rejected(t *testing.T) {
	engine, mem := newTestEngine(t)
	ctx := context.Background()

	seed(t, mem,
		entry("d-1", ledger.Debit, "100.00", day(1)),
		entry("c-1", ledger.Credit, "100.02", day(1)),
	)

	err := engine.ReconcilePair(ctx, "d-1", "c-1", "auditor")
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrAmountOutOfTolerance)

	var tolErr *ledger.ToleranceError
	require.ErrorAs(t, err, &tolErr)
	assert.Equal(t, "0.02", tolErr.Difference.StringFixed(2))

	// Rejected in the other direction too, still no side effects.
	assert.ErrorIs(t, engine.ReconcilePair(ctx, "c-1", "d-1", "auditor"), ledger.ErrAmountOutOfTolerance)
	assert.False(t, get(t, mem, "d-1").IsReconciled)
	assert.False(t, get(t, mem, "c-1").IsReconciled)
}

func TestReconcilePair_UnknownEntry(t *testing.T) {
	engine, mem := newTestEngine(t)
	seed(t, mem, entry("d-1", ledger.Debit, "10.00", day(1)))

	err := engine.ReconcilePair(context.Background(), "d-1", "ghost", "auditor")
	assert.ErrorIs(t, err, ledger.ErrEntryNotFound)
}

func TestReconcilePair_AlreadyReconciled_Conflict(t *testing.T) {
	engine, mem := newTestEngine(t)
	ctx := context.Background()

	seed(t, mem,
		entry("d-1", ledger.Debit, "10.00", day(1)),
		entry("c-1", ledger.Credit, "10.00", day(1)),
		entry("c-2", ledger.Credit, "10.00", day(1)),
	)
	require.NoError(t, engine.ReconcilePair(ctx, "d-1", "c-1", "auditor"))

	err := engine.ReconcilePair(ctx, "d-1", "c-2", "auditor")
	assert.ErrorIs(t, err, ledger.ErrAlreadyReconciled)
	assert.False(t, get(t, mem, "c-2").IsReconciled)
}

// =============================================================================
// UNRECONCILE
// =============================================================================

func TestUnreconcile_ResetsOnlyNamedEntry(t *testing.T) {
	// GIVEN: A reconciled pair
	// WHEN: Unreconciling one side
	// THEN: Only that side resets; the partner stays reconciled with its
	//       (now dangling) cross-link

	engine, mem := newTestEngine(t)
	ctx := context.Background()

	seed(t, mem,
		entry("d-1", ledger.Debit, "10.00", day(1)),
		entry("c-1", ledger.Credit, "10.00", day(1)),
	)
	require.NoError(t, engine.ReconcilePair(ctx, "d-1", "c-1", "auditor"))

	require.NoError(t, engine.Unreconcile(ctx, "d-1", "auditor"))

	d := get(t, mem, "d-1")
	c := get(t, mem, "c-1")
	assert.False(t, d.IsReconciled)
	assert.Empty(t, d.ReconciledWithID)
	assert.True(t, c.IsReconciled, "partner must NOT be cascaded")
	assert.Equal(t, "d-1", c.ReconciledWithID)
}

func TestUnreconcile_NotReconciled_Rejected(t *testing.T) {
	engine, mem := newTestEngine(t)
	seed(t, mem, entry("d-1", ledger.Debit, "10.00", day(1)))

	err := engine.Unreconcile(context.Background(), "d-1", "auditor")
	assert.ErrorIs(t, err, ledger.ErrNotReconciled)
}
