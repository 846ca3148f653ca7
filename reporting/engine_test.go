package reporting_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finbooks/cashbook-engine/ledger"
	"github.com/finbooks/cashbook-engine/ledger/store"
	"github.com/finbooks/cashbook-engine/reporting"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const tenant = "tenant-a"

func newTestEngine(t *testing.T) (*reporting.Engine, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	return reporting.NewEngine(mem, mem), mem
}

func day(month, dayOfMonth int) time.Time {
	return time.Date(2025, time.Month(month), dayOfMonth, 0, 0, 0, 0, time.UTC)
}

var entrySeq int

func entry(typ ledger.EntryType, cat ledger.Category, amount string, date time.Time) ledger.CashbookEntry {
	entrySeq++
	return ledger.CashbookEntry{
		ID:              fmt.Sprintf("e-%03d", entrySeq),
		TransactionDate: date,
		Amount:          ledger.MustParseMoney(amount, "USD"),
		Type:            typ,
		Category:        cat,
		TenantID:        tenant,
	}
}

func seed(t *testing.T, mem *store.Memory, entries ...ledger.CashbookEntry) {
	t.Helper()
	require.NoError(t, mem.AppendLines(context.Background(), ledger.MainCashbookName, tenant, entries))
}

func seedValuation(t *testing.T, mem *store.Memory, asOf time.Time, value string) {
	t.Helper()
	require.NoError(t, mem.RecordStockValue(context.Background(), tenant, asOf, ledger.MustParseMoney(value, "USD")))
}

// =============================================================================
// PROFIT & LOSS
// =============================================================================

func TestProfitLoss_ClassifiesAndAggregates(t *testing.T) {
	// GIVEN: Sale credits 1000+500, a Purchase debit 300, a Rent debit 200
	// WHEN: Generating the P&L over the range
	// THEN: Revenue 1500, COGS 300, OpEx 200, Gross 1200, Net 1000

	engine, mem := newTestEngine(t)
	ctx := context.Background()

	seed(t, mem,
		entry(ledger.Credit, ledger.CategorySale, "1000.00", day(3, 5)),
		entry(ledger.Credit, ledger.CategorySale, "500.00", day(3, 12)),
		entry(ledger.Debit, ledger.CategoryPurchase, "300.00", day(3, 8)),
		entry(ledger.Debit, ledger.CategoryRent, "200.00", day(3, 1)),

		// Noise that must NOT be counted: debit side of Sale, credit side of
		// Purchase, tax lines, credit side of Rent.
		entry(ledger.Debit, ledger.CategorySale, "1000.00", day(3, 5)),
		entry(ledger.Credit, ledger.CategoryPurchase, "330.00", day(3, 8)),
		entry(ledger.Credit, ledger.CategorySalesTax, "150.00", day(3, 5)),
		entry(ledger.Debit, ledger.CategoryPurchaseTax, "30.00", day(3, 8)),
		entry(ledger.Credit, ledger.CategoryRent, "200.00", day(3, 1)),
	)
	seedValuation(t, mem, day(2, 28), "5000.00")
	seedValuation(t, mem, day(3, 31), "5400.00")

	report, err := engine.ProfitLoss(ctx, tenant, day(3, 1), day(3, 31))
	require.NoError(t, err)

	assert.Equal(t, "1500.00", report.Revenue.Amount.StringFixed(2))
	assert.Equal(t, "300.00", report.CostOfGoodsSold.Amount.StringFixed(2))
	assert.Equal(t, "200.00", report.OperatingExpenses.Amount.StringFixed(2))
	assert.Equal(t, "1200.00", report.GrossProfit.Amount.StringFixed(2))
	assert.Equal(t, "1000.00", report.NetProfit.Amount.StringFixed(2))

	// Informational only: 5400 - 5000, not folded into NetProfit.
	assert.Equal(t, "400.00", report.StockValuationChange.Amount.StringFixed(2))
}

func TestProfitLoss_EmptyRange_ZeroAggregates(t *testing.T) {
	engine, mem := newTestEngine(t)

	seedValuation(t, mem, day(1, 1), "0.00")

	report, err := engine.ProfitLoss(context.Background(), tenant, day(6, 1), day(6, 30))
	require.NoError(t, err)

	assert.True(t, report.Revenue.IsZero())
	assert.True(t, report.CostOfGoodsSold.IsZero())
	assert.True(t, report.OperatingExpenses.IsZero())
	assert.True(t, report.NetProfit.IsZero())
}

func TestProfitLoss_ValuationUnavailable_FailsClosed(t *testing.T) {
	// GIVEN: Ledger lines but no stock valuation snapshot
	// WHEN: Generating the P&L
	// THEN: The whole report fails; no partial statement

	engine, mem := newTestEngine(t)
	seed(t, mem, entry(ledger.Credit, ledger.CategorySale, "100.00", day(3, 5)))

	_, err := engine.ProfitLoss(context.Background(), tenant, day(3, 1), day(3, 31))
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrValuationUnavailable)
}

// =============================================================================
// CASH POSITION
// =============================================================================

func TestCashPosition_AsymmetricAmounts_LockOutflowSide(t *testing.T) {
	// GIVEN: A Rent posting with DIFFERENT debit and credit amounts so the
	//        two outflow readings disagree
	// WHEN: Generating the cash position
	// THEN: The CREDIT side (175) is the outflow, not the debit side (125)

	engine, mem := newTestEngine(t)

	seed(t, mem,
		entry(ledger.Debit, ledger.CategorySale, "400.00", day(3, 2)),
		entry(ledger.Debit, ledger.CategoryRent, "125.00", day(3, 3)),
		entry(ledger.Credit, ledger.CategoryRent, "175.00", day(3, 3)),
	)

	report, err := engine.CashPosition(context.Background(), tenant, day(3, 31))
	require.NoError(t, err)

	assert.Equal(t, "400.00", report.CashInflow.Amount.StringFixed(2))
	assert.Equal(t, "175.00", report.CashOutflow.Amount.StringFixed(2))
	assert.Equal(t, "225.00", report.NetCashFlow.Amount.StringFixed(2))

	// Running balance spans ALL lines regardless of category:
	// 400 + 125 - 175.
	assert.Equal(t, "350.00", report.CurrentCashBalance.Amount.StringFixed(2))
}

func TestCashPosition_RespectsAsOfCutoff(t *testing.T) {
	engine, mem := newTestEngine(t)

	seed(t, mem,
		entry(ledger.Debit, ledger.CategorySale, "100.00", day(3, 10)),
		entry(ledger.Debit, ledger.CategorySale, "900.00", day(4, 1)), // after cutoff
	)

	report, err := engine.CashPosition(context.Background(), tenant, day(3, 31))
	require.NoError(t, err)

	assert.Equal(t, "100.00", report.CashInflow.Amount.StringFixed(2))
	assert.Equal(t, "100.00", report.CurrentCashBalance.Amount.StringFixed(2))
}

func TestCashPosition_NoLines_AllZero(t *testing.T) {
	engine, _ := newTestEngine(t)

	report, err := engine.CashPosition(context.Background(), tenant, day(12, 31))
	require.NoError(t, err)
	assert.True(t, report.CashInflow.IsZero())
	assert.True(t, report.CashOutflow.IsZero())
	assert.True(t, report.CurrentCashBalance.IsZero())
}

// =============================================================================
// MONTH OVER MONTH
// =============================================================================

func TestMonthOverMonth_GroupsByCalendarMonth(t *testing.T) {
	engine, mem := newTestEngine(t)

	seed(t, mem,
		entry(ledger.Credit, ledger.CategorySale, "1000.00", day(1, 15)),
		entry(ledger.Debit, ledger.CategoryRent, "200.00", day(1, 1)),
		entry(ledger.Credit, ledger.CategorySale, "1500.00", day(2, 10)),
		entry(ledger.Debit, ledger.CategoryRent, "200.00", day(2, 1)),
		entry(ledger.Credit, ledger.CategorySale, "2000.00", day(3, 20)),
	)

	report, err := engine.MonthOverMonth(context.Background(), tenant, day(1, 1), day(3, 31))
	require.NoError(t, err)
	require.Len(t, report.Months, 3)

	jan := report.Months[0]
	assert.Equal(t, time.January, jan.Month)
	assert.Equal(t, "1000.00", jan.Revenue.Amount.StringFixed(2))
	assert.Equal(t, "200.00", jan.Expenses.Amount.StringFixed(2))
	assert.Equal(t, "800.00", jan.Profit.Amount.StringFixed(2))

	mar := report.Months[2]
	assert.Equal(t, time.March, mar.Month)
	assert.Equal(t, "2000.00", mar.Revenue.Amount.StringFixed(2))
	assert.Equal(t, "2000.00", mar.Profit.Amount.StringFixed(2))

	// (2000 - 1000) / 1000 * 100 = 100%: positive because revenue grew.
	assert.Equal(t, "100.00", report.RevenueGrowthRate.StringFixed(2))
}

func TestMonthOverMonth_DecliningRevenue_NegativeGrowth(t *testing.T) {
	engine, mem := newTestEngine(t)

	seed(t, mem,
		entry(ledger.Credit, ledger.CategorySale, "2000.00", day(1, 5)),
		entry(ledger.Credit, ledger.CategorySale, "500.00", day(2, 5)),
	)

	report, err := engine.MonthOverMonth(context.Background(), tenant, day(1, 1), day(2, 28))
	require.NoError(t, err)
	assert.Equal(t, "-75.00", report.RevenueGrowthRate.StringFixed(2))
}

func TestMonthOverMonth_SingleMonth_ZeroGrowth(t *testing.T) {
	engine, mem := newTestEngine(t)

	seed(t, mem, entry(ledger.Credit, ledger.CategorySale, "100.00", day(1, 5)))

	report, err := engine.MonthOverMonth(context.Background(), tenant, day(1, 1), day(1, 31))
	require.NoError(t, err)
	require.Len(t, report.Months, 1)
	assert.True(t, report.RevenueGrowthRate.IsZero())
}

func TestMonthOverMonth_EmptyRange(t *testing.T) {
	engine, _ := newTestEngine(t)

	report, err := engine.MonthOverMonth(context.Background(), tenant, day(5, 1), day(5, 31))
	require.NoError(t, err)
	assert.Empty(t, report.Months)
	assert.True(t, report.RevenueGrowthRate.IsZero())
}
