/*
Package reporting classifies and aggregates cashbook entries into
financial statements.

PURPOSE:
  Read-only consumer of the ledger. Three statements:
    ProfitLoss:     revenue / COGS / operating expenses over a range
    CashPosition:   inflow, outflow, and running balance as of a date
    MonthOverMonth: per-calendar-month revenue/expense trend

CLASSIFICATION:
  Revenue            Credit x CategorySale
  CostOfGoodsSold    Debit  x CategoryPurchase
  OperatingExpenses  Debit  x expense categories (rent et al.)
  CashInflow         Debit  x CategorySale
  CashOutflow        Credit x cash-outflow categories

  The outflow side is the CREDIT side of outflow categories, even though
  expense postings carry a debit leg too. That reading matches the current
  accounting treatment and is locked by an asymmetric-amount test.

FAILURE SEMANTICS:
  Empty ranges aggregate to zero, not to an error. A failing stock
  valuation lookup fails the WHOLE P&L report: no partial statement
  without validated stock figures.

SEE ALSO:
  - reports.go: Result value types
  - ledger/store.go: StockValuer collaborator contract
*/
package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finbooks/cashbook-engine/ledger"
)

// =============================================================================
// ENGINE
// =============================================================================

// Engine aggregates entries read through Store; Valuer supplies the
// external stock figures the P&L needs.
type Engine struct {
	Store  ledger.Store
	Valuer ledger.StockValuer
	// Currency the reports aggregate in; entries in another currency would
	// surface as a mismatch error rather than a silent merge.
	Currency string
}

func NewEngine(store ledger.Store, valuer ledger.StockValuer) *Engine {
	return &Engine{Store: store, Valuer: valuer, Currency: ledger.DefaultCurrency}
}

// =============================================================================
// PROFIT & LOSS
// =============================================================================

// ProfitLoss builds the P&L statement for [from, to] inclusive. Fails
// closed with ErrValuationUnavailable (wrapped) when the stock valuation
// collaborator cannot answer.
func (e *Engine) ProfitLoss(ctx context.Context, tenantID string, from, to time.Time) (ProfitLossReport, error) {
	entries, err := e.Store.ByDateRange(ctx, tenantID, from, to)
	if err != nil {
		return ProfitLossReport{}, err
	}

	revenue := e.zero()
	cogs := e.zero()
	opex := e.zero()

	for _, entry := range entries {
		switch {
		case entry.Type == ledger.Credit && entry.Category == ledger.CategorySale:
			if revenue, err = revenue.Add(entry.Amount); err != nil {
				return ProfitLossReport{}, err
			}
		case entry.Type == ledger.Debit && entry.Category == ledger.CategoryPurchase:
			if cogs, err = cogs.Add(entry.Amount); err != nil {
				return ProfitLossReport{}, err
			}
		case entry.Type == ledger.Debit && entry.Category.IsExpense():
			if opex, err = opex.Add(entry.Amount); err != nil {
				return ProfitLossReport{}, err
			}
		}
	}

	gross, err := revenue.Sub(cogs)
	if err != nil {
		return ProfitLossReport{}, err
	}
	net, err := gross.Sub(opex)
	if err != nil {
		return ProfitLossReport{}, err
	}

	// Stock valuation is mandatory: no P&L without validated figures.
	closing, err := e.Valuer.TotalStockValue(ctx, to, tenantID)
	if err != nil {
		return ProfitLossReport{}, fmt.Errorf("stock valuation as of %s: %w", to.Format("2006-01-02"), err)
	}
	opening, err := e.Valuer.TotalStockValue(ctx, from.AddDate(0, 0, -1), tenantID)
	if err != nil {
		return ProfitLossReport{}, fmt.Errorf("stock valuation as of %s: %w", from.AddDate(0, 0, -1).Format("2006-01-02"), err)
	}
	change, err := closing.Sub(opening)
	if err != nil {
		return ProfitLossReport{}, err
	}

	return ProfitLossReport{
		TenantID:             tenantID,
		From:                 from,
		To:                   to,
		Revenue:              revenue,
		CostOfGoodsSold:      cogs,
		OperatingExpenses:    opex,
		GrossProfit:          gross,
		NetProfit:            net,
		StockValuationChange: change,
	}, nil
}

// =============================================================================
// CASH POSITION
// =============================================================================

// CashPosition builds the cash snapshot up to and including asOf.
func (e *Engine) CashPosition(ctx context.Context, tenantID string, asOf time.Time) (CashPositionReport, error) {
	entries, err := e.Store.ByTenant(ctx, tenantID)
	if err != nil {
		return CashPositionReport{}, err
	}

	inflow := e.zero()
	outflow := e.zero()
	balance := e.zero()

	for _, entry := range entries {
		if entry.TransactionDate.After(asOf) {
			continue
		}

		if balance, err = balance.Add(entry.SignedAmount()); err != nil {
			return CashPositionReport{}, err
		}

		switch {
		case entry.Type == ledger.Debit && entry.Category == ledger.CategorySale:
			if inflow, err = inflow.Add(entry.Amount); err != nil {
				return CashPositionReport{}, err
			}
		case entry.Type == ledger.Credit && entry.Category.IsCashOutflow():
			if outflow, err = outflow.Add(entry.Amount); err != nil {
				return CashPositionReport{}, err
			}
		}
	}

	net, err := inflow.Sub(outflow)
	if err != nil {
		return CashPositionReport{}, err
	}

	return CashPositionReport{
		TenantID:           tenantID,
		AsOf:               asOf,
		CashInflow:         inflow,
		CashOutflow:        outflow,
		NetCashFlow:        net,
		CurrentCashBalance: balance,
	}, nil
}

// =============================================================================
// MONTH OVER MONTH
// =============================================================================

// MonthOverMonth builds the per-calendar-month trend for [from, to].
// Months with no entries are omitted rather than zero-filled.
func (e *Engine) MonthOverMonth(ctx context.Context, tenantID string, from, to time.Time) (MonthOverMonthReport, error) {
	entries, err := e.Store.ByDateRange(ctx, tenantID, from, to)
	if err != nil {
		return MonthOverMonthReport{}, err
	}

	type monthKey struct {
		Year  int
		Month time.Month
	}
	buckets := make(map[monthKey]*MonthlyFigures)
	var order []monthKey

	for _, entry := range entries {
		k := monthKey{Year: entry.TransactionDate.Year(), Month: entry.TransactionDate.Month()}
		figures, ok := buckets[k]
		if !ok {
			figures = &MonthlyFigures{Year: k.Year, Month: k.Month, Revenue: e.zero(), Expenses: e.zero()}
			buckets[k] = figures
			order = append(order, k)
		}

		switch {
		case entry.Type == ledger.Credit && entry.Category == ledger.CategorySale:
			if figures.Revenue, err = figures.Revenue.Add(entry.Amount); err != nil {
				return MonthOverMonthReport{}, err
			}
		case entry.Type == ledger.Debit && entry.Category.IsExpense():
			if figures.Expenses, err = figures.Expenses.Add(entry.Amount); err != nil {
				return MonthOverMonthReport{}, err
			}
		}
	}

	// Entries arrive date-ascending, so first-seen order is chronological.
	report := MonthOverMonthReport{TenantID: tenantID, From: from, To: to}
	for _, k := range order {
		figures := buckets[k]
		if figures.Profit, err = figures.Revenue.Sub(figures.Expenses); err != nil {
			return MonthOverMonthReport{}, err
		}
		report.Months = append(report.Months, *figures)
	}

	report.RevenueGrowthRate = growthRate(report.Months)
	return report, nil
}

// growthRate is (last - first) / first * 100, zero when fewer than two
// months or the first month has no revenue. It is positive exactly when
// revenue grew from the first to the most recent month.
func growthRate(months []MonthlyFigures) decimal.Decimal {
	if len(months) < 2 {
		return decimal.Zero
	}
	first := months[0].Revenue.Amount
	last := months[len(months)-1].Revenue.Amount
	if first.IsZero() {
		return decimal.Zero
	}
	return last.Sub(first).Div(first).Mul(decimal.NewFromInt(100))
}

func (e *Engine) zero() ledger.Money {
	return ledger.NewMoney(decimal.Zero, e.Currency)
}
