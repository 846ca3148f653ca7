/*
reports.go - Report value types

PURPOSE:
  The aggregate figures the reporting engine produces. Pure values; the
  engine never mutates entries and reports are never persisted.

SEE ALSO:
  - engine.go: Classification and aggregation logic
*/
package reporting

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/finbooks/cashbook-engine/ledger"
)

// ProfitLossReport covers [From, To] inclusive.
//
// StockValuationChange is informational: it is NOT folded into NetProfit.
type ProfitLossReport struct {
	TenantID string
	From     time.Time
	To       time.Time

	Revenue           ledger.Money // Credit side of Sale
	CostOfGoodsSold   ledger.Money // Debit side of Purchase
	OperatingExpenses ledger.Money // Debit side of expense categories
	GrossProfit       ledger.Money // Revenue - COGS
	NetProfit         ledger.Money // GrossProfit - OperatingExpenses

	StockValuationChange ledger.Money // value(To) - value(From - 1 day)
}

// CashPositionReport is a running-balance snapshot as of a date.
type CashPositionReport struct {
	TenantID string
	AsOf     time.Time

	CashInflow         ledger.Money // Debit side of Sale
	CashOutflow        ledger.Money // Credit side of cash-outflow categories
	NetCashFlow        ledger.Money // CashInflow - CashOutflow
	CurrentCashBalance ledger.Money // sum(debits) - sum(credits), all categories
}

// MonthlyFigures is one calendar month's slice of a trend report.
type MonthlyFigures struct {
	Year     int
	Month    time.Month
	Revenue  ledger.Money
	Expenses ledger.Money
	Profit   ledger.Money
}

// MonthOverMonthReport is the month-by-month trend over [From, To].
//
// RevenueGrowthRate is (last - first) / first * 100 across the reported
// months, zero when the first month has no revenue. Positive exactly when
// revenue grew between the first and the most recent month.
type MonthOverMonthReport struct {
	TenantID string
	From     time.Time
	To       time.Time

	Months            []MonthlyFigures
	RevenueGrowthRate decimal.Decimal // percent
}
