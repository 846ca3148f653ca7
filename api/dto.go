/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *Request: Request body types from clients
  - *DTO: Response types returned to clients

MONEY ON THE WIRE:
  Amounts travel as decimal strings ("1234.56"), never as floats. Dates
  travel as YYYY-MM-DD.

VALIDATION:
  Validation is done in handlers and engines, not in DTOs. DTOs are pure
  data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/finbooks/cashbook-engine/ledger"
	"github.com/finbooks/cashbook-engine/reporting"
)

// =============================================================================
// EVENT REQUESTS
// =============================================================================

// SaleEventRequest posts a completed sale.
type SaleEventRequest struct {
	SaleID      string `json:"sale_id"`
	TotalAmount string `json:"total_amount"`
	TaxAmount   string `json:"tax_amount"`
	Currency    string `json:"currency,omitempty"`
	TenantID    string `json:"tenant_id"`
	OccurredAt  string `json:"occurred_at,omitempty"` // YYYY-MM-DD
}

// PurchaseEventRequest posts a goods receipt.
type PurchaseEventRequest struct {
	PurchaseOrderID string `json:"purchase_order_id"`
	TotalAmount     string `json:"total_amount"`
	TaxAmount       string `json:"tax_amount"`
	Currency        string `json:"currency,omitempty"`
	TenantID        string `json:"tenant_id"`
	OccurredAt      string `json:"occurred_at,omitempty"`
}

// InventoryEventRequest posts a stock adjustment.
type InventoryEventRequest struct {
	ItemID         string `json:"item_id"`
	Quantity       string `json:"quantity"`
	UnitCost       string `json:"unit_cost"`
	AdjustmentType string `json:"adjustment_type"`
	Currency       string `json:"currency,omitempty"`
	TenantID       string `json:"tenant_id"`
	OccurredAt     string `json:"occurred_at,omitempty"`
}

// CashEventRequest posts a cash receipt or payment.
type CashEventRequest struct {
	Amount      string `json:"amount"`
	Reference   string `json:"reference"`
	Description string `json:"description"`
	AccountID   string `json:"account_id"`
	Currency    string `json:"currency,omitempty"`
	TenantID    string `json:"tenant_id"`
	OccurredAt  string `json:"occurred_at,omitempty"`
}

// ExpenseEventRequest posts an operating-expense settlement.
type ExpenseEventRequest struct {
	Amount      string `json:"amount"`
	Category    string `json:"category"`
	Reference   string `json:"reference"`
	Description string `json:"description"`
	Currency    string `json:"currency,omitempty"`
	TenantID    string `json:"tenant_id"`
	OccurredAt  string `json:"occurred_at,omitempty"`
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// AutoReconcileRequest triggers a tolerance-bounded matching run.
type AutoReconcileRequest struct {
	TenantID    string `json:"tenant_id"`
	From        string `json:"from"` // YYYY-MM-DD
	To          string `json:"to"`
	PerformedBy string `json:"performed_by"`
}

// AutoReconcileDTO reports one run.
type AutoReconcileDTO struct {
	PairsReconciled       int `json:"pairs_reconciled"`
	RemainingUnreconciled int `json:"remaining_unreconciled"`
}

// ReconcilePairRequest pairs two entries manually.
type ReconcilePairRequest struct {
	DebitID     string `json:"debit_id"`
	CreditID    string `json:"credit_id"`
	PerformedBy string `json:"performed_by"`
}

// UnreconcileRequest resets a single entry.
type UnreconcileRequest struct {
	EntryID     string `json:"entry_id"`
	PerformedBy string `json:"performed_by"`
}

// =============================================================================
// ENTRIES & REPORTS
// =============================================================================

// EntryDTO is one ledger line in API responses.
type EntryDTO struct {
	ID               string `json:"id"`
	TransactionDate  string `json:"transaction_date"`
	Reference        string `json:"reference"`
	Description      string `json:"description"`
	Amount           string `json:"amount"`
	Currency         string `json:"currency"`
	Type             string `json:"type"`
	Category         string `json:"category"`
	SourceID         string `json:"source_id"`
	TenantID         string `json:"tenant_id"`
	IsReconciled     bool   `json:"is_reconciled"`
	ReconciledWithID string `json:"reconciled_with_id,omitempty"`
}

// CashbookDTO is a cashbook with its entries.
type CashbookDTO struct {
	Name     string     `json:"name"`
	TenantID string     `json:"tenant_id"`
	Entries  []EntryDTO `json:"entries"`
}

// ProfitLossDTO is the P&L statement.
type ProfitLossDTO struct {
	TenantID             string `json:"tenant_id"`
	From                 string `json:"from"`
	To                   string `json:"to"`
	Revenue              string `json:"revenue"`
	CostOfGoodsSold      string `json:"cost_of_goods_sold"`
	OperatingExpenses    string `json:"operating_expenses"`
	GrossProfit          string `json:"gross_profit"`
	NetProfit            string `json:"net_profit"`
	StockValuationChange string `json:"stock_valuation_change"`
	Currency             string `json:"currency"`
}

// CashPositionDTO is the cash snapshot.
type CashPositionDTO struct {
	TenantID           string `json:"tenant_id"`
	AsOf               string `json:"as_of"`
	CashInflow         string `json:"cash_inflow"`
	CashOutflow        string `json:"cash_outflow"`
	NetCashFlow        string `json:"net_cash_flow"`
	CurrentCashBalance string `json:"current_cash_balance"`
	Currency           string `json:"currency"`
}

// MonthFiguresDTO is one month of the trend report.
type MonthFiguresDTO struct {
	Year     int    `json:"year"`
	Month    int    `json:"month"`
	Revenue  string `json:"revenue"`
	Expenses string `json:"expenses"`
	Profit   string `json:"profit"`
}

// MonthOverMonthDTO is the trend report.
type MonthOverMonthDTO struct {
	TenantID          string            `json:"tenant_id"`
	From              string            `json:"from"`
	To                string            `json:"to"`
	Months            []MonthFiguresDTO `json:"months"`
	RevenueGrowthRate string            `json:"revenue_growth_rate"`
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

const dateLayout = "2006-01-02"

func toEntryDTO(e ledger.CashbookEntry) EntryDTO {
	return EntryDTO{
		ID:               e.ID,
		TransactionDate:  e.TransactionDate.Format(dateLayout),
		Reference:        e.Reference,
		Description:      e.Description,
		Amount:           e.Amount.Amount.StringFixed(2),
		Currency:         e.Amount.Currency,
		Type:             string(e.Type),
		Category:         string(e.Category),
		SourceID:         e.SourceID,
		TenantID:         e.TenantID,
		IsReconciled:     e.IsReconciled,
		ReconciledWithID: e.ReconciledWithID,
	}
}

func toEntryDTOs(entries []ledger.CashbookEntry) []EntryDTO {
	dtos := make([]EntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, toEntryDTO(e))
	}
	return dtos
}

func toProfitLossDTO(r reporting.ProfitLossReport) ProfitLossDTO {
	return ProfitLossDTO{
		TenantID:             r.TenantID,
		From:                 r.From.Format(dateLayout),
		To:                   r.To.Format(dateLayout),
		Revenue:              r.Revenue.Amount.StringFixed(2),
		CostOfGoodsSold:      r.CostOfGoodsSold.Amount.StringFixed(2),
		OperatingExpenses:    r.OperatingExpenses.Amount.StringFixed(2),
		GrossProfit:          r.GrossProfit.Amount.StringFixed(2),
		NetProfit:            r.NetProfit.Amount.StringFixed(2),
		StockValuationChange: r.StockValuationChange.Amount.StringFixed(2),
		Currency:             r.Revenue.Currency,
	}
}

func toCashPositionDTO(r reporting.CashPositionReport) CashPositionDTO {
	return CashPositionDTO{
		TenantID:           r.TenantID,
		AsOf:               r.AsOf.Format(dateLayout),
		CashInflow:         r.CashInflow.Amount.StringFixed(2),
		CashOutflow:        r.CashOutflow.Amount.StringFixed(2),
		NetCashFlow:        r.NetCashFlow.Amount.StringFixed(2),
		CurrentCashBalance: r.CurrentCashBalance.Amount.StringFixed(2),
		Currency:           r.CashInflow.Currency,
	}
}

func toMonthOverMonthDTO(r reporting.MonthOverMonthReport) MonthOverMonthDTO {
	dto := MonthOverMonthDTO{
		TenantID:          r.TenantID,
		From:              r.From.Format(dateLayout),
		To:                r.To.Format(dateLayout),
		Months:            []MonthFiguresDTO{},
		RevenueGrowthRate: r.RevenueGrowthRate.StringFixed(2),
	}
	for _, m := range r.Months {
		dto.Months = append(dto.Months, MonthFiguresDTO{
			Year:     m.Year,
			Month:    int(m.Month),
			Revenue:  m.Revenue.Amount.StringFixed(2),
			Expenses: m.Expenses.Amount.StringFixed(2),
			Profit:   m.Profit.Amount.StringFixed(2),
		})
	}
	return dto
}
