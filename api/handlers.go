/*
handlers.go - HTTP handlers for the cashbook engine

PURPOSE:
  Exposes the posting, reconciliation, and reporting engines via REST.
  Handles HTTP request/response and JSON serialization, delegates all
  semantics to the engines.

ENDPOINTS:
  Posting:
    POST /api/events/sale            Post a completed sale
    POST /api/events/purchase        Post a goods receipt
    POST /api/events/inventory       Post a stock adjustment
    POST /api/events/cash-receipt    Post a cash receipt
    POST /api/events/cash-payment    Post a cash payment
    POST /api/events/expense         Post an operating expense

  Reconciliation:
    POST /api/reconciliation/auto         Tolerance-bounded matching run
    POST /api/reconciliation/pair         Manual pairing
    POST /api/reconciliation/unreconcile  Single-entry reset

  Reports:
    GET /api/reports/profit-loss      ?tenant_id=&from=&to=
    GET /api/reports/cash-position    ?tenant_id=&as_of=
    GET /api/reports/month-over-month ?tenant_id=&from=&to=

  Entries:
    GET /api/cashbooks/{name}/entries ?tenant_id=
    GET /api/entries/{id}

ERROR HANDLING:
  Errors map to JSON with appropriate HTTP status:
  - 400: Validation, tolerance, same-type rejections
  - 404: Unknown entry or cashbook
  - 409: Lost reconciliation claim
  - 502: Stock valuation collaborator unavailable
  - 500: Everything else

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/finbooks/cashbook-engine/ledger"
	"github.com/finbooks/cashbook-engine/posting"
	"github.com/finbooks/cashbook-engine/reconcile"
	"github.com/finbooks/cashbook-engine/reporting"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Posting    *posting.Engine
	Reconciler *reconcile.Engine
	Reporter   *reporting.Engine
	Store      ledger.Store
}

func NewHandler(store ledger.Store, valuer ledger.StockValuer) *Handler {
	return &Handler{
		Posting:    posting.NewEngine(store),
		Reconciler: reconcile.NewEngine(store),
		Reporter:   reporting.NewEngine(store, valuer),
		Store:      store,
	}
}

// =============================================================================
// POSTING ENDPOINTS
// =============================================================================

// PostSale handles POST /api/events/sale.
func (h *Handler) PostSale(w http.ResponseWriter, r *http.Request) {
	var req SaleEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	total, tax, occurred, ok := parseTaxedFields(w, req.TotalAmount, req.TaxAmount, req.OccurredAt)
	if !ok {
		return
	}

	err := h.Posting.HandleSaleCompleted(r.Context(), posting.SaleCompleted{
		SaleID:      req.SaleID,
		TotalAmount: total,
		TaxAmount:   tax,
		Currency:    req.Currency,
		TenantID:    req.TenantID,
		OccurredAt:  occurred,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "posted"})
}

// PostPurchase handles POST /api/events/purchase.
func (h *Handler) PostPurchase(w http.ResponseWriter, r *http.Request) {
	var req PurchaseEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	total, tax, occurred, ok := parseTaxedFields(w, req.TotalAmount, req.TaxAmount, req.OccurredAt)
	if !ok {
		return
	}

	err := h.Posting.HandlePurchaseReceipt(r.Context(), posting.PurchaseReceipt{
		PurchaseOrderID: req.PurchaseOrderID,
		TotalAmount:     total,
		TaxAmount:       tax,
		Currency:        req.Currency,
		TenantID:        req.TenantID,
		OccurredAt:      occurred,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "posted"})
}

// PostInventory handles POST /api/events/inventory.
func (h *Handler) PostInventory(w http.ResponseWriter, r *http.Request) {
	var req InventoryEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	quantity, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid quantity", err)
		return
	}
	unitCost, err := decimal.NewFromString(req.UnitCost)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid unit_cost", err)
		return
	}
	occurred, ok := parseOptionalDate(w, req.OccurredAt)
	if !ok {
		return
	}

	err = h.Posting.HandleInventoryAdjustment(r.Context(), posting.InventoryAdjustment{
		ItemID:         req.ItemID,
		Quantity:       quantity,
		UnitCost:       unitCost,
		AdjustmentType: posting.AdjustmentType(req.AdjustmentType),
		Currency:       req.Currency,
		TenantID:       req.TenantID,
		OccurredAt:     occurred,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "posted"})
}

// PostCashReceipt handles POST /api/events/cash-receipt.
func (h *Handler) PostCashReceipt(w http.ResponseWriter, r *http.Request) {
	h.postCash(w, r, h.Posting.HandleCashReceipt)
}

// PostCashPayment handles POST /api/events/cash-payment.
func (h *Handler) PostCashPayment(w http.ResponseWriter, r *http.Request) {
	h.postCash(w, r, h.Posting.HandleCashPayment)
}

func (h *Handler) postCash(w http.ResponseWriter, r *http.Request, handle func(context.Context, posting.CashMovement) error) {
	var req CashEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	occurred, ok := parseOptionalDate(w, req.OccurredAt)
	if !ok {
		return
	}

	err = handle(r.Context(), posting.CashMovement{
		Amount:      amount,
		Reference:   req.Reference,
		Description: req.Description,
		AccountID:   req.AccountID,
		Currency:    req.Currency,
		TenantID:    req.TenantID,
		OccurredAt:  occurred,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "posted"})
}

// PostExpense handles POST /api/events/expense.
func (h *Handler) PostExpense(w http.ResponseWriter, r *http.Request) {
	var req ExpenseEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	occurred, ok := parseOptionalDate(w, req.OccurredAt)
	if !ok {
		return
	}

	err = h.Posting.HandleExpensePayment(r.Context(), posting.ExpensePayment{
		Amount:      amount,
		Category:    req.Category,
		Reference:   req.Reference,
		Description: req.Description,
		Currency:    req.Currency,
		TenantID:    req.TenantID,
		OccurredAt:  occurred,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "posted"})
}

// =============================================================================
// RECONCILIATION ENDPOINTS
// =============================================================================

// AutoReconcile handles POST /api/reconciliation/auto.
func (h *Handler) AutoReconcile(w http.ResponseWriter, r *http.Request) {
	var req AutoReconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	from, err := time.Parse(dateLayout, req.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from date (use YYYY-MM-DD)", err)
		return
	}
	to, err := time.Parse(dateLayout, req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to date (use YYYY-MM-DD)", err)
		return
	}

	result, err := h.Reconciler.AutoReconcile(r.Context(), req.TenantID, from, to, req.PerformedBy)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AutoReconcileDTO{
		PairsReconciled:       result.PairsReconciled,
		RemainingUnreconciled: result.RemainingUnreconciled,
	})
}

// ReconcilePair handles POST /api/reconciliation/pair.
func (h *Handler) ReconcilePair(w http.ResponseWriter, r *http.Request) {
	var req ReconcilePairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.Reconciler.ReconcilePair(r.Context(), req.DebitID, req.CreditID, req.PerformedBy); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reconciled"})
}

// Unreconcile handles POST /api/reconciliation/unreconcile.
func (h *Handler) Unreconcile(w http.ResponseWriter, r *http.Request) {
	var req UnreconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.Reconciler.Unreconcile(r.Context(), req.EntryID, req.PerformedBy); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unreconciled"})
}

// =============================================================================
// REPORT ENDPOINTS
// =============================================================================

// ProfitLoss handles GET /api/reports/profit-loss.
func (h *Handler) ProfitLoss(w http.ResponseWriter, r *http.Request) {
	tenantID, from, to, ok := parseRangeQuery(w, r)
	if !ok {
		return
	}

	report, err := h.Reporter.ProfitLoss(r.Context(), tenantID, from, to)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfitLossDTO(report))
}

// CashPosition handles GET /api/reports/cash-position.
func (h *Handler) CashPosition(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "tenant_id is required", nil)
		return
	}
	asOf, err := time.Parse(dateLayout, r.URL.Query().Get("as_of"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of date (use YYYY-MM-DD)", err)
		return
	}

	report, err := h.Reporter.CashPosition(r.Context(), tenantID, asOf)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCashPositionDTO(report))
}

// MonthOverMonth handles GET /api/reports/month-over-month.
func (h *Handler) MonthOverMonth(w http.ResponseWriter, r *http.Request) {
	tenantID, from, to, ok := parseRangeQuery(w, r)
	if !ok {
		return
	}

	report, err := h.Reporter.MonthOverMonth(r.Context(), tenantID, from, to)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMonthOverMonthDTO(report))
}

// =============================================================================
// ENTRY ENDPOINTS
// =============================================================================

// GetCashbookEntries handles GET /api/cashbooks/{name}/entries.
func (h *Handler) GetCashbookEntries(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "tenant_id is required", nil)
		return
	}

	book, err := h.Store.CashbookByName(r.Context(), name, tenantID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CashbookDTO{
		Name:     book.Name,
		TenantID: book.TenantID,
		Entries:  toEntryDTOs(book.Entries),
	})
}

// GetEntry handles GET /api/entries/{id}.
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.Store.ByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(entry))
}

// =============================================================================
// HELPERS
// =============================================================================

func parseTaxedFields(w http.ResponseWriter, totalStr, taxStr, occurredStr string) (total, tax decimal.Decimal, occurred time.Time, ok bool) {
	var err error
	total, err = decimal.NewFromString(totalStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid total_amount", err)
		return
	}
	tax, err = decimal.NewFromString(taxStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid tax_amount", err)
		return
	}
	occurred, ok = parseOptionalDate(w, occurredStr)
	return total, tax, occurred, ok
}

func parseOptionalDate(w http.ResponseWriter, s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid occurred_at date (use YYYY-MM-DD)", err)
		return time.Time{}, false
	}
	return t, true
}

func parseRangeQuery(w http.ResponseWriter, r *http.Request) (tenantID string, from, to time.Time, ok bool) {
	tenantID = r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "tenant_id is required", nil)
		return
	}
	var err error
	from, err = time.Parse(dateLayout, r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from date (use YYYY-MM-DD)", err)
		return
	}
	to, err = time.Parse(dateLayout, r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to date (use YYYY-MM-DD)", err)
		return
	}
	return tenantID, from, to, true
}

// writeEngineError maps engine errors onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrValidation),
		errors.Is(err, ledger.ErrCurrencyMismatch),
		errors.Is(err, ledger.ErrSameEntryType),
		errors.Is(err, ledger.ErrAmountOutOfTolerance),
		errors.Is(err, ledger.ErrNotReconciled):
		writeError(w, http.StatusBadRequest, "Request rejected", err)
	case errors.Is(err, ledger.ErrEntryNotFound),
		errors.Is(err, ledger.ErrCashbookNotFound):
		writeError(w, http.StatusNotFound, "Not found", err)
	case errors.Is(err, ledger.ErrAlreadyReconciled):
		writeError(w, http.StatusConflict, "Already reconciled", err)
	case errors.Is(err, ledger.ErrValuationUnavailable):
		writeError(w, http.StatusBadGateway, "Stock valuation unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
