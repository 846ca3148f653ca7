// Package store provides ledger.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/finbooks/cashbook-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	entries   map[string]*ledger.CashbookEntry // by entry id
	cashbooks map[bookKey][]string             // insertion-ordered entry ids
	valuation map[string][]valuationSnapshot   // by tenant, ascending asOf
}

type bookKey struct {
	Name     string
	TenantID string
}

type valuationSnapshot struct {
	AsOf  time.Time
	Value ledger.Money
}

func NewMemory() *Memory {
	return &Memory{
		entries:   make(map[string]*ledger.CashbookEntry),
		cashbooks: make(map[bookKey][]string),
		valuation: make(map[string][]valuationSnapshot),
	}
}

// AppendLines adds a posting's entries atomically. Append-only.
func (m *Memory) AppendLines(_ context.Context, cashbookName, tenantID string, entries []ledger.CashbookEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// All-or-nothing: validate ids before writing anything.
	for _, e := range entries {
		if e.ID == "" {
			return &ledger.ValidationError{Field: "id", Reason: "entry id is required"}
		}
		if _, dup := m.entries[e.ID]; dup {
			return &ledger.ValidationError{Field: "id", Reason: "duplicate entry id " + e.ID}
		}
	}

	k := bookKey{Name: cashbookName, TenantID: tenantID}
	for _, e := range entries {
		e := e
		e.TenantID = tenantID
		m.entries[e.ID] = &e
		m.cashbooks[k] = append(m.cashbooks[k], e.ID)
	}
	return nil
}

func (m *Memory) Unreconciled(_ context.Context, tenantID string) ([]ledger.CashbookEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.CashbookEntry
	for _, e := range m.entries {
		if e.TenantID == tenantID && !e.IsReconciled {
			result = append(result, *e)
		}
	}
	sortByDate(result)
	return result, nil
}

func (m *Memory) ByID(_ context.Context, id string) (ledger.CashbookEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[id]
	if !ok {
		return ledger.CashbookEntry{}, ledger.ErrEntryNotFound
	}
	return *e, nil
}

func (m *Memory) ByDateRange(_ context.Context, tenantID string, from, to time.Time) ([]ledger.CashbookEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.CashbookEntry
	for _, e := range m.entries {
		if e.TenantID != tenantID {
			continue
		}
		if e.TransactionDate.Before(from) || e.TransactionDate.After(to) {
			continue
		}
		result = append(result, *e)
	}
	sortByDate(result)
	return result, nil
}

func (m *Memory) ByTenant(_ context.Context, tenantID string) ([]ledger.CashbookEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.CashbookEntry
	for _, e := range m.entries {
		if e.TenantID == tenantID {
			result = append(result, *e)
		}
	}
	sortByDate(result)
	return result, nil
}

func (m *Memory) CashbookByName(_ context.Context, name, tenantID string) (ledger.Cashbook, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	k := bookKey{Name: name, TenantID: tenantID}
	ids, ok := m.cashbooks[k]
	if !ok {
		return ledger.Cashbook{}, ledger.ErrCashbookNotFound
	}

	book := ledger.Cashbook{Name: name, TenantID: tenantID}
	for _, id := range ids {
		book.Entries = append(book.Entries, *m.entries[id])
	}
	return book, nil
}

// Reconcile flips both entries conditionally: if either is already
// reconciled the call fails and nothing changes.
func (m *Memory) Reconcile(_ context.Context, debitID, creditID, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.entries[debitID]
	if !ok {
		return ledger.ErrEntryNotFound
	}
	c, ok := m.entries[creditID]
	if !ok {
		return ledger.ErrEntryNotFound
	}
	if d.IsReconciled || c.IsReconciled {
		return ledger.ErrAlreadyReconciled
	}

	d.IsReconciled = true
	d.ReconciledWithID = c.ID
	c.IsReconciled = true
	c.ReconciledWithID = d.ID
	return nil
}

// Unreconcile resets the single named entry; the partner keeps its state.
func (m *Memory) Unreconcile(_ context.Context, entryID, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[entryID]
	if !ok {
		return ledger.ErrEntryNotFound
	}
	if !e.IsReconciled {
		return ledger.ErrNotReconciled
	}

	e.IsReconciled = false
	e.ReconciledWithID = ""
	return nil
}

// =============================================================================
// STOCK VALUATION - Memory also acts as the valuation collaborator in tests
// =============================================================================

// RecordStockValue stores a valuation snapshot for the tenant.
func (m *Memory) RecordStockValue(_ context.Context, tenantID string, asOf time.Time, value ledger.Money) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snaps := append(m.valuation[tenantID], valuationSnapshot{AsOf: asOf, Value: value})
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].AsOf.Before(snaps[j].AsOf) })
	m.valuation[tenantID] = snaps
	return nil
}

// TotalStockValue returns the latest snapshot at or before asOf.
func (m *Memory) TotalStockValue(_ context.Context, asOf time.Time, tenantID string) (ledger.Money, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snaps := m.valuation[tenantID]
	for i := len(snaps) - 1; i >= 0; i-- {
		if !snaps[i].AsOf.After(asOf) {
			return snaps[i].Value, nil
		}
	}
	return ledger.Money{}, ledger.ErrValuationUnavailable
}

func sortByDate(entries []ledger.CashbookEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].TransactionDate.Equal(entries[j].TransactionDate) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].TransactionDate.Before(entries[j].TransactionDate)
	})
}
