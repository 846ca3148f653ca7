/*
events.go - Business event inputs and the posted-lines notification

PURPOSE:
  The posting engine consumes a finite set of named business events from
  upstream services (sales, purchasing, inventory, cash desk) and, after a
  successful append, notifies downstream consumers that lines were posted.

NAMING CONVENTION:
  - *Event structs: inputs to the Handle* operations
  - LinesPosted: the outbound notification payload

SEE ALSO:
  - engine.go: The posting templates
  - events/kafka: Kafka-backed EventPublisher
*/
package posting

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// INBOUND EVENTS
// =============================================================================

// SaleCompleted is raised by the sales service when a sale is finalized.
type SaleCompleted struct {
	SaleID      string
	TotalAmount decimal.Decimal // gross, tax inclusive
	TaxAmount   decimal.Decimal
	Currency    string // optional; must match the tenant ledger when set
	TenantID    string
	OccurredAt  time.Time
}

// PurchaseReceipt is raised by purchasing when goods are received.
type PurchaseReceipt struct {
	PurchaseOrderID string
	TotalAmount     decimal.Decimal // gross, tax inclusive
	TaxAmount       decimal.Decimal
	Currency        string
	TenantID        string
	OccurredAt      time.Time
}

// AdjustmentType distinguishes stocktake gains from losses/write-offs.
type AdjustmentType string

const (
	AdjustmentStocktake AdjustmentType = "stocktake"
	AdjustmentWriteOff  AdjustmentType = "write_off"
	AdjustmentDamage    AdjustmentType = "damage"
)

// InventoryAdjustment is raised by the inventory service after a count or
// write-off. Quantity sign decides the template: positive is a gain,
// negative a loss.
type InventoryAdjustment struct {
	ItemID         string
	Quantity       decimal.Decimal
	UnitCost       decimal.Decimal
	AdjustmentType AdjustmentType
	Currency       string
	TenantID       string
	OccurredAt     time.Time
}

// CashMovement is raised by the cash desk for receipts and payments.
type CashMovement struct {
	Amount      decimal.Decimal
	Reference   string
	Description string
	AccountID   string
	Currency    string
	TenantID    string
	OccurredAt  time.Time
}

// ExpensePayment is raised when an operating expense (rent and the like)
// is settled.
type ExpensePayment struct {
	Amount      decimal.Decimal
	Category    string // a ledger expense category, e.g. "rent"
	Reference   string
	Description string
	Currency    string
	TenantID    string
	OccurredAt  time.Time
}

// =============================================================================
// OUTBOUND NOTIFICATION
// =============================================================================

// LinesPosted is published after a posting's entries are durably appended.
// Best-effort: a publish failure never rolls back the posting.
type LinesPosted struct {
	EventType string    `json:"event_type"` // e.g. "sale_completed"
	SourceID  string    `json:"source_id"`
	TenantID  string    `json:"tenant_id"`
	Cashbook  string    `json:"cashbook"`
	EntryIDs  []string  `json:"entry_ids"`
	PostedAt  time.Time `json:"posted_at"`
}

// LinesPostedTopic is the topic LinesPosted notifications are published to.
const LinesPostedTopic = "cashbook.lines.posted"

// EventPublisher delivers outbound notifications. Implementations must be
// safe for concurrent use. A nil publisher disables publishing.
type EventPublisher interface {
	Publish(topic string, event any) error
}
