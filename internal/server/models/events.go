package models

import "time"

// Event types published on the delivery topic.
const (
	EventDeliveryPrepared = "delivery.prepared"
	EventDeliveryFlagged  = "delivery.flagged"
	EventDeliveryBlocked  = "delivery.blocked"
)

// DeliveryEvent is a notification about a ledger entry.
type DeliveryEvent struct {
	Type        string    `json:"type"`
	EntryID     string    `json:"entry_id"`
	PurchaserID string    `json:"purchaser_id"`
	DocumentID  string    `json:"document_id"`
	PurchaseID  string    `json:"purchase_id"`
	Labels      []string  `json:"labels,omitempty"`
	Blocked     bool      `json:"blocked,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	At          time.Time `json:"at"`
}

// PurchaseCompleted is consumed from the purchase topic. One purchase may
// cover several documents.
type PurchaseCompleted struct {
	PurchaseID      string    `json:"purchase_id"`
	PurchaserID     string    `json:"purchaser_id"`
	ReferenceNumber string    `json:"reference_number"`
	CompletedAt     time.Time `json:"completed_at"`
	DocumentIDs     []string  `json:"document_ids"`
}
