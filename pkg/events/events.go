package events

import (
	"encoding/json"
	"time"
)

const TopicOrderEvents = "order_events"

const (
	OrderPaid      = "OrderPaid"
	OrderExpired   = "OrderExpired"
	OrderCancelled = "OrderCancelled"
	OrderRefunded  = "OrderRefunded"
)

// Envelope is the wire format of every message on the order topics. EventID
// is the outbox row id, injected by the outbox worker at publish time.
type Envelope struct {
	Event   string          `json:"event"`
	EventID int64           `json:"event_id"`
	Payload json.RawMessage `json:"payload"`
}

type OrderLine struct {
	ProductID  int64  `json:"product_id"`
	VariantKey string `json:"variant_key,omitempty"`
	Name       string `json:"name"`
	Price      int64  `json:"price"`
	Quantity   int64  `json:"quantity"`
}

type Customer struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

type OrderPaidEvent struct {
	OrderID  string      `json:"order_id"`
	Items    []OrderLine `json:"items"`
	Donation int64       `json:"donation"`
	Shipping int64       `json:"shipping"`
	Total    int64       `json:"total"`
	Customer Customer    `json:"customer"`
	PaidAt   time.Time   `json:"paid_at"`
}

type OrderExpiredEvent struct {
	OrderID   string    `json:"order_id"`
	Total     int64     `json:"total"`
	Customer  Customer  `json:"customer"`
	ExpiredAt time.Time `json:"expired_at"`
}

type OrderCancelledEvent struct {
	OrderID     string      `json:"order_id"`
	Items       []OrderLine `json:"items"`
	Reason      string      `json:"reason"`
	CancelledAt time.Time   `json:"cancelled_at"`
}

// OrderRefundedEvent returns the order's stock to the catalog.
type OrderRefundedEvent struct {
	OrderID    string      `json:"order_id"`
	Items      []OrderLine `json:"items"`
	RefundedAt time.Time   `json:"refunded_at"`
}
