package domain

import (
	"strings"
	"time"
)

type AttemptStatus string

const (
	AttemptInitiated AttemptStatus = "initiated"
	AttemptCharged   AttemptStatus = "charged"
	AttemptFailed    AttemptStatus = "failed"
)

// PaymentAttempt is written before the gateway is called. Its Draft is the
// order that gets materialised if the charge succeeded but the order insert
// did not.
type PaymentAttempt struct {
	OrderID        string        `db:"order_id"`
	IdempotencyKey string        `db:"idempotency_key"`
	Status         AttemptStatus `db:"status"`
	Draft          *Order        `db:"draft"`
	TransactionID  string        `db:"transaction_id"`
	QRURL          string        `db:"qr_url"`
	ExpiresAt      time.Time     `db:"expires_at"`
	Error          string        `db:"error"`
	CreatedAt      time.Time     `db:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at"`
}

// Gateway transaction statuses.
const (
	GatewaySettlement    = "settlement"
	GatewayCapture       = "capture"
	GatewayPending       = "pending"
	GatewayExpire        = "expire"
	GatewayCancel        = "cancel"
	GatewayDeny          = "deny"
	GatewayRefund        = "refund"
	GatewayPartialRefund = "partial_refund"
	GatewayFailure       = "failure"

	FraudAccept    = "accept"
	FraudChallenge = "challenge"
)

// MapGatewayStatus maps a gateway transaction and fraud status to the order
// status it implies. ok is false when the order must stay as it is.
func MapGatewayStatus(transactionStatus, fraudStatus string) (status OrderStatus, ok bool) {
	switch strings.ToLower(strings.TrimSpace(transactionStatus)) {
	case GatewaySettlement:
		return OrderStatusCompleted, true
	case GatewayCapture:
		fraud := strings.ToLower(strings.TrimSpace(fraudStatus))
		if fraud == "" || fraud == FraudAccept {
			return OrderStatusCompleted, true
		}

		return "", false
	case GatewayExpire:
		return OrderStatusExpired, true
	case GatewayCancel, GatewayDeny:
		return OrderStatusCancelled, true
	case GatewayRefund, GatewayPartialRefund:
		return OrderStatusRefunded, true
	default:
		return "", false
	}
}

type CheckoutResult struct {
	Success    bool       `json:"success"`
	OrderID    string     `json:"order_id,omitempty"`
	QRURL      string     `json:"qr_url,omitempty"`
	ExpiryTime *time.Time `json:"expiry_time,omitempty"`
	Total      int64      `json:"total,omitempty"`
	Error      string     `json:"error,omitempty"`
}

type StatusResult struct {
	Success     bool        `json:"success"`
	Paid        bool        `json:"paid"`
	Status      string      `json:"status,omitempty"`
	OrderStatus OrderStatus `json:"order_status,omitempty"`
	Message     string      `json:"message,omitempty"`
}

// GatewayTransaction is the part of a gateway status response or
// notification that drives order state.
type GatewayTransaction struct {
	OrderID           string
	TransactionID     string
	TransactionStatus string
	FraudStatus       string
}
