package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidTransition = errors.New("invalid order status transition")

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusFulfilled OrderStatus = "fulfilled"
	OrderStatusExpired   OrderStatus = "expired"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRefunded  OrderStatus = "refunded"
)

var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusCompleted, OrderStatusExpired, OrderStatusCancelled},
	OrderStatusCompleted: {OrderStatusFulfilled, OrderStatusRefunded},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusCompleted, OrderStatusFulfilled,
		OrderStatusExpired, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}

	return false
}

func (s OrderStatus) IsTerminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// IsPaid reports whether money has been taken and not returned.
func (s OrderStatus) IsPaid() bool {
	return s == OrderStatusCompleted || s == OrderStatusFulfilled
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}

	return false
}

type Customer struct {
	FirstName string `json:"first_name" validate:"required,max=50"`
	LastName  string `json:"last_name" validate:"max=50"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"required,min=8,max=20"`
}

func (c Customer) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

type Address struct {
	Address      string `json:"address" validate:"required,max=200"`
	LocationName string `json:"location_name" validate:"required,max=200"`
	PostalCode   string `json:"postal_code" validate:"required,max=10"`
	AreaID       string `json:"area_id,omitempty"`
}

// String is the single-line form sent to the gateway and shown to admins.
func (a Address) String() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{a.Address, a.LocationName, a.PostalCode} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}

	return strings.Join(parts, ", ")
}

type OrderItem struct {
	ID         int64  `db:"id" json:"id"`
	OrderID    string `db:"order_id" json:"order_id"`
	ProductID  int64  `db:"product_id" json:"product_id"`
	VariantKey string `db:"variant_key" json:"variant_key,omitempty"`
	Name       string `db:"name" json:"name"`
	Label      string `db:"label" json:"label,omitempty"`
	Price      int64  `db:"price" json:"price"`
	Quantity   int64  `db:"quantity" json:"quantity"`
}

// Order is keyed by the gateway order id.
type Order struct {
	ID              string      `db:"id" json:"id"`
	TransactionID   string      `db:"transaction_id" json:"transaction_id,omitempty"`
	Customer        Customer    `db:"customer" json:"customer"`
	ShippingAddress Address     `db:"shipping_address" json:"shipping_address"`
	Items           []OrderItem `db:"-" json:"items"`
	ItemsTotal      int64       `db:"items_total" json:"items_total"`
	Donation        int64       `db:"donation" json:"donation"`
	ShippingCourier string      `db:"shipping_courier" json:"shipping_courier,omitempty"`
	ShippingCost    int64       `db:"shipping_cost" json:"shipping_cost"`
	Total           int64       `db:"total" json:"total"`
	Status          OrderStatus `db:"status" json:"status"`
	GatewayStatus   string      `db:"gateway_status" json:"gateway_status,omitempty"`
	QRURL           string      `db:"qr_url" json:"qr_url,omitempty"`
	ExpiresAt       time.Time   `db:"expires_at" json:"expires_at"`
	PaidAt          *time.Time  `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt       time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at" json:"updated_at"`
}

// Transition moves the order to next. Re-applying the current status is a
// no-op and reports changed=false.
func (o *Order) Transition(next OrderStatus, at time.Time) (changed bool, err error) {
	if o.Status == next {
		return false, nil
	}

	if !o.Status.CanTransitionTo(next) {
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, next)
	}

	o.Status = next
	if next == OrderStatusCompleted && o.PaidAt == nil {
		paidAt := at
		o.PaidAt = &paidAt
	}

	return true, nil
}

// Expired reports whether the payment window closed before now.
func (o *Order) Expired(now time.Time) bool {
	return !o.ExpiresAt.IsZero() && now.After(o.ExpiresAt)
}

type OrderFilter struct {
	Status OrderStatus
	Limit  int64
	Offset int64
}
