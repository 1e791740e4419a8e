package domain

import "github.com/Arsyadam/bhawikarsu-store/pkg/variant"

type CheckoutItem struct {
	ProductID  int64              `json:"product_id" validate:"required,gt=0"`
	Variant    *variant.Selection `json:"variant"`
	VariantKey string             `json:"variant_key" validate:"max=200"`
	Quantity   int64              `json:"quantity" validate:"required,gt=0,lte=100"`
}

type ShippingRequest struct {
	DestinationAreaID string `json:"destination_area_id" validate:"required"`
	CourierCode       string `json:"courier_code" validate:"required"`
	ServiceCode       string `json:"service_code" validate:"required"`
}

type CheckoutRequest struct {
	Customer       Customer         `json:"customer" validate:"required"`
	Address        Address          `json:"address" validate:"required"`
	Items          []CheckoutItem   `json:"items" validate:"required,min=1,max=50,dive"`
	Donation       int64            `json:"donation" validate:"gte=0"`
	Shipping       *ShippingRequest `json:"shipping" validate:"omitempty"`
	ExpectedTotal  *int64           `json:"expected_total"`
	IdempotencyKey string           `json:"-"`
}

type QuoteRequest struct {
	Items    []CheckoutItem   `json:"items" validate:"required,min=1,max=50,dive"`
	Donation int64            `json:"donation" validate:"gte=0"`
	Shipping *ShippingRequest `json:"shipping" validate:"omitempty"`
}
