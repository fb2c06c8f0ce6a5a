package models

import "github.com/shopspring/decimal"

// Order is the priced order an offer is evaluated against
type Order struct {
	TotalPrice  decimal.Decimal `json:"totalPrice"`
	DeliveryFee decimal.Decimal `json:"deliveryFee"`
	Products    []OrderLine     `json:"products"`
}

// OrderLine is a line item of an order
type OrderLine struct {
	Product  string          `json:"product"`
	Category string          `json:"category,omitempty"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}
