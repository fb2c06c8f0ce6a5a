package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeAirtimeSaleCompleted = "AIRTIME_SALE_COMPLETED"
	EventTypeOrderCreditIssued    = "ORDER_CREDIT_ISSUED"
	EventTypeWalletCredited       = "WALLET_CREDITED"
	EventTypeWalletDebited        = "WALLET_DEBITED"
	EventTypeWalletAdjusted       = "WALLET_ADJUSTED"
	EventTypeOfferRedeemed        = "OFFER_REDEEMED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// AirtimeSaleCompletedEvent is published by the airtime module when a shop sells airtime
type AirtimeSaleCompletedEvent struct {
	BaseEvent
	ShopID        string          `json:"shop_id"`
	TransactionID string          `json:"transaction_id"`
	UserID        string          `json:"user_id"`
	Commission    decimal.Decimal `json:"commission"`
	Phone         string          `json:"phone,omitempty"`
}

// OrderCreditIssuedEvent is published when an order earns the shop a credit
type OrderCreditIssuedEvent struct {
	BaseEvent
	ShopID  string          `json:"shop_id"`
	OrderID string          `json:"order_id"`
	UserID  string          `json:"user_id"`
	Amount  decimal.Decimal `json:"amount"`
}

// WalletTransactionEvent is published after every committed ledger entry
type WalletTransactionEvent struct {
	BaseEvent
	ShopID      string            `json:"shop_id"`
	WalletID    string            `json:"wallet_id"`
	Transaction WalletTransaction `json:"transaction"`
	Balance     decimal.Decimal   `json:"balance"`
}

// OfferRedeemedEvent is published after usage of an offer is recorded
type OfferRedeemedEvent struct {
	BaseEvent
	OfferID         string          `json:"offer_id"`
	OfferCode       string          `json:"offer_code,omitempty"`
	UserID          string          `json:"user_id"`
	OrderID         string          `json:"order_id"`
	DiscountApplied decimal.Decimal `json:"discount_applied"`
	TotalUses       int64           `json:"total_uses"`
}

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
