package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the kind of ledger entry
type TransactionType string

// Transaction types
const (
	TransactionTypeCredit     TransactionType = "credit"
	TransactionTypeDebit      TransactionType = "debit"
	TransactionTypeAdjustment TransactionType = "adjustment"
)

// TransactionSource is the business event behind a ledger entry
type TransactionSource string

// Transaction sources
const (
	SourceAirtimeSale     TransactionSource = "airtime_sale"
	SourceOrderCredit     TransactionSource = "order_credit"
	SourceAdminAdjustment TransactionSource = "admin_adjustment"
	SourceWithdrawal      TransactionSource = "withdrawal"
)

// Valid reports whether s is a known source
func (s TransactionSource) Valid() bool {
	switch s {
	case SourceAirtimeSale, SourceOrderCredit, SourceAdminAdjustment, SourceWithdrawal:
		return true
	}
	return false
}

// Referenced model kinds of a transaction's related document
const (
	RelatedModelAirtimeTransaction = "AirtimeTransaction"
	RelatedModelOrder              = "Order"
)

// WalletStatus gates balance mutations
type WalletStatus string

// Wallet statuses
const (
	WalletStatusActive    WalletStatus = "active"
	WalletStatusSuspended WalletStatus = "suspended"
	WalletStatusFrozen    WalletStatus = "frozen"
)

// Valid reports whether s is a known wallet status
func (s WalletStatus) Valid() bool {
	switch s {
	case WalletStatusActive, WalletStatusSuspended, WalletStatusFrozen:
		return true
	}
	return false
}

// WalletTransaction is one append-only ledger entry
type WalletTransaction struct {
	ID                 string            `db:"id" json:"id"`
	WalletID           string            `db:"wallet_id" json:"walletId"`
	Type               TransactionType   `db:"type" json:"type"`
	Amount             decimal.Decimal   `db:"amount" json:"amount"`
	PreviousBalance    decimal.Decimal   `db:"previous_balance" json:"previousBalance"`
	NewBalance         decimal.Decimal   `db:"new_balance" json:"newBalance"`
	Description        string            `db:"description" json:"description"`
	Source             TransactionSource `db:"source" json:"source"`
	RelatedTransaction string            `db:"related_transaction" json:"relatedTransaction,omitempty"`
	RelatedModel       string            `db:"related_model" json:"relatedModel,omitempty"`
	PerformedBy        string            `db:"performed_by" json:"performedBy,omitempty"`
	Timestamp          time.Time         `db:"timestamp" json:"timestamp"`
}

// ShopWallet is a shop's balance and its transaction log
type ShopWallet struct {
	ID           string              `db:"id" json:"id"`
	Shop         string              `db:"shop" json:"shop"`
	Balance      decimal.Decimal     `db:"balance" json:"balance"`
	TotalCredits decimal.Decimal     `db:"total_credits" json:"totalCredits"`
	TotalDebits  decimal.Decimal     `db:"total_debits" json:"totalDebits"`
	Status       WalletStatus        `db:"status" json:"status"`
	Transactions []WalletTransaction `db:"-" json:"transactions,omitempty"`
	CreatedAt    time.Time           `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time           `db:"updated_at" json:"updatedAt"`
	Version      int64               `db:"version" json:"version"`
}

// Clone returns a deep copy of the wallet
func (w *ShopWallet) Clone() *ShopWallet {
	c := *w
	c.Transactions = append([]WalletTransaction(nil), w.Transactions...)
	return &c
}

// LastTransaction returns the newest ledger entry, or nil for an empty log
func (w *ShopWallet) LastTransaction() *WalletTransaction {
	if len(w.Transactions) == 0 {
		return nil
	}
	return &w.Transactions[len(w.Transactions)-1]
}

// WalletEntry describes a requested balance change
type WalletEntry struct {
	Amount      decimal.Decimal   `json:"amount"`
	Description string            `json:"description"`
	Source      TransactionSource `json:"source"`
	RelatedID   string            `json:"relatedId,omitempty"`
	PerformedBy string            `json:"performedBy,omitempty"`
}

// WalletResult is the mutated wallet summary returned to callers
type WalletResult struct {
	Wallet      *ShopWallet        `json:"wallet"`
	Transaction *WalletTransaction `json:"transaction"`
}
