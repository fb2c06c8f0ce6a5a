// Package ledger applies balance changes to a shop wallet aggregate and
// keeps its transaction log consistent. Callers are responsible for
// persisting the aggregate atomically.
package ledger

import (
	"fmt"
	"time"

	"offer-wallet-service/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// NewWallet returns an empty active wallet for a shop
func NewWallet(shopID string, now time.Time) *models.ShopWallet {
	return &models.ShopWallet{
		ID:           uuid.NewString(),
		Shop:         shopID,
		Balance:      decimal.Zero,
		TotalCredits: decimal.Zero,
		TotalDebits:  decimal.Zero,
		Status:       models.WalletStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// RelatedModel returns the document kind a source's related id points at
func RelatedModel(source models.TransactionSource) string {
	switch source {
	case models.SourceAirtimeSale:
		return models.RelatedModelAirtimeTransaction
	case models.SourceOrderCredit:
		return models.RelatedModelOrder
	default:
		return ""
	}
}

// amountPlaces is the precision wallet amounts are stored with
const amountPlaces = 2

func checkEntry(w *models.ShopWallet, entry models.WalletEntry) error {
	if !entry.Amount.IsPositive() {
		return fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	if !entry.Amount.Equal(entry.Amount.Round(amountPlaces)) {
		return fmt.Errorf("%w: %s has more than %d decimal places", ErrInvalidAmount, entry.Amount, amountPlaces)
	}
	if !entry.Source.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidSource, entry.Source)
	}
	if w.Status != models.WalletStatusActive {
		return &WalletNotActiveError{Status: w.Status}
	}
	return nil
}

func appendTransaction(w *models.ShopWallet, t models.TransactionType, entry models.WalletEntry,
	previous decimal.Decimal, now time.Time) *models.WalletTransaction {
	tx := models.WalletTransaction{
		ID:                 uuid.NewString(),
		WalletID:           w.ID,
		Type:               t,
		Amount:             entry.Amount,
		PreviousBalance:    previous,
		NewBalance:         w.Balance,
		Description:        entry.Description,
		Source:             entry.Source,
		RelatedTransaction: entry.RelatedID,
		PerformedBy:        entry.PerformedBy,
		Timestamp:          now,
	}
	if entry.RelatedID != "" {
		tx.RelatedModel = RelatedModel(entry.Source)
	}
	w.Transactions = append(w.Transactions, tx)
	w.UpdatedAt = now
	return &w.Transactions[len(w.Transactions)-1]
}

// Credit adds entry.Amount to the wallet and appends a credit transaction
func Credit(w *models.ShopWallet, entry models.WalletEntry, now time.Time) (*models.WalletTransaction, error) {
	if err := checkEntry(w, entry); err != nil {
		return nil, err
	}

	previous := w.Balance
	w.Balance = previous.Add(entry.Amount)
	w.TotalCredits = w.TotalCredits.Add(entry.Amount)

	return appendTransaction(w, models.TransactionTypeCredit, entry, previous, now), nil
}

// Debit removes entry.Amount from the wallet and appends a debit transaction.
// The balance is never taken below zero.
func Debit(w *models.ShopWallet, entry models.WalletEntry, now time.Time) (*models.WalletTransaction, error) {
	if err := checkEntry(w, entry); err != nil {
		return nil, err
	}
	if w.Balance.LessThan(entry.Amount) {
		return nil, &InsufficientBalanceError{Available: w.Balance, Requested: entry.Amount}
	}

	previous := w.Balance
	w.Balance = previous.Sub(entry.Amount)
	w.TotalDebits = w.TotalDebits.Add(entry.Amount)

	return appendTransaction(w, models.TransactionTypeDebit, entry, previous, now), nil
}

// Adjust applies a signed admin correction. Positive deltas count as credits,
// negative ones as debits.
func Adjust(w *models.ShopWallet, delta decimal.Decimal, description, performedBy string, now time.Time) (*models.WalletTransaction, error) {
	entry := models.WalletEntry{
		Amount:      delta.Abs(),
		Description: description,
		Source:      models.SourceAdminAdjustment,
		PerformedBy: performedBy,
	}
	if err := checkEntry(w, entry); err != nil {
		return nil, err
	}

	previous := w.Balance
	if delta.IsNegative() {
		if w.Balance.LessThan(entry.Amount) {
			return nil, &InsufficientBalanceError{Available: w.Balance, Requested: entry.Amount}
		}
		w.Balance = previous.Sub(entry.Amount)
		w.TotalDebits = w.TotalDebits.Add(entry.Amount)
	} else {
		w.Balance = previous.Add(entry.Amount)
		w.TotalCredits = w.TotalCredits.Add(entry.Amount)
	}

	return appendTransaction(w, models.TransactionTypeAdjustment, entry, previous, now), nil
}

// SetStatus changes the wallet status
func SetStatus(w *models.ShopWallet, status models.WalletStatus, now time.Time) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	w.Status = status
	w.UpdatedAt = now
	return nil
}
