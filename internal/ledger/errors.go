package ledger

import (
	"errors"
	"fmt"

	"offer-wallet-service/internal/models"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidSource = errors.New("unknown transaction source")
	ErrInvalidStatus = errors.New("unknown wallet status")
)

// InsufficientBalanceError is returned when a debit exceeds the balance
type InsufficientBalanceError struct {
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: available=%s, requested=%s",
		e.Available.StringFixed(2), e.Requested.StringFixed(2))
}

// WalletNotActiveError is returned when a suspended or frozen wallet is mutated
type WalletNotActiveError struct {
	Status models.WalletStatus
}

func (e *WalletNotActiveError) Error() string {
	return fmt.Sprintf("wallet is %s", e.Status)
}
