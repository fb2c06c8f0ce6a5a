package ledger

import (
	"fmt"

	"offer-wallet-service/internal/models"

	"github.com/shopspring/decimal"
)

// Totals are the aggregate values reproduced from a transaction log
type Totals struct {
	Balance      decimal.Decimal `json:"balance"`
	TotalCredits decimal.Decimal `json:"totalCredits"`
	TotalDebits  decimal.Decimal `json:"totalDebits"`
}

// Report compares a wallet against the replay of its log
type Report struct {
	Consistent   bool   `json:"consistent"`
	Stored       Totals `json:"stored"`
	Replayed     Totals `json:"replayed"`
	Transactions int    `json:"transactions"`
	Problem      string `json:"problem,omitempty"`
}

// Replay folds the log from a zero balance. It fails on the first entry whose
// before/after fields do not chain.
func Replay(txs []models.WalletTransaction) (Totals, error) {
	t := Totals{Balance: decimal.Zero, TotalCredits: decimal.Zero, TotalDebits: decimal.Zero}

	for i, tx := range txs {
		if !tx.PreviousBalance.Equal(t.Balance) {
			return t, fmt.Errorf("transaction %d: previousBalance %s does not match running balance %s",
				i, tx.PreviousBalance, t.Balance)
		}

		var increase bool
		switch tx.Type {
		case models.TransactionTypeCredit:
			increase = true
		case models.TransactionTypeDebit:
			increase = false
		case models.TransactionTypeAdjustment:
			increase = !tx.NewBalance.LessThan(tx.PreviousBalance)
		default:
			return t, fmt.Errorf("transaction %d: unknown type %q", i, tx.Type)
		}

		if increase {
			t.Balance = t.Balance.Add(tx.Amount)
			t.TotalCredits = t.TotalCredits.Add(tx.Amount)
		} else {
			t.Balance = t.Balance.Sub(tx.Amount)
			t.TotalDebits = t.TotalDebits.Add(tx.Amount)
		}

		if !tx.NewBalance.Equal(t.Balance) {
			return t, fmt.Errorf("transaction %d: newBalance %s does not match replayed balance %s",
				i, tx.NewBalance, t.Balance)
		}
		if t.Balance.IsNegative() {
			return t, fmt.Errorf("transaction %d: balance went negative", i)
		}
	}
	return t, nil
}

// Verify replays the wallet's log and compares it with the stored counters
func Verify(w *models.ShopWallet) Report {
	report := Report{
		Stored: Totals{
			Balance:      w.Balance,
			TotalCredits: w.TotalCredits,
			TotalDebits:  w.TotalDebits,
		},
		Transactions: len(w.Transactions),
	}

	replayed, err := Replay(w.Transactions)
	report.Replayed = replayed
	if err != nil {
		report.Problem = err.Error()
		return report
	}

	switch {
	case !replayed.Balance.Equal(w.Balance):
		report.Problem = "balance does not match the transaction log"
	case !replayed.TotalCredits.Equal(w.TotalCredits):
		report.Problem = "totalCredits does not match the transaction log"
	case !replayed.TotalDebits.Equal(w.TotalDebits):
		report.Problem = "totalDebits does not match the transaction log"
	default:
		report.Consistent = true
	}
	return report
}
