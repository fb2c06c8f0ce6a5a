package service

import (
	"context"
	"sync"
	"testing"

	"offer-wallet-service/internal/ledger"
	"offer-wallet-service/internal/models"
	"offer-wallet-service/internal/store/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func airtimeCredit(amount string) models.WalletEntry {
	return models.WalletEntry{
		Amount:      dec(amount),
		Description: "Airtime commission",
		Source:      models.SourceAirtimeSale,
		RelatedID:   "airtime-1",
		PerformedBy: "user-1",
	}
}

func TestCreditThenOverdraw(t *testing.T) {
	svc, _, pub := newTestWalletService()
	ctx := context.Background()

	res, err := svc.AddCredit(ctx, "shop-1", airtimeCredit("1000"))
	require.NoError(t, err)
	assert.True(t, dec("1000").Equal(res.Wallet.Balance))
	assert.True(t, dec("1000").Equal(res.Wallet.TotalCredits))
	assert.True(t, res.Transaction.PreviousBalance.IsZero())
	assert.True(t, dec("1000").Equal(res.Transaction.NewBalance))
	assert.Equal(t, models.RelatedModelAirtimeTransaction, res.Transaction.RelatedModel)

	_, err = svc.DeductCredit(ctx, "shop-1", models.WalletEntry{
		Amount: dec("1500"),
		Source: models.SourceWithdrawal,
	})
	var insufficient *ledger.InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)
	assert.True(t, dec("1000").Equal(insufficient.Available))
	assert.True(t, dec("1500").Equal(insufficient.Requested))

	w, err := svc.GetOrCreateWallet(ctx, "shop-1")
	require.NoError(t, err)
	assert.True(t, dec("1000").Equal(w.Balance))
	assert.Len(t, w.Transactions, 1)

	require.Len(t, pub.wallet, 1)
	assert.Equal(t, models.EventTypeWalletCredited, pub.wallet[0].EventType)
	assert.Equal(t, "shop-1", pub.wallet[0].ShopID)
}

func TestGetOrCreateWalletConcurrent(t *testing.T) {
	svc, _, _ := newTestWalletService()
	ctx := context.Background()

	const workers = 20
	ids := make(chan string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w, err := svc.GetOrCreateWallet(ctx, "shop-1")
			if assert.NoError(t, err) {
				ids <- w.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		seen[id] = true
	}
	assert.Len(t, seen, 1)
}

func TestGetOrCreateWalletRequiresShop(t *testing.T) {
	svc, _, _ := newTestWalletService()

	_, err := svc.GetOrCreateWallet(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrShopRequired)
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	svc, _, _ := newTestWalletService()
	ctx := context.Background()

	_, err := svc.AddCredit(ctx, "shop-1", airtimeCredit("100"))
	require.NoError(t, err)

	const workers = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.DeductCredit(ctx, "shop-1", models.WalletEntry{
				Amount: dec("3"),
				Source: models.SourceWithdrawal,
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	w, err := svc.GetOrCreateWallet(ctx, "shop-1")
	require.NoError(t, err)
	assert.Equal(t, 33, succeeded)
	assert.True(t, dec("1").Equal(w.Balance))
	assert.True(t, dec("99").Equal(w.TotalDebits))

	report, err := svc.Verify(ctx, "shop-1")
	require.NoError(t, err)
	assert.True(t, report.Consistent, report.Problem)
	assert.Equal(t, 34, report.Transactions)
}

func TestInactiveWalletRejectsMutations(t *testing.T) {
	svc, _, _ := newTestWalletService()
	ctx := context.Background()

	w, err := svc.SetStatus(ctx, "shop-1", models.WalletStatusSuspended)
	require.NoError(t, err)
	assert.Equal(t, models.WalletStatusSuspended, w.Status)

	_, err = svc.AddCredit(ctx, "shop-1", airtimeCredit("10"))
	var notActive *ledger.WalletNotActiveError
	require.ErrorAs(t, err, &notActive)
	assert.Equal(t, models.WalletStatusSuspended, notActive.Status)

	_, err = svc.SetStatus(ctx, "shop-1", "closed")
	assert.ErrorIs(t, err, ledger.ErrInvalidStatus)

	_, err = svc.SetStatus(ctx, "shop-1", models.WalletStatusActive)
	require.NoError(t, err)
	_, err = svc.AddCredit(ctx, "shop-1", airtimeCredit("10"))
	assert.NoError(t, err)
}

func TestInvalidEntriesAreRejected(t *testing.T) {
	svc, _, pub := newTestWalletService()
	ctx := context.Background()

	_, err := svc.AddCredit(ctx, "shop-1", airtimeCredit("0"))
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	_, err = svc.AddCredit(ctx, "shop-1", airtimeCredit("0.004"))
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	w, err := svc.GetOrCreateWallet(ctx, "shop-1")
	require.NoError(t, err)
	assert.True(t, w.Balance.IsZero())

	_, err = svc.AddCredit(ctx, "shop-1", models.WalletEntry{Amount: dec("5"), Source: "gift"})
	assert.ErrorIs(t, err, ledger.ErrInvalidSource)

	assert.Empty(t, pub.wallet)
}

func TestAdjustBalance(t *testing.T) {
	svc, _, pub := newTestWalletService()
	ctx := context.Background()

	res, err := svc.AdjustBalance(ctx, "shop-1", dec("50"), "goodwill", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionTypeAdjustment, res.Transaction.Type)
	assert.Equal(t, models.SourceAdminAdjustment, res.Transaction.Source)
	assert.True(t, dec("50").Equal(res.Wallet.TotalCredits))

	res, err = svc.AdjustBalance(ctx, "shop-1", dec("-20"), "correction", "admin-1")
	require.NoError(t, err)
	assert.True(t, dec("20").Equal(res.Transaction.Amount))
	assert.True(t, dec("30").Equal(res.Wallet.Balance))
	assert.True(t, dec("20").Equal(res.Wallet.TotalDebits))

	_, err = svc.AdjustBalance(ctx, "shop-1", dec("-31"), "too much", "admin-1")
	var insufficient *ledger.InsufficientBalanceError
	assert.ErrorAs(t, err, &insufficient)

	require.Len(t, pub.wallet, 2)
	assert.Equal(t, models.EventTypeWalletAdjusted, pub.wallet[1].EventType)
}

func TestTransactionsPage(t *testing.T) {
	svc, _, _ := newTestWalletService()
	ctx := context.Background()

	for _, amount := range []string{"1", "2", "3"} {
		_, err := svc.AddCredit(ctx, "shop-1", airtimeCredit(amount))
		require.NoError(t, err)
	}

	txs, err := svc.Transactions(ctx, "shop-1", 0, 0)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.True(t, dec("3").Equal(txs[0].Amount))

	txs, err = svc.Transactions(ctx, "shop-1", 1, 1)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.True(t, dec("2").Equal(txs[0].Amount))

	txs, err = svc.Transactions(ctx, "unknown", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

type countingWallets struct {
	*memstore.Store
	mu    sync.Mutex
	loads int
}

func (c *countingWallets) GetWalletByShop(ctx context.Context, shopID string) (*models.ShopWallet, error) {
	c.mu.Lock()
	c.loads++
	c.mu.Unlock()
	return c.Store.GetWalletByShop(ctx, shopID)
}

func TestMutationsDoNotLoadTheLedger(t *testing.T) {
	repo := &countingWallets{Store: memstore.New()}
	svc := NewWalletService(repo, nil)
	svc.now = fixedClock
	ctx := context.Background()

	res, err := svc.AddCredit(ctx, "shop-1", airtimeCredit("100"))
	require.NoError(t, err)
	assert.True(t, dec("100").Equal(res.Wallet.Balance))

	for i := 0; i < 5; i++ {
		_, err = svc.DeductCredit(ctx, "shop-1", models.WalletEntry{Amount: dec("10"), Source: models.SourceWithdrawal})
		require.NoError(t, err)
	}
	_, err = svc.SetStatus(ctx, "shop-2", models.WalletStatusFrozen)
	require.NoError(t, err)

	assert.Zero(t, repo.loads)

	w, err := svc.GetOrCreateWallet(ctx, "shop-1")
	require.NoError(t, err)
	assert.True(t, dec("50").Equal(w.Balance))
	assert.Len(t, w.Transactions, 6)
}
