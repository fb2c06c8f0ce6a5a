package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"offer-wallet-service/internal/ledger"
	"offer-wallet-service/internal/models"
	"offer-wallet-service/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func newOffer(id, code string, priority int) *models.Offer {
	return &models.Offer{
		ID:            id,
		Name:          id,
		Code:          code,
		OfferType:     models.OfferTypeFixedDiscount,
		DiscountValue: decimal.NewFromInt(10),
		ApplicableTo:  models.ApplicableToAll,
		FromDate:      testNow.Add(-time.Hour),
		ToDate:        testNow.Add(time.Hour),
		Status:        models.OfferStatusActive,
		IsVisible:     true,
		Priority:      priority,
		CreatedAt:     testNow,
	}
}

func TestOfferCodesAreUnique(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.CreateOffer(ctx, newOffer("a", "SAVE10", 0)))
	assert.ErrorIs(t, s.CreateOffer(ctx, newOffer("b", "SAVE10", 0)), store.ErrAlreadyExists)

	got, err := s.GetOfferByCode(ctx, "save10")
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)
}

func TestUpdateOfferVersionCheck(t *testing.T) {
	s := New()
	ctx := context.Background()

	o := newOffer("a", "", 0)
	require.NoError(t, s.CreateOffer(ctx, o))
	assert.Equal(t, int64(1), o.Version)

	stale := o.Clone()
	o.Name = "renamed"
	require.NoError(t, s.UpdateOffer(ctx, o))
	assert.Equal(t, int64(2), o.Version)

	stale.Name = "lost update"
	assert.ErrorIs(t, s.UpdateOffer(ctx, stale), store.ErrVersionConflict)

	got, err := s.GetOffer(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)

	missing := newOffer("nope", "", 0)
	assert.ErrorIs(t, s.UpdateOffer(ctx, missing), store.ErrNotFound)
}

func TestReturnedOffersAreCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.CreateOffer(ctx, newOffer("a", "", 0)))

	got, err := s.GetOffer(ctx, "a")
	require.NoError(t, err)
	got.Name = "mutated"
	got.Usage.TotalUses = 99

	again, err := s.GetOffer(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", again.Name)
	assert.Zero(t, again.Usage.TotalUses)
}

func TestListLiveOffersOrdering(t *testing.T) {
	s := New()
	ctx := context.Background()

	low := newOffer("low", "", 1)
	high := newOffer("high", "", 9)
	hidden := newOffer("hidden", "", 10)
	hidden.IsVisible = false
	draft := newOffer("draft", "", 10)
	draft.Status = models.OfferStatusDraft
	future := newOffer("future", "", 10)
	future.FromDate = testNow.Add(time.Minute)
	future.ToDate = testNow.Add(time.Hour)

	for _, o := range []*models.Offer{low, high, hidden, draft, future} {
		require.NoError(t, s.CreateOffer(ctx, o))
	}

	live, err := s.ListLiveOffers(ctx, testNow)
	require.NoError(t, err)
	require.Len(t, live, 2)
	assert.Equal(t, "high", live[0].ID)
	assert.Equal(t, "low", live[1].ID)
}

func TestMutateWalletDiscardsFailedChanges(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.CreateWallet(ctx, ledger.NewWallet("shop-1", testNow)))

	_, err := s.MutateWallet(ctx, "shop-1", func(w *models.ShopWallet) error {
		_, err := ledger.Credit(w, models.WalletEntry{Amount: decimal.NewFromInt(5), Source: models.SourceAirtimeSale}, testNow)
		require.NoError(t, err)
		return errors.New("boom")
	})
	assert.EqualError(t, err, "boom")

	w, err := s.GetWalletByShop(ctx, "shop-1")
	require.NoError(t, err)
	assert.True(t, w.Balance.IsZero())
	assert.Empty(t, w.Transactions)

	_, err = s.MutateWallet(ctx, "missing", func(*models.ShopWallet) error { return nil })
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListTransactionsNewestFirst(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.CreateWallet(ctx, ledger.NewWallet("shop-1", testNow)))

	for i := 1; i <= 3; i++ {
		amount := decimal.NewFromInt(int64(i))
		_, err := s.MutateWallet(ctx, "shop-1", func(w *models.ShopWallet) error {
			_, err := ledger.Credit(w, models.WalletEntry{Amount: amount, Source: models.SourceAirtimeSale}, testNow)
			return err
		})
		require.NoError(t, err)
	}

	page, err := s.ListTransactions(ctx, "shop-1", 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.True(t, decimal.NewFromInt(3).Equal(page[0].Amount))
	assert.True(t, decimal.NewFromInt(2).Equal(page[1].Amount))

	page, err = s.ListTransactions(ctx, "shop-1", 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.True(t, decimal.NewFromInt(1).Equal(page[0].Amount))
}

func TestProcessedEvents(t *testing.T) {
	s := New()
	ctx := context.Background()

	processed, err := s.IsEventProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, processed)

	require.NoError(t, s.MarkEventProcessed(ctx, "evt-1", models.EventTypeAirtimeSaleCompleted))
	require.NoError(t, s.MarkEventProcessed(ctx, "evt-1", models.EventTypeAirtimeSaleCompleted))

	processed, err = s.IsEventProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestMutateOfferUsageKeepsAppendedRecords(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.CreateOffer(ctx, newOffer("a", "", 0)))

	got, err := s.MutateOfferUsage(ctx, "a", func(o *models.Offer) error {
		o.Usage.TotalUses++
		o.Usage.UsedBy = append(o.Usage.UsedBy, models.UsageRecord{User: "u1", Order: "o1", UsedAt: testNow})
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)

	_, err = s.MutateOfferUsage(ctx, "a", func(o *models.Offer) error {
		o.Usage.UsedBy = append(o.Usage.UsedBy, models.UsageRecord{User: "u2"})
		return errors.New("rejected")
	})
	assert.Error(t, err)

	untouched, err := s.MutateOfferUsage(ctx, "a", func(*models.Offer) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, int64(2), untouched.Version)

	stored, err := s.GetOffer(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Usage.TotalUses)
	require.Len(t, stored.Usage.UsedBy, 1)
	assert.Equal(t, "u1", stored.Usage.UsedBy[0].User)

	_, err = s.MutateOfferUsage(ctx, "missing", func(*models.Offer) error { return nil })
	assert.ErrorIs(t, err, store.ErrNotFound)
}
