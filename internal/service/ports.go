package service

import (
	"context"
	"time"

	"offer-wallet-service/internal/models"
)

// OfferRepository persists offers. Edits are guarded by the offer's version
// and fail with store.ErrVersionConflict when it is stale. MutateOfferUsage
// runs fn as one atomic read-modify-write of the offer's usage.
type OfferRepository interface {
	CreateOffer(ctx context.Context, o *models.Offer) error
	GetOffer(ctx context.Context, id string) (*models.Offer, error)
	GetOfferByCode(ctx context.Context, code string) (*models.Offer, error)
	ListOffers(ctx context.Context, filter models.OfferFilter) ([]*models.Offer, error)
	ListLiveOffers(ctx context.Context, now time.Time) ([]*models.Offer, error)
	UpdateOffer(ctx context.Context, o *models.Offer) error
	MutateOfferUsage(ctx context.Context, id string, fn func(o *models.Offer) error) (*models.Offer, error)
}

// WalletRepository persists shop wallets. MutateWallet runs fn as one atomic
// read-modify-write of the shop's wallet.
type WalletRepository interface {
	GetWalletByShop(ctx context.Context, shopID string) (*models.ShopWallet, error)
	CreateWallet(ctx context.Context, w *models.ShopWallet) error
	MutateWallet(ctx context.Context, shopID string, fn func(w *models.ShopWallet) error) (*models.ShopWallet, error)
	ListTransactions(ctx context.Context, shopID string, limit, offset int) ([]models.WalletTransaction, error)
}

// EventLog remembers consumed event ids
type EventLog interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// OfferCache holds the live offer listing between writes
type OfferCache interface {
	GetActiveOffers(ctx context.Context) ([]*models.Offer, bool, error)
	SetActiveOffers(ctx context.Context, offers []*models.Offer) error
	InvalidateActiveOffers(ctx context.Context) error
}

// EventPublisher emits domain events after a committed change
type EventPublisher interface {
	PublishWalletTransaction(ctx context.Context, event *models.WalletTransactionEvent) error
	PublishOfferRedeemed(ctx context.Context, event *models.OfferRedeemedEvent) error
}

type noopPublisher struct{}

func (noopPublisher) PublishWalletTransaction(context.Context, *models.WalletTransactionEvent) error {
	return nil
}

func (noopPublisher) PublishOfferRedeemed(context.Context, *models.OfferRedeemedEvent) error {
	return nil
}
