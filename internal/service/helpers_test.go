package service

import (
	"context"
	"sync"
	"time"

	"offer-wallet-service/internal/models"
	"offer-wallet-service/internal/store/memstore"

	"github.com/shopspring/decimal"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time {
	return testNow
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func int64Ptr(n int64) *int64 {
	return &n
}

type recordingPublisher struct {
	mu       sync.Mutex
	wallet   []*models.WalletTransactionEvent
	redeemed []*models.OfferRedeemedEvent
}

func (p *recordingPublisher) PublishWalletTransaction(_ context.Context, event *models.WalletTransactionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.wallet = append(p.wallet, event)
	return nil
}

func (p *recordingPublisher) PublishOfferRedeemed(_ context.Context, event *models.OfferRedeemedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.redeemed = append(p.redeemed, event)
	return nil
}

type memoryCache struct {
	mu          sync.Mutex
	offers      []*models.Offer
	hits        int
	sets        int
	invalidated int
}

func (c *memoryCache) GetActiveOffers(context.Context) ([]*models.Offer, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.offers == nil {
		return nil, false, nil
	}
	c.hits++
	out := make([]*models.Offer, len(c.offers))
	for i, o := range c.offers {
		out[i] = o.Clone()
	}
	return out, true, nil
}

func (c *memoryCache) SetActiveOffers(_ context.Context, offers []*models.Offer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.offers = make([]*models.Offer, len(offers))
	for i, o := range offers {
		c.offers[i] = o.Clone()
	}
	return nil
}

func (c *memoryCache) InvalidateActiveOffers(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated++
	c.offers = nil
	return nil
}

func newTestOfferService() (*OfferService, *memstore.Store, *recordingPublisher) {
	st := memstore.New()
	pub := &recordingPublisher{}
	svc := NewOfferService(st, nil, pub, DefaultConflictRetryAttempts)
	svc.now = fixedClock
	return svc, st, pub
}

func newTestWalletService() (*WalletService, *memstore.Store, *recordingPublisher) {
	st := memstore.New()
	pub := &recordingPublisher{}
	svc := NewWalletService(st, pub)
	svc.now = fixedClock
	return svc, st, pub
}

func draftOffer(name string, t models.OfferType, value string) *models.Offer {
	return &models.Offer{
		Name:          name,
		OfferType:     t,
		DiscountValue: dec(value),
		FromDate:      testNow.Add(-24 * time.Hour),
		ToDate:        testNow.Add(24 * time.Hour),
		Status:        models.OfferStatusActive,
		IsVisible:     true,
	}
}
