// Package memstore is an in-memory implementation of the offer, wallet and
// processed-event repositories. Wallet mutations are serialized per shop;
// offer edits use the same version check as the PostgreSQL store and usage
// writes are serialized by the store lock.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"offer-wallet-service/internal/models"
	"offer-wallet-service/internal/store"
)

type Store struct {
	mu          sync.RWMutex
	offers      map[string]*models.Offer
	offerCodes  map[string]string
	wallets     map[string]*models.ShopWallet
	walletLocks map[string]*sync.Mutex
	events      map[string]string
}

// New creates an empty store
func New() *Store {
	return &Store{
		offers:      make(map[string]*models.Offer),
		offerCodes:  make(map[string]string),
		wallets:     make(map[string]*models.ShopWallet),
		walletLocks: make(map[string]*sync.Mutex),
		events:      make(map[string]string),
	}
}

// Ping always succeeds
func (s *Store) Ping(context.Context) error {
	return nil
}

// CreateOffer stores a new offer at version 1
func (s *Store) CreateOffer(_ context.Context, o *models.Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.offers[o.ID]; ok {
		return fmt.Errorf("offer %s: %w", o.ID, store.ErrAlreadyExists)
	}
	if o.Code != "" {
		if _, ok := s.offerCodes[o.Code]; ok {
			return fmt.Errorf("offer code %q: %w", o.Code, store.ErrAlreadyExists)
		}
		s.offerCodes[o.Code] = o.ID
	}

	o.Version = 1
	s.offers[o.ID] = o.Clone()
	return nil
}

// GetOffer returns a copy of the offer
func (s *Store) GetOffer(_ context.Context, id string) (*models.Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.offers[id]
	if !ok {
		return nil, fmt.Errorf("offer %s: %w", id, store.ErrNotFound)
	}
	return o.Clone(), nil
}

// GetOfferByCode returns a copy of the offer with the given code
func (s *Store) GetOfferByCode(ctx context.Context, code string) (*models.Offer, error) {
	s.mu.RLock()
	id, ok := s.offerCodes[strings.ToUpper(code)]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("offer %s: %w", code, store.ErrNotFound)
	}
	return s.GetOffer(ctx, id)
}

// ListOffers returns offers matching the filter, highest priority first
func (s *Store) ListOffers(_ context.Context, filter models.OfferFilter) ([]*models.Offer, error) {
	filter.Code = strings.ToUpper(filter.Code)
	return s.collect(filter.Matches), nil
}

// ListLiveOffers returns visible, non-draft, non-disabled offers whose window contains now
func (s *Store) ListLiveOffers(_ context.Context, now time.Time) ([]*models.Offer, error) {
	return s.collect(func(o *models.Offer) bool {
		return o.IsVisible && !o.Status.Sticky() && !now.Before(o.FromDate) && !now.After(o.ToDate)
	}), nil
}

func (s *Store) collect(keep func(o *models.Offer) bool) []*models.Offer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Offer, 0, len(s.offers))
	for _, o := range s.offers {
		if keep(o) {
			result = append(result, o.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Priority != result[j].Priority {
			return result[i].Priority > result[j].Priority
		}
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// UpdateOffer replaces the editable fields if the version is unchanged
func (s *Store) UpdateOffer(_ context.Context, o *models.Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.checkVersion(o)
	if err != nil {
		return err
	}

	if o.Code != current.Code {
		if o.Code != "" {
			if owner, ok := s.offerCodes[o.Code]; ok && owner != o.ID {
				return fmt.Errorf("offer code %q: %w", o.Code, store.ErrAlreadyExists)
			}
			s.offerCodes[o.Code] = o.ID
		}
		if current.Code != "" {
			delete(s.offerCodes, current.Code)
		}
	}

	next := o.Clone()
	next.Usage = current.Usage
	next.CreatedAt = current.CreatedAt
	next.CreatedBy = current.CreatedBy
	next.Version = current.Version + 1
	s.offers[o.ID] = next
	o.Version = next.Version
	return nil
}

// MutateOfferUsage runs fn on a copy of the offer under the store lock and
// keeps the usage records fn appends along with the counter and status
func (s *Store) MutateOfferUsage(_ context.Context, id string, fn func(o *models.Offer) error) (*models.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.offers[id]
	if !ok {
		return nil, fmt.Errorf("offer %s: %w", id, store.ErrNotFound)
	}

	working := current.Clone()
	seen := len(working.Usage.UsedBy)
	if err := fn(working); err != nil {
		return nil, err
	}
	added := working.Usage.UsedBy[seen:]
	if len(added) == 0 {
		return working, nil
	}

	next := current.Clone()
	next.Usage.TotalUses += int64(len(added))
	next.Usage.UsedBy = append(next.Usage.UsedBy, added...)
	next.Status = working.Status
	next.UpdatedAt = working.UpdatedAt
	next.Version = current.Version + 1
	s.offers[id] = next

	working.Version = next.Version
	return working, nil
}

func (s *Store) checkVersion(o *models.Offer) (*models.Offer, error) {
	current, ok := s.offers[o.ID]
	if !ok {
		return nil, fmt.Errorf("offer %s: %w", o.ID, store.ErrNotFound)
	}
	if current.Version != o.Version {
		return nil, fmt.Errorf("offer %s: %w", o.ID, store.ErrVersionConflict)
	}
	return current, nil
}

// GetWalletByShop returns a copy of the shop's wallet with its log
func (s *Store) GetWalletByShop(_ context.Context, shopID string) (*models.ShopWallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.wallets[shopID]
	if !ok {
		return nil, fmt.Errorf("wallet for shop %s: %w", shopID, store.ErrNotFound)
	}
	return w.Clone(), nil
}

// CreateWallet stores an empty wallet unless the shop already has one
func (s *Store) CreateWallet(_ context.Context, w *models.ShopWallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.wallets[w.Shop]; ok {
		return fmt.Errorf("wallet for shop %s: %w", w.Shop, store.ErrAlreadyExists)
	}
	w.Version = 1
	s.wallets[w.Shop] = w.Clone()
	s.walletLocks[w.Shop] = &sync.Mutex{}
	return nil
}

// MutateWallet runs fn under the shop's lock with an empty transaction log and
// commits the counters and appended transactions only if fn succeeds
func (s *Store) MutateWallet(_ context.Context, shopID string, fn func(w *models.ShopWallet) error) (*models.ShopWallet, error) {
	s.mu.RLock()
	lock, ok := s.walletLocks[shopID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("wallet for shop %s: %w", shopID, store.ErrNotFound)
	}

	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	current := s.wallets[shopID]
	working := *current
	s.mu.RUnlock()
	working.Transactions = nil

	if err := fn(&working); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := working
	next.Transactions = append(append([]models.WalletTransaction(nil), current.Transactions...), working.Transactions...)
	next.Version = current.Version + 1
	s.wallets[shopID] = &next

	working.Version = next.Version
	return &working, nil
}

// ListTransactions returns a page of the wallet's log, newest first
func (s *Store) ListTransactions(_ context.Context, shopID string, limit, offset int) ([]models.WalletTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.wallets[shopID]
	if !ok {
		return []models.WalletTransaction{}, nil
	}

	result := make([]models.WalletTransaction, 0, limit)
	for i := len(w.Transactions) - 1 - offset; i >= 0 && len(result) < limit; i-- {
		result = append(result, w.Transactions[i])
	}
	return result, nil
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(_ context.Context, eventID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.events[eventID]
	return ok, nil
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(_ context.Context, eventID, eventType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[eventID]; !ok {
		s.events[eventID] = eventType
	}
	return nil
}
