package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"offer-wallet-service/internal/ledger"
	"offer-wallet-service/internal/models"
	"offer-wallet-service/internal/store"
	"offer-wallet-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ErrShopRequired is returned when a wallet operation names no shop
var ErrShopRequired = errors.New("shop id is required")

// Transaction page bounds
const (
	DefaultTransactionLimit = 50
	MaxTransactionLimit     = 200
)

// WalletService handles shop wallet balances and their ledger
type WalletService struct {
	wallets   WalletRepository
	publisher EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewWalletService creates a new wallet service. publisher may be nil.
func NewWalletService(wallets WalletRepository, publisher EventPublisher) *WalletService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &WalletService{
		wallets:   wallets,
		publisher: publisher,
		logger:    util.GetLogger(),
		now:       time.Now,
	}
}

// GetOrCreateWallet returns the shop's wallet, creating an empty one on first use
func (s *WalletService) GetOrCreateWallet(ctx context.Context, shopID string) (*models.ShopWallet, error) {
	ctx, span := util.StartSpan(ctx, "WalletService.GetOrCreateWallet", attribute.String("shop_id", shopID))
	defer span.End()

	shopID = strings.TrimSpace(shopID)
	if shopID == "" {
		return nil, ErrShopRequired
	}

	w, err := s.wallets.GetWalletByShop(ctx, shopID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		util.RecordError(span, err)
		return nil, err
	}

	if err := s.createWallet(ctx, shopID); err != nil {
		util.RecordError(span, err)
		return nil, err
	}
	return s.wallets.GetWalletByShop(ctx, shopID)
}

// createWallet stores an empty wallet for the shop. Losing the race to a
// concurrent creator is not an error.
func (s *WalletService) createWallet(ctx context.Context, shopID string) error {
	w := ledger.NewWallet(shopID, s.now())
	err := s.wallets.CreateWallet(ctx, w)
	if errors.Is(err, store.ErrAlreadyExists) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}

	s.logger.Info("Wallet created", zap.String("shop_id", shopID), zap.String("wallet_id", w.ID))
	return nil
}

// mutateWallet runs fn on the shop's locked wallet, creating the wallet first
// if the shop has none yet
func (s *WalletService) mutateWallet(ctx context.Context, shopID string, fn func(w *models.ShopWallet) error) (*models.ShopWallet, error) {
	w, err := s.wallets.MutateWallet(ctx, shopID, fn)
	if !errors.Is(err, store.ErrNotFound) {
		return w, err
	}
	if err := s.createWallet(ctx, shopID); err != nil {
		return nil, err
	}
	return s.wallets.MutateWallet(ctx, shopID, fn)
}

// AddCredit credits the shop's wallet
func (s *WalletService) AddCredit(ctx context.Context, shopID string, entry models.WalletEntry) (*models.WalletResult, error) {
	ctx, span := util.StartSpan(ctx, "WalletService.AddCredit", attribute.String("shop_id", shopID))
	defer span.End()

	result, err := s.mutate(ctx, shopID, models.EventTypeWalletCredited, func(w *models.ShopWallet) (*models.WalletTransaction, error) {
		return ledger.Credit(w, entry, s.now())
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	util.WalletCreditsTotal.WithLabelValues(string(entry.Source)).Inc()
	return result, nil
}

// DeductCredit debits the shop's wallet. The balance never goes below zero.
func (s *WalletService) DeductCredit(ctx context.Context, shopID string, entry models.WalletEntry) (*models.WalletResult, error) {
	ctx, span := util.StartSpan(ctx, "WalletService.DeductCredit", attribute.String("shop_id", shopID))
	defer span.End()

	result, err := s.mutate(ctx, shopID, models.EventTypeWalletDebited, func(w *models.ShopWallet) (*models.WalletTransaction, error) {
		return ledger.Debit(w, entry, s.now())
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	util.WalletDebitsTotal.WithLabelValues(string(entry.Source)).Inc()
	return result, nil
}

// AdjustBalance applies a signed admin correction to the shop's wallet
func (s *WalletService) AdjustBalance(ctx context.Context, shopID string, delta decimal.Decimal, description, performedBy string) (*models.WalletResult, error) {
	ctx, span := util.StartSpan(ctx, "WalletService.AdjustBalance", attribute.String("shop_id", shopID))
	defer span.End()

	result, err := s.mutate(ctx, shopID, models.EventTypeWalletAdjusted, func(w *models.ShopWallet) (*models.WalletTransaction, error) {
		return ledger.Adjust(w, delta, description, performedBy, s.now())
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	util.WalletAdjustmentsTotal.Inc()
	return result, nil
}

func (s *WalletService) mutate(
	ctx context.Context,
	shopID string,
	eventType string,
	apply func(w *models.ShopWallet) (*models.WalletTransaction, error),
) (*models.WalletResult, error) {
	shopID = strings.TrimSpace(shopID)
	if shopID == "" {
		return nil, ErrShopRequired
	}

	start := time.Now()
	var tx models.WalletTransaction
	w, err := s.mutateWallet(ctx, shopID, func(w *models.ShopWallet) error {
		t, err := apply(w)
		if err != nil {
			return err
		}
		tx = *t
		return nil
	})
	util.WalletMutationLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		s.observeRejection(shopID, err)
		return nil, err
	}
	w.Transactions = nil

	s.logger.Info("Wallet transaction committed",
		zap.String("shop_id", shopID),
		zap.String("type", string(tx.Type)),
		zap.String("source", string(tx.Source)),
		zap.String("amount", tx.Amount.StringFixed(2)),
		zap.String("balance", w.Balance.StringFixed(2)))

	event := &models.WalletTransactionEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.NewString(),
			EventType: eventType,
			Timestamp: tx.Timestamp,
		},
		ShopID:      shopID,
		WalletID:    w.ID,
		Transaction: tx,
		Balance:     w.Balance,
	}
	if err := s.publisher.PublishWalletTransaction(ctx, event); err != nil {
		s.logger.Error("Failed to publish wallet event",
			zap.String("event_type", eventType),
			zap.Error(err))
	}

	return &models.WalletResult{Wallet: w, Transaction: &tx}, nil
}

func (s *WalletService) observeRejection(shopID string, err error) {
	var insufficient *ledger.InsufficientBalanceError
	var notActive *ledger.WalletNotActiveError

	reason := "error"
	switch {
	case errors.As(err, &insufficient):
		reason = "insufficient_balance"
	case errors.As(err, &notActive):
		reason = "not_active"
	case errors.Is(err, ledger.ErrInvalidAmount):
		reason = "invalid_amount"
	case errors.Is(err, ledger.ErrInvalidSource):
		reason = "invalid_source"
	default:
		s.logger.Error("Wallet mutation failed", zap.String("shop_id", shopID), zap.Error(err))
	}
	util.WalletRejectionsTotal.WithLabelValues(reason).Inc()
}

// SetStatus changes the wallet's status
func (s *WalletService) SetStatus(ctx context.Context, shopID string, status models.WalletStatus) (*models.ShopWallet, error) {
	ctx, span := util.StartSpan(ctx, "WalletService.SetStatus", attribute.String("shop_id", shopID))
	defer span.End()

	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ledger.ErrInvalidStatus, status)
	}
	shopID = strings.TrimSpace(shopID)
	if shopID == "" {
		return nil, ErrShopRequired
	}

	w, err := s.mutateWallet(ctx, shopID, func(w *models.ShopWallet) error {
		return ledger.SetStatus(w, status, s.now())
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}
	w.Transactions = nil

	s.logger.Info("Wallet status changed", zap.String("shop_id", shopID), zap.String("status", string(status)))
	return w, nil
}

// Transactions returns a page of the shop's ledger, newest first
func (s *WalletService) Transactions(ctx context.Context, shopID string, limit, offset int) ([]models.WalletTransaction, error) {
	ctx, span := util.StartSpan(ctx, "WalletService.Transactions", attribute.String("shop_id", shopID))
	defer span.End()

	if strings.TrimSpace(shopID) == "" {
		return nil, ErrShopRequired
	}
	if limit <= 0 {
		limit = DefaultTransactionLimit
	}
	if limit > MaxTransactionLimit {
		limit = MaxTransactionLimit
	}
	if offset < 0 {
		offset = 0
	}

	txs, err := s.wallets.ListTransactions(ctx, strings.TrimSpace(shopID), limit, offset)
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []models.WalletTransaction{}
	}
	return txs, nil
}

// Verify replays the shop's ledger and compares it to the stored counters
func (s *WalletService) Verify(ctx context.Context, shopID string) (ledger.Report, error) {
	ctx, span := util.StartSpan(ctx, "WalletService.Verify", attribute.String("shop_id", shopID))
	defer span.End()

	w, err := s.GetOrCreateWallet(ctx, shopID)
	if err != nil {
		return ledger.Report{}, err
	}

	report := ledger.Verify(w)
	if !report.Consistent {
		s.logger.Error("Wallet ledger inconsistent",
			zap.String("shop_id", w.Shop),
			zap.String("problem", report.Problem))
	}
	return report, nil
}
