package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"offer-wallet-service/internal/broker"
	"offer-wallet-service/internal/ledger"
	"offer-wallet-service/internal/models"
	"offer-wallet-service/internal/service"
	"offer-wallet-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const eventLockTTL = 30 * time.Second

// Locker serializes handling of one event across replicas
type Locker interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
}

// ErrEventLocked is returned when another replica is handling the same event.
// The consumer retries the message after a backoff.
var ErrEventLocked = errors.New("event is being processed elsewhere")

// LedgerWorker credits shop wallets from airtime sale and order credit events
type LedgerWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	wallets      *service.WalletService
	events       service.EventLog
	locker       Locker
	logger       *zap.Logger
}

// NewLedgerWorker creates a new ledger worker. consumer and locker may be nil.
func NewLedgerWorker(
	consumer *broker.Consumer,
	wallets *service.WalletService,
	events service.EventLog,
	locker Locker,
) *LedgerWorker {
	w := &LedgerWorker{
		consumer: consumer,
		wallets:  wallets,
		events:   events,
		locker:   locker,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnAirtimeSaleCompleted(w.HandleAirtimeSaleCompleted)
	eventHandler.OnOrderCreditIssued(w.HandleOrderCreditIssued)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *LedgerWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting ledger worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *LedgerWorker) Stop() error {
	w.logger.Info("Stopping ledger worker")
	return w.consumer.Close()
}

// HandleAirtimeSaleCompleted credits the shop with the sale's commission
func (w *LedgerWorker) HandleAirtimeSaleCompleted(ctx context.Context, event *models.AirtimeSaleCompletedEvent) error {
	ctx, span := util.StartSpan(ctx, "LedgerWorker.HandleAirtimeSaleCompleted")
	defer span.End()

	entry := models.WalletEntry{
		Amount:      event.Commission,
		Description: airtimeDescription(event),
		Source:      models.SourceAirtimeSale,
		RelatedID:   event.TransactionID,
		PerformedBy: event.UserID,
	}
	return w.credit(ctx, event.BaseEvent, event.ShopID, entry)
}

// HandleOrderCreditIssued credits the shop for an order
func (w *LedgerWorker) HandleOrderCreditIssued(ctx context.Context, event *models.OrderCreditIssuedEvent) error {
	ctx, span := util.StartSpan(ctx, "LedgerWorker.HandleOrderCreditIssued")
	defer span.End()

	entry := models.WalletEntry{
		Amount:      event.Amount,
		Description: fmt.Sprintf("Credit for order %s", event.OrderID),
		Source:      models.SourceOrderCredit,
		RelatedID:   event.OrderID,
		PerformedBy: event.UserID,
	}
	return w.credit(ctx, event.BaseEvent, event.ShopID, entry)
}

func airtimeDescription(event *models.AirtimeSaleCompletedEvent) string {
	if event.Phone == "" {
		return "Airtime sale commission"
	}
	return fmt.Sprintf("Airtime sale commission for %s", event.Phone)
}

func (w *LedgerWorker) credit(ctx context.Context, base models.BaseEvent, shopID string, entry models.WalletEntry) error {
	if w.locker != nil {
		lockKey := "event:" + base.EventID
		acquired, err := w.locker.AcquireLock(ctx, lockKey, eventLockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire event lock: %w", err)
		}
		if !acquired {
			return ErrEventLocked
		}
		defer func() {
			if err := w.locker.ReleaseLock(ctx, lockKey); err != nil {
				w.logger.Warn("Failed to release event lock", zap.String("event_id", base.EventID), zap.Error(err))
			}
		}()
	}

	processed, err := w.events.IsEventProcessed(ctx, base.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		w.logger.Info("Event already processed", zap.String("event_id", base.EventID))
		util.EventsConsumedTotal.WithLabelValues(base.EventType, "duplicate").Inc()
		return nil
	}

	if entry.Amount.LessThanOrEqual(decimal.Zero) {
		// nothing to credit; remember the event so it is not re-evaluated
		w.logger.Warn("Skipping event without a positive amount",
			zap.String("event_id", base.EventID),
			zap.String("amount", entry.Amount.String()))
		util.EventsConsumedTotal.WithLabelValues(base.EventType, "skipped").Inc()
		return w.markProcessed(ctx, base)
	}

	result, err := w.wallets.AddCredit(ctx, shopID, entry)
	if err != nil {
		err = fmt.Errorf("failed to credit shop %s: %w", shopID, err)
		if isInvalidEntry(err) {
			util.EventsConsumedTotal.WithLabelValues(base.EventType, "rejected").Inc()
			return broker.Permanent(err)
		}
		util.EventsConsumedTotal.WithLabelValues(base.EventType, "failed").Inc()
		return err
	}

	util.EventsConsumedTotal.WithLabelValues(base.EventType, "applied").Inc()
	w.logger.Info("Wallet credited from event",
		zap.String("event_id", base.EventID),
		zap.String("event_type", base.EventType),
		zap.String("shop_id", shopID),
		zap.String("balance", result.Wallet.Balance.StringFixed(2)))

	return w.markProcessed(ctx, base)
}

// isInvalidEntry reports whether the event itself is unusable, so redelivery
// cannot succeed
func isInvalidEntry(err error) bool {
	return errors.Is(err, service.ErrShopRequired) ||
		errors.Is(err, ledger.ErrInvalidAmount) ||
		errors.Is(err, ledger.ErrInvalidSource)
}

func (w *LedgerWorker) markProcessed(ctx context.Context, base models.BaseEvent) error {
	if err := w.events.MarkEventProcessed(ctx, base.EventID, base.EventType); err != nil {
		w.logger.Error("Failed to mark event processed", zap.Error(err))
	}
	return nil
}
