package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"offer-wallet-service/internal/models"
	"offer-wallet-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher publishes wallet and offer events to their topics
type EventPublisher struct {
	wallet *Producer
	offers *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(wallet, offers *Producer) *EventPublisher {
	return &EventPublisher{wallet: wallet, offers: offers}
}

// PublishWalletTransaction publishes a WalletCredited, WalletDebited or WalletAdjusted event.
// Events are keyed by shop so each wallet's events stay ordered.
func (ep *EventPublisher) PublishWalletTransaction(ctx context.Context, event *models.WalletTransactionEvent) error {
	key := fmt.Sprintf("shop-%s", event.ShopID)
	return ep.wallet.PublishEvent(ctx, key, event)
}

// PublishOfferRedeemed publishes OfferRedeemed event
func (ep *EventPublisher) PublishOfferRedeemed(ctx context.Context, event *models.OfferRedeemedEvent) error {
	key := fmt.Sprintf("offer-%s", event.OfferID)
	return ep.offers.PublishEvent(ctx, key, event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onAirtimeSaleCompleted func(context.Context, *models.AirtimeSaleCompletedEvent) error
	onOrderCreditIssued    func(context.Context, *models.OrderCreditIssuedEvent) error
	logger                 *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnAirtimeSaleCompleted registers a handler for AirtimeSaleCompleted events
func (eh *EventHandler) OnAirtimeSaleCompleted(handler func(context.Context, *models.AirtimeSaleCompletedEvent) error) {
	eh.onAirtimeSaleCompleted = handler
}

// OnOrderCreditIssued registers a handler for OrderCreditIssued events
func (eh *EventHandler) OnOrderCreditIssued(handler func(context.Context, *models.OrderCreditIssuedEvent) error) {
	eh.onOrderCreditIssued = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return Permanent(fmt.Errorf("failed to unmarshal base event: %w", err))
	}

	eh.logger.Debug("Handling event",
		zap.String("event_type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeAirtimeSaleCompleted:
		if eh.onAirtimeSaleCompleted != nil {
			var event models.AirtimeSaleCompletedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return Permanent(fmt.Errorf("failed to unmarshal AirtimeSaleCompleted event: %w", err))
			}
			return eh.onAirtimeSaleCompleted(ctx, &event)
		}

	case models.EventTypeOrderCreditIssued:
		if eh.onOrderCreditIssued != nil {
			var event models.OrderCreditIssuedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return Permanent(fmt.Errorf("failed to unmarshal OrderCreditIssued event: %w", err))
			}
			return eh.onOrderCreditIssued(ctx, &event)
		}

	default:
		eh.logger.Debug("Unhandled event type", zap.String("event_type", baseEvent.EventType))
	}

	return nil
}
