package broker

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"offer-wallet-service/internal/models"
	"offer-wallet-service/internal/util"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	messages []kafka.Message
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func newFakeProducer(topic string) (*Producer, *fakeWriter) {
	w := &fakeWriter{}
	return &Producer{writer: w, topic: topic, logger: util.GetLogger()}, w
}

func TestPublishWalletTransactionKeysByShop(t *testing.T) {
	walletProducer, walletWriter := newFakeProducer("wallet-events")
	offerProducer, offerWriter := newFakeProducer("offer-events")
	ep := NewEventPublisher(walletProducer, offerProducer)

	event := &models.WalletTransactionEvent{
		BaseEvent: models.BaseEvent{EventID: "e1", EventType: models.EventTypeWalletCredited, Timestamp: time.Now()},
		ShopID:    "shop-1",
		WalletID:  "w1",
		Balance:   decimal.NewFromInt(10),
	}
	require.NoError(t, ep.PublishWalletTransaction(context.Background(), event))

	require.Len(t, walletWriter.messages, 1)
	assert.Empty(t, offerWriter.messages)
	assert.Equal(t, "shop-shop-1", string(walletWriter.messages[0].Key))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(walletWriter.messages[0].Value, &decoded))
	assert.Equal(t, models.EventTypeWalletCredited, decoded["event_type"])
	assert.Equal(t, "shop-1", decoded["shop_id"])
}

func TestHandleMessageRoutesByEventType(t *testing.T) {
	eh := NewEventHandler()

	var airtime *models.AirtimeSaleCompletedEvent
	var credit *models.OrderCreditIssuedEvent
	eh.OnAirtimeSaleCompleted(func(_ context.Context, e *models.AirtimeSaleCompletedEvent) error {
		airtime = e
		return nil
	})
	eh.OnOrderCreditIssued(func(_ context.Context, e *models.OrderCreditIssuedEvent) error {
		credit = e
		return nil
	})

	msg := kafka.Message{Value: []byte(`{"event_id":"e1","event_type":"AIRTIME_SALE_COMPLETED",
		"shop_id":"shop-1","transaction_id":"at-1","user_id":"u1","commission":"12.50"}`)}
	require.NoError(t, eh.HandleMessage(context.Background(), msg))
	require.NotNil(t, airtime)
	assert.Equal(t, "at-1", airtime.TransactionID)
	assert.True(t, decimal.RequireFromString("12.5").Equal(airtime.Commission))
	assert.Nil(t, credit)

	msg = kafka.Message{Value: []byte(`{"event_id":"e2","event_type":"ORDER_CREDIT_ISSUED",
		"shop_id":"shop-1","order_id":"o-1","user_id":"u1","amount":40}`)}
	require.NoError(t, eh.HandleMessage(context.Background(), msg))
	require.NotNil(t, credit)
	assert.Equal(t, "o-1", credit.OrderID)

	msg = kafka.Message{Value: []byte(`{"event_id":"e3","event_type":"SOMETHING_ELSE"}`)}
	assert.NoError(t, eh.HandleMessage(context.Background(), msg))

	msg = kafka.Message{Value: []byte(`not json`)}
	assert.Error(t, eh.HandleMessage(context.Background(), msg))
}

type fakeReader struct {
	mu        sync.Mutex
	pending   []kafka.Message
	committed []int64
	drained   context.CancelFunc
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.pending) == 0 {
		r.mu.Unlock()
		r.drained()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.pending[0]
	r.pending = r.pending[1:]
	r.mu.Unlock()
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func newFakeConsumer(offsets ...int64) (*Consumer, *fakeReader, context.Context) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &fakeReader{drained: cancel}
	for _, o := range offsets {
		r.pending = append(r.pending, kafka.Message{Offset: o, Value: []byte(strconv.FormatInt(o, 10))})
	}
	c := &Consumer{reader: r, topic: "wallet-events", logger: util.GetLogger()}
	return c, r, ctx
}

func TestConsumerRetriesFailedMessageBeforeMovingOn(t *testing.T) {
	c, r, ctx := newFakeConsumer(0, 1, 2)

	var handled []int64
	failures := 0
	err := c.StartConsuming(ctx, func(_ context.Context, msg kafka.Message) error {
		handled = append(handled, msg.Offset)
		if msg.Offset == 1 && failures < 2 {
			failures++
			return errors.New("database unavailable")
		}
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []int64{0, 1, 1, 1, 2}, handled)
	assert.Equal(t, []int64{0, 1, 2}, r.committed)
}

func TestConsumerNeverCommitsPastFailingMessage(t *testing.T) {
	c, r, ctx := newFakeConsumer(0, 1, 2)
	cancelAfter := 3

	var handled []int64
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	err := c.StartConsuming(ctx, func(_ context.Context, msg kafka.Message) error {
		handled = append(handled, msg.Offset)
		if msg.Offset == 1 {
			cancelAfter--
			if cancelAfter == 0 {
				cancel()
			}
			return errors.New("wallet is frozen")
		}
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []int64{0}, r.committed)
	assert.NotContains(t, handled, int64(2))
}

func TestConsumerDeadLettersExhaustedAndPermanentFailures(t *testing.T) {
	c, r, ctx := newFakeConsumer(0, 1, 2)
	dlq, dlqWriter := newFakeProducer("wallet-events-dlq")
	c.WithDeadLetter(dlq, 2)

	attempts := map[int64]int{}
	err := c.StartConsuming(ctx, func(_ context.Context, msg kafka.Message) error {
		attempts[msg.Offset]++
		switch msg.Offset {
		case 0:
			return errors.New("database unavailable")
		case 1:
			return Permanent(errors.New("malformed payload"))
		}
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, map[int64]int{0: 2, 1: 1, 2: 1}, attempts)
	assert.Equal(t, []int64{0, 1, 2}, r.committed)

	require.Len(t, dlqWriter.messages, 2)
	assert.Equal(t, "0", string(dlqWriter.messages[0].Value))
	headers := map[string]string{}
	for _, h := range dlqWriter.messages[1].Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "malformed payload", headers[HeaderError])
	assert.Equal(t, "wallet-events", headers[HeaderSourceTopic])
	assert.Equal(t, "1", headers[HeaderSourceOffset])
}

func TestConsumerDropsPermanentFailureWithoutDeadLetter(t *testing.T) {
	c, r, ctx := newFakeConsumer(0, 1)

	calls := 0
	err := c.StartConsuming(ctx, func(_ context.Context, msg kafka.Message) error {
		calls++
		if msg.Offset == 0 {
			return Permanent(errors.New("malformed payload"))
		}
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []int64{0, 1}, r.committed)
}

func TestMalformedMessageIsPermanent(t *testing.T) {
	eh := NewEventHandler()

	err := eh.HandleMessage(context.Background(), kafka.Message{Value: []byte(`not json`)})
	var permanent *PermanentError
	assert.ErrorAs(t, err, &permanent)
}
