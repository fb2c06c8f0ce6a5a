package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"offer-wallet-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer messageWriter
	topic  string
	logger *zap.Logger
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            3,
		WriteTimeout:           10 * time.Second,
		ReadTimeout:            10 * time.Second,
		AllowAutoTopicCreation: true,
	}

	return &Producer{writer: writer, topic: topic, logger: util.GetLogger()}
}

// PublishEvent publishes an event to Kafka. Events with the same key land on
// the same partition.
func (p *Producer) PublishEvent(ctx context.Context, key string, event interface{}) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: eventBytes,
		Time:  time.Now(),
	}

	err = p.writer.WriteMessages(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	p.logger.Debug("Published event",
		zap.String("topic", p.topic),
		zap.String("key", key),
		zap.String("type", fmt.Sprintf("%T", event)))
	return nil
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Forward writes msg's key, value and headers to the producer's topic
func (p *Producer) Forward(ctx context.Context, msg kafka.Message) error {
	out := kafka.Message{
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: msg.Headers,
		Time:    time.Now(),
	}
	if err := p.writer.WriteMessages(ctx, out); err != nil {
		return fmt.Errorf("failed to forward message to %s: %w", p.topic, err)
	}
	return nil
}

// PermanentError marks a message that no retry can handle, such as a
// malformed payload
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent wraps err so the consumer stops retrying the message
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// Dead-letter headers
const (
	HeaderError           = "x-error"
	HeaderSourceTopic     = "x-source-topic"
	HeaderSourcePartition = "x-source-partition"
	HeaderSourceOffset    = "x-source-offset"
)

const (
	defaultRetryBackoff = 500 * time.Millisecond
	maxRetryBackoff     = 30 * time.Second
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer represents a Kafka consumer
type Consumer struct {
	reader      messageReader
	topic       string
	deadLetter  *Producer
	maxAttempts int
	backoff     time.Duration
	maxBackoff  time.Duration
	logger      *zap.Logger
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		StartOffset:    kafka.FirstOffset,
	})

	return &Consumer{
		reader:     reader,
		topic:      topic,
		backoff:    defaultRetryBackoff,
		maxBackoff: maxRetryBackoff,
		logger:     util.GetLogger(),
	}
}

// WithDeadLetter parks messages on producer's topic when they fail permanently
// or still fail after maxAttempts tries. Without a dead-letter producer a
// failing message is retried until it succeeds.
func (c *Consumer) WithDeadLetter(producer *Producer, maxAttempts int) *Consumer {
	c.deadLetter = producer
	c.maxAttempts = maxAttempts
	return c
}

// Close closes the consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// MessageHandler is a function type for handling messages
type MessageHandler func(ctx context.Context, msg kafka.Message) error

// StartConsuming fetches messages until ctx is cancelled. Messages are handled
// one at a time and committed only once handled or dead-lettered, so no offset
// past a failing message is ever committed.
func (c *Consumer) StartConsuming(ctx context.Context, handler MessageHandler) error {
	c.logger.Info("Starting Kafka consumer", zap.String("topic", c.topic))

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.logger.Info("Consumer context cancelled, stopping", zap.String("topic", c.topic))
				return ctx.Err()
			}
			c.logger.Error("Error fetching message", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		if err := c.process(ctx, handler, msg); err != nil {
			c.logger.Info("Consumer context cancelled, stopping", zap.String("topic", c.topic))
			return err
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("Error committing message",
				zap.Int64("offset", msg.Offset),
				zap.Int("partition", msg.Partition),
				zap.Error(err))
		}
	}
}

// process handles msg until it succeeds or is dead-lettered. It only returns
// an error when ctx is done.
func (c *Consumer) process(ctx context.Context, handler MessageHandler, msg kafka.Message) error {
	for attempt := 1; ; attempt++ {
		err := handler(ctx, msg)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var permanent *PermanentError
		isPermanent := errors.As(err, &permanent)
		c.logger.Error("Error handling message",
			zap.Int64("offset", msg.Offset),
			zap.Int("partition", msg.Partition),
			zap.Int("attempt", attempt),
			zap.Bool("permanent", isPermanent),
			zap.Error(err))

		switch {
		case isPermanent && c.deadLetter == nil:
			c.logger.Error("Dropping message that cannot be handled",
				zap.Int64("offset", msg.Offset),
				zap.Int("partition", msg.Partition))
			util.MessagesDeadLetteredTotal.WithLabelValues(c.topic, "dropped").Inc()
			return nil
		case c.deadLetter != nil && (isPermanent || (c.maxAttempts > 0 && attempt >= c.maxAttempts)):
			dlqErr := c.park(ctx, msg, err)
			if dlqErr == nil {
				reason := "exhausted"
				if isPermanent {
					reason = "permanent"
				}
				util.MessagesDeadLetteredTotal.WithLabelValues(c.topic, reason).Inc()
				return nil
			}
			c.logger.Error("Failed to dead-letter message", zap.Error(dlqErr))
		}

		util.MessageRetriesTotal.WithLabelValues(c.topic).Inc()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryDelay(attempt)):
		}
	}
}

func (c *Consumer) park(ctx context.Context, msg kafka.Message, cause error) error {
	headers := append([]kafka.Header(nil), msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: HeaderError, Value: []byte(cause.Error())},
		kafka.Header{Key: HeaderSourceTopic, Value: []byte(c.topic)},
		kafka.Header{Key: HeaderSourcePartition, Value: []byte(strconv.Itoa(msg.Partition))},
		kafka.Header{Key: HeaderSourceOffset, Value: []byte(strconv.FormatInt(msg.Offset, 10))},
	)
	msg.Headers = headers

	if err := c.deadLetter.Forward(ctx, msg); err != nil {
		return err
	}
	c.logger.Warn("Message dead-lettered",
		zap.Int64("offset", msg.Offset),
		zap.Int("partition", msg.Partition),
		zap.String("dead_letter_topic", c.deadLetter.topic))
	return nil
}

func (c *Consumer) retryDelay(attempt int) time.Duration {
	d := c.backoff
	for i := 1; i < attempt && d < c.maxBackoff; i++ {
		d *= 2
	}
	if d > c.maxBackoff {
		d = c.maxBackoff
	}
	return d
}
