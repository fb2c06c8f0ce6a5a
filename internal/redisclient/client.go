package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"offer-wallet-service/internal/models"

	"github.com/go-redis/redis/v8"
)

const activeOffersKey = "offers:active"

type Client struct {
	rdb       *redis.Client
	offersTTL time.Duration
}

// NewClient creates a new Redis client. offersTTL bounds how long the active
// offer listing is served from cache.
func NewClient(addr, password string, db int, offersTTL time.Duration) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewFromRedis(rdb, offersTTL), nil
}

// NewFromRedis wraps an existing go-redis client
func NewFromRedis(rdb *redis.Client, offersTTL time.Duration) *Client {
	return &Client{rdb: rdb, offersTTL: offersTTL}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// GetActiveOffers returns the cached live offer listing. The bool is false on a miss.
func (c *Client) GetActiveOffers(ctx context.Context) ([]*models.Offer, bool, error) {
	data, err := c.rdb.Get(ctx, activeOffersKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read active offers: %w", err)
	}

	var offers []*models.Offer
	if err := json.Unmarshal(data, &offers); err != nil {
		// a corrupt entry is treated as a miss and overwritten
		return nil, false, nil
	}
	return offers, true, nil
}

// SetActiveOffers caches the live offer listing
func (c *Client) SetActiveOffers(ctx context.Context, offers []*models.Offer) error {
	if offers == nil {
		offers = []*models.Offer{}
	}
	data, err := json.Marshal(offers)
	if err != nil {
		return fmt.Errorf("failed to marshal active offers: %w", err)
	}
	return c.rdb.Set(ctx, activeOffersKey, data, c.offersTTL).Err()
}

// InvalidateActiveOffers drops the cached listing
func (c *Client) InvalidateActiveOffers(ctx context.Context) error {
	return c.rdb.Del(ctx, activeOffersKey).Err()
}

// ClaimIdempotencyKey stores an idempotency key with TTL.
// It returns false if the key was already claimed.
func (c *Client) ClaimIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("idempotency:%s", key), time.Now().Unix(), ttl).Result()
}

// ReleaseIdempotencyKey forgets a claimed key so a failed request can be retried
func (c *Client) ReleaseIdempotencyKey(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("idempotency:%s", key)).Err()
}

// AcquireLock acquires a distributed lock
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}
