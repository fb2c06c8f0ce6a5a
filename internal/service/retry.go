package service

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"offer-wallet-service/internal/store"
	"offer-wallet-service/internal/util"
)

// DefaultConflictRetryAttempts bounds read-modify-write retries on version conflicts
const DefaultConflictRetryAttempts = 3

const (
	conflictBackoff    = 2 * time.Millisecond
	maxConflictBackoff = 20 * time.Millisecond
)

// retryOnConflict runs fn until it succeeds, fails with anything other than
// a version conflict, or attempts are used up. fn must re-read its aggregate.
func retryOnConflict(ctx context.Context, attempts int, operation string, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			util.ConflictRetriesTotal.WithLabelValues(operation).Inc()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff(i)):
			}
		}

		err = fn()
		if !errors.Is(err, store.ErrVersionConflict) {
			return err
		}
	}
	return err
}

func backoff(attempt int) time.Duration {
	d := conflictBackoff * time.Duration(attempt)
	if d > maxConflictBackoff {
		d = maxConflictBackoff
	}
	return d + time.Duration(rand.Int63n(int64(conflictBackoff)))
}
