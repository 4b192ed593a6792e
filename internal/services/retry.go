package services

import (
	"context"
	"errors"
	"time"

	"slot-auction/internal/domain"
)

const retryBackoff = 10 * time.Millisecond

// withRetry runs fn up to attempts times while it fails with ErrTxConflict.
// Every attempt starts a fresh transaction, so it re-reads and re-validates
// current state. onConflict is called before each retry.
func withRetry(ctx context.Context, attempts int, onConflict func(attempt int), fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if !errors.Is(err, domain.ErrTxConflict) || attempt == attempts {
			return err
		}
		if onConflict != nil {
			onConflict(attempt)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * retryBackoff):
		}
	}
	return err
}
