package source

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type RetryConfig struct {
	MaxRetries      int           // default 3
	InitialInterval time.Duration // default 100ms
	MaxInterval     time.Duration // default 2s
	MaxElapsedTime  time.Duration // default 10s
}

type retrying[T any] struct {
	inner Source[T]
	cfg   RetryConfig
}

// Retry re-issues failed fetches with exponential backoff. Only temporary
// FetchErrors (transport, 429, 5xx) are retried.
func Retry[T any](inner Source[T], cfg RetryConfig) Source[T] {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 2 * time.Second
	}
	if cfg.MaxElapsedTime <= 0 {
		cfg.MaxElapsedTime = 10 * time.Second
	}
	return &retrying[T]{inner: inner, cfg: cfg}
}

func (r *retrying[T]) Get(ctx context.Context, id string) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.InitialInterval
	b.MaxInterval = r.cfg.MaxInterval
	b.MaxElapsedTime = r.cfg.MaxElapsedTime

	var out T
	op := func() error {
		v, err := r.inner.Get(ctx, id)
		if err != nil {
			if !retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		out = v
		return nil
	}
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.cfg.MaxRetries)), ctx))
	return out, err
}
