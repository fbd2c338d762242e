package source

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
)

type BreakerConfig struct {
	Name        string
	MaxRequests uint32        // half-open probes; default 1
	Interval    time.Duration // closed-state counter reset; default 30s
	Timeout     time.Duration // open -> half-open; default 60s
	// Failures is the number of consecutive origin failures that opens the
	// breaker; default 5.
	Failures      uint32
	OnStateChange func(name string, from, to gobreaker.State)
}

type breaking[T any] struct {
	inner Source[T]
	cb    *gobreaker.CircuitBreaker
}

// Breaker fails fast with gobreaker.ErrOpenState while the origin keeps
// failing. Non-temporary errors (404-like answers, config errors) do not count
// as failures.
func Breaker[T any](inner Source[T], cfg BreakerConfig) Source[T] {
	if cfg.Failures == 0 {
		cfg.Failures = 5
	}
	if cfg.Interval == 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	st := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.Failures
		},
		IsSuccessful:  func(err error) bool { return err == nil || !retryable(err) },
		OnStateChange: cfg.OnStateChange,
	}
	return &breaking[T]{inner: inner, cb: gobreaker.NewCircuitBreaker(st)}
}

func (b *breaking[T]) Get(ctx context.Context, id string) (T, error) {
	v, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.Get(ctx, id)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
