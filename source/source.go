// Package source connects origins to a tagcache.Handler.
//
// A Source fetches one record by id. ReadThrough turns a Source into a
// cached lookup; Retry and Breaker harden a flaky origin. They compose:
//
//	src := source.Breaker(source.Retry(cms, source.RetryConfig{}), source.BreakerConfig{Name: "cms"})
//	rt := source.NewReadThrough(h, src, source.ReadThroughConfig[cms.Tagline]{...})
package source

import (
	"context"
	"errors"
	"fmt"
)

// Source fetches a record from an origin.
type Source[T any] interface {
	Get(ctx context.Context, id string) (T, error)
}

// Func adapts a function to Source.
type Func[T any] func(ctx context.Context, id string) (T, error)

func (f Func[T]) Get(ctx context.Context, id string) (T, error) { return f(ctx, id) }

// ConfigError reports a source that cannot run with its configuration.
type ConfigError struct {
	Source string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Source, e.Reason)
}

// FetchError is a non-success answer from the origin.
type FetchError struct {
	Source string
	ID     string
	Status int // HTTP status; 0 when the request never completed
	Err    error
}

func (e *FetchError) Error() string {
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("%s: fetch %q failed: %d: %v", e.Source, e.ID, e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%s: fetch %q failed: %d", e.Source, e.ID, e.Status)
	default:
		return fmt.Sprintf("%s: fetch %q failed: %v", e.Source, e.ID, e.Err)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// Temporary reports whether retrying may succeed: transport failures,
// 429 and 5xx.
func (e *FetchError) Temporary() bool {
	return e.Status == 0 || e.Status == 429 || e.Status >= 500
}

// retryable reports whether err is worth another attempt.
func retryable(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Temporary()
	}
	return false
}
