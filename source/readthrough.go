package source

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/unkn0wn-root/tagcache"
	"github.com/unkn0wn-root/tagcache/codec"
)

type ReadThroughConfig[T any] struct {
	// Key maps an id to its cache key. Required.
	Key func(id string) string
	// Tags returns the tags an origin record is indexed under.
	Tags func(id string, v T) []string
	// Meta optionally attaches pass-through staleness metadata. An entry whose
	// Meta.ExpireAt (unix ms) has passed is refetched.
	Meta func(id string, v T) tagcache.Meta
	// Now is used for the ExpireAt check; nil => time.Now.
	Now func() time.Time
	// FetchTimeout bounds a shared origin fetch; 0 => 30s.
	FetchTimeout time.Duration
}

// ReadThrough serves records from the cache and fills misses from a Source.
// Concurrent misses for one key share a single origin fetch.
type ReadThrough[T any] struct {
	cache tagcache.Handler
	src   Source[T]
	cfg   ReadThroughConfig[T]
	sf    singleflight.Group
}

func NewReadThrough[T any](cache tagcache.Handler, src Source[T], cfg ReadThroughConfig[T]) (*ReadThrough[T], error) {
	if cache == nil || src == nil {
		return nil, &ConfigError{Source: "readthrough", Reason: "cache and source are required"}
	}
	if cfg.Key == nil {
		return nil, &ConfigError{Source: "readthrough", Reason: "Key func is required"}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	return &ReadThrough[T]{cache: cache, src: src, cfg: cfg}, nil
}

// Get returns the cached record for id, fetching and caching it on miss.
// hit reports whether the value came from the cache. Origin errors are
// returned; cache write failures are not.
func (r *ReadThrough[T]) Get(ctx context.Context, id string) (v T, hit bool, err error) {
	key := r.cfg.Key(id)
	if e, ok := r.cache.Get(ctx, key); ok && e.Value.Kind == codec.KindBlob && !r.expired(e.Meta) {
		if err := json.Unmarshal(e.Value.Blob, &v); err == nil {
			return v, true, nil
		}
	}

	// the fetch is shared by every waiter, so it must outlive the caller
	// that happened to start it
	ch := r.sf.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.FetchTimeout)
		defer cancel()
		fetched, err := r.src.Get(fctx, id)
		if err != nil {
			return nil, err
		}
		r.store(fctx, key, id, fetched)
		return fetched, nil
	})
	var res any
	select {
	case <-ctx.Done():
		var zero T
		return zero, false, ctx.Err()
	case out := <-ch:
		res, err = out.Val, out.Err
	}
	if err != nil {
		var zero T
		return zero, false, err
	}
	return res.(T), false, nil
}

func (r *ReadThrough[T]) store(ctx context.Context, key, id string, v T) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	var tags []string
	if r.cfg.Tags != nil {
		tags = r.cfg.Tags(id, v)
	}
	var opts []tagcache.SetOption
	if r.cfg.Meta != nil {
		opts = append(opts, tagcache.WithMeta(r.cfg.Meta(id, v)))
	}
	_ = r.cache.Set(ctx, key, codec.Blob(b), tags, opts...)
}

func (r *ReadThrough[T]) expired(m tagcache.Meta) bool {
	return m.ExpireAt > 0 && r.cfg.Now().UnixMilli() >= m.ExpireAt
}

// Forget drops a pending fetch for id so the next Get starts a new one.
func (r *ReadThrough[T]) Forget(id string) { r.sf.Forget(r.cfg.Key(id)) }
