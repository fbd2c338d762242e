package tagcache

import (
	"context"
	"time"

	"github.com/unkn0wn-root/tagcache/codec"
	"github.com/unkn0wn-root/tagcache/store"
)

// Handler is the tag-addressable cache used by the rendering pipeline.
//
// Read failures of any kind are reported as a miss. Write failures against the
// store are logged and absorbed unless Options.StrictWrites is set; caching is
// never on the critical path of the caller.
type Handler interface {
	Enabled() bool
	Close(context.Context) error

	// Get returns the entry stored under key, or ok=false on miss.
	Get(ctx context.Context, key string) (e Entry, ok bool)

	// Set replaces the entry under key and re-indexes it under tags.
	// Tags previously indexed for key are dropped first.
	// Errors are returned for the caller's value (stream drain, encode, empty key).
	Set(ctx context.Context, key string, value codec.Value, tags []string, opts ...SetOption) error

	// RevalidateByTag evicts every entry carrying any of tags, with all of its tag rows.
	RevalidateByTag(ctx context.Context, tags ...string) error

	// Delete evicts a single key and its tag rows.
	Delete(ctx context.Context, key string) error
}

// Entry is a cache hit.
type Entry struct {
	Key          string
	Value        codec.Value
	Tags         []string
	LastModified time.Time
	Meta         Meta
}

// Meta carries staleness hints owned by the caller. The handler stores and
// returns them verbatim and never interprets them.
type Meta struct {
	ExpireAt        int64 `json:"expireAt,omitempty"`
	RevalidateAfter int64 `json:"revalidateAfter,omitempty"`
	IsStale         bool  `json:"isStale,omitempty"`
}

// SetOption tweaks a single Set.
type SetOption func(*setOptions)

type setOptions struct {
	meta Meta
}

// WithMeta attaches pass-through staleness metadata to the entry.
func WithMeta(m Meta) SetOption { return func(o *setOptions) { o.meta = m } }

// Options configure a Handler. Only Store is required.
type Options struct {
	// Required
	Store store.Store

	Codec          codec.Codec      // nil => codec.JSON{}
	Namespace      string           // optional prefix isolating keys and tags in a shared store; no ':'
	Logger         Logger           // nil => NopLogger
	Hooks          Hooks            // nil => NopHooks
	MaxStreamBytes int64            // drain limit for stream values; 0 => 64 MiB, < 0 => unlimited
	Disabled       bool             // every Get misses, writes are no-ops
	StrictWrites   bool             // surface store failures from Set/RevalidateByTag/Delete
	Now            func() time.Time // nil => time.Now
}

const defaultMaxStreamBytes = 64 << 20

func New(opts Options) (Handler, error) {
	return newHandler(opts)
}

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
