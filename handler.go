package tagcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/unkn0wn-root/tagcache/codec"
	"github.com/unkn0wn-root/tagcache/internal/keys"
	"github.com/unkn0wn-root/tagcache/store"
)

// document is the JSON stored in store.Record.Data.
type document struct {
	Codec        string   `json:"codec"`
	Payload      string   `json:"payload"`
	LastModified int64    `json:"lastModified"`
	Tags         []string `json:"tags,omitempty"`
	Meta         *Meta    `json:"meta,omitempty"`
}

type handler struct {
	ns        string
	store     store.Store
	entries   store.EntryTable
	index     tagIndex
	codec     codec.Codec
	log       Logger
	hooks     Hooks
	enabled   bool
	strict    bool
	maxStream int64
	now       func() time.Time
}

func newHandler(opts Options) (*handler, error) {
	if opts.Store == nil {
		return nil, ErrNoStore
	}
	// "<ns>:<key>" is only unambiguous while ns itself has no separator
	if strings.Contains(opts.Namespace, ":") {
		return nil, ErrBadNamespace
	}
	entries, tags := opts.Store.Entries(), opts.Store.Tags()
	if entries == nil || tags == nil {
		return nil, fmt.Errorf("tagcache: store must expose both tables")
	}

	h := &handler{
		ns:      opts.Namespace,
		store:   opts.Store,
		entries: entries,
		index:   tagIndex{tbl: tags},
		enabled: !opts.Disabled,
		strict:  opts.StrictWrites,
	}

	// defaults
	h.codec = coalesce[codec.Codec](opts.Codec, codec.JSON{})
	h.log = coalesce[Logger](opts.Logger, NopLogger{})
	h.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	h.maxStream = coalesce[int64](opts.MaxStreamBytes, defaultMaxStreamBytes)
	if h.maxStream < 0 {
		h.maxStream = 0 // codec.Drain: no limit
	}
	h.now = opts.Now
	if h.now == nil {
		h.now = time.Now
	}
	return h, nil
}

func (h *handler) Enabled() bool { return h.enabled }

func (h *handler) Close(ctx context.Context) error { return h.store.Close(ctx) }

func (h *handler) Get(ctx context.Context, key string) (Entry, bool) {
	if !h.enabled {
		h.hooks.Miss(key, MissDisabled)
		return Entry{}, false
	}
	if key == "" {
		return Entry{}, false
	}
	rec, ok, err := h.entries.Get(ctx, h.storageKey(key))
	if err != nil {
		return h.miss(key, MissStoreError, err)
	}
	if !ok {
		return h.miss(key, MissAbsent, nil)
	}

	var doc document
	if err := json.Unmarshal([]byte(rec.Data), &doc); err != nil {
		return h.miss(key, MissCorrupt, err)
	}
	if doc.Codec != h.codec.Name() {
		return h.miss(key, MissCodecMismatch, fmt.Errorf("stored %q, configured %q", doc.Codec, h.codec.Name()))
	}
	v, err := h.codec.Decode(doc.Payload)
	if err != nil {
		return h.miss(key, MissDecode, err)
	}

	lm := doc.LastModified
	if lm == 0 {
		lm = rec.LastModified
	}
	e := Entry{
		Key:          key,
		Value:        v,
		Tags:         doc.Tags,
		LastModified: time.UnixMilli(lm),
	}
	if doc.Meta != nil {
		e.Meta = *doc.Meta
	}
	h.hooks.Hit(key)
	h.log.Debug("HIT", Fields{"key": key, "lastModified": lm})
	return e, true
}

func (h *handler) miss(key string, reason MissReason, err error) (Entry, bool) {
	h.hooks.Miss(key, reason)
	f := Fields{"key": key, "reason": string(reason)}
	if err != nil {
		f["err"] = err.Error()
	}
	if reason == MissStoreError {
		h.log.Warn("MISS", f)
	} else {
		h.log.Debug("MISS", f)
	}
	return Entry{}, false
}

func (h *handler) Set(ctx context.Context, key string, value codec.Value, tags []string, opts ...SetOption) error {
	if !h.enabled {
		return nil
	}
	if key == "" {
		return ErrEmptyKey
	}
	var so setOptions
	for _, o := range opts {
		o(&so)
	}

	// stream values are drained up front; a partial read aborts the whole Set
	v, err := codec.Drain(value, h.maxStream)
	if err != nil {
		h.log.Warn("SET aborted: stream drain failed", Fields{"key": key, "err": err.Error()})
		return err
	}
	payload, err := h.codec.Encode(v)
	if err != nil {
		return fmt.Errorf("tagcache: encode %q: %w", key, err)
	}

	tags = keys.Tags(tags)
	now := h.now().UnixMilli()
	doc := document{Codec: h.codec.Name(), Payload: payload, LastModified: now, Tags: tags}
	if so.meta != (Meta{}) {
		m := so.meta
		doc.Meta = &m
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("tagcache: marshal %q: %w", key, err)
	}

	sk := h.storageKey(key)
	// drop-then-reindex: a crash in between leaves the key under-indexed,
	// never pointing stale tags at the new value
	if err := h.index.dropAllForKey(ctx, sk); err != nil {
		return h.writeFailed("set", key, err)
	}
	rec := store.Record{ID: sk, Data: string(data), LastModified: now, Tags: tags}
	if err := h.entries.Put(ctx, rec); err != nil {
		return h.writeFailed("set", key, err)
	}
	if err := h.index.indexFor(ctx, sk, h.storageTags(tags)); err != nil {
		return h.writeFailed("set", key, err)
	}

	f := Fields{"key": key}
	if len(tags) > 0 {
		f["tags"] = tags
	}
	h.log.Debug("SET", f)
	return nil
}

func (h *handler) RevalidateByTag(ctx context.Context, tags ...string) error {
	if !h.enabled {
		return nil
	}
	tags = keys.Tags(tags)
	if len(tags) == 0 {
		return nil
	}

	var errs error
	var victims []string
	seen := make(map[string]struct{})
	for _, t := range tags {
		for row, err := range h.index.rowsForTag(ctx, h.storageTag(t)) {
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("scan tag %q: %w", t, err))
				break
			}
			if _, dup := seen[row.CacheKey]; dup {
				continue
			}
			seen[row.CacheKey] = struct{}{}
			victims = append(victims, row.CacheKey)
		}
	}

	evicted := 0
	for _, sk := range victims {
		if err := h.entries.Delete(ctx, sk); err != nil {
			// keep the rows: a retry must still find this key
			errs = multierr.Append(errs, fmt.Errorf("delete %q: %w", sk, err))
			continue
		}
		evicted++
		if err := h.index.dropAllForKey(ctx, sk); err != nil {
			h.hooks.IndexDropError(sk, err)
			errs = multierr.Append(errs, fmt.Errorf("drop tag rows of %q: %w", sk, err))
		}
	}

	h.hooks.Revalidated(tags, evicted)
	h.log.Debug("REVALIDATE", Fields{"tags": tags, "keys": victims, "evicted": evicted})
	if errs == nil {
		return nil
	}
	rerr := &RevalidateError{Tags: tags, Evicted: evicted, Err: errs}
	h.hooks.StoreError("revalidate", "", rerr)
	h.log.Warn("REVALIDATE incomplete", Fields{"tags": tags, "err": rerr.Error()})
	if h.strict {
		return rerr
	}
	return nil
}

func (h *handler) Delete(ctx context.Context, key string) error {
	if !h.enabled {
		return nil
	}
	if key == "" {
		return ErrEmptyKey
	}
	sk := h.storageKey(key)
	if err := h.entries.Delete(ctx, sk); err != nil {
		return h.writeFailed("delete", key, err)
	}
	if err := h.index.dropAllForKey(ctx, sk); err != nil {
		h.hooks.IndexDropError(sk, err)
		return h.writeFailed("delete", key, err)
	}
	h.log.Debug("DELETE", Fields{"key": key})
	return nil
}

func (h *handler) writeFailed(op, key string, err error) error {
	h.hooks.StoreError(op, key, err)
	lvl := h.log.Warn
	if !errors.Is(err, store.ErrUnavailable) {
		lvl = h.log.Error
	}
	lvl(op+" failed", Fields{"key": key}.with("err", err.Error(), "strict", h.strict))
	if h.strict {
		return &WriteError{Op: op, Key: key, Err: err}
	}
	return nil
}

func (h *handler) storageKey(key string) string {
	if h.ns == "" {
		return key
	}
	return keys.Join(h.ns, key)
}

func (h *handler) storageTag(tag string) string {
	if h.ns == "" {
		return tag
	}
	return keys.Join(h.ns, tag)
}

func (h *handler) storageTags(tags []string) []string {
	if h.ns == "" {
		return tags
	}
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = h.storageTag(t)
	}
	return out
}
