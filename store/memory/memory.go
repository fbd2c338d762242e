// Package memory keeps both tagcache tables in-process.
// Suitable for single-replica deployments, tests, and as the tag table for
// byte caches without a secondary index (see store.Compose).
package memory

import (
	"context"
	"errors"
	"iter"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/unkn0wn-root/tagcache/store"
)

var errClosed = errors.New("memory store closed")

type Config struct {
	// MaxEntries bounds the entry table with LRU eviction; 0 = unbounded.
	// Evicted entries leave their tag rows behind; they are dropped the next
	// time the key is written, deleted or revalidated.
	MaxEntries int
}

// Store is an in-process store.Store.
type Store struct {
	entries *Entries
	tags    *Tags
}

var _ store.Store = (*Store)(nil)

func New(cfg Config) (*Store, error) {
	e, err := NewEntries(cfg.MaxEntries)
	if err != nil {
		return nil, err
	}
	return &Store{entries: e, tags: NewTags()}, nil
}

func (s *Store) Entries() store.EntryTable { return s.entries }
func (s *Store) Tags() store.TagTable      { return s.tags }

func (s *Store) Close(ctx context.Context) error {
	return errors.Join(s.entries.Close(ctx), s.tags.Close(ctx))
}

// Entries is an in-process entry table.
type Entries struct {
	mu     sync.RWMutex
	m      map[string]store.Record
	lru    *lru.Cache[string, store.Record] // nil when unbounded
	closed bool
}

var _ store.EntryTable = (*Entries)(nil)

func NewEntries(maxEntries int) (*Entries, error) {
	e := &Entries{}
	if maxEntries > 0 {
		c, err := lru.New[string, store.Record](maxEntries)
		if err != nil {
			return nil, err
		}
		e.lru = c
	} else {
		e.m = make(map[string]store.Record)
	}
	return e, nil
}

func (e *Entries) Get(_ context.Context, key string) (store.Record, bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return store.Record{}, false, store.Unavailable("get", errClosed)
	}
	var (
		rec store.Record
		ok  bool
	)
	if e.lru != nil {
		rec, ok = e.lru.Get(key)
	} else {
		rec, ok = e.m[key]
	}
	if !ok {
		return store.Record{}, false, nil
	}
	return cloneRecord(rec), true, nil
}

func (e *Entries) Put(_ context.Context, rec store.Record) error {
	rec = cloneRecord(rec)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return store.Unavailable("put", errClosed)
	}
	if e.lru != nil {
		e.lru.Add(rec.ID, rec)
	} else {
		e.m[rec.ID] = rec
	}
	return nil
}

func (e *Entries) Delete(_ context.Context, key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return store.Unavailable("delete", errClosed)
	}
	if e.lru != nil {
		e.lru.Remove(key)
	} else {
		delete(e.m, key)
	}
	return nil
}

// Len returns the number of live entries.
func (e *Entries) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.lru != nil {
		return e.lru.Len()
	}
	return len(e.m)
}

func (e *Entries) Close(_ context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	return nil
}

func cloneRecord(r store.Record) store.Record {
	if r.Tags != nil {
		r.Tags = append([]string(nil), r.Tags...)
	}
	return r
}

// Tags is an in-process tag table with secondary indexes on both attributes.
type Tags struct {
	mu     sync.RWMutex
	rows   map[string]store.TagRow
	byTag  map[string]map[string]struct{} // tag -> row ids
	byKey  map[string]map[string]struct{} // cacheKey -> row ids
	closed bool
}

var _ store.TagTable = (*Tags)(nil)

func NewTags() *Tags {
	return &Tags{
		rows:  make(map[string]store.TagRow),
		byTag: make(map[string]map[string]struct{}),
		byKey: make(map[string]map[string]struct{}),
	}
}

func (t *Tags) Put(_ context.Context, row store.TagRow) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return store.Unavailable("put tag", errClosed)
	}
	if old, ok := t.rows[row.ID]; ok {
		t.unindex(old)
	}
	t.rows[row.ID] = row
	add(t.byTag, row.Tag, row.ID)
	add(t.byKey, row.CacheKey, row.ID)
	return nil
}

func (t *Tags) Delete(_ context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return store.Unavailable("delete tag", errClosed)
	}
	if old, ok := t.rows[id]; ok {
		t.unindex(old)
		delete(t.rows, id)
	}
	return nil
}

// Scan snapshots matching rows under the read lock, then yields them, so the
// consumer may mutate the table while iterating.
func (t *Tags) Scan(_ context.Context, attr store.Attribute, value string) iter.Seq2[store.TagRow, error] {
	t.mu.RLock()
	if t.closed {
		t.mu.RUnlock()
		return store.ScanErr(store.Unavailable("scan", errClosed))
	}
	var idx map[string]map[string]struct{}
	switch attr {
	case store.AttrTag:
		idx = t.byTag
	case store.AttrCacheKey:
		idx = t.byKey
	default:
		t.mu.RUnlock()
		return store.ScanErr(errors.New("memory: unknown attribute " + string(attr)))
	}
	ids := idx[value]
	snap := make([]store.TagRow, 0, len(ids))
	for id := range ids {
		snap = append(snap, t.rows[id])
	}
	t.mu.RUnlock()

	return func(yield func(store.TagRow, error) bool) {
		for _, r := range snap {
			if !yield(r, nil) {
				return
			}
		}
	}
}

// Len returns the number of rows.
func (t *Tags) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

func (t *Tags) Close(_ context.Context) error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}

func (t *Tags) unindex(r store.TagRow) {
	remove(t.byTag, r.Tag, r.ID)
	remove(t.byKey, r.CacheKey, r.ID)
}

func add(idx map[string]map[string]struct{}, k, id string) {
	s, ok := idx[k]
	if !ok {
		s = make(map[string]struct{})
		idx[k] = s
	}
	s[id] = struct{}{}
}

func remove(idx map[string]map[string]struct{}, k, id string) {
	s, ok := idx[k]
	if !ok {
		return
	}
	delete(s, id)
	if len(s) == 0 {
		delete(idx, k)
	}
}
