// Package redis stores both tagcache tables in Redis.
//
// Keys (ns = Config.Namespace):
//
//	<ns>:entry:<key>           JSON store.Record
//	<ns>:row:<id>              JSON store.TagRow
//	<ns>:idx:tag:<tag>         SET of row ids carrying tag
//	<ns>:idx:cacheKey:<key>    SET of row ids owned by key
//
// The sets are the secondary index that answers Scan without KEYS/SCAN over
// the whole keyspace.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/tagcache/internal/keys"
	"github.com/unkn0wn-root/tagcache/store"
)

var ErrNilClient = errors.New("redis store: nil client")

const defaultScanCount = 256

type Config struct {
	Client      goredis.UniversalClient
	Namespace   string        // key prefix; "" => "tagcache"
	EntryTTL    time.Duration // optional expiry for entry keys; 0 = none
	ScanCount   int64         // SSCAN batch hint; 0 => 256
	CloseClient bool          // set true only if this store exclusively owns the client
}

// Store is a Redis-backed store.Store.
type Store struct {
	rdb         goredis.UniversalClient
	ns          string
	ttl         time.Duration
	scanCount   int64
	closeClient bool

	entries *entries
	tags    *tags
}

var _ store.Store = (*Store)(nil)

func New(cfg Config) (*Store, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	s := &Store{
		rdb:         cfg.Client,
		ns:          cfg.Namespace,
		ttl:         cfg.EntryTTL,
		scanCount:   cfg.ScanCount,
		closeClient: cfg.CloseClient,
	}
	if s.ns == "" {
		s.ns = "tagcache"
	}
	if s.scanCount <= 0 {
		s.scanCount = defaultScanCount
	}
	if s.ttl < 0 {
		s.ttl = 0 // treat negative TTLs as "no expiry"
	}
	s.entries = &entries{s}
	s.tags = &tags{s}
	return s, nil
}

func (s *Store) Entries() store.EntryTable { return s.entries }
func (s *Store) Tags() store.TagTable      { return s.tags }

// Close releases the underlying redis client only when this store owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (s *Store) Close(context.Context) error {
	if s.closeClient {
		if err := s.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}

func (s *Store) entryKey(k string) string { return keys.Join(s.ns, "entry", k) }
func (s *Store) rowKey(id string) string  { return keys.Join(s.ns, "row", id) }
func (s *Store) idxKey(attr store.Attribute, v string) string {
	return s.ns + ":idx:" + string(attr) + ":" + v
}

type entries struct{ s *Store }

func (e *entries) Get(ctx context.Context, key string) (store.Record, bool, error) {
	k := e.s.entryKey(key)
	b, err := e.s.rdb.Get(ctx, k).Bytes()
	if err == goredis.Nil {
		return store.Record{}, false, nil // miss
	}
	if err != nil {
		return store.Record{}, false, store.Unavailable("get", err)
	}
	var rec store.Record
	if err := json.Unmarshal(b, &rec); err != nil || rec.ID != key {
		_ = e.s.rdb.Del(ctx, k).Err() // self-heal foreign/corrupt value
		return store.Record{}, false, nil
	}
	return rec, true, nil
}

func (e *entries) Put(ctx context.Context, rec store.Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return store.Unavailable("set", e.s.rdb.Set(ctx, e.s.entryKey(rec.ID), b, e.s.ttl).Err())
}

func (e *entries) Delete(ctx context.Context, key string) error {
	return store.Unavailable("del", e.s.rdb.Del(ctx, e.s.entryKey(key)).Err())
}

func (e *entries) Close(ctx context.Context) error { return nil }

type tags struct{ s *Store }

func (t *tags) Put(ctx context.Context, row store.TagRow) error {
	b, err := json.Marshal(row)
	if err != nil {
		return err
	}
	_, err = t.s.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Set(ctx, t.s.rowKey(row.ID), b, 0)
		p.SAdd(ctx, t.s.idxKey(store.AttrTag, row.Tag), row.ID)
		p.SAdd(ctx, t.s.idxKey(store.AttrCacheKey, row.CacheKey), row.ID)
		return nil
	})
	return store.Unavailable("put tag", err)
}

func (t *tags) Delete(ctx context.Context, id string) error {
	rk := t.s.rowKey(id)
	b, err := t.s.rdb.Get(ctx, rk).Bytes()
	if err == goredis.Nil {
		return nil
	}
	if err != nil {
		return store.Unavailable("get tag", err)
	}
	var row store.TagRow
	if err := json.Unmarshal(b, &row); err != nil {
		return store.Unavailable("del tag", t.s.rdb.Del(ctx, rk).Err())
	}
	_, err = t.s.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Del(ctx, rk)
		p.SRem(ctx, t.s.idxKey(store.AttrTag, row.Tag), id)
		p.SRem(ctx, t.s.idxKey(store.AttrCacheKey, row.CacheKey), id)
		return nil
	})
	return store.Unavailable("del tag", err)
}

// Scan walks the attribute's index set with SSCAN and resolves rows with MGET.
// Set members whose row is gone are pruned on the way.
func (t *tags) Scan(ctx context.Context, attr store.Attribute, value string) iter.Seq2[store.TagRow, error] {
	if attr != store.AttrTag && attr != store.AttrCacheKey {
		return store.ScanErr(errors.New("redis: unknown attribute " + string(attr)))
	}
	setKey := t.s.idxKey(attr, value)
	return func(yield func(store.TagRow, error) bool) {
		var cursor uint64
		for {
			ids, next, err := t.s.rdb.SScan(ctx, setKey, cursor, "", t.s.scanCount).Result()
			if err != nil {
				yield(store.TagRow{}, store.Unavailable("sscan", err))
				return
			}
			if len(ids) > 0 {
				rks := make([]string, len(ids))
				for i, id := range ids {
					rks[i] = t.s.rowKey(id)
				}
				vals, err := t.s.rdb.MGet(ctx, rks...).Result()
				if err != nil {
					yield(store.TagRow{}, store.Unavailable("mget", err))
					return
				}
				for i, v := range vals {
					row, ok := decodeRow(v)
					if !ok || row.Value(attr) != value {
						_ = t.s.rdb.SRem(ctx, setKey, ids[i]).Err()
						continue
					}
					if !yield(row, nil) {
						return
					}
				}
			}
			cursor = next
			if cursor == 0 {
				return
			}
		}
	}
}

func (t *tags) Close(ctx context.Context) error { return nil }

func decodeRow(v any) (store.TagRow, bool) {
	var b []byte
	switch vv := v.(type) {
	case string:
		b = []byte(vv)
	case []byte:
		b = vv
	default:
		return store.TagRow{}, false
	}
	var row store.TagRow
	if err := json.Unmarshal(b, &row); err != nil || row.ID == "" {
		return store.TagRow{}, false
	}
	return row, true
}
