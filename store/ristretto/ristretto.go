// Package ristretto backs the tagcache entry table with dgraph-io/ristretto.
//
// Ristretto admission is probabilistic and writes are buffered: a Put may be
// dropped under pressure, which tagcache observes as a later miss. Tag rows
// of dropped or evicted entries linger until the key is rewritten, deleted or
// revalidated.
package ristretto

import (
	"context"
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"

	"github.com/unkn0wn-root/tagcache/internal/wire"
	"github.com/unkn0wn-root/tagcache/store"
	"github.com/unkn0wn-root/tagcache/store/memory"
)

type Config struct {
	NumCounters int64
	MaxCost     int64 // total bytes when Cost is nil
	BufferItems int64
	TTL         time.Duration // 0 = no expiry
	Metrics     bool
	// Cost returns the admission cost of a framed record; nil => len(framed).
	Cost func(key string, framed []byte) int64
	// Sync waits for buffered writes to apply before Put returns.
	Sync bool
}

// Entries is a ristretto-backed store.EntryTable.
type Entries struct {
	c    *rc.Cache
	ttl  time.Duration
	cost func(string, []byte) int64
	sync bool
}

var _ store.EntryTable = (*Entries)(nil)

// ErrRejected is returned by Put when ristretto refuses the write.
var ErrRejected = errors.New("ristretto: write rejected")

func New(cfg Config) (*Entries, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	e := &Entries{c: c, ttl: cfg.TTL, cost: cfg.Cost, sync: cfg.Sync}
	if e.cost == nil {
		e.cost = func(_ string, b []byte) int64 { return int64(len(b)) }
	}
	return e, nil
}

// NewStore returns a ristretto entry table composed with an in-process tag table.
func NewStore(cfg Config) (store.Store, error) {
	e, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return store.Compose(e, memory.NewTags()), nil
}

func (p *Entries) Get(_ context.Context, key string) (store.Record, bool, error) {
	v, ok := p.c.Get(key)
	if !ok {
		return store.Record{}, false, nil
	}
	b, _ := v.([]byte)
	rec, err := wire.DecodeRecord(b)
	if err != nil || rec.ID != key {
		// self-heal: drop unexpected entry shape
		p.c.Del(key)
		return store.Record{}, false, nil
	}
	return rec, true, nil
}

func (p *Entries) Put(_ context.Context, rec store.Record) error {
	b, err := wire.EncodeRecord(rec)
	if err != nil {
		return err
	}
	if !p.c.SetWithTTL(rec.ID, b, p.cost(rec.ID, b), p.ttl) {
		return ErrRejected
	}
	if p.sync {
		p.c.Wait()
	}
	return nil
}

func (p *Entries) Delete(_ context.Context, key string) error {
	p.c.Del(key)
	return nil
}

func (p *Entries) Close(_ context.Context) error {
	p.c.Wait()
	p.c.Close()
	return nil
}

// Metrics exposes ristretto's counters (nil unless Config.Metrics).
func (p *Entries) Metrics() *rc.Metrics { return p.c.Metrics }
