// Package bigcache backs the tagcache entry table with allegro/bigcache.
// BigCache has no secondary index, so NewStore pairs it with an in-process
// tag table.
package bigcache

import (
	"context"
	"errors"
	"time"

	bc "github.com/allegro/bigcache/v3"

	"github.com/unkn0wn-root/tagcache/internal/wire"
	"github.com/unkn0wn-root/tagcache/store"
	"github.com/unkn0wn-root/tagcache/store/memory"
)

type Config struct {
	LifeWindow         time.Duration // 0 => 10m
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
}

// Entries is a bigcache-backed store.EntryTable.
type Entries struct {
	c *bc.BigCache
}

var _ store.EntryTable = (*Entries)(nil)

func New(cfg Config) (*Entries, error) {
	if cfg.LifeWindow <= 0 {
		cfg.LifeWindow = 10 * time.Minute
	}
	conf := bc.DefaultConfig(cfg.LifeWindow)
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	conf.Verbose = false
	c, err := bc.NewBigCache(conf)
	if err != nil {
		return nil, err
	}
	return &Entries{c: c}, nil
}

// NewStore returns a bigcache entry table composed with an in-process tag table.
func NewStore(cfg Config) (store.Store, error) {
	e, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return store.Compose(e, memory.NewTags()), nil
}

func (p *Entries) Get(_ context.Context, key string) (store.Record, bool, error) {
	b, err := p.c.Get(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return store.Record{}, false, nil
	}
	if err != nil {
		return store.Record{}, false, err
	}
	rec, err := wire.DecodeRecord(b)
	if err != nil || rec.ID != key {
		_ = p.c.Delete(key) // self-heal corrupt
		return store.Record{}, false, nil
	}
	return rec, true, nil
}

// Put stores rec. BigCache does not support per-entry TTL; uses global LifeWindow.
func (p *Entries) Put(_ context.Context, rec store.Record) error {
	b, err := wire.EncodeRecord(rec)
	if err != nil {
		return err
	}
	return p.c.Set(rec.ID, b)
}

func (p *Entries) Delete(_ context.Context, key string) error {
	err := p.c.Delete(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil
	}
	return err
}

func (p *Entries) Close(_ context.Context) error {
	return p.c.Close()
}
