// Package sloghook logs tagcache hook events through log/slog with sampling
// and key redaction.
package sloghook

import (
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/tagcache"
	"github.com/unkn0wn-root/tagcache/internal/keys"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	HitEvery  uint64
	MissEvery uint64
	// Optional key redactor. Defaults to a SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	hitCtr  atomic.Uint64
	missCtr atomic.Uint64
}

var _ tagcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	return keys.Short("k", k)
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) Hit(key string) {
	if h.l == nil || !sample(h.opts.HitEvery, &h.hitCtr) {
		return
	}
	h.l.Debug("tagcache.hit", "key", h.redact(key))
}

func (h *Hooks) Miss(key string, reason tagcache.MissReason) {
	if h.l == nil {
		return
	}
	// anything but a plain miss points at a broken store or a codec rollout
	if reason != tagcache.MissAbsent && reason != tagcache.MissDisabled {
		h.l.Warn("tagcache.miss", "key", h.redact(key), "reason", string(reason))
		return
	}
	if !sample(h.opts.MissEvery, &h.missCtr) {
		return
	}
	h.l.Debug("tagcache.miss", "key", h.redact(key), "reason", string(reason))
}

func (h *Hooks) StoreError(op, key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("tagcache.store_error",
		"op", op,
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) IndexDropError(key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("tagcache.index_drop_error",
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) Revalidated(tags []string, evicted int) {
	if h.l == nil {
		return
	}
	h.l.Info("tagcache.revalidated",
		"tags", tags,
		"evicted", evicted)
}
