package asynchook

import (
	"sync"
	"testing"

	"github.com/unkn0wn-root/tagcache"
)

type countHooks struct {
	tagcache.NopHooks
	mu      sync.Mutex
	misses  int
	evicted int
	block   chan struct{}
}

func (c *countHooks) Miss(string, tagcache.MissReason) {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
}

func (c *countHooks) Revalidated(_ []string, n int) {
	c.mu.Lock()
	c.evicted += n
	c.mu.Unlock()
}

func TestDeliversQueuedEventsOnClose(t *testing.T) {
	inner := &countHooks{}
	h := New(inner, 2, 16)
	for i := 0; i < 10; i++ {
		h.Miss("k", tagcache.MissAbsent)
	}
	h.Revalidated([]string{"product"}, 3)
	h.Close()

	if inner.misses != 10 || inner.evicted != 3 {
		t.Fatalf("misses=%d evicted=%d", inner.misses, inner.evicted)
	}
	h.Miss("late", tagcache.MissAbsent)
	if h.Dropped() != 1 {
		t.Fatalf("event after Close must be dropped, dropped=%d", h.Dropped())
	}
	h.Close()
}

func TestDropsWhenFull(t *testing.T) {
	inner := &countHooks{block: make(chan struct{})}
	h := New(inner, 1, 1)
	// one event is held by the worker, one sits in the queue, the rest drop
	for i := 0; i < 10; i++ {
		h.Miss("k", tagcache.MissAbsent)
	}
	close(inner.block)
	h.Close()
	if got := uint64(inner.misses) + h.Dropped(); got != 10 {
		t.Fatalf("delivered+dropped = %d", got)
	}
	if h.Dropped() == 0 {
		t.Fatalf("expected drops with a blocked worker")
	}
}
