package ristretto

import (
	"context"
	"testing"

	"github.com/unkn0wn-root/tagcache/store"
	"github.com/unkn0wn-root/tagcache/store/storetest"
)

func testConfig() Config {
	return Config{NumCounters: 1e4, MaxCost: 1 << 20, BufferItems: 64, Sync: true}
}

func TestConformance(t *testing.T) {
	storetest.TestStore(t, func(t *testing.T) store.Store {
		s, err := NewStore(testConfig())
		if err != nil {
			t.Fatal(err)
		}
		return s
	})
}

func TestInvalidConfig(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected invalid config error")
	}
}

func TestCorruptValueSelfHeals(t *testing.T) {
	ctx := context.Background()
	e, err := New(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close(ctx)

	e.c.Set("bad", []byte("junk"), 1)
	e.c.Wait()
	if _, ok, err := e.Get(ctx, "bad"); err != nil || ok {
		t.Fatalf("corrupt value should miss, ok=%v err=%v", ok, err)
	}
	e.c.Wait()
	if _, ok := e.c.Get("bad"); ok {
		t.Fatalf("corrupt value was not deleted")
	}
}
