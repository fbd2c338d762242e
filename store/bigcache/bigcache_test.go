package bigcache

import (
	"context"
	"testing"

	"github.com/unkn0wn-root/tagcache/store"
	"github.com/unkn0wn-root/tagcache/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.TestStore(t, func(t *testing.T) store.Store {
		s, err := NewStore(Config{})
		if err != nil {
			t.Fatal(err)
		}
		return s
	})
}

func TestCorruptFrameSelfHeals(t *testing.T) {
	ctx := context.Background()
	e, err := New(Config{})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close(ctx)

	if err := e.c.Set("bad", []byte("not-wire-format")); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := e.Get(ctx, "bad"); err != nil || ok {
		t.Fatalf("corrupt frame should miss, ok=%v err=%v", ok, err)
	}
	if _, err := e.c.Get("bad"); err == nil {
		t.Fatalf("corrupt frame was not deleted")
	}
}
