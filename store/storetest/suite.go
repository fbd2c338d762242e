// Package storetest is a conformance suite for store implementations.
package storetest

import (
	"context"
	"reflect"
	"sort"
	"testing"

	"github.com/unkn0wn-root/tagcache/store"
)

// TestStore runs the entry and tag table suites against fresh stores.
// newStore is called once per subtest; the suite closes what it gets.
func TestStore(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("Entries", func(t *testing.T) {
		s := newStore(t)
		defer s.Close(context.Background())
		TestEntries(t, s.Entries())
	})
	t.Run("Tags", func(t *testing.T) {
		s := newStore(t)
		defer s.Close(context.Background())
		TestTags(t, s.Tags())
	})
}

// TestEntries tests get/put/delete semantics of an entry table.
func TestEntries(t *testing.T, tbl store.EntryTable) {
	ctx := context.Background()

	if _, ok, err := tbl.Get(ctx, "/never"); err != nil || ok {
		t.Fatalf("Get(/never): ok=%v err=%v, want miss", ok, err)
	}

	rec := store.Record{ID: "/product/42", Data: `{"codec":"json","payload":"x"}`, LastModified: 1700000000123, Tags: []string{"product", "catalog"}}
	if err := tbl.Put(ctx, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := tbl.Get(ctx, rec.ID)
	if err != nil || !ok {
		t.Fatalf("Get after Put: ok=%v err=%v", ok, err)
	}
	if !reflect.DeepEqual(got, rec) {
		t.Fatalf("Get after Put: got %+v want %+v", got, rec)
	}

	// full replace, not patch
	repl := store.Record{ID: rec.ID, Data: "v2", LastModified: 1700000000999}
	if err := tbl.Put(ctx, repl); err != nil {
		t.Fatalf("Put replace: %v", err)
	}
	got, ok, err = tbl.Get(ctx, rec.ID)
	if err != nil || !ok {
		t.Fatalf("Get after replace: ok=%v err=%v", ok, err)
	}
	if got.Data != "v2" || got.LastModified != repl.LastModified || len(got.Tags) != 0 {
		t.Fatalf("replace did not fully overwrite: %+v", got)
	}

	if err := tbl.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, err := tbl.Get(ctx, rec.ID); err != nil || ok {
		t.Fatalf("Get after Delete: ok=%v err=%v, want miss", ok, err)
	}
	if err := tbl.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("Delete of missing key should be a no-op, got %v", err)
	}
}

// TestTags tests put/delete/scan semantics of a tag table.
func TestTags(t *testing.T, tbl store.TagTable) {
	ctx := context.Background()

	rows := []store.TagRow{
		{ID: "/a#product", CacheKey: "/a", Tag: "product"},
		{ID: "/a#catalog", CacheKey: "/a", Tag: "catalog"},
		{ID: "/b#catalog", CacheKey: "/b", Tag: "catalog"},
	}
	for _, r := range rows {
		if err := tbl.Put(ctx, r); err != nil {
			t.Fatalf("Put(%s): %v", r.ID, err)
		}
	}
	// idempotent upsert
	if err := tbl.Put(ctx, rows[0]); err != nil {
		t.Fatalf("Put again: %v", err)
	}

	expectIDs(t, tbl, store.AttrTag, "catalog", "/a#catalog", "/b#catalog")
	expectIDs(t, tbl, store.AttrTag, "product", "/a#product")
	expectIDs(t, tbl, store.AttrCacheKey, "/a", "/a#catalog", "/a#product")
	expectIDs(t, tbl, store.AttrTag, "missing")

	if err := tbl.Delete(ctx, "/a#catalog"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	expectIDs(t, tbl, store.AttrTag, "catalog", "/b#catalog")
	expectIDs(t, tbl, store.AttrCacheKey, "/a", "/a#product")

	if err := tbl.Delete(ctx, "/a#catalog"); err != nil {
		t.Fatalf("Delete of missing row should be a no-op, got %v", err)
	}

	// deleting while iterating must be safe
	for row, err := range tbl.Scan(ctx, store.AttrCacheKey, "/a") {
		if err != nil {
			t.Fatalf("Scan: %v", err)
		}
		if err := tbl.Delete(ctx, row.ID); err != nil {
			t.Fatalf("Delete during scan: %v", err)
		}
	}
	expectIDs(t, tbl, store.AttrCacheKey, "/a")

	// early break must not deadlock or leak
	for range tbl.Scan(ctx, store.AttrTag, "catalog") {
		break
	}
	expectIDs(t, tbl, store.AttrTag, "catalog", "/b#catalog")
}

func expectIDs(t *testing.T, tbl store.TagTable, attr store.Attribute, value string, want ...string) {
	t.Helper()
	got, err := store.Collect(tbl.Scan(context.Background(), attr, value))
	if err != nil {
		t.Fatalf("Scan(%s=%s): %v", attr, value, err)
	}
	ids := make([]string, 0, len(got))
	for _, r := range got {
		if r.Value(attr) != value {
			t.Fatalf("Scan(%s=%s) returned foreign row %+v", attr, value, r)
		}
		ids = append(ids, r.ID)
	}
	sort.Strings(ids)
	sort.Strings(want)
	if len(want) == 0 {
		want = []string{}
	}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("Scan(%s=%s): got %v want %v", attr, value, ids, want)
	}
}
