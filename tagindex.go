package tagcache

import (
	"context"
	"iter"

	"go.uber.org/multierr"

	"github.com/unkn0wn-root/tagcache/internal/keys"
	"github.com/unkn0wn-root/tagcache/store"
)

// tagIndex maintains one TagRow per (storage key, tag) pair.
type tagIndex struct {
	tbl store.TagTable
}

// indexFor writes a row for every tag. It stops at the first failure; the
// key is then under-indexed, never over-indexed.
func (ix tagIndex) indexFor(ctx context.Context, key string, tags []string) error {
	for _, t := range tags {
		row := store.TagRow{ID: keys.RowID(key, t), CacheKey: key, Tag: t}
		if err := ix.tbl.Put(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

func (ix tagIndex) rowsForTag(ctx context.Context, tag string) iter.Seq2[store.TagRow, error] {
	return ix.tbl.Scan(ctx, store.AttrTag, tag)
}

func (ix tagIndex) rowsForKey(ctx context.Context, key string) iter.Seq2[store.TagRow, error] {
	return ix.tbl.Scan(ctx, store.AttrCacheKey, key)
}

// dropAllForKey deletes every row owned by key, whatever tag it references.
// Row ids are collected before deleting so the scan never observes its own writes.
func (ix tagIndex) dropAllForKey(ctx context.Context, key string) error {
	var ids []string
	seen := make(map[string]struct{})
	for row, err := range ix.rowsForKey(ctx, key) {
		if err != nil {
			return err
		}
		if _, dup := seen[row.ID]; dup {
			continue
		}
		seen[row.ID] = struct{}{}
		ids = append(ids, row.ID)
	}
	var errs error
	for _, id := range ids {
		errs = multierr.Append(errs, ix.tbl.Delete(ctx, id))
	}
	return errs
}
