// Package store defines the storage abstraction used by tagcache.
//
// A Store exposes two tables:
//
//   - the entry table, keyed by cache key, holding one Record per entry;
//   - the tag table, holding one TagRow per (cache key, tag) pair and
//     answering "which rows have attribute = value" for the tag and cacheKey
//     attributes.
//
// Engines with a native multi-value secondary index may implement TagTable on
// top of it; byte caches without one are combined with an in-process tag table
// via Compose.
//
// Implementations MUST be safe for concurrent use and byte-for-byte
// transparent for Record.Data: Get returns exactly the string previously Put.
package store

import (
	"context"
	"errors"
	"fmt"
	"iter"
)

// ErrUnavailable marks failures to reach the backing engine (network, closed
// client, timeouts). Implementations wrap transport errors with it.
var ErrUnavailable = errors.New("store: unavailable")

// Unavailable wraps err with ErrUnavailable. nil stays nil.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}

// Record is one row of the entry table.
type Record struct {
	ID           string   `json:"id" msgpack:"id"`
	Data         string   `json:"data" msgpack:"data"`
	LastModified int64    `json:"lastModified" msgpack:"lastModified"` // unix millis
	Tags         []string `json:"tags,omitempty" msgpack:"tags,omitempty"`
}

// TagRow is one row of the tag table.
type TagRow struct {
	ID       string `json:"id"` // "<cacheKey>#<tag>"
	CacheKey string `json:"cacheKey"`
	Tag      string `json:"tag"`
}

// Attribute names a TagRow column that can be scanned.
type Attribute string

const (
	AttrTag      Attribute = "tag"
	AttrCacheKey Attribute = "cacheKey"
)

// Value returns the row's value for a.
func (r TagRow) Value(a Attribute) string {
	switch a {
	case AttrTag:
		return r.Tag
	case AttrCacheKey:
		return r.CacheKey
	default:
		return ""
	}
}

// EntryTable is the entry table.
type EntryTable interface {
	// Get returns (rec, true, nil) on hit; (Record{}, false, nil) on miss.
	// If an IO/remote error happens, return (Record{}, false, err).
	Get(ctx context.Context, key string) (Record, bool, error)

	// Put upserts rec, fully replacing any previous record with the same ID.
	Put(ctx context.Context, rec Record) error

	// Delete removes a key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources.
	Close(ctx context.Context) error
}

// TagTable is the tag index table.
type TagTable interface {
	// Put upserts a row by ID.
	Put(ctx context.Context, row TagRow) error

	// Delete removes a row by ID. Missing rows are not an error.
	Delete(ctx context.Context, id string) error

	// Scan yields every row whose attribute equals value. Order is unspecified.
	// A failure is yielded once as (TagRow{}, err) and ends the sequence.
	Scan(ctx context.Context, attr Attribute, value string) iter.Seq2[TagRow, error]

	// Close releases resources.
	Close(ctx context.Context) error
}

// Store bundles the two tables behind one lifecycle.
type Store interface {
	Entries() EntryTable
	Tags() TagTable
	Close(ctx context.Context) error
}

type composed struct {
	entries EntryTable
	tags    TagTable
}

// Compose builds a Store from independent tables. Close closes both.
func Compose(entries EntryTable, tags TagTable) Store {
	return &composed{entries: entries, tags: tags}
}

func (c *composed) Entries() EntryTable { return c.entries }
func (c *composed) Tags() TagTable      { return c.tags }

func (c *composed) Close(ctx context.Context) error {
	return errors.Join(c.entries.Close(ctx), c.tags.Close(ctx))
}

// ScanErr returns a sequence that yields err once.
func ScanErr(err error) iter.Seq2[TagRow, error] {
	return func(yield func(TagRow, error) bool) {
		yield(TagRow{}, err)
	}
}

// Collect drains a scan into a slice.
func Collect(seq iter.Seq2[TagRow, error]) ([]TagRow, error) {
	var out []TagRow
	for row, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, row)
	}
	return out, nil
}
