// Package tagcache implements a store-agnostic, tag-addressable cache for
// incrementally regenerated pages and API responses.
//
// Each entry is written once under its cache key together with a list of tags.
// Tags are kept in a separate table (one row per key/tag pair) so a single
// RevalidateByTag call can evict every entry carrying a tag without scanning
// the entry table.
//
// Components:
//   - Store: two tables, entries and tag rows (see package store and its
//     memory, redis, bigcache, ristretto and sqlstore implementations).
//   - Codec: converts a codec.Value (blob, named segments or a stream) to a
//     text payload and back. JSON by default.
//   - Handler: Get / Set / RevalidateByTag / Delete on top of both.
//
// Overwrite:
//
//	Set(k, v1, ["A"])
//	Set(k, v2, ["B"]) // rows for "A" are dropped before "B" is indexed
//	RevalidateByTag("A") // k survives
//
// Reads never fail: a store error, a foreign record or an undecodable payload
// is a miss. Writes absorb store failures unless Options.StrictWrites is set.
package tagcache
