package tagcache

// MissReason explains why Get reported a miss.
type MissReason string

const (
	MissAbsent        MissReason = "absent"
	MissDisabled      MissReason = "disabled"
	MissStoreError    MissReason = "store_error"
	MissCorrupt       MissReason = "corrupt"        // record data is not a tagcache document
	MissCodecMismatch MissReason = "codec_mismatch" // written by a differently configured codec
	MissDecode        MissReason = "decode"         // codec refused the payload
)

// Hooks are lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking; they run on the request path.
// Wrap slow sinks with hooks/async.
type Hooks interface {
	Hit(key string)
	Miss(key string, reason MissReason)

	// A store operation failed on the write path (op ∈ {"set", "delete", "revalidate"}).
	StoreError(op, key string, err error)

	// An entry was deleted but its tag rows could not be dropped; they will be
	// cleared by the next Set/Delete/RevalidateByTag touching the key.
	IndexDropError(key string, err error)

	// RevalidateByTag finished; evicted is the number of entries removed.
	Revalidated(tags []string, evicted int)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) Hit(string)                       {}
func (NopHooks) Miss(string, MissReason)          {}
func (NopHooks) StoreError(string, string, error) {}
func (NopHooks) IndexDropError(string, error)     {}
func (NopHooks) Revalidated([]string, int)        {}
