package codec

import "fmt"

// Limit wraps another codec to enforce a maximum allowed payload size
// at Decode time. Encode is forwarded to Inner unchanged.
// If MaxDecode <= 0, size limiting is disabled.
//
// Typical use: protect against oversized inputs coming from a shared store.
type Limit struct {
	// Inner is the underlying codec being wrapped. It must be set.
	Inner Codec
	// MaxDecode is the maximum permitted length (in bytes) of the incoming
	// payload for Decode.
	MaxDecode int
}

var _ Codec = Limit{}

func (c Limit) Name() string                   { return c.Inner.Name() }
func (c Limit) Encode(v Value) (string, error) { return c.Inner.Encode(v) }
func (c Limit) Decode(s string) (Value, error) {
	if c.MaxDecode > 0 && len(s) > c.MaxDecode {
		return Value{}, decodeErr(c.Inner.Name(), fmt.Sprintf("payload too large: %d > %d", len(s), c.MaxDecode), nil)
	}
	return c.Inner.Decode(s)
}
