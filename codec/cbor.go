package codec

import (
	"github.com/fxamacker/cbor/v2"
)

const NameCBOR = "cbor"

// CBOR is a Codec that serializes the envelope using fxamacker/cbor.
// The zero value is NOT ready to use. Construct with NewCBOR or MustCBOR.
//
// Use deterministic=true for canonical encoding (RFC 8949 Core Deterministic)
// when payloads must be byte-for-byte stable (e.g. content hashing).
type CBOR struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var _ Codec = CBOR{}

// NewCBOR constructs a CBOR codec.
//   - deterministic uses CoreDetEncOptions (RFC 8949).
//   - otherwise PreferredUnsortedEncOptions.
//
// Unknown envelope fields are rejected on decode.
func NewCBOR(deterministic bool) (CBOR, error) {
	var eo cbor.EncOptions
	if deterministic {
		eo = cbor.CoreDetEncOptions()
	} else {
		eo = cbor.PreferredUnsortedEncOptions()
	}
	em, err := eo.EncMode()
	if err != nil {
		return CBOR{}, err
	}
	dm, err := (cbor.DecOptions{ExtraReturnErrors: cbor.ExtraDecErrorUnknownField}).DecMode()
	if err != nil {
		return CBOR{}, err
	}
	return CBOR{enc: em, dec: dm}, nil
}

// MustCBOR is like NewCBOR but panics on error.
// Handy for package-level variables in tests/examples.
func MustCBOR(deterministic bool) CBOR {
	c, err := NewCBOR(deterministic)
	if err != nil {
		panic(err)
	}
	return c
}

func (CBOR) Name() string { return NameCBOR }

func (c CBOR) Encode(v Value) (string, error) {
	if err := v.validate(); err != nil {
		return "", err
	}
	b, err := c.enc.Marshal(toBinEnvelope(v))
	if err != nil {
		return "", err
	}
	return toText(b), nil
}

func (c CBOR) Decode(s string) (Value, error) {
	b, err := fromText(NameCBOR, s)
	if err != nil {
		return Value{}, err
	}
	var env binEnvelope
	if err := c.dec.Unmarshal(b, &env); err != nil {
		return Value{}, decodeErr(NameCBOR, "malformed envelope", err)
	}
	return fromBinEnvelope(NameCBOR, env)
}
