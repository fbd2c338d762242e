// Package codec converts cache values to a storable text payload and back.
//
// A payload is always a plain string: JSON envelopes are text already, binary
// envelopes (CBOR, Msgpack, Protobuf, Zstd) are base64 wrapped. Every envelope
// carries a format version and the value kind so Decode is unambiguous.
package codec

import (
	"encoding/base64"
	"errors"
	"fmt"
)

// envelopeVersion is bumped whenever an envelope layout changes.
const envelopeVersion = 1

// ErrUndrained is returned by Encode when a stream value was not drained first.
var ErrUndrained = errors.New("codec: stream value must be drained before encoding")

// Codec encodes/decodes Values to a text payload for storage.
// Name identifies the format and is persisted next to the payload; a reader
// configured with a different codec refuses the payload.
type Codec interface {
	Name() string
	Encode(Value) (string, error)
	Decode(string) (Value, error)
}

// Error is returned by Decode for malformed, foreign or unsupported payloads.
type Error struct {
	Codec  string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("codec %s: %s: %v", e.Codec, e.Reason, e.Err)
	}
	return fmt.Sprintf("codec %s: %s", e.Codec, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

func decodeErr(name, reason string, err error) error {
	return &Error{Codec: name, Reason: reason, Err: err}
}

// IsDecodeError reports whether err came from a failed Decode.
func IsDecodeError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}

// checkEnvelope validates the fields shared by all envelope layouts.
func checkEnvelope(name string, version uint64, kind Kind) error {
	if version != envelopeVersion {
		return decodeErr(name, fmt.Sprintf("unsupported envelope version %d", version), nil)
	}
	if !kind.valid() {
		return decodeErr(name, fmt.Sprintf("unknown value kind %d", kind), nil)
	}
	return nil
}

func toText(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

func fromText(name, s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, decodeErr(name, "payload is not base64", err)
	}
	return b, nil
}

// ByName returns the built-in codec with the given name.
func ByName(name string) (Codec, error) {
	switch name {
	case "", NameJSON:
		return JSON{}, nil
	case NameCBOR:
		return NewCBOR(false)
	case NameMsgpack:
		return Msgpack{}, nil
	case NameProtobuf:
		return Protobuf{}, nil
	case NameZstd + "+" + NameJSON:
		return NewZstd(JSON{})
	default:
		return nil, fmt.Errorf("codec: unknown codec %q", name)
	}
}
