package codec

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"
)

const NameMsgpack = "msgpack"

// Msgpack is a Codec that serializes the envelope using vmihailenco/msgpack/v5.
// The zero value is ready to use.
type Msgpack struct{}

var _ Codec = Msgpack{}

func (Msgpack) Name() string { return NameMsgpack }

func (Msgpack) Encode(v Value) (string, error) {
	if err := v.validate(); err != nil {
		return "", err
	}
	b, err := msgpack.Marshal(toBinEnvelope(v))
	if err != nil {
		return "", err
	}
	return toText(b), nil
}

func (Msgpack) Decode(s string) (Value, error) {
	b, err := fromText(NameMsgpack, s)
	if err != nil {
		return Value{}, err
	}
	var env binEnvelope
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields(true)
	if err := dec.Decode(&env); err != nil {
		return Value{}, decodeErr(NameMsgpack, "malformed envelope", err)
	}
	return fromBinEnvelope(NameMsgpack, env)
}
