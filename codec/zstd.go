package codec

import (
	"github.com/klauspost/compress/zstd"
)

const NameZstd = "zstd"

// Zstd compresses the payload of an inner codec. Large rendered pages
// compress well; small values pay a few bytes of framing.
// Construct with NewZstd; the encoder and decoder are safe for concurrent use.
type Zstd struct {
	inner Codec
	enc   *zstd.Encoder
	dec   *zstd.Decoder
}

var _ Codec = (*Zstd)(nil)

func NewZstd(inner Codec) (*Zstd, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, err
	}
	return &Zstd{inner: inner, enc: enc, dec: dec}, nil
}

func (z *Zstd) Name() string { return NameZstd + "+" + z.inner.Name() }

func (z *Zstd) Encode(v Value) (string, error) {
	s, err := z.inner.Encode(v)
	if err != nil {
		return "", err
	}
	return toText(z.enc.EncodeAll([]byte(s), nil)), nil
}

func (z *Zstd) Decode(s string) (Value, error) {
	b, err := fromText(z.Name(), s)
	if err != nil {
		return Value{}, err
	}
	raw, err := z.dec.DecodeAll(b, nil)
	if err != nil {
		return Value{}, decodeErr(z.Name(), "decompress", err)
	}
	return z.inner.Decode(string(raw))
}
