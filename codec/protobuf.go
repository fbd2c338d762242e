package codec

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

const NameProtobuf = "protobuf"

// Protobuf field numbers.
//
//	message Envelope {
//	  uint64 version = 1;
//	  uint32 kind = 2;
//	  bytes body = 3;
//	  repeated Segment segments = 4;
//	}
//	message Segment {
//	  string path = 1;
//	  bytes data = 2;
//	}
const (
	pbVersion  protowire.Number = 1
	pbKind     protowire.Number = 2
	pbBody     protowire.Number = 3
	pbSegments protowire.Number = 4

	pbSegPath protowire.Number = 1
	pbSegData protowire.Number = 2
)

// Protobuf is a Codec that writes the envelope in protobuf wire format, so
// other services can read payloads with a generated message. The zero value is ready to use.
type Protobuf struct{}

var _ Codec = Protobuf{}

func (Protobuf) Name() string { return NameProtobuf }

func (Protobuf) Encode(v Value) (string, error) {
	if err := v.validate(); err != nil {
		return "", err
	}
	var b []byte
	b = protowire.AppendTag(b, pbVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, envelopeVersion)
	b = protowire.AppendTag(b, pbKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(v.Kind))
	switch v.Kind {
	case KindBlob, KindStream:
		b = protowire.AppendTag(b, pbBody, protowire.BytesType)
		b = protowire.AppendBytes(b, v.Blob)
	case KindSegments:
		for _, s := range v.Segments {
			var seg []byte
			seg = protowire.AppendTag(seg, pbSegPath, protowire.BytesType)
			seg = protowire.AppendString(seg, s.Path)
			seg = protowire.AppendTag(seg, pbSegData, protowire.BytesType)
			seg = protowire.AppendBytes(seg, s.Data)
			b = protowire.AppendTag(b, pbSegments, protowire.BytesType)
			b = protowire.AppendBytes(b, seg)
		}
	}
	return toText(b), nil
}

func (Protobuf) Decode(s string) (Value, error) {
	b, err := fromText(NameProtobuf, s)
	if err != nil {
		return Value{}, err
	}
	var (
		version uint64
		kind    uint64
		body    []byte
		segs    []Segment
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Value{}, decodeErr(NameProtobuf, "bad tag", protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == pbVersion && typ == protowire.VarintType:
			version, n = protowire.ConsumeVarint(b)
		case num == pbKind && typ == protowire.VarintType:
			kind, n = protowire.ConsumeVarint(b)
		case num == pbBody && typ == protowire.BytesType:
			var raw []byte
			raw, n = protowire.ConsumeBytes(b)
			if n >= 0 {
				body = append([]byte{}, raw...)
			}
		case num == pbSegments && typ == protowire.BytesType:
			var raw []byte
			raw, n = protowire.ConsumeBytes(b)
			if n >= 0 {
				seg, err := decodePBSegment(raw)
				if err != nil {
					return Value{}, err
				}
				segs = append(segs, seg)
			}
		default:
			return Value{}, decodeErr(NameProtobuf, fmt.Sprintf("unexpected field %d", num), nil)
		}
		if n < 0 {
			return Value{}, decodeErr(NameProtobuf, fmt.Sprintf("bad field %d", num), protowire.ParseError(n))
		}
		b = b[n:]
	}
	if kind > 0xFF {
		return Value{}, decodeErr(NameProtobuf, fmt.Sprintf("unknown value kind %d", kind), nil)
	}
	env := binEnvelope{V: version, Kind: uint8(kind), Blob: body}
	for _, sg := range segs {
		env.Segments = append(env.Segments, binSegment{Path: sg.Path, Data: sg.Data})
	}
	return fromBinEnvelope(NameProtobuf, env)
}

func decodePBSegment(b []byte) (Segment, error) {
	var seg Segment
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 || typ != protowire.BytesType {
			return Segment{}, decodeErr(NameProtobuf, "bad segment tag", nil)
		}
		b = b[n:]
		raw, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return Segment{}, decodeErr(NameProtobuf, "bad segment field", protowire.ParseError(n))
		}
		switch num {
		case pbSegPath:
			seg.Path = string(raw)
		case pbSegData:
			seg.Data = append([]byte{}, raw...)
		default:
			return Segment{}, decodeErr(NameProtobuf, fmt.Sprintf("unexpected segment field %d", num), nil)
		}
		b = b[n:]
	}
	return seg, nil
}
