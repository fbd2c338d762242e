package codec

// binEnvelope is the layout shared by the binary codecs (CBOR, Msgpack).
type binEnvelope struct {
	V        uint64       `cbor:"1,keyasint" msgpack:"v"`
	Kind     uint8        `cbor:"2,keyasint" msgpack:"k"`
	Blob     []byte       `cbor:"3,keyasint,omitempty" msgpack:"b,omitempty"`
	Segments []binSegment `cbor:"4,keyasint,omitempty" msgpack:"s,omitempty"`
}

type binSegment struct {
	Path string `cbor:"1,keyasint" msgpack:"p"`
	Data []byte `cbor:"2,keyasint" msgpack:"d"`
}

func toBinEnvelope(v Value) binEnvelope {
	env := binEnvelope{V: envelopeVersion, Kind: uint8(v.Kind)}
	switch v.Kind {
	case KindBlob, KindStream:
		env.Blob = v.Blob
	case KindSegments:
		env.Segments = make([]binSegment, len(v.Segments))
		for i, s := range v.Segments {
			env.Segments[i] = binSegment{Path: s.Path, Data: s.Data}
		}
	}
	return env
}

func fromBinEnvelope(name string, env binEnvelope) (Value, error) {
	kind := Kind(env.Kind)
	if err := checkEnvelope(name, env.V, kind); err != nil {
		return Value{}, err
	}
	v := Value{Kind: kind}
	switch kind {
	case KindBlob, KindStream:
		if len(env.Segments) > 0 {
			return Value{}, decodeErr(name, "segments on a non-segmented value", nil)
		}
		v.Blob = env.Blob
	case KindSegments:
		if len(env.Blob) > 0 {
			return Value{}, decodeErr(name, "body on a segmented value", nil)
		}
		v.Segments = make([]Segment, len(env.Segments))
		for i, s := range env.Segments {
			v.Segments[i] = Segment{Path: s.Path, Data: s.Data}
		}
		if err := v.validate(); err != nil {
			return Value{}, decodeErr(name, "invalid segments", err)
		}
	}
	return finish(v), nil
}
