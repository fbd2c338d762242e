package codec

import (
	"fmt"
	"io"
)

// Kind tags which variant a Value carries.
type Kind uint8

const (
	KindBlob Kind = iota + 1
	KindSegments
	KindStream
)

func (k Kind) String() string {
	switch k {
	case KindBlob:
		return "blob"
	case KindSegments:
		return "segments"
	case KindStream:
		return "stream"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

func (k Kind) valid() bool { return k >= KindBlob && k <= KindStream }

// Segment is one named piece of a segmented value.
type Segment struct {
	Path string
	Data []byte
}

// Value is the logical cache value.
//
//   - KindBlob: Blob holds the bytes.
//   - KindSegments: Segments holds an ordered path -> bytes mapping. Paths are unique.
//   - KindStream: on write, Stream is a one-shot producer that must be drained
//     (see Drain) before encoding; after Drain, Blob holds the bytes and Stream is nil.
//     On read, Stream is a fresh OneShot over the stored bytes.
type Value struct {
	Kind     Kind
	Blob     []byte
	Segments []Segment
	Stream   io.Reader
}

func Blob(b []byte) Value { return Value{Kind: KindBlob, Blob: b} }

func Segmented(segs ...Segment) Value {
	if segs == nil {
		segs = []Segment{}
	}
	return Value{Kind: KindSegments, Segments: segs}
}

func Stream(r io.Reader) Value { return Value{Kind: KindStream, Stream: r} }

// Segment returns the data stored under path.
func (v Value) Segment(path string) ([]byte, bool) {
	for _, s := range v.Segments {
		if s.Path == path {
			return s.Data, true
		}
	}
	return nil, false
}

// Drained reports whether v can be encoded without touching a stream.
func (v Value) Drained() bool { return v.Kind != KindStream || v.Stream == nil }

// validate checks the structural rules every codec shares.
func (v Value) validate() error {
	if !v.Kind.valid() {
		return fmt.Errorf("codec: unsupported value kind %s", v.Kind)
	}
	if !v.Drained() {
		return ErrUndrained
	}
	if v.Kind == KindSegments {
		seen := make(map[string]struct{}, len(v.Segments))
		for _, s := range v.Segments {
			if _, dup := seen[s.Path]; dup {
				return fmt.Errorf("codec: duplicate segment path %q", s.Path)
			}
			seen[s.Path] = struct{}{}
		}
	}
	return nil
}

// finish converts a decoded stream value into its read-side shape.
func finish(v Value) Value {
	if v.Kind == KindStream {
		v.Stream = NewOneShot(v.Blob)
		v.Blob = nil
	}
	if v.Kind == KindSegments && v.Segments == nil {
		v.Segments = []Segment{}
	}
	return v
}
