package codec

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

func allCodecs(t *testing.T) []Codec {
	t.Helper()
	z, err := NewZstd(JSON{})
	if err != nil {
		t.Fatalf("NewZstd: %v", err)
	}
	return []Codec{JSON{}, MustCBOR(false), MustCBOR(true), Msgpack{}, Protobuf{}, z, Limit{Inner: JSON{}, MaxDecode: 1 << 20}}
}

func sameValue(t *testing.T, got, want Value) {
	t.Helper()
	if got.Kind != want.Kind {
		t.Fatalf("kind: got %s want %s", got.Kind, want.Kind)
	}
	switch want.Kind {
	case KindBlob:
		if !bytes.Equal(got.Blob, want.Blob) {
			t.Fatalf("blob: got %x want %x", got.Blob, want.Blob)
		}
	case KindStream:
		if got.Stream == nil {
			t.Fatalf("stream: decoded value has no reader")
		}
		b, err := io.ReadAll(got.Stream)
		if err != nil {
			t.Fatalf("stream read: %v", err)
		}
		if !bytes.Equal(b, want.Blob) {
			t.Fatalf("stream: got %x want %x", b, want.Blob)
		}
	case KindSegments:
		if got.Segments == nil {
			t.Fatalf("segments: got nil slice")
		}
		if len(got.Segments) != len(want.Segments) {
			t.Fatalf("segments: got %d want %d", len(got.Segments), len(want.Segments))
		}
		for i := range want.Segments {
			if got.Segments[i].Path != want.Segments[i].Path || !bytes.Equal(got.Segments[i].Data, want.Segments[i].Data) {
				t.Fatalf("segment %d: got %q/%x want %q/%x", i,
					got.Segments[i].Path, got.Segments[i].Data, want.Segments[i].Path, want.Segments[i].Data)
			}
		}
	}
}

func TestRoundTripAllVariants(t *testing.T) {
	binary := make([]byte, 256)
	for i := range binary {
		binary[i] = byte(i)
	}
	cases := []struct {
		name   string
		in     Value
		stream []byte // when set, in is a fresh stream over these bytes
		want   Value
	}{
		{name: "empty blob", in: Blob(nil), want: Blob(nil)},
		{name: "zero-length blob", in: Blob([]byte{}), want: Blob(nil)},
		{name: "html blob", in: Blob([]byte("<html/>")), want: Blob([]byte("<html/>"))},
		{name: "binary blob", in: Blob(binary), want: Blob(binary)},
		{name: "empty segments", in: Segmented(), want: Segmented()},
		{name: "segments keep order", in: Segmented(
			Segment{Path: "/_tree", Data: []byte("tree")},
			Segment{Path: "/_index", Data: binary},
			Segment{Path: "/a/b", Data: nil},
		), want: Segmented(
			Segment{Path: "/_tree", Data: []byte("tree")},
			Segment{Path: "/_index", Data: binary},
			Segment{Path: "/a/b", Data: []byte{}},
		)},
		{name: "stream", stream: []byte("chunked body"), want: Value{Kind: KindStream, Blob: []byte("chunked body")}},
		{name: "empty stream", stream: []byte{}, want: Value{Kind: KindStream}},
	}

	for _, c := range allCodecs(t) {
		for _, tc := range cases {
			t.Run(c.Name()+"/"+tc.name, func(t *testing.T) {
				in := tc.in
				if tc.stream != nil {
					in = Stream(bytes.NewReader(tc.stream))
				}
				drained, err := Drain(in, 0)
				if err != nil {
					t.Fatalf("Drain: %v", err)
				}
				payload, err := c.Encode(drained)
				if err != nil {
					t.Fatalf("Encode: %v", err)
				}
				got, err := c.Decode(payload)
				if err != nil {
					t.Fatalf("Decode: %v", err)
				}
				sameValue(t, got, tc.want)
			})
		}
	}
}

func TestEncodeRejectsUndrainedStream(t *testing.T) {
	for _, c := range allCodecs(t) {
		if _, err := c.Encode(Stream(strings.NewReader("x"))); !errors.Is(err, ErrUndrained) {
			t.Fatalf("%s: expected ErrUndrained, got %v", c.Name(), err)
		}
	}
}

func TestEncodeRejectsDuplicateSegments(t *testing.T) {
	v := Segmented(Segment{Path: "/a"}, Segment{Path: "/a"})
	for _, c := range allCodecs(t) {
		if _, err := c.Encode(v); err == nil {
			t.Fatalf("%s: expected duplicate path error", c.Name())
		}
	}
}

func TestDecodeMalformedIsCodecError(t *testing.T) {
	inputs := []string{"", "not a payload", "%%%", `{"v":1}`, `{"v":2,"__type":"Buffer","base64":""}`, "{}"}
	for _, c := range allCodecs(t) {
		for _, in := range inputs {
			_, err := c.Decode(in)
			if err == nil {
				t.Fatalf("%s: expected error decoding %q", c.Name(), in)
			}
			if !IsDecodeError(err) {
				t.Fatalf("%s: expected *Error for %q, got %T %v", c.Name(), in, err, err)
			}
		}
	}
}

func TestForeignPayloadIsRejected(t *testing.T) {
	payload, err := Msgpack{}.Encode(Blob([]byte("x")))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := (JSON{}).Decode(payload); !IsDecodeError(err) {
		t.Fatalf("json decoding a msgpack payload should fail, got %v", err)
	}
}

func TestJSONEnvelopeShape(t *testing.T) {
	s, err := JSON{}.Encode(Segmented(Segment{Path: "/p", Data: []byte("hi")}))
	if err != nil {
		t.Fatal(err)
	}
	want := `{"v":1,"__type":"Map","entries":[["/p","aGk="]]}`
	if s != want {
		t.Fatalf("got %s want %s", s, want)
	}
}

func TestLimitRejectsOversize(t *testing.T) {
	c := Limit{Inner: JSON{}, MaxDecode: 16}
	s, err := c.Encode(Blob(bytes.Repeat([]byte("a"), 64)))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Decode(s); !IsDecodeError(err) {
		t.Fatalf("expected size error, got %v", err)
	}
}

func TestDrainLimitAndFailure(t *testing.T) {
	if _, err := Drain(Stream(strings.NewReader("0123456789")), 4); !errors.Is(err, ErrStreamTooLarge) {
		t.Fatalf("expected ErrStreamTooLarge, got %v", err)
	}
	v, err := Drain(Stream(strings.NewReader("0123")), 4)
	if err != nil || string(v.Blob) != "0123" || v.Stream != nil {
		t.Fatalf("drain at limit: v=%+v err=%v", v, err)
	}

	boom := errors.New("upstream reset")
	r := io.MultiReader(strings.NewReader("partial"), iotest.ErrReader(boom))
	_, err = Drain(Stream(r), 0)
	var de *DrainError
	if !errors.As(err, &de) || !errors.Is(err, boom) {
		t.Fatalf("expected DrainError wrapping cause, got %v", err)
	}
	if de.Read != int64(len("partial")) {
		t.Fatalf("DrainError.Read: got %d", de.Read)
	}
}

func TestOneShotIsSingleUse(t *testing.T) {
	o := NewOneShot([]byte("abc"))
	b, err := io.ReadAll(o)
	if err != nil || string(b) != "abc" {
		t.Fatalf("first read: %q %v", b, err)
	}
	if n, err := o.Read(make([]byte, 4)); n != 0 || err != io.EOF {
		t.Fatalf("read after exhaustion: n=%d err=%v", n, err)
	}
	_ = o.Close()
	if _, err := o.Read(make([]byte, 4)); !errors.Is(err, ErrConsumed) {
		t.Fatalf("read after close: %v", err)
	}
}

func TestByName(t *testing.T) {
	for _, n := range []string{"", NameJSON, NameCBOR, NameMsgpack, NameProtobuf, "zstd+json"} {
		c, err := ByName(n)
		if err != nil {
			t.Fatalf("ByName(%q): %v", n, err)
		}
		if n != "" && c.Name() != n {
			t.Fatalf("ByName(%q).Name() = %q", n, c.Name())
		}
	}
	if _, err := ByName("yaml"); err == nil {
		t.Fatalf("expected unknown codec error")
	}
}
