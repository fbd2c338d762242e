package wire

import (
	"encoding/binary"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/unkn0wn-root/tagcache/store"
)

func mustEncode(t *testing.T, rec store.Record) []byte {
	t.Helper()
	b, err := EncodeRecord(rec)
	if err != nil {
		t.Fatalf("EncodeRecord error: %v", err)
	}
	return b
}

func mustDecode(t *testing.T, b []byte) store.Record {
	t.Helper()
	rec, err := DecodeRecord(b)
	if err != nil {
		t.Fatalf("DecodeRecord error: %v", err)
	}
	return rec
}

func TestRecordRoundTrip(t *testing.T) {
	cases := []store.Record{
		{ID: "k"},
		{ID: "/product/42", Data: `{"codec":"json"}`, LastModified: 1700000000000, Tags: []string{"product", "catalog"}},
		{ID: "neg", LastModified: math.MinInt64, Tags: []string{""}},
		{ID: strings.Repeat("b", 0xFFFF), Data: strings.Repeat("d", 1<<16)},
	}
	for _, rec := range cases {
		got := mustDecode(t, mustEncode(t, rec))
		if !reflect.DeepEqual(got, rec) {
			t.Fatalf("round trip mismatch (key len %d): got tags=%q lm=%d data len=%d", len(rec.ID), got.Tags, got.LastModified, len(got.Data))
		}
	}
}

func TestRecordRejectsTrailingBytes(t *testing.T) {
	enc := mustEncode(t, store.Record{ID: "k", Data: "x"})
	enc = append(enc, 0xDE, 0xAD) // add junk
	if _, err := DecodeRecord(enc); err == nil {
		t.Fatalf("expected error on trailing bytes")
	}
}

func TestRecordKeyLengthValidation(t *testing.T) {
	// empty key -> error
	if _, err := EncodeRecord(store.Record{ID: ""}); err == nil {
		t.Fatalf("expected error on empty key")
	}
	// too long key (65536) -> error
	if _, err := EncodeRecord(store.Record{ID: strings.Repeat("a", 0x10000)}); err == nil {
		t.Fatalf("expected error on key length > 0xFFFF")
	}
	// too long tag -> error
	if _, err := EncodeRecord(store.Record{ID: "k", Tags: []string{strings.Repeat("t", 0x10000)}}); err == nil {
		t.Fatalf("expected error on tag length > 0xFFFF")
	}
}

func TestRecordCorruptHeadersAndLengths(t *testing.T) {
	enc := mustEncode(t, store.Record{ID: "k", Data: "abc", Tags: []string{"t"}})

	// bad magic
	badMagic := append([]byte(nil), enc...)
	badMagic[0] = 'X'
	if _, err := DecodeRecord(badMagic); err == nil {
		t.Fatalf("expected error on bad magic")
	}

	// wrong version
	badVer := append([]byte(nil), enc...)
	badVer[4] = version + 1
	if _, err := DecodeRecord(badVer); err == nil {
		t.Fatalf("expected error on bad version")
	}

	// wrong kind
	badKind := append([]byte(nil), enc...)
	badKind[5] = kindRecord + 1
	if _, err := DecodeRecord(badKind); err == nil {
		t.Fatalf("expected error on bad kind")
	}

	// header: 4 magic +1 ver +1 kind +8 lastModified = 14 bytes
	// then: 2 idLen + id + 4 dataLen + data + 2 nTags + tags
	const idOff = 14
	badID := append([]byte(nil), enc...)
	binary.BigEndian.PutUint16(badID[idOff:idOff+2], 0x7FFF)
	if _, err := DecodeRecord(badID); err == nil {
		t.Fatalf("expected error on idLen beyond buffer")
	}

	dataOff := idOff + 2 + len("k")
	badData := append([]byte(nil), enc...)
	binary.BigEndian.PutUint32(badData[dataOff:dataOff+4], uint32(len("abc")+100))
	if _, err := DecodeRecord(badData); err == nil {
		t.Fatalf("expected error on dataLen beyond buffer")
	}

	tagsOff := dataOff + 4 + len("abc")
	badTags := append([]byte(nil), enc...)
	binary.BigEndian.PutUint16(badTags[tagsOff:tagsOff+2], 9)
	if _, err := DecodeRecord(badTags); err == nil {
		t.Fatalf("expected error on nTags beyond buffer")
	}

	// truncated buffer
	if _, err := DecodeRecord(enc[:len(enc)-1]); err == nil {
		t.Fatalf("expected error on truncated buffer")
	}

	// foreign bytes
	if _, err := DecodeRecord([]byte("not-wire-format")); err == nil {
		t.Fatalf("expected error on foreign bytes")
	}
}
