package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/unkn0wn-root/tagcache/store"
)

const (
	version    byte = 1
	kindRecord byte = 1
)

var (
	ErrCorrupt = errors.New("tagcache: corrupt record")
	magic4     = [...]byte{'T', 'A', 'G', 'C'}
)

const maxShort = 0xFFFF

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Record layout:
//
//	magic(4) | ver(1) | kind(1=record) | lastModified(i64 be)
//	idLen(u16 be) | id(idLen) | dataLen(u32 be) | data(dataLen)
//	nTags(u16 be) | (tagLen(u16 be) | tag(tagLen)) * nTags
func EncodeRecord(rec store.Record) ([]byte, error) {
	if l := len(rec.ID); l == 0 || l > maxShort {
		return nil, fmt.Errorf("tagcache: invalid key length %d", l)
	}
	if len(rec.Tags) > maxShort {
		return nil, fmt.Errorf("tagcache: too many tags (%d)", len(rec.Tags))
	}
	total := 4 + 1 + 1 + 8 + 2 + len(rec.ID) + 4 + len(rec.Data) + 2
	for _, t := range rec.Tags {
		if len(t) > maxShort {
			return nil, fmt.Errorf("tagcache: tag too long (%d)", len(t))
		}
		total += 2 + len(t)
	}

	var buf bytes.Buffer
	buf.Grow(total)

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindRecord)

	var u8 [8]byte
	var u4 [4]byte
	var u2 [2]byte

	binary.BigEndian.PutUint64(u8[:], uint64(rec.LastModified))
	buf.Write(u8[:])

	binary.BigEndian.PutUint16(u2[:], uint16(len(rec.ID)))
	buf.Write(u2[:])
	buf.WriteString(rec.ID)

	binary.BigEndian.PutUint32(u4[:], uint32(len(rec.Data)))
	buf.Write(u4[:])
	buf.WriteString(rec.Data)

	binary.BigEndian.PutUint16(u2[:], uint16(len(rec.Tags)))
	buf.Write(u2[:])
	for _, t := range rec.Tags {
		binary.BigEndian.PutUint16(u2[:], uint16(len(t)))
		buf.Write(u2[:])
		buf.WriteString(t)
	}
	return buf.Bytes(), nil
}

func DecodeRecord(b []byte) (store.Record, error) {
	const hdr = 4 + 1 + 1 + 8
	if len(b) < hdr || !hasMagic(b) || b[4] != version || b[5] != kindRecord {
		return store.Record{}, ErrCorrupt
	}
	r := reader{b: b, off: 6}

	lm, ok := r.u64()
	if !ok {
		return store.Record{}, ErrCorrupt
	}
	id, ok := r.str16()
	if !ok || id == "" {
		return store.Record{}, ErrCorrupt
	}
	dlen, ok := r.u32()
	if !ok {
		return store.Record{}, ErrCorrupt
	}
	data, ok := r.take(int(dlen))
	if !ok {
		return store.Record{}, ErrCorrupt
	}
	n, ok := r.u16()
	if !ok {
		return store.Record{}, ErrCorrupt
	}
	var tags []string
	if n > 0 {
		tags = make([]string, 0, n)
	}
	for i := 0; i < int(n); i++ {
		t, ok := r.str16()
		if !ok {
			return store.Record{}, ErrCorrupt
		}
		tags = append(tags, t)
	}
	if r.off != len(b) {
		return store.Record{}, ErrCorrupt // trailing bytes
	}
	return store.Record{ID: id, Data: string(data), LastModified: int64(lm), Tags: tags}, nil
}

type reader struct {
	b   []byte
	off int
}

func (r *reader) take(n int) ([]byte, bool) {
	if n < 0 || n > len(r.b)-r.off { // overflow-safe bound check
		return nil, false
	}
	out := r.b[r.off : r.off+n]
	r.off += n
	return out, true
}

func (r *reader) u16() (uint16, bool) {
	p, ok := r.take(2)
	if !ok {
		return 0, false
	}
	return binary.BigEndian.Uint16(p), true
}

func (r *reader) u32() (uint32, bool) {
	p, ok := r.take(4)
	if !ok {
		return 0, false
	}
	return binary.BigEndian.Uint32(p), true
}

func (r *reader) u64() (uint64, bool) {
	p, ok := r.take(8)
	if !ok {
		return 0, false
	}
	return binary.BigEndian.Uint64(p), true
}

func (r *reader) str16() (string, bool) {
	n, ok := r.u16()
	if !ok {
		return "", false
	}
	p, ok := r.take(int(n))
	if !ok {
		return "", false
	}
	return string(p), true
}
