package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrConsumed is returned by a OneShot after Close.
var ErrConsumed = errors.New("codec: stream already consumed")

// DrainError reports a stream that could not be fully read before encoding.
type DrainError struct {
	Read int64 // bytes read before the failure
	Err  error
}

func (e *DrainError) Error() string {
	return fmt.Sprintf("codec: drain stream after %d bytes: %v", e.Read, e.Err)
}

func (e *DrainError) Unwrap() error { return e.Err }

// ErrStreamTooLarge is wrapped by DrainError when a stream exceeds the drain limit.
var ErrStreamTooLarge = errors.New("stream exceeds limit")

// Drain reads a stream value to exhaustion and returns it with Blob populated
// and Stream cleared. Other kinds are returned unchanged. max <= 0 disables the
// size limit. A partial read never yields a value.
func Drain(v Value, max int64) (Value, error) {
	if v.Kind != KindStream || v.Stream == nil {
		return v, nil
	}
	r := v.Stream
	if max > 0 {
		r = io.LimitReader(r, max+1)
	}
	var buf bytes.Buffer
	n, err := buf.ReadFrom(r)
	if c, ok := v.Stream.(io.Closer); ok {
		_ = c.Close()
	}
	if err != nil {
		return Value{}, &DrainError{Read: n, Err: err}
	}
	if max > 0 && n > max {
		return Value{}, &DrainError{Read: n, Err: ErrStreamTooLarge}
	}
	return Value{Kind: KindStream, Blob: buf.Bytes()}, nil
}

// OneShot is a finite, single-use reader over a decoded stream payload.
// It cannot be rewound; once exhausted every Read returns io.EOF and once
// closed every Read returns ErrConsumed.
type OneShot struct {
	mu     sync.Mutex
	buf    []byte
	closed bool
}

var _ io.ReadCloser = (*OneShot)(nil)

func NewOneShot(b []byte) *OneShot { return &OneShot{buf: b} }

func (o *OneShot) Read(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return 0, ErrConsumed
	}
	if len(o.buf) == 0 {
		o.buf = nil
		return 0, io.EOF
	}
	n := copy(p, o.buf)
	o.buf = o.buf[n:]
	return n, nil
}

// Close releases the buffer. Further reads fail.
func (o *OneShot) Close() error {
	o.mu.Lock()
	o.closed = true
	o.buf = nil
	o.mu.Unlock()
	return nil
}
