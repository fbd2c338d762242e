package tagcache

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

var (
	ErrNoStore      = errors.New("tagcache: store is required")
	ErrEmptyKey     = errors.New("tagcache: empty key")
	ErrBadNamespace = errors.New("tagcache: namespace must not contain ':'")
)

// WriteError is a store failure on the write path. It is only returned to
// callers when Options.StrictWrites is set; otherwise it is logged.
type WriteError struct {
	Op  string // "set", "delete"
	Key string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("tagcache: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// RevalidateError collects the failures of one RevalidateByTag call.
// Keys whose entry could not be deleted keep their tag rows so a retry finds them again.
type RevalidateError struct {
	Tags    []string
	Evicted int
	Err     error // multierr-combined
}

func (e *RevalidateError) Error() string {
	errs := multierr.Errors(e.Err)
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("tagcache: revalidate [%s]: evicted %d, %d failure(s): %s",
		strings.Join(e.Tags, ", "), e.Evicted, len(errs), strings.Join(msgs, "; "))
}

func (e *RevalidateError) Unwrap() []error { return multierr.Errors(e.Err) }
