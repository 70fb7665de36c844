package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInput marks bad caller input (empty document, out-of-range position).
// Never retried; surfaced to the caller immediately.
var ErrInput = errors.New("invalid input")

// ErrRetrievalUnavailable marks an embedding or index failure. The query
// is aborted since no evidence can be assembled.
var ErrRetrievalUnavailable = errors.New("retrieval unavailable")

// ErrNotFound marks an unknown document or session id.
var ErrNotFound = errors.New("not found")

func InputErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInput, fmt.Sprintf(format, args...))
}

func IsInputError(err error) bool {
	return errors.Is(err, ErrInput)
}

// PartialAddError reports exactly which chunk ids failed to embed during
// an index add. Chunks that embedded successfully are kept.
type PartialAddError struct {
	FailedIDs []string
	Cause     error
}

func NewPartialAddError(ids []string, cause error) *PartialAddError {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	return &PartialAddError{FailedIDs: sorted, Cause: cause}
}

func (e *PartialAddError) Error() string {
	return fmt.Sprintf("embedding failed for chunks [%s]: %v",
		strings.Join(e.FailedIDs, ", "), e.Cause)
}

func (e *PartialAddError) Unwrap() error {
	return e.Cause
}
