// Package errs defines the error taxonomy shared across the memory manager.
//
// Storage and strategy errors bubble unchanged to the conversation manager
// boundary; callers classify them with errors.Is / IsUpstream rather than
// string matching.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyExists reports a create against a live context id. Recoverable:
	// the caller should pick a different id or load the existing context.
	ErrAlreadyExists = errors.New("context already exists")

	// ErrNotFound reports an operation against an unknown context id.
	ErrNotFound = errors.New("context not found")

	// ErrConfigurationMissing reports unusable startup configuration, such as
	// an empty credential pool. Fatal: the process cannot proceed.
	ErrConfigurationMissing = errors.New("configuration missing")
)

// UpstreamError wraps a failed model or embedding call. Recoverable at the
// turn level: state is left unmutated and the caller may retry the turn.
type UpstreamError struct {
	Op  string // operation that failed, e.g. "summarize", "embed"
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s failed: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Upstream wraps err as an UpstreamError for the named operation.
func Upstream(op string, err error) error {
	return &UpstreamError{Op: op, Err: err}
}

// IsUpstream reports whether err is (or wraps) an UpstreamError.
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}
