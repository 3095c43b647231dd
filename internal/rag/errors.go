// Package rag holds the error taxonomy shared by the ingest and ask paths.
package rag

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies a failure for callers and the HTTP layer.
type Kind string

const (
	KindExtraction Kind = "extraction"
	KindEmbedding  Kind = "embedding"
	KindAgent      Kind = "agent"
	KindTimeout    Kind = "timeout"
	KindNoSession  Kind = "no_session"
	KindValidation Kind = "validation"
	KindBusy       Kind = "busy"
	KindInternal   Kind = "internal"
)

// Error is a classified failure. Op names the step that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// E wraps err with kind and op. A nil err yields nil.
// Timeouts are promoted to KindTimeout regardless of the requested kind.
func E(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var re *Error
	if errors.As(err, &re) && (re.Kind == KindTimeout || re.Kind == kind) {
		return err
	}
	if IsTimeout(err) {
		kind = KindTimeout
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a classified error from a format string.
func Errorf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

var (
	ErrNoSession        = &Error{Kind: KindNoSession, Err: errors.New("no document has been ingested")}
	ErrIngestInProgress = &Error{Kind: KindBusy, Err: errors.New("another ingest is in progress")}
)

// KindOf reports the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	if IsTimeout(err) {
		return KindTimeout
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsTimeout reports whether err came from an expired deadline.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	var re *Error
	if errors.As(err, &re) && re.Kind == KindTimeout {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
