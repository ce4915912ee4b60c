package models

import (
	"context"
	"errors"
)

// Sentinel errors. Callers wrap them with context via fmt.Errorf("...: %w", ErrX)
// and inspect them with errors.Is or KindOf.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidState       = errors.New("invalid state")
	ErrEmptyContext       = errors.New("empty context")
	ErrIncompleteSession  = errors.New("incomplete session")
	ErrBadRequest         = errors.New("bad request")
	ErrAdapterTimeout     = errors.New("adapter timeout")
	ErrAdapterFailed      = errors.New("adapter failed")
	ErrAdapterUnavailable = errors.New("adapter unavailable")
	ErrGenerationFailed   = errors.New("generation failed")
	ErrScoringFailed      = errors.New("scoring failed")
)

// ErrorKind is the reported name of a failure class.
type ErrorKind string

const (
	KindNotFound           ErrorKind = "not_found"
	KindInvalidState       ErrorKind = "invalid_state"
	KindEmptyContext       ErrorKind = "empty_context"
	KindIncompleteSession  ErrorKind = "incomplete_session"
	KindBadRequest         ErrorKind = "bad_request"
	KindAdapterTimeout     ErrorKind = "adapter_timeout"
	KindAdapterFailed      ErrorKind = "adapter_failed"
	KindAdapterUnavailable ErrorKind = "adapter_unavailable"
	KindGenerationFailed   ErrorKind = "generation_failed"
	KindScoringFailed      ErrorKind = "scoring_failed"
	KindCancelled          ErrorKind = "cancelled"
	KindInternal           ErrorKind = "internal"
)

var errorKinds = []struct {
	err  error
	kind ErrorKind
}{
	{context.Canceled, KindCancelled},
	{ErrNotFound, KindNotFound},
	{ErrInvalidState, KindInvalidState},
	{ErrEmptyContext, KindEmptyContext},
	{ErrIncompleteSession, KindIncompleteSession},
	{ErrBadRequest, KindBadRequest},
	{ErrAdapterTimeout, KindAdapterTimeout},
	{ErrGenerationFailed, KindGenerationFailed},
	{ErrScoringFailed, KindScoringFailed},
	{ErrAdapterUnavailable, KindAdapterUnavailable},
	{ErrAdapterFailed, KindAdapterFailed},
	{context.DeadlineExceeded, KindAdapterTimeout},
}

// KindOf classifies err. A cancelled caller wins over any adapter failure it
// caused; a bare deadline is a timeout. Unknown errors are KindInternal.
func KindOf(err error) ErrorKind {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// Retryable reports whether the caller may retry the same request unchanged.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindAdapterTimeout, KindAdapterFailed, KindGenerationFailed, KindScoringFailed:
		return true
	}
	return false
}
