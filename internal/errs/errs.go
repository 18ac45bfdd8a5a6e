// Package errs defines the closed set of error kinds shared by the router,
// provider adapters, the task scheduler and the query interface.
package errs

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies an error. The set is closed; callers switch on it.
type Kind string

const (
	KindUnknownLanguage     Kind = "unknown_language"
	KindProviderUnavailable Kind = "provider_unavailable"
	KindRateLimited         Kind = "rate_limited"
	KindAuthFailed          Kind = "auth_failed"
	KindUpstreamFailed      Kind = "upstream_failed"
	KindTimeout             Kind = "timeout"
	KindCanceled            Kind = "canceled"
	KindInternal            Kind = "internal"

	// Interface misuse, never stored on a task.
	KindNotFound        Kind = "not_found"
	KindNotReady        Kind = "not_ready"
	KindIndexOutOfRange Kind = "index_out_of_range"
	KindInvalidParams   Kind = "invalid_params"
	KindTaskActive      Kind = "task_active"
)

// Retryable reports whether errors of this kind may be retried in place.
// Only upstream throttling qualifies.
func (k Kind) Retryable() bool {
	return k == KindRateLimited
}

// Configuration reports whether the kind describes a setup problem
// (missing language, missing or rejected credentials).
func (k Kind) Configuration() bool {
	switch k {
	case KindUnknownLanguage, KindProviderUnavailable, KindAuthFailed:
		return true
	}
	return false
}

// Error is a classified error.
type Error struct {
	Kind     Kind
	Op       string // operation, e.g. "deepl.translate"
	Provider string // provider name when the error came from an upstream call
	Msg      string
	Err      error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E builds a classified error.
func E(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap classifies err under kind. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Upstream builds an error attributed to a provider.
func Upstream(kind Kind, provider, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Provider: provider, Msg: msg}
}

// KindOf extracts the kind of err. Context errors map to Timeout and
// Canceled; anything unclassified is Internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
