// Package apperr defines the error taxonomy shared by the tracker and the CLI.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind classifies an error for propagation and exit-code purposes.
type Kind string

const (
	KindUnknown     Kind = "unknown_error"
	KindInput       Kind = "invalid_input"
	KindNotFound    Kind = "not_found"
	KindExists      Kind = "already_exists"
	KindUpstream    Kind = "api_error"
	KindRateLimited Kind = "rate_limited"
	KindAuth        Kind = "invalid_api_key"
	KindNetwork     Kind = "network_error"
	KindStorage     Kind = "db_error"
	KindConfig      Kind = "config_error"
)

// Exit codes returned by the CLI.
const (
	ExitAlerts    = 0
	ExitNoAlerts  = 1
	ExitUpstream  = 2
	ExitNetwork   = 3
	ExitData      = 4
	ExitConfig    = 5
	ExitStorage   = 6
	ExitInterrupt = 130
)

// Error is a classified error. Op names the failing operation.
type Error struct {
	Kind       Kind
	Op         string
	Message    string
	RetryAfter time.Duration
	Details    map[string]any
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind so errors.Is(err, apperr.RateLimited) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels usable with errors.Is.
var (
	Input       = &Error{Kind: KindInput}
	NotFound    = &Error{Kind: KindNotFound}
	Exists      = &Error{Kind: KindExists}
	Upstream    = &Error{Kind: KindUpstream}
	RateLimited = &Error{Kind: KindRateLimited}
	Auth        = &Error{Kind: KindAuth}
	Network     = &Error{Kind: KindNetwork}
	Storage     = &Error{Kind: KindStorage}
	Config      = &Error{Kind: KindConfig}
)

// New creates a classified error.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err. A nil err returns nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first classified error in the chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}
	return KindUnknown
}

// Retryable reports whether the caller may retry after backing off.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindRateLimited, KindNetwork:
		return true
	}
	return false
}

// RetryAfterOf returns the upstream retry hint, if any.
func RetryAfterOf(err error) time.Duration {
	var e *Error
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}

// ExitCode maps an error to the CLI exit code.
func ExitCode(err error) int {
	switch KindOf(err) {
	case "":
		return ExitAlerts
	case KindUpstream, KindRateLimited, KindAuth:
		return ExitUpstream
	case KindNetwork:
		return ExitNetwork
	case KindInput, KindNotFound, KindExists:
		return ExitData
	case KindConfig:
		return ExitConfig
	case KindStorage:
		return ExitStorage
	}
	return ExitNoAlerts
}

// Payload is the JSON shape written to stderr by the CLI.
func Payload(err error) map[string]any {
	out := map[string]any{
		"error":   string(KindOf(err)),
		"message": err.Error(),
		"details": map[string]any{},
	}
	var e *Error
	if errors.As(err, &e) && e.Details != nil {
		out["details"] = e.Details
	}
	if ra := RetryAfterOf(err); ra > 0 {
		out["retry_after_seconds"] = int(ra / time.Second)
	}
	return out
}
