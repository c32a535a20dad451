// Package providers contains the third-party data adapters and the
// uniform result type they all return. No adapter panics or lets an
// HTTP error escape: every outcome is a Result with an ErrorKind the
// router and pipeline can act on.
package providers

import "time"

// ErrorKind classifies provider failures. Rate limits are distinguished
// from other failures so callers can apply backoff windows.
type ErrorKind string

const (
	ErrNone         ErrorKind = ""
	ErrMissingKey   ErrorKind = "missing_key"
	ErrRateLimited  ErrorKind = "rate_limited"
	ErrHTTP5xx      ErrorKind = "http_5xx"
	ErrHTTP4xx      ErrorKind = "http_4xx"
	ErrNetwork      ErrorKind = "network_error"
	ErrEmpty        ErrorKind = "empty"
	ErrMissingPrice ErrorKind = "missing_price"
	ErrSchema       ErrorKind = "schema"
	ErrTimeout      ErrorKind = "timeout"
)

// Retriable reports whether a failure of this kind may succeed on a
// different provider or a later attempt.
func (k ErrorKind) Retriable() bool {
	switch k {
	case ErrRateLimited, ErrHTTP5xx, ErrNetwork, ErrTimeout:
		return true
	default:
		return false
	}
}

// Result is the uniform provider outcome.
type Result[T any] struct {
	OK       bool
	Data     T
	Latency  time.Duration
	Kind     ErrorKind
	Detail   string
	Degraded bool
	CacheHit bool
}

// Ok builds a successful result.
func Ok[T any](data T, latency time.Duration) Result[T] {
	return Result[T]{OK: true, Data: data, Latency: latency}
}

// Fail builds a failed result with a kind and human-readable detail.
func Fail[T any](kind ErrorKind, detail string, latency time.Duration) Result[T] {
	return Result[T]{Kind: kind, Detail: detail, Latency: latency}
}

// Note renders the debug-note form "<source>_error:<detail>" used across
// the pipeline's debug block.
func (r Result[T]) Note(source string) string {
	if r.OK {
		return ""
	}
	detail := string(r.Kind)
	if r.Detail != "" {
		detail = detail + ":" + r.Detail
	}
	return source + "_error:" + detail
}
