// Package errs defines the closed error taxonomy shared by every core
// component. Callers type-switch on Kind rather than matching error
// strings; Wrap/Wrapf preserve the underlying cause via
// github.com/pkg/errors so it stays visible through call chains.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is the closed set of error categories the core can raise.
type Kind string

const (
	Validation       Kind = "validation"
	NotFound         Kind = "not_found"
	PermissionDenied Kind = "permission_denied"
	Conflict         Kind = "conflict"
	Busy             Kind = "busy"
	NotEligible      Kind = "not_eligible"
	Upstream         Kind = "upstream"
	IoError          Kind = "io_error"
	Internal         Kind = "internal"
)

// UpstreamKind further categorizes Upstream errors.
type UpstreamKind string

const (
	RateLimited        UpstreamKind = "rate_limited"
	Overloaded         UpstreamKind = "overloaded"
	ContextTooLong     UpstreamKind = "context_too_long"
	AuthFailed         UpstreamKind = "auth_failed"
	ContentFiltered    UpstreamKind = "content_filtered"
	Timeout            UpstreamKind = "timeout"
	ServerError        UpstreamKind = "server_error"
	EndpointNotFound   UpstreamKind = "endpoint_not_found"
	InsufficientCredit UpstreamKind = "insufficient_credits"
)

// Error is the concrete error type propagated out of the core. It carries
// enough structure for the streaming layer to build an "error" frame
// without re-parsing a message string.
type Error struct {
	Kind       Kind
	Upstream   UpstreamKind // only meaningful when Kind == Upstream
	Message    string
	Suggestion string
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a bare Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches kind+message to an existing cause, preserving it for errors.Is/As.
func Wrap(cause error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, cause: errors.Wrap(cause, message)}
}

// Wrapf is Wrap with format arguments for message.
func Wrapf(cause error, kind Kind, format string, args ...any) *Error {
	msg := fmt.Sprintf(format, args...)
	return &Error{Kind: kind, Message: msg, cause: errors.Wrap(cause, msg)}
}

// UpstreamError builds an Upstream error with the human-facing message
// and suggestion for its sub-kind.
func UpstreamError(kind UpstreamKind, cause error) *Error {
	msg, suggestion := upstreamText[kind]()
	return &Error{
		Kind:       Upstream,
		Upstream:   kind,
		Message:    msg,
		Suggestion: suggestion,
		cause:      cause,
	}
}

var upstreamText = map[UpstreamKind]func() (string, string){
	RateLimited: func() (string, string) {
		return "the provider is rate-limiting requests", "wait a moment and try again"
	},
	Overloaded: func() (string, string) {
		return "the provider is temporarily overloaded", "retry shortly or switch models"
	},
	ContextTooLong: func() (string, string) {
		return "the conversation is too long for this model", "start a new branch or switch to a larger-context model"
	},
	AuthFailed: func() (string, string) {
		return "authentication with the provider failed", "check the configured API key for this profile"
	},
	ContentFiltered: func() (string, string) {
		return "the provider declined to generate a response", "rephrase the message"
	},
	Timeout: func() (string, string) {
		return "the request to the provider timed out", "try again; consider a shorter prompt"
	},
	ServerError: func() (string, string) {
		return "the provider returned a server error", "try again later"
	},
	EndpointNotFound: func() (string, string) {
		return "the provider endpoint could not be reached", "check the profile's base URL"
	},
	InsufficientCredit: func() (string, string) {
		return "insufficient balance for this request", "top up credits or switch to a free profile"
	},
}

// Is reports whether err is an *Error of the given kind, unwrapping through
// wrapped causes.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
