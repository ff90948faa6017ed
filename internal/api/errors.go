package api

import (
	"errors"
	"fmt"
)

// Kind classifies a request failure.
type Kind string

const (
	// KindNetwork means the request produced no response (connectivity, timeout).
	KindNetwork Kind = "network"

	// KindAuth means the credential was missing or rejected (401/403).
	KindAuth Kind = "auth"

	// KindServer means the server answered with a non-2xx status or a
	// payload the client could not decode.
	KindServer Kind = "server"

	// KindValidation means the request was rejected client-side before
	// any network call.
	KindValidation Kind = "validation"
)

// Error is a classified request failure.
type Error struct {
	// Kind classifies the failure.
	Kind Kind

	// Status is the HTTP status code, zero when no response was received.
	Status int

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind) + " error"
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NetworkError builds a network-kind error wrapping cause.
func NetworkError(cause error) *Error {
	return &Error{Kind: KindNetwork, Message: "request failed", Err: cause}
}

// AuthError builds an auth-kind error for the given status.
func AuthError(status int) *Error {
	return &Error{Kind: KindAuth, Status: status, Message: "credential rejected"}
}

// ServerError builds a server-kind error for the given status.
func ServerError(status int, message string) *Error {
	if message == "" {
		message = fmt.Sprintf("server returned status %d", status)
	}
	return &Error{Kind: KindServer, Status: status, Message: message}
}

// ValidationError builds a validation-kind error with a formatted message.
func ValidationError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the error's kind, or an empty kind for unclassified errors.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

// IsAuth reports whether err is an auth failure.
func IsAuth(err error) bool {
	return KindOf(err) == KindAuth
}

// IsNetwork reports whether err is a connectivity failure.
func IsNetwork(err error) bool {
	return KindOf(err) == KindNetwork
}

// IsValidation reports whether err was rejected before reaching the network.
func IsValidation(err error) bool {
	return KindOf(err) == KindValidation
}
