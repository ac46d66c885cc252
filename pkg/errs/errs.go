// Package errs classifies failures that cross service boundaries into a small
// set of kinds callers can branch on.
package errs

import (
	"errors"
	"fmt"
)

// Kind identifies a class of failure.
type Kind string

const (
	KindConfiguration   Kind = "CONFIGURATION_ERROR"
	KindExtraction      Kind = "EXTRACTION_ERROR"
	KindEmptyContent    Kind = "EMPTY_CONTENT"
	KindDuplicate       Kind = "DUPLICATE"
	KindAdapterContract Kind = "ADAPTER_CONTRACT_VIOLATION"
	KindPersistence     Kind = "PERSISTENCE_ERROR"
	KindNotFound        Kind = "NOT_FOUND"
	KindExternalService Kind = "EXTERNAL_SERVICE_ERROR"
	KindUpload          Kind = "UPLOAD_ERROR"
	KindInvalidRequest  Kind = "INVALID_REQUEST"
	KindUnknown         Kind = "UNKNOWN"
)

// Error is a classified failure. Message is safe to show to callers; Err
// carries the underlying cause and is only meant for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same kind, so errors.Is(err, errs.New(KindNotFound, ""))
// style checks work regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New creates a classified error without a cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a classified error around cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// Newf creates a classified error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// PublicMessage returns the caller-facing message for err. Internal kinds
// collapse to a generic message so storage and provider details stay in logs.
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "internal error"
	}

	switch e.Kind {
	case KindPersistence:
		return "storage operation failed"
	case KindAdapterContract:
		return "embedding provider returned an unexpected response"
	case KindExternalService:
		if e.Message != "" {
			return e.Message
		}
		return "upstream service unavailable"
	case KindUnknown:
		return "internal error"
	default:
		return e.Message
	}
}
