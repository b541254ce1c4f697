// Package apperr is the error taxonomy shared by every service. Handlers map
// a Kind to an HTTP status; only validation and gate errors carry a message
// that is safe to show to the end user.
package apperr

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

type Kind string

const (
	KindAuth         Kind = "auth"
	KindRead         Kind = "read"
	KindWrite        Kind = "write"
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindGateMismatch Kind = "gate_mismatch"
	KindLocked       Kind = "locked"
)

// FieldError is a validation failure on a single input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func Auth(msg string) error { return &Error{Kind: KindAuth, Message: msg} }

func NotFound(msg string) error { return &Error{Kind: KindNotFound, Message: msg} }

func GateMismatch(msg string) error { return &Error{Kind: KindGateMismatch, Message: msg} }

// Locked reports an action that is not allowed in the current state.
func Locked(msg string) error { return &Error{Kind: KindLocked, Message: msg} }

func Validation(msg string, fields ...FieldError) error {
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

// Read wraps a gateway read failure. The cause is kept for logging only.
func Read(err error, msg string) error {
	return &Error{Kind: KindRead, Message: msg, Err: errors.WithStack(err)}
}

// Write wraps a gateway write failure. The cause is kept for logging only.
func Write(err error, msg string) error {
	return &Error{Kind: KindWrite, Message: msg, Err: errors.WithStack(err)}
}

// KindOf returns the kind of the first *Error in err's chain, or "" when err
// is not part of the taxonomy.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Status maps err to the HTTP status a handler should answer with.
func Status(err error) int {
	switch KindOf(err) {
	case KindAuth:
		return http.StatusUnauthorized
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	case KindGateMismatch, KindLocked:
		return http.StatusConflict
	case KindRead:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Public returns the message and field errors that may be shown to the user.
// Gateway and unknown errors collapse into a generic message.
func Public(err error) (string, []FieldError) {
	var e *Error
	if errors.As(err, &e) {
		switch e.Kind {
		case KindAuth, KindValidation, KindNotFound, KindGateMismatch, KindLocked:
			return e.Message, e.Fields
		}
	}
	return "Something went wrong. Please try again.", nil
}
