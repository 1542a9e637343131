// Package validation defines the error returned when a player action is
// rejected before it touches any state.
package validation

import (
	"errors"
	"fmt"
)

// Code classifies why an action was rejected.
type Code string

const (
	UnknownKind           Code = "unknown_kind"
	PrerequisiteUnmet     Code = "prerequisite_unmet"
	InsufficientResources Code = "insufficient_resources"
	NotFound              Code = "not_found"
	QueueFull             Code = "queue_full"
	InvalidArgument       Code = "invalid_argument"
	AlreadyDone           Code = "already_done"
)

// Error is a rejected action. Nothing has been deducted or enqueued when
// one is returned.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"error"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Errorf builds an Error with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Is reports whether err is (or wraps) a validation Error with the given code.
func Is(err error, code Code) bool {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Code == code
	}
	return false
}

// As extracts the validation Error from err, if any.
func As(err error) (*Error, bool) {
	var ve *Error
	ok := errors.As(err, &ve)
	return ve, ok
}
