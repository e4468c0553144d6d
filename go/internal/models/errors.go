package models

import (
	"errors"
	"fmt"
)

var (
	// ErrBlankNickname blocks session entry
	ErrBlankNickname = &ValidationError{Field: "nickname", Reason: "must not be blank"}
	// ErrEmptyMessage blocks a chat send
	ErrEmptyMessage = &ValidationError{Field: "text", Reason: "must not be empty"}
)

// ValidationError rejects a local action before any remote call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// TransportError wraps a failed call to the remote store.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is (or wraps) a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsTransport reports whether err is (or wraps) a TransportError
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
