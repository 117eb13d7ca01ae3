// services/sitemodel/internal/sitemodel/errors.go
package sitemodel

import "fmt"

// ErrorKind classifies a ModelError.
type ErrorKind string

const (
	KindInvalidArgument    ErrorKind = "INVALID_ARGUMENT"
	KindMissingField       ErrorKind = "MISSING_FIELD"
	KindNotFound           ErrorKind = "NOT_FOUND"
	KindParse              ErrorKind = "PARSE"
	KindNotInitialized     ErrorKind = "NOT_INITIALIZED"
	KindAlreadyInitialized ErrorKind = "ALREADY_INITIALIZED"
	KindUnknownDevice      ErrorKind = "UNKNOWN_DEVICE"
)

// ModelError is returned by every failing site model operation. Context holds
// the offending file path, field name or identifier.
type ModelError struct {
	Kind    ErrorKind
	Context string
	Err     error
}

// Error implements the error interface.
func (e *ModelError) Error() string {
	msg := string(e.Kind)
	if e.Context != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Context)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes the underlying cause.
func (e *ModelError) Unwrap() error {
	return e.Err
}

// Is reports a match against the kind sentinels below, so callers can write
// errors.Is(err, sitemodel.ErrUnknownDevice).
func (e *ModelError) Is(target error) bool {
	t, ok := target.(*ModelError)
	if !ok {
		return false
	}
	return t.Context == "" && t.Err == nil && t.Kind == e.Kind
}

// Kind sentinels.
var (
	ErrInvalidArgument    = &ModelError{Kind: KindInvalidArgument}
	ErrMissingField       = &ModelError{Kind: KindMissingField}
	ErrNotFound           = &ModelError{Kind: KindNotFound}
	ErrParse              = &ModelError{Kind: KindParse}
	ErrNotInitialized     = &ModelError{Kind: KindNotInitialized}
	ErrAlreadyInitialized = &ModelError{Kind: KindAlreadyInitialized}
	ErrUnknownDevice      = &ModelError{Kind: KindUnknownDevice}
)

func newError(kind ErrorKind, context string, err error) *ModelError {
	return &ModelError{Kind: kind, Context: context, Err: err}
}
