package contracts

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced by the forecast pipeline
type ErrorKind string

const (
	KindProviderUnavailable ErrorKind = "provider_unavailable"
	KindGeneration          ErrorKind = "generation_failure"
	KindParse               ErrorKind = "parse_error"
	KindPersistence         ErrorKind = "persistence_error"
	KindInput               ErrorKind = "input_error"
	KindNotFound            ErrorKind = "not_found"
	KindInternal            ErrorKind = "internal"
)

// Error carries a kind, the failing operation and the cause
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// NewError wraps err with a kind and operation name
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels below, so errors.Is(err, ErrNotFound) works
// through any amount of wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Op != "" || t.Err != nil {
		return false
	}
	return t.Kind == e.Kind
}

// Kind sentinels for errors.Is
var (
	ErrProviderUnavailable = &Error{Kind: KindProviderUnavailable}
	ErrGeneration          = &Error{Kind: KindGeneration}
	ErrParse               = &Error{Kind: KindParse}
	ErrPersistence         = &Error{Kind: KindPersistence}
	ErrInput               = &Error{Kind: KindInput}
	ErrNotFound            = &Error{Kind: KindNotFound}
)

// KindOf returns the kind of the outermost *Error in err's chain
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
