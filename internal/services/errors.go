package services

import (
	"errors"
	"fmt"
)

// ErrorKind is a stable, caller-facing error category of the interview core
type ErrorKind string

const (
	KindNotFound                ErrorKind = "not_found"
	KindForbidden               ErrorKind = "forbidden"
	KindInvalidState            ErrorKind = "invalid_state"
	KindMismatch                ErrorKind = "mismatch"
	KindInsufficientEntitlement ErrorKind = "insufficient_entitlement"
	KindInsufficientCatalog     ErrorKind = "insufficient_catalog"
)

// Sentinels for errors.Is checks; any InterviewError of the same kind matches
var (
	ErrNotFound                = &InterviewError{Kind: KindNotFound}
	ErrForbidden               = &InterviewError{Kind: KindForbidden}
	ErrInvalidState            = &InterviewError{Kind: KindInvalidState}
	ErrMismatch                = &InterviewError{Kind: KindMismatch}
	ErrInsufficientEntitlement = &InterviewError{Kind: KindInsufficientEntitlement}
	ErrInsufficientCatalog     = &InterviewError{Kind: KindInsufficientCatalog}
)

// InterviewError carries a kind plus a human message and optional cause
type InterviewError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *InterviewError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *InterviewError) Unwrap() error {
	return e.Err
}

// Is matches any InterviewError with the same kind
func (e *InterviewError) Is(target error) bool {
	t, ok := target.(*InterviewError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newError(kind ErrorKind, format string, args ...any) *InterviewError {
	return &InterviewError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the kind of an interview error, or "" for anything else
func KindOf(err error) ErrorKind {
	var ie *InterviewError
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return ""
}
