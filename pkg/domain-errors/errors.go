// Package domainerrors carries coded errors across service boundaries.
//
// Services return *Error values; transports map codes to status lines.
// Stores should not return these directly and instead return sentinel facts
// (see pkg/platform/sentinel) that services translate.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies a class of failure.
type Code string

const (
	CodeValidation         Code = "validation_error"
	CodeBadRequest         Code = "bad_request"
	CodeInvalidInput       Code = "invalid_input"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeInternal           Code = "internal_error"
	CodeTimeout            Code = "timeout"
	CodeInvariantViolation Code = "invariant_violation"
	CodePersistence        Code = "persistence_error"

	// CodeDuplicatePeriodicContribution is a validation failure: a periodic
	// contribution already exists for the member in that calendar month.
	CodeDuplicatePeriodicContribution Code = "duplicate_periodic_contribution"

	// CodeNoContributionsFound is a not-found failure: the member has no
	// contributions to evaluate.
	CodeNoContributionsFound Code = "no_contributions_found"
)

// Kind groups codes into the three outcome families callers branch on.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindNotFound    Kind = "not_found"
	KindPersistence Kind = "persistence"
	KindConflict    Kind = "conflict"
	KindAuth        Kind = "auth"
	KindInternal    Kind = "internal"
)

var codeKinds = map[Code]Kind{
	CodeValidation:                    KindValidation,
	CodeBadRequest:                    KindValidation,
	CodeInvalidInput:                  KindValidation,
	CodeInvariantViolation:            KindValidation,
	CodeDuplicatePeriodicContribution: KindValidation,
	CodeNotFound:                      KindNotFound,
	CodeNoContributionsFound:          KindNotFound,
	CodeConflict:                      KindConflict,
	CodePersistence:                   KindPersistence,
	CodeUnauthorized:                  KindAuth,
	CodeForbidden:                     KindAuth,
	CodeTimeout:                       KindInternal,
	CodeInternal:                      KindInternal,
}

// Kind returns the family a code belongs to. Unknown codes are internal.
func (c Code) Kind() Kind {
	if k, ok := codeKinds[c]; ok {
		return k
	}
	return KindInternal
}

// Error is a coded domain error with an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error with the given code and message.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// As returns the outermost *Error in the chain, if any.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// HasCode reports whether the outermost *Error in err's chain carries code.
func HasCode(err error, code Code) bool {
	de, ok := As(err)
	return ok && de.Code == code
}

// HasKind reports whether err carries a code of the given kind.
func HasKind(err error, kind Kind) bool {
	de, ok := As(err)
	return ok && de.Code.Kind() == kind
}

// Is is errors.Is re-exported so callers need a single import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
