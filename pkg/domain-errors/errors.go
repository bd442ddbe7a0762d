// Package domainerrors defines the coded error type returned across service
// boundaries. Callers branch on Code, never on message text.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies an error kind. Codes are stable and part of the public API.
type Code string

// Generic codes shared by every module.
const (
	CodeInternal           Code = "internal_error"
	CodeInvariantViolation Code = "invariant_violation"
	CodeValidation         Code = "validation_error"
	CodeBadRequest         Code = "bad_request"
	CodeInvalidInput       Code = "invalid_input"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeTimeout            Code = "timeout"
	CodeUnavailable        Code = "unavailable"
	CodeRateLimited        Code = "rate_limited"
)

// Ledger codes. Each carries a wire number (see Number) that clients of the
// original contract already depend on.
const (
	CodeNotAuthorized          Code = "not_authorized"
	CodeAlreadyRegistered      Code = "already_registered"
	CodeNotRegistered          Code = "not_registered"
	CodeSkillNotFound          Code = "skill_not_found"
	CodeSkillAlreadyValidated  Code = "skill_already_validated"
	CodeSelfValidation         Code = "self_validation"
	CodeCategoryMismatch       Code = "category_mismatch"
	CodeDuplicateValidation    Code = "duplicate_validation"
	CodeAlreadyValidator       Code = "already_validator"
	CodeInsufficientReputation Code = "insufficient_reputation"
	CodeInvalidParameter       Code = "invalid_parameter"
	CodeInvalidDateRange       Code = "invalid_date_range"
)

var codeNumbers = map[Code]int{
	CodeNotAuthorized:          1,
	CodeAlreadyRegistered:      2,
	CodeNotRegistered:          3,
	CodeSkillNotFound:          4,
	CodeSkillAlreadyValidated:  5,
	CodeSelfValidation:         6,
	CodeCategoryMismatch:       7,
	CodeDuplicateValidation:    8,
	CodeAlreadyValidator:       9,
	CodeInsufficientReputation: 10,
	CodeInvalidParameter:       11,
	CodeInvalidDateRange:       12,
}

// Number returns the stable wire number for ledger codes, or 0 for codes
// that have none.
func (c Code) Number() int {
	return codeNumbers[c]
}

// IsLedger reports whether the code is one of the numbered ledger kinds.
func (c Code) IsLedger() bool {
	_, ok := codeNumbers[c]
	return ok
}

// LedgerCodes returns the numbered codes in wire order.
func LedgerCodes() []Code {
	codes := make([]Code, len(codeNumbers))
	for code, n := range codeNumbers {
		codes[n-1] = code
	}
	return codes
}

// Error is a coded domain error. Err, when set, is the underlying cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same code and message, so tests can
// compare against a freshly built expectation with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// New builds a coded error.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode reports whether the outermost *Error in err's chain has the code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is shorthand for HasCode.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the code of the outermost *Error in err's chain, or
// CodeInternal for uncoded errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the message of the outermost *Error, or an empty string.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}
