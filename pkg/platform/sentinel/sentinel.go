// Package sentinel holds storage facts. Stores return them, possibly
// wrapped, and the ledger service decides which rule a fact violates:
// ErrAlreadyUsed on a user row is AlreadyRegistered, on a
// (skill, validator) row DuplicateValidation.
package sentinel

import "errors"

var (
	// ErrNotFound means the row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyUsed means a unique key is taken.
	ErrAlreadyUsed = errors.New("already used")
	// ErrUnavailable means a backing service cannot take calls.
	ErrUnavailable = errors.New("unavailable")
)
