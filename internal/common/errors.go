// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Common application errors. Callers distinguish failure modes with
// errors.Is rather than matching on message text; batch-scoped failures
// (rule load, commit transaction, session lookup) propagate as these values
// while row-scoped failures are folded into the CommitResult counts.
var (
	// Storage errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// Staging errors.
	ErrDuplicateSession = errors.New("session already exists")
	ErrSessionNotFound  = errors.New("session not found")

	// Classification errors.
	ErrRuleLoad = errors.New("classification rules unavailable")

	// Commit errors.
	ErrCommitTransaction = errors.New("commit transaction failed")

	// Normalizer boundary errors.
	ErrParse = errors.New("statement parse failed")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}
