package core

import (
	"errors"
	"fmt"
)

// ValidationError reports missing or malformed caller input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// AuthenticationError reports a missing tenant connection or a rejected credential.
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	return "unauthorized: " + e.Reason
}

// ExternalServiceError wraps a failure returned by the accounting provider.
// Message holds the provider's own text and is surfaced verbatim.
type ExternalServiceError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *ExternalServiceError) Error() string {
	switch {
	case e.Message != "" && e.StatusCode > 0:
		return fmt.Sprintf("%s: provider returned %d: %s", e.Op, e.StatusCode, e.Message)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return e.Op + ": provider error"
	}
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

var (
	ErrNoTenant          = &AuthenticationError{Reason: "no accounting tenant connected"}
	ErrInvalidSignature  = &AuthenticationError{Reason: "invalid webhook signature"}
	ErrDocumentNotFound  = errors.New("document not found")
	ErrUnbalancedJournal = errors.New("journal is not balanced")
)

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsAuthentication(err error) bool {
	var a *AuthenticationError
	return errors.As(err, &a)
}

func IsExternal(err error) bool {
	var x *ExternalServiceError
	return errors.As(err, &x)
}
