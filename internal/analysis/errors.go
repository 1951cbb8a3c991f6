package analysis

import (
	"errors"
	"fmt"
)

// ValidationError reports a missing or empty mandatory input. It is the only
// failure that aborts an invocation before any backend call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid input: %s %s", e.Field, e.Reason)
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// InvalidRiskInputError reports a single malformed risk entry. The entry is
// dropped; the batch continues.
type InvalidRiskInputError struct {
	Index  int
	Field  string
	Value  string
	Reason string
}

func (e *InvalidRiskInputError) Error() string {
	return fmt.Sprintf("invalid risk input at %d: %s %q %s", e.Index, e.Field, e.Value, e.Reason)
}

// RegistrationError wraps a storage failure from the Artifact Registrar. The
// report was assembled successfully; callers may retry registration with the
// same serialized report without regenerating anything.
type RegistrationError struct {
	Err error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("report registration failed: %v", e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// IsRegistrationError reports whether err is (or wraps) a RegistrationError.
func IsRegistrationError(err error) bool {
	var re *RegistrationError
	return errors.As(err, &re)
}

// ErrReportNotFound is returned by Registrar.Fetch for unknown identifiers.
var ErrReportNotFound = errors.New("report not found")
