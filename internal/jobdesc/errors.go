// Package jobdesc builds validated, normalized job descriptions from detected or pasted text.
package jobdesc

import "fmt"

// ValidationError is returned when a job description candidate is rejected.
type ValidationError struct {
	Field   string
	Message string
	Cause   error
}

func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid job description: %s %s: %v", e.Field, e.Message, e.Cause)
	}
	return fmt.Sprintf("invalid job description: %s %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}
