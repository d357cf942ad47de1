package fieldsync

import "fmt"

// Error represents a failed hydrate, sync or learn operation.
type Error struct {
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("field %s: %s: %v", e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("field %s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}
