package remote

import (
	"errors"
	"fmt"
)

// Kind classifies a failed service call.
type Kind string

const (
	// KindUnreachable means the service could not be contacted.
	KindUnreachable Kind = "unreachable"
	// KindTimeout means the per-call deadline fired.
	KindTimeout Kind = "timeout"
	// KindHTTPStatus means the service answered with a non-2xx status.
	KindHTTPStatus Kind = "http_status"
	// KindInvalidPayload means the body could not be decoded or failed schema validation.
	KindInvalidPayload Kind = "invalid_payload"
	// KindRejected means the service answered success=false.
	KindRejected Kind = "rejected"
)

// Error represents a failed call to the tailoring service.
type Error struct {
	Op      string
	Kind    Kind
	Status  int
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s failed (%s): %s: %v", e.Op, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s failed (%s): %s", e.Op, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// retryable reports whether one more attempt is allowed for this failure.
// Schema violations and explicit rejections are answers, not transport faults.
func (e *Error) retryable() bool {
	switch e.Kind {
	case KindUnreachable, KindTimeout:
		return true
	case KindHTTPStatus:
		return e.Status >= 500
	case KindInvalidPayload:
		return e.Status == 0
	default:
		return false
	}
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind == kind
	}
	return false
}
