package dispatch

import "fmt"

// OutcomeKind classifies the result of one delivery attempt
type OutcomeKind int

const (
	Delivered OutcomeKind = iota + 1
	TransientFailure
	PermanentFailure
)

// String returns the string representation of the outcome kind
func (k OutcomeKind) String() string {
	switch k {
	case Delivered:
		return "delivered"
	case TransientFailure:
		return "transient_failure"
	case PermanentFailure:
		return "permanent_failure"
	default:
		return "unknown"
	}
}

// Outcome is what a Deliverer reports back. It is consumed to decide on a retry
// and never persisted.
type Outcome struct {
	Kind       OutcomeKind
	Reason     string
	StatusCode int // HTTP status when the endpoint answered; 0 otherwise
}

// Success builds a Delivered outcome
func Success(statusCode int) Outcome {
	return Outcome{Kind: Delivered, StatusCode: statusCode}
}

// Transient builds a retryable failure
func Transient(statusCode int, format string, args ...any) Outcome {
	return Outcome{Kind: TransientFailure, Reason: fmt.Sprintf(format, args...), StatusCode: statusCode}
}

// Permanent builds a failure that retrying cannot fix
func Permanent(statusCode int, format string, args ...any) Outcome {
	return Outcome{Kind: PermanentFailure, Reason: fmt.Sprintf(format, args...), StatusCode: statusCode}
}
