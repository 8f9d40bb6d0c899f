package dispatch

import "fmt"

/* State is where a job stands in its retry lifecycle
 * Pending -> Attempting -> Succeeded
 *                       -> Scheduled -> Attempting ...
 *                       -> Exhausted (attempt budget used up)
 *                       -> Failed (hook missing or permanent failure, no retry)
 */
type State int

const (
	Pending State = iota + 1
	Attempting
	Scheduled
	Succeeded
	Exhausted
	Failed
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Attempting:
		return "attempting"
	case Scheduled:
		return "scheduled"
	case Succeeded:
		return "succeeded"
	case Exhausted:
		return "exhausted"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Validate checks if the state is valid
func (s State) Validate() error {
	if s < Pending || s > Failed {
		return fmt.Errorf("invalid state: %d", s)
	}
	return nil
}

// IsFinal returns true if the state is a terminal state
func (s State) IsFinal() bool {
	return s == Succeeded || s == Exhausted || s == Failed
}
