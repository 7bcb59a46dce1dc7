package delivery

import "fmt"

/* Status represents the current state of a webhook delivery
 * Follows the lifecycle: Pending -> Retrying -> Succeeded/Failed
 */
type Status int

const (
	Pending Status = iota + 1
	Retrying
	Succeeded
	Failed
)

// String returns the string representation of the status
func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Retrying:
		return "retrying"
	case Succeeded:
		return "success"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// NewStatus creates a Status from a string
func NewStatus(str string) Status {
	switch str {
	case "pending":
		return Pending
	case "retrying":
		return Retrying
	case "success":
		return Succeeded
	case "failed":
		return Failed
	default:
		return Pending
	}
}

// Validate checks if the status is valid
func (s Status) Validate() error {
	if s < Pending || s > Failed {
		return fmt.Errorf("invalid status: %d", s)
	}
	return nil
}

// IsFinal returns true if the status is a terminal state
func (s Status) IsFinal() bool {
	return s == Succeeded || s == Failed
}

// Statuses returns every status in lifecycle order
func Statuses() []Status {
	return []Status{Pending, Retrying, Succeeded, Failed}
}
