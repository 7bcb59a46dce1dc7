package delivery

import "fmt"

/* Outcome classifies the result of a single dispatch attempt
 * Retryable outcomes consume retry budget; NonRetryable halts immediately
 */
type Outcome int

const (
	OutcomeSuccess Outcome = iota + 1
	OutcomeRetryable
	OutcomeNonRetryable
)

// String returns the string representation of the outcome
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable_error"
	case OutcomeNonRetryable:
		return "non_retryable_error"
	default:
		return "unknown"
	}
}

// Validate checks if the outcome is valid
func (o Outcome) Validate() error {
	if o < OutcomeSuccess || o > OutcomeNonRetryable {
		return fmt.Errorf("invalid outcome: %d", o)
	}
	return nil
}

/* Attempt is the result of one dispatch attempt as seen by the scheduler
 * StatusCode is 0 when no HTTP response was received (network error, timeout)
 */
type Attempt struct {
	Outcome      Outcome
	StatusCode   int
	ResponseBody string
	Err          string
}
