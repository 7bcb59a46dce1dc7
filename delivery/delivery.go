package delivery

import (
	"encoding/json"
	"time"
)

/* Delivery represents one webhook delivery and its attempt history
 * Uses value semantics as it represents data, not behavior; the engine
 * mutates its registry copy and hands out snapshots to callers
 */
type Delivery struct {
	ID             string
	URL            string
	Payload        []byte
	Headers        map[string]string
	Status         Status
	Attempts       int
	MaxAttempts    int
	ResponseStatus int
	ResponseBody   string
	ErrorMessage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

/* Target is one entry of a batch send: where to deliver and what
 * Payload is raw JSON so batch files can inline the body as an object
 */
type Target struct {
	URL     string            `json:"url"`
	Payload json.RawMessage   `json:"payload"`
	Headers map[string]string `json:"headers,omitempty"`
}

// clone returns a deep copy so callers and callbacks never share
// mutable state with the registry
func (d Delivery) clone() Delivery {
	out := d
	if d.Payload != nil {
		out.Payload = make([]byte, len(d.Payload))
		copy(out.Payload, d.Payload)
	}
	if d.Headers != nil {
		out.Headers = make(map[string]string, len(d.Headers))
		for k, v := range d.Headers {
			out.Headers[k] = v
		}
	}
	return out
}
