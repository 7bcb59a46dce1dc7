package delivery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/marcelsud/webhook-courier/delivery/signature"
)

const (
	userAgent = "webhook-courier/1.0"

	// maxResponseBody bounds how much of the receiver's response is
	// kept on the delivery record
	maxResponseBody = 1000
)

/* Dispatcher performs a single signed, timeout-bounded HTTP POST
 * It never sleeps and never loops; retry policy lives in the Scheduler
 */
type Dispatcher struct {
	client  *http.Client
	secret  string
	timeout time.Duration
}

// NewDispatcher creates a dispatcher with the given signing secret and
// per-attempt timeout
func NewDispatcher(secret string, timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		client:  &http.Client{},
		secret:  secret,
		timeout: timeout,
	}
}

/* Dispatch executes one delivery attempt and classifies the result:
 * network error or timeout -> retryable, 2xx -> success,
 * 4xx -> non-retryable, 5xx or unreadable body -> retryable
 */
func (d *Dispatcher) Dispatch(ctx context.Context, rec Delivery) Attempt {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rec.URL, bytes.NewReader(rec.Payload))
	if err != nil {
		return Attempt{
			Outcome: OutcomeNonRetryable,
			Err:     fmt.Sprintf("building request: %v", err),
		}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Webhook-ID", rec.ID)
	req.Header.Set("X-Webhook-Timestamp", strconv.FormatInt(time.Now().Unix(), 10))
	for key, value := range rec.Headers {
		req.Header.Set(key, value)
	}

	// Sign the exact bytes that go on the wire, before anything can
	// re-serialize them
	if d.secret != "" {
		req.Header.Set(signature.Header, signature.Sign(rec.Payload, d.secret))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return Attempt{
			Outcome: OutcomeRetryable,
			Err:     fmt.Sprintf("network error: %v", err),
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return Attempt{
			Outcome:    OutcomeRetryable,
			StatusCode: resp.StatusCode,
			Err:        fmt.Sprintf("reading response: %v", err),
		}
	}

	attempt := Attempt{
		StatusCode:   resp.StatusCode,
		ResponseBody: string(body),
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		attempt.Outcome = OutcomeSuccess
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		attempt.Outcome = OutcomeNonRetryable
		attempt.Err = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, truncate(string(body), 200))
	default:
		attempt.Outcome = OutcomeRetryable
		attempt.Err = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	return attempt
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
