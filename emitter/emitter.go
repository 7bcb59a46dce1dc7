// Package emitter maps semantic event names to payload envelopes and
// fans them out to a fixed set of target URLs through the delivery client.
package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/marcelsud/webhook-courier/delivery"
)

// eventTypePattern validates event types: hierarchical, full-stop delimited, [a-zA-Z0-9_.]
var eventTypePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+(\.[a-zA-Z0-9_]+)*$`)

/* Envelope is the wire format wrapping every emitted event
 * Timestamp is unix seconds at emission time
 */
type Envelope struct {
	EventType string          `json:"event_type"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Sender is the subset of the delivery client the emitter needs
type Sender interface {
	SendMultiple(ctx context.Context, targets []delivery.Target) ([]delivery.Delivery, error)
}

/* Emitter is a thin composition over the delivery client: it adds no
 * failure semantics of its own
 */
type Emitter struct {
	client Sender
	urls   []string
}

// New creates an emitter fanning out to the given target URLs
func New(client Sender, urls []string) (*Emitter, error) {
	if client == nil {
		return nil, fmt.Errorf("client cannot be nil")
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("at least one target URL is required")
	}
	return &Emitter{
		client: client,
		urls:   urls,
	}, nil
}

// ValidateEventType checks an event type against the hierarchical
// dotted format, e.g. "user.created" or "order.completed"
func ValidateEventType(eventType string) error {
	if eventType == "" {
		return fmt.Errorf("event type cannot be empty")
	}
	if !eventTypePattern.MatchString(eventType) {
		return fmt.Errorf("event type must be hierarchical and contain only [a-zA-Z0-9_.]: %s", eventType)
	}
	return nil
}

/* Emit wraps data in an envelope and sends it to every configured URL
 * concurrently, returning one delivery record per target in target order
 */
func (e *Emitter) Emit(ctx context.Context, eventType string, data any) ([]delivery.Delivery, error) {
	if err := ValidateEventType(eventType); err != nil {
		return nil, fmt.Errorf("validating event type: %w", err)
	}

	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshaling event data: %w", err)
	}

	payload, err := json.Marshal(Envelope{
		EventType: eventType,
		Timestamp: time.Now().Unix(),
		Data:      dataBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling envelope: %w", err)
	}

	targets := make([]delivery.Target, len(e.urls))
	for i, url := range e.urls {
		targets[i] = delivery.Target{URL: url, Payload: payload}
	}

	records, err := e.client.SendMultiple(ctx, targets)
	if err != nil {
		return records, fmt.Errorf("emitting %s: %w", eventType, err)
	}
	return records, nil
}
