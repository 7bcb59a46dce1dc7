package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
)

const (
	defaultTimeout       = 30 * time.Second
	defaultMaxRetries    = 3
	defaultRetryWaitMin  = 1 * time.Second
	defaultRetryWaitMax  = 60 * time.Second
	defaultMaxConcurrent = 5
)

/* Config holds the immutable settings of a Client
 * Zero values fall back to defaults; negative or inconsistent values
 * are rejected at construction time
 */
type Config struct {
	// SecretKey signs outgoing payloads. Empty disables signing, which
	// is an insecure default meant for local development
	SecretKey string

	// Timeout bounds each individual delivery attempt
	Timeout time.Duration

	// MaxRetries is the total attempt ceiling per delivery
	MaxRetries int

	// RetryWaitMin and RetryWaitMax bound the exponential backoff
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration

	// MaxConcurrent bounds batch fan-out parallelism
	MaxConcurrent int

	// Logger receives structured delivery logs; defaults to the
	// logrus standard logger
	Logger *logrus.Logger
}

func (c *Config) validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryWaitMin < 0 || c.RetryWaitMax < 0 {
		return fmt.Errorf("retry waits cannot be negative")
	}
	if c.MaxConcurrent < 0 {
		return fmt.Errorf("max concurrent cannot be negative")
	}

	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.RetryWaitMin == 0 {
		c.RetryWaitMin = defaultRetryWaitMin
	}
	if c.RetryWaitMax == 0 {
		c.RetryWaitMax = defaultRetryWaitMax
	}
	if c.MaxConcurrent == 0 {
		c.MaxConcurrent = defaultMaxConcurrent
	}
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}

	if c.RetryWaitMin > c.RetryWaitMax {
		return fmt.Errorf("retry wait min (%v) exceeds retry wait max (%v)", c.RetryWaitMin, c.RetryWaitMax)
	}
	return nil
}

// Callback observes delivery state transitions
type Callback func(Delivery)

/* Client is the delivery engine: it creates delivery records, drives
 * each one through the retry scheduler, keeps the in-memory registry,
 * and notifies observers on every state change
 */
type Client struct {
	cfg        Config
	registry   *Registry
	dispatcher *Dispatcher
	scheduler  *Scheduler
	log        *logrus.Logger

	mu        sync.RWMutex
	callbacks []Callback
}

// New creates a delivery client from the given configuration
func New(cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &Client{
		cfg:        cfg,
		registry:   NewRegistry(),
		dispatcher: NewDispatcher(cfg.SecretKey, cfg.Timeout),
		scheduler:  NewScheduler(cfg.RetryWaitMin, cfg.RetryWaitMax, cfg.Logger),
		log:        cfg.Logger,
	}, nil
}

/* AddDeliveryCallback registers an observer invoked synchronously on
 * every state transition of every delivery. A panicking observer is
 * recovered and logged; it never affects the delivery it watches
 */
func (c *Client) AddDeliveryCallback(cb Callback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callbacks = append(c.callbacks, cb)
}

// SendWebhook delivers a payload to a single URL and blocks until the
// delivery reaches a terminal state
func (c *Client) SendWebhook(ctx context.Context, url string, payload []byte) (Delivery, error) {
	return c.Send(ctx, Target{URL: url, Payload: payload})
}

/* Send delivers one target to a terminal state. Network failures never
 * surface as errors; they are captured in the returned record's status
 * and error message. The only error cases are contract violations
 */
func (c *Client) Send(ctx context.Context, t Target) (Delivery, error) {
	if t.URL == "" {
		return Delivery{}, fmt.Errorf("target URL cannot be empty")
	}
	if len(t.Payload) == 0 {
		return Delivery{}, fmt.Errorf("payload cannot be empty")
	}

	now := time.Now()
	rec := Delivery{
		ID:          uuid.New().String(),
		URL:         t.URL,
		Payload:     t.Payload,
		Headers:     t.Headers,
		Status:      Pending,
		MaxAttempts: c.cfg.MaxRetries,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	c.registry.Add(rec)
	c.notify(rec)

	apply := func(fn func(*Delivery)) Delivery {
		snapshot, _ := c.registry.Update(rec.ID, fn)
		c.notify(snapshot)
		return snapshot
	}

	return c.scheduler.Run(ctx, c.dispatcher, rec, apply), nil
}

/* SendMultiple dispatches all targets concurrently, each with its own
 * independent retry loop. Results match input order regardless of
 * completion order, and the call returns only once every delivery has
 * reached a terminal state
 */
func (c *Client) SendMultiple(ctx context.Context, targets []Target) ([]Delivery, error) {
	results := make([]Delivery, len(targets))
	errs := make([]error, len(targets))

	p := pool.New().WithMaxGoroutines(c.cfg.MaxConcurrent)
	for i, t := range targets {
		p.Go(func() {
			results[i], errs[i] = c.Send(ctx, t)
		})
	}
	p.Wait()

	return results, errors.Join(errs...)
}

// GetDelivery returns a snapshot of the delivery with the given ID
func (c *Client) GetDelivery(id string) (Delivery, bool) {
	return c.registry.Get(id)
}

// GetDeliveries returns snapshots of all deliveries in insertion order
func (c *Client) GetDeliveries() []Delivery {
	return c.registry.All()
}

// GetDeliveriesByStatus returns all deliveries in the given status,
// in insertion order
func (c *Client) GetDeliveriesByStatus(status Status) []Delivery {
	return c.registry.ByStatus(status)
}

// GetDeliveryStats returns the count of deliveries per status,
// including zero-counts for all four states
func (c *Client) GetDeliveryStats() map[string]int {
	return c.registry.Stats()
}

// notify fans a snapshot out to all observers. The callback list is
// copied first so no lock is held during invocation
func (c *Client) notify(rec Delivery) {
	c.mu.RLock()
	callbacks := make([]Callback, len(c.callbacks))
	copy(callbacks, c.callbacks)
	c.mu.RUnlock()

	for _, cb := range callbacks {
		c.invoke(cb, rec)
	}
}

func (c *Client) invoke(cb Callback, rec Delivery) {
	defer func() {
		if r := recover(); r != nil {
			c.log.WithFields(logrus.Fields{
				"delivery_id": rec.ID,
				"panic":       r,
			}).Error("delivery callback panicked")
		}
	}()
	cb(rec.clone())
}
