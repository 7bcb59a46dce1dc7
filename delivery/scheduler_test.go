package delivery_test

import (
	"context"
	"testing"
	"time"

	"github.com/marcelsud/webhook-courier/delivery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedDispatcher replays a fixed sequence of attempt results and
// records when each attempt was issued
type scriptedDispatcher struct {
	script []delivery.Attempt
	calls  []time.Time
}

func (s *scriptedDispatcher) Dispatch(ctx context.Context, rec delivery.Delivery) delivery.Attempt {
	s.calls = append(s.calls, time.Now())
	i := len(s.calls) - 1
	if i >= len(s.script) {
		i = len(s.script) - 1
	}
	return s.script[i]
}

func newRecord(maxAttempts int) delivery.Delivery {
	now := time.Now()
	return delivery.Delivery{
		ID:          "d-1",
		URL:         "http://example.invalid/hook",
		Payload:     []byte(`{}`),
		Status:      delivery.Pending,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// runScheduler drives Run with apply backed by a plain local record
func runScheduler(s *delivery.Scheduler, ctx context.Context, disp *scriptedDispatcher, rec delivery.Delivery) delivery.Delivery {
	current := rec
	apply := func(fn func(*delivery.Delivery)) delivery.Delivery {
		fn(&current)
		return current
	}
	return s.Run(ctx, disp, rec, apply)
}

func TestSchedulerRun(t *testing.T) {
	ctx := context.Background()

	t.Run("success on first attempt stops immediately", func(t *testing.T) {
		disp := &scriptedDispatcher{script: []delivery.Attempt{
			{Outcome: delivery.OutcomeSuccess, StatusCode: 200},
		}}
		s := delivery.NewScheduler(time.Millisecond, 10*time.Millisecond, quietLogger())

		final := runScheduler(s, ctx, disp, newRecord(3))

		assert.Equal(t, delivery.Succeeded, final.Status)
		assert.Equal(t, 1, final.Attempts)
		assert.Equal(t, 200, final.ResponseStatus)
		assert.Len(t, disp.calls, 1)
	})

	t.Run("non-retryable stops without consuming the budget", func(t *testing.T) {
		disp := &scriptedDispatcher{script: []delivery.Attempt{
			{Outcome: delivery.OutcomeNonRetryable, StatusCode: 404, Err: "HTTP 404: not found"},
		}}
		s := delivery.NewScheduler(time.Millisecond, 10*time.Millisecond, quietLogger())

		final := runScheduler(s, ctx, disp, newRecord(5))

		assert.Equal(t, delivery.Failed, final.Status)
		assert.Equal(t, 1, final.Attempts)
		assert.Contains(t, final.ErrorMessage, "HTTP 404")
		assert.Len(t, disp.calls, 1)
	})

	t.Run("retryable exhausts the budget with doubling waits", func(t *testing.T) {
		const (
			waitMin = 40 * time.Millisecond
			waitMax = 100 * time.Millisecond
		)
		disp := &scriptedDispatcher{script: []delivery.Attempt{
			{Outcome: delivery.OutcomeRetryable, StatusCode: 503, Err: "HTTP 503"},
		}}
		s := delivery.NewScheduler(waitMin, waitMax, quietLogger())

		final := runScheduler(s, ctx, disp, newRecord(4))

		assert.Equal(t, delivery.Failed, final.Status)
		assert.Equal(t, 4, final.Attempts)
		assert.Contains(t, final.ErrorMessage, "max attempts exceeded")
		require.Len(t, disp.calls, 4)

		// Waits before attempts 2..4: min, 2*min, then capped at max
		expected := []time.Duration{waitMin, 2 * waitMin, waitMax}
		for i, want := range expected {
			got := disp.calls[i+1].Sub(disp.calls[i])
			assert.InDelta(t, float64(want), float64(got), float64(25*time.Millisecond),
				"wait before attempt %d", i+2)
		}
	})

	t.Run("every attempt updates the record before the next step", func(t *testing.T) {
		disp := &scriptedDispatcher{script: []delivery.Attempt{
			{Outcome: delivery.OutcomeRetryable, StatusCode: 500, Err: "HTTP 500"},
			{Outcome: delivery.OutcomeSuccess, StatusCode: 204},
		}}
		s := delivery.NewScheduler(time.Millisecond, 5*time.Millisecond, quietLogger())

		var attempts []int
		var statuses []delivery.Status
		current := newRecord(3)
		apply := func(fn func(*delivery.Delivery)) delivery.Delivery {
			fn(&current)
			attempts = append(attempts, current.Attempts)
			statuses = append(statuses, current.Status)
			return current
		}

		final := s.Run(ctx, disp, current, apply)

		assert.Equal(t, delivery.Succeeded, final.Status)
		assert.Equal(t, []int{1, 2}, attempts)
		assert.Equal(t, []delivery.Status{delivery.Retrying, delivery.Succeeded}, statuses)
	})

	t.Run("cancelled context finalizes as failed during the wait", func(t *testing.T) {
		disp := &scriptedDispatcher{script: []delivery.Attempt{
			{Outcome: delivery.OutcomeRetryable, StatusCode: 500, Err: "HTTP 500"},
		}}
		s := delivery.NewScheduler(time.Second, time.Minute, quietLogger())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()

		start := time.Now()
		final := runScheduler(s, ctx, disp, newRecord(10))

		assert.Equal(t, delivery.Failed, final.Status)
		assert.Contains(t, final.ErrorMessage, "delivery deadline exceeded")
		assert.Equal(t, 1, final.Attempts)
		assert.Less(t, time.Since(start), 500*time.Millisecond)
	})
}
