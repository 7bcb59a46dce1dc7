package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"
)

// attempter abstracts the Dispatcher for the scheduler loop
type attempter interface {
	Dispatch(ctx context.Context, rec Delivery) Attempt
}

/* Scheduler owns the retry policy for a single delivery
 * The wait before attempt k (k > 1) is min(waitMax, waitMin * 2^(k-2));
 * the first attempt is issued immediately
 */
type Scheduler struct {
	waitMin time.Duration
	waitMax time.Duration
	log     *logrus.Logger
}

// NewScheduler creates a scheduler with the given backoff bounds
func NewScheduler(waitMin, waitMax time.Duration, log *logrus.Logger) *Scheduler {
	return &Scheduler{
		waitMin: waitMin,
		waitMax: waitMax,
		log:     log,
	}
}

/* Run drives one delivery to a terminal state. Each attempt's result is
 * written through apply, which mutates the registry record and notifies
 * observers, before the next step is decided. The loop is strictly
 * sequential: attempt k+1 never starts before attempt k's outcome is
 * known and the backoff wait has elapsed.
 *
 * Cancelling ctx during a backoff wait finalizes the delivery as Failed,
 * equivalent to exhausting the attempt budget.
 */
func (s *Scheduler) Run(ctx context.Context, disp attempter, rec Delivery, apply func(func(*Delivery)) Delivery) Delivery {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.waitMin
	bo.MaxInterval = s.waitMax
	bo.Multiplier = 2
	bo.RandomizationFactor = 0

	attempts := 0
	for {
		attempts++
		s.log.WithFields(logrus.Fields{
			"delivery_id": rec.ID,
			"url":         rec.URL,
			"attempt":     attempts,
			"max":         rec.MaxAttempts,
		}).Info("attempting webhook delivery")

		attempt := disp.Dispatch(ctx, rec)

		var status Status
		errMsg := attempt.Err
		switch {
		case attempt.Outcome == OutcomeSuccess:
			status = Succeeded
		case attempt.Outcome == OutcomeNonRetryable:
			// Client-side rejection; retrying will not help
			status = Failed
		case attempts >= rec.MaxAttempts:
			status = Failed
			errMsg = fmt.Sprintf("max attempts exceeded: %s", attempt.Err)
		default:
			status = Retrying
		}

		snapshot := apply(func(d *Delivery) {
			d.Attempts++
			d.ResponseStatus = attempt.StatusCode
			d.ResponseBody = attempt.ResponseBody
			d.ErrorMessage = errMsg
			d.Status = status
			d.UpdatedAt = time.Now()
		})

		if status.IsFinal() {
			if status == Failed {
				s.log.WithFields(logrus.Fields{
					"delivery_id": rec.ID,
					"attempts":    snapshot.Attempts,
					"error":       snapshot.ErrorMessage,
				}).Warn("webhook delivery failed")
			} else {
				s.log.WithFields(logrus.Fields{
					"delivery_id": rec.ID,
					"status_code": snapshot.ResponseStatus,
					"attempts":    snapshot.Attempts,
				}).Info("webhook delivered")
			}
			return snapshot
		}

		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			wait = s.waitMax
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return apply(func(d *Delivery) {
				d.Status = Failed
				d.ErrorMessage = fmt.Sprintf("delivery deadline exceeded: %v", ctx.Err())
				d.UpdatedAt = time.Now()
			})
		case <-timer.C:
		}
	}
}
