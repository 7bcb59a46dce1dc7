// Package redis mirrors terminal delivery records into Redis hashes for
// post-mortem inspection. It is a write-behind archive, not a durable
// queue: the engine never reads records back to resume work.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/marcelsud/webhook-courier/delivery"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	// Hash naming: delivery:{delivery_id}
	hashPrefix = "delivery"
)

type Archive struct {
	client *redis.Client
	log    *logrus.Logger
}

// NewArchive creates a Redis-backed delivery archive
func NewArchive(addr, password string, db int, log *logrus.Logger) (*Archive, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Archive{
		client: client,
		log:    log,
	}, nil
}

/* Callback returns a delivery callback that persists records the moment
 * they reach a terminal state. Intermediate transitions are ignored.
 * Archive errors are logged, never propagated into the delivery
 */
func (a *Archive) Callback(ttl time.Duration) delivery.Callback {
	return func(rec delivery.Delivery) {
		if !rec.Status.IsFinal() {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := a.Store(ctx, rec, ttl); err != nil {
			a.log.WithFields(logrus.Fields{
				"delivery_id": rec.ID,
				"error":       err,
			}).Error("archiving delivery")
		}
	}
}

// Store writes one delivery record as a Redis hash with the given TTL
func (a *Archive) Store(ctx context.Context, rec delivery.Delivery, ttl time.Duration) error {
	hashKey := fmt.Sprintf("%s:%s", hashPrefix, rec.ID)

	err := a.client.HSet(ctx, hashKey, map[string]interface{}{
		"id":              rec.ID,
		"url":             rec.URL,
		"payload":         rec.Payload,
		"status":          rec.Status.String(),
		"attempts":        rec.Attempts,
		"max_attempts":    rec.MaxAttempts,
		"response_status": rec.ResponseStatus,
		"response_body":   rec.ResponseBody,
		"error_message":   rec.ErrorMessage,
		"created_at":      rec.CreatedAt.Unix(),
		"updated_at":      rec.UpdatedAt.Unix(),
	}).Err()
	if err != nil {
		return fmt.Errorf("storing delivery record: %w", err)
	}

	if ttl > 0 {
		if err := a.client.Expire(ctx, hashKey, ttl).Err(); err != nil {
			return fmt.Errorf("setting TTL: %w", err)
		}
	}

	return nil
}

// Get retrieves an archived delivery record by ID
func (a *Archive) Get(ctx context.Context, id string) (delivery.Delivery, error) {
	hashKey := fmt.Sprintf("%s:%s", hashPrefix, id)

	data, err := a.client.HGetAll(ctx, hashKey).Result()
	if err != nil {
		return delivery.Delivery{}, fmt.Errorf("getting delivery record: %w", err)
	}
	if len(data) == 0 {
		return delivery.Delivery{}, fmt.Errorf("delivery not found: %s", id)
	}

	rec := delivery.Delivery{
		ID:           data["id"],
		URL:          data["url"],
		Payload:      []byte(data["payload"]),
		Status:       delivery.NewStatus(data["status"]),
		ResponseBody: data["response_body"],
		ErrorMessage: data["error_message"],
	}

	if rec.Attempts, err = strconv.Atoi(data["attempts"]); err != nil {
		return delivery.Delivery{}, fmt.Errorf("parsing attempts: %w", err)
	}
	if rec.MaxAttempts, err = strconv.Atoi(data["max_attempts"]); err != nil {
		return delivery.Delivery{}, fmt.Errorf("parsing max_attempts: %w", err)
	}
	if rec.ResponseStatus, err = strconv.Atoi(data["response_status"]); err != nil {
		return delivery.Delivery{}, fmt.Errorf("parsing response_status: %w", err)
	}

	createdAt, err := strconv.ParseInt(data["created_at"], 10, 64)
	if err != nil {
		return delivery.Delivery{}, fmt.Errorf("parsing created_at: %w", err)
	}
	rec.CreatedAt = time.Unix(createdAt, 0)

	updatedAt, err := strconv.ParseInt(data["updated_at"], 10, 64)
	if err != nil {
		return delivery.Delivery{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	rec.UpdatedAt = time.Unix(updatedAt, 0)

	return rec, nil
}

// Close releases the Redis connection
func (a *Archive) Close(ctx context.Context) error {
	return a.client.Close()
}
