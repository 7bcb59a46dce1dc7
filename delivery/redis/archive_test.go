package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/marcelsud/webhook-courier/delivery"
	deliveryredis "github.com/marcelsud/webhook-courier/delivery/redis"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newArchive(t *testing.T) (*deliveryredis.Archive, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	archive, err := deliveryredis.NewArchive(mr.Addr(), "", 0, log)
	require.NoError(t, err)
	t.Cleanup(func() { archive.Close(context.Background()) })

	return archive, mr
}

func terminalRecord(id string) delivery.Delivery {
	now := time.Now().Truncate(time.Second)
	return delivery.Delivery{
		ID:             id,
		URL:            "https://hooks.example.com/a",
		Payload:        []byte(`{"event":"user.created"}`),
		Status:         delivery.Succeeded,
		Attempts:       2,
		MaxAttempts:    3,
		ResponseStatus: 200,
		ResponseBody:   `{"ok":true}`,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestArchive(t *testing.T) {
	ctx := context.Background()

	t.Run("store and get round-trip", func(t *testing.T) {
		archive, _ := newArchive(t)
		rec := terminalRecord("d-1")

		require.NoError(t, archive.Store(ctx, rec, 0))

		got, err := archive.Get(ctx, "d-1")
		require.NoError(t, err)
		assert.Equal(t, rec.ID, got.ID)
		assert.Equal(t, rec.URL, got.URL)
		assert.Equal(t, rec.Payload, got.Payload)
		assert.Equal(t, delivery.Succeeded, got.Status)
		assert.Equal(t, rec.Attempts, got.Attempts)
		assert.Equal(t, rec.MaxAttempts, got.MaxAttempts)
		assert.Equal(t, rec.ResponseStatus, got.ResponseStatus)
		assert.Equal(t, rec.ResponseBody, got.ResponseBody)
		assert.Equal(t, rec.CreatedAt.Unix(), got.CreatedAt.Unix())
	})

	t.Run("store applies TTL", func(t *testing.T) {
		archive, mr := newArchive(t)
		rec := terminalRecord("d-ttl")

		require.NoError(t, archive.Store(ctx, rec, time.Hour))

		mr.FastForward(2 * time.Hour)
		_, err := archive.Get(ctx, "d-ttl")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "delivery not found")
	})

	t.Run("get missing record", func(t *testing.T) {
		archive, _ := newArchive(t)

		_, err := archive.Get(ctx, "nope")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "delivery not found")
	})

	t.Run("connection failure surfaces at construction", func(t *testing.T) {
		_, err := deliveryredis.NewArchive("127.0.0.1:1", "", 0, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connecting to Redis")
	})
}

func TestArchiveCallback(t *testing.T) {
	ctx := context.Background()

	t.Run("terminal records are archived", func(t *testing.T) {
		archive, _ := newArchive(t)
		cb := archive.Callback(time.Hour)

		rec := terminalRecord("d-cb")
		cb(rec)

		got, err := archive.Get(ctx, "d-cb")
		require.NoError(t, err)
		assert.Equal(t, delivery.Succeeded, got.Status)
	})

	t.Run("intermediate transitions are skipped", func(t *testing.T) {
		archive, _ := newArchive(t)
		cb := archive.Callback(time.Hour)

		rec := terminalRecord("d-skip")
		rec.Status = delivery.Retrying
		cb(rec)

		_, err := archive.Get(ctx, "d-skip")
		require.Error(t, err)
	})
}
