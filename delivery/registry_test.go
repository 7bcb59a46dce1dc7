package delivery_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/marcelsud/webhook-courier/delivery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registryRecord(id string, status delivery.Status) delivery.Delivery {
	now := time.Now()
	return delivery.Delivery{
		ID:          id,
		URL:         "http://example.invalid/hook",
		Payload:     []byte(`{}`),
		Status:      status,
		MaxAttempts: 3,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestRegistry(t *testing.T) {
	t.Run("add and get returns a snapshot", func(t *testing.T) {
		reg := delivery.NewRegistry()
		reg.Add(registryRecord("a", delivery.Pending))

		rec, found := reg.Get("a")
		require.True(t, found)

		// Mutating the snapshot must not leak into the registry
		rec.Status = delivery.Failed
		rec.Payload[0] = 'X'

		stored, _ := reg.Get("a")
		assert.Equal(t, delivery.Pending, stored.Status)
		assert.Equal(t, []byte(`{}`), stored.Payload)
	})

	t.Run("missing id", func(t *testing.T) {
		reg := delivery.NewRegistry()
		_, found := reg.Get("nope")
		assert.False(t, found)

		_, found = reg.Update("nope", func(d *delivery.Delivery) {})
		assert.False(t, found)
	})

	t.Run("update mutates under the lock", func(t *testing.T) {
		reg := delivery.NewRegistry()
		reg.Add(registryRecord("a", delivery.Pending))

		snap, found := reg.Update("a", func(d *delivery.Delivery) {
			d.Attempts++
			d.Status = delivery.Retrying
		})

		require.True(t, found)
		assert.Equal(t, 1, snap.Attempts)
		assert.Equal(t, delivery.Retrying, snap.Status)
	})

	t.Run("terminal records are immutable", func(t *testing.T) {
		reg := delivery.NewRegistry()
		reg.Add(registryRecord("a", delivery.Pending))

		reg.Update("a", func(d *delivery.Delivery) { d.Status = delivery.Succeeded })
		snap, found := reg.Update("a", func(d *delivery.Delivery) {
			d.Status = delivery.Failed
			d.Attempts = 99
		})

		require.True(t, found)
		assert.Equal(t, delivery.Succeeded, snap.Status)
		assert.Equal(t, 0, snap.Attempts)
	})

	t.Run("by status preserves insertion order", func(t *testing.T) {
		reg := delivery.NewRegistry()
		reg.Add(registryRecord("a", delivery.Succeeded))
		reg.Add(registryRecord("b", delivery.Failed))
		reg.Add(registryRecord("c", delivery.Succeeded))

		succeeded := reg.ByStatus(delivery.Succeeded)
		require.Len(t, succeeded, 2)
		assert.Equal(t, "a", succeeded[0].ID)
		assert.Equal(t, "c", succeeded[1].ID)
	})

	t.Run("stats include zero counts", func(t *testing.T) {
		reg := delivery.NewRegistry()
		reg.Add(registryRecord("a", delivery.Pending))

		assert.Equal(t, map[string]int{
			"pending":  1,
			"retrying": 0,
			"success":  0,
			"failed":   0,
		}, reg.Stats())
	})

	t.Run("safe under concurrent insert and read", func(t *testing.T) {
		reg := delivery.NewRegistry()

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(2)
			go func(n int) {
				defer wg.Done()
				reg.Add(registryRecord(fmt.Sprintf("d-%d", n), delivery.Pending))
			}(i)
			go func() {
				defer wg.Done()
				reg.Stats()
				reg.ByStatus(delivery.Pending)
			}()
		}
		wg.Wait()

		assert.Equal(t, 50, reg.Len())
	})
}
