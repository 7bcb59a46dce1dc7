package metrics

import (
	"context"
	"time"
)

// StatsSource is the subset of the delivery client the collector reads
type StatsSource interface {
	GetDeliveryStats() map[string]int
}

/* ClientCollector collects metrics straight from the delivery engine's
 * in-memory registry. Reads are cheap snapshots, so no caching layer
 * sits in between
 */
type ClientCollector struct {
	source StatsSource
}

// NewClientCollector creates a collector backed by the delivery client
func NewClientCollector(source StatsSource) *ClientCollector {
	return &ClientCollector{
		source: source,
	}
}

// Collect gathers current metrics from the engine
func (c *ClientCollector) Collect(ctx context.Context) (Metrics, error) {
	counts, err := c.GetStatusCounts(ctx)
	if err != nil {
		return Metrics{}, err
	}

	var total int64
	for _, count := range counts {
		total += count
	}

	return Metrics{
		StatusCounts: counts,
		Total:        total,
		Timestamp:    time.Now(),
	}, nil
}

// GetStatusCounts returns the count of deliveries by status
func (c *ClientCollector) GetStatusCounts(_ context.Context) (map[string]int64, error) {
	stats := c.source.GetDeliveryStats()

	counts := make(map[string]int64, len(stats))
	for status, count := range stats {
		counts[status] = int64(count)
	}
	return counts, nil
}
