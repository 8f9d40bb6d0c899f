package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/marcelsud/webhook-dispatcher/queue"
	queueredis "github.com/marcelsud/webhook-dispatcher/queue/redis"
)

// WorkerLister reports live workers grouped by lane
type WorkerLister interface {
	AllActiveWorkers(ctx context.Context) (map[string][]queueredis.WorkerHeartbeat, error)
}

// QueueCollector implements the Collector interface on top of a lane queue
type QueueCollector struct {
	queue   queue.Queue
	router  *queue.Router
	workers WorkerLister
	now     func() time.Time
}

// NewQueueCollector creates a collector for every lane the router knows.
// workers may be nil when the queue keeps no heartbeats.
func NewQueueCollector(q queue.Queue, router *queue.Router, workers WorkerLister) *QueueCollector {
	return &QueueCollector{
		queue:   q,
		router:  router,
		workers: workers,
		now:     time.Now,
	}
}

// Collect gathers all metrics
func (c *QueueCollector) Collect(ctx context.Context) (Metrics, error) {
	lanes, err := c.GetLaneDepths(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting lane depths: %w", err)
	}

	workers, err := c.GetActiveWorkers(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting active workers: %w", err)
	}

	return Metrics{
		Lanes:     lanes,
		Workers:   workers,
		Timestamp: c.now(),
	}, nil
}

// GetLaneDepths returns the backlog of each routed lane
func (c *QueueCollector) GetLaneDepths(ctx context.Context) (map[string]LaneDepth, error) {
	depths := make(map[string]LaneDepth)

	for _, lane := range c.router.Lanes() {
		queued, scheduled, err := c.queue.Len(ctx, lane)
		if err != nil {
			// Continue even if one lane fails
			continue
		}
		depths[lane] = LaneDepth{Queued: queued, Scheduled: scheduled}
	}

	return depths, nil
}

// GetActiveWorkers returns workers whose heartbeat has not expired
func (c *QueueCollector) GetActiveWorkers(ctx context.Context) (map[string][]WorkerInfo, error) {
	workers := make(map[string][]WorkerInfo)
	if c.workers == nil {
		return workers, nil
	}

	byLane, err := c.workers.AllActiveWorkers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing worker heartbeats: %w", err)
	}

	for lane, heartbeats := range byLane {
		for _, hb := range heartbeats {
			workers[lane] = append(workers[lane], WorkerInfo{
				WorkerID:      hb.WorkerID,
				Lane:          hb.Lane,
				Status:        hb.Status,
				LastHeartbeat: hb.LastHeartbeat,
			})
		}
	}

	return workers, nil
}

var _ Collector = (*QueueCollector)(nil)
