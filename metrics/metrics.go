package metrics

import (
	"context"
	"time"
)

// Metrics represents the current state of the dispatch lanes.
type Metrics struct {
	// Lanes maps lane name to its depth
	Lanes map[string]LaneDepth `json:"lanes"`

	// Workers maps lane name to list of active workers
	Workers map[string][]WorkerInfo `json:"workers"`

	// Timestamp when metrics were collected
	Timestamp time.Time `json:"timestamp"`
}

// LaneDepth is the backlog of one lane.
type LaneDepth struct {
	// Queued is messages waiting or in flight
	Queued int64 `json:"queued"`

	// Scheduled is retries waiting for their backoff to elapse
	Scheduled int64 `json:"scheduled"`
}

// WorkerInfo represents information about an active worker.
type WorkerInfo struct {
	// WorkerID is a unique identifier for the worker
	WorkerID string `json:"worker_id"`

	// Lane is the lane this worker consumes
	Lane string `json:"lane"`

	// Status is the current status of the worker (e.g., "idle", "processing")
	Status string `json:"status"`

	// LastHeartbeat is the timestamp of the last heartbeat
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

// Collector defines the interface for collecting metrics from the lanes.
type Collector interface {
	// Collect gathers current metrics from the system
	Collect(ctx context.Context) (Metrics, error)

	// GetLaneDepths returns queued and scheduled counts per lane
	GetLaneDepths(ctx context.Context) (map[string]LaneDepth, error)

	// GetActiveWorkers returns information about active workers per lane
	GetActiveWorkers(ctx context.Context) (map[string][]WorkerInfo, error)
}
