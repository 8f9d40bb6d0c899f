package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// HeartbeatTTL is how long a worker counts as active after its last beat
const HeartbeatTTL = 60 * time.Second

// WorkerHeartbeat represents the heartbeat data for a worker
type WorkerHeartbeat struct {
	WorkerID      string    `json:"worker_id"`
	Lane          string    `json:"lane"`
	Status        string    `json:"status"` // "idle", "processing"
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

func heartbeatKey(lane, workerID string) string {
	return fmt.Sprintf("worker:heartbeat:%s:%s", lane, workerID)
}

// SetWorkerHeartbeat stores or updates a worker's heartbeat.
// Workers that stop beating drop out after HeartbeatTTL.
func (q *Queue) SetWorkerHeartbeat(ctx context.Context, lane, workerID, status string) error {
	heartbeat := WorkerHeartbeat{
		WorkerID:      workerID,
		Lane:          lane,
		Status:        status,
		LastHeartbeat: q.now(),
	}

	data, err := json.Marshal(heartbeat)
	if err != nil {
		return fmt.Errorf("marshaling heartbeat: %w", err)
	}

	if err := q.client.Set(ctx, heartbeatKey(lane, workerID), data, HeartbeatTTL).Err(); err != nil {
		return fmt.Errorf("setting heartbeat: %w", err)
	}

	return nil
}

// ClearWorkerHeartbeat removes a worker's heartbeat on clean shutdown
func (q *Queue) ClearWorkerHeartbeat(ctx context.Context, lane, workerID string) error {
	if err := q.client.Del(ctx, heartbeatKey(lane, workerID)).Err(); err != nil {
		return fmt.Errorf("clearing heartbeat: %w", err)
	}
	return nil
}

// ActiveWorkers returns the live workers of one lane
func (q *Queue) ActiveWorkers(ctx context.Context, lane string) ([]WorkerHeartbeat, error) {
	byLane, err := q.scanHeartbeats(ctx, fmt.Sprintf("worker:heartbeat:%s:*", lane))
	if err != nil {
		return nil, err
	}
	return byLane[lane], nil
}

// AllActiveWorkers returns live workers grouped by lane
func (q *Queue) AllActiveWorkers(ctx context.Context) (map[string][]WorkerHeartbeat, error) {
	return q.scanHeartbeats(ctx, "worker:heartbeat:*")
}

func (q *Queue) scanHeartbeats(ctx context.Context, pattern string) (map[string][]WorkerHeartbeat, error) {
	workersByLane := make(map[string][]WorkerHeartbeat)

	var cursor uint64
	for {
		keys, nextCursor, err := q.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scanning worker keys: %w", err)
		}

		for _, key := range keys {
			data, err := q.client.Get(ctx, key).Result()
			if errors.Is(err, redis.Nil) {
				// Key expired between scan and get
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("getting worker heartbeat: %w", err)
			}

			var heartbeat WorkerHeartbeat
			if err := json.Unmarshal([]byte(data), &heartbeat); err != nil {
				continue
			}

			workersByLane[heartbeat.Lane] = append(workersByLane[heartbeat.Lane], heartbeat)
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return workersByLane, nil
}
