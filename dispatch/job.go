package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

/* Job is the queued unit of work: deliver one event to one hook
 * Uses value semantics; the only field that changes between attempts is Attempt,
 * and only the processor (the scheduling side) changes it
 */
type Job struct {
	ID         string         `json:"id"`
	HookID     string         `json:"hook_id"`
	EventKind  string         `json:"event_kind"`
	Payload    map[string]any `json:"payload"`
	Attempt    int            `json:"attempt"` // executions started so far; 0 while pending
	EnqueuedAt time.Time      `json:"enqueued_at"`
}

// Encode serializes the job for the queue
func (j Job) Encode() ([]byte, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("encoding job: %w", err)
	}
	return data, nil
}

// DecodeJob parses a queued job, keeping numbers exact
func DecodeJob(data []byte) (Job, error) {
	var job Job
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&job); err != nil {
		return Job{}, fmt.Errorf("decoding job: %w", err)
	}
	if job.ID == "" || job.HookID == "" || job.EventKind == "" {
		return Job{}, fmt.Errorf("decoding job: missing id, hook_id or event_kind")
	}
	return job, nil
}
