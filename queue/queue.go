// Package queue defines lanes: isolated partitions of background work.
// Each lane has its own stream of messages and its own workers, so a backlog
// or retry storm on one lane never delays another.
package queue

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by operations on a closed queue
var ErrClosed = errors.New("queue closed")

// Message is one unit of work fetched from a lane
type Message struct {
	ID   string // broker-assigned delivery id, used for Ack and Requeue
	Lane string
	Body []byte
}

/* Small, focused interfaces: producers only need Pusher,
 * workers need the whole Queue
 */

// Pusher appends work to a lane
type Pusher interface {
	Push(ctx context.Context, lane string, body []byte) (string, error)
}

// Queue is a multi-lane work queue with at-least-once delivery
type Queue interface {
	Pusher
	/* Fetch returns the next message of a lane for the named consumer
	 * It blocks for a short, implementation-defined time and returns (nil, nil) when idle
	 */
	Fetch(ctx context.Context, lane, consumer string) (*Message, error)
	// Ack removes a finished message from the lane
	Ack(ctx context.Context, msg *Message) error
	/* Requeue acknowledges msg and schedules body to reappear on the same lane after delay
	 * Both steps happen atomically: the work is never in flight and pending at once
	 */
	Requeue(ctx context.Context, msg *Message, body []byte, delay time.Duration) error
	// Len reports messages not yet acked (waiting or in flight) and scheduled retries for a lane
	Len(ctx context.Context, lane string) (queued int64, scheduled int64, err error)
	Close() error
}
