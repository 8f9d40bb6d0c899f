// Package memory is an in-process queue.Queue for single-binary deployments and tests.
// Messages do not survive a restart. A message left unacked past the visibility
// timeout is handed to the next Fetch, like a reclaimed Redis stream entry.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/marcelsud/webhook-dispatcher/queue"
)

const (
	defaultBlock      = time.Second
	defaultVisibility = 5 * time.Minute
)

type lane struct {
	ready     []*queue.Message
	inflight  map[string]*queue.Message
	fetchedAt map[string]time.Time
	scheduled int64
	wake      chan struct{}
}

// Queue keeps every lane in memory behind one mutex
type Queue struct {
	mu         sync.Mutex
	lanes      map[string]*lane
	timers     map[*time.Timer]struct{}
	seq        uint64
	block      time.Duration
	visibility time.Duration
	now        func() time.Time
	closed     bool
}

// Option configures a Queue
type Option func(*Queue)

// WithBlock sets how long Fetch waits on an empty lane
func WithBlock(d time.Duration) Option {
	return func(q *Queue) { q.block = d }
}

// WithVisibilityTimeout sets how long a fetched message may stay unacked before
// Fetch hands it out again. Zero disables reclaiming.
func WithVisibilityTimeout(d time.Duration) Option {
	return func(q *Queue) { q.visibility = d }
}

// New creates an empty queue
func New(opts ...Option) *Queue {
	q := &Queue{
		lanes:      make(map[string]*lane),
		timers:     make(map[*time.Timer]struct{}),
		block:      defaultBlock,
		visibility: defaultVisibility,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// lane must be called with q.mu held
func (q *Queue) lane(name string) *lane {
	l, ok := q.lanes[name]
	if !ok {
		l = &lane{
			inflight:  make(map[string]*queue.Message),
			fetchedAt: make(map[string]time.Time),
			wake:      make(chan struct{}),
		}
		q.lanes[name] = l
	}
	return l
}

// enqueue must be called with q.mu held
func (q *Queue) enqueue(name string, body []byte) string {
	q.seq++
	msg := &queue.Message{
		ID:   strconv.FormatUint(q.seq, 10),
		Lane: name,
		Body: append([]byte(nil), body...),
	}
	l := q.lane(name)
	l.ready = append(l.ready, msg)
	close(l.wake)
	l.wake = make(chan struct{})
	return msg.ID
}

// Push appends body to a lane
func (q *Queue) Push(ctx context.Context, name string, body []byte) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return "", queue.ErrClosed
	}
	return q.enqueue(name, body), nil
}

// reclaim moves messages unacked past the visibility timeout back to the front
// of the lane, oldest first. It must be called with q.mu held.
func (q *Queue) reclaim(l *lane) {
	if q.visibility <= 0 || len(l.inflight) == 0 {
		return
	}
	now := q.now()
	var expired []*queue.Message
	for id, at := range l.fetchedAt {
		if now.Sub(at) >= q.visibility {
			expired = append(expired, l.inflight[id])
		}
	}
	if len(expired) == 0 {
		return
	}
	sort.Slice(expired, func(i, j int) bool {
		return l.fetchedAt[expired[i].ID].Before(l.fetchedAt[expired[j].ID])
	})
	for _, msg := range expired {
		delete(l.inflight, msg.ID)
		delete(l.fetchedAt, msg.ID)
	}
	l.ready = append(expired, l.ready...)
}

// Fetch pops the oldest ready message of a lane
func (q *Queue) Fetch(ctx context.Context, name, consumer string) (*queue.Message, error) {
	timer := time.NewTimer(q.block)
	defer timer.Stop()

	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, queue.ErrClosed
		}
		l := q.lane(name)
		q.reclaim(l)
		if len(l.ready) > 0 {
			msg := l.ready[0]
			l.ready = l.ready[1:]
			l.inflight[msg.ID] = msg
			l.fetchedAt[msg.ID] = q.now()
			q.mu.Unlock()
			return msg, nil
		}
		wake := l.wake
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, nil
		case <-wake:
		}
	}
}

// Ack forgets an in-flight message
func (q *Queue) Ack(ctx context.Context, msg *queue.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	l := q.lane(msg.Lane)
	delete(l.inflight, msg.ID)
	delete(l.fetchedAt, msg.ID)
	return nil
}

// Requeue drops msg from the in-flight set and schedules body, under one lock
func (q *Queue) Requeue(ctx context.Context, msg *queue.Message, body []byte, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return queue.ErrClosed
	}

	l := q.lane(msg.Lane)
	if _, ok := l.inflight[msg.ID]; !ok {
		return fmt.Errorf("message %s is not in flight on lane %s", msg.ID, msg.Lane)
	}
	delete(l.inflight, msg.ID)
	delete(l.fetchedAt, msg.ID)

	if delay <= 0 {
		q.enqueue(msg.Lane, body)
		return nil
	}

	l.scheduled++
	body = append([]byte(nil), body...)
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		q.mu.Lock()
		defer q.mu.Unlock()

		delete(q.timers, timer)
		if q.closed {
			return
		}
		q.lane(msg.Lane).scheduled--
		q.enqueue(msg.Lane, body)
	})
	q.timers[timer] = struct{}{}

	return nil
}

// Len reports unacked (ready plus in flight) and scheduled counts
func (q *Queue) Len(ctx context.Context, name string) (int64, int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	l := q.lane(name)
	return int64(len(l.ready) + len(l.inflight)), l.scheduled, nil
}

// InFlight reports how many fetched messages are not yet acked
func (q *Queue) InFlight(name string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.lane(name).inflight)
}

// Close stops scheduled retries and wakes blocked fetchers
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	for t := range q.timers {
		t.Stop()
	}
	for _, l := range q.lanes {
		close(l.wake)
		l.wake = make(chan struct{})
	}
	return nil
}

var _ queue.Queue = (*Queue)(nil)
