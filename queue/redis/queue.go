package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/marcelsud/webhook-dispatcher/queue"
	"github.com/redis/go-redis/v9"
)

/* Redis Streams implementation of queue.Queue
 * One stream and one consumer group per lane carries ready work
 * A sorted set per lane holds retries until they are due
 * Keys of a lane share a hash tag so scripts stay valid on Redis Cluster
 */

const (
	streamPrefix = "lanes"   // Stream naming: lanes:{lane}
	groupSuffix  = "workers" // Consumer group naming: {lane}-workers
	bodyField    = "job"
	promoteBatch = 100

	defaultBlock      = 1 * time.Second // Shorter timeout for better responsiveness
	defaultVisibility = 5 * time.Minute
)

// requeueScript acks and deletes a message and schedules its successor in one step.
// It refuses to schedule when the message was not pending, so a message is requeued at most once.
var requeueScript = redis.NewScript(`
if redis.call('XACK', KEYS[1], ARGV[1], ARGV[2]) == 0 then
	return 0
end
redis.call('XDEL', KEYS[1], ARGV[2])
redis.call('ZADD', KEYS[2], ARGV[3], ARGV[4])
return 1
`)

// promoteScript moves due retries from the sorted set back onto the stream
var promoteScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
for _, member in ipairs(due) do
	redis.call('ZREM', KEYS[1], member)
	local sep = string.find(member, '|', 1, true)
	redis.call('XADD', KEYS[2], '*', ARGV[3], string.sub(member, sep + 1))
end
return #due
`)

type Queue struct {
	client     *redis.Client
	block      time.Duration
	visibility time.Duration
	now        func() time.Time
	groups     sync.Map
}

// Option configures a Queue
type Option func(*Queue)

// WithBlock sets how long Fetch blocks on an empty lane
func WithBlock(d time.Duration) Option {
	return func(q *Queue) { q.block = d }
}

// WithVisibilityTimeout sets how long a fetched message may stay unacked before
// another consumer reclaims it. Zero disables reclaiming.
func WithVisibilityTimeout(d time.Duration) Option {
	return func(q *Queue) { q.visibility = d }
}

// WithClock replaces the clock used to schedule and promote retries
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// NewQueue connects to Redis and returns a lane queue
func NewQueue(addr, password string, db int, opts ...Option) (*Queue, error) {
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

	return NewQueueFromClient(client, opts...), nil
}

// NewQueueFromClient wraps an existing client
func NewQueueFromClient(client *redis.Client, opts ...Option) *Queue {
	q := &Queue{
		client:     client,
		block:      defaultBlock,
		visibility: defaultVisibility,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Push adds body to the lane's stream
func (q *Queue) Push(ctx context.Context, lane string, body []byte) (string, error) {
	if err := q.ensureGroup(ctx, lane); err != nil {
		return "", err
	}

	id, err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey(lane),
		Values: map[string]interface{}{bodyField: body},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("adding to stream: %w", err)
	}

	return id, nil
}

// Fetch promotes due retries, reclaims abandoned messages, then reads new ones
func (q *Queue) Fetch(ctx context.Context, lane, consumer string) (*queue.Message, error) {
	msg, err := q.fetch(ctx, lane, consumer)
	if errors.Is(err, redis.ErrClosed) {
		return nil, queue.ErrClosed
	}
	return msg, err
}

func (q *Queue) fetch(ctx context.Context, lane, consumer string) (*queue.Message, error) {
	if err := q.ensureGroup(ctx, lane); err != nil {
		return nil, err
	}

	if _, err := q.Promote(ctx, lane); err != nil {
		return nil, err
	}

	if q.visibility > 0 {
		msg, err := q.reclaim(ctx, lane, consumer)
		if err != nil || msg != nil {
			return msg, err
		}
	}

	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    GroupName(lane),
		Consumer: consumer,
		Streams:  []string{StreamKey(lane), ">"},
		Count:    1,
		Block:    q.block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		// No messages available
		return nil, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if strings.Contains(err.Error(), "NOGROUP") {
			// Stream was removed underneath us; recreate the group on the next call
			q.groups.Delete(lane)
		}
		return nil, fmt.Errorf("reading from stream: %w", err)
	}

	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}

	return q.toMessage(ctx, lane, streams[0].Messages[0])
}

// reclaim takes over one message another consumer left pending past the visibility timeout
func (q *Queue) reclaim(ctx context.Context, lane, consumer string) (*queue.Message, error) {
	msgs, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   StreamKey(lane),
		Group:    GroupName(lane),
		Consumer: consumer,
		MinIdle:  q.visibility,
		Start:    "0-0",
		Count:    1,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("reclaiming pending messages: %w", err)
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	return q.toMessage(ctx, lane, msgs[0])
}

func (q *Queue) toMessage(ctx context.Context, lane string, xm redis.XMessage) (*queue.Message, error) {
	body, ok := xm.Values[bodyField].(string)
	if !ok {
		// Entry without a body (deleted or foreign); drop it so it is not redelivered forever
		if err := q.Ack(ctx, &queue.Message{ID: xm.ID, Lane: lane}); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return &queue.Message{ID: xm.ID, Lane: lane, Body: []byte(body)}, nil
}

// Ack acknowledges and deletes a message
func (q *Queue) Ack(ctx context.Context, msg *queue.Message) error {
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.XAck(ctx, StreamKey(msg.Lane), GroupName(msg.Lane), msg.ID)
		pipe.XDel(ctx, StreamKey(msg.Lane), msg.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("acknowledging message: %w", err)
	}
	return nil
}

// Requeue atomically acks msg and schedules body after delay
func (q *Queue) Requeue(ctx context.Context, msg *queue.Message, body []byte, delay time.Duration) error {
	if delay < 0 {
		delay = 0
	}
	dueAt := q.now().Add(delay).UnixMilli()
	member := msg.ID + "|" + string(body)

	res, err := requeueScript.Run(ctx, q.client,
		[]string{StreamKey(msg.Lane), ScheduledKey(msg.Lane)},
		GroupName(msg.Lane), msg.ID, dueAt, member,
	).Int()
	if err != nil {
		return fmt.Errorf("requeueing message: %w", err)
	}
	if res == 0 {
		return fmt.Errorf("message %s is not in flight on lane %s", msg.ID, msg.Lane)
	}
	return nil
}

// Promote moves due retries onto the lane's stream and returns how many moved
func (q *Queue) Promote(ctx context.Context, lane string) (int, error) {
	n, err := promoteScript.Run(ctx, q.client,
		[]string{ScheduledKey(lane), StreamKey(lane)},
		q.now().UnixMilli(), promoteBatch, bodyField,
	).Int()
	if err != nil {
		return 0, fmt.Errorf("promoting scheduled messages: %w", err)
	}
	return n, nil
}

// Len reports stream length (waiting and in flight) and scheduled retries
func (q *Queue) Len(ctx context.Context, lane string) (int64, int64, error) {
	var xlen *redis.IntCmd
	var zcard *redis.IntCmd
	_, err := q.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		xlen = pipe.XLen(ctx, StreamKey(lane))
		zcard = pipe.ZCard(ctx, ScheduledKey(lane))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, 0, fmt.Errorf("reading lane length: %w", err)
	}
	return xlen.Val(), zcard.Val(), nil
}

// Close closes the Redis connection
func (q *Queue) Close() error {
	return q.client.Close()
}

// Client returns the underlying Redis client for advanced operations
func (q *Queue) Client() *redis.Client {
	return q.client
}

func (q *Queue) ensureGroup(ctx context.Context, lane string) error {
	if _, ok := q.groups.Load(lane); ok {
		return nil
	}
	err := q.client.XGroupCreateMkStream(ctx, StreamKey(lane), GroupName(lane), "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("creating consumer group: %w", err)
	}
	q.groups.Store(lane, struct{}{})
	return nil
}

// Key helpers

// StreamKey returns the stream holding a lane's ready work
func StreamKey(lane string) string {
	return fmt.Sprintf("%s:{%s}", streamPrefix, lane)
}

// ScheduledKey returns the sorted set holding a lane's pending retries
func ScheduledKey(lane string) string {
	return StreamKey(lane) + ":scheduled"
}

// GroupName returns the consumer group shared by a lane's workers
func GroupName(lane string) string {
	return lane + "-" + groupSuffix
}

var _ queue.Queue = (*Queue)(nil)
