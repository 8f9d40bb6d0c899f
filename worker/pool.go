// Package worker runs lane consumers: a fixed number of goroutines per lane,
// each fetching and handling one message at a time.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/marcelsud/webhook-dispatcher/queue"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	StatusIdle       = "idle"
	StatusProcessing = "processing"
)

// Handler settles one message. A returned error leaves the message pending on its lane.
type Handler func(ctx context.Context, msg *queue.Message) error

// HeartbeatStore publishes worker liveness, e.g. for the active workers gauge
type HeartbeatStore interface {
	SetWorkerHeartbeat(ctx context.Context, lane, workerID, status string) error
	ClearWorkerHeartbeat(ctx context.Context, lane, workerID string) error
}

type laneWorkers struct {
	lane        string
	concurrency int
	handler     Handler
}

// Pool owns the consumers of every registered lane
type Pool struct {
	queue      queue.Queue
	logger     zerolog.Logger
	heartbeats HeartbeatStore
	name       string
	beatEvery  time.Duration
	retryWait  time.Duration

	mu      sync.Mutex
	lanes   []laneWorkers
	running bool
}

// Option configures a Pool
type Option func(*Pool)

// WithHeartbeats publishes worker status to store
func WithHeartbeats(store HeartbeatStore, every time.Duration) Option {
	return func(p *Pool) {
		p.heartbeats = store
		p.beatEvery = every
	}
}

// WithName prefixes worker ids; defaults to the hostname
func WithName(name string) Option {
	return func(p *Pool) { p.name = name }
}

// WithRetryWait sets the pause after a failed fetch
func WithRetryWait(d time.Duration) Option {
	return func(p *Pool) { p.retryWait = d }
}

// NewPool creates a pool consuming from q
func NewPool(q queue.Queue, logger zerolog.Logger, opts ...Option) *Pool {
	name, err := os.Hostname()
	if err != nil || name == "" {
		name = "worker"
	}
	p := &Pool{
		queue:     q,
		logger:    logger,
		name:      name,
		beatEvery: 10 * time.Second,
		retryWait: time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Handle registers concurrency workers for lane. Each lane may be registered once.
func (p *Pool) Handle(lane string, concurrency int, h Handler) error {
	if lane == "" {
		return fmt.Errorf("lane cannot be empty")
	}
	if concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1 for lane %s (got %d)", lane, concurrency)
	}
	if h == nil {
		return fmt.Errorf("handler is required for lane %s", lane)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("pool already running")
	}
	for _, lw := range p.lanes {
		if lw.lane == lane {
			return fmt.Errorf("lane %s already has workers", lane)
		}
	}
	p.lanes = append(p.lanes, laneWorkers{lane: lane, concurrency: concurrency, handler: h})
	return nil
}

// Run blocks until ctx is cancelled or the queue is closed.
// In-flight messages are finished before Run returns.
func (p *Pool) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("pool already running")
	}
	if len(p.lanes) == 0 {
		p.mu.Unlock()
		return fmt.Errorf("no lanes registered")
	}
	p.running = true
	lanes := append([]laneWorkers(nil), p.lanes...)
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	g, ctx := errgroup.WithContext(ctx)
	for _, lw := range lanes {
		p.logger.Info().Str("lane", lw.lane).Int("concurrency", lw.concurrency).Msg("starting lane workers")
		for i := 0; i < lw.concurrency; i++ {
			workerID := fmt.Sprintf("%s-%s-%d", p.name, lw.lane, i)
			g.Go(func() error {
				return p.work(ctx, lw, workerID)
			})
		}
	}
	return g.Wait()
}

func (p *Pool) work(ctx context.Context, lw laneWorkers, workerID string) error {
	log := p.logger.With().Str("lane", lw.lane).Str("worker_id", workerID).Logger()
	beat := newBeater(p.heartbeats, p.beatEvery, lw.lane, workerID, log)
	defer beat.clear()

	for {
		if ctx.Err() != nil {
			return nil
		}
		beat.set(ctx, StatusIdle)

		msg, err := p.queue.Fetch(ctx, lw.lane, workerID)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, queue.ErrClosed) {
				return nil
			}
			log.Error().Err(err).Msg("fetching message")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(p.retryWait):
			}
			continue
		}
		if msg == nil {
			continue
		}

		beat.set(ctx, StatusProcessing)
		// Shutdown must not cut an attempt short; handlers carry their own timeouts
		if err := p.handle(context.WithoutCancel(ctx), lw.handler, msg); err != nil {
			log.Error().Err(err).Str("message_id", msg.ID).Msg("handling message")
		}
	}
}

func (p *Pool) handle(ctx context.Context, h Handler, msg *queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, msg)
}

// beater rate-limits heartbeat writes: on status change or once per interval
type beater struct {
	store    HeartbeatStore
	every    time.Duration
	lane     string
	workerID string
	logger   zerolog.Logger
	status   string
	last     time.Time
}

func newBeater(store HeartbeatStore, every time.Duration, lane, workerID string, logger zerolog.Logger) *beater {
	return &beater{store: store, every: every, lane: lane, workerID: workerID, logger: logger}
}

func (b *beater) set(ctx context.Context, status string) {
	if b.store == nil {
		return
	}
	if status == b.status && time.Since(b.last) < b.every {
		return
	}
	if err := b.store.SetWorkerHeartbeat(ctx, b.lane, b.workerID, status); err != nil {
		b.logger.Warn().Err(err).Msg("updating heartbeat")
		return
	}
	b.status = status
	b.last = time.Now()
}

func (b *beater) clear() {
	if b.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.store.ClearWorkerHeartbeat(ctx, b.lane, b.workerID); err != nil {
		b.logger.Warn().Err(err).Msg("clearing heartbeat")
	}
}
