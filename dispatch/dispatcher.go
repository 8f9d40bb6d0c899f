package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/marcelsud/webhook-dispatcher/hooks"
	"github.com/marcelsud/webhook-dispatcher/payload"
	"github.com/marcelsud/webhook-dispatcher/queue"
	"github.com/rs/zerolog"
)

// HookFinder resolves hook configuration by id.
// Unknown ids must return an error wrapping hooks.ErrNotFound.
type HookFinder interface {
	Find(ctx context.Context, id string) (hooks.Hook, error)
}

/* Deliverer performs the actual delivery to a hook endpoint
 * It is called concurrently and must classify every ordinary failure
 * (network, timeout, status code) into an Outcome instead of panicking
 * It must return within a bounded time; a timeout is a TransientFailure
 */
type Deliverer interface {
	Deliver(ctx context.Context, hook hooks.Hook, p payload.Payload, eventKind string) Outcome
}

// Enqueuer is the producer-facing side of the dispatcher
type Enqueuer interface {
	Enqueue(ctx context.Context, hookID string, raw map[string]any, eventKind string) (string, error)
}

/* Dispatcher hands events off for background delivery and performs single attempts
 * Uses pointer semantics as it's an API, not data; it holds no per-job state
 */
type Dispatcher struct {
	hooks     HookFinder
	deliverer Deliverer
	pusher    queue.Pusher
	router    *queue.Router
	logger    zerolog.Logger
	now       func() time.Time
	newID     func() string
}

// NewDispatcher creates a dispatcher with dependency injection
func NewDispatcher(finder HookFinder, deliverer Deliverer, pusher queue.Pusher, router *queue.Router, logger zerolog.Logger) *Dispatcher {
	if router == nil {
		router = queue.NewRouter()
	}
	return &Dispatcher{
		hooks:     finder,
		deliverer: deliverer,
		pusher:    pusher,
		router:    router,
		logger:    logger,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// Enqueue puts one event for one hook on the webhook lane and returns the job id.
// It never waits on delivery; an error means the queue itself refused the job.
func (d *Dispatcher) Enqueue(ctx context.Context, hookID string, raw map[string]any, eventKind string) (string, error) {
	if hookID == "" {
		return "", fmt.Errorf("hook id is required")
	}
	if err := payload.ValidateEventKind(eventKind); err != nil {
		return "", fmt.Errorf("validating event kind: %w", err)
	}

	job := Job{
		ID:         d.newID(),
		HookID:     hookID,
		EventKind:  eventKind,
		Payload:    raw,
		EnqueuedAt: d.now().UTC(),
	}

	body, err := job.Encode()
	if err != nil {
		return "", err
	}

	lane := d.router.Lane(queue.ClassWebhook)
	if _, err := d.pusher.Push(ctx, lane, body); err != nil {
		return "", fmt.Errorf("pushing job to lane %s: %w", lane, err)
	}

	d.logger.Debug().
		Str("job_id", job.ID).
		Str("hook_id", hookID).
		Str("event_kind", eventKind).
		Str("lane", lane).
		Msg("dispatch enqueued")

	return job.ID, nil
}

// Perform runs one delivery attempt for job.
// It returns nil on delivery, an error wrapping ErrHookNotFound when the hook is
// gone, a *PermanentError for rejected deliveries and a *TransientError otherwise.
func (d *Dispatcher) Perform(ctx context.Context, job Job) error {
	hook, err := d.hooks.Find(ctx, job.HookID)
	if err != nil {
		if errors.Is(err, hooks.ErrNotFound) {
			return fmt.Errorf("%w: %w", ErrHookNotFound, err)
		}
		return &TransientError{Reason: "looking up hook", Err: err}
	}

	if !hook.Subscribes(job.EventKind) {
		d.logger.Debug().
			Str("job_id", job.ID).
			Str("hook_id", hook.ID).
			Str("event_kind", job.EventKind).
			Msg("hook not subscribed to event kind, skipping")
		return nil
	}

	normalized := payload.Normalize(job.Payload)
	outcome := d.deliverer.Deliver(WithJobID(ctx, job.ID), hook, normalized, job.EventKind)

	switch outcome.Kind {
	case Delivered:
		return nil
	case PermanentFailure:
		return &PermanentError{Reason: outcome.Reason, StatusCode: outcome.StatusCode}
	case TransientFailure:
		return &TransientError{Reason: outcome.Reason, StatusCode: outcome.StatusCode}
	default:
		return &TransientError{Reason: fmt.Sprintf("unclassified outcome %d: %s", outcome.Kind, outcome.Reason)}
	}
}

var _ Enqueuer = (*Dispatcher)(nil)
