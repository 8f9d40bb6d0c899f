package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/marcelsud/webhook-dispatcher/queue"
	"github.com/rs/zerolog"
)

// Performer runs a single attempt of a job
type Performer interface {
	Perform(ctx context.Context, job Job) error
}

/* Processor drives the retry state machine for messages fetched from the webhook lane
 * Every attempt is independent: the only state carried between attempts is the
 * attempt counter inside the requeued job
 */
type Processor struct {
	performer Performer
	queue     queue.Queue
	policy    RetryPolicy
	reporter  Reporter
	logger    zerolog.Logger
	now       func() time.Time
}

// NewProcessor wires a processor; a nil reporter falls back to logging
func NewProcessor(performer Performer, q queue.Queue, policy RetryPolicy, reporter Reporter, logger zerolog.Logger) (*Processor, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("validating retry policy: %w", err)
	}
	if reporter == nil {
		reporter = LogReporter{Logger: logger}
	}
	return &Processor{
		performer: performer,
		queue:     q,
		policy:    policy,
		reporter:  reporter,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Handle processes one message: attempt, then ack, schedule a retry, or ack and report.
// A returned error means the message could not be settled and stays pending on the lane.
func (p *Processor) Handle(ctx context.Context, msg *queue.Message) error {
	job, err := DecodeJob(msg.Body)
	if err != nil {
		// Poison message: no attempt can ever succeed
		if ackErr := p.queue.Ack(ctx, msg); ackErr != nil {
			return fmt.Errorf("acknowledging undecodable message: %w", ackErr)
		}
		p.reporter.Report(ctx, Failure{
			Lane:      msg.Lane,
			MessageID: msg.ID,
			State:     Failed,
			Err:       &PermanentError{Reason: "undecodable job", Err: err},
			At:        p.now(),
		})
		return nil
	}

	job.Attempt++
	log := p.logger.With().
		Str("job_id", job.ID).
		Str("hook_id", job.HookID).
		Str("event_kind", job.EventKind).
		Int("attempt", job.Attempt).
		Logger()

	start := p.now()
	performErr := p.performer.Perform(ctx, job)
	decision := p.policy.Decide(job.Attempt, performErr)

	switch decision.State {
	case Succeeded:
		if err := p.queue.Ack(ctx, msg); err != nil {
			return fmt.Errorf("acknowledging delivered job %s: %w", job.ID, err)
		}
		log.Info().Dur("duration", p.now().Sub(start)).Msg("webhook delivered")
		return nil

	case Scheduled:
		body, err := job.Encode()
		if err != nil {
			return fmt.Errorf("encoding retry of job %s: %w", job.ID, err)
		}
		if err := p.queue.Requeue(ctx, msg, body, decision.Delay); err != nil {
			return fmt.Errorf("scheduling retry of job %s: %w", job.ID, err)
		}
		log.Warn().Err(performErr).Dur("retry_in", decision.Delay).Msg("webhook delivery failed, retry scheduled")
		return nil

	default:
		if err := p.queue.Ack(ctx, msg); err != nil {
			return fmt.Errorf("acknowledging failed job %s: %w", job.ID, err)
		}
		p.reporter.Report(ctx, Failure{
			Job:       job,
			Lane:      msg.Lane,
			MessageID: msg.ID,
			State:     decision.State,
			Err:       decision.Err,
			At:        p.now(),
		})
		return nil
	}
}
