package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/marcelsud/webhook-dispatcher/dispatch"
	"github.com/marcelsud/webhook-dispatcher/hooks"
	"github.com/marcelsud/webhook-dispatcher/payload"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

/* Recorder counts delivery attempts and terminal failures
 * It is both a dispatch.Reporter and a Deliverer middleware
 */
type Recorder struct {
	attempts metric.Int64Counter
	duration metric.Float64Histogram
	failures metric.Int64Counter
}

// NewRecorder creates the dispatch instruments on meter
func NewRecorder(meter metric.Meter) (*Recorder, error) {
	attempts, err := meter.Int64Counter(
		"webhook.delivery.attempts",
		metric.WithDescription("Delivery attempts by outcome"),
		metric.WithUnit("{attempts}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating attempts counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		"webhook.delivery.duration",
		metric.WithDescription("Time spent on one delivery attempt"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	failures, err := meter.Int64Counter(
		"webhook.dispatch.failures",
		metric.WithDescription("Jobs that ended exhausted or failed"),
		metric.WithUnit("{jobs}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failures counter: %w", err)
	}

	return &Recorder{attempts: attempts, duration: duration, failures: failures}, nil
}

// Report counts a terminal failure
func (r *Recorder) Report(ctx context.Context, f dispatch.Failure) {
	r.failures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("lane", f.Lane),
		attribute.String("state", f.State.String()),
	))
}

// Instrument wraps a Deliverer so every attempt is counted and timed
func (r *Recorder) Instrument(next dispatch.Deliverer) dispatch.Deliverer {
	return &instrumentedDeliverer{next: next, recorder: r}
}

type instrumentedDeliverer struct {
	next     dispatch.Deliverer
	recorder *Recorder
}

func (d *instrumentedDeliverer) Deliver(ctx context.Context, hook hooks.Hook, p payload.Payload, eventKind string) dispatch.Outcome {
	start := time.Now()
	outcome := d.next.Deliver(ctx, hook, p, eventKind)

	attrs := metric.WithAttributes(
		attribute.String("hook.id", hook.ID),
		attribute.String("outcome", outcome.Kind.String()),
	)
	d.recorder.attempts.Add(ctx, 1, attrs)
	d.recorder.duration.Record(ctx, time.Since(start).Seconds(), attrs)

	return outcome
}

var _ dispatch.Reporter = (*Recorder)(nil)
