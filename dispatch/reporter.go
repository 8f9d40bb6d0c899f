package dispatch

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Failure describes a job that reached a terminal failure state
type Failure struct {
	Job       Job
	Lane      string
	MessageID string
	State     State // Exhausted or Failed
	Err       error
	At        time.Time
}

// Reporter receives every terminal failure exactly once per terminal transition
type Reporter interface {
	Report(ctx context.Context, f Failure)
}

// ReporterFunc adapts a function to Reporter
type ReporterFunc func(ctx context.Context, f Failure)

func (fn ReporterFunc) Report(ctx context.Context, f Failure) { fn(ctx, f) }

// MultiReporter fans a failure out to several reporters
type MultiReporter []Reporter

func (m MultiReporter) Report(ctx context.Context, f Failure) {
	for _, r := range m {
		r.Report(ctx, f)
	}
}

// LogReporter writes failures to a structured log
type LogReporter struct {
	Logger zerolog.Logger
}

func (r LogReporter) Report(ctx context.Context, f Failure) {
	r.Logger.Error().
		Err(f.Err).
		Str("job_id", f.Job.ID).
		Str("hook_id", f.Job.HookID).
		Str("event_kind", f.Job.EventKind).
		Str("lane", f.Lane).
		Str("state", f.State.String()).
		Int("attempts", f.Job.Attempt).
		Time("enqueued_at", f.Job.EnqueuedAt).
		Msg("webhook dispatch failed")
}
