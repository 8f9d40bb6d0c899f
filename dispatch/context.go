package dispatch

import "context"

type jobIDKey struct{}

// WithJobID attaches the id of the job being performed, so a Deliverer can send
// the same message id on every attempt
func WithJobID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, jobIDKey{}, id)
}

// JobIDFrom returns the job id set by WithJobID, or "" when there is none
func JobIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(jobIDKey{}).(string)
	return id
}
