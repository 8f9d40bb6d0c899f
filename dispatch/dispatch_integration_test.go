//go:build integration

package dispatch_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marcelsud/webhook-dispatcher/delivery"
	"github.com/marcelsud/webhook-dispatcher/dispatch"
	"github.com/marcelsud/webhook-dispatcher/hooks"
	"github.com/marcelsud/webhook-dispatcher/payload"
	"github.com/marcelsud/webhook-dispatcher/queue"
	queueredis "github.com/marcelsud/webhook-dispatcher/queue/redis"
	"github.com/marcelsud/webhook-dispatcher/signature"
	"github.com/marcelsud/webhook-dispatcher/worker"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testcontainersredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func TestDispatch_EndToEnd_Integration(t *testing.T) {
	ctx := context.Background()

	container, err := testcontainersredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err, "failed to start Redis container")
	defer container.Terminate(ctx)

	addr, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	q, err := queueredis.NewQueue(strings.TrimPrefix(addr, "redis://"), "", 0,
		queueredis.WithBlock(100*time.Millisecond),
		queueredis.WithVisibilityTimeout(30*time.Second),
	)
	require.NoError(t, err)
	defer q.Close()

	secret, err := signature.GenerateSecret(32)
	require.NoError(t, err)

	var requests atomic.Int64
	var lastRef atomic.Value
	var idsMu sync.Mutex
	var ids []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idsMu.Lock()
		ids = append(ids, r.Header.Get(signature.HeaderID))
		idsMu.Unlock()
		// Fail the first two attempts
		if requests.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var env payload.Envelope
		if err := env.UnmarshalJSON(mustRead(t, r)); err == nil {
			lastRef.Store(env.Data.String("ref"))
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	loader := hooks.NewLoader(hooks.Hook{
		ID:            "hook-1",
		URL:           server.URL,
		EventKinds:    []string{"push"},
		SigningSecret: secret.String(),
	})

	d := dispatch.NewDispatcher(loader, delivery.NewClient(delivery.WithTimeout(5*time.Second)), q, nil, zerolog.Nop())
	var reported atomic.Int64
	reporter := dispatch.ReporterFunc(func(context.Context, dispatch.Failure) { reported.Add(1) })
	policy := dispatch.RetryPolicy{MaxAttempts: 4, Backoff: dispatch.ConstantBackoff(time.Millisecond)}
	processor, err := dispatch.NewProcessor(d, q, policy, reporter, zerolog.Nop())
	require.NoError(t, err)

	pool := worker.NewPool(q, zerolog.Nop(), worker.WithHeartbeats(q, time.Second))
	require.NoError(t, pool.Handle(queue.LaneWebhooks, 2, processor.Handle))

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- pool.Run(runCtx) }()

	jobID, err := d.Enqueue(ctx, "hook-1", map[string]any{"Ref": "main", "Author": map[string]any{"Username": "ada"}}, "push")
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return requests.Load() == 3 }, 10*time.Second, 50*time.Millisecond)
	assert.Eventually(t, func() bool {
		queued, scheduled, err := q.Len(ctx, queue.LaneWebhooks)
		return err == nil && queued == 0 && scheduled == 0
	}, 10*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, int64(3), requests.Load())
	assert.Equal(t, "main", lastRef.Load())
	assert.Zero(t, reported.Load())

	idsMu.Lock()
	defer idsMu.Unlock()
	assert.Equal(t, []string{"msg_" + jobID, "msg_" + jobID, "msg_" + jobID}, ids)
}

func mustRead(t *testing.T, r *http.Request) []byte {
	t.Helper()
	buf := new(strings.Builder)
	_, err := io.Copy(buf, r.Body)
	require.NoError(t, err)
	return []byte(buf.String())
}
