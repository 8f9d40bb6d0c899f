package metrics_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/marcelsud/webhook-dispatcher/metrics"
	"github.com/marcelsud/webhook-dispatcher/queue"
	"github.com/marcelsud/webhook-dispatcher/queue/memory"
	queueredis "github.com/marcelsud/webhook-dispatcher/queue/redis"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisQueue(t *testing.T) *queueredis.Queue {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	q := queueredis.NewQueueFromClient(client,
		queueredis.WithBlock(50*time.Millisecond),
		queueredis.WithVisibilityTimeout(0),
	)
	t.Cleanup(func() { q.Close() })
	return q
}

func TestQueueCollector_Collect(t *testing.T) {
	ctx := context.Background()
	q := newRedisQueue(t)
	router := queue.NewRouter()

	for i := 0; i < 2; i++ {
		_, err := q.Push(ctx, queue.LaneWebhooks, []byte(`{"id":"job"}`))
		require.NoError(t, err)
	}
	_, err := q.Push(ctx, queue.LaneDefault, []byte(`{"id":"other"}`))
	require.NoError(t, err)

	msg, err := q.Fetch(ctx, queue.LaneWebhooks, "worker-1")
	require.NoError(t, err)
	require.NotNil(t, msg)
	require.NoError(t, q.Requeue(ctx, msg, msg.Body, time.Hour))

	require.NoError(t, q.SetWorkerHeartbeat(ctx, queue.LaneWebhooks, "worker-1", "idle"))
	require.NoError(t, q.SetWorkerHeartbeat(ctx, queue.LaneWebhooks, "worker-2", "processing"))

	collector := metrics.NewQueueCollector(q, router, q)
	m, err := collector.Collect(ctx)
	require.NoError(t, err)

	assert.Equal(t, metrics.LaneDepth{Queued: 1, Scheduled: 1}, m.Lanes[queue.LaneWebhooks])
	assert.Equal(t, metrics.LaneDepth{Queued: 1, Scheduled: 0}, m.Lanes[queue.LaneDefault])
	assert.Len(t, m.Workers[queue.LaneWebhooks], 2)
	assert.False(t, m.Timestamp.IsZero())
}

func TestQueueCollector_WithoutHeartbeats(t *testing.T) {
	q := memory.New()
	defer q.Close()

	collector := metrics.NewQueueCollector(q, queue.NewRouter(), nil)
	workers, err := collector.GetActiveWorkers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, workers)
}

type brokenWorkers struct{}

func (brokenWorkers) AllActiveWorkers(ctx context.Context) (map[string][]queueredis.WorkerHeartbeat, error) {
	return nil, errors.New("connection refused")
}

func TestQueueCollector_WorkerError(t *testing.T) {
	q := memory.New()
	defer q.Close()

	collector := metrics.NewQueueCollector(q, queue.NewRouter(), brokenWorkers{})
	_, err := collector.Collect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "getting active workers")
}

func TestOTelExporter_ServeHTTP(t *testing.T) {
	ctx := context.Background()
	q := memory.New()
	defer q.Close()

	_, err := q.Push(ctx, queue.LaneWebhooks, []byte("job"))
	require.NoError(t, err)

	exporter, err := metrics.NewOTelExporter(metrics.NewQueueCollector(q, queue.NewRouter(), nil), promclient.NewRegistry())
	require.NoError(t, err)
	defer exporter.Shutdown(ctx)

	server := httptest.NewServer(exporter.ServeHTTP())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "webhook_lane_depth")
	assert.Contains(t, string(body), `lane="webhooks"`)
	assert.Contains(t, string(body), `state="scheduled"`)
}
