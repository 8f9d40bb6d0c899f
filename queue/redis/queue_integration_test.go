//go:build integration

package redis_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/marcelsud/webhook-dispatcher/queue/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_Reclaim_Integration(t *testing.T) {
	ctx := context.Background()

	t.Run("message abandoned by a crashed worker is redelivered", func(t *testing.T) {
		redisContainer, cleanup := SetupRedisContainer(t, ctx)
		defer cleanup()

		q := CreateTestQueue(t, redisContainer.Addr, redis.WithVisibilityTimeout(200*time.Millisecond))
		defer q.Close()

		_, err := q.Push(ctx, "webhooks", []byte("job"))
		require.NoError(t, err)

		// worker-1 fetches and never acks
		lost, err := q.Fetch(ctx, "webhooks", "worker-1")
		require.NoError(t, err)
		require.NotNil(t, lost)

		next, err := q.Fetch(ctx, "webhooks", "worker-2")
		require.NoError(t, err)
		assert.Nil(t, next, "message is still within its visibility timeout")

		time.Sleep(300 * time.Millisecond)

		next, err = q.Fetch(ctx, "webhooks", "worker-2")
		require.NoError(t, err)
		require.NotNil(t, next)
		assert.Equal(t, lost.ID, next.ID)

		require.NoError(t, q.Ack(ctx, next))
	})
}

func TestQueue_ConcurrentRequeue_Integration(t *testing.T) {
	ctx := context.Background()

	t.Run("each message is delivered to exactly one consumer", func(t *testing.T) {
		redisContainer, cleanup := SetupRedisContainer(t, ctx)
		defer cleanup()

		q := CreateTestQueue(t, redisContainer.Addr, redis.WithVisibilityTimeout(0))
		defer q.Close()

		const n = 50
		for i := 0; i < n; i++ {
			_, err := q.Push(ctx, "webhooks", []byte(fmt.Sprintf("job-%d", i)))
			require.NoError(t, err)
		}

		var mu sync.Mutex
		seen := make(map[string]int)
		var wg sync.WaitGroup
		for w := 0; w < 5; w++ {
			wg.Add(1)
			go func(worker string) {
				defer wg.Done()
				for {
					msg, err := q.Fetch(ctx, "webhooks", worker)
					if err != nil || msg == nil {
						return
					}
					mu.Lock()
					seen[string(msg.Body)]++
					mu.Unlock()
					assert.NoError(t, q.Requeue(ctx, msg, []byte("done-"+string(msg.Body)), time.Hour))
				}
			}(fmt.Sprintf("worker-%d", w))
		}
		wg.Wait()

		assert.Len(t, seen, n)
		for body, count := range seen {
			assert.Equal(t, 1, count, body)
		}

		queued, scheduled, err := q.Len(ctx, "webhooks")
		require.NoError(t, err)
		assert.Equal(t, int64(0), queued)
		assert.Equal(t, int64(n), scheduled)
	})
}
