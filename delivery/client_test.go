package delivery_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marcelsud/webhook-dispatcher/delivery"
	"github.com/marcelsud/webhook-dispatcher/dispatch"
	"github.com/marcelsud/webhook-dispatcher/hooks"
	"github.com/marcelsud/webhook-dispatcher/payload"
	"github.com/marcelsud/webhook-dispatcher/signature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Deliver(t *testing.T) {
	ctx := context.Background()
	data := payload.Normalize(map[string]any{
		"Ref":    "main",
		"Author": map[string]any{"Username": "ada"},
	})

	t.Run("success - signed Standard Webhooks request", func(t *testing.T) {
		secret, err := signature.GenerateSecret(32)
		require.NoError(t, err)

		var received atomic.Bool
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			received.Store(true)
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)

			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.Equal(t, "push", r.Header.Get(delivery.HeaderEventKind))
			assert.Equal(t, "secret-token", r.Header.Get("X-Api-Key"))

			ts, err := signature.ParseTimestamp(r.Header.Get(signature.HeaderTimestamp))
			require.NoError(t, err)
			assert.NoError(t, signature.Verify(secret, r.Header.Get(signature.HeaderID), ts, body, r.Header.Get(signature.HeaderSignature)))

			env, err := payload.ParseEnvelope(body)
			require.NoError(t, err)
			assert.Equal(t, "push", env.Type)
			assert.Equal(t, "main", env.Data.String("ref"))
			assert.Equal(t, "ada", env.Data.Dig("author", "username"))

			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		hook := hooks.Hook{
			ID:            "hook-1",
			URL:           server.URL,
			SigningSecret: secret.String(),
			Headers:       map[string]string{"X-Api-Key": "secret-token"},
		}

		outcome := delivery.NewClient().Deliver(ctx, hook, data, "push")

		assert.True(t, received.Load())
		assert.Equal(t, dispatch.Delivered, outcome.Kind)
		assert.Equal(t, http.StatusNoContent, outcome.StatusCode)
	})

	t.Run("unsigned hook has no signature header", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Empty(t, r.Header.Get(signature.HeaderSignature))
			assert.NotEmpty(t, r.Header.Get(signature.HeaderID))
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		outcome := delivery.NewClient().Deliver(ctx, hooks.Hook{ID: "hook-1", URL: server.URL}, data, "push")
		assert.Equal(t, dispatch.Delivered, outcome.Kind)
	})

	t.Run("attempts of one job share the message id", func(t *testing.T) {
		var ids []string
		var mu sync.Mutex
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			ids = append(ids, r.Header.Get(signature.HeaderID))
			mu.Unlock()
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		secret, err := signature.GenerateSecret(32)
		require.NoError(t, err)
		hook := hooks.Hook{ID: "hook-1", URL: server.URL, SigningSecret: secret.String()}
		client := delivery.NewClient()

		jobCtx := dispatch.WithJobID(ctx, "job-42")
		for i := 0; i < 3; i++ {
			outcome := client.Deliver(jobCtx, hook, data, "push")
			assert.Equal(t, dispatch.TransientFailure, outcome.Kind)
		}
		client.Deliver(dispatch.WithJobID(ctx, "job-43"), hook, data, "push")
		client.Deliver(ctx, hook, data, "push")
		client.Deliver(ctx, hook, data, "push")

		mu.Lock()
		defer mu.Unlock()
		require.Len(t, ids, 6)
		assert.Equal(t, []string{"msg_job-42", "msg_job-42", "msg_job-42", "msg_job-43"}, ids[:4])
		assert.NotEqual(t, ids[4], ids[5])
		assert.NotContains(t, ids[4:], "msg_job-42")
	})

	t.Run("server error is transient", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "database down", http.StatusServiceUnavailable)
		}))
		defer server.Close()

		outcome := delivery.NewClient().Deliver(ctx, hooks.Hook{ID: "hook-1", URL: server.URL}, data, "push")

		assert.Equal(t, dispatch.TransientFailure, outcome.Kind)
		assert.Equal(t, http.StatusServiceUnavailable, outcome.StatusCode)
		assert.Contains(t, outcome.Reason, "database down")
	})

	t.Run("client error is permanent", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusGone)
		}))
		defer server.Close()

		outcome := delivery.NewClient().Deliver(ctx, hooks.Hook{ID: "hook-1", URL: server.URL}, data, "push")
		assert.Equal(t, dispatch.PermanentFailure, outcome.Kind)
	})

	t.Run("timeout is transient", func(t *testing.T) {
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer server.Close()
		defer close(release)

		client := delivery.NewClient(delivery.WithTimeout(50 * time.Millisecond))
		outcome := client.Deliver(ctx, hooks.Hook{ID: "hook-1", URL: server.URL}, data, "push")

		assert.Equal(t, dispatch.TransientFailure, outcome.Kind)
		assert.Contains(t, outcome.Reason, "timeout")
	})

	t.Run("connection refused is transient", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		outcome := delivery.NewClient().Deliver(ctx, hooks.Hook{ID: "hook-1", URL: url}, data, "push")
		assert.Equal(t, dispatch.TransientFailure, outcome.Kind)
	})

	t.Run("invalid event kind is permanent", func(t *testing.T) {
		outcome := delivery.NewClient().Deliver(ctx, hooks.Hook{ID: "hook-1", URL: "http://127.0.0.1:1"}, data, "not a kind")
		assert.Equal(t, dispatch.PermanentFailure, outcome.Kind)
		assert.Contains(t, outcome.Reason, "building request")
	})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		expected int
		status   int
		kind     dispatch.OutcomeKind
	}{
		{"200 with default expectation", 0, 200, dispatch.Delivered},
		{"202 with default expectation", 0, 202, dispatch.Delivered},
		{"expected status", 202, 202, dispatch.Delivered},
		{"other 2xx than expected", 202, 200, dispatch.PermanentFailure},
		{"redirect", 0, 302, dispatch.PermanentFailure},
		{"bad request", 0, 400, dispatch.PermanentFailure},
		{"not found", 0, 404, dispatch.PermanentFailure},
		{"request timeout", 0, 408, dispatch.TransientFailure},
		{"conflict", 0, 409, dispatch.TransientFailure},
		{"too early", 0, 425, dispatch.TransientFailure},
		{"rate limited", 0, 429, dispatch.TransientFailure},
		{"internal error", 0, 500, dispatch.TransientFailure},
		{"bad gateway", 0, 502, dispatch.TransientFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hook := hooks.Hook{ID: "hook-1", URL: "https://example.com", ExpectedStatus: tt.expected}
			outcome := delivery.Classify(hook, tt.status, nil)
			assert.Equal(t, tt.kind, outcome.Kind)
			assert.Equal(t, tt.status, outcome.StatusCode)
		})
	}
}
