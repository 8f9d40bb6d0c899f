package chi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/marcelsud/webhook-dispatcher/dispatch"
	"github.com/marcelsud/webhook-dispatcher/metrics"
	"github.com/marcelsud/webhook-dispatcher/payload"
)

/* HTTP layer DTOs for the dispatch API
 * Separate from domain entities to avoid leaking internal structure
 */

// maxEventBody caps the size of an enqueued event
const maxEventBody = 1 << 20

// eventRequest is the body of POST /v1/hooks/{hook_id}/events
type eventRequest struct {
	EventKind string         `json:"event_kind"`
	Payload   map[string]any `json:"payload"`
}

// eventResponse represents the API response when an event is enqueued
type eventResponse struct {
	JobID  string `json:"job_id"`
	HookID string `json:"hook_id"`
}

// hookResponse represents a hook in the API; the signing secret is never exposed
type hookResponse struct {
	ID             string   `json:"id"`
	URL            string   `json:"url"`
	EventKinds     []string `json:"event_kinds"`
	ExpectedStatus int      `json:"expected_status"`
	Signed         bool     `json:"signed"`
}

// postEvent handles POST /v1/hooks/{hook_id}/events
func postEvent(enqueuer dispatch.Enqueuer, registry HookRegistry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hookID := chi.URLParam(r, "hook_id")
		if hookID == "" {
			http.Error(w, "hook_id is required", http.StatusBadRequest)
			return
		}

		// Check if hook exists
		if !registry.Exists(hookID) {
			http.Error(w, fmt.Sprintf("hook not found: %s", hookID), http.StatusNotFound)
			return
		}

		var req eventRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBody))
		dec.UseNumber()
		if err := dec.Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		if err := payload.ValidateEventKind(req.EventKind); err != nil {
			http.Error(w, fmt.Sprintf("invalid event_kind: %v", err), http.StatusBadRequest)
			return
		}
		if req.Payload == nil {
			req.Payload = map[string]any{}
		}

		jobID, err := enqueuer.Enqueue(r.Context(), hookID, req.Payload, req.EventKind)
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}

		// Return 202 Accepted with job ID
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		response := eventResponse{
			JobID:  jobID,
			HookID: hookID,
		}

		if err := json.NewEncoder(w).Encode(response); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

// getHooks handles GET /v1/hooks
func getHooks(registry HookRegistry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allHooks := registry.List()

		responses := make([]hookResponse, 0, len(allHooks))
		for _, hook := range allHooks {
			eventKinds := hook.EventKinds
			if eventKinds == nil {
				eventKinds = []string{}
			}
			responses = append(responses, hookResponse{
				ID:             hook.ID,
				URL:            hook.URL,
				EventKinds:     eventKinds,
				ExpectedStatus: hook.ExpectedStatus,
				Signed:         hook.SigningSecret != "",
			})
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(responses); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

// getLanes handles GET /v1/lanes
func getLanes(collector metrics.Collector) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m, err := collector.Collect(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(m); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}
