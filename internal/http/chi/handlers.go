package chi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
	"github.com/marcelsud/webhook-dispatcher/dispatch"
	"github.com/marcelsud/webhook-dispatcher/hooks"
	"github.com/marcelsud/webhook-dispatcher/metrics"
	"github.com/rs/zerolog"
)

// HookRegistry is the read side of the hook configuration
type HookRegistry interface {
	Exists(id string) bool
	List() []hooks.Hook
}

// Deps are the collaborators of the producer-facing API
type Deps struct {
	Enqueuer  dispatch.Enqueuer
	Hooks     HookRegistry
	Collector metrics.Collector // optional
	Metrics   http.Handler      // optional, Prometheus exposition
	Logger    zerolog.Logger
}

// Handlers sets up the dispatch API routes
func Handlers(ctx context.Context, deps Deps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		// List registered hooks
		r.Get("/hooks", getHooks(deps.Hooks).ServeHTTP)

		// Enqueue an event for a hook
		r.Post("/hooks/{hook_id}/events", postEvent(deps.Enqueuer, deps.Hooks).ServeHTTP)

		if deps.Collector != nil {
			r.Get("/lanes", getLanes(deps.Collector).ServeHTTP)
		}
	})

	return r
}
