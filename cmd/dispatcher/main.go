package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/httplog"
	"github.com/marcelsud/webhook-dispatcher/config"
	"github.com/marcelsud/webhook-dispatcher/delivery"
	"github.com/marcelsud/webhook-dispatcher/dispatch"
	"github.com/marcelsud/webhook-dispatcher/hooks"
	"github.com/marcelsud/webhook-dispatcher/internal/http/chi"
	"github.com/marcelsud/webhook-dispatcher/metrics"
	"github.com/marcelsud/webhook-dispatcher/queue"
	queueredis "github.com/marcelsud/webhook-dispatcher/queue/redis"
	"github.com/marcelsud/webhook-dispatcher/worker"
	"golang.org/x/sync/errgroup"
)

const TIMEOUT = 30 * time.Second

/* dispatcher runs the producer API and the webhook lane workers in one process
 * Imports only go downwards: this binary wires the dispatch, queue and delivery packages
 */

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.GetConfig()
	if err != nil {
		return err
	}

	logger := httplog.NewLogger("webhook-dispatcher", httplog.Options{
		JSON: true,
	}).Level(cfg.Level())

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT,
	)
	defer stop()

	q, err := queueredis.NewQueue(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
		queueredis.WithVisibilityTimeout(cfg.VisibilityTimeout()),
	)
	if err != nil {
		return err
	}
	defer q.Close()

	loader := hooks.NewLoader()
	if err := loader.Load(cfg.HooksFile); err != nil {
		return fmt.Errorf("loading hooks: %w", err)
	}
	logger.Info().Int("hooks", len(loader.List())).Str("file", cfg.HooksFile).Msg("hooks loaded")

	router := queue.NewRouter()
	if err := router.Assign(queue.ClassWebhook, cfg.WebhookLane); err != nil {
		return fmt.Errorf("routing webhook lane: %w", err)
	}

	collector := metrics.NewQueueCollector(q, router, q)
	exporter, err := metrics.NewOTelExporter(collector, nil)
	if err != nil {
		return err
	}
	defer exporter.Shutdown(context.Background())

	recorder, err := metrics.NewRecorder(exporter.Meter())
	if err != nil {
		return err
	}

	deliverer := recorder.Instrument(delivery.NewClient(delivery.WithTimeout(cfg.DeliveryTimeout())))
	dispatcher := dispatch.NewDispatcher(loader, deliverer, q, router, logger)

	reporter := dispatch.MultiReporter{dispatch.LogReporter{Logger: logger}, recorder}
	processor, err := dispatch.NewProcessor(dispatcher, q, cfg.RetryPolicy(), reporter, logger)
	if err != nil {
		return err
	}

	pool := worker.NewPool(q, logger, worker.WithHeartbeats(q, 10*time.Second))
	if err := pool.Handle(router.Lane(queue.ClassWebhook), cfg.WebhookConcurrency, processor.Handle); err != nil {
		return err
	}

	r := chi.Handlers(ctx, chi.Deps{
		Enqueuer:  dispatcher,
		Hooks:     loader,
		Collector: collector,
		Metrics:   exporter.ServeHTTP(),
		Logger:    logger,
	})
	srv := &http.Server{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		Addr:         ":" + cfg.Port,
		Handler:      r,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pool.Run(gctx)
	})
	g.Go(func() error {
		return hooks.Watch(gctx, loader, cfg.HooksFile, logger)
	})
	g.Go(func() error {
		logger.Info().Str("port", cfg.Port).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return shutdown(srv, gctx)
	})

	return g.Wait()
}

func shutdown(server *http.Server, ctxShutdown context.Context) error {
	<-ctxShutdown.Done()

	ctxTimeout, stop := context.WithTimeout(context.Background(), TIMEOUT)
	defer stop()

	err := server.Shutdown(ctxTimeout)
	switch err {
	case nil:
		fmt.Printf("\nShutting down server...\n")
		return nil
	case context.DeadlineExceeded:
		return fmt.Errorf("Forcing closing the server")
	default:
		return fmt.Errorf("Forcing closing the server")
	}
}
