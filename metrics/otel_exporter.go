package metrics

import (
	"context"
	"fmt"
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// OTelExporter provides OpenTelemetry metrics export following OTel standards
type OTelExporter struct {
	meterProvider *sdkmetric.MeterProvider
	collector     Collector
	registry      *promclient.Registry

	// OTel meters and instruments
	meter              metric.Meter
	laneDepthGauge     metric.Int64ObservableGauge
	activeWorkersGauge metric.Int64ObservableGauge
}

// NewOTelExporter creates a new OpenTelemetry metrics exporter with Prometheus format.
// A nil registry uses the Prometheus default registry.
func NewOTelExporter(collector Collector, registry *promclient.Registry) (*OTelExporter, error) {
	var opts []otelprom.Option
	if registry != nil {
		opts = append(opts, otelprom.WithRegisterer(registry))
	}

	// Create Prometheus exporter
	exporter, err := otelprom.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}

	// Create meter provider
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(meterProvider)

	// Create meter with service info
	meter := meterProvider.Meter(
		"webhook-dispatcher",
		metric.WithInstrumentationVersion("1.0.0"),
	)

	oe := &OTelExporter{
		meterProvider: meterProvider,
		collector:     collector,
		registry:      registry,
		meter:         meter,
	}

	// Register metrics instruments
	if err := oe.registerInstruments(); err != nil {
		return nil, fmt.Errorf("registering instruments: %w", err)
	}

	return oe, nil
}

// registerInstruments creates and registers the observable gauges
func (oe *OTelExporter) registerInstruments() error {
	var err error

	// Lane depth gauge (per lane and state)
	oe.laneDepthGauge, err = oe.meter.Int64ObservableGauge(
		"webhook.lane.depth",
		metric.WithDescription("Number of messages on a lane, queued or scheduled for retry"),
		metric.WithUnit("{messages}"),
		metric.WithInt64Callback(oe.observeLaneDepths),
	)
	if err != nil {
		return fmt.Errorf("creating lane depth gauge: %w", err)
	}

	// Active workers gauge (per lane)
	oe.activeWorkersGauge, err = oe.meter.Int64ObservableGauge(
		"webhook.workers.active",
		metric.WithDescription("Number of active workers per lane"),
		metric.WithUnit("{workers}"),
		metric.WithInt64Callback(oe.observeActiveWorkers),
	)
	if err != nil {
		return fmt.Errorf("creating active workers gauge: %w", err)
	}

	return nil
}

// observeLaneDepths is a callback that reports lane backlogs
func (oe *OTelExporter) observeLaneDepths(ctx context.Context, observer metric.Int64Observer) error {
	depths, err := oe.collector.GetLaneDepths(ctx)
	if err != nil {
		return err
	}

	for lane, depth := range depths {
		observer.Observe(depth.Queued, metric.WithAttributes(
			attribute.String("lane", lane),
			attribute.String("state", "queued"),
		))
		observer.Observe(depth.Scheduled, metric.WithAttributes(
			attribute.String("lane", lane),
			attribute.String("state", "scheduled"),
		))
	}

	return nil
}

// observeActiveWorkers is a callback that reports active worker counts
func (oe *OTelExporter) observeActiveWorkers(ctx context.Context, observer metric.Int64Observer) error {
	workers, err := oe.collector.GetActiveWorkers(ctx)
	if err != nil {
		return err
	}

	for lane, workersList := range workers {
		observer.Observe(int64(len(workersList)), metric.WithAttributes(
			attribute.String("lane", lane),
		))
	}

	return nil
}

// Meter returns the meter used for the dispatch instruments
func (oe *OTelExporter) Meter() metric.Meter {
	return oe.meter
}

// ServeHTTP serves Prometheus-formatted metrics on the given HTTP handler
func (oe *OTelExporter) ServeHTTP() http.Handler {
	if oe.registry != nil {
		return promhttp.HandlerFor(oe.registry, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}

// Shutdown gracefully shuts down the meter provider
func (oe *OTelExporter) Shutdown(ctx context.Context) error {
	if oe.meterProvider != nil {
		return oe.meterProvider.Shutdown(ctx)
	}
	return nil
}
