package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Telemetry owns the tracer and meter providers. Disabled signals get
// no-op providers, so callers never check for nil.
type Telemetry struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	metricsHandler http.Handler

	mu        sync.Mutex
	shutdowns []func(context.Context) error
}

// Option configures New.
type Option func(*options)

type options struct {
	config  *Config
	version string
}

// WithTelemetryConfig sets the telemetry section of the worker config.
func WithTelemetryConfig(cfg *Config) Option {
	return func(o *options) {
		o.config = cfg
	}
}

// WithServiceVersion sets the version reported when the config names none.
func WithServiceVersion(version string) Option {
	return func(o *options) {
		o.version = version
	}
}

// New builds the enabled providers and installs them as the otel globals.
// The caller must call Shutdown to flush pending data.
func New(ctx context.Context, opts ...Option) (*Telemetry, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	t := &Telemetry{
		tracerProvider: tracenoop.NewTracerProvider(),
		meterProvider:  metricnoop.NewMeterProvider(),
	}
	if o.config == nil || !o.config.Enabled {
		slog.Debug("Telemetry disabled")
		return t, nil
	}
	if err := o.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry configuration: %w", err)
	}
	cfg := o.config.withDefaults(o.version)

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Tracing.enabled() {
		tp, err := newTracerProvider(ctx, res, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create tracer provider: %w", err)
		}
		t.tracerProvider = tp
		t.shutdowns = append(t.shutdowns, tp.Shutdown)
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}

	if cfg.Metrics.enabled() {
		mp, handler, err := newMeterProvider(ctx, res, cfg)
		if err != nil {
			if shutdownErr := t.Shutdown(ctx); shutdownErr != nil {
				slog.Warn("Failed to shutdown tracer provider", "error", shutdownErr)
			}
			return nil, fmt.Errorf("failed to create meter provider: %w", err)
		}
		t.meterProvider = mp
		t.metricsHandler = handler
		t.shutdowns = append(t.shutdowns, mp.Shutdown)
		otel.SetMeterProvider(mp)
	}

	if cfg.Insecure {
		slog.Warn("Telemetry is exported over plain HTTP", "endpoint", cfg.Endpoint)
	}
	slog.Info("Telemetry initialized",
		"service_name", cfg.ServiceName,
		"service_version", cfg.ServiceVersion,
		"endpoint", cfg.Endpoint,
		"tracing", cfg.Tracing.enabled(),
		"sampling_ratio", cfg.Tracing.GetSampling(),
		"metrics", cfg.Metrics.enabled(),
		"metrics_interval", cfg.Metrics.GetInterval(),
		"prometheus", cfg.Metrics.prometheus())
	return t, nil
}

// TracerProvider returns the tracer provider.
func (t *Telemetry) TracerProvider() trace.TracerProvider {
	return t.tracerProvider
}

// MeterProvider returns the meter provider.
func (t *Telemetry) MeterProvider() metric.MeterProvider {
	return t.meterProvider
}

// MetricsHandler serves the Prometheus scrape endpoint, or is nil when
// Prometheus export is off.
func (t *Telemetry) MetricsHandler() http.Handler {
	return t.metricsHandler
}

// Shutdown flushes and stops the providers in reverse creation order.
// Calls after the first are no-ops.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	shutdowns := t.shutdowns
	t.shutdowns = nil
	t.mu.Unlock()

	if len(shutdowns) == 0 {
		return nil
	}

	var errs []error
	for i := len(shutdowns) - 1; i >= 0; i-- {
		if err := shutdowns[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to shutdown telemetry: %w", err)
	}
	slog.Info("Telemetry shutdown complete")
	return nil
}
