package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// flusher is what the SDK tracer, meter and logger providers have in
// common.
type flusher interface {
	ForceFlush(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// Telemetry owns boxd's tracer, meter and logger providers.
//
// A provider that fails to start does not fail New. Its component is
// recorded as degraded, reported by Health, and the global no-op provider
// serves in its place.
type Telemetry struct {
	config *Config

	tracerProvider *trace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	sdkLogs        *sdklog.LoggerProvider
	logProvider    log.LoggerProvider

	mu       sync.Mutex
	logger   *zap.Logger
	degraded map[string]error
	stopped  bool
}

// New validates cfg and starts the providers it enables. logger receives
// degradation reports and may be nil.
func New(ctx context.Context, cfg *Config, logger *zap.Logger) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	t := &Telemetry{config: cfg, logger: logger, degraded: map[string]error{}}
	if !cfg.Enabled {
		return t, nil
	}

	res := newResource(cfg)
	if tp, err := newTracerProvider(ctx, cfg, res); err != nil {
		t.setDegraded("traces", err)
	} else {
		t.tracerProvider = tp
		otel.SetTracerProvider(tp)
	}
	if mp, err := newMeterProvider(ctx, cfg, res); err != nil {
		t.setDegraded("metrics", err)
	} else if mp != nil {
		t.meterProvider = mp
		otel.SetMeterProvider(mp)
	}
	if lp, err := newLoggerProvider(ctx, cfg, res); err != nil {
		t.setDegraded("logs", err)
	} else if lp != nil {
		t.sdkLogs = lp
		t.logProvider = lp
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return t, nil
}

// TracerProvider returns the SDK tracer provider, or the global one when
// tracing is off or failed to start.
func (t *Telemetry) TracerProvider() oteltrace.TracerProvider {
	if t == nil || t.tracerProvider == nil {
		return otel.GetTracerProvider()
	}
	return t.tracerProvider
}

func (t *Telemetry) Tracer(name string, opts ...oteltrace.TracerOption) oteltrace.Tracer {
	if t == nil || t.tracerProvider == nil {
		return otel.GetTracerProvider().Tracer(name, opts...)
	}
	return t.tracerProvider.Tracer(name, opts...)
}

// MeterProvider returns the SDK meter provider, or the global one when
// metrics are off or failed to start.
func (t *Telemetry) MeterProvider() metric.MeterProvider {
	if t == nil || t.meterProvider == nil {
		return otel.GetMeterProvider()
	}
	return t.meterProvider
}

func (t *Telemetry) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	return t.MeterProvider().Meter(name, opts...)
}

// LoggerProvider returns the provider for the zap OTEL bridge. It is nil
// unless log export is enabled or a provider was set.
func (t *Telemetry) LoggerProvider() log.LoggerProvider {
	if t == nil {
		return nil
	}
	return t.logProvider
}

// SetLoggerProvider replaces the provider returned by LoggerProvider. An
// SDK provider created by New is still shut down by Shutdown.
func (t *Telemetry) SetLoggerProvider(lp log.LoggerProvider) {
	if t != nil {
		t.logProvider = lp
	}
}

// SetLogger replaces the logger for degradation reports. boxd starts
// telemetry before its final logger exists.
func (t *Telemetry) SetLogger(logger *zap.Logger) {
	if t == nil || logger == nil {
		return
	}
	t.mu.Lock()
	t.logger = logger
	t.mu.Unlock()
}

func (t *Telemetry) providers() map[string]flusher {
	out := map[string]flusher{}
	if t.tracerProvider != nil {
		out["traces"] = t.tracerProvider
	}
	if t.meterProvider != nil {
		out["metrics"] = t.meterProvider
	}
	if t.sdkLogs != nil {
		out["logs"] = t.sdkLogs
	}
	return out
}

func (t *Telemetry) each(op string, fn func(flusher) error) error {
	var errs []error
	for name, p := range t.providers() {
		if err := fn(p); err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", name, op, err))
		}
	}
	return errors.Join(errs...)
}

// Shutdown flushes and stops every provider. Without a deadline on ctx
// the configured shutdown timeout applies.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok && t.config != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.Shutdown.Timeout.Duration())
		defer cancel()
	}

	err := t.each("shutdown", func(p flusher) error { return p.Shutdown(ctx) })
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
	return err
}

// ForceFlush exports pending spans, metrics and log records now.
func (t *Telemetry) ForceFlush(ctx context.Context) error {
	if t == nil {
		return nil
	}
	return t.each("flush", func(p flusher) error { return p.ForceFlush(ctx) })
}

// HealthStatus reports telemetry state. Components lists the degraded
// ones, sorted.
type HealthStatus struct {
	Healthy    bool     `json:"healthy"`
	Degraded   bool     `json:"degraded"`
	Components []string `json:"components,omitempty"`
}

func (t *Telemetry) Health() HealthStatus {
	if t == nil {
		return HealthStatus{Degraded: true}
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	var components []string
	for name := range t.degraded {
		components = append(components, name)
	}
	sort.Strings(components)
	return HealthStatus{
		Healthy:    !t.stopped,
		Degraded:   len(components) > 0,
		Components: components,
	}
}

// IsEnabled reports whether telemetry is configured on and not shut down.
func (t *Telemetry) IsEnabled() bool {
	if t == nil || t.config == nil {
		return false
	}
	return t.config.Enabled && t.Health().Healthy
}

func (t *Telemetry) setDegraded(component string, err error) {
	t.mu.Lock()
	t.degraded[component] = err
	logger := t.logger
	t.mu.Unlock()
	logger.Warn("telemetry degraded", zap.String("component", component), zap.Error(err))
}
