package http

import (
	"errors"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

const httpInstrumentationName = "github.com/fyrsmithlabs/boxd/internal/http"

// unmatchedRoute labels requests that matched no route.
const unmatchedRoute = "unmatched"

var durationBuckets = []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// requestMetrics records the module API's request count, latency,
// response size and in-flight requests through OpenTelemetry.
type requestMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
	size     metric.Int64Histogram
	inFlight metric.Int64UpDownCounter
}

// newRequestMetrics creates the instruments on mp, or on the global
// provider when mp is nil. Instruments that fail to register are replaced
// by no-ops and the failure is logged.
func newRequestMetrics(mp metric.MeterProvider, logger *zap.Logger) *requestMetrics {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(httpInstrumentationName)
	nop := noop.Meter{}

	var errs []error
	m := &requestMetrics{}

	if c, err := meter.Int64Counter("boxd.http.server.requests",
		metric.WithDescription("Module API requests by method, route and status"),
		metric.WithUnit("{request}")); err != nil {
		errs = append(errs, err)
		m.requests, _ = nop.Int64Counter("")
	} else {
		m.requests = c
	}

	if h, err := meter.Float64Histogram("boxd.http.server.duration",
		metric.WithDescription("Module API request latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...)); err != nil {
		errs = append(errs, err)
		m.duration, _ = nop.Float64Histogram("")
	} else {
		m.duration = h
	}

	if h, err := meter.Int64Histogram("boxd.http.server.response_size",
		metric.WithDescription("Module API response body size"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(64, 256, 1024, 4096, 16384, 65536)); err != nil {
		errs = append(errs, err)
		m.size, _ = nop.Int64Histogram("")
	} else {
		m.size = h
	}

	if u, err := meter.Int64UpDownCounter("boxd.http.server.in_flight",
		metric.WithDescription("Module API requests being served"),
		metric.WithUnit("{request}")); err != nil {
		errs = append(errs, err)
		m.inFlight, _ = nop.Int64UpDownCounter("")
	} else {
		m.inFlight = u
	}

	if err := errors.Join(errs...); err != nil && logger != nil {
		logger.Warn("some http instruments are disabled", zap.Error(err))
	}
	return m
}

// middleware records one data point per request, labelled with echo's
// route template so module ids never become label values. It runs outside
// requestLogger, which has already written any error response.
func (m *requestMetrics) middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		start := time.Now()
		m.inFlight.Add(ctx, 1)
		defer m.inFlight.Add(ctx, -1)

		err := next(c)

		attrs := metric.WithAttributes(
			attribute.String("http.request.method", c.Request().Method),
			attribute.String("http.route", routeLabel(c.Path())),
			attribute.Int("http.response.status_code", c.Response().Status),
		)
		m.requests.Add(ctx, 1, attrs)
		m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
		m.size.Record(ctx, c.Response().Size, attrs)
		return err
	}
}

func routeLabel(path string) string {
	if path == "" {
		return unmatchedRoute
	}
	return path
}
