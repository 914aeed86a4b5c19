// Package http provides the boxd HTTP API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/boxd/internal/application"
	"github.com/fyrsmithlabs/boxd/internal/bridge"
	"github.com/fyrsmithlabs/boxd/internal/dom"
	"github.com/fyrsmithlabs/boxd/internal/logging"
	"github.com/fyrsmithlabs/boxd/internal/nav"
	"github.com/fyrsmithlabs/boxd/internal/sanitize"
)

// Coordinator is the part of the application the API drives.
type Coordinator interface {
	Do(ctx context.Context, fn func() error) error
	Modules() []string
	Instances() []application.InstanceInfo
	Element(id string) *dom.Element
	GetModuleConfig(el *dom.Element, key bridge.Key) (bridge.Result, error)
	GetGlobalConfig(key bridge.Key) bridge.Result
	Broadcast(name string, data any)
	Navigate(target *url.URL, state, params map[string]any) error
}

// Server provides HTTP endpoints for boxd.
type Server struct {
	echo    *echo.Echo
	app     Coordinator
	logger  *zap.Logger
	config  *Config
	metrics *requestMetrics
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// RateLimit caps POST requests per second per client. Zero disables it.
	RateLimit float64
	Burst     int
	// Gatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
	// MeterProvider receives request instruments. Defaults to the global
	// OpenTelemetry provider.
	MeterProvider metric.MeterProvider
	// TracerProvider receives request spans. Defaults to the global
	// OpenTelemetry provider.
	TracerProvider trace.TracerProvider
}

// NewServer creates a new HTTP server.
func NewServer(app Coordinator, logger *zap.Logger, cfg *Config) (*Server, error) {
	if app == nil {
		return nil, fmt.Errorf("application cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 9191,
		}
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		app:     app,
		logger:  logger,
		config:  cfg,
		metrics: newRequestMetrics(cfg.MeterProvider, logger),
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.metrics.middleware)
	e.Use(tracing(cfg.TracerProvider))
	e.Use(s.requestLogger)

	s.registerRoutes()
	return s, nil
}

// requestLogger logs each request and carries its id into the request
// context for downstream logging. Handler errors are written here so the
// logged status is the one sent.
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		requestID := c.Response().Header().Get(echo.HeaderXRequestID)
		if requestID != "" {
			req := c.Request()
			c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), requestID)))
		}

		if err := next(c); err != nil {
			c.Error(err)
		}

		s.logger.Info("http request",
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", requestID),
		)
		return nil
	}
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{})))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/modules", s.handleModules)
	v1.GET("/modules/:id/config", s.handleModuleConfig)
	v1.GET("/config", s.handleGlobalConfig)

	limited := []echo.MiddlewareFunc{}
	if s.config.RateLimit > 0 {
		limited = append(limited, middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(s.config.RateLimit),
				Burst:     s.config.Burst,
				ExpiresIn: 3 * time.Minute,
			},
		)))
	}
	v1.POST("/broadcast", s.handleBroadcast, limited...)
	v1.POST("/navigate", s.handleNavigate, limited...)
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Modules: len(s.app.Instances()),
	})
}

func (s *Server) handleModules(c echo.Context) error {
	return c.JSON(http.StatusOK, ModulesResponse{
		Types:     s.app.Modules(),
		Instances: s.app.Instances(),
	})
}

// keyParam maps the optional "name" query parameter onto a config key.
func keyParam(c echo.Context) bridge.Key {
	if name := c.QueryParam("name"); name != "" {
		return bridge.Named(name)
	}
	return bridge.Whole
}

func (s *Server) handleModuleConfig(c echo.Context) error {
	id := c.Param("id")
	el := s.app.Element(id)
	if el == nil {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("no element with id %q", id))
	}

	res, err := s.app.GetModuleConfig(el, keyParam(c))
	if err != nil {
		s.logger.Warn("module config unreadable", zap.String("id", id), zap.Error(err))
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusOK, newConfigResponse(res))
}

func (s *Server) handleGlobalConfig(c echo.Context) error {
	return c.JSON(http.StatusOK, newConfigResponse(s.app.GetGlobalConfig(keyParam(c))))
}

func (s *Server) handleBroadcast(c echo.Context) error {
	var req BroadcastRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid broadcast request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := sanitize.ValidateName(req.Name); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid name: %v", err))
	}

	err := s.app.Do(c.Request().Context(), func() error {
		s.app.Broadcast(req.Name, req.Data)
		return nil
	})
	if err != nil {
		return s.loopError(err)
	}
	return c.JSON(http.StatusAccepted, StatusResponse{Status: "broadcast"})
}

func (s *Server) handleNavigate(c echo.Context) error {
	var req NavigateRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid navigate request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	var target *url.URL
	if req.URL != "" {
		u, err := url.Parse(req.URL)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid url")
		}
		target = u
	}

	err := s.app.Do(c.Request().Context(), func() error {
		return s.app.Navigate(target, req.State, req.Params)
	})
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, StatusResponse{Status: "navigated"})
	case errors.Is(err, nav.ErrNavigationBlocked):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	default:
		return s.loopError(err)
	}
}

func (s *Server) loopError(err error) error {
	if errors.Is(err, application.ErrStopped) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "application is shutting down")
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "request abandoned")
	}
	s.logger.Error("application call failed", zap.Error(err))
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}

// Echo exposes the router for tests and extra routes.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
