// Package http serves the audience selection API over echo.
package http

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/audienced/internal/config"
	"github.com/fyrsmithlabs/audienced/internal/logging"
	"github.com/fyrsmithlabs/audienced/internal/selectionsvc"
	"github.com/fyrsmithlabs/audienced/internal/telemetry"
)

const maxBodySize = "1M"

// Server provides the HTTP endpoints.
type Server struct {
	echo     *echo.Echo
	svc      *selectionsvc.Service
	logger   *logging.Logger
	config   *Config
	gatherer prometheus.Gatherer
	meter    metric.Meter
	health   func() telemetry.HealthStatus
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// RateLimit is requests per second per client IP. Zero disables it.
	RateLimit float64
	RateBurst int
	// APIToken, when set, is required as a bearer token on routes that
	// change stored selections.
	APIToken string
	Version  string
}

// ConfigFrom converts the loaded server section.
func ConfigFrom(cfg config.ServerConfig, version string) *Config {
	return &Config{
		Host:      cfg.Host,
		Port:      cfg.Port,
		RateLimit: cfg.RateLimit,
		RateBurst: cfg.RateBurst,
		APIToken:  cfg.APIToken.Value(),
		Version:   version,
	}
}

// Addr returns host:port.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Option configures a Server.
type Option func(*Server)

// WithGatherer serves gatherer on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithMeter records request metrics on meter.
func WithMeter(m metric.Meter) Option {
	return func(s *Server) { s.meter = m }
}

// WithHealth reports telemetry health on /api/v1/status.
func WithHealth(fn func() telemetry.HealthStatus) Option {
	return func(s *Server) { s.health = fn }
}

// NewServer creates the server and registers its routes.
func NewServer(svc *selectionsvc.Service, logger *logging.Logger, cfg *Config, opts ...Option) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("selection service cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "127.0.0.1", Port: 8480}
	}

	s := &Server{
		svc:    svc,
		logger: logger.Named("http"),
		config: cfg,
	}
	for _, opt := range opts {
		opt(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newRequestValidator()
	s.echo = e

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		RequestIDHandler: func(c echo.Context, id string) {
			ctx := logging.WithRequestID(c.Request().Context(), id)
			c.SetRequest(c.Request().WithContext(ctx))
		},
	}))
	e.Use(s.requestLogger)
	if s.meter != nil {
		e.Use(NewHTTPMetrics(s.meter, s.logger).MetricsMiddleware())
	}
	e.Use(middleware.BodyLimit(maxBodySize))
	if cfg.RateLimit > 0 {
		e.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
			Store: newClientLimiters(cfg.RateLimit, cfg.RateBurst),
			IdentifierExtractor: func(c echo.Context) (string, error) {
				return c.RealIP(), nil
			},
		}))
	}

	s.registerRoutes()
	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	if s.gatherer != nil {
		s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	v1 := s.echo.Group("/api/v1")
	v1.GET("/status", s.handleStatus)
	v1.GET("/taxonomy", s.handleTaxonomy)

	v1.POST("/selection/toggle", s.handleToggle)
	v1.POST("/selection/clear", s.handleClear)
	v1.POST("/selection/labels", s.handleLabels)
	v1.POST("/view/focus", s.handleFocus)
	v1.POST("/view/rows", s.handleRows)

	v1.GET("/selections", s.handleListSelections)
	v1.GET("/selections/:kind/:id", s.handleGetSelection)
	v1.PUT("/selections/:kind/:id", s.handlePutSelection, s.requireToken)
	v1.DELETE("/selections/:kind/:id", s.handleDeleteSelection, s.requireToken)
}

// Echo returns the underlying echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		s.logger.Info(c.Request().Context(), "http request",
			zap.String("method", c.Request().Method),
			zap.String("route", c.Path()),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", time.Since(start)),
		)
		return err
	}
}

// requireToken enforces the bearer token when one is configured.
func (s *Server) requireToken(next echo.HandlerFunc) echo.HandlerFunc {
	if s.config.APIToken == "" {
		return next
	}
	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		Validator: func(key string, c echo.Context) (bool, error) {
			return subtle.ConstantTimeCompare([]byte(key), []byte(s.config.APIToken)) == 1, nil
		},
	})(next)
}

// Start listens on the configured address. It returns nil after Shutdown.
func (s *Server) Start() error {
	addr := s.config.Addr()
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
