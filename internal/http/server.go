// Package http serves the Slack Events API endpoint, health and metrics.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/fyrsmithlabs/decisiond/internal/logging"
	"github.com/fyrsmithlabs/decisiond/internal/slack"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// MentionHandler processes one app_mention to completion.
type MentionHandler interface {
	HandleMention(ctx context.Context, m slack.MentionEvent)
}

// Server provides the HTTP endpoints for decisiond.
type Server struct {
	echo     *echo.Echo
	verifier *slack.Verifier
	handler  MentionHandler
	logger   *logging.Logger
	config   *Config
	metrics  *ingressMetrics

	inflight sync.WaitGroup
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// BodyLimit uses echo's size syntax, e.g. "1M".
	BodyLimit string
	// RateLimit and RateBurst bound event requests per client IP.
	RateLimit float64
	RateBurst int
	// EventTimeout bounds the asynchronous processing of one mention.
	EventTimeout time.Duration
	// Meter defaults to the global meter provider.
	Meter metric.Meter
}

func (c *Config) withDefaults() *Config {
	out := Config{Host: "0.0.0.0", Port: 3000, BodyLimit: "1M", RateLimit: 5, RateBurst: 20, EventTimeout: 2 * time.Minute}
	if c == nil {
		return &out
	}
	if c.Host != "" {
		out.Host = c.Host
	}
	if c.Port != 0 {
		out.Port = c.Port
	}
	if c.BodyLimit != "" {
		out.BodyLimit = c.BodyLimit
	}
	if c.RateLimit > 0 {
		out.RateLimit = c.RateLimit
	}
	if c.RateBurst > 0 {
		out.RateBurst = c.RateBurst
	}
	if c.EventTimeout > 0 {
		out.EventTimeout = c.EventTimeout
	}
	out.Meter = c.Meter
	return &out
}

// NewServer creates a new HTTP server.
func NewServer(verifier *slack.Verifier, handler MentionHandler, logger *logging.Logger, cfg *Config) (*Server, error) {
	if verifier == nil {
		return nil, fmt.Errorf("verifier cannot be nil")
	}
	if handler == nil {
		return nil, fmt.Errorf("mention handler cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	cfg = cfg.withDefaults()
	meter := cfg.Meter
	if meter == nil {
		meter = otel.Meter(meterName)
	}
	metrics, err := newIngressMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("creating http metrics: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:     e,
		verifier: verifier,
		handler:  handler,
		logger:   logger.Named("http"),
		config:   cfg,
		metrics:  metrics,
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.requestLogger)
	e.Use(s.metrics.middleware)

	s.registerRoutes()
	return s, nil
}

// requestLogger logs every request and carries the request id into the
// request context.
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		req := c.Request()
		reqID := c.Response().Header().Get(echo.HeaderXRequestID)
		ctx := logging.WithRequestID(req.Context(), reqID)
		c.SetRequest(req.WithContext(ctx))

		err := next(c)
		if err != nil {
			c.Error(err)
		}

		s.logger.Info(ctx, "http request",
			zap.String("method", req.Method),
			zap.String("uri", req.RequestURI),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", time.Since(start)),
		)
		return nil
	}
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	limiter := middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(s.config.RateLimit),
			Burst:     s.config.RateBurst,
			ExpiresIn: time.Hour,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, id string, err error) error {
			s.logger.Warn(c.Request().Context(), "rate limit exceeded", zap.String("ip", id))
			return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
		},
	})
	s.echo.POST("/slack/events", s.handleSlackEvent, middleware.BodyLimit(s.config.BodyLimit), limiter)
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight mentions
// until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	err := s.echo.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn(ctx, "abandoning in-flight mentions")
		err = errors.Join(err, ctx.Err())
	}
	return err
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}
