// Package http serves the questboard JSON API over echo.
package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/questboard/internal/services"
)

// Server provides HTTP endpoints for questboard.
type Server struct {
	echo     *echo.Echo
	services services.Registry
	logger   *zap.Logger
	config   *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer builds the API over reg. A nil cfg listens on 127.0.0.1:8420.
func NewServer(reg services.Registry, logger *zap.Logger, cfg *Config) (*Server, error) {
	switch {
	case reg == nil:
		return nil, errors.New("http: service registry is required")
	case logger == nil:
		return nil, errors.New("http: logger is required")
	}
	if cfg == nil {
		cfg = &Config{Host: "127.0.0.1", Port: 8420}
	}

	metrics, err := newRequestMetrics(otel.Meter(meterName))
	if err != nil {
		logger.Warn("request metrics disabled", zap.Error(err))
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newRequestValidator()
	e.HTTPErrorHandler = errorHandler(logger)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(metrics.middleware())
	e.Use(requestContext())
	e.Use(requestLogger(logger))

	s := &Server{echo: e, services: reg, logger: logger, config: cfg}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")

	v1.POST("/users", s.handleCreateUser)
	v1.GET("/users/:id", s.handleGetUser)
	v1.GET("/users/:id/progress", s.handleUserProgress)
	v1.GET("/users/:id/activity", s.handleUserActivity)
	v1.GET("/users/:id/xp", s.handleUserXP)
	v1.GET("/leaderboard", s.handleLeaderboard)
	v1.GET("/levels", s.handleLevels)

	v1.POST("/projects", s.handleCreateProject, requireCaller)
	v1.GET("/projects", s.handleListProjects)
	v1.GET("/projects/:id", s.handleGetProject)
	v1.GET("/projects/:id/roster", s.handleRoster)
	v1.GET("/projects/:id/activity", s.handleProjectActivity)
	v1.POST("/projects/:id/join", s.handleJoin, requireCaller)
	v1.POST("/projects/:id/start", s.handleStart, requireCaller)
	v1.POST("/projects/:id/cancel", s.handleCancel, requireCaller)
	v1.POST("/projects/:id/complete", s.handleComplete, requireCaller)
	v1.POST("/projects/:id/channel", s.handleProvisionChannel, requireCaller)

	v1.POST("/xp/award", s.handleAward, requireCaller)

	notifications := v1.Group("/notifications", requireCaller)
	notifications.GET("", s.handleInbox)
	notifications.GET("/unread_count", s.handleUnreadCount)
	notifications.POST("/read_all", s.handleMarkAllRead)
	notifications.POST("/:id/read", s.handleSetRead(true))
	notifications.POST("/:id/unread", s.handleSetRead(false))
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

// handleHealth reports whether the database answers.
func (s *Server) handleHealth(c echo.Context) error {
	st := s.services.Store()
	if st == nil {
		return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Store: "unconfigured"})
	}
	if err := st.Ping(c.Request().Context()); err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "degraded", Store: "unavailable"})
	}
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Store: "ok"})
}

// ServeHTTP lets the server be mounted or driven by httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens until Shutdown, then returns http.ErrServerClosed.
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	s.logger.Info("api listening", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("api shutting down")
	return s.echo.Shutdown(ctx)
}
