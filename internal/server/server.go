// Package server exposes the mapping pipeline and batch orchestrator over
// HTTP.
package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/common/config"
	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/common/logger"
	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/common/observability"
)

// Server wraps the echo instance with its lifecycle.
type Server struct {
	echo   *echo.Echo
	cfg    *config.Config
	logger logger.Logger
}

// New assembles the router, middleware and routes.
func New(handler *Handler, cfg *config.Config, log logger.Logger, obs *observability.Observability) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger(log, obs))

	api := e.Group("/api/v1")
	api.POST("/map", handler.MapTerm)
	api.POST("/batch", handler.SubmitBatch)
	api.GET("/batch/status/:job_id", handler.BatchStatus)
	api.GET("/batch/result/:job_id", handler.BatchResult)
	api.DELETE("/batch/:job_id", handler.CancelBatch)

	e.GET("/healthz", handler.Healthz)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return &Server{echo: e, cfg: cfg, logger: log}
}

// Handler exposes the assembled router, mainly for tests that mount the
// full middleware chain on an httptest server.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start blocks serving HTTP until Shutdown or a listener failure.
func (s *Server) Start() error {
	addr := s.cfg.Server.Address()
	s.logger.Info("http server starting", map[string]interface{}{
		"address": addr,
	})
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// requestLogger emits one structured line per request and feeds the otel
// request metrics.
func requestLogger(log logger.Logger, obs *observability.Observability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			route := c.Path()
			elapsed := time.Since(start)

			if obs != nil {
				obs.RecordRequest(c.Request().Context(), route, strconv.Itoa(status))
				obs.RecordRequestDuration(c.Request().Context(), elapsed, route)
			}

			log.Info("http request", map[string]interface{}{
				"method":    c.Request().Method,
				"route":     route,
				"status":    status,
				"duration":  elapsed.String(),
				"requestId": c.Response().Header().Get(echo.HeaderXRequestID),
			})
			return nil
		}
	}
}
