// Package health serves liveness, readiness, and metrics endpoints.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/kyle-gehring/sqlsentinel/internal/logger"
	"github.com/kyle-gehring/sqlsentinel/internal/metrics"
)

// jobCounter reports how many alerts the scheduler currently runs.
type jobCounter interface {
	JobCount() int
}

// Server exposes /healthz, /readyz, and /metrics over Echo.
type Server struct {
	echo      *echo.Echo
	addr      string
	db        *gorm.DB
	scheduler jobCounter
	log       logger.Logger
	started   time.Time
}

// NewServer builds the HTTP server. collector may be nil to disable the
// metrics endpoint.
func NewServer(addr string, db *gorm.DB, sched jobCounter, collector *metrics.Collector, log logger.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:      e,
		addr:      addr,
		db:        db,
		scheduler: sched,
		log:       log.With(logger.String("component", "health")),
		started:   time.Now(),
	}

	e.GET("/healthz", s.handleLiveness)
	e.GET("/readyz", s.handleReadiness)
	if collector != nil {
		e.GET("/metrics", echo.WrapHandler(collector.Handler()))
	}
	return s
}

// Start serves until Shutdown. It blocks, so run it on its own goroutine.
func (s *Server) Start() error {
	s.log.Info("health server listening", logger.String("addr", s.addr))
	if err := s.echo.Start(s.addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleLiveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	})
}

func (s *Server) handleReadiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	body := map[string]any{"status": "ok"}
	code := http.StatusOK

	started := time.Now()
	if err := s.checkDatabase(ctx); err != nil {
		body["status"] = "degraded"
		body["database"] = err.Error()
		code = http.StatusServiceUnavailable
	} else {
		body["database_latency_ms"] = time.Since(started).Milliseconds()
	}

	if s.scheduler != nil {
		body["scheduled_jobs"] = s.scheduler.JobCount()
	}
	return c.JSON(code, body)
}

func (s *Server) checkDatabase(ctx context.Context) error {
	var one int
	return s.db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error
}
