// Package statusserver exposes a running pacefire over HTTP: a liveness probe,
// a JSON snapshot of every endpoint and Prometheus metrics.
package statusserver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/torosent/pacefire/internal/metrics"
)

// Scheduler is the live scheduler state reported by /status.
type Scheduler interface {
	metrics.SchedulerState
	Interval() time.Duration
}

// Info describes the run being served.
type Info struct {
	RunID     string
	Requests  int
	Period    time.Duration
	Retention time.Duration
	StartedAt time.Time
}

// Status is the /status response body.
type Status struct {
	RunID     string                     `json:"run_id"`
	Requests  int                        `json:"requests"`
	Period    string                     `json:"period"`
	Interval  string                     `json:"interval"`
	Window    string                     `json:"window"`
	Uptime    string                     `json:"uptime"`
	Ticks     int64                      `json:"ticks"`
	InFlight  int64                      `json:"in_flight"`
	Endpoints []metrics.EndpointSnapshot `json:"endpoints"`
}

// Server serves the status routes.
type Server struct {
	router    *chi.Mux
	server    *http.Server
	listener  net.Listener
	addr      string
	info      Info
	board     *metrics.Board
	scheduler Scheduler
	logger    *zap.Logger
	now       func() time.Time
}

// New creates a status server for addr. logger may be nil.
func New(addr string, info Info, board *metrics.Board, scheduler Scheduler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if info.StartedAt.IsZero() {
		info.StartedAt = time.Now()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	s := &Server{
		router:    r,
		addr:      addr,
		info:      info,
		board:     board,
		scheduler: scheduler,
		logger:    logger,
		now:       time.Now,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	reg := metrics.NewRegistry(metrics.NewExporter(s.board, s.scheduler))

	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/status", s.handleStatus)
	s.router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
}

// Start binds the listener and serves in the background. Bind errors are
// returned synchronously.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("status server listening", zap.String("addr", ln.Addr().String()))
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound address once started, otherwise the configured one.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Debug("shutting down status server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	status := Status{
		RunID:     s.info.RunID,
		Requests:  s.info.Requests,
		Period:    s.info.Period.String(),
		Window:    s.info.Retention.String(),
		Uptime:    s.now().Sub(s.info.StartedAt).Round(time.Millisecond).String(),
		Endpoints: s.board.Snapshot(),
	}
	if s.scheduler != nil {
		status.Interval = s.scheduler.Interval().String()
		status.Ticks = s.scheduler.Ticks()
		status.InFlight = s.scheduler.InFlight()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.logger.Warn("encode status", zap.Error(err))
	}
}
