// Package httpapi serves the task API, the HTML dashboard and the metrics
// endpoint. Handlers translate requests into manager calls and nothing
// more.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/aatumaykin/taskrunner/internal/logger"
	"github.com/aatumaykin/taskrunner/internal/manager"
	"github.com/aatumaykin/taskrunner/internal/scheduler"
	"github.com/aatumaykin/taskrunner/internal/task"
)

// TaskService is the part of the manager the handlers use.
type TaskService interface {
	Add(ctx context.Context, req manager.AddRequest) error
	Remove(name string) (bool, error)
	Toggle(name string) (bool, error)
	Execute(ctx context.Context, name string) (bool, error)
	List() map[string]task.Task
	Get(name string) (task.Task, bool)
	Start(ctx context.Context)
	Stop()
	Running() bool
	Schedules() []scheduler.Entry
}

// Config configures the HTTP server.
type Config struct {
	Bind            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// MetricsHandler is mounted at /metrics when set.
	MetricsHandler http.Handler
}

// Server is the HTTP front end.
type Server struct {
	tasks  TaskService
	config Config
	logger *logger.Logger

	mu      sync.Mutex
	baseCtx context.Context
	server  *http.Server
	addr    net.Addr
}

// New creates a server. Nothing listens until Start.
func New(tasks TaskService, cfg Config, log *logger.Logger) *Server {
	return &Server{
		tasks:   tasks,
		config:  cfg,
		logger:  log.With(logger.Field{Key: "component", Value: "http"}),
		baseCtx: context.Background(),
	}
}

// Start listens on the configured address and serves in the background.
// ctx is the lifetime used when a request starts the scheduler.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.baseCtx = ctx
	s.server = &http.Server{
		Addr:         s.config.Bind,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.config.Bind)
	if err != nil {
		return errors.New("http: listen failed: " + err.Error())
	}
	s.addr = ln.Addr()

	srv := s.server
	go func() {
		s.logger.Info("http server listening", logger.Field{Key: "addr", Value: ln.Addr().String()})
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http serve error", err)
		}
	}()

	return nil
}

// Addr returns the bound address once Start succeeded.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Stop shuts the server down gracefully within the configured timeout.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s.logger.Info("http server shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) lifetime() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseCtx
}
