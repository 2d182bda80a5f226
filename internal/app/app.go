// Package app wires the configuration, store, task bodies, metrics,
// manager and HTTP server together and owns their lifecycle.
package app

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aatumaykin/taskrunner/internal/config"
	"github.com/aatumaykin/taskrunner/internal/httpapi"
	"github.com/aatumaykin/taskrunner/internal/logger"
	"github.com/aatumaykin/taskrunner/internal/manager"
	"github.com/aatumaykin/taskrunner/internal/store"
)

// App holds every long-lived component.
type App struct {
	config *config.Config
	logger *logger.Logger

	store    store.Store
	registry *prometheus.Registry
	manager  *manager.Manager
	server   *httpapi.Server

	mu      sync.Mutex
	started bool
}

// New creates an App. Components are built by Initialize.
func New(cfg *config.Config, log *logger.Logger) *App {
	return &App{
		config: cfg,
		logger: log,
	}
}

// Run initializes, starts the scheduler (when autostart is set) and the
// HTTP server, blocks until ctx is cancelled and then shuts down.
func (a *App) Run(ctx context.Context) error {
	if err := a.Initialize(ctx); err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		_ = a.Shutdown()
		return err
	}

	a.logger.Info("application is running")

	<-ctx.Done()

	return a.Shutdown()
}

// Start launches the scheduler and the HTTP server.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.config.Scheduler.Autostart {
		a.manager.Start(ctx)
	}

	if a.server != nil {
		if err := a.server.Start(ctx); err != nil {
			return err
		}
	}

	a.started = true
	return nil
}

// Manager returns the task manager once Initialize has run.
func (a *App) Manager() *manager.Manager {
	return a.manager
}

// Server returns the HTTP server, or nil when it is disabled.
func (a *App) Server() *httpapi.Server {
	return a.server
}
