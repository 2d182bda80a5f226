package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aatumaykin/taskrunner/internal/logger"
)

// Shutdown stops the HTTP server and the scheduler, waits for a running
// task body up to the shutdown timeout and closes the store.
func (a *App) Shutdown() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error

	if a.started && a.server != nil {
		if err := a.server.Stop(context.Background()); err != nil {
			errs = append(errs, fmt.Errorf("stop http server: %w", err))
		}
	}

	if a.manager != nil {
		a.manager.Stop()

		timeout := a.config.Server.ShutdownTimeout.Std()
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		if err := a.manager.Wait(ctx); err != nil {
			a.logger.Warn("running task did not finish before shutdown",
				logger.Field{Key: "timeout", Value: timeout.String()})
		}
		cancel()
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
		a.store = nil
	}

	a.started = false
	a.logger.Info("application stopped")
	return errors.Join(errs...)
}
