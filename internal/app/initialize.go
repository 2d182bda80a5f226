package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aatumaykin/taskrunner/internal/actions"
	"github.com/aatumaykin/taskrunner/internal/config"
	"github.com/aatumaykin/taskrunner/internal/httpapi"
	"github.com/aatumaykin/taskrunner/internal/logger"
	"github.com/aatumaykin/taskrunner/internal/manager"
	"github.com/aatumaykin/taskrunner/internal/metrics"
	"github.com/aatumaykin/taskrunner/internal/notify"
	"github.com/aatumaykin/taskrunner/internal/store"
)

// Initialize builds all components from the configuration.
func (a *App) Initialize(_ context.Context) error {
	var m *metrics.Metrics
	if a.config.Metrics.Enabled {
		a.registry = prometheus.NewRegistry()
		a.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m = metrics.New(a.config.Metrics.Namespace, a.registry)
	}

	mgr, st, err := BuildManager(a.config, m, a.logger)
	if err != nil {
		return err
	}
	a.manager = mgr
	a.store = st

	if a.config.Server.Enabled {
		srvCfg := httpapi.Config{
			Bind:            a.config.Server.Bind,
			ReadTimeout:     a.config.Server.ReadTimeout.Std(),
			WriteTimeout:    a.config.Server.WriteTimeout.Std(),
			ShutdownTimeout: a.config.Server.ShutdownTimeout.Std(),
		}
		if a.registry != nil {
			srvCfg.MetricsHandler = promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})
		}
		a.server = httpapi.New(mgr, srvCfg, a.logger)
	}

	a.logger.Info("components initialized",
		logger.Field{Key: "storage", Value: a.config.Storage.Path},
		logger.Field{Key: "driver", Value: a.config.Storage.Driver},
		logger.Field{Key: "http", Value: a.config.Server.Enabled},
		logger.Field{Key: "metrics", Value: a.config.Metrics.Enabled})
	return nil
}

// BuildManager opens the store and builds a manager with a stopped
// scheduler. The caller closes the returned store.
func BuildManager(cfg *config.Config, m *metrics.Metrics, log *logger.Logger) (*manager.Manager, store.Store, error) {
	st, err := store.Open(store.Config{Driver: cfg.Storage.Driver, Path: cfg.Storage.Path}, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open task store: %w", err)
	}

	var notifier actions.Notifier
	if cfg.Notify.Telegram.Enabled {
		tg, err := notify.NewTelegram(cfg.Notify.Telegram.Token, cfg.Notify.Telegram.ChatID, log)
		if err != nil {
			_ = st.Close()
			return nil, nil, fmt.Errorf("failed to initialize telegram notifier: %w", err)
		}
		notifier = tg
	}

	registry := actions.NewDefaultRegistry(actions.NewAlertLog(cfg.Actions.AlertLog, notifier, log), log)

	mgr := manager.New(st, registry, manager.Config{
		StrictSchedules: cfg.Scheduler.StrictSchedules,
		Tick:            cfg.Scheduler.Tick.Std(),
	}, m, log)

	return mgr, st, nil
}
