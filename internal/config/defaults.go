package config

import "time"

const (
	DefaultStoragePath  = "~/.taskrunner/tasks.json"
	DefaultAlertLogPath = "~/.taskrunner/alerts.log"
	DefaultBind         = "127.0.0.1:8080"
	DefaultNamespace    = "taskrunner"
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := base()
	applyDefaults(&cfg)
	expandPaths(&cfg)
	return &cfg
}

// base holds the boolean defaults, which cannot be told apart from an
// explicit false after decoding.
func base() Config {
	return Config{
		Scheduler: SchedulerConfig{Autostart: true},
		Server:    ServerConfig{Enabled: true},
		Metrics:   MetricsConfig{Enabled: true},
	}
}

// applyDefaults fills zero values.
func applyDefaults(c *Config) {
	if c.Storage.Driver == "" {
		c.Storage.Driver = "file"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = DefaultStoragePath
	}

	if c.Scheduler.Tick == 0 {
		c.Scheduler.Tick = Duration(time.Second)
	}

	if c.Actions.AlertLog == "" {
		c.Actions.AlertLog = DefaultAlertLogPath
	}

	if c.Server.Bind == "" {
		c.Server.Bind = DefaultBind
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = Duration(10 * time.Second)
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = Duration(30 * time.Second)
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = Duration(5 * time.Second)
	}

	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultNamespace
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
}
