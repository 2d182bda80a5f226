// Package config loads taskrunner's TOML configuration.
//
// Configuration structure:
//   - [storage]: task document backend and location
//   - [scheduler]: loop tick, autostart, schedule strictness
//   - [actions]: alert log location
//   - [server]: HTTP bind address and timeouts
//   - [metrics]: Prometheus exposition
//   - [notify.telegram]: alert forwarding
//   - [logging]: level, format and output
//
// String values may reference environment variables with ${VAR} or
// ${VAR:default}. Paths starting with ~/ are expanded to the home directory.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration document.
type Config struct {
	Storage   StorageConfig   `toml:"storage"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Actions   ActionsConfig   `toml:"actions"`
	Server    ServerConfig    `toml:"server"`
	Metrics   MetricsConfig   `toml:"metrics"`
	Notify    NotifyConfig    `toml:"notify"`
	Logging   LoggingConfig   `toml:"logging"`
}

// StorageConfig selects the task store.
type StorageConfig struct {
	Driver string `toml:"driver"` // file, sqlite
	Path   string `toml:"path"`
}

type SchedulerConfig struct {
	Tick            Duration `toml:"tick"`
	Autostart       bool     `toml:"autostart"`
	StrictSchedules bool     `toml:"strict_schedules"`
}

type ActionsConfig struct {
	AlertLog string `toml:"alert_log"`
}

// ServerConfig configures the HTTP API and dashboard.
type ServerConfig struct {
	Enabled         bool     `toml:"enabled"`
	Bind            string   `toml:"bind"`
	ReadTimeout     Duration `toml:"read_timeout"`
	WriteTimeout    Duration `toml:"write_timeout"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
}

type MetricsConfig struct {
	Enabled   bool   `toml:"enabled"`
	Namespace string `toml:"namespace"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

// TelegramConfig configures alert forwarding to a Telegram chat.
type TelegramConfig struct {
	Enabled bool   `toml:"enabled"`
	Token   string `toml:"token"`
	ChatID  int64  `toml:"chat_id"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Output string `toml:"output"`
}

// Duration is a time.Duration written as a Go duration string ("1s", "5m").
type Duration time.Duration

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(v)
	return nil
}

// MarshalText writes the duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}
