package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Load reads the TOML file at path, applies defaults and expands
// environment variables and home directories.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// LoadOrDefault loads path when it is set. An empty path or a missing file
// at the default location yields Default(); an explicitly given path that
// does not exist is an error.
func LoadOrDefault(path string, explicit bool) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	cfg, err := Load(path)
	if err != nil && !explicit && errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Parse decodes a TOML document. Sections that are absent keep their
// defaults, so a file containing only [logging] still autostarts the
// scheduler and serves HTTP.
func Parse(data []byte) (*Config, error) {
	cfg := base()
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	expandEnvVars(&cfg)
	expandPaths(&cfg)

	return &cfg, nil
}

// Validate reports every problem found, not just the first.
func (c *Config) Validate() []error {
	var errs []error

	switch strings.ToLower(c.Storage.Driver) {
	case "file", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("invalid storage.driver: %s (expected: file, sqlite)", c.Storage.Driver))
	}
	if err := validatePath(c.Storage.Path, "storage.path"); err != nil {
		errs = append(errs, err)
	}

	if c.Scheduler.Tick.Std() < 0 {
		errs = append(errs, fmt.Errorf("scheduler.tick must be positive"))
	}

	if err := validatePath(c.Actions.AlertLog, "actions.alert_log"); err != nil {
		errs = append(errs, err)
	}

	if c.Server.Enabled && c.Server.Bind == "" {
		errs = append(errs, fmt.Errorf("server.bind is required when server is enabled"))
	}

	if c.Notify.Telegram.Enabled {
		if c.Notify.Telegram.Token == "" {
			errs = append(errs, fmt.Errorf("notify.telegram.token is required when telegram is enabled"))
		} else if err := validateTelegramToken(c.Notify.Telegram.Token); err != nil {
			errs = append(errs, err)
		}
		if c.Notify.Telegram.ChatID == 0 {
			errs = append(errs, fmt.Errorf("notify.telegram.chat_id is required when telegram is enabled"))
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("invalid logging.level: %s (expected: debug, info, warn, error)", c.Logging.Level))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Errorf("invalid logging.format: %s (expected: json, text)", c.Logging.Format))
	}

	return errs
}

func validateTelegramToken(token string) error {
	parts := strings.Split(token, ":")
	if len(parts) != 2 {
		return formatValidationError("notify.telegram.token", "invalid format (expected <bot_id>:<token>)", token)
	}

	for _, r := range parts[0] {
		if r < '0' || r > '9' {
			return formatValidationError("notify.telegram.token", "bot ID must contain digits only", token)
		}
	}
	if len(parts[0]) < 3 || len(parts[1]) < 10 {
		return formatValidationError("notify.telegram.token", "token is too short", token)
	}
	return nil
}

func validatePath(path, fieldName string) error {
	if path == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	if strings.Contains(path, "..") {
		return fmt.Errorf("%s contains path traversal sequence", fieldName)
	}
	return nil
}

func expandEnvVars(c *Config) {
	c.Storage.Path = expandEnv(c.Storage.Path)
	c.Actions.AlertLog = expandEnv(c.Actions.AlertLog)
	c.Server.Bind = expandEnv(c.Server.Bind)
	c.Notify.Telegram.Token = expandEnv(c.Notify.Telegram.Token)
	c.Logging.Output = expandEnv(c.Logging.Output)
}

func expandPaths(c *Config) {
	c.Storage.Path = expandHome(c.Storage.Path)
	c.Actions.AlertLog = expandHome(c.Actions.AlertLog)
	c.Logging.Output = expandHome(c.Logging.Output)
}

// expandEnv resolves a value of the form ${VAR} or ${VAR:default}. Other
// values are returned unchanged.
func expandEnv(s string) string {
	if !strings.HasPrefix(s, "${") || !strings.HasSuffix(s, "}") {
		return s
	}

	content := s[2 : len(s)-1]
	if key, def, ok := strings.Cut(content, ":"); ok {
		if val := os.Getenv(key); val != "" {
			return val
		}
		return def
	}
	return os.Getenv(content)
}

// expandHome replaces a leading ~/ with the home directory.
func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
