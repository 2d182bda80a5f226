package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "file", cfg.Storage.Driver)
	assert.True(t, filepath.IsAbs(cfg.Storage.Path) || cfg.Storage.Path == DefaultStoragePath)
	assert.Equal(t, time.Second, cfg.Scheduler.Tick.Std())
	assert.True(t, cfg.Scheduler.Autostart)
	assert.False(t, cfg.Scheduler.StrictSchedules)
	assert.True(t, cfg.Server.Enabled)
	assert.Equal(t, DefaultBind, cfg.Server.Bind)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout.Std())
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "taskrunner", cfg.Metrics.Namespace)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.Validate())
}

func TestParse(t *testing.T) {
	t.Setenv("TR_TOKEN", "123456:abcdefghijklmnop")
	t.Setenv("TR_DATA", "/var/lib/taskrunner")

	cfg, err := Parse([]byte(`
[storage]
driver = "sqlite"
path = "${TR_DATA}"

[scheduler]
tick = "250ms"
autostart = false
strict_schedules = true

[server]
bind = "${TR_BIND:0.0.0.0:9090}"

[notify.telegram]
enabled = true
token = "${TR_TOKEN}"
chat_id = 42

[logging]
level = "debug"
format = "text"
`))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "/var/lib/taskrunner", cfg.Storage.Path)
	assert.Equal(t, 250*time.Millisecond, cfg.Scheduler.Tick.Std())
	assert.False(t, cfg.Scheduler.Autostart)
	assert.True(t, cfg.Scheduler.StrictSchedules)
	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Bind)
	assert.True(t, cfg.Server.Enabled, "absent keys keep defaults")
	assert.Equal(t, "123456:abcdefghijklmnop", cfg.Notify.Telegram.Token)
	assert.Equal(t, int64(42), cfg.Notify.Telegram.ChatID)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.Empty(t, cfg.Validate())
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte(`[scheduler]
tick = "soon"`))
	assert.Error(t, err)

	_, err = Parse([]byte(`not toml at all = = =`))
	assert.Error(t, err)
}

func TestLoadOrDefault(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := LoadOrDefault(missing, false)
	require.NoError(t, err)
	assert.Equal(t, DefaultBind, cfg.Server.Bind)

	_, err = LoadOrDefault(missing, true)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(missing, []byte("[server]\nbind = \":7000\"\n"), 0644))
	cfg, err = LoadOrDefault(missing, true)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Bind)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr int
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "bad driver", mutate: func(c *Config) { c.Storage.Driver = "redis" }, wantErr: 1},
		{name: "traversal", mutate: func(c *Config) { c.Storage.Path = "/data/../etc/passwd" }, wantErr: 1},
		{name: "negative tick", mutate: func(c *Config) { c.Scheduler.Tick = Duration(-time.Second) }, wantErr: 1},
		{name: "empty bind", mutate: func(c *Config) { c.Server.Bind = "" }, wantErr: 1},
		{name: "bad level and format", mutate: func(c *Config) {
			c.Logging.Level = "loud"
			c.Logging.Format = "xml"
		}, wantErr: 2},
		{name: "telegram without token", mutate: func(c *Config) {
			c.Notify.Telegram.Enabled = true
		}, wantErr: 2},
		{name: "telegram bad token", mutate: func(c *Config) {
			c.Notify.Telegram = TelegramConfig{Enabled: true, Token: "nocolon", ChatID: 1}
		}, wantErr: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Len(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestValidate_MasksToken(t *testing.T) {
	cfg := Default()
	cfg.Notify.Telegram = TelegramConfig{Enabled: true, Token: "12:supersecretvalue", ChatID: 1}

	errs := cfg.Validate()
	require.Len(t, errs, 1)
	var vErr *ValidationError
	require.ErrorAs(t, errs[0], &vErr)
	assert.Equal(t, "notify.telegram.token", vErr.Field)
	assert.NotContains(t, vErr.Error(), "supersecretvalue")
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("TR_SET", "value")

	tests := []struct {
		in   string
		want string
	}{
		{in: "plain", want: "plain"},
		{in: "${TR_SET}", want: "value"},
		{in: "${TR_UNSET_VAR}", want: ""},
		{in: "${TR_UNSET_VAR:fallback}", want: "fallback"},
		{in: "${TR_SET:fallback}", want: "value"},
		{in: "${broken", want: "${broken"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, expandEnv(tt.in))
		})
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "tasks.json"), expandHome("~/tasks.json"))
	assert.Equal(t, "/abs/path", expandHome("/abs/path"))
	assert.Equal(t, "~user/x", expandHome("~user/x"))
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", maskSecret(""))
	assert.Equal(t, "***", maskSecret("short"))
	assert.Equal(t, "abcd****mnop", maskSecret("abcdefghmnop"))
	assert.Equal(t, "123:abcd**ijkl", maskTelegramToken("123:abcdefijkl"))
}
