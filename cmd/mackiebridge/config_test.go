package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mackiebridge/internal/mcu"
	"mackiebridge/internal/rotary"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mackiebridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 300, cfg.Surface.ShutdownGraceMS)
	assert.Equal(t, "pan", cfg.Surface.InitialMode)
}

func TestLoadConfigFile_OverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
surface:
  main: {in: "X-Touch", out: "X-Touch"}
  extenders:
    - {in: "X-Touch-Ext", out: "X-Touch-Ext"}
  initial_mode: eq
  actions:
    user_a: application.toggle_browser
    F3: transport.tap_tempo
host:
  ws_url: ws://10.0.0.2:9000
logging:
  level: debug
`)
	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "X-Touch", cfg.Surface.Main.In)
	require.Len(t, cfg.Surface.Extenders, 1)
	assert.Equal(t, 3000, cfg.Surface.ScanTimeoutMS, "default kept")
	assert.Equal(t, "ws://10.0.0.2:9000", cfg.Host.WsURL)
	assert.Equal(t, 500, cfg.Host.RetryIntervalMS, "default kept")

	sc := cfg.ToSurfaceConfig()
	assert.Equal(t, rotary.EQ, sc.InitialMode)
	assert.Equal(t, 300*time.Millisecond, sc.ShutdownGrace)
	assert.Equal(t, map[mcu.Note]string{
		mcu.UserA: "application.toggle_browser",
		mcu.F3:    "transport.tap_tempo",
	}, sc.Actions)
}

func TestLoadConfigFile_RejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, "surface:\n  mian: {in: a, out: b}\n")
	_, err := LoadConfigFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode config yaml")
}

func TestLoadConfigFile_RejectsTrailingDocument(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: info\n---\nlogging:\n  level: debug\n")
	_, err := LoadConfigFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trailing document")
}

func TestLoadConfigFile_Errors(t *testing.T) {
	_, err := LoadConfigFile("")
	assert.Error(t, err)

	_, err = LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestFlagOverrides_Apply(t *testing.T) {
	cfg := DefaultConfig()
	in, mode, listen, level := "MCU Pro", "send", ":9999", "debug"
	disabled := false

	FlagOverrides{
		MainIn:        &in,
		InitialMode:   &mode,
		StatusListen:  &listen,
		StatusEnabled: &disabled,
		LogLevel:      &level,
	}.Apply(&cfg)

	assert.Equal(t, "MCU Pro", cfg.Surface.Main.In)
	assert.Equal(t, "MCU", cfg.Surface.Main.Out, "unset override leaves value")
	assert.Equal(t, "send", cfg.Surface.InitialMode)
	assert.Equal(t, ":9999", cfg.Status.Listen)
	assert.False(t, cfg.Status.Enabled)
	assert.Equal(t, "debug", cfg.Logging.Level)

	FlagOverrides{}.Apply(nil)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty main", func(c *Config) { c.Surface.Main.In = "" }, "surface.main"},
		{"half extender", func(c *Config) { c.Surface.Extenders = []PortConfig{{In: "x"}} }, "surface.extenders[0]"},
		{"scan timeout", func(c *Config) { c.Surface.ScanTimeoutMS = 0 }, "scan_timeout_ms"},
		{"bad mode", func(c *Config) { c.Surface.InitialMode = "mixer" }, "initial_mode"},
		{"negative grace", func(c *Config) { c.Surface.ShutdownGraceMS = -1 }, "shutdown_grace_ms"},
		{"unknown button", func(c *Config) { c.Surface.Actions = map[string]string{"KAZOO": "x"} }, "unknown button"},
		{"empty action", func(c *Config) { c.Surface.Actions = map[string]string{"USER_B": ""} }, "must not be empty"},
		{"duplicate button", func(c *Config) {
			c.Surface.Actions = map[string]string{"user_a": "a", "USER_A": "b"}
		}, "listed twice"},
		{"host url", func(c *Config) { c.Host.WsURL = "" }, "host.ws_url"},
		{"handshake", func(c *Config) { c.Host.HandshakeTimeoutMS = 0 }, "handshake_timeout_ms"},
		{"retry", func(c *Config) { c.Host.RetryIntervalMS = -5 }, "retry_interval_ms"},
		{"status listen", func(c *Config) { c.Status.Listen = "" }, "status.listen"},
		{"log level", func(c *Config) { c.Logging.Level = "" }, "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_StatusDisabledNeedsNoListen(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Status.Enabled = false
	cfg.Status.Listen = ""
	assert.NoError(t, cfg.Validate())
}

func TestToHostOptions(t *testing.T) {
	cfg := DefaultConfig()
	opts := cfg.ToHostOptions()
	assert.Equal(t, 2*time.Second, opts.HandshakeTimeout)
	assert.Equal(t, time.Second, opts.WriteTimeout)
	assert.Equal(t, 500*time.Millisecond, opts.RetryInterval)
	assert.Zero(t, opts.MaxAttempts)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, "", ExpandPath(""))
	assert.Equal(t, "/etc/mackiebridge.yaml", ExpandPath("/etc/mackiebridge.yaml"))
	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, filepath.Join(home, "cfg.yaml"), ExpandPath("~/cfg.yaml"))
	assert.Equal(t, "~other/cfg.yaml", ExpandPath("~other/cfg.yaml"))
}

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]LogLevel{
		"error": LogLevelError, "WARN": LogLevelWarn, "warning": LogLevelWarn,
		"info": LogLevelInfo, "Debug": LogLevelDebug, " info ": LogLevelInfo,
	} {
		got, err := parseLogLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := parseLogLevel("trace")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be error, warn, info, or debug")
}

func TestLogLevel_SlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelError, LogLevelError.slogLevel())
	assert.Equal(t, slog.LevelWarn, LogLevelWarn.slogLevel())
	assert.Equal(t, slog.LevelDebug, LogLevelDebug.slogLevel())
	assert.Equal(t, slog.LevelInfo, LogLevel("").slogLevel())
}

func TestComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	base := newLogger(&buf, LogLevelInfo)

	componentLogger(base, "hostlink").Info("connected to host")
	componentLogger(base, "surface").Debug("hidden below info")

	out := buf.String()
	assert.Contains(t, out, "component=hostlink")
	assert.Contains(t, out, `msg="connected to host"`)
	assert.NotContains(t, out, "surface")
}
