package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"mackiebridge/internal/hostlink"
	"mackiebridge/internal/mcu"
	"mackiebridge/internal/rotary"
	"mackiebridge/internal/surface"
)

// Config is the top-level YAML configuration for the mackiebridge daemon.
//
// The config file is the primary configuration surface. Flags exist for small
// overrides (debugging, systemd drop-ins). Defaults and validation live here
// so the rest of the code can assume a well-formed config.
type Config struct {
	// Control surface ports and behavior
	Surface SurfaceConfig `yaml:"surface"`

	// Host bridge connection
	Host HostConfig `yaml:"host"`

	// Status HTTP/WebSocket server
	Status StatusConfig `yaml:"status"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// PortConfig names a MIDI in/out pair. Names are matched as case-insensitive
// substrings of the driver's port names.
type PortConfig struct {
	In  string `yaml:"in"`
	Out string `yaml:"out"`
}

type SurfaceConfig struct {
	Main PortConfig `yaml:"main"`

	// Extenders are opened in order; a missing one is skipped.
	Extenders []PortConfig `yaml:"extenders,omitempty"`

	ScanTimeoutMS   int    `yaml:"scan_timeout_ms"`
	InitialMode     string `yaml:"initial_mode"`
	ShutdownGraceMS int    `yaml:"shutdown_grace_ms"`
	ExitMessage     string `yaml:"exit_message"`

	// Actions maps button names (e.g. USER_A, F3) to host actions.
	Actions map[string]string `yaml:"actions,omitempty"`
}

type HostConfig struct {
	WsURL              string `yaml:"ws_url"`
	HandshakeTimeoutMS int    `yaml:"handshake_timeout_ms"`
	WriteTimeoutMS     int    `yaml:"write_timeout_ms"`
	RetryIntervalMS    int    `yaml:"retry_interval_ms"`
}

type StatusConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Listen      string   `yaml:"listen"`
	CORSOrigins []string `yaml:"cors_origins,omitempty"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a fully-populated Config with defaults.
func DefaultConfig() Config {
	return Config{
		Surface: SurfaceConfig{
			Main:            PortConfig{In: "MCU", Out: "MCU"},
			ScanTimeoutMS:   3000,
			InitialMode:     rotary.Pan.String(),
			ShutdownGraceMS: int(surface.DefaultShutdownGrace / time.Millisecond),
			ExitMessage:     "mackiebridge stopped",
		},
		Host: HostConfig{
			WsURL:              "ws://127.0.0.1:8765",
			HandshakeTimeoutMS: 2000,
			WriteTimeoutMS:     1000,
			RetryIntervalMS:    500,
		},
		Status: StatusConfig{
			Enabled:     true,
			Listen:      "127.0.0.1:3002",
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of the defaults.
//
// Unknown fields are rejected (helps catch typos) via KnownFields(true).
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace/comments are allowed after the document.
	if err := dec.Decode(&struct{}{}); err == nil {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides holds values from flags that were explicitly set. A nil
// pointer leaves the config value alone.
type FlagOverrides struct {
	MainIn  *string
	MainOut *string

	InitialMode *string

	HostWsURL *string

	StatusListen  *string
	StatusEnabled *bool

	LogLevel *string
}

// Apply applies overrides on top of a loaded config.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}

	if o.MainIn != nil {
		cfg.Surface.Main.In = *o.MainIn
	}
	if o.MainOut != nil {
		cfg.Surface.Main.Out = *o.MainOut
	}
	if o.InitialMode != nil {
		cfg.Surface.InitialMode = *o.InitialMode
	}

	if o.HostWsURL != nil {
		cfg.Host.WsURL = *o.HostWsURL
	}

	if o.StatusListen != nil {
		cfg.Status.Listen = *o.StatusListen
	}
	if o.StatusEnabled != nil {
		cfg.Status.Enabled = *o.StatusEnabled
	}

	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config invariants and returns a user-friendly error.
// Call it after defaults + file + overrides are applied.
func (c *Config) Validate() error {
	// Surface
	if c.Surface.Main.In == "" || c.Surface.Main.Out == "" {
		return errors.New("surface.main.in and surface.main.out must not be empty")
	}
	for i, ext := range c.Surface.Extenders {
		if ext.In == "" || ext.Out == "" {
			return fmt.Errorf("surface.extenders[%d] needs both in and out", i)
		}
	}
	if c.Surface.ScanTimeoutMS <= 0 {
		return errors.New("surface.scan_timeout_ms must be > 0")
	}
	if _, err := rotary.ParseMode(c.Surface.InitialMode); err != nil {
		return fmt.Errorf("surface.initial_mode: %w", err)
	}
	if c.Surface.ShutdownGraceMS < 0 {
		return errors.New("surface.shutdown_grace_ms must be >= 0")
	}
	if _, err := c.SurfaceActions(); err != nil {
		return err
	}

	// Host
	if c.Host.WsURL == "" {
		return errors.New("host.ws_url must not be empty")
	}
	if c.Host.HandshakeTimeoutMS <= 0 {
		return errors.New("host.handshake_timeout_ms must be > 0")
	}
	if c.Host.WriteTimeoutMS <= 0 {
		return errors.New("host.write_timeout_ms must be > 0")
	}
	if c.Host.RetryIntervalMS <= 0 {
		return errors.New("host.retry_interval_ms must be > 0")
	}

	// Status
	if c.Status.Enabled && c.Status.Listen == "" {
		return errors.New("status.enabled is true but status.listen is empty")
	}

	// Logging
	if c.Logging.Level == "" {
		return errors.New("logging.level must not be empty")
	}

	return nil
}

// SurfaceActions resolves surface.actions button names.
func (c *Config) SurfaceActions() (map[mcu.Note]string, error) {
	if len(c.Surface.Actions) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(c.Surface.Actions))
	for name := range c.Surface.Actions {
		names = append(names, name)
	}
	// Deterministic error reporting.
	sort.Strings(names)

	out := make(map[mcu.Note]string, len(names))
	for _, name := range names {
		action := c.Surface.Actions[name]
		n, err := mcu.ParseNote(name)
		if err != nil {
			return nil, fmt.Errorf("surface.actions: %w", err)
		}
		if action == "" {
			return nil, fmt.Errorf("surface.actions.%s must not be empty", name)
		}
		if _, dup := out[n]; dup {
			return nil, fmt.Errorf("surface.actions: button %s listed twice", n)
		}
		out[n] = action
	}
	return out, nil
}

// ToSurfaceConfig converts the file config into the controller's options.
// Call Validate first.
func (c *Config) ToSurfaceConfig() surface.Config {
	mode, _ := rotary.ParseMode(c.Surface.InitialMode)
	actions, _ := c.SurfaceActions()
	return surface.Config{
		InitialMode:   mode,
		ShutdownGrace: time.Duration(c.Surface.ShutdownGraceMS) * time.Millisecond,
		ExitMessage:   c.Surface.ExitMessage,
		Actions:       actions,
	}
}

// ToHostOptions converts the host section into hostlink options.
func (c *Config) ToHostOptions() hostlink.Options {
	return hostlink.Options{
		HandshakeTimeout: time.Duration(c.Host.HandshakeTimeoutMS) * time.Millisecond,
		WriteTimeout:     time.Duration(c.Host.WriteTimeoutMS) * time.Millisecond,
		RetryInterval:    time.Duration(c.Host.RetryIntervalMS) * time.Millisecond,
	}
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
