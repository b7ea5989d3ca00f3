package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the process configuration, loaded from an optional YAML file and
// then overridden by environment variables.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`

	LogFile  string `yaml:"log_file"`
	LogLevel string `yaml:"log_level"`

	JWTSecret   string `yaml:"jwt_secret"`
	PostgresDSN string `yaml:"postgres_dsn"`

	Room RoomSettings `yaml:"room"`
}

// RoomSettings exposes the operationally tunable subset of the room config.
type RoomSettings struct {
	MaxPlayers            int `yaml:"max_players"`
	MaxQueuedInputs       int `yaml:"max_queued_inputs"`
	ReconnectionWindowSec int `yaml:"reconnection_window_sec"`
	InactivityTimeoutSec  int `yaml:"inactivity_timeout_sec"`
	SweepIntervalSec      int `yaml:"sweep_interval_sec"`
}

// ReconnectionWindow returns the configured window, or zero for the default.
func (s RoomSettings) ReconnectionWindow() time.Duration {
	return time.Duration(s.ReconnectionWindowSec) * time.Second
}

func (s RoomSettings) InactivityTimeout() time.Duration {
	return time.Duration(s.InactivityTimeoutSec) * time.Second
}

func (s RoomSettings) SweepInterval() time.Duration {
	return time.Duration(s.SweepIntervalSec) * time.Second
}

// LoadConfig reads path when it exists, applies env overrides, and validates.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		ListenAddr: ":2567",
		LogFile:    "server.log",
		LogLevel:   "info",
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// fall through to env and defaults
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt secret is required (set jwt_secret or ARENA_JWT_SECRET)")
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := envString("ARENA_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := envString("ARENA_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if v := envString("ARENA_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := envString("ARENA_JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := envString("ARENA_POSTGRES_DSN"); v != "" {
		cfg.PostgresDSN = v
	}
	if v, ok := envInt("ARENA_MAX_PLAYERS"); ok {
		cfg.Room.MaxPlayers = v
	}
	if v, ok := envInt("ARENA_MAX_QUEUED_INPUTS"); ok {
		cfg.Room.MaxQueuedInputs = v
	}
	if v, ok := envInt("ARENA_RECONNECTION_WINDOW_SEC"); ok {
		cfg.Room.ReconnectionWindowSec = v
	}
	if v, ok := envInt("ARENA_INACTIVITY_TIMEOUT_SEC"); ok {
		cfg.Room.InactivityTimeoutSec = v
	}
	if v, ok := envInt("ARENA_SWEEP_INTERVAL_SEC"); ok {
		cfg.Room.SweepIntervalSec = v
	}
}

func envString(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envInt(key string) (int, bool) {
	raw := envString(key)
	if raw == "" {
		return 0, false
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return value, true
}
