package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Environment variables consulted once at startup by [Config.ApplyEnv].
const (
	EnvAPIURL   = "LISTSYNC_API_URL"
	EnvWSURL    = "LISTSYNC_WS_URL"
	EnvToken    = "LISTSYNC_TOKEN"
	EnvLogLevel = "LISTSYNC_LOG_LEVEL"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	API      APIConfig      `toml:"api"`
	Realtime RealtimeConfig `toml:"realtime"`
	Database DatabaseConfig `toml:"database"`
	Log      LogConfig      `toml:"log"`
}

// APIConfig contains settings for the REST collaborator API.
type APIConfig struct {
	BaseURL     string   `toml:"base_url"`
	AccessToken string   `toml:"access_token"`
	RateLimit   float64  `toml:"rate_limit"`
	Timeout     Duration `toml:"timeout"`
}

// RealtimeConfig contains settings for the realtime channel.
type RealtimeConfig struct {
	Endpoint          string   `toml:"endpoint"`
	Transport         string   `toml:"transport"`
	Path              string   `toml:"path"`
	ReconnectDelay    Duration `toml:"reconnect_delay"`
	ReconnectDelayMax Duration `toml:"reconnect_delay_max"`
	Randomization     float64  `toml:"randomization"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LogConfig controls the log level ("debug", "info", "warn", "error").
type LogConfig struct {
	Level string `toml:"level"`
}

// Duration is a [time.Duration] that decodes from TOML strings such as "1s" or "500ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file fall back to the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ApplyEnv overrides endpoint and credential settings from the environment.
// getenv is usually [os.Getenv]; empty values are ignored.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvAPIURL); v != "" {
		c.API.BaseURL = v
	}
	if v := getenv(EnvWSURL); v != "" {
		c.Realtime.Endpoint = v
	}
	if v := getenv(EnvToken); v != "" {
		c.API.AccessToken = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
}

// Validate reports configuration values the client cannot run with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Realtime.Transport) {
	case "", "socketio", "websocket":
	default:
		return fmt.Errorf("%w: unknown realtime transport %q", ErrInvalidConfig, c.Realtime.Transport)
	}

	if c.Realtime.ReconnectDelayMax.Duration > 0 && c.Realtime.ReconnectDelay.Duration > c.Realtime.ReconnectDelayMax.Duration {
		return fmt.Errorf("%w: reconnect_delay exceeds reconnect_delay_max", ErrInvalidConfig)
	}

	if c.Realtime.Randomization < 0 || c.Realtime.Randomization > 1 {
		return fmt.Errorf("%w: randomization must be within [0, 1]", ErrInvalidConfig)
	}

	if c.API.RateLimit < 0 {
		return fmt.Errorf("%w: rate_limit must not be negative", ErrInvalidConfig)
	}
	return nil
}
