package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Auth     AuthConfig     `toml:"auth"`
	Watch    WatchConfig    `toml:"watch"`
	Database DatabaseConfig `toml:"database"`
	Log      LogConfig      `toml:"log"`
}

// ServerConfig contains the endpoints of the vidmark backend.
type ServerConfig struct {
	APIURL     string `toml:"api_url"`     // REST base URL, e.g. http://localhost:8080/api
	ChannelURL string `toml:"channel_url"` // WebSocket progress channel, e.g. ws://localhost:8080/ws/progress
}

// AuthConfig contains settings for the external identity provider.
type AuthConfig struct {
	TokenPath   string `toml:"token_path"`   // Where the issued token is persisted as JSON
	IssuerURL   string `toml:"issuer_url"`   // Identity provider base URL
	ClientID    string `toml:"client_id"`    // OAuth2 client ID registered with the provider
	RedirectURI string `toml:"redirect_uri"` // Localhost callback, e.g. http://127.0.0.1:8484/callback
}

// WatchConfig tunes the realtime progress client.
type WatchConfig struct {
	TerminalTTLSeconds   int     `toml:"terminal_ttl_seconds"`   // How long finished jobs stay visible
	SweepIntervalSeconds int     `toml:"sweep_interval_seconds"` // Eviction sweep cadence
	InitialBackoffMS     int     `toml:"initial_backoff_ms"`     // First reconnect delay
	MaxBackoffMS         int     `toml:"max_backoff_ms"`         // Reconnect delay ceiling
	HistoryRateLimit     float64 `toml:"history_rate_limit"`     // History requests per second during gap recovery
}

// TerminalTTL returns the configured terminal-entry TTL as a [time.Duration].
func (w WatchConfig) TerminalTTL() time.Duration {
	return time.Duration(w.TerminalTTLSeconds) * time.Second
}

// SweepInterval returns the configured sweep cadence as a [time.Duration].
func (w WatchConfig) SweepInterval() time.Duration {
	return time.Duration(w.SweepIntervalSeconds) * time.Second
}

// InitialBackoff returns the first reconnect delay as a [time.Duration].
func (w WatchConfig) InitialBackoff() time.Duration {
	return time.Duration(w.InitialBackoffMS) * time.Millisecond
}

// MaxBackoff returns the reconnect delay ceiling as a [time.Duration].
func (w WatchConfig) MaxBackoff() time.Duration {
	return time.Duration(w.MaxBackoffMS) * time.Millisecond
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
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
	// Check if file already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, err)
	}

	// Write the embedded example config to the file
	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
