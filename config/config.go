package config

import (
	"encoding/json"
	"fmt"
	"time"

	pkgerrors "github.com/careroute/interlink/errors"
)

// Config is the node-level configuration: the broker connection, the
// metrics endpoint, where channel definitions live, and the script
// sandbox budget. Everything per-channel lives in the channel
// definitions themselves.
type Config struct {
	Server   ServerConfig   `json:"server,omitempty"`
	NATS     NATSConfig     `json:"nats"`
	Metrics  MetricsConfig  `json:"metrics,omitempty"`
	Channels ChannelsConfig `json:"channels"`
	Script   ScriptConfig   `json:"script,omitempty"`
}

// ServerConfig identifies this node.
type ServerConfig struct {
	// ID stamps every message the node produces. Empty means the engine
	// generates one at startup.
	ID string `json:"id,omitempty"`
}

// NATSConfig defines the broker connection.
type NATSConfig struct {
	URL           string        `json:"url"`
	MaxReconnects int           `json:"max_reconnects,omitempty"`
	ReconnectWait time.Duration `json:"reconnect_wait,omitempty"`
	Username      string        `json:"username,omitempty"`
	Password      string        `json:"password,omitempty"`
	Token         string        `json:"token,omitempty"`
}

// MetricsConfig controls the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port,omitempty"`
	Path    string `json:"path,omitempty"`
}

// ChannelsConfig locates channel definitions.
type ChannelsConfig struct {
	// Dir is scanned non-recursively for .json/.yaml/.yml definitions.
	Dir string `json:"dir,omitempty"`
	// Files lists additional definition files loaded after Dir.
	Files []string `json:"files,omitempty"`
}

// ScriptConfig bounds filter, transformer and batch script execution.
type ScriptConfig struct {
	Timeout   time.Duration `json:"timeout,omitempty"`
	CacheSize int           `json:"cache_size,omitempty"`
}

// Default returns the configuration an empty file would produce: local
// broker, metrics on :9090, channel definitions under ./channels, the
// standard sandbox budget.
func Default() *Config {
	return &Config{
		NATS: NATSConfig{
			URL:           "nats://localhost:4222",
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Channels: ChannelsConfig{
			Dir: "channels",
		},
		Script: ScriptConfig{
			Timeout:   5 * time.Second,
			CacheSize: 256,
		},
	}
}

// UnmarshalJSON accepts reconnect_wait both as a Go duration string
// ("2s") and as a nanosecond number.
func (n *NATSConfig) UnmarshalJSON(data []byte) error {
	type Alias NATSConfig
	aux := &struct {
		ReconnectWait any `json:"reconnect_wait"`
		*Alias
	}{Alias: (*Alias)(n)}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	wait, err := parseDuration(aux.ReconnectWait)
	if err != nil {
		return fmt.Errorf("nats.reconnect_wait: %w", err)
	}
	if wait != 0 {
		n.ReconnectWait = wait
	}
	return nil
}

// UnmarshalJSON accepts timeout both as a Go duration string ("250ms")
// and as a nanosecond number.
func (s *ScriptConfig) UnmarshalJSON(data []byte) error {
	type Alias ScriptConfig
	aux := &struct {
		Timeout any `json:"timeout"`
		*Alias
	}{Alias: (*Alias)(s)}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	timeout, err := parseDuration(aux.Timeout)
	if err != nil {
		return fmt.Errorf("script.timeout: %w", err)
	}
	if timeout != 0 {
		s.Timeout = timeout
	}
	return nil
}

// parseDuration converts a decoded JSON duration value. Strings use Go
// duration syntax; numbers are nanoseconds, the encoding of
// time.Duration.
func parseDuration(v any) (time.Duration, error) {
	switch d := v.(type) {
	case nil:
		return 0, nil
	case string:
		return time.ParseDuration(d)
	case float64:
		return time.Duration(d), nil
	default:
		return 0, fmt.Errorf("unsupported duration value %v (%T)", v, v)
	}
}

// Validate checks the configuration for values the node cannot run
// with. Defaults are assumed to have been applied; Load and Parse do
// that.
func (c *Config) Validate() error {
	if c.NATS.URL == "" {
		return invalid("nats.url is required")
	}
	if c.NATS.MaxReconnects < -1 {
		return invalid(fmt.Sprintf("nats.max_reconnects must be -1 (infinite) or higher, got %d", c.NATS.MaxReconnects))
	}
	if c.NATS.ReconnectWait < 0 {
		return invalid(fmt.Sprintf("nats.reconnect_wait must not be negative, got %s", c.NATS.ReconnectWait))
	}
	if c.NATS.Token != "" && c.NATS.Username != "" {
		return invalid("nats.token and nats.username are mutually exclusive")
	}
	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		return invalid(fmt.Sprintf("metrics.port %d is out of range", c.Metrics.Port))
	}
	if c.Channels.Dir == "" && len(c.Channels.Files) == 0 {
		return invalid("channels.dir or channels.files must name at least one definition source")
	}
	if c.Script.Timeout <= 0 {
		return invalid(fmt.Sprintf("script.timeout must be positive, got %s", c.Script.Timeout))
	}
	if c.Script.CacheSize <= 0 {
		return invalid(fmt.Sprintf("script.cache_size must be positive, got %d", c.Script.CacheSize))
	}
	return nil
}

func invalid(detail string) error {
	return pkgerrors.WrapFatal(pkgerrors.ErrInvalidConfig, "config.Config", "Validate", detail)
}
