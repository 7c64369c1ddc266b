package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	pkgerrors "github.com/careroute/interlink/errors"
)

// maxConfigSize caps how much of a configuration file Load will read.
const maxConfigSize = 10 << 20 // 10MB

// Load reads the node configuration from a .json, .yaml or .yml file and
// returns it defaulted, environment-overridden and validated. Values the
// file leaves out fall back to Default(); INTERLINK_* environment
// variables override the file.
func Load(path string) (*Config, error) {
	data, err := safeReadFile(path)
	if err != nil {
		return nil, pkgerrors.WrapFatal(err, "config", "Load", fmt.Sprintf("read %s", path))
	}

	var cfg *Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		cfg, err = Parse(data)
	case ".yaml", ".yml":
		cfg, err = ParseYAML(data)
	default:
		return nil, pkgerrors.WrapFatal(pkgerrors.ErrInvalidConfig, "config", "Load",
			fmt.Sprintf("unsupported config file extension %q", filepath.Ext(path)))
	}
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a JSON document over Default(), so absent keys keep
// their default values.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, pkgerrors.WrapInvalid(err, "config", "Parse", "decode configuration")
	}
	return cfg, nil
}

// ParseYAML converts the document to JSON and reuses Parse so both
// formats share decoding, duration handling and defaults.
func ParseYAML(data []byte) (*Config, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, pkgerrors.WrapInvalid(err, "config", "ParseYAML", "decode YAML")
	}
	jsonData, err := json.Marshal(doc)
	if err != nil {
		return nil, pkgerrors.WrapInvalid(err, "config", "ParseYAML", "convert YAML document")
	}
	return Parse(jsonData)
}

// applyEnvOverrides applies INTERLINK_* environment overrides. Only
// connection, credential and location settings are exposed this way;
// behavioral settings stay in the file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("INTERLINK_SERVER_ID"); v != "" {
		cfg.Server.ID = v
	}
	if v := os.Getenv("INTERLINK_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("INTERLINK_NATS_USERNAME"); v != "" {
		cfg.NATS.Username = v
	}
	if v := os.Getenv("INTERLINK_NATS_PASSWORD"); v != "" {
		cfg.NATS.Password = v
	}
	if v := os.Getenv("INTERLINK_NATS_TOKEN"); v != "" {
		cfg.NATS.Token = v
	}
	if v := os.Getenv("INTERLINK_CHANNELS_DIR"); v != "" {
		cfg.Channels.Dir = v
	}
	if v := os.Getenv("INTERLINK_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}

// safeReadFile reads a configuration file after checking it is a
// plausibly sized regular file. Symlinks to regular files pass; devices
// and directories do not.
func safeReadFile(path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("empty config path")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", path)
	}
	if info.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file too large: %d bytes > %d", info.Size(), maxConfigSize)
	}
	return os.ReadFile(path)
}
