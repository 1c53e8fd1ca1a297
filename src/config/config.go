package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"analysis-broker/internal/common"
	"analysis-broker/internal/constants"
	"analysis-broker/internal/errors"
)

// Config contains the broker configuration
type Config struct {
	Server          ServerConfig  `yaml:"server" toml:"server"`
	Concurrency     int           `yaml:"concurrency" toml:"concurrency"`
	LogLevel        string        `yaml:"log_level,omitempty" toml:"log_level,omitempty"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty" toml:"shutdown_timeout,omitempty"`
	Watch           WatchConfig   `yaml:"watch" toml:"watch"`
}

// ServerConfig describes how to launch the analysis server
type ServerConfig struct {
	Path       string            `yaml:"path" toml:"path"`
	Args       []string          `yaml:"args" toml:"args"`
	WorkingDir string            `yaml:"working_dir,omitempty" toml:"working_dir,omitempty"`
	Env        map[string]string `yaml:"env,omitempty" toml:"env,omitempty"`
}

// WatchConfig controls forwarding of file system changes to the server
type WatchConfig struct {
	Enabled    bool          `yaml:"enabled" toml:"enabled"`
	Extensions []string      `yaml:"extensions,omitempty" toml:"extensions,omitempty"`
	Debounce   time.Duration `yaml:"debounce,omitempty" toml:"debounce,omitempty"`
}

// LoadConfig loads configuration from a YAML file, or TOML when the path ends in .toml
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if isTOML(path) {
		if _, err := toml.Decode(string(data), &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// LoadConfigOrDefault loads path when it exists and falls back to the defaults otherwise
func LoadConfigOrDefault(path string) (*Config, error) {
	if path == "" {
		path = GetDefaultConfigPath()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		common.CLILogger.Debug("No config at %s, using defaults", path)
		return GetDefaultConfig(), nil
	}
	return LoadConfig(path)
}

// SaveConfig saves configuration, as TOML when the path ends in .toml and YAML otherwise
func SaveConfig(config *Config, path string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := Marshal(config, isTOML(path))
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Marshal renders the configuration in YAML, or TOML when asTOML is set
func Marshal(config *Config, asTOML bool) ([]byte, error) {
	if asTOML {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(config); err != nil {
			return nil, fmt.Errorf("failed to marshal config: %w", err)
		}
		return buf.Bytes(), nil
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// GenerateDefaultConfig generates a default configuration file
func GenerateDefaultConfig(path string) error {
	return SaveConfig(GetDefaultConfig(), path)
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

func (c *Config) applyDefaults() {
	if c.Concurrency == 0 {
		c.Concurrency = constants.DefaultConcurrency
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = constants.GetProcessShutdownTimeout()
	}
	if len(c.Watch.Extensions) == 0 {
		c.Watch.Extensions = append([]string{}, constants.DefaultWatchExtensions...)
	}
	if c.Watch.Debounce == 0 {
		c.Watch.Debounce = constants.FileWatchDebounceDelay
	}
}

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "warning": true, "error": true,
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if config.Concurrency < 1 {
		return errors.NewValidationError("concurrency", fmt.Sprintf("must be at least 1, got %d", config.Concurrency))
	}

	if !validLogLevels[strings.ToLower(config.LogLevel)] {
		return errors.NewValidationError("log_level", fmt.Sprintf("unknown level %q", config.LogLevel))
	}

	if config.ShutdownTimeout < 0 {
		return errors.NewValidationError("shutdown_timeout", "must not be negative")
	}

	if config.Watch.Debounce < 0 {
		return errors.NewValidationError("watch.debounce", "must not be negative")
	}

	for _, ext := range config.Watch.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return errors.NewValidationError("watch.extensions", fmt.Sprintf("extension %q must start with a dot", ext))
		}
	}

	for key := range config.Server.Env {
		if key == "" || strings.Contains(key, "=") {
			return errors.NewValidationError("server.env", fmt.Sprintf("invalid variable name %q", key))
		}
	}

	return nil
}

// Validate applies defaults and checks the configuration
func (c *Config) Validate() error {
	c.applyDefaults()
	return validateConfig(c)
}

// GetDefaultConfigPath returns the default configuration file path
func GetDefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".analysis-broker", "config.yaml")
}

// GetDefaultConfig returns a default configuration that probes PATH for OmniSharp
func GetDefaultConfig() *Config {
	config := &Config{
		Server: ServerConfig{
			Args: []string{"--stdio", "--encoding", "utf-8"},
		},
		Watch: WatchConfig{
			Enabled: true,
		},
	}
	config.applyDefaults()
	return config
}
