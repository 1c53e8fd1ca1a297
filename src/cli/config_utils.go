package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"analysis-broker/src/config"
	"analysis-broker/internal/common"
)

// loadConfig loads an explicit path strictly, or the default path when present
func loadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
		return cfg, nil
	}

	cfg, err := config.LoadConfigOrDefault(config.GetDefaultConfigPath())
	if err != nil {
		common.CLILogger.Warn("Failed to load default config, using defaults: %v", err)
		return config.GetDefaultConfig(), nil
	}
	return cfg, nil
}

// InitConfig writes the default configuration
func InitConfig(path string, overwrite bool) error {
	if path == "" {
		path = config.GetDefaultConfigPath()
	}

	if _, err := os.Stat(path); err == nil && !overwrite {
		return fmt.Errorf("config file %s already exists (use --%s to overwrite)", path, FlagForce)
	}

	if err := config.GenerateDefaultConfig(path); err != nil {
		return err
	}
	common.CLILogger.Info("Wrote default configuration to %s", path)
	return nil
}

// ShowConfig prints the effective configuration
func ShowConfig(out io.Writer, configPath, format string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	var asTOML bool
	switch strings.ToLower(format) {
	case "", "yaml", "yml":
	case "toml":
		asTOML = true
	default:
		return fmt.Errorf("unknown format %q (want yaml or toml)", format)
	}

	data, err := config.Marshal(cfg, asTOML)
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}
