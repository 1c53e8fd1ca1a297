package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"analysis-broker/internal/constants"
	"analysis-broker/internal/errors"
)

func TestGetDefaultConfig(t *testing.T) {
	config := GetDefaultConfig()

	assert.Equal(t, constants.DefaultConcurrency, config.Concurrency)
	assert.Equal(t, "info", config.LogLevel)
	assert.Empty(t, config.Server.Path, "empty path probes PATH for the server")
	assert.Contains(t, config.Server.Args, "--stdio")
	assert.True(t, config.Watch.Enabled)
	assert.Equal(t, constants.DefaultWatchExtensions, config.Watch.Extensions)
	assert.Equal(t, constants.FileWatchDebounceDelay, config.Watch.Debounce)
	require.NoError(t, validateConfig(config))
}

func TestLoadConfigYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `server:
  path: /opt/omnisharp/OmniSharp
  args: ["--stdio", "-s", "/src/App.sln"]
  env:
    DOTNET_CLI_TELEMETRY_OPTOUT: "1"
concurrency: 12
log_level: debug
shutdown_timeout: 3s
watch:
  enabled: true
  extensions: [".cs"]
  debounce: 250ms
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/opt/omnisharp/OmniSharp", config.Server.Path)
	assert.Equal(t, []string{"--stdio", "-s", "/src/App.sln"}, config.Server.Args)
	assert.Equal(t, "1", config.Server.Env["DOTNET_CLI_TELEMETRY_OPTOUT"])
	assert.Equal(t, 12, config.Concurrency)
	assert.Equal(t, 3*time.Second, config.ShutdownTimeout)
	assert.Equal(t, []string{".cs"}, config.Watch.Extensions)
	assert.Equal(t, 250*time.Millisecond, config.Watch.Debounce)
}

func TestLoadConfigTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `concurrency = 4

[server]
path = "omnisharp"
args = ["--stdio"]

[watch]
enabled = false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "omnisharp", config.Server.Path)
	assert.Equal(t, 4, config.Concurrency)
	assert.False(t, config.Watch.Enabled)
	// defaults fill what the file leaves out
	assert.Equal(t, "info", config.LogLevel)
	assert.Equal(t, constants.DefaultWatchExtensions, config.Watch.Extensions)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		parameter string
	}{
		{"negative concurrency", "concurrency: -1\n", "concurrency"},
		{"bad log level", "log_level: loud\n", "log_level"},
		{"extension without dot", "watch:\n  extensions: [\"cs\"]\n", "watch.extensions"},
		{"bad env key", "server:\n  env:\n    \"A=B\": x\n", "server.env"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			_, err := LoadConfig(path)
			require.Error(t, err)

			var valErr *errors.ValidationError
			require.ErrorAs(t, err, &valErr)
			assert.Equal(t, tt.parameter, valErr.Parameter)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	config, err := LoadConfigOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, constants.DefaultConcurrency, config.Concurrency)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	for _, name := range []string{"config.yaml", "config.toml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)

			original := GetDefaultConfig()
			original.Server.Path = "/usr/local/bin/omnisharp"
			original.Concurrency = 16

			require.NoError(t, SaveConfig(original, path))

			loaded, err := LoadConfig(path)
			require.NoError(t, err)
			assert.Equal(t, original.Server.Path, loaded.Server.Path)
			assert.Equal(t, original.Server.Args, loaded.Server.Args)
			assert.Equal(t, 16, loaded.Concurrency)
			assert.Equal(t, original.Watch.Debounce, loaded.Watch.Debounce)
		})
	}
}
