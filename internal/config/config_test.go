package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViper() {
	viper.Reset()
}

func writeTempYAML(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	resetViper()
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "http://localhost:7125/rpc", cfg.Controller.BaseURL)
	assert.Equal(t, 100, cfg.RateLimit.DefaultBudget)
	assert.Equal(t, 300.0, cfg.Safety.AxisXMax)
}

func TestLoadOverridesFromYAML(t *testing.T) {
	resetViper()
	path := writeTempYAML(t, `
server:
  port: 9090
safety:
  axis_x_max: 500
rate_limit:
  default_budget: 20
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 500.0, cfg.Safety.AxisXMax)
	assert.Equal(t, 20, cfg.RateLimit.DefaultBudget)
}

func TestValidateRejectsInvalidPort(t *testing.T) {
	cfg := &Config{
		Server:     ServerConfig{Port: 0, Host: "0.0.0.0"},
		Controller: ControllerConfig{BaseURL: "x", Timeout: 1},
		Safety:     SafetyConfig{AxisXMax: 1, AxisYMax: 1, AxisZMax: 1},
		RateLimit:  RateLimitConfig{DefaultBudget: 1},
		Log:        LogConfig{Level: "info"},
	}
	err := cfg.Validate()
	require.Error(t, err)
}

func TestValidateRejectsInvertedAxisBounds(t *testing.T) {
	cfg := &Config{
		Server:     ServerConfig{Port: 8080, Host: "0.0.0.0"},
		Controller: ControllerConfig{BaseURL: "x", Timeout: 1},
		Safety:     SafetyConfig{AxisXMin: 10, AxisXMax: 5, AxisYMax: 1, AxisZMax: 1},
		RateLimit:  RateLimitConfig{DefaultBudget: 1},
		Log:        LogConfig{Level: "info"},
	}
	err := cfg.Validate()
	require.Error(t, err)
}
