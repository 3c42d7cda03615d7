package scrape

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scrape.yaml")
	yaml := `
user_agent: "custom-agent/1.0"
check_robots: true
retry:
  max_attempts: 5
  initial_delay_ms: 500
  max_delay_ms: 10000
  backoff_multiplier: 1.5
agencies:
  rbnz:
    delay_ms: 12329
  treasury-au:
    max_pages: 5
  acma:
    disabled: true
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg := &Config{ConfigFile: path}
	require.NoError(t, cfg.loadFile())

	assert.Equal(t, "custom-agent/1.0", cfg.File.UserAgent)
	assert.True(t, cfg.File.CheckRobots)
	assert.Equal(t, 5, cfg.File.Retry.MaxAttempts)
	assert.Equal(t, 1.5, cfg.File.Retry.BackoffMultiplier)
	assert.Equal(t, 12329, cfg.File.Agencies["rbnz"].DelayMS)
	assert.Equal(t, 5, cfg.File.Agencies["treasury-au"].MaxPages)
	assert.True(t, cfg.File.Agencies["acma"].Disabled)
}

func TestLoadConfigFileInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("agencies: [unclosed"), 0o644))

	cfg := &Config{ConfigFile: path}
	assert.Error(t, cfg.loadFile())
}
