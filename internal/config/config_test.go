package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "rezolus.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:4241", cfg.General.Listen)
	assert.Equal(t, 10*time.Millisecond, cfg.General.TTL.Duration)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Defaults.Enabled)
}

func TestLoadRejectsBadTTL(t *testing.T) {
	// Testable Scenario F: ttl = "bad" must fail with a message naming the
	// offending field, so cmd/rezolus can exit 1.
	path := writeConfig(t, `
[general]
ttl = "bad"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ttl")
}

func TestLoadRejectsBadLogLevel(t *testing.T) {
	path := writeConfig(t, `
[log]
level = "verbose"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.level")
}

func TestEnabledFallsBackToDefaults(t *testing.T) {
	path := writeConfig(t, `
[defaults]
enabled = false

[samplers.cpu_perf]
enabled = true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Enabled("cpu_perf"), "explicit per-sampler enabled overrides defaults")
	assert.False(t, cfg.Enabled("scheduler_runqueue"), "falls back to [defaults].enabled")
}

func TestLoadIgnoresUnknownPerSamplerKeysAtAnyLogLevel(t *testing.T) {
	path := writeConfig(t, `
[log]
level = "trace"

[samplers.blockio_latency]
enabled = true
some_future_option = 42
`)
	_, err := Load(path)
	require.NoError(t, err, "unknown per-sampler keys are always ignored")
}

func TestLoadRejectsUnknownTopLevelKeyAtDebugLevel(t *testing.T) {
	path := writeConfig(t, `
[log]
level = "debug"

[bogus]
x = 1
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogus")
}

func TestLoadAllowsUnknownTopLevelKeyAtInfoLevel(t *testing.T) {
	path := writeConfig(t, `
[log]
level = "info"

[bogus]
x = 1
`)
	_, err := Load(path)
	require.NoError(t, err, "unknown top-level keys are only rejected at debug level or finer")
}
