package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 1<<20, cfg.GCInitialThreshold)
	assert.Equal(t, 2.0, cfg.GCGrowthFactor)
	assert.False(t, cfg.StressGC)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("RAVEN_STRESS_GC", "true")
	t.Setenv("RAVEN_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.StressGC)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadReadsExplicitConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "raven.yaml")
	require.NoError(t, os.WriteFile(path, []byte("gc_growth_factor: 3.5\nlog_level: warn\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3.5, cfg.GCGrowthFactor)
	assert.Equal(t, "warn", cfg.LogLevel)
	// untouched fields keep their defaults
	assert.Equal(t, 1<<20, cfg.GCInitialThreshold)
}

func TestLoadMissingExplicitConfigFileIsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}

func TestParseLevelFallsBackToInfoOnGarbage(t *testing.T) {
	log := logrus.New()
	lvl := ParseLevel(log, "not-a-level")
	assert.Equal(t, logrus.InfoLevel, lvl)
}

func TestParseLevelHonorsValidLevel(t *testing.T) {
	log := logrus.New()
	lvl := ParseLevel(log, "debug")
	assert.Equal(t, logrus.DebugLevel, lvl)
}

// chdirTemp runs the test from a fresh empty directory so Load's default
// search path (".") never picks up a stray raven.yaml from the repo or
// a previous test's working directory.
func chdirTemp(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(cwd) })
}
