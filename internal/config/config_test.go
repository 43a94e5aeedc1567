package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
listen: ":9000"
week_start: friday
snap_minutes: 90
planner:
  model: gemini-1.5-pro
  default_intensity: 7
sync:
  endpoint: http://sync.local/push
  cron: "*/30 * * * *"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, "sunday", cfg.WeekStart)
	assert.Equal(t, 15, cfg.SnapMinutes)
	assert.Equal(t, 80.0, cfg.PixelsPerHour)
	assert.Equal(t, "gemini-1.5-pro", cfg.Planner.Model)
	assert.Equal(t, "GEMINI_API_KEY", cfg.Planner.APIKeyEnv)
	assert.Equal(t, 2, cfg.Planner.DefaultIntensity)
	assert.Equal(t, "http://sync.local/push", cfg.Sync.Endpoint)
	assert.Equal(t, "*/30 * * * *", cfg.Sync.Cron)
	assert.Equal(t, "primary", cfg.Sync.CalendarID)
	assert.Nil(t, cfg.BasicAuth)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unclosed"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)

	_, err = Load("")
	assert.Error(t, err)
}

func TestHelpers(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, time.Sunday, cfg.FirstWeekday())
	cfg.WeekStart = "monday"
	assert.Equal(t, time.Monday, cfg.FirstWeekday())
	assert.Equal(t, 4*time.Hour, cfg.SessionTTL())

	cfg.Timezone = "Mars/Olympus"
	loc, err := cfg.Location()
	assert.Error(t, err)
	assert.Equal(t, time.UTC, loc)

	t.Setenv("STUDYCAL_TEST_KEY", "secret")
	cfg.Planner.APIKeyEnv = "STUDYCAL_TEST_KEY"
	assert.Equal(t, "secret", cfg.PlannerAPIKey())
}
