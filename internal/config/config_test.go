package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsBootWithoutConfig(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite:intelrun.db", cfg.DatabaseURL)
	assert.Equal(t, 8090, cfg.Port)
	assert.Equal(t, "default", cfg.RankProfile)
	assert.True(t, cfg.RankProfileAuto)
	assert.Equal(t, 0.85, cfg.DedupSimilarity)
	assert.Equal(t, 8*time.Second, cfg.RequestTimeout)
}

func TestLoadYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intelrun.yaml")
	raw := "port: 9999\nnews_rank_profile: risk_off\nretention_days: 30\n"
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Port)
	assert.Equal(t, "risk_off", cfg.RankProfile)
	assert.Equal(t, 30, cfg.RetentionDays)
	// Untouched keys keep their defaults.
	assert.Equal(t, 12, cfg.MinNews)
}

func TestLoadEnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intelrun.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retention_days: 30\n"), 0o644))

	t.Setenv("RETENTION_DAYS", "7")
	t.Setenv("NEWS_RANK_PROFILE", "high_volatility")
	t.Setenv("REQUEST_TIMEOUT", "15s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.RetentionDays)
	assert.Equal(t, "high_volatility", cfg.RankProfile)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
}

func TestLoadProviderToggles(t *testing.T) {
	t.Setenv("GDELT_ENABLED", "false")
	t.Setenv("PERSONAL_BUDGET_MS", "250")
	t.Setenv("IMPACT_HALF_LIFE_HOURS", "3.5")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.False(t, cfg.GdeltEnabled)
	assert.Equal(t, 250, cfg.PersonalBudgetMS)
	assert.Equal(t, 3.5, cfg.ImpactHalfLifeHours)
}

func TestLoadDurationFromBareSeconds(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT", "20")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 20*time.Second, cfg.RequestTimeout)
}

func TestLoadRejectsInvalidProfile(t *testing.T) {
	t.Setenv("NEWS_RANK_PROFILE", "yolo")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NEWS_RANK_PROFILE")
}

func TestLoadRejectsNonPositiveRetention(t *testing.T) {
	t.Setenv("RETENTION_DAYS", "0")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadMissingYAMLFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
