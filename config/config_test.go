package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 50, cfg.Companion.InitialHappiness)
	assert.Equal(t, 3*time.Second, cfg.Companion.LockDuration)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.SyncLevelsInterval)
}

func TestLoad_CompanionOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("COMPANION_FEED_ENERGY", "25")
	t.Setenv("COMPANION_DECAY_INTERVAL", "30s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Companion.FeedEnergy)
	assert.Equal(t, 30*time.Second, cfg.Companion.DecayInterval)
}

func TestValidate_Production(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("AUTH_SECRET", "short")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL is required in production")
	assert.Contains(t, err.Error(), "AUTH_SECRET must be at least 32 bytes")
}

func TestValidate_InitialVitalsRange(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("COMPANION_INITIAL_ENERGY", "140")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COMPANION_INITIAL_ENERGY")
}

func TestLoadClient(t *testing.T) {
	t.Setenv("COMPANION_API_URL", "http://pets.local:9000")
	t.Setenv("COMPANION_TOKEN", "tok")

	cfg, err := LoadClient()
	require.NoError(t, err)
	assert.Equal(t, "http://pets.local:9000", cfg.APIURL)
	assert.Equal(t, "tok", cfg.Token)
	assert.Equal(t, "companion.log", cfg.LogFile)
	assert.Equal(t, 10*time.Second, cfg.Companion.IdleAfter)

	t.Setenv("COMPANION_API_URL", "not a url")
	_, err = LoadClient()
	assert.Error(t, err)
}
