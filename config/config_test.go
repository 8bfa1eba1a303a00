package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/rides?sslmode=disable")
	t.Setenv("JWT_SECRET_KEY", "secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 10*time.Minute, cfg.StatsCacheTTL)
	assert.Equal(t, "0 */6 * * *", cfg.SyncCron)
	assert.Equal(t, 4, cfg.SyncConcurrency)
	assert.False(t, cfg.SyncEnabled)
	assert.Nil(t, cfg.R2)
	assert.Nil(t, cfg.Strava)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET_KEY", "secret")

	_, err := Load()
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/rides")
	t.Setenv("JWT_SECRET_KEY", "")

	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SECRET_KEY")
}

func TestLoadRejectsBadPort(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_PORT", "70000")

	_, err := Load()
	assert.ErrorContains(t, err, "SERVER_PORT")

	t.Setenv("SERVER_PORT", "abc")
	_, err = Load()
	assert.ErrorContains(t, err, "SERVER_PORT")
}

func TestLoadStrava(t *testing.T) {
	setRequired(t)
	t.Setenv("STRAVA_CLIENT_ID", "123")
	t.Setenv("STRAVA_CLIENT_SECRET", "shh")
	t.Setenv("STRAVA_SYNC_DAYS", "30")
	t.Setenv("STRAVA_TIMEOUT", "5s")

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg.Strava)
	assert.Equal(t, 30, cfg.Strava.SyncDays)
	assert.Equal(t, 5*time.Second, cfg.Strava.Timeout)

	t.Setenv("STRAVA_CLIENT_SECRET", "")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoadR2AllOrNothing(t *testing.T) {
	setRequired(t)
	t.Setenv("R2_ACCOUNT_ID", "acc")

	_, err := Load()
	assert.ErrorContains(t, err, "partially configured")

	t.Setenv("R2_ACCESS_KEY_ID", "key")
	t.Setenv("R2_SECRET_ACCESS_KEY", "secret")
	t.Setenv("R2_BUCKET_NAME", "gpx")
	t.Setenv("R2_PUBLIC_BASE_URL", "https://cdn.example.com")

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg.R2)
	assert.Equal(t, "gpx", cfg.R2.BucketName)
}

func TestLoadSyncSettings(t *testing.T) {
	setRequired(t)
	t.Setenv("SYNC_ENABLED", "true")
	t.Setenv("SYNC_CONCURRENCY", "0")

	_, err := Load()
	assert.ErrorContains(t, err, "SYNC_CONCURRENCY")

	t.Setenv("SYNC_CONCURRENCY", "2")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.SyncEnabled)
	assert.Equal(t, 2, cfg.SyncConcurrency)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}
