package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "https://nominatim.openstreetmap.org", cfg.Nominatim.BaseURL)
	assert.Equal(t, "AroundMeAgent/1.0", cfg.Nominatim.UserAgent)
	assert.Equal(t, 45, cfg.Resolver.CandidateTimeoutSecs)
	assert.Equal(t, 10, cfg.Resolver.SiteTimeoutSecs)
	assert.Equal(t, 4, cfg.Resolver.MaxConcurrent)
	assert.Len(t, cfg.Resolver.ListingSites, 5)
	assert.Equal(t, 25.0, cfg.Boundary.RadiusKM)
	assert.Equal(t, 10, cfg.Aggregate.H3Resolution)
	assert.Equal(t, 120, cfg.Pipeline.RequestTimeoutSecs)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	yaml := `
server:
  port: 9999
log:
  level: debug
  format: console
resolver:
  max_concurrent: 2
  listing_sites:
    - yelp.com
boundary:
  radius_km: 10
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 2, cfg.Resolver.MaxConcurrent)
	assert.Equal(t, []string{"yelp.com"}, cfg.Resolver.ListingSites)
	assert.Equal(t, 10.0, cfg.Boundary.RadiusKM)

	// Untouched defaults survive.
	assert.Equal(t, 45, cfg.Resolver.CandidateTimeoutSecs)
}

func TestLoad_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("AROUNDME_SERVER_PORT", "7070")
	t.Setenv("AROUNDME_MAPBOX_TOKEN", "pk.test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "pk.test", cfg.Mapbox.Token)
}

func TestInitLogger_BadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "nope", Format: "json"})
	require.Error(t, err)
}
