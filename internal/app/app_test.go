package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meterease/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Port:             0,
		AuthPort:         0,
		DatabasePath:     filepath.Join(dir, "db", "meter.db"),
		AuthDatabasePath: filepath.Join(dir, "db", "auth.db"),
		ImageDirectory:   filepath.Join(dir, "images"),
		LogDirectory:     filepath.Join(dir, "logs"),
		MaxUploadMB:      1,
		DetectionURL:     "https://detect.example.test",
		DetectionModel:   "meter/1",
		DetectionTimeout: time.Second,
		JWTSecret:        "secret",
		AccessTokenTTL:   time.Minute,
		RefreshTokenTTL:  time.Hour,
		CORSOrigins:      []string{"*"},
	}
}

func TestNewAppServesHealth(t *testing.T) {
	a, err := NewApp(testConfig(t))
	require.NoError(t, err)
	defer a.close()

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.FileExists(t, a.config.DatabasePath)
}

func TestNewAppRequireAuthGuardsAPI(t *testing.T) {
	cfg := testConfig(t)
	cfg.RequireAuth = true

	a, err := NewApp(cfg)
	require.NoError(t, err)
	defer a.close()

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.FileExists(t, cfg.AuthDatabasePath)
}

func TestNewAppRejectsBadTariff(t *testing.T) {
	cfg := testConfig(t)
	cfg.TariffFile = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := NewApp(cfg)
	assert.Error(t, err)
}

func TestNewAuthAppRequiresSecret(t *testing.T) {
	cfg := testConfig(t)
	cfg.JWTSecret = ""

	_, err := NewAuthApp(cfg)
	assert.Error(t, err)
}

func TestAuthAppStopsOnCancel(t *testing.T) {
	a, err := NewAuthApp(testConfig(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("auth app did not stop")
	}
}
