package config

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 60*time.Second, cfg.Engine.SelectionWindow)
	assert.Equal(t, 2*time.Second, cfg.Engine.CallInterval)
	assert.Equal(t, 5*time.Second, cfg.Engine.Cooldown)
	assert.Equal(t, "0.8", cfg.Engine.PrizeRate.String())
	assert.Equal(t, "nebaBingo", cfg.Engine.HouseAccount)
	assert.Equal(t, time.Second, cfg.TickInterval)
	assert.Equal(t, "10", cfg.BetAmount.String())
	assert.Equal(t, 120, cfg.RateLimit)
	assert.Equal(t, 5*time.Minute, cfg.ResumeWindow)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.AllowOrigins)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SELECTION_WINDOW", "30s")
	t.Setenv("PRIZE_RATE", "0.75")
	t.Setenv("TICK_INTERVAL", "10s")
	t.Setenv("HOUSE_ACCOUNT", "house")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("POSTGRES_URL", "postgres://bingo@localhost/bingo")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Engine.SelectionWindow)
	assert.Equal(t, "0.75", cfg.Engine.PrizeRate.String())
	assert.Equal(t, 3*time.Second, cfg.TickInterval, "tick interval is clamped")
	assert.Equal(t, "house", cfg.Engine.HouseAccount)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowOrigins)
	assert.Equal(t, "postgres://bingo@localhost/bingo", cfg.PostgresURL)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("PRIZE_RATE", "1.5")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("PRIZE_RATE", "0.8")
	t.Setenv("BET_AMOUNT", "abc")
	_, err = Load()
	require.Error(t, err)
}

func TestLoggingToDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Logging("engine", dir, "debug"))
	t.Cleanup(func() { Logging("engine", "", "info") })

	_, err := os.Stat(filepath.Join(dir, "engine.log"))
	require.NoError(t, err)
	require.Error(t, Logging("engine", "", "loud"))
}

func TestCreateUniqueInstance(t *testing.T) {
	a, err := CreateUniqueInstance("engine")
	require.NoError(t, err)
	b, err := CreateUniqueInstance("engine")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Equal(t, b, GetInstanceId())
}

func TestCustomLoggerMiddleware(t *testing.T) {
	h := CustomLoggerMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
