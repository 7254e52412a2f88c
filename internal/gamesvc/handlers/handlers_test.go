package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/avvvet/bingo-engine/internal/db"
	"github.com/avvvet/bingo-engine/internal/engine"
	"github.com/avvvet/bingo-engine/internal/gamesvc/models"
	"github.com/avvvet/bingo-engine/internal/gamesvc/store"
	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeControl struct {
	running bool
	started int
}

func (f *fakeControl) Start(context.Context) error {
	if f.running {
		return engine.ErrAlreadyRunning
	}
	f.running = true
	f.started++
	return nil
}

func (f *fakeControl) Stop(context.Context) error {
	if !f.running {
		return engine.ErrNotRunning
	}
	f.running = false
	return nil
}

func (f *fakeControl) Status() engine.Status { return engine.Status{Running: f.running} }

type fakeRounds struct {
	round   *models.GameRound
	settled bool
}

func (f *fakeRounds) CurrentRound(context.Context) (*models.GameRound, error) { return f.round, nil }

func (f *fakeRounds) ForceWinnerCheck(_ context.Context, id int64) (bool, error) {
	if f.round == nil || f.round.ID != id {
		return false, fmt.Errorf("refresh round: %w", store.ErrNotFound)
	}
	return f.settled, nil
}

type fakeMirror struct{ st *db.RoundStatus }

func (f fakeMirror) Latest(context.Context) (*db.RoundStatus, error) {
	if f.st == nil {
		return nil, db.ErrNoStatus
	}
	return f.st, nil
}

type server struct {
	t       *testing.T
	h       *Handler
	router  *chi.Mux
	token   string
	control *fakeControl
	rounds  *fakeRounds
}

func newServer(t *testing.T, mirror StatusReader) *server {
	control := &fakeControl{}
	rounds := &fakeRounds{}
	h := NewHandler(context.Background(), control, rounds, mirror, "8080")
	h.InitAuth("test-secret")
	r := chi.NewRouter()
	h.SetRoutes(r)

	token, err := h.IssueToken(time.Hour)
	require.NoError(t, err)
	return &server{t: t, h: h, router: r, token: token, control: control, rounds: rounds}
}

func (s *server) do(method, path string, auth bool) (int, Response) {
	s.t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if auth {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var rsp Response
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &rsp))
	}
	return rec.Code, rsp
}

func TestHealthIsPublic(t *testing.T) {
	s := newServer(t, nil)
	s.control.running = true
	code, rsp := s.do(http.MethodGet, "/v1/health", false)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, rsp.Message, "8080")
}

func TestHealthFailsWhileSchedulerDown(t *testing.T) {
	s := newServer(t, nil)
	code, rsp := s.do(http.MethodGet, "/v1/health", false)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, http.StatusServiceUnavailable, rsp.Code)

	code, _ = s.do(http.MethodPost, "/v1/engine/start", true)
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(http.MethodGet, "/v1/health", false)
	assert.Equal(t, http.StatusOK, code)
}

func TestSecureRoutesNeedToken(t *testing.T) {
	s := newServer(t, nil)
	for _, path := range []string{"/v1/engine/status", "/v1/rounds/current"} {
		code, _ := s.do(http.MethodGet, path, false)
		assert.Equal(t, http.StatusUnauthorized, code, path)
	}
	code, _ := s.do(http.MethodPost, "/v1/engine/start", false)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Zero(t, s.control.started)
}

func TestEngineStartStop(t *testing.T) {
	s := newServer(t, nil)

	code, _ := s.do(http.MethodPost, "/v1/engine/start", true)
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(http.MethodPost, "/v1/engine/start", true)
	assert.Equal(t, http.StatusConflict, code)

	code, rsp := s.do(http.MethodGet, "/v1/engine/status", true)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, rsp.Data.(map[string]interface{})["running"])

	code, _ = s.do(http.MethodPost, "/v1/engine/stop", true)
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(http.MethodPost, "/v1/engine/stop", true)
	assert.Equal(t, http.StatusConflict, code)
}

func TestCurrentRound(t *testing.T) {
	s := newServer(t, nil)
	code, _ := s.do(http.MethodGet, "/v1/rounds/current", true)
	assert.Equal(t, http.StatusNotFound, code)

	s.rounds.round = &models.GameRound{ID: 3, RoundNumber: 2, Status: models.StatusActive}
	code, rsp := s.do(http.MethodGet, "/v1/rounds/current", true)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "active", rsp.Data.(map[string]interface{})["status"])
}

func TestCheckWinners(t *testing.T) {
	s := newServer(t, nil)
	s.rounds.round = &models.GameRound{ID: 3, Status: models.StatusActive}
	s.rounds.settled = true

	code, rsp := s.do(http.MethodPost, "/v1/rounds/3/check-winners", true)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, rsp.Data.(map[string]interface{})["settled"])

	code, _ = s.do(http.MethodPost, "/v1/rounds/9/check-winners", true)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(http.MethodPost, "/v1/rounds/abc/check-winners", true)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRoundStatusFromMirror(t *testing.T) {
	s := newServer(t, nil)
	code, _ := s.do(http.MethodGet, "/v1/rounds/status", false)
	assert.Equal(t, http.StatusServiceUnavailable, code)

	s = newServer(t, fakeMirror{})
	code, _ = s.do(http.MethodGet, "/v1/rounds/status", false)
	assert.Equal(t, http.StatusNotFound, code)

	s = newServer(t, fakeMirror{st: &db.RoundStatus{RoundID: 4, Status: "active", LastNumber: 12}})
	code, rsp := s.do(http.MethodGet, "/v1/rounds/status", false)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(12), rsp.Data.(map[string]interface{})["last_number"])
}
