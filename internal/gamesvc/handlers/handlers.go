package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/avvvet/bingo-engine/internal/db"
	"github.com/avvvet/bingo-engine/internal/engine"
	"github.com/avvvet/bingo-engine/internal/gamesvc/models"
	"github.com/avvvet/bingo-engine/internal/gamesvc/store"
	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"
)

// EngineControl is the scheduler surface exposed over HTTP.
type EngineControl interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Status() engine.Status
}

type Rounds interface {
	CurrentRound(ctx context.Context) (*models.GameRound, error)
	ForceWinnerCheck(ctx context.Context, roundID int64) (bool, error)
}

type StatusReader interface {
	Latest(ctx context.Context) (*db.RoundStatus, error)
}

type Handler struct {
	tokenAuth *jwtauth.JWTAuth
	// base outlives requests; the scheduler loop runs under it.
	base    context.Context
	control EngineControl
	rounds  Rounds
	mirror  StatusReader
	port    string
}

func NewHandler(base context.Context, control EngineControl, rounds Rounds, mirror StatusReader, port string) *Handler {
	return &Handler{base: base, control: control, rounds: rounds, mirror: mirror, port: port}
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error,omitempty"`
}

func (h *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)

	json.NewEncoder(w).Encode(rsp)
}

func (h *Handler) fail(w http.ResponseWriter, code int, msg string, err error) {
	rsp := Response{Message: msg, Code: code}
	if err != nil {
		rsp.Error = err.Error()
	}
	h.CreateResponse(w, rsp)
}

// HealthHandler answers 503 while the scheduler is not running so a
// supervisor can restart a stalled engine.
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	st := h.control.Status()
	rsp := Response{
		Message: "engine service is running at port " + h.port,
		Code:    http.StatusOK,
		Data:    map[string]bool{"engine_running": st.Running},
	}
	if !st.Running {
		rsp.Message = "engine scheduler is not running"
		rsp.Code = http.StatusServiceUnavailable
		rsp.Error = st.LastError
	}
	h.CreateResponse(w, rsp)
}

func (h *Handler) EngineStatusHandler(w http.ResponseWriter, r *http.Request) {
	h.CreateResponse(w, Response{Message: "engine status", Code: http.StatusOK, Data: h.control.Status()})
}

func (h *Handler) EngineStartHandler(w http.ResponseWriter, r *http.Request) {
	err := h.control.Start(h.base)
	if errors.Is(err, engine.ErrAlreadyRunning) {
		h.fail(w, http.StatusConflict, "engine already running", err)
		return
	}
	if err != nil {
		h.fail(w, http.StatusInternalServerError, "unable to start engine", err)
		return
	}
	log.WithField("remote", r.RemoteAddr).Info("engine started over http")
	h.CreateResponse(w, Response{Message: "engine started", Code: http.StatusOK, Data: h.control.Status()})
}

func (h *Handler) EngineStopHandler(w http.ResponseWriter, r *http.Request) {
	err := h.control.Stop(r.Context())
	if errors.Is(err, engine.ErrNotRunning) {
		h.fail(w, http.StatusConflict, "engine is not running", err)
		return
	}
	if err != nil {
		h.fail(w, http.StatusInternalServerError, "unable to stop engine", err)
		return
	}
	log.WithField("remote", r.RemoteAddr).Info("engine stopped over http")
	h.CreateResponse(w, Response{Message: "engine stopped", Code: http.StatusOK, Data: h.control.Status()})
}

func (h *Handler) CurrentRoundHandler(w http.ResponseWriter, r *http.Request) {
	round, err := h.rounds.CurrentRound(r.Context())
	if err != nil {
		h.fail(w, http.StatusInternalServerError, "unable to load round", err)
		return
	}
	if round == nil {
		h.fail(w, http.StatusNotFound, "no round in progress", nil)
		return
	}
	h.CreateResponse(w, Response{Message: "current round", Code: http.StatusOK, Data: round})
}

// RoundStatusHandler serves the mirrored status for polling clients.
func (h *Handler) RoundStatusHandler(w http.ResponseWriter, r *http.Request) {
	if h.mirror == nil {
		h.fail(w, http.StatusServiceUnavailable, "status mirror disabled", nil)
		return
	}
	st, err := h.mirror.Latest(r.Context())
	if errors.Is(err, db.ErrNoStatus) {
		h.fail(w, http.StatusNotFound, "no recent round status", nil)
		return
	}
	if err != nil {
		h.fail(w, http.StatusInternalServerError, "unable to load round status", err)
		return
	}
	h.CreateResponse(w, Response{Message: "round status", Code: http.StatusOK, Data: st})
}

func (h *Handler) CheckWinnersHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.fail(w, http.StatusBadRequest, "invalid round id", err)
		return
	}

	settled, err := h.rounds.ForceWinnerCheck(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		h.fail(w, http.StatusNotFound, "round not found", err)
		return
	}
	if err != nil {
		h.fail(w, http.StatusInternalServerError, "winner check failed", err)
		return
	}
	log.WithFields(log.Fields{"round": id, "settled": settled}).Info("forced winner check")
	h.CreateResponse(w, Response{
		Message: "winner check complete",
		Code:    http.StatusOK,
		Data:    map[string]interface{}{"round_id": id, "settled": settled},
	})
}
