package handlers

import (
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"
)

func (h *Handler) SetRoutes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {

		// public routes here
		r.Get("/health", h.HealthHandler)
		r.Get("/rounds/status", h.RoundStatusHandler)

		// Secure routes
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(h.tokenAuth))
			r.Use(jwtauth.Authenticator)

			r.Get("/engine/status", h.EngineStatusHandler)
			r.Post("/engine/start", h.EngineStartHandler)
			r.Post("/engine/stop", h.EngineStopHandler)
			r.Get("/rounds/current", h.CurrentRoundHandler)
			r.Post("/rounds/{id}/check-winners", h.CheckWinnersHandler)
		})
	})
}

func (h *Handler) InitAuth(secret string) {
	h.tokenAuth = jwtauth.New("HS256", []byte(secret), nil)

	if log.IsLevelEnabled(log.DebugLevel) {
		token, err := h.IssueToken(24 * time.Hour)
		if err == nil {
			log.Debugf("JWT for testing: %s", token)
		}
	}
}

// IssueToken signs an operator token valid for ttl.
func (h *Handler) IssueToken(ttl time.Duration) (string, error) {
	_, tokenString, err := h.tokenAuth.Encode(map[string]interface{}{
		"service_id": "bingo-engine",
		"exp":        time.Now().Add(ttl).Unix(),
	})
	return tokenString, err
}
