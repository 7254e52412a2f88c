// Package engine drives bingo rounds: it opens selection windows, starts
// play, draws numbers, detects and verifies winners and settles payouts
// exactly once per round.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/avvvet/bingo-engine/internal/cache"
	"github.com/avvvet/bingo-engine/internal/gamesvc/models"
	"github.com/avvvet/bingo-engine/internal/gamesvc/store"
	"github.com/coder/quartz"
	log "github.com/sirupsen/logrus"
)

const currentKey = "current"

// Action names what a tick did.
type Action string

const (
	ActionIdle     Action = "idle"
	ActionCooldown Action = "cooldown"
	ActionCreated  Action = "created"
	ActionWaiting  Action = "waiting"
	ActionStarted  Action = "started"
	ActionCalled   Action = "called"
	ActionFinished Action = "finished"
)

type Report struct {
	RoundID   int64
	Action    Action
	Number    int
	Call      CallOutcome
	Win       WinOutcome
	Settle    SettleOutcome
	Conflicts int
}

type Engine struct {
	repo   store.Repository
	notify Notifier
	clock  quartz.Clock
	cfg    Config

	rngMu sync.Mutex
	rng   *rand.Rand

	rounds *cache.TTL[string, *models.GameRound]

	// mu serializes ticks and forced checks.
	mu          sync.Mutex
	concluded   int64
	nextRoundAt time.Time
}

type Option func(*Engine)

func WithClock(c quartz.Clock) Option { return func(e *Engine) { e.clock = c } }

func WithNotifier(n Notifier) Option { return func(e *Engine) { e.notify = n } }

func WithRand(r *rand.Rand) Option { return func(e *Engine) { e.rng = r } }

func New(repo store.Repository, cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	e := &Engine{
		repo:   repo,
		cfg:    cfg,
		clock:  quartz.NewReal(),
		notify: Notifiers(nil),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(e.clock.Now().UnixNano()))
	}
	e.rounds = cache.NewTTL[string, *models.GameRound](e.clock, cfg.RoundCacheTTL, 8)
	return e, nil
}

// Tick advances the engine by one step. It never blocks on a cooldown.
func (e *Engine) Tick(ctx context.Context) (Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	e.rounds.Sweep()

	round, err := e.currentRound(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return e.nextRound(ctx, now)
	}
	if err != nil {
		return Report{}, transient("current round", err)
	}

	switch round.Status {
	case models.StatusWaiting:
		if now.Before(round.SelectionEndTime) {
			return Report{RoundID: round.ID, Action: ActionWaiting}, nil
		}
		return e.startRound(ctx, round, now)
	case models.StatusActive:
		if e.concluded == round.ID {
			return Report{RoundID: round.ID, Action: ActionIdle}, nil
		}
		return e.playRound(ctx, round, now)
	}
	return Report{RoundID: round.ID, Action: ActionIdle}, nil
}

// CurrentRound returns the waiting or active round, at most
// RoundCacheTTL stale. It returns nil when there is none.
func (e *Engine) CurrentRound(ctx context.Context) (*models.GameRound, error) {
	r, err := e.currentRound(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r.Clone(), nil
}

func (e *Engine) currentRound(ctx context.Context) (*models.GameRound, error) {
	if r, ok := e.rounds.Get(currentKey); ok {
		return r, nil
	}
	r, err := e.repo.CurrentRound(ctx)
	if err != nil {
		return nil, err
	}
	e.rounds.Set(currentKey, r)
	return r, nil
}

// cacheRound memoizes a copy of r as the current round.
func (e *Engine) cacheRound(r *models.GameRound) {
	e.rounds.Set(currentKey, r.Clone())
}

func (e *Engine) appendCached(roundID int64, n int) {
	e.rounds.Update(currentKey, func(r *models.GameRound) *models.GameRound {
		if r.ID != roundID {
			return r
		}
		cp := r.Clone()
		cp.CalledNumbers = append(cp.CalledNumbers, n)
		return cp
	})
}

// conclude makes the engine a no-op for round id and arms the cooldown.
func (e *Engine) conclude(id int64, at time.Time) {
	e.concluded = id
	e.rounds.Delete(currentKey)
	e.nextRoundAt = at.Add(e.cfg.Cooldown)
}

func (e *Engine) emit(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = e.clock.Now()
	}
	if ev.Round != nil {
		ev.Round = ev.Round.Clone()
	}
	e.notify.Notify(ctx, ev)
}

func (e *Engine) pick(candidates []int) int {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return candidates[e.rng.Intn(len(candidates))]
}

func roundFields(r *models.GameRound) log.Fields {
	return log.Fields{"round": r.RoundNumber, "round_id": r.ID}
}
