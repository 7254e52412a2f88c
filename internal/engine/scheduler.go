package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/avvvet/bingo-engine/internal/gamesvc/models"
	"github.com/coder/quartz"
	log "github.com/sirupsen/logrus"
)

const (
	MinTickInterval = time.Second
	MaxTickInterval = 3 * time.Second
)

// Ticker is the unit of work the scheduler drives.
type Ticker interface {
	Tick(ctx context.Context) (Report, error)
}

// StateSaver persists the heartbeat read by the recovery policy.
type StateSaver interface {
	SaveEngineState(ctx context.Context, st models.EngineState) error
}

type Status struct {
	Running           bool          `json:"running"`
	InstanceID        string        `json:"instance_id"`
	StartedAt         time.Time     `json:"started_at"`
	LastTick          time.Time     `json:"last_tick"`
	Ticks             int64         `json:"ticks"`
	ConsecutiveErrors int           `json:"consecutive_errors"`
	LastError         string        `json:"last_error,omitempty"`
	LastAction        Action        `json:"last_action,omitempty"`
	Interval          time.Duration `json:"interval"`
}

// Scheduler runs ticks on a fixed period. Only one loop may run per
// scheduler at a time.
type Scheduler struct {
	ticker      Ticker
	state       StateSaver
	clock       quartz.Clock
	interval    time.Duration
	maxFailures int
	instanceID  string

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	status Status
}

// ClampInterval keeps the tick period within [MinTickInterval, MaxTickInterval].
func ClampInterval(d time.Duration) time.Duration {
	if d < MinTickInterval {
		return MinTickInterval
	}
	if d > MaxTickInterval {
		return MaxTickInterval
	}
	return d
}

func NewScheduler(t Ticker, state StateSaver, clock quartz.Clock, interval time.Duration, maxFailures int, instanceID string) *Scheduler {
	if maxFailures <= 0 {
		maxFailures = 10
	}
	interval = ClampInterval(interval)
	return &Scheduler{
		ticker:      t,
		state:       state,
		clock:       clock,
		interval:    interval,
		maxFailures: maxFailures,
		instanceID:  instanceID,
		status:      Status{InstanceID: instanceID, Interval: interval},
	}
}

// Start launches the loop in the background.
func (s *Scheduler) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	if err := s.acquire(cancel, done); err != nil {
		cancel()
		return err
	}
	go func() {
		defer close(done)
		if err := s.loop(runCtx); err != nil {
			log.WithError(err).Error("engine scheduler stopped")
		}
	}()
	return nil
}

// Run blocks until ctx ends or the loop gives up.
func (s *Scheduler) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan struct{})
	defer close(done)
	if err := s.acquire(cancel, done); err != nil {
		return err
	}
	return s.loop(runCtx)
}

// Stop ends the loop and records that the engine was stopped on
// purpose, so the next start does not resume mid-round.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return ErrNotRunning
	}

	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.saveState(ctx, false)
}

// Wait blocks until the running loop, if any, has exited. Unlike Stop it
// leaves the persisted heartbeat untouched.
func (s *Scheduler) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Scheduler) acquire(cancel context.CancelFunc, done chan struct{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrAlreadyRunning
	}
	s.cancel, s.done = cancel, done
	s.status.Running = true
	s.status.StartedAt = s.clock.Now()
	s.status.ConsecutiveErrors = 0
	return nil
}

func (s *Scheduler) release() {
	s.mu.Lock()
	s.cancel, s.done = nil, nil
	s.status.Running = false
	s.mu.Unlock()
}

func (s *Scheduler) loop(ctx context.Context) error {
	defer s.release()

	t := s.clock.NewTicker(s.interval, "scheduler")
	defer t.Stop()

	log.WithFields(log.Fields{"interval": s.interval, "instance": s.instanceID}).Info("engine scheduler started")
	for {
		select {
		case <-ctx.Done():
			log.Info("engine scheduler shutting down")
			return nil
		case <-t.C:
			if err := s.step(ctx); err != nil {
				if serr := s.saveState(context.Background(), false); serr != nil {
					log.WithError(serr).Warn("could not persist engine state")
				}
				return err
			}
		}
	}
}

// step runs one tick and decides skip, retry or abort from the error kind.
func (s *Scheduler) step(ctx context.Context) error {
	rep, err := s.ticker.Tick(ctx)
	now := s.clock.Now()

	s.mu.Lock()
	s.status.Ticks++
	s.status.LastTick = now
	s.status.LastAction = rep.Action
	failures := s.status.ConsecutiveErrors
	if err == nil {
		s.status.ConsecutiveErrors = 0
		s.status.LastError = ""
	} else {
		s.status.LastError = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		switch KindOf(err) {
		case KindConflict:
			log.WithError(err).Debug("tick lost a race, skipping")
		case KindFatal:
			log.WithError(err).Error("fatal tick error")
			return err
		default:
			failures++
			s.mu.Lock()
			s.status.ConsecutiveErrors = failures
			s.mu.Unlock()
			log.WithError(err).WithField("consecutive", failures).Warn("tick failed")
			if failures >= s.maxFailures {
				return fmt.Errorf("%w: %v", ErrTooManyFailures, err)
			}
		}
	}

	if err := s.saveState(ctx, true); err != nil {
		log.WithError(err).Warn("heartbeat failed")
	}
	return nil
}

func (s *Scheduler) saveState(ctx context.Context, running bool) error {
	if s.state == nil {
		return nil
	}
	st := s.Status()
	return s.state.SaveEngineState(ctx, models.EngineState{
		Running:      running,
		StartedAt:    st.StartedAt,
		LastActivity: s.clock.Now(),
		InstanceID:   s.instanceID,
	})
}
