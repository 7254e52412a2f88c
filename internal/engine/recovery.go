package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avvvet/bingo-engine/internal/gamesvc/models"
	"github.com/avvvet/bingo-engine/internal/gamesvc/store"
	log "github.com/sirupsen/logrus"
)

// ShouldResume reports whether the previous run was live recently enough
// to continue a round mid-play.
func ShouldResume(st *models.EngineState, now time.Time, window time.Duration) bool {
	return st != nil && st.Running && now.Sub(st.LastActivity) < window
}

// Recover applies the startup policy. Within the resume window the
// engine simply continues. Otherwise an active round is cancelled and
// every active stake refunded so play restarts from a fresh waiting
// round. It reports whether the engine resumed.
func (e *Engine) Recover(ctx context.Context, window time.Duration) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	st, err := e.repo.LoadEngineState(ctx)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return false, fmt.Errorf("load engine state: %w", err)
	}
	if ShouldResume(st, now, window) {
		log.WithField("last_activity", st.LastActivity).Info("resuming previous engine run")
		return true, nil
	}

	round, err := e.repo.CurrentRound(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("current round: %w", err)
	}
	if round.Status != models.StatusActive {
		return false, nil
	}
	return false, e.cancelRound(ctx, round.ID, now)
}

// cancelRound moves a live round to cancelled and refunds every active
// selection's stake in one transaction.
func (e *Engine) cancelRound(ctx context.Context, roundID int64, now time.Time) error {
	var (
		cancelled *models.GameRound
		refunds   int
	)
	err := e.repo.WithTx(ctx, func(tx store.Repository) error {
		r, err := tx.LockRound(ctx, roundID)
		if err != nil {
			return err
		}
		if r.Status.Terminal() {
			return nil
		}
		sels, err := tx.ActiveSelections(ctx, r.ID)
		if err != nil {
			return err
		}
		for _, sel := range sels {
			if sel.Stake.IsPositive() {
				if err := tx.Credit(ctx, models.Posting{
					UserID:  sel.UserID,
					Amount:  sel.Stake,
					TType:   models.TxRefund,
					TRef:    fmt.Sprintf("cancel:%d:%d", r.ID, sel.ID),
					RoundID: &r.ID,
				}); err != nil {
					return fmt.Errorf("refund selection %d: %w", sel.ID, err)
				}
				refunds++
			}
			if err := tx.DeactivateSelection(ctx, sel.ID); err != nil {
				return err
			}
		}
		if err := tx.CloseRound(ctx, r.ID, models.StatusCancelled, now); err != nil {
			return err
		}
		cancelled, err = tx.GetRound(ctx, r.ID)
		return err
	})
	if err != nil {
		return fmt.Errorf("cancel round %d: %w", roundID, err)
	}

	e.conclude(roundID, now)
	if cancelled != nil {
		log.WithFields(roundFields(cancelled)).WithField("refunds", refunds).Warn("stale round cancelled")
		e.emit(ctx, Event{Type: EventRoundCancelled, Round: cancelled})
	}
	return nil
}
