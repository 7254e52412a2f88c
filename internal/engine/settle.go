package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/avvvet/bingo-engine/internal/bingo"
	"github.com/avvvet/bingo-engine/internal/gamesvc/models"
	"github.com/avvvet/bingo-engine/internal/gamesvc/store"
	log "github.com/sirupsen/logrus"
)

// settle closes the round and pays winners in one transaction holding
// the round row lock. A round that is already terminal is left alone.
// Any failure rolls back and force-closes the round without payout.
func (e *Engine) settle(ctx context.Context, roundID int64, winners []Winner) (SettleOutcome, error) {
	now := e.clock.Now()
	outcome := SettleDone

	var (
		finished *models.GameRound
		split    bingo.Split
	)
	err := e.repo.WithTx(ctx, func(tx store.Repository) error {
		r, err := tx.LockRound(ctx, roundID)
		if err != nil {
			return err
		}
		if r.Status.Terminal() {
			outcome = SettleAlready
			return nil
		}

		split = bingo.SplitPrize(r.TotalStake, e.cfg.PrizeRate, len(winners))
		for i, w := range winners {
			if share := split.Shares[i]; share.IsPositive() {
				if err := tx.Credit(ctx, models.Posting{
					UserID:  w.UserID,
					Amount:  share,
					TType:   models.TxWon,
					TRef:    fmt.Sprintf("won:%d:%d", r.ID, w.SelectionID),
					RoundID: &r.ID,
				}); err != nil {
					return fmt.Errorf("credit winner %d: %w", w.UserID, err)
				}
			}
			if err := tx.MarkWon(ctx, w.SelectionID); err != nil {
				return err
			}
		}

		primary := winners[0]
		if split.Fee.IsPositive() {
			feeAccount, err := e.feeAccount(ctx, tx, primary.UserID)
			if err != nil {
				return err
			}
			if err := tx.Credit(ctx, models.Posting{
				UserID:  feeAccount,
				Amount:  split.Fee,
				TType:   models.TxAdminFee,
				TRef:    fmt.Sprintf("fee:%d", r.ID),
				RoundID: &r.ID,
			}); err != nil {
				return fmt.Errorf("credit fee: %w", err)
			}
		}

		pattern := primary.Pattern
		if len(winners) > 1 {
			pattern = fmt.Sprintf("%s (Split among %d winners)", pattern, len(winners))
		}
		if err := tx.FinishRound(ctx, r.ID, models.RoundResult{
			Winner:         &primary.UserID,
			WinningCard:    &primary.CardID,
			WinningPattern: pattern,
			WinningNumbers: primary.Numbers,
			PrizePool:      split.Pool,
			AdminFee:       split.Fee,
			EndTime:        now,
		}); err != nil {
			return err
		}
		finished, err = tx.GetRound(ctx, r.ID)
		return err
	})

	if err != nil {
		log.WithField("round_id", roundID).WithField("reconcile", true).WithError(err).
			Error("settlement failed, force closing round without payout")
		if cerr := e.repo.CloseRound(ctx, roundID, models.StatusFinished, now); cerr != nil {
			return SettleNone, transient("emergency close", errors.Join(err, cerr))
		}
		outcome = SettleForceClosed
		finished, _ = e.repo.GetRound(ctx, roundID)
	}

	e.conclude(roundID, now)
	if finished == nil {
		return outcome, nil
	}

	fields := roundFields(finished)
	if outcome == SettleDone {
		log.WithFields(fields).WithFields(log.Fields{
			"winners": len(winners),
			"pattern": finished.WinningPattern,
			"prize":   split.Pool.StringFixed(2),
			"fee":     split.Fee.StringFixed(2),
		}).Info("round settled")
	}
	ev := Event{Type: EventGameFinished, Round: finished, Outcome: outcome}
	if outcome == SettleDone {
		ev.Winners = winners
	}
	e.emit(ctx, ev)
	return outcome, nil
}

// feeAccount resolves the account credited with the house fee: the
// winner's agent when one is configured, otherwise the house account.
func (e *Engine) feeAccount(ctx context.Context, tx store.Repository, winnerID int64) (int64, error) {
	u, err := tx.GetUser(ctx, winnerID)
	switch {
	case err == nil && u.AgentID != nil:
		return *u.AgentID, nil
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return 0, fmt.Errorf("winner account: %w", err)
	}
	house, err := tx.EnsureUser(ctx, e.cfg.HouseAccount)
	if err != nil {
		return 0, err
	}
	return house.UserId, nil
}
