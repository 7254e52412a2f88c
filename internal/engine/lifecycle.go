package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avvvet/bingo-engine/internal/bingo"
	"github.com/avvvet/bingo-engine/internal/gamesvc/models"
	"github.com/avvvet/bingo-engine/internal/gamesvc/store"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// nextRound opens a new selection window once the cooldown after the
// previous round has passed. After a restart the deadline is derived
// from the latest round's end time.
func (e *Engine) nextRound(ctx context.Context, now time.Time) (Report, error) {
	if e.nextRoundAt.IsZero() {
		latest, err := e.repo.LatestRound(ctx)
		switch {
		case err == nil && latest.EndTime != nil:
			e.nextRoundAt = latest.EndTime.Add(e.cfg.Cooldown)
		case err == nil, errors.Is(err, store.ErrNotFound):
			e.nextRoundAt = now
		default:
			return Report{}, transient("latest round", err)
		}
	}
	if now.Before(e.nextRoundAt) {
		return Report{Action: ActionCooldown}, nil
	}

	r, err := e.repo.CreateRound(ctx, now.Add(e.cfg.SelectionWindow))
	if err != nil {
		if errors.Is(err, store.ErrRoundConflict) {
			return Report{Action: ActionIdle}, conflict("create round", err)
		}
		return Report{}, transient("create round", err)
	}

	e.nextRoundAt = time.Time{}
	e.concluded = 0
	e.cacheRound(r)

	log.WithFields(roundFields(r)).WithField("selection_end", r.SelectionEndTime).Info("round created")
	e.emit(ctx, Event{Type: EventRoundCreated, Round: r})
	return Report{RoundID: r.ID, Action: ActionCreated}, nil
}

// startRound activates a waiting round, marks FREE on every card and
// calls each card's FREE number, all in one transaction. A winner check
// follows immediately.
func (e *Engine) startRound(ctx context.Context, round *models.GameRound, now time.Time) (Report, error) {
	rep := Report{RoundID: round.ID, Action: ActionStarted}

	var (
		started   *models.GameRound
		freeCalls []int
	)
	err := e.repo.WithTx(ctx, func(tx store.Repository) error {
		r, err := tx.LockRound(ctx, round.ID)
		if err != nil {
			return err
		}
		if r.Status != models.StatusWaiting {
			return errNotWaiting
		}
		if _, err := tx.ActivateRound(ctx, r.ID, now); err != nil {
			return err
		}

		sels, err := tx.ActiveSelections(ctx, r.ID)
		if err != nil {
			return fmt.Errorf("active selections: %w", err)
		}
		for _, sel := range sels {
			if sel.Mark(sel.Card.FreeNumber(), bingo.FreePosition) {
				if err := tx.SaveMarks(ctx, sel); err != nil {
					return err
				}
			}
		}

		entries, err := tx.CallLog(ctx, r.ID)
		if err != nil {
			return fmt.Errorf("call log: %w", err)
		}
		called := bingo.NewNumberSet(numbersOf(entries))
		for _, sel := range sels {
			n := sel.Card.FreeNumber()
			if called.Has(n) {
				continue
			}
			called[n] = struct{}{}
			if err := tx.InsertCalledNumber(ctx, models.CalledNumber{
				RoundID: r.ID, Letter: bingo.Letter(n), Number: n, CalledAt: now,
			}); err != nil {
				return err
			}
			if err := tx.AppendCalledNumber(ctx, r.ID, n); err != nil {
				return err
			}
			if err := markNumbers(ctx, tx, sels, []int{n}); err != nil {
				return err
			}
			freeCalls = append(freeCalls, n)
		}

		started, err = tx.GetRound(ctx, r.ID)
		return err
	})
	if err != nil {
		e.rounds.Delete(currentKey)
		if errors.Is(err, errNotWaiting) {
			return Report{RoundID: round.ID, Action: ActionIdle}, conflict("start round", err)
		}
		return Report{}, transient("start round", err)
	}

	e.cacheRound(started)
	fields := roundFields(started)
	log.WithFields(fields).WithField("free_calls", len(freeCalls)).Info("game started")
	e.emit(ctx, Event{Type: EventGameStarted, Round: started})
	for _, n := range freeCalls {
		e.emit(ctx, Event{Type: EventNumberCalled, Round: started, Number: n, Letter: bingo.Letter(n)})
	}

	return e.judge(ctx, started, rep)
}

// playRound calls the next number once the call interval has passed and
// runs a winner check after it. All 75 called with no winner closes the
// round for the house.
func (e *Engine) playRound(ctx context.Context, round *models.GameRound, now time.Time) (Report, error) {
	rep := Report{RoundID: round.ID, Action: ActionIdle}

	entries, err := e.repo.CallLog(ctx, round.ID)
	if err != nil {
		return rep, transient("call log", err)
	}
	if len(round.CalledNumbers)%e.cfg.SyncEvery == 0 {
		if round, err = e.resync(ctx, round, entries); err != nil {
			return rep, err
		}
	}

	if n := len(entries); n > 0 && now.Sub(entries[n-1].CalledAt) < e.cfg.CallInterval {
		return rep, nil
	}

	called := bingo.NewNumberSet(numbersOf(entries))
	for _, n := range round.CalledNumbers {
		called[n] = struct{}{}
	}
	if len(called) >= bingo.MaxNumber {
		return e.closeNoWinner(ctx, round, now)
	}

	n, outcome, conflicts, err := e.draw(ctx, round, called, now)
	rep.Call, rep.Conflicts = outcome, conflicts
	if err != nil {
		return rep, err
	}
	switch outcome {
	case CallExhausted:
		return e.closeNoWinner(ctx, round, now)
	case CallSkipped:
		e.rounds.Delete(currentKey)
		return rep, nil
	}

	rep.Action, rep.Number = ActionCalled, n
	e.appendCached(round.ID, n)
	fields := roundFields(round)
	log.WithFields(fields).WithFields(log.Fields{
		"number": fmt.Sprintf("%s-%d", bingo.Letter(n), n),
		"total":  len(called) + 1,
	}).Info("number called")

	if err := e.markAll(ctx, round.ID, n); err != nil {
		// The next winner check re-marks from the durable log.
		log.WithFields(fields).WithError(err).Warn("marking failed")
	}
	e.emit(ctx, Event{Type: EventNumberCalled, Round: round, Number: n, Letter: bingo.Letter(n)})

	return e.judge(ctx, round, rep)
}

// judge runs the winner check, retrying once on failure, and settles
// when winners are found.
func (e *Engine) judge(ctx context.Context, round *models.GameRound, rep Report) (Report, error) {
	outcome, winners, err := e.checkWinners(ctx, round.ID)
	if err != nil {
		log.WithFields(roundFields(round)).WithError(err).Warn("winner check failed, forcing re-check")
		outcome, winners, err = e.checkWinners(ctx, round.ID)
		if err != nil {
			return rep, transient("winner check", err)
		}
	}
	rep.Win = outcome

	switch outcome {
	case WinClosed:
		e.conclude(round.ID, e.clock.Now())
	case WinFound:
		rep.Settle, err = e.settle(ctx, round.ID, winners)
		if err != nil {
			return rep, err
		}
		rep.Action = ActionFinished
	}
	return rep, nil
}

// closeNoWinner finishes an exhausted round and credits the whole stake
// to the house account.
func (e *Engine) closeNoWinner(ctx context.Context, round *models.GameRound, now time.Time) (Report, error) {
	rep := Report{RoundID: round.ID, Action: ActionFinished, Call: CallExhausted}

	var closed *models.GameRound
	err := e.repo.WithTx(ctx, func(tx store.Repository) error {
		r, err := tx.LockRound(ctx, round.ID)
		if err != nil {
			return err
		}
		if r.Status.Terminal() {
			rep.Settle = SettleAlready
			return nil
		}
		if r.TotalStake.IsPositive() {
			house, err := tx.EnsureUser(ctx, e.cfg.HouseAccount)
			if err != nil {
				return err
			}
			if err := tx.Credit(ctx, models.Posting{
				UserID:  house.UserId,
				Amount:  r.TotalStake,
				TType:   models.TxNoWinnerStake,
				TRef:    fmt.Sprintf("nowin:%d", r.ID),
				RoundID: &r.ID,
			}); err != nil {
				return fmt.Errorf("credit house: %w", err)
			}
		}
		if err := tx.FinishRound(ctx, r.ID, models.RoundResult{
			PrizePool: decimal.Zero,
			AdminFee:  r.TotalStake,
			EndTime:   now,
		}); err != nil {
			return err
		}
		rep.Settle = SettleDone
		closed, err = tx.GetRound(ctx, r.ID)
		return err
	})
	if err != nil {
		return rep, transient("close round without winner", err)
	}

	e.conclude(round.ID, now)
	if closed != nil {
		log.WithFields(roundFields(closed)).WithField("stake", closed.TotalStake.StringFixed(2)).
			Info("round ended with no winner, stake credited to house")
		e.emit(ctx, Event{Type: EventGameFinished, Round: closed, Outcome: rep.Settle})
	}
	return rep, nil
}
