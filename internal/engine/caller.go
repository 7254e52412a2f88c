package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avvvet/bingo-engine/internal/bingo"
	"github.com/avvvet/bingo-engine/internal/gamesvc/models"
	"github.com/avvvet/bingo-engine/internal/gamesvc/store"
	log "github.com/sirupsen/logrus"
)

// draw records one uniformly random number not yet in called. A losing
// insert drops the number and retries once; a second failure falls back
// to a plain insert outside a transaction.
func (e *Engine) draw(ctx context.Context, round *models.GameRound, called bingo.NumberSet, now time.Time) (int, CallOutcome, int, error) {
	candidates := available(called)
	if len(candidates) == 0 {
		return 0, CallExhausted, 0, nil
	}

	conflicts := 0
	for attempt := 0; attempt < 2 && len(candidates) > 0; attempt++ {
		n := e.pick(candidates)
		err := e.record(ctx, round.ID, n, now)
		switch {
		case err == nil:
			return n, CallRecorded, conflicts, nil
		case errors.Is(err, errRoundClosed):
			return 0, CallSkipped, conflicts, nil
		case errors.Is(err, store.ErrDuplicateCall):
			conflicts++
			log.WithFields(roundFields(round)).WithField("number", n).Warn("number already called by another writer")
		default:
			log.WithFields(roundFields(round)).WithError(err).Warn("draw failed")
		}
		candidates = without(candidates, n)
	}

	if len(candidates) == 0 {
		return 0, CallSkipped, conflicts, nil
	}
	return e.drawFallback(ctx, round, candidates, conflicts, now)
}

// record appends n to the durable log and to the round's called_numbers
// while holding the round row lock.
func (e *Engine) record(ctx context.Context, roundID int64, n int, now time.Time) error {
	return e.repo.WithTx(ctx, func(tx store.Repository) error {
		r, err := tx.LockRound(ctx, roundID)
		if err != nil {
			return err
		}
		if r.Status != models.StatusActive {
			return errRoundClosed
		}
		if err := tx.InsertCalledNumber(ctx, models.CalledNumber{
			RoundID: r.ID, Letter: bingo.Letter(n), Number: n, CalledAt: now,
		}); err != nil {
			return err
		}
		return tx.AppendCalledNumber(ctx, r.ID, n)
	})
}

func (e *Engine) drawFallback(ctx context.Context, round *models.GameRound, candidates []int, conflicts int, now time.Time) (int, CallOutcome, int, error) {
	r, err := e.repo.GetRound(ctx, round.ID)
	if err != nil {
		return 0, CallSkipped, conflicts, transient("draw fallback", err)
	}
	if r.Status != models.StatusActive {
		return 0, CallSkipped, conflicts, nil
	}

	n := e.pick(candidates)
	err = e.repo.InsertCalledNumber(ctx, models.CalledNumber{
		RoundID: r.ID, Letter: bingo.Letter(n), Number: n, CalledAt: now,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateCall) {
			return 0, CallSkipped, conflicts + 1, conflict("draw fallback", err)
		}
		return 0, CallSkipped, conflicts, transient("draw fallback", err)
	}
	if err := e.repo.AppendCalledNumber(ctx, r.ID, n); err != nil {
		log.WithFields(roundFields(r)).WithError(err).Warn("called_numbers append failed, resync will repair")
	}
	return n, CallRecorded, conflicts, nil
}

// markAll marks n on every active card that holds it.
func (e *Engine) markAll(ctx context.Context, roundID int64, n int) error {
	return e.repo.WithTx(ctx, func(tx store.Repository) error {
		sels, err := tx.ActiveSelections(ctx, roundID)
		if err != nil {
			return err
		}
		return markNumbers(ctx, tx, sels, []int{n})
	})
}

// markNumbers appends each number to the selections whose card holds it.
// Already marked positions are left alone.
func markNumbers(ctx context.Context, repo store.Repository, sels []*models.PlayerSelection, numbers []int) error {
	for _, sel := range sels {
		changed := false
		for _, n := range numbers {
			if pos, ok := sel.Card.PositionOf(n); ok && sel.Mark(n, pos) {
				changed = true
			}
		}
		if changed {
			if err := repo.SaveMarks(ctx, sel); err != nil {
				return fmt.Errorf("save marks for selection %d: %w", sel.ID, err)
			}
		}
	}
	return nil
}

// resync rewrites the round's called_numbers from the durable log when
// they differ and returns the refreshed round.
func (e *Engine) resync(ctx context.Context, round *models.GameRound, entries []models.CalledNumber) (*models.GameRound, error) {
	numbers := numbersOf(entries)
	if err := checkLog(numbers); err != nil {
		return round, fatal("resync", err)
	}
	if equalInts(round.CalledNumbers, numbers) {
		return round, nil
	}

	if err := e.repo.SetCalledNumbers(ctx, round.ID, numbers); err != nil {
		return round, transient("resync", err)
	}
	log.WithFields(roundFields(round)).WithFields(log.Fields{
		"cached": len(round.CalledNumbers),
		"log":    len(numbers),
	}).Info("called numbers resynced from log")

	synced := round.Clone()
	synced.CalledNumbers = numbers
	if cur, ok := e.rounds.Get(currentKey); ok && cur.ID == round.ID {
		e.cacheRound(synced)
	}
	return synced, nil
}

// Resync rebuilds called_numbers of every round from the durable log and
// returns how many rounds changed.
func Resync(ctx context.Context, repo store.Repository) (int, error) {
	ids, err := repo.RoundIDs(ctx)
	if err != nil {
		return 0, err
	}
	changed := 0
	for _, id := range ids {
		err := repo.WithTx(ctx, func(tx store.Repository) error {
			r, err := tx.LockRound(ctx, id)
			if err != nil {
				return err
			}
			entries, err := tx.CallLog(ctx, id)
			if err != nil {
				return err
			}
			numbers := numbersOf(entries)
			if equalInts(r.CalledNumbers, numbers) {
				return nil
			}
			changed++
			return tx.SetCalledNumbers(ctx, id, numbers)
		})
		if err != nil {
			return changed, fmt.Errorf("resync round %d: %w", id, err)
		}
	}
	return changed, nil
}

func numbersOf(entries []models.CalledNumber) []int {
	out := make([]int, len(entries))
	for i, c := range entries {
		out[i] = c.Number
	}
	return out
}

func available(called bingo.NumberSet) []int {
	out := make([]int, 0, bingo.MaxNumber-len(called))
	for n := 1; n <= bingo.MaxNumber; n++ {
		if !called.Has(n) {
			out = append(out, n)
		}
	}
	return out
}

func without(in []int, n int) []int {
	out := make([]int, 0, len(in))
	for _, v := range in {
		if v != n {
			out = append(out, v)
		}
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func checkLog(numbers []int) error {
	if len(numbers) > bingo.MaxNumber {
		return fmt.Errorf("%w: %d calls", errCorruptLog, len(numbers))
	}
	seen := make(bingo.NumberSet, len(numbers))
	for _, n := range numbers {
		if !bingo.Valid(n) || seen.Has(n) {
			return fmt.Errorf("%w: number %d", errCorruptLog, n)
		}
		seen[n] = struct{}{}
	}
	return nil
}
