package engine

import (
	"context"
	"fmt"

	"github.com/avvvet/bingo-engine/internal/bingo"
	"github.com/avvvet/bingo-engine/internal/gamesvc/models"
)

// checkWinners judges every active selection against the durable log.
// It refreshes the round, resyncs its called_numbers and re-marks cards
// from the log before matching.
func (e *Engine) checkWinners(ctx context.Context, roundID int64) (WinOutcome, []Winner, error) {
	round, err := e.repo.GetRound(ctx, roundID)
	if err != nil {
		return WinNone, nil, fmt.Errorf("refresh round: %w", err)
	}
	if round.Status != models.StatusActive {
		return WinClosed, nil, nil
	}

	entries, err := e.repo.CallLog(ctx, roundID)
	if err != nil {
		return WinNone, nil, fmt.Errorf("call log: %w", err)
	}
	if _, err := e.resync(ctx, round, entries); err != nil {
		return WinNone, nil, err
	}
	numbers := numbersOf(entries)
	called := bingo.NewNumberSet(numbers)

	sels, err := e.repo.ActiveSelections(ctx, roundID)
	if err != nil {
		return WinNone, nil, fmt.Errorf("active selections: %w", err)
	}
	if err := markNumbers(ctx, e.repo, sels, numbers); err != nil {
		return WinNone, nil, err
	}

	var winners []Winner
	for _, sel := range sels {
		if w, ok := judgeSelection(sel, called); ok {
			winners = append(winners, w)
		}
	}
	if len(winners) == 0 {
		return WinNone, nil, nil
	}
	return WinFound, winners, nil
}

// judgeSelection matches the marked positions and keeps only patterns
// whose numbers were durably called. The first verified pattern in
// catalog order is the reported one.
func judgeSelection(sel *models.PlayerSelection, called bingo.NumberSet) (Winner, bool) {
	matched := bingo.Match(sel.MarkedPositions)
	if len(matched) == 0 {
		return Winner{}, false
	}
	wins := bingo.Verify(sel.Card, matched, called)
	if len(wins) == 0 {
		return Winner{}, false
	}

	w := Winner{
		SelectionID: sel.ID,
		UserID:      sel.UserID,
		CardID:      sel.CardID,
		Pattern:     wins[0].Pattern,
		Positions:   wins[0].Positions,
		Numbers:     wins[0].Numbers,
	}
	for _, win := range wins {
		w.Patterns = append(w.Patterns, win.Pattern)
	}
	return w, true
}

// ForceWinnerCheck re-runs the winner check for a round out of band and
// settles it when winners are found. It reports whether the round was
// settled by this call.
func (e *Engine) ForceWinnerCheck(ctx context.Context, roundID int64) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	outcome, winners, err := e.checkWinners(ctx, roundID)
	if err != nil {
		return false, err
	}
	if outcome != WinFound {
		return false, nil
	}
	settled, err := e.settle(ctx, roundID, winners)
	if err != nil {
		return false, err
	}
	return settled == SettleDone, nil
}
