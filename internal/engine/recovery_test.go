package engine

import (
	"testing"
	"time"

	"github.com/avvvet/bingo-engine/internal/gamesvc/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldResume(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	window := 5 * time.Minute

	assert.False(t, ShouldResume(nil, now, window))
	assert.False(t, ShouldResume(&models.EngineState{Running: false, LastActivity: now}, now, window))
	assert.True(t, ShouldResume(&models.EngineState{Running: true, LastActivity: now.Add(-time.Minute)}, now, window))
	assert.False(t, ShouldResume(&models.EngineState{Running: true, LastActivity: now.Add(-window)}, now, window))
}

func stakedActiveRound(t *testing.T, h *harness) (*models.GameRound, *models.User) {
	round := h.openRound()
	p := h.store.AddUser("p", nil, decimal.NewFromInt(10))
	require.NoError(t, h.store.Debit(h.ctx, models.Posting{
		UserID: p.UserId, Amount: decimal.NewFromInt(10), TType: models.TxBet, TRef: "bet-1", RoundID: &round.ID,
	}))
	h.join(round, p, offsetCard(0), 10)
	h.startRound(round.ID)
	return round, p
}

func TestRecoverCancelsStaleRound(t *testing.T) {
	h := newHarness(t)
	round, p := stakedActiveRound(t, h)
	require.NoError(t, h.store.SaveEngineState(h.ctx, models.EngineState{Running: true, LastActivity: h.clk.Now()}))
	h.clk.Advance(10 * time.Minute).MustWait(h.ctx)

	restarted := newHarnessOn(t, h.clk, h.store, nil)
	resumed, err := restarted.eng.Recover(h.ctx, 5*time.Minute)
	require.NoError(t, err)
	assert.False(t, resumed)

	got, _ := h.store.GetRound(h.ctx, round.ID)
	assert.Equal(t, models.StatusCancelled, got.Status)
	assert.Equal(t, "10.00", h.balance(p.UserId))
	assert.Len(t, ledgerOf(h.store, models.TxRefund), 1)

	sels, _ := h.store.ActiveSelections(h.ctx, round.ID)
	assert.Empty(t, sels)
	assert.Equal(t, 1, restarted.events.count(EventRoundCancelled))

	assert.Equal(t, ActionCooldown, restarted.tick().Action)
	h.clk.Advance(5 * time.Second).MustWait(h.ctx)
	next := restarted.openRound()
	assert.Equal(t, round.RoundNumber+1, next.RoundNumber)
}

func TestRecoverResumesRecentRun(t *testing.T) {
	h := newHarness(t)
	round, _ := stakedActiveRound(t, h)
	require.NoError(t, h.store.SaveEngineState(h.ctx, models.EngineState{Running: true, LastActivity: h.clk.Now()}))
	h.clk.Advance(time.Minute).MustWait(h.ctx)

	restarted := newHarnessOn(t, h.clk, h.store, nil)
	resumed, err := restarted.eng.Recover(h.ctx, 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, resumed)

	got, _ := h.store.GetRound(h.ctx, round.ID)
	assert.Equal(t, models.StatusActive, got.Status)
	assert.Equal(t, ActionCalled, restarted.tick().Action)
}

func TestRecoverLeavesWaitingRound(t *testing.T) {
	h := newHarness(t)
	round := h.openRound()

	resumed, err := h.eng.Recover(h.ctx, 5*time.Minute)
	require.NoError(t, err)
	assert.False(t, resumed)
	got, _ := h.store.GetRound(h.ctx, round.ID)
	assert.Equal(t, models.StatusWaiting, got.Status)
}
