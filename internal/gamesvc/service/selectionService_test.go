package service

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/avvvet/bingo-engine/internal/gamesvc/models"
	"github.com/avvvet/bingo-engine/internal/gamesvc/store"
	"github.com/avvvet/bingo-engine/internal/gamesvc/store/memstore"
	"github.com/coder/quartz"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	ctx   context.Context
	st    *memstore.Store
	svc   *SelectionService
	round *models.GameRound
}

func newFixture(t *testing.T) *fixture {
	ctx := context.Background()
	clk := quartz.NewMock(t)
	st := memstore.New(clk)

	_, err := NewCardService(st, rand.New(rand.NewSource(1))).Generate(ctx, 5)
	require.NoError(t, err)
	round, err := st.CreateRound(ctx, clk.Now().Add(time.Minute))
	require.NoError(t, err)

	return &fixture{ctx: ctx, st: st, svc: NewSelectionService(st, decimal.NewFromInt(10)), round: round}
}

func (f *fixture) wallet(t *testing.T, userID int64) string {
	bal, err := f.st.WalletBalance(f.ctx, userID)
	require.NoError(t, err)
	return bal.StringFixed(2)
}

func (f *fixture) stake(t *testing.T) string {
	r, err := f.st.GetRound(f.ctx, f.round.ID)
	require.NoError(t, err)
	return r.TotalStake.StringFixed(2)
}

func TestSelectDebitsAndStakes(t *testing.T) {
	f := newFixture(t)
	u := f.st.AddUser("abebe", nil, decimal.NewFromInt(25))

	sel, err := f.svc.Select(f.ctx, f.round.ID, u.UserId, 3)
	require.NoError(t, err)
	assert.True(t, sel.IsActive)
	assert.Equal(t, "10", sel.Stake.String())

	assert.Equal(t, "15.00", f.wallet(t, u.UserId))
	assert.Equal(t, "10.00", f.stake(t))

	var bets []models.Balance
	for _, b := range f.st.Ledger() {
		if b.TType == models.TxBet {
			bets = append(bets, b)
		}
	}
	require.Len(t, bets, 1)
	assert.Equal(t, "10", bets[0].Cr.String())
	assert.Equal(t, f.round.ID, *bets[0].RoundID)
}

func TestSelectRejectsTakenCard(t *testing.T) {
	f := newFixture(t)
	a := f.st.AddUser("a", nil, decimal.NewFromInt(10))
	b := f.st.AddUser("b", nil, decimal.NewFromInt(10))

	_, err := f.svc.Select(f.ctx, f.round.ID, a.UserId, 1)
	require.NoError(t, err)
	_, err = f.svc.Select(f.ctx, f.round.ID, b.UserId, 1)
	require.ErrorIs(t, err, store.ErrCardTaken)

	assert.Equal(t, "10.00", f.wallet(t, b.UserId), "failed claim must not keep the debit")
	assert.Equal(t, "10.00", f.stake(t))
}

func TestSelectNeedsFunds(t *testing.T) {
	f := newFixture(t)
	u := f.st.AddUser("broke", nil, decimal.NewFromInt(9))

	_, err := f.svc.Select(f.ctx, f.round.ID, u.UserId, 2)
	require.ErrorIs(t, err, store.ErrInsufficientFunds)
	assert.Equal(t, "9.00", f.wallet(t, u.UserId))
	assert.Equal(t, "0.00", f.stake(t))
}

func TestSelectOnlyWhileWaiting(t *testing.T) {
	f := newFixture(t)
	u := f.st.AddUser("late", nil, decimal.NewFromInt(50))
	ok, err := f.st.ActivateRound(f.ctx, f.round.ID, time.Now())
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.svc.Select(f.ctx, f.round.ID, u.UserId, 1)
	require.ErrorIs(t, err, ErrSelectionClosed)
	require.ErrorIs(t, f.svc.Deselect(f.ctx, f.round.ID, u.UserId, 1), ErrSelectionClosed)
}

func TestSelectUnknownCard(t *testing.T) {
	f := newFixture(t)
	u := f.st.AddUser("u", nil, decimal.NewFromInt(50))

	_, err := f.svc.Select(f.ctx, f.round.ID, u.UserId, 99)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeselectRefunds(t *testing.T) {
	f := newFixture(t)
	u := f.st.AddUser("u", nil, decimal.NewFromInt(20))
	other := f.st.AddUser("other", nil, decimal.NewFromInt(20))

	_, err := f.svc.Select(f.ctx, f.round.ID, u.UserId, 4)
	require.NoError(t, err)
	require.ErrorIs(t, f.svc.Deselect(f.ctx, f.round.ID, other.UserId, 4), ErrNotYourCard)
	require.ErrorIs(t, f.svc.Deselect(f.ctx, f.round.ID, u.UserId, 5), ErrNotYourCard)

	require.NoError(t, f.svc.Deselect(f.ctx, f.round.ID, u.UserId, 4))
	assert.Equal(t, "20.00", f.wallet(t, u.UserId))
	assert.Equal(t, "0.00", f.stake(t))
	require.ErrorIs(t, f.svc.Deselect(f.ctx, f.round.ID, u.UserId, 4), ErrNotYourCard)

	// the released card can be claimed again
	sel, err := f.svc.Select(f.ctx, f.round.ID, other.UserId, 4)
	require.NoError(t, err)
	assert.Equal(t, other.UserId, sel.UserID)
	assert.Equal(t, "10.00", f.stake(t))
}
