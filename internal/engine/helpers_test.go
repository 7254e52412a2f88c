package engine

import (
	"context"
	"math/rand"
	"sync"
	"testing"

	"github.com/avvvet/bingo-engine/internal/bingo"
	"github.com/avvvet/bingo-engine/internal/gamesvc/models"
	"github.com/avvvet/bingo-engine/internal/gamesvc/store"
	"github.com/avvvet/bingo-engine/internal/gamesvc/store/memstore"
	"github.com/coder/quartz"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Notify(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) count(t EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

type harness struct {
	t      *testing.T
	ctx    context.Context
	clk    *quartz.Mock
	store  *memstore.Store
	eng    *Engine
	events *recorder
	cards  int
}

func newHarness(t *testing.T) *harness {
	clk := quartz.NewMock(t)
	return newHarnessOn(t, clk, memstore.New(clk), nil)
}

// newHarnessOn builds an engine over repo; st is the memstore behind it.
func newHarnessOn(t *testing.T, clk *quartz.Mock, st *memstore.Store, repo store.Repository) *harness {
	if repo == nil {
		repo = st
	}
	rec := &recorder{}
	eng, err := New(repo, DefaultConfig(),
		WithClock(clk),
		WithNotifier(rec),
		WithRand(rand.New(rand.NewSource(42))),
	)
	require.NoError(t, err)
	return &harness{t: t, ctx: context.Background(), clk: clk, store: st, eng: eng, events: rec}
}

func (h *harness) tick() Report {
	h.t.Helper()
	rep, err := h.eng.Tick(h.ctx)
	require.NoError(h.t, err)
	return rep
}

func (h *harness) openRound() *models.GameRound {
	h.t.Helper()
	rep := h.tick()
	require.Equal(h.t, ActionCreated, rep.Action)
	r, err := h.store.GetRound(h.ctx, rep.RoundID)
	require.NoError(h.t, err)
	return r
}

func (h *harness) startRound(roundID int64) Report {
	h.t.Helper()
	h.clk.Advance(DefaultConfig().SelectionWindow).MustWait(h.ctx)
	rep := h.tick()
	require.Equal(h.t, ActionStarted, rep.Action)
	require.Equal(h.t, roundID, rep.RoundID)
	return rep
}

func (h *harness) user(name string, agent *int64) *models.User {
	return h.store.AddUser(name, agent, decimal.Zero)
}

// join stakes card for u in round and adds the stake to the round total.
func (h *harness) join(round *models.GameRound, u *models.User, card bingo.Card, stake int64) *models.PlayerSelection {
	h.t.Helper()
	_, err := h.store.InsertCards(h.ctx, []bingo.Card{card})
	require.NoError(h.t, err)
	h.cards++
	cardRow, err := h.store.GetCardByNo(h.ctx, h.cards)
	require.NoError(h.t, err)

	sel, err := h.store.CreateSelection(h.ctx, &models.PlayerSelection{
		RoundID: round.ID, UserID: u.UserId, CardID: cardRow.ID, Stake: decimal.NewFromInt(stake),
	})
	require.NoError(h.t, err)
	require.NoError(h.t, h.store.AddStake(h.ctx, round.ID, decimal.NewFromInt(stake)))
	return sel
}

// callAndJudge records n as the next call and runs the post-call checks.
func (h *harness) callAndJudge(roundID int64, n int) Report {
	h.t.Helper()
	h.clk.Advance(DefaultConfig().CallInterval).MustWait(h.ctx)
	require.NoError(h.t, h.eng.record(h.ctx, roundID, n, h.clk.Now()))
	require.NoError(h.t, h.eng.markAll(h.ctx, roundID, n))
	round, err := h.store.GetRound(h.ctx, roundID)
	require.NoError(h.t, err)
	rep, err := h.eng.judge(h.ctx, round, Report{RoundID: roundID, Action: ActionCalled, Number: n})
	require.NoError(h.t, err)
	return rep
}

func (h *harness) balance(userID int64) string {
	bal, err := h.store.WalletBalance(h.ctx, userID)
	require.NoError(h.t, err)
	return bal.StringFixed(2)
}

func (h *harness) house() *models.User {
	u, err := h.store.EnsureUser(h.ctx, DefaultConfig().HouseAccount)
	require.NoError(h.t, err)
	return u
}

// offsetCard puts col*15+row+1+off in every cell; off must be 0..10.
func offsetCard(off int) bingo.Card {
	var c bingo.Card
	for col := 0; col < bingo.Size; col++ {
		for row := 0; row < bingo.Size; row++ {
			c[col][row] = col*15 + row + 1 + off
		}
	}
	return c
}

func ledgerOf(st *memstore.Store, ttype string) []models.Balance {
	var out []models.Balance
	for _, b := range st.Ledger() {
		if b.TType == ttype {
			out = append(out, b)
		}
	}
	return out
}
