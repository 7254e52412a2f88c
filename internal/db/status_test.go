package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/avvvet/bingo-engine/internal/engine"
	"github.com/avvvet/bingo-engine/internal/gamesvc/models"
	"github.com/coder/quartz"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeRound() *models.GameRound {
	return &models.GameRound{
		ID:            12,
		RoundNumber:   4,
		Status:        models.StatusActive,
		TotalStake:    decimal.NewFromInt(30),
		CalledNumbers: []int{33, 5},
	}
}

func TestStatusFromCall(t *testing.T) {
	now := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

	st := StatusFromEvent(engine.Event{Type: engine.EventNumberCalled, Round: activeRound(), Number: 70}, now, 30*time.Second)
	assert.Equal(t, int64(12), st.RoundID)
	assert.Equal(t, "active", st.Status)
	assert.Equal(t, []int{33, 5, 70}, st.CalledNumbers)
	assert.Equal(t, 70, st.LastNumber)
	assert.Equal(t, "30.00", st.TotalStake)
	assert.Equal(t, now.Add(30*time.Second), st.ExpiresAt)

	r := activeRound()
	r.CalledNumbers = append(r.CalledNumbers, 70)
	st = StatusFromEvent(engine.Event{Type: engine.EventNumberCalled, Round: r, Number: 70}, now, time.Second)
	assert.Equal(t, []int{33, 5, 70}, st.CalledNumbers, "number already in the round is not repeated")
}

func TestStatusFromFinish(t *testing.T) {
	r := activeRound()
	r.Status = models.StatusFinished
	winner := int64(99)
	r.Winner = &winner
	r.WinningPattern = "col_1"

	st := StatusFromEvent(engine.Event{Type: engine.EventGameFinished, Round: r}, time.Now(), time.Second)
	assert.Equal(t, "finished", st.Status)
	assert.Equal(t, 5, st.LastNumber)
	require.NotNil(t, st.Winner)
	assert.Equal(t, winner, *st.Winner)
	assert.Equal(t, "col_1", st.Pattern)
}

func TestStatusMirrorRoundTrip(t *testing.T) {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set")
	}
	ctx := context.Background()
	database, err := ConnectToDB(ctx, uri)
	require.NoError(t, err)
	t.Cleanup(func() {
		database.Collection(StatusCollection).Drop(context.Background())
		database.Client().Disconnect(context.Background())
	})

	m, err := NewStatusMirror(ctx, database, time.Minute, quartz.NewReal())
	require.NoError(t, err)

	m.Notify(ctx, engine.Event{Type: engine.EventNumberCalled, Round: activeRound(), Number: 70})
	got, err := m.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(12), got.RoundID)
	assert.Equal(t, 70, got.LastNumber)
}
