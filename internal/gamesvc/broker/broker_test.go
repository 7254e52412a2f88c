package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/avvvet/bingo-engine/internal/comm"
	"github.com/avvvet/bingo-engine/internal/engine"
	"github.com/avvvet/bingo-engine/internal/gamesvc/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	topic   string
	payload []byte
}

type fakePub struct{ msgs []sent }

func (f *fakePub) Publish(subj string, data []byte) error {
	f.msgs = append(f.msgs, sent{subj, data})
	return nil
}

type fakeStatus struct{ st engine.Status }

func (f fakeStatus) Status() engine.Status { return f.st }

type fakeChecker struct {
	settled bool
	err     error
	asked   []int64
}

func (f *fakeChecker) ForceWinnerCheck(_ context.Context, roundID int64) (bool, error) {
	f.asked = append(f.asked, roundID)
	return f.settled, f.err
}

func testRound() *models.GameRound {
	end := time.Date(2025, 3, 1, 10, 5, 0, 0, time.UTC)
	return &models.GameRound{
		ID:             7,
		RoundNumber:    3,
		Status:         models.StatusFinished,
		TotalStake:     decimal.NewFromInt(100),
		CalledNumbers:  []int{33, 1, 16},
		EndTime:        &end,
		WinningPattern: "row_1",
		PrizePool:      decimal.NewFromInt(80),
		AdminFee:       decimal.NewFromInt(20),
	}
}

func decode(t *testing.T, payload []byte) comm.WSMessage {
	var msg comm.WSMessage
	require.NoError(t, json.Unmarshal(payload, &msg))
	return msg
}

func TestNotifyPublishesCall(t *testing.T) {
	pub := &fakePub{}
	b := &Broker{pub: pub, topic: comm.TopicGameService}

	b.Notify(context.Background(), engine.Event{Type: engine.EventNumberCalled, Round: testRound(), Number: 7, Letter: "B"})

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "game.service", pub.msgs[0].topic)
	msg := decode(t, pub.msgs[0].payload)
	assert.Equal(t, "bingo-call", msg.Type)

	var call comm.CallData
	require.NoError(t, json.Unmarshal(msg.Data, &call))
	assert.Equal(t, comm.CallData{RoundID: 7, Number: 7, Letter: "B", Call: "B-7"}, call)
}

func TestEnvelopeFinished(t *testing.T) {
	msg, err := Envelope(engine.Event{
		Type:    engine.EventGameFinished,
		Round:   testRound(),
		Outcome: engine.SettleDone,
		Winners: []engine.Winner{{UserID: 11, CardID: 4, Pattern: "row_1", Positions: []int{0, 1, 2, 3, 4}, Numbers: []int{1, 16, 31, 46, 61}}},
	})
	require.NoError(t, err)
	assert.Equal(t, "game-finished", msg.Type)

	var fd comm.FinishData
	require.NoError(t, json.Unmarshal(msg.Data, &fd))
	assert.Equal(t, "settled", fd.Outcome)
	assert.Equal(t, "80.00", fd.PrizePool)
	assert.Equal(t, "20.00", fd.AdminFee)
	assert.Equal(t, "100.00", fd.Round.TotalStake)
	require.Len(t, fd.Winners, 1)
	assert.Equal(t, int64(11), fd.Winners[0].UserID)
}

func TestEnvelopeRound(t *testing.T) {
	r := testRound()
	r.Status = models.StatusWaiting
	r.CalledNumbers = nil

	msg, err := Envelope(engine.Event{Type: engine.EventRoundCreated, Round: r})
	require.NoError(t, err)

	var rd comm.RoundData
	require.NoError(t, json.Unmarshal(msg.Data, &rd))
	assert.Equal(t, "waiting", rd.Status)
	assert.NotNil(t, rd.CalledNumbers)

	_, err = Envelope(engine.Event{Type: engine.EventRoundCreated})
	require.Error(t, err)
}

func TestControl(t *testing.T) {
	checker := &fakeChecker{settled: true}
	b := &Broker{status: fakeStatus{engine.Status{Running: true, Ticks: 9}}, checker: checker}
	ctx := context.Background()

	resp := b.Control(ctx, comm.ControlRequest{Type: "status"})
	require.True(t, resp.OK)
	var st engine.Status
	require.NoError(t, json.Unmarshal(resp.Data, &st))
	assert.True(t, st.Running)
	assert.Equal(t, int64(9), st.Ticks)

	resp = b.Control(ctx, comm.ControlRequest{Type: "force-check", RoundID: 5})
	require.True(t, resp.OK)
	var res comm.CheckResult
	require.NoError(t, json.Unmarshal(resp.Data, &res))
	assert.Equal(t, comm.CheckResult{RoundID: 5, Settled: true}, res)
	assert.Equal(t, []int64{5}, checker.asked)

	checker.err = errors.New("store down")
	resp = b.Control(ctx, comm.ControlRequest{Type: "force-check", RoundID: 5})
	assert.False(t, resp.OK)
	assert.Contains(t, resp.Error, "store down")

	resp = b.Control(ctx, comm.ControlRequest{Type: "reboot"})
	assert.False(t, resp.OK)
}
