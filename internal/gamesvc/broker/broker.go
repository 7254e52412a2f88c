package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/avvvet/bingo-engine/internal/comm"
	"github.com/avvvet/bingo-engine/internal/engine"
	"github.com/avvvet/bingo-engine/internal/gamesvc/models"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// Publisher is the part of *nats.Conn the broker publishes through.
type Publisher interface {
	Publish(subj string, data []byte) error
}

type StatusSource interface {
	Status() engine.Status
}

type WinnerChecker interface {
	ForceWinnerCheck(ctx context.Context, roundID int64) (bool, error)
}

// Broker publishes engine events on the game topic and answers control
// requests from other services.
type Broker struct {
	Conn    *nats.Conn
	pub     Publisher
	topic   string
	status  StatusSource
	checker WinnerChecker
}

func NewBroker(nc *nats.Conn, status StatusSource, checker WinnerChecker) *Broker {
	return &Broker{
		Conn:    nc,
		pub:     nc,
		topic:   comm.TopicGameService,
		status:  status,
		checker: checker,
	}
}

// Notify implements engine.Notifier.
func (b *Broker) Notify(_ context.Context, ev engine.Event) {
	msg, err := Envelope(ev)
	if err != nil {
		log.WithError(err).WithField("event", ev.Type).Error("unable to encode engine event")
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("Error %s", err)
		return
	}
	b.Publish(b.topic, payload)
}

// Envelope wraps an engine event in the message consumers read from the
// game topic.
func Envelope(ev engine.Event) (*comm.WSMessage, error) {
	if ev.Round == nil {
		return nil, errors.New("event without round")
	}

	var body any
	switch ev.Type {
	case engine.EventNumberCalled:
		body = comm.CallData{
			RoundID: ev.Round.ID,
			Number:  ev.Number,
			Letter:  ev.Letter,
			Call:    fmt.Sprintf("%s-%d", ev.Letter, ev.Number),
		}
	case engine.EventGameFinished:
		body = finishData(ev)
	default:
		body = RoundData(ev.Round)
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return &comm.WSMessage{Type: string(ev.Type), Data: data}, nil
}

func RoundData(r *models.GameRound) comm.RoundData {
	called := r.CalledNumbers
	if called == nil {
		called = []int{}
	}
	return comm.RoundData{
		RoundID:          r.ID,
		RoundNumber:      r.RoundNumber,
		Status:           string(r.Status),
		TotalStake:       r.TotalStake.StringFixed(2),
		CalledNumbers:    called,
		SelectionEndTime: r.SelectionEndTime,
		StartTime:        r.StartTime,
		EndTime:          r.EndTime,
	}
}

func finishData(ev engine.Event) comm.FinishData {
	fd := comm.FinishData{
		Round:          RoundData(ev.Round),
		Outcome:        ev.Outcome.String(),
		Winners:        []comm.WinnerData{},
		WinningPattern: ev.Round.WinningPattern,
		PrizePool:      ev.Round.PrizePool.StringFixed(2),
		AdminFee:       ev.Round.AdminFee.StringFixed(2),
	}
	for _, w := range ev.Winners {
		fd.Winners = append(fd.Winners, comm.WinnerData{
			UserID:    w.UserID,
			CardID:    w.CardID,
			Pattern:   w.Pattern,
			Positions: w.Positions,
			Numbers:   w.Numbers,
			Patterns:  w.Patterns,
		})
	}
	return fd
}

// consume control requests (Queue) so only one engine instance answers
func (b *Broker) QueueSubscribeControl(queueGroup string) (*nats.Subscription, error) {
	sub, err := b.Conn.QueueSubscribe(comm.TopicEngineControl, queueGroup, b.handleControl)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

func (b *Broker) handleControl(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req := comm.ControlRequest{}
	var resp comm.ControlResponse
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		resp = comm.ControlResponse{Error: "bad request: " + err.Error()}
	} else {
		resp = b.Control(ctx, req)
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		log.Errorf("Error %s", err)
		return
	}
	if err := msg.Respond(payload); err != nil {
		log.WithError(err).Warn("unable to answer control request")
	}
}

// Control executes a control request.
func (b *Broker) Control(ctx context.Context, req comm.ControlRequest) comm.ControlResponse {
	var (
		data any
		err  error
	)
	switch req.Type {
	case "status":
		data = b.status.Status()
	case "force-check":
		var settled bool
		settled, err = b.checker.ForceWinnerCheck(ctx, req.RoundID)
		data = comm.CheckResult{RoundID: req.RoundID, Settled: settled}
	default:
		err = fmt.Errorf("unknown control request %q", req.Type)
	}
	if err != nil {
		log.WithError(err).WithField("type", req.Type).Warn("control request failed")
		return comm.ControlResponse{Error: err.Error()}
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return comm.ControlResponse{Error: err.Error()}
	}
	return comm.ControlResponse{OK: true, Data: raw}
}

func (b *Broker) Publish(topic string, payload []byte) error {
	err := b.pub.Publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}

	return nil
}
