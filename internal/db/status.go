package db

import (
	"context"
	"errors"
	"time"

	"github.com/avvvet/bingo-engine/internal/engine"
	"github.com/coder/quartz"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const StatusCollection = "round_status"

var ErrNoStatus = errors.New("no round status")

type RoundStatus struct {
	RoundID       int64     `bson:"_id" json:"round_id"`
	RoundNumber   int64     `bson:"round_number" json:"round_number"`
	Status        string    `bson:"status" json:"status"`
	CalledNumbers []int     `bson:"called_numbers" json:"called_numbers"`
	LastNumber    int       `bson:"last_number,omitempty" json:"last_number,omitempty"`
	TotalStake    string    `bson:"total_stake" json:"total_stake"`
	Winner        *int64    `bson:"winner,omitempty" json:"winner,omitempty"`
	Pattern       string    `bson:"winning_pattern,omitempty" json:"winning_pattern,omitempty"`
	UpdatedAt     time.Time `bson:"updated_at" json:"updated_at"`
	ExpiresAt     time.Time `bson:"expires_at" json:"-"`
}

// StatusMirror keeps a short-lived copy of each round's status in Mongo
// for clients that poll. Documents expire through the TTL index.
type StatusMirror struct {
	coll  *mongo.Collection
	ttl   time.Duration
	clock quartz.Clock
}

func NewStatusMirror(ctx context.Context, db *mongo.Database, ttl time.Duration, clock quartz.Clock) (*StatusMirror, error) {
	if err := CreateTTLIndexForCollection(ctx, db, StatusCollection); err != nil {
		return nil, err
	}
	return &StatusMirror{coll: db.Collection(StatusCollection), ttl: ttl, clock: clock}, nil
}

// StatusFromEvent builds the mirror document for ev.
func StatusFromEvent(ev engine.Event, now time.Time, ttl time.Duration) RoundStatus {
	r := ev.Round
	called := append([]int{}, r.CalledNumbers...)
	st := RoundStatus{
		RoundID:       r.ID,
		RoundNumber:   r.RoundNumber,
		Status:        string(r.Status),
		CalledNumbers: called,
		TotalStake:    r.TotalStake.StringFixed(2),
		Winner:        r.Winner,
		Pattern:       r.WinningPattern,
		UpdatedAt:     now,
		ExpiresAt:     now.Add(ttl),
	}
	if ev.Type == engine.EventNumberCalled {
		st.LastNumber = ev.Number
		if last, ok := r.LastCalled(); !ok || last != ev.Number {
			st.CalledNumbers = append(st.CalledNumbers, ev.Number)
		}
	} else if last, ok := r.LastCalled(); ok {
		st.LastNumber = last
	}
	return st
}

// Notify implements engine.Notifier.
func (m *StatusMirror) Notify(ctx context.Context, ev engine.Event) {
	if ev.Round == nil {
		return
	}
	st := StatusFromEvent(ev, m.clock.Now(), m.ttl)

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := m.coll.ReplaceOne(ctx, bson.M{"_id": st.RoundID}, st, options.Replace().SetUpsert(true))
	if err != nil {
		log.WithError(err).WithField("round", st.RoundID).Warn("status mirror update failed")
	}
}

// Latest returns the most recently updated status that has not expired.
func (m *StatusMirror) Latest(ctx context.Context) (*RoundStatus, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	filter := bson.M{"expires_at": bson.M{"$gt": m.clock.Now()}}

	var st RoundStatus
	err := m.coll.FindOne(ctx, filter, opts).Decode(&st)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNoStatus
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}
