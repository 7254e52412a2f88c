package engine

import (
	"context"
	"time"

	"github.com/avvvet/bingo-engine/internal/gamesvc/models"
)

type EventType string

const (
	EventRoundCreated   EventType = "round-created"
	EventGameStarted    EventType = "game-started"
	EventNumberCalled   EventType = "bingo-call"
	EventGameFinished   EventType = "game-finished"
	EventRoundCancelled EventType = "round-cancelled"
)

type Event struct {
	Type    EventType
	Round   *models.GameRound
	Number  int
	Letter  string
	Winners []Winner
	Outcome SettleOutcome
	At      time.Time
}

// Notifier receives engine events. Implementations must not block the
// tick for long and report their own failures.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// Notifiers fans an event out to each member in order.
type Notifiers []Notifier

func (ns Notifiers) Notify(ctx context.Context, ev Event) {
	for _, n := range ns {
		n.Notify(ctx, ev)
	}
}

// Winner is a verified winning selection.
type Winner struct {
	SelectionID int64
	UserID      int64
	CardID      int64
	Pattern     string
	Positions   []int
	Numbers     []int
	// Patterns lists every verified pattern on the card.
	Patterns []string
}
