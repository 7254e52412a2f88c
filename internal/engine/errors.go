package engine

import (
	"errors"

	"github.com/avvvet/bingo-engine/internal/gamesvc/store"
)

// Kind tells the scheduler how to react to a failed tick.
type Kind int

const (
	// KindTransient failures are retried on the next tick.
	KindTransient Kind = iota
	// KindConflict means another writer advanced the round first.
	KindConflict
	// KindFatal stops the scheduler.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindConflict:
		return "conflict"
	case KindFatal:
		return "fatal"
	default:
		return "transient"
	}
}

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

func transient(op string, err error) error { return &Error{Kind: KindTransient, Op: op, Err: err} }
func conflict(op string, err error) error  { return &Error{Kind: KindConflict, Op: op, Err: err} }
func fatal(op string, err error) error     { return &Error{Kind: KindFatal, Op: op, Err: err} }

// KindOf classifies err. Unclassified errors are transient.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, store.ErrDuplicateCall) || errors.Is(err, store.ErrRoundConflict) {
		return KindConflict
	}
	return KindTransient
}

var (
	ErrTooManyFailures = errors.New("too many consecutive tick failures")
	ErrAlreadyRunning  = errors.New("scheduler already running")
	ErrNotRunning      = errors.New("scheduler not running")

	errRoundClosed = errors.New("round is no longer active")
	errNotWaiting  = errors.New("round is no longer waiting")
	errCorruptLog  = errors.New("call log violates round invariants")
)

// CallOutcome is the result of one draw attempt.
type CallOutcome int

const (
	CallNone CallOutcome = iota
	CallRecorded
	CallExhausted
	CallSkipped
)

func (o CallOutcome) String() string {
	return [...]string{"none", "recorded", "exhausted", "skipped"}[o]
}

// WinOutcome is the result of a winner check.
type WinOutcome int

const (
	WinNone WinOutcome = iota
	WinFound
	WinClosed
)

func (o WinOutcome) String() string {
	return [...]string{"none", "found", "closed"}[o]
}

// SettleOutcome is the result of closing a round.
type SettleOutcome int

const (
	SettleNone SettleOutcome = iota
	SettleDone
	SettleAlready
	SettleForceClosed
)

func (o SettleOutcome) String() string {
	return [...]string{"none", "settled", "already-settled", "force-closed"}[o]
}
