package store

import (
	"context"
	"errors"
	"time"

	"github.com/avvvet/bingo-engine/internal/bingo"
	"github.com/avvvet/bingo-engine/internal/gamesvc/models"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateCall     = errors.New("number already called for round")
	ErrCardTaken         = errors.New("card already selected for round")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrRoundConflict     = errors.New("round number already exists")
	ErrDuplicateRef      = errors.New("ledger reference already used")
)

// Repository is the durable state of the engine. Every implementation
// enforces unique (round, number) on the call log and unique
// (round, card) on selections.
type Repository interface {
	// WithTx runs fn inside one transaction. A nested call joins the
	// outer transaction.
	WithTx(ctx context.Context, fn func(Repository) error) error

	CurrentRound(ctx context.Context) (*models.GameRound, error)
	LatestRound(ctx context.Context) (*models.GameRound, error)
	GetRound(ctx context.Context, id int64) (*models.GameRound, error)
	// LockRound reads the round holding an exclusive row lock until the
	// surrounding transaction ends.
	LockRound(ctx context.Context, id int64) (*models.GameRound, error)
	RoundIDs(ctx context.Context) ([]int64, error)
	CreateRound(ctx context.Context, selectionEnd time.Time) (*models.GameRound, error)
	ActivateRound(ctx context.Context, id int64, at time.Time) (bool, error)
	FinishRound(ctx context.Context, id int64, res models.RoundResult) error
	CloseRound(ctx context.Context, id int64, status models.RoundStatus, at time.Time) error
	AppendCalledNumber(ctx context.Context, id int64, number int) error
	SetCalledNumbers(ctx context.Context, id int64, numbers []int) error
	AddStake(ctx context.Context, id int64, delta decimal.Decimal) error

	InsertCalledNumber(ctx context.Context, c models.CalledNumber) error
	CallLog(ctx context.Context, roundID int64) ([]models.CalledNumber, error)

	ActiveSelections(ctx context.Context, roundID int64) ([]*models.PlayerSelection, error)
	GetSelection(ctx context.Context, roundID, cardID int64) (*models.PlayerSelection, error)
	CreateSelection(ctx context.Context, sel *models.PlayerSelection) (*models.PlayerSelection, error)
	DeactivateSelection(ctx context.Context, id int64) error
	// SaveMarks adds the selection's marks to the stored ones. Positions
	// already marked are kept, so marks never shrink.
	SaveMarks(ctx context.Context, sel *models.PlayerSelection) error
	MarkWon(ctx context.Context, selectionID int64) error

	GetCard(ctx context.Context, id int64) (*models.Card, error)
	GetCardByNo(ctx context.Context, cardNo int) (*models.Card, error)
	InsertCards(ctx context.Context, cards []bingo.Card) (int, error)

	GetUser(ctx context.Context, id int64) (*models.User, error)
	EnsureUser(ctx context.Context, name string) (*models.User, error)
	Credit(ctx context.Context, p models.Posting) error
	Debit(ctx context.Context, p models.Posting) error
	WalletBalance(ctx context.Context, userID int64) (decimal.Decimal, error)

	LoadEngineState(ctx context.Context) (*models.EngineState, error)
	SaveEngineState(ctx context.Context, s models.EngineState) error
}
