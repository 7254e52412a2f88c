package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type RoundStatus string

const (
	StatusWaiting   RoundStatus = "waiting"
	StatusActive    RoundStatus = "active"
	StatusFinished  RoundStatus = "finished"
	StatusCancelled RoundStatus = "cancelled"
)

// Terminal reports whether no further calls or marks are allowed.
func (s RoundStatus) Terminal() bool {
	return s == StatusFinished || s == StatusCancelled
}

// GameRound is one lottery round. Winner fields are only set when the
// round finishes.
type GameRound struct {
	ID               int64           `json:"id"`
	RoundNumber      int64           `json:"round_number"`
	Status           RoundStatus     `json:"status"`
	TotalStake       decimal.Decimal `json:"total_stake"`
	CalledNumbers    []int           `json:"called_numbers"`
	SelectionEndTime time.Time       `json:"selection_end_time"`
	StartTime        *time.Time      `json:"start_time,omitempty"`
	EndTime          *time.Time      `json:"end_time,omitempty"`
	Winner           *int64          `json:"winner,omitempty"`
	WinningCard      *int64          `json:"winning_card,omitempty"`
	WinningPattern   string          `json:"winning_pattern,omitempty"`
	WinningNumbers   []int           `json:"winning_numbers,omitempty"`
	PrizePool        decimal.Decimal `json:"prize_pool"`
	AdminFee         decimal.Decimal `json:"admin_fee"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Clone returns a deep copy.
func (r *GameRound) Clone() *GameRound {
	cp := *r
	if r.CalledNumbers != nil {
		cp.CalledNumbers = append([]int{}, r.CalledNumbers...)
	}
	if r.WinningNumbers != nil {
		cp.WinningNumbers = append([]int{}, r.WinningNumbers...)
	}
	return &cp
}

// LastCalled returns the most recent call from the cached list.
func (r *GameRound) LastCalled() (int, bool) {
	if len(r.CalledNumbers) == 0 {
		return 0, false
	}
	return r.CalledNumbers[len(r.CalledNumbers)-1], true
}

// RoundResult carries the finalize fields written by settlement. A
// no-winner close leaves Winner and WinningCard nil.
type RoundResult struct {
	Winner         *int64
	WinningCard    *int64
	WinningPattern string
	WinningNumbers []int
	PrizePool      decimal.Decimal
	AdminFee       decimal.Decimal
	EndTime        time.Time
}
