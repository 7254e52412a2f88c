package models

import (
	"time"

	"github.com/avvvet/bingo-engine/internal/bingo"
	"github.com/shopspring/decimal"
)

// PlayerSelection joins a player, a round and a card.
type PlayerSelection struct {
	ID              int64           `json:"id"`
	RoundID         int64           `json:"round_id"`
	UserID          int64           `json:"user_id"`
	CardID          int64           `json:"card_id"`
	Stake           decimal.Decimal `json:"stake"`
	MarkedNumbers   []int           `json:"marked_numbers"`
	MarkedPositions []int           `json:"marked_positions"`
	IsActive        bool            `json:"is_active"`
	HasWon          bool            `json:"has_won"`
	CreatedAt       time.Time       `json:"created_at"`

	// Card is loaded alongside active selections for marking.
	Card bingo.Card `json:"-"`
}

// HasPosition reports whether pos is already marked.
func (s *PlayerSelection) HasPosition(pos int) bool {
	for _, p := range s.MarkedPositions {
		if p == pos {
			return true
		}
	}
	return false
}

// Mark appends number/pos unless pos is already marked.
func (s *PlayerSelection) Mark(number, pos int) bool {
	if s.HasPosition(pos) {
		return false
	}
	s.MarkedNumbers = append(s.MarkedNumbers, number)
	s.MarkedPositions = append(s.MarkedPositions, pos)
	return true
}
