package models

import (
	"time"

	"github.com/avvvet/bingo-engine/internal/bingo"
)

type Card struct {
	ID        int64      `json:"id"`
	CardNo    int        `json:"card_no"`
	Numbers   bingo.Card `json:"numbers"` // column-major, B..O
	CreatedAt time.Time  `json:"created_at"`
}
