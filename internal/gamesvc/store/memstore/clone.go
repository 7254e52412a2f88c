package memstore

import (
	"github.com/avvvet/bingo-engine/internal/gamesvc/models"
	"github.com/shopspring/decimal"
)

func cloneInts(in []int) []int {
	if in == nil {
		return nil
	}
	return append([]int{}, in...)
}

func cloneSelection(s *models.PlayerSelection) *models.PlayerSelection {
	cp := *s
	cp.MarkedNumbers = cloneInts(s.MarkedNumbers)
	cp.MarkedPositions = cloneInts(s.MarkedPositions)
	return &cp
}

func (d *data) clone() *data {
	out := &data{
		seq:        d.seq,
		users:      make(map[int64]*models.User, len(d.users)),
		cards:      make(map[int64]*models.Card, len(d.cards)),
		rounds:     make(map[int64]*models.GameRound, len(d.rounds)),
		selections: make(map[int64]*models.PlayerSelection, len(d.selections)),
		calls:      append([]models.CalledNumber(nil), d.calls...),
		wallets:    make(map[int64]decimal.Decimal, len(d.wallets)),
		ledger:     append([]models.Balance(nil), d.ledger...),
	}
	for k, u := range d.users {
		cp := *u
		out.users[k] = &cp
	}
	for k, c := range d.cards {
		out.cards[k] = c // immutable once inserted
	}
	for k, r := range d.rounds {
		out.rounds[k] = r.Clone()
	}
	for k, s := range d.selections {
		out.selections[k] = cloneSelection(s)
	}
	for k, v := range d.wallets {
		out.wallets[k] = v
	}
	if d.state != nil {
		st := *d.state
		out.state = &st
	}
	return out
}
