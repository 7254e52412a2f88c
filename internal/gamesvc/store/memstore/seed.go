package memstore

import (
	"github.com/avvvet/bingo-engine/internal/gamesvc/models"
	"github.com/shopspring/decimal"
)

// AddUser registers an account with an optional agent and opening balance.
func (s *Store) AddUser(name string, agentID *int64, balance decimal.Decimal) *models.User {
	d, unlock := s.lock()
	defer unlock()

	u := &models.User{UserId: d.nextID(), Name: name, AgentID: agentID, Status: "active", CreatedAt: s.db.clock.Now()}
	d.users[u.UserId] = u
	if !balance.IsZero() {
		d.wallets[u.UserId] = balance
	}
	cp := *u
	return &cp
}

// Ledger returns a copy of every ledger row in insertion order.
func (s *Store) Ledger() []models.Balance {
	d, unlock := s.lock()
	defer unlock()
	return append([]models.Balance(nil), d.ledger...)
}
