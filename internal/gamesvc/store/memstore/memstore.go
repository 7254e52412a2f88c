// Package memstore is an in-memory store.Repository with the same
// constraint semantics as the PostgreSQL store. Transactions are
// serialized and roll back by restoring a snapshot.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/avvvet/bingo-engine/internal/bingo"
	"github.com/avvvet/bingo-engine/internal/gamesvc/models"
	"github.com/avvvet/bingo-engine/internal/gamesvc/store"
	"github.com/coder/quartz"
	"github.com/shopspring/decimal"
)

type data struct {
	seq        int64
	users      map[int64]*models.User
	cards      map[int64]*models.Card
	rounds     map[int64]*models.GameRound
	selections map[int64]*models.PlayerSelection
	calls      []models.CalledNumber
	wallets    map[int64]decimal.Decimal
	ledger     []models.Balance
	state      *models.EngineState
}

type db struct {
	mu    sync.Mutex
	txMu  sync.Mutex
	clock quartz.Clock
	d     *data
}

type Store struct {
	db   *db
	inTx bool
}

var _ store.Repository = (*Store)(nil)

func New(clock quartz.Clock) *Store {
	return &Store{db: &db{
		clock: clock,
		d: &data{
			users:      map[int64]*models.User{},
			cards:      map[int64]*models.Card{},
			rounds:     map[int64]*models.GameRound{},
			selections: map[int64]*models.PlayerSelection{},
			wallets:    map[int64]decimal.Decimal{},
		},
	}}
}

func (s *Store) lock() (*data, func()) {
	s.db.mu.Lock()
	return s.db.d, s.db.mu.Unlock
}

func (d *data) nextID() int64 {
	d.seq++
	return d.seq
}

func (s *Store) WithTx(ctx context.Context, fn func(store.Repository) error) error {
	if s.inTx {
		return fn(s)
	}

	s.db.txMu.Lock()
	defer s.db.txMu.Unlock()

	s.db.mu.Lock()
	snap := s.db.d.clone()
	s.db.mu.Unlock()

	if err := fn(&Store{db: s.db, inTx: true}); err != nil {
		s.db.mu.Lock()
		s.db.d = snap
		s.db.mu.Unlock()
		return err
	}
	return nil
}

// Rounds

func (s *Store) CurrentRound(ctx context.Context) (*models.GameRound, error) {
	d, unlock := s.lock()
	defer unlock()

	var cur *models.GameRound
	for _, r := range d.rounds {
		if r.Status != models.StatusWaiting && r.Status != models.StatusActive {
			continue
		}
		if cur == nil || r.RoundNumber > cur.RoundNumber {
			cur = r
		}
	}
	if cur == nil {
		return nil, store.ErrNotFound
	}
	return cur.Clone(), nil
}

func (s *Store) LatestRound(ctx context.Context) (*models.GameRound, error) {
	d, unlock := s.lock()
	defer unlock()

	var cur *models.GameRound
	for _, r := range d.rounds {
		if cur == nil || r.RoundNumber > cur.RoundNumber {
			cur = r
		}
	}
	if cur == nil {
		return nil, store.ErrNotFound
	}
	return cur.Clone(), nil
}

func (s *Store) GetRound(ctx context.Context, id int64) (*models.GameRound, error) {
	d, unlock := s.lock()
	defer unlock()

	r, ok := d.rounds[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return r.Clone(), nil
}

// LockRound is a plain read: WithTx already serializes writers.
func (s *Store) LockRound(ctx context.Context, id int64) (*models.GameRound, error) {
	return s.GetRound(ctx, id)
}

func (s *Store) RoundIDs(ctx context.Context) ([]int64, error) {
	d, unlock := s.lock()
	defer unlock()

	rounds := make([]*models.GameRound, 0, len(d.rounds))
	for _, r := range d.rounds {
		rounds = append(rounds, r)
	}
	sort.Slice(rounds, func(i, j int) bool { return rounds[i].RoundNumber < rounds[j].RoundNumber })
	ids := make([]int64, len(rounds))
	for i, r := range rounds {
		ids[i] = r.ID
	}
	return ids, nil
}

func (s *Store) CreateRound(ctx context.Context, selectionEnd time.Time) (*models.GameRound, error) {
	d, unlock := s.lock()
	defer unlock()

	var max int64
	for _, r := range d.rounds {
		if r.RoundNumber > max {
			max = r.RoundNumber
		}
	}
	r := &models.GameRound{
		ID:               d.nextID(),
		RoundNumber:      max + 1,
		Status:           models.StatusWaiting,
		CalledNumbers:    []int{},
		SelectionEndTime: selectionEnd,
		CreatedAt:        s.db.clock.Now(),
	}
	d.rounds[r.ID] = r
	return r.Clone(), nil
}

func (s *Store) ActivateRound(ctx context.Context, id int64, at time.Time) (bool, error) {
	d, unlock := s.lock()
	defer unlock()

	r, ok := d.rounds[id]
	if !ok || r.Status != models.StatusWaiting {
		return false, nil
	}
	r.Status = models.StatusActive
	r.StartTime = &at
	return true, nil
}

func (s *Store) FinishRound(ctx context.Context, id int64, res models.RoundResult) error {
	d, unlock := s.lock()
	defer unlock()

	r, ok := d.rounds[id]
	if !ok {
		return store.ErrNotFound
	}
	end := res.EndTime
	r.Status = models.StatusFinished
	r.EndTime = &end
	r.Winner = res.Winner
	r.WinningCard = res.WinningCard
	r.WinningPattern = res.WinningPattern
	r.WinningNumbers = append([]int(nil), res.WinningNumbers...)
	r.PrizePool = res.PrizePool
	r.AdminFee = res.AdminFee
	return nil
}

func (s *Store) CloseRound(ctx context.Context, id int64, status models.RoundStatus, at time.Time) error {
	d, unlock := s.lock()
	defer unlock()

	r, ok := d.rounds[id]
	if !ok {
		return store.ErrNotFound
	}
	r.Status = status
	r.EndTime = &at
	return nil
}

func (s *Store) AppendCalledNumber(ctx context.Context, id int64, number int) error {
	d, unlock := s.lock()
	defer unlock()

	r, ok := d.rounds[id]
	if !ok {
		return store.ErrNotFound
	}
	for _, n := range r.CalledNumbers {
		if n == number {
			return nil
		}
	}
	r.CalledNumbers = append(r.CalledNumbers, number)
	return nil
}

func (s *Store) SetCalledNumbers(ctx context.Context, id int64, numbers []int) error {
	d, unlock := s.lock()
	defer unlock()

	r, ok := d.rounds[id]
	if !ok {
		return store.ErrNotFound
	}
	r.CalledNumbers = append([]int{}, numbers...)
	return nil
}

func (s *Store) AddStake(ctx context.Context, id int64, delta decimal.Decimal) error {
	d, unlock := s.lock()
	defer unlock()

	r, ok := d.rounds[id]
	if !ok {
		return store.ErrNotFound
	}
	r.TotalStake = r.TotalStake.Add(delta)
	return nil
}

// Call log

func (s *Store) InsertCalledNumber(ctx context.Context, c models.CalledNumber) error {
	if !bingo.Valid(c.Number) {
		return fmt.Errorf("insert called number: %d out of range", c.Number)
	}

	d, unlock := s.lock()
	defer unlock()

	if _, ok := d.rounds[c.RoundID]; !ok {
		return fmt.Errorf("insert called number: round %d: %w", c.RoundID, store.ErrNotFound)
	}
	for _, existing := range d.calls {
		if existing.RoundID == c.RoundID && existing.Number == c.Number {
			return store.ErrDuplicateCall
		}
	}
	c.ID = d.nextID()
	d.calls = append(d.calls, c)
	return nil
}

func (s *Store) CallLog(ctx context.Context, roundID int64) ([]models.CalledNumber, error) {
	d, unlock := s.lock()
	defer unlock()

	var out []models.CalledNumber
	for _, c := range d.calls {
		if c.RoundID == roundID {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CalledAt.Equal(out[j].CalledAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CalledAt.Before(out[j].CalledAt)
	})
	return out, nil
}

// Selections

func (s *Store) ActiveSelections(ctx context.Context, roundID int64) ([]*models.PlayerSelection, error) {
	d, unlock := s.lock()
	defer unlock()

	var out []*models.PlayerSelection
	for _, sel := range d.selections {
		if sel.RoundID != roundID || !sel.IsActive {
			continue
		}
		c := cloneSelection(sel)
		if card, ok := d.cards[sel.CardID]; ok {
			c.Card = card.Numbers
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetSelection(ctx context.Context, roundID, cardID int64) (*models.PlayerSelection, error) {
	d, unlock := s.lock()
	defer unlock()

	for _, sel := range d.selections {
		if sel.RoundID == roundID && sel.CardID == cardID {
			return cloneSelection(sel), nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateSelection(ctx context.Context, sel *models.PlayerSelection) (*models.PlayerSelection, error) {
	d, unlock := s.lock()
	defer unlock()

	if _, ok := d.cards[sel.CardID]; !ok {
		return nil, fmt.Errorf("create selection: card %d: %w", sel.CardID, store.ErrNotFound)
	}
	for _, existing := range d.selections {
		if existing.RoundID != sel.RoundID || existing.CardID != sel.CardID {
			continue
		}
		if existing.IsActive {
			return nil, store.ErrCardTaken
		}
		existing.UserID = sel.UserID
		existing.Stake = sel.Stake
		existing.IsActive = true
		existing.MarkedNumbers = []int{}
		existing.MarkedPositions = []int{}
		return cloneSelection(existing), nil
	}

	n := &models.PlayerSelection{
		ID:              d.nextID(),
		RoundID:         sel.RoundID,
		UserID:          sel.UserID,
		CardID:          sel.CardID,
		Stake:           sel.Stake,
		MarkedNumbers:   []int{},
		MarkedPositions: []int{},
		IsActive:        true,
		CreatedAt:       s.db.clock.Now(),
	}
	d.selections[n.ID] = n
	return cloneSelection(n), nil
}

func (s *Store) DeactivateSelection(ctx context.Context, id int64) error {
	d, unlock := s.lock()
	defer unlock()

	sel, ok := d.selections[id]
	if !ok {
		return store.ErrNotFound
	}
	sel.IsActive = false
	return nil
}

func (s *Store) SaveMarks(ctx context.Context, sel *models.PlayerSelection) error {
	d, unlock := s.lock()
	defer unlock()

	cur, ok := d.selections[sel.ID]
	if !ok {
		return store.ErrNotFound
	}
	for i, pos := range sel.MarkedPositions {
		cur.Mark(sel.MarkedNumbers[i], pos)
	}
	return nil
}

func (s *Store) MarkWon(ctx context.Context, selectionID int64) error {
	d, unlock := s.lock()
	defer unlock()

	sel, ok := d.selections[selectionID]
	if !ok {
		return store.ErrNotFound
	}
	sel.HasWon = true
	return nil
}

// Cards

func (s *Store) GetCard(ctx context.Context, id int64) (*models.Card, error) {
	d, unlock := s.lock()
	defer unlock()

	c, ok := d.cards[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *Store) GetCardByNo(ctx context.Context, cardNo int) (*models.Card, error) {
	d, unlock := s.lock()
	defer unlock()

	for _, c := range d.cards {
		if c.CardNo == cardNo {
			cp := *c
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) InsertCards(ctx context.Context, cards []bingo.Card) (int, error) {
	d, unlock := s.lock()
	defer unlock()

	next := 0
	for _, c := range d.cards {
		if c.CardNo > next {
			next = c.CardNo
		}
	}
	for i, numbers := range cards {
		c := &models.Card{ID: d.nextID(), CardNo: next + i + 1, Numbers: numbers, CreatedAt: s.db.clock.Now()}
		d.cards[c.ID] = c
	}
	return len(cards), nil
}

// Users and wallets

func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	d, unlock := s.lock()
	defer unlock()

	u, ok := d.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) EnsureUser(ctx context.Context, name string) (*models.User, error) {
	d, unlock := s.lock()
	defer unlock()

	for _, u := range d.users {
		if u.Name == name {
			cp := *u
			return &cp, nil
		}
	}
	u := &models.User{UserId: d.nextID(), Name: name, Status: "active", CreatedAt: s.db.clock.Now()}
	d.users[u.UserId] = u
	cp := *u
	return &cp, nil
}

func (s *Store) post(p models.Posting, dr, cr decimal.Decimal) error {
	d, unlock := s.lock()
	defer unlock()

	if _, ok := d.users[p.UserID]; !ok {
		return fmt.Errorf("post %s: user %d: %w", p.TType, p.UserID, store.ErrNotFound)
	}
	for _, b := range d.ledger {
		if b.TRef == p.TRef {
			return store.ErrDuplicateRef
		}
	}
	bal := d.wallets[p.UserID].Add(dr).Sub(cr)
	if bal.IsNegative() {
		return store.ErrInsufficientFunds
	}
	d.wallets[p.UserID] = bal
	d.ledger = append(d.ledger, models.Balance{
		ID:        d.nextID(),
		UserID:    p.UserID,
		RoundID:   p.RoundID,
		TType:     p.TType,
		Dr:        dr,
		Cr:        cr,
		TRef:      p.TRef,
		Status:    "completed",
		CreatedAt: s.db.clock.Now(),
	})
	return nil
}

func (s *Store) Credit(ctx context.Context, p models.Posting) error {
	return s.post(p, p.Amount, decimal.Zero)
}

func (s *Store) Debit(ctx context.Context, p models.Posting) error {
	return s.post(p, decimal.Zero, p.Amount)
}

func (s *Store) WalletBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	d, unlock := s.lock()
	defer unlock()
	return d.wallets[userID], nil
}

// Engine state

func (s *Store) LoadEngineState(ctx context.Context) (*models.EngineState, error) {
	d, unlock := s.lock()
	defer unlock()

	if d.state == nil {
		return nil, store.ErrNotFound
	}
	cp := *d.state
	return &cp, nil
}

func (s *Store) SaveEngineState(ctx context.Context, st models.EngineState) error {
	d, unlock := s.lock()
	defer unlock()
	d.state = &st
	return nil
}
