package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/avvvet/bingo-engine/internal/gamesvc/models"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// lockWallet returns the locked balance, creating an empty wallet first
// when the user has none.
func (s *PGStore) lockWallet(ctx context.Context, userID int64) (decimal.Decimal, error) {
	if _, err := s.db.Exec(ctx, `
		INSERT INTO wallets (user_id, balance) VALUES ($1, 0)
		ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		return decimal.Zero, fmt.Errorf("create wallet: %w", err)
	}

	var bal decimal.Decimal
	err := s.db.QueryRow(ctx, `SELECT balance FROM wallets WHERE user_id = $1 FOR UPDATE`, userID).Scan(&bal)
	if err != nil {
		return decimal.Zero, fmt.Errorf("lock wallet: %w", err)
	}
	return bal, nil
}

func (s *PGStore) writeLedger(ctx context.Context, p models.Posting, dr, cr decimal.Decimal) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO balances (user_id, round_id, ttype, dr, cr, tref, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'completed')`,
		p.UserID, p.RoundID, p.TType, dr, cr, p.TRef)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return ErrDuplicateRef
		}
		return fmt.Errorf("write ledger: %w", err)
	}
	return nil
}

// Credit adds to the wallet and records a dr ledger row. Callers run it
// inside WithTx so the row lock covers both writes.
func (s *PGStore) Credit(ctx context.Context, p models.Posting) error {
	if _, err := s.lockWallet(ctx, p.UserID); err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, `
		UPDATE wallets SET balance = balance + $2, updated_at = now()
		WHERE user_id = $1`, p.UserID, p.Amount); err != nil {
		return fmt.Errorf("credit wallet: %w", err)
	}
	return s.writeLedger(ctx, p, p.Amount, decimal.Zero)
}

func (s *PGStore) Debit(ctx context.Context, p models.Posting) error {
	bal, err := s.lockWallet(ctx, p.UserID)
	if err != nil {
		return err
	}
	if bal.LessThan(p.Amount) {
		return ErrInsufficientFunds
	}
	if _, err := s.db.Exec(ctx, `
		UPDATE wallets SET balance = balance - $2, updated_at = now()
		WHERE user_id = $1`, p.UserID, p.Amount); err != nil {
		return fmt.Errorf("debit wallet: %w", err)
	}
	return s.writeLedger(ctx, p, decimal.Zero, p.Amount)
}

func (s *PGStore) WalletBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	var bal decimal.Decimal
	err := s.db.QueryRow(ctx, `SELECT balance FROM wallets WHERE user_id = $1`, userID).Scan(&bal)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return bal, nil
}
