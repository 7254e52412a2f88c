package store

import (
	"context"
	"fmt"
	"time"

	"github.com/avvvet/bingo-engine/internal/gamesvc/models"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const roundColumns = `id, round_number, status, total_stake, called_numbers, selection_end_time,
	start_time, end_time, winner, winning_card, winning_pattern, winning_numbers,
	prize_pool, admin_fee, created_at`

func scanRound(row pgx.Row) (*models.GameRound, error) {
	r := &models.GameRound{}
	err := row.Scan(
		&r.ID,
		&r.RoundNumber,
		&r.Status,
		&r.TotalStake,
		&r.CalledNumbers,
		&r.SelectionEndTime,
		&r.StartTime,
		&r.EndTime,
		&r.Winner,
		&r.WinningCard,
		&r.WinningPattern,
		&r.WinningNumbers,
		&r.PrizePool,
		&r.AdminFee,
		&r.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return r, nil
}

func (s *PGStore) CurrentRound(ctx context.Context) (*models.GameRound, error) {
	return scanRound(s.db.QueryRow(ctx, `
		SELECT `+roundColumns+`
		FROM game_rounds
		WHERE status IN ('waiting', 'active')
		ORDER BY round_number DESC
		LIMIT 1`))
}

func (s *PGStore) LatestRound(ctx context.Context) (*models.GameRound, error) {
	return scanRound(s.db.QueryRow(ctx, `
		SELECT `+roundColumns+`
		FROM game_rounds
		ORDER BY round_number DESC
		LIMIT 1`))
}

func (s *PGStore) GetRound(ctx context.Context, id int64) (*models.GameRound, error) {
	return scanRound(s.db.QueryRow(ctx, `SELECT `+roundColumns+` FROM game_rounds WHERE id = $1`, id))
}

func (s *PGStore) LockRound(ctx context.Context, id int64) (*models.GameRound, error) {
	return scanRound(s.db.QueryRow(ctx, `SELECT `+roundColumns+` FROM game_rounds WHERE id = $1 FOR UPDATE`, id))
}

func (s *PGStore) RoundIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.Query(ctx, `SELECT id FROM game_rounds ORDER BY round_number`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

// CreateRound inserts the next round number. Two creators racing on the
// same number surface as ErrRoundConflict.
func (s *PGStore) CreateRound(ctx context.Context, selectionEnd time.Time) (*models.GameRound, error) {
	r, err := scanRound(s.db.QueryRow(ctx, `
		INSERT INTO game_rounds (round_number, status, selection_end_time)
		SELECT COALESCE(MAX(round_number), 0) + 1, 'waiting', $1
		FROM game_rounds
		RETURNING `+roundColumns, selectionEnd))
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return nil, ErrRoundConflict
		}
		return nil, fmt.Errorf("create round: %w", err)
	}
	return r, nil
}

func (s *PGStore) ActivateRound(ctx context.Context, id int64, at time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE game_rounds
		SET status = 'active', start_time = $2
		WHERE id = $1 AND status = 'waiting'`, id, at)
	if err != nil {
		return false, fmt.Errorf("activate round: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) FinishRound(ctx context.Context, id int64, res models.RoundResult) error {
	winning := res.WinningNumbers
	if winning == nil {
		winning = []int{}
	}
	_, err := s.db.Exec(ctx, `
		UPDATE game_rounds
		SET status = 'finished', end_time = $2, winner = $3, winning_card = $4,
			winning_pattern = $5, winning_numbers = $6, prize_pool = $7, admin_fee = $8
		WHERE id = $1`,
		id, res.EndTime, res.Winner, res.WinningCard, res.WinningPattern, winning, res.PrizePool, res.AdminFee)
	if err != nil {
		return fmt.Errorf("finish round: %w", err)
	}
	return nil
}

func (s *PGStore) CloseRound(ctx context.Context, id int64, status models.RoundStatus, at time.Time) error {
	_, err := s.db.Exec(ctx, `UPDATE game_rounds SET status = $2, end_time = $3 WHERE id = $1`, id, status, at)
	if err != nil {
		return fmt.Errorf("close round: %w", err)
	}
	return nil
}

func (s *PGStore) AppendCalledNumber(ctx context.Context, id int64, number int) error {
	_, err := s.db.Exec(ctx, `
		UPDATE game_rounds
		SET called_numbers = array_append(called_numbers, $2)
		WHERE id = $1 AND NOT ($2 = ANY (called_numbers))`, id, number)
	if err != nil {
		return fmt.Errorf("append called number: %w", err)
	}
	return nil
}

func (s *PGStore) SetCalledNumbers(ctx context.Context, id int64, numbers []int) error {
	if numbers == nil {
		numbers = []int{}
	}
	_, err := s.db.Exec(ctx, `UPDATE game_rounds SET called_numbers = $2 WHERE id = $1`, id, numbers)
	if err != nil {
		return fmt.Errorf("set called numbers: %w", err)
	}
	return nil
}

func (s *PGStore) AddStake(ctx context.Context, id int64, delta decimal.Decimal) error {
	_, err := s.db.Exec(ctx, `UPDATE game_rounds SET total_stake = total_stake + $2 WHERE id = $1`, id, delta)
	if err != nil {
		return fmt.Errorf("add stake: %w", err)
	}
	return nil
}
