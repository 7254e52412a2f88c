package store

import (
	"context"
	"fmt"

	"github.com/avvvet/bingo-engine/internal/gamesvc/models"
	"github.com/jackc/pgx/v5"
)

func (s *PGStore) InsertCalledNumber(ctx context.Context, c models.CalledNumber) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO called_numbers (round_id, letter, number, called_at)
		VALUES ($1, $2, $3, $4)`, c.RoundID, c.Letter, c.Number, c.CalledAt)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return ErrDuplicateCall
		}
		return fmt.Errorf("insert called number: %w", err)
	}
	return nil
}

// CallLog returns the durable log in call order.
func (s *PGStore) CallLog(ctx context.Context, roundID int64) ([]models.CalledNumber, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, round_id, letter, number, called_at
		FROM called_numbers
		WHERE round_id = $1
		ORDER BY called_at, id`, roundID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.CalledNumber, error) {
		var c models.CalledNumber
		err := row.Scan(&c.ID, &c.RoundID, &c.Letter, &c.Number, &c.CalledAt)
		return c, err
	})
}
