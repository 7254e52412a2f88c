package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/avvvet/bingo-engine/internal/gamesvc/models"
	"github.com/jackc/pgx/v5"
)

const selectionColumns = `ps.id, ps.round_id, ps.user_id, ps.card_id, ps.stake, ps.marked_numbers,
	ps.marked_positions, ps.is_active, ps.has_won, ps.created_at`

func scanSelection(row pgx.Row, withCard bool) (*models.PlayerSelection, error) {
	sel := &models.PlayerSelection{}
	dest := []any{
		&sel.ID,
		&sel.RoundID,
		&sel.UserID,
		&sel.CardID,
		&sel.Stake,
		&sel.MarkedNumbers,
		&sel.MarkedPositions,
		&sel.IsActive,
		&sel.HasWon,
		&sel.CreatedAt,
	}
	if withCard {
		dest = append(dest, &sel.Card)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, notFound(err)
	}
	return sel, nil
}

// ActiveSelections loads every active selection of a round with its card,
// ordered by selection id.
func (s *PGStore) ActiveSelections(ctx context.Context, roundID int64) ([]*models.PlayerSelection, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+selectionColumns+`, c.numbers
		FROM player_selections ps
		JOIN cards c ON c.id = ps.card_id
		WHERE ps.round_id = $1 AND ps.is_active
		ORDER BY ps.id`, roundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.PlayerSelection
	for rows.Next() {
		sel, err := scanSelection(rows, true)
		if err != nil {
			return nil, err
		}
		out = append(out, sel)
	}
	return out, rows.Err()
}

func (s *PGStore) GetSelection(ctx context.Context, roundID, cardID int64) (*models.PlayerSelection, error) {
	return scanSelection(s.db.QueryRow(ctx, `
		SELECT `+selectionColumns+`
		FROM player_selections ps
		WHERE ps.round_id = $1 AND ps.card_id = $2`, roundID, cardID), false)
}

// CreateSelection claims a card for the round. An inactive selection of
// the same card is re-activated for the new player; an active one fails
// with ErrCardTaken.
func (s *PGStore) CreateSelection(ctx context.Context, sel *models.PlayerSelection) (*models.PlayerSelection, error) {
	const query = `
INSERT INTO player_selections AS ps (round_id, user_id, card_id, stake)
VALUES ($1, $2, $3, $4)
ON CONFLICT ON CONSTRAINT unique_round_card DO UPDATE
SET user_id = EXCLUDED.user_id, stake = EXCLUDED.stake, is_active = TRUE,
    marked_numbers = '{}', marked_positions = '{}'
WHERE NOT ps.is_active
RETURNING ` + selectionColumns

	out, err := scanSelection(s.db.QueryRow(ctx, query, sel.RoundID, sel.UserID, sel.CardID, sel.Stake), false)
	if err != nil {
		// zero rows means the conflicting row is still active
		if errors.Is(err, ErrNotFound) {
			return nil, ErrCardTaken
		}
		return nil, fmt.Errorf("create selection: %w", err)
	}
	return out, nil
}

func (s *PGStore) DeactivateSelection(ctx context.Context, id int64) error {
	_, err := s.db.Exec(ctx, `UPDATE player_selections SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate selection: %w", err)
	}
	return nil
}

// SaveMarks appends the positions not yet stored. The arrays are merged
// against the row version being updated, so concurrent writers cannot
// drop each other's marks.
func (s *PGStore) SaveMarks(ctx context.Context, sel *models.PlayerSelection) error {
	_, err := s.db.Exec(ctx, `
		UPDATE player_selections ps
		SET marked_numbers = ps.marked_numbers || ARRAY(
				SELECT m.n FROM unnest($2::int[], $3::int[]) WITH ORDINALITY AS m(n, p, ord)
				WHERE NOT m.p = ANY(ps.marked_positions) ORDER BY m.ord),
			marked_positions = ps.marked_positions || ARRAY(
				SELECT m.p FROM unnest($2::int[], $3::int[]) WITH ORDINALITY AS m(n, p, ord)
				WHERE NOT m.p = ANY(ps.marked_positions) ORDER BY m.ord)
		WHERE ps.id = $1`, sel.ID, sel.MarkedNumbers, sel.MarkedPositions)
	if err != nil {
		return fmt.Errorf("save marks: %w", err)
	}
	return nil
}

func (s *PGStore) MarkWon(ctx context.Context, selectionID int64) error {
	_, err := s.db.Exec(ctx, `UPDATE player_selections SET has_won = TRUE WHERE id = $1`, selectionID)
	if err != nil {
		return fmt.Errorf("mark won: %w", err)
	}
	return nil
}
