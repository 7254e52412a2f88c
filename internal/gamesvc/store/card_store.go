package store

import (
	"context"
	"fmt"

	"github.com/avvvet/bingo-engine/internal/bingo"
	"github.com/avvvet/bingo-engine/internal/gamesvc/models"
	"github.com/jackc/pgx/v5"
)

func scanCard(row pgx.Row) (*models.Card, error) {
	var card models.Card
	err := row.Scan(&card.ID, &card.CardNo, &card.Numbers, &card.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &card, nil
}

func (s *PGStore) GetCard(ctx context.Context, id int64) (*models.Card, error) {
	return scanCard(s.db.QueryRow(ctx, `SELECT id, card_no, numbers, created_at FROM cards WHERE id = $1`, id))
}

func (s *PGStore) GetCardByNo(ctx context.Context, cardNo int) (*models.Card, error) {
	return scanCard(s.db.QueryRow(ctx, `SELECT id, card_no, numbers, created_at FROM cards WHERE card_no = $1`, cardNo))
}

// InsertCards appends cards with sequential card numbers after the
// current maximum.
func (s *PGStore) InsertCards(ctx context.Context, cards []bingo.Card) (int, error) {
	var next int
	if err := s.db.QueryRow(ctx, `SELECT COALESCE(MAX(card_no), 0) FROM cards`).Scan(&next); err != nil {
		return 0, fmt.Errorf("max card_no: %w", err)
	}

	batch := &pgx.Batch{}
	for i, c := range cards {
		batch.Queue(`INSERT INTO cards (card_no, numbers) VALUES ($1, $2)`, next+i+1, c)
	}

	br := s.db.SendBatch(ctx, batch)
	defer br.Close()

	for range cards {
		if _, err := br.Exec(); err != nil {
			return 0, fmt.Errorf("insert card: %w", err)
		}
	}
	return len(cards), nil
}
