package service

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/avvvet/bingo-engine/internal/bingo"
	"github.com/avvvet/bingo-engine/internal/gamesvc/models"
	"github.com/avvvet/bingo-engine/internal/gamesvc/store"
)

type CardService struct {
	repo store.Repository
	rng  *rand.Rand
}

func NewCardService(repo store.Repository, rng *rand.Rand) *CardService {
	return &CardService{repo: repo, rng: rng}
}

func (s *CardService) GetCard(ctx context.Context, cardNo int) (*models.Card, error) {
	return s.repo.GetCardByNo(ctx, cardNo)
}

// Generate creates count distinct cards and stores them with sequential
// card numbers.
func (s *CardService) Generate(ctx context.Context, count int) (int, error) {
	if count <= 0 {
		return 0, fmt.Errorf("generate cards: count must be positive, got %d", count)
	}

	seen := make(map[bingo.Card]struct{}, count)
	cards := make([]bingo.Card, 0, count)
	for len(cards) < count {
		c := bingo.GenerateCard(s.rng)
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		cards = append(cards, c)
	}

	n, err := s.repo.InsertCards(ctx, cards)
	if err != nil {
		return 0, fmt.Errorf("generate cards: %w", err)
	}
	return n, nil
}
