package store

import (
	"context"
	"fmt"

	"github.com/avvvet/bingo-engine/internal/gamesvc/models"
)

func (s *PGStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	u := &models.User{}
	err := s.db.QueryRow(ctx, `
		SELECT user_id, name, agent_id, status, created_at
		FROM users
		WHERE user_id = $1`, id).Scan(&u.UserId, &u.Name, &u.AgentID, &u.Status, &u.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

// EnsureUser returns the named account, creating it when missing.
func (s *PGStore) EnsureUser(ctx context.Context, name string) (*models.User, error) {
	u := &models.User{}
	err := s.db.QueryRow(ctx, `
		INSERT INTO users (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING user_id, name, agent_id, status, created_at`, name).
		Scan(&u.UserId, &u.Name, &u.AgentID, &u.Status, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("ensure user %q: %w", name, err)
	}
	return u, nil
}
