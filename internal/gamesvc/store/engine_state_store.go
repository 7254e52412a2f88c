package store

import (
	"context"
	"fmt"
	"time"

	"github.com/avvvet/bingo-engine/internal/gamesvc/models"
)

func (s *PGStore) LoadEngineState(ctx context.Context) (*models.EngineState, error) {
	var (
		st                  models.EngineState
		started, lastActive *time.Time
	)
	err := s.db.QueryRow(ctx, `
		SELECT running, started_at, last_activity, instance_id
		FROM engine_state WHERE id = 1`).Scan(&st.Running, &started, &lastActive, &st.InstanceID)
	if err != nil {
		return nil, notFound(err)
	}
	if started != nil {
		st.StartedAt = *started
	}
	if lastActive != nil {
		st.LastActivity = *lastActive
	}
	return &st, nil
}

func (s *PGStore) SaveEngineState(ctx context.Context, st models.EngineState) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO engine_state (id, running, started_at, last_activity, instance_id)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET running = EXCLUDED.running, started_at = EXCLUDED.started_at,
			last_activity = EXCLUDED.last_activity, instance_id = EXCLUDED.instance_id`,
		st.Running, st.StartedAt, st.LastActivity, st.InstanceID)
	if err != nil {
		return fmt.Errorf("save engine state: %w", err)
	}
	return nil
}
