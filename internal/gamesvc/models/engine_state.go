package models

import "time"

// EngineState is the persisted heartbeat used by the recovery policy.
type EngineState struct {
	Running      bool      `json:"running"`
	StartedAt    time.Time `json:"started_at"`
	LastActivity time.Time `json:"last_activity"`
	InstanceID   string    `json:"instance_id"`
}
