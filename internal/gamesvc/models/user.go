package models

import (
	"time"
)

// User is a player or an operator account. AgentID points at the
// operator whose account collects the house fee for this player.
type User struct {
	UserId    int64     `json:"user_id"`
	Name      string    `json:"name"`
	AgentID   *int64    `json:"agent_id,omitempty"`
	Status    string    `json:"status,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
