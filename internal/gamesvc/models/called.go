package models

import "time"

// CalledNumber is one entry of the durable call log.
type CalledNumber struct {
	ID       int64     `json:"id"`
	RoundID  int64     `json:"round_id"`
	Letter   string    `json:"letter"`
	Number   int       `json:"number"`
	CalledAt time.Time `json:"called_at"`
}
