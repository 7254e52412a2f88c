package comm

import (
	"encoding/json"
	"time"
)

// Topics shared by the engine and its consumers.
const (
	TopicGameService   = "game.service"
	TopicEngineControl = "engine.control"
)

type WSMessage struct {
	Type     string          `json:"type"` // e.g. "bingo-call", "game-finished"
	Data     json.RawMessage `json:"data"`
	SocketId string          `json:"socketid,omitempty"`
}

type ServiceHeartbeat struct {
	ID        string    `json:"id"` // engine instance id
	Timestamp time.Time `json:"timestamp"`
}

type RoundData struct {
	RoundID          int64      `json:"round_id"`
	RoundNumber      int64      `json:"round_number"`
	Status           string     `json:"status"`
	TotalStake       string     `json:"total_stake"`
	CalledNumbers    []int      `json:"called_numbers"`
	SelectionEndTime time.Time  `json:"selection_end_time"`
	StartTime        *time.Time `json:"start_time,omitempty"`
	EndTime          *time.Time `json:"end_time,omitempty"`
}

type CallData struct {
	RoundID int64  `json:"round_id"`
	Number  int    `json:"number"`
	Letter  string `json:"letter"`
	Call    string `json:"call"` // e.g. "B-7"
}

type WinnerData struct {
	UserID    int64    `json:"user_id"`
	CardID    int64    `json:"card_id"`
	Pattern   string   `json:"pattern"`
	Positions []int    `json:"positions"`
	Numbers   []int    `json:"numbers"`
	Patterns  []string `json:"patterns,omitempty"`
}

type FinishData struct {
	Round          RoundData    `json:"round"`
	Outcome        string       `json:"outcome"`
	Winners        []WinnerData `json:"winners"`
	WinningPattern string       `json:"winning_pattern"`
	PrizePool      string       `json:"prize_pool"`
	AdminFee       string       `json:"admin_fee"`
}

// ControlRequest is sent on TopicEngineControl with request/reply.
type ControlRequest struct {
	Type    string `json:"type"` // "status" or "force-check"
	RoundID int64  `json:"round_id,omitempty"`
}

type ControlResponse struct {
	OK    bool            `json:"ok"`
	Error string          `json:"error,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type CheckResult struct {
	RoundID int64 `json:"round_id"`
	Settled bool  `json:"settled"`
}
