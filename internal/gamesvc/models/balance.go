package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ledger entry types.
const (
	TxBet           = "bet"
	TxRefund        = "refund"
	TxWon           = "won"
	TxAdminFee      = "admin_fee"
	TxNoWinnerStake = "no_winner_stake"
)

// Balance is one ledger row. Dr credits the user, Cr debits.
type Balance struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	RoundID   *int64          `json:"round_id,omitempty"`
	TType     string          `json:"ttype"`
	Dr        decimal.Decimal `json:"dr"`
	Cr        decimal.Decimal `json:"cr"`
	TRef      string          `json:"tref"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

type Wallet struct {
	UserID    int64           `json:"user_id"`
	Balance   decimal.Decimal `json:"balance"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Posting is a wallet movement together with its ledger description.
type Posting struct {
	UserID  int64
	Amount  decimal.Decimal
	TType   string
	TRef    string
	RoundID *int64
}
