package engine

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	SelectionWindow time.Duration
	CallInterval    time.Duration
	Cooldown        time.Duration
	PrizeRate       decimal.Decimal
	HouseAccount    string
	// SyncEvery rebuilds the called_numbers cache from the durable log
	// whenever the cached length is a multiple of it.
	SyncEvery     int
	RoundCacheTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		SelectionWindow: 60 * time.Second,
		CallInterval:    2 * time.Second,
		Cooldown:        5 * time.Second,
		PrizeRate:       decimal.RequireFromString("0.80"),
		HouseAccount:    "nebaBingo",
		SyncEvery:       10,
		RoundCacheTTL:   2 * time.Second,
	}
}

func (c Config) Validate() error {
	switch {
	case c.SelectionWindow <= 0, c.CallInterval <= 0, c.Cooldown < 0, c.RoundCacheTTL <= 0:
		return errors.New("engine durations must be positive")
	case !c.PrizeRate.IsPositive() || c.PrizeRate.GreaterThan(decimal.NewFromInt(1)):
		return errors.New("prize rate must be in (0, 1]")
	case c.HouseAccount == "":
		return errors.New("house account is required")
	case c.SyncEvery <= 0:
		return errors.New("sync interval must be positive")
	}
	return nil
}
