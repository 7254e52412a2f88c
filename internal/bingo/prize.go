package bingo

import (
	"github.com/shopspring/decimal"
)

// Split is the money breakdown of a settled round.
type Split struct {
	Pool   decimal.Decimal
	Fee    decimal.Decimal
	Shares []decimal.Decimal
}

// SplitPrize takes rate of stake as the prize pool (rounded to cents),
// leaves the rest as the house fee and divides the pool evenly across
// winners. Leftover cents go to the first winners so the shares always
// sum to the pool.
func SplitPrize(stake, rate decimal.Decimal, winners int) Split {
	pool := stake.Mul(rate).Round(2)
	s := Split{Pool: pool, Fee: stake.Sub(pool)}
	if winners <= 0 {
		return s
	}

	cents := pool.Shift(2).IntPart()
	base, rem := cents/int64(winners), cents%int64(winners)
	s.Shares = make([]decimal.Decimal, winners)
	for i := range s.Shares {
		c := base
		if int64(i) < rem {
			c++
		}
		s.Shares[i] = decimal.New(c, -2)
	}
	return s
}
