package bingo

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitPrizeSingleWinner(t *testing.T) {
	s := SplitPrize(decimal.NewFromInt(100), decimal.RequireFromString("0.80"), 1)
	assert.True(t, s.Pool.Equal(decimal.NewFromInt(80)), s.Pool.String())
	assert.True(t, s.Fee.Equal(decimal.NewFromInt(20)), s.Fee.String())
	require.Len(t, s.Shares, 1)
	assert.True(t, s.Shares[0].Equal(decimal.NewFromInt(80)))
}

func TestSplitPrizeEvenAcrossWinners(t *testing.T) {
	s := SplitPrize(decimal.NewFromInt(100), decimal.RequireFromString("0.80"), 2)
	require.Len(t, s.Shares, 2)
	for _, sh := range s.Shares {
		assert.True(t, sh.Equal(decimal.NewFromInt(40)), sh.String())
	}
}

func TestSplitPrizeLeftoverCents(t *testing.T) {
	s := SplitPrize(decimal.NewFromInt(10), decimal.RequireFromString("0.80"), 3)
	require.Len(t, s.Shares, 3)
	assert.Equal(t, "2.67", s.Shares[0].StringFixed(2))
	assert.Equal(t, "2.67", s.Shares[1].StringFixed(2))
	assert.Equal(t, "2.66", s.Shares[2].StringFixed(2))

	sum := decimal.Zero
	for _, sh := range s.Shares {
		sum = sum.Add(sh)
	}
	assert.True(t, sum.Equal(s.Pool))
	assert.True(t, s.Pool.Add(s.Fee).Equal(decimal.NewFromInt(10)))
}

func TestSplitPrizeNoWinners(t *testing.T) {
	s := SplitPrize(decimal.NewFromInt(30), decimal.RequireFromString("0.80"), 0)
	assert.Empty(t, s.Shares)
	assert.Equal(t, "24.00", s.Pool.StringFixed(2))
}
