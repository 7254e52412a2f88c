package bingo

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCard(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		c := GenerateCard(rng)
		require.NoError(t, c.Validate())
	}
}

func TestCardPositions(t *testing.T) {
	c := sampleCard()
	assert.Equal(t, 1, c.At(0))
	assert.Equal(t, 61, c.At(4))
	assert.Equal(t, 5, c.At(20))
	assert.Equal(t, 33, c.FreeNumber())

	pos, ok := c.PositionOf(33)
	require.True(t, ok)
	assert.Equal(t, FreePosition, pos)

	_, ok = c.PositionOf(75)
	assert.False(t, ok)
}

func TestValidateRejectsBadColumns(t *testing.T) {
	c := sampleCard()
	c[0][1] = 20
	assert.Error(t, c.Validate())

	c = sampleCard()
	c[1][0], c[1][1] = c[1][1], c[1][0]
	assert.Error(t, c.Validate())
}

func TestLetter(t *testing.T) {
	cases := map[int]string{1: "B", 15: "B", 16: "I", 30: "I", 31: "N", 45: "N", 46: "G", 60: "G", 61: "O", 75: "O", 0: "", 76: ""}
	for n, want := range cases {
		assert.Equal(t, want, Letter(n), "number %d", n)
	}
}

// sampleCard has B=1..5, I=16..20, N=31..35, G=46..50, O=61..65.
func sampleCard() Card {
	var c Card
	for col := 0; col < Size; col++ {
		for row := 0; row < Size; row++ {
			c[col][row] = col*15 + row + 1
		}
	}
	return c
}
