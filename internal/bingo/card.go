// Package bingo holds the rules of 75-ball bingo: card layout, letter
// bands, the winning pattern catalog and prize arithmetic.
package bingo

import (
	"fmt"
	"math/rand"
	"sort"
)

const (
	Size         = 5
	Cells        = Size * Size
	FreePosition = 12 // row 2, col 2
	MaxNumber    = 75
	bandWidth    = 15
)

var letters = [Size]string{"B", "I", "N", "G", "O"}

// Card is a 5x5 grid stored column-major (Card[col][row]), B..O.
// Positions are flattened row-major as row*5+col.
type Card [Size][Size]int

// Position returns the flat index of a grid cell.
func Position(row, col int) int {
	return row*Size + col
}

// At returns the number printed at pos.
func (c Card) At(pos int) int {
	return c[pos%Size][pos/Size]
}

// PositionOf scans the grid for number.
func (c Card) PositionOf(number int) (int, bool) {
	for col := 0; col < Size; col++ {
		for row := 0; row < Size; row++ {
			if c[col][row] == number {
				return Position(row, col), true
			}
		}
	}
	return -1, false
}

// FreeNumber is the card specific value sitting under the FREE cell.
func (c Card) FreeNumber() int {
	return c.At(FreePosition)
}

// Validate checks column bands, uniqueness and ordering.
func (c Card) Validate() error {
	for col := 0; col < Size; col++ {
		lo, hi := col*bandWidth+1, (col+1)*bandWidth
		for row := 0; row < Size; row++ {
			n := c[col][row]
			if n < lo || n > hi {
				return fmt.Errorf("column %s: %d outside %d-%d", letters[col], n, lo, hi)
			}
			if row > 0 && c[col][row-1] >= n {
				return fmt.Errorf("column %s: values not strictly ascending", letters[col])
			}
		}
	}
	return nil
}

// Letter returns the band letter for a called number, or "" when out of range.
func Letter(n int) string {
	if !Valid(n) {
		return ""
	}
	return letters[(n-1)/bandWidth]
}

// Valid reports whether n can be drawn.
func Valid(n int) bool {
	return n >= 1 && n <= MaxNumber
}

// GenerateCard draws five sorted unique values for every column band.
func GenerateCard(rng *rand.Rand) Card {
	var c Card
	for col := 0; col < Size; col++ {
		picks := rng.Perm(bandWidth)[:Size]
		sort.Ints(picks)
		for row, p := range picks {
			c[col][row] = col*bandWidth + p + 1
		}
	}
	return c
}
