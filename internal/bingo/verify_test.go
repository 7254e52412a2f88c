package bingo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyConfirmsCalledNumbers(t *testing.T) {
	c := sampleCard()
	// row_1 is 1,16,31,46,61
	matched := Match([]int{0, 1, 2, 3, 4})
	require.Len(t, matched, 1)

	wins := Verify(c, matched, NewNumberSet([]int{1, 16, 31, 46, 61}))
	require.Len(t, wins, 1)
	assert.Equal(t, "row_1", wins[0].Pattern)
	assert.Equal(t, []int{1, 16, 31, 46, 61}, wins[0].Numbers)
}

func TestVerifyRejectsUncalled(t *testing.T) {
	c := sampleCard()
	matched := Match([]int{0, 1, 2, 3, 4})
	wins := Verify(c, matched, NewNumberSet([]int{1, 16, 31, 46}))
	assert.Empty(t, wins)
}

func TestVerifyExemptsFree(t *testing.T) {
	c := sampleCard()
	// diagonal_1 is 1,17,33,49,65; 33 sits under FREE and was never called.
	matched := Match([]int{0, 6, 18, 24})
	wins := Verify(c, matched, NewNumberSet([]int{1, 17, 49, 65}))
	require.Len(t, wins, 1)
	assert.Equal(t, "diagonal_1", wins[0].Pattern)
	assert.Contains(t, wins[0].Numbers, 33)
}
