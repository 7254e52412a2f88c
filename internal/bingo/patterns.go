package bingo

// Pattern is a named set of card positions that wins when fully marked.
type Pattern struct {
	Name      string
	Positions []int
}

// Patterns is the fixed catalog. Its order decides which pattern is
// reported first when a card satisfies several at once.
var Patterns = buildPatterns()

func buildPatterns() []Pattern {
	full := make([]int, Cells)
	for i := range full {
		full[i] = i
	}
	diag1 := make([]int, Size)
	diag2 := make([]int, Size)
	for i := 0; i < Size; i++ {
		diag1[i] = Position(i, i)
		diag2[i] = Position(i, Size-1-i)
	}

	ps := []Pattern{
		{Name: "full_house", Positions: full},
		{Name: "diagonal_1", Positions: diag1},
		{Name: "diagonal_2", Positions: diag2},
		{Name: "four_corners", Positions: []int{0, 4, 20, 24}},
	}
	for row := 0; row < Size; row++ {
		pos := make([]int, Size)
		for col := 0; col < Size; col++ {
			pos[col] = Position(row, col)
		}
		ps = append(ps, Pattern{Name: rowName(row), Positions: pos})
	}
	for col := 0; col < Size; col++ {
		pos := make([]int, Size)
		for row := 0; row < Size; row++ {
			pos[row] = Position(row, col)
		}
		ps = append(ps, Pattern{Name: colName(col), Positions: pos})
	}
	return ps
}

func rowName(row int) string { return "row_" + string(rune('1'+row)) }
func colName(col int) string { return "col_" + string(rune('1'+col)) }

// Match returns every catalog pattern covered by marked. The FREE cell
// counts as marked whether or not it was recorded.
func Match(marked []int) []Pattern {
	var set [Cells]bool
	for _, p := range marked {
		if p >= 0 && p < Cells {
			set[p] = true
		}
	}
	set[FreePosition] = true

	var out []Pattern
	for _, p := range Patterns {
		if covered(set, p.Positions) {
			out = append(out, p)
		}
	}
	return out
}

func covered(set [Cells]bool, positions []int) bool {
	for _, p := range positions {
		if !set[p] {
			return false
		}
	}
	return true
}
