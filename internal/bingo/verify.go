package bingo

// NumberSet is a membership set of called numbers.
type NumberSet map[int]struct{}

func NewNumberSet(numbers []int) NumberSet {
	s := make(NumberSet, len(numbers))
	for _, n := range numbers {
		s[n] = struct{}{}
	}
	return s
}

func (s NumberSet) Has(n int) bool {
	_, ok := s[n]
	return ok
}

// Win is a matched pattern whose numbers were confirmed against the
// durable call log.
type Win struct {
	Pattern   string
	Positions []int
	Numbers   []int
}

// Verify keeps the matched patterns whose card numbers were all called.
// The FREE position is exempt: it is accepted even when its number is
// missing from called.
func Verify(card Card, matched []Pattern, called NumberSet) []Win {
	var wins []Win
	for _, p := range matched {
		numbers := make([]int, 0, len(p.Positions))
		ok := true
		for _, pos := range p.Positions {
			n := card.At(pos)
			if pos != FreePosition && !called.Has(n) {
				ok = false
				break
			}
			numbers = append(numbers, n)
		}
		if ok {
			wins = append(wins, Win{Pattern: p.Name, Positions: p.Positions, Numbers: numbers})
		}
	}
	return wins
}
