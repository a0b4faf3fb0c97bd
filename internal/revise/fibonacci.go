package revise

// Menu holds the four grade values offered after a card is attempted,
// from best recall to worst. Full and Partial grow with the card's
// current score; Critical and None are fixed small resets.
type Menu struct {
	Full     int // knew it well
	Partial  int // minor mistakes
	Critical int // serious mistakes, always 1
	None     int // did not know it at all, always 0
}

// GradeMenu computes the menu for a card with the given current score.
// The Fibonacci run is extended until it passes score, plus one more
// term; Full is the last element and Partial the third from last. This
// gives superlinear interval growth on repeated good grades and a sharp
// reset on poor ones.
func GradeMenu(score int) Menu {
	seq := fibonacciPast(score)
	return Menu{
		Full:     seq[len(seq)-1],
		Partial:  seq[len(seq)-3],
		Critical: 1,
		None:     0,
	}
}

// Contains reports whether v is one of the offered grades.
func (m Menu) Contains(v int) bool {
	return v == m.Full || v == m.Partial || v == m.Critical || v == m.None
}

// fibonacciPast returns the Fibonacci sequence 0,1,1,2,3,5,... extended
// until the running value exceeds target, then one more term. The
// result always has at least three elements.
func fibonacciPast(target int) []int {
	a, b := 0, 1
	seq := []int{a, b}
	for target > seq[len(seq)-1] {
		seq = append(seq, a+b)
		a = b
		b = seq[len(seq)-1]
	}
	if a == 0 && b == 1 {
		seq = append(seq, 2)
	} else {
		seq = append(seq, a+b)
	}
	return seq
}
