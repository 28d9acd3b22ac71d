package terminal

import "strings"

// Normalize orders the selection so Start precedes End.
func (s Selection) Normalize() Selection {
	if s.End.Y < s.Start.Y || (s.End.Y == s.Start.Y && s.End.X < s.Start.X) {
		s.Start, s.End = s.End, s.Start
	}
	return s
}

func (s Selection) Empty() bool {
	return s.Start == s.End
}

// SelectText extracts the text covered by sel from screen lines. Trailing
// blanks are dropped from each line and lines are joined with "\n".
func SelectText(lines []string, sel Selection) string {
	sel = sel.Normalize()
	if sel.Empty() || len(lines) == 0 {
		return ""
	}
	var out []string
	for y := max(sel.Start.Y, 0); y <= sel.End.Y && y < len(lines); y++ {
		cells := []rune(lines[y])
		from, to := 0, len(cells)
		if y == sel.Start.Y {
			from = sel.Start.X
		}
		if y == sel.End.Y {
			to = sel.End.X
		}
		from = min(max(from, 0), len(cells))
		to = min(max(to, from), len(cells))
		out = append(out, strings.TrimRight(string(cells[from:to]), " "))
	}
	return strings.Join(out, "\n")
}
