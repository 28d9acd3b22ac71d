package terminal

import "testing"

func TestSelectText(t *testing.T) {
	lines := []string{
		"first line   ",
		"second line  ",
		"third        ",
	}
	tests := []struct {
		name string
		sel  Selection
		want string
	}{
		{name: "empty", sel: Selection{Start: Cursor{X: 3}, End: Cursor{X: 3}}, want: ""},
		{name: "single line", sel: Selection{Start: Cursor{X: 0, Y: 0}, End: Cursor{X: 5, Y: 0}}, want: "first"},
		{name: "multi line", sel: Selection{Start: Cursor{X: 6, Y: 0}, End: Cursor{X: 6, Y: 1}}, want: "line\nsecond"},
		{name: "reversed", sel: Selection{Start: Cursor{X: 6, Y: 1}, End: Cursor{X: 6, Y: 0}}, want: "line\nsecond"},
		{name: "clamped", sel: Selection{Start: Cursor{X: 0, Y: 2}, End: Cursor{X: 99, Y: 9}}, want: "third"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SelectText(lines, tt.sel); got != tt.want {
				t.Fatalf("SelectText = %q, want %q", got, tt.want)
			}
		})
	}
}
