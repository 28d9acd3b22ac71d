package terminal

const (
	MinCols = 2
	MinRows = 1
)

// FitAddon sizes an emulator to fill its container.
type FitAddon struct {
	CellWidth  int
	CellHeight int
}

func NewFitAddon(cellWidth, cellHeight int) FitAddon {
	if cellWidth <= 0 {
		cellWidth = 1
	}
	if cellHeight <= 0 {
		cellHeight = 1
	}
	return FitAddon{CellWidth: cellWidth, CellHeight: cellHeight}
}

// Propose returns the grid that fits the container. ok is false when the
// container has no area yet.
func (f FitAddon) Propose(container Container) (cols, rows int, ok bool) {
	if container == nil {
		return 0, 0, false
	}
	w, h := container.Bounds()
	if w <= 0 || h <= 0 {
		return 0, 0, false
	}
	cw, ch := f.CellWidth, f.CellHeight
	if cw <= 0 {
		cw = 1
	}
	if ch <= 0 {
		ch = 1
	}
	cols = max(w/cw, MinCols)
	rows = max(h/ch, MinRows)
	return cols, rows, true
}

// Fit resizes emu when the proposed grid differs from its current size and
// reports whether it did.
func (f FitAddon) Fit(emu Emulator, container Container) (cols, rows int, changed bool, err error) {
	cols, rows, ok := f.Propose(container)
	if !ok {
		cols, rows = emu.Size()
		return cols, rows, false, nil
	}
	curCols, curRows := emu.Size()
	if curCols == cols && curRows == rows {
		return cols, rows, false, nil
	}
	if err := emu.Resize(cols, rows); err != nil {
		return curCols, curRows, false, err
	}
	return cols, rows, true, nil
}
