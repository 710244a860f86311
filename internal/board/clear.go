package board

// ClearResult describes one line-clear pass
type ClearResult struct {
	TotalRowsCleared      int
	NonGarbageRowsCleared int
	ContainsVoidBlock     bool
	Rows                  []int // cleared row indices before compaction, top to bottom
	NonGarbageRows        []int // subset of Rows holding at least one player-colored block
}

// Cleared reports whether any row was removed
func (r ClearResult) Cleared() bool {
	return r.TotalRowsCleared > 0
}

func (b *Board) rowFull(row int) (full, allIndestructible bool) {
	allIndestructible = true
	for col := 0; col < b.width; col++ {
		blk := b.cells[b.idx(col, row)]
		if blk == nil {
			return false, false
		}
		if !blk.Indestructible {
			allIndestructible = false
		}
	}
	return true, allIndestructible
}

// CheckAndClearLines removes every full row, provided at least one of them
// is mutable. Full indestructible rows are flushed together with mutable
// ones but never cleared on their own. Remaining rows fall down keeping
// their relative order.
func (b *Board) CheckAndClearLines() ClearResult {
	var full []int
	mutable := 0
	for row := 0; row < b.height; row++ {
		ok, hard := b.rowFull(row)
		if !ok {
			continue
		}
		full = append(full, row)
		if !hard {
			mutable++
		}
	}
	if mutable == 0 {
		return ClearResult{}
	}

	res := ClearResult{
		TotalRowsCleared: len(full),
		Rows:             full,
	}
	cleared := make([]bool, b.height)
	for _, row := range full {
		cleared[row] = true
		nonGarbage := false
		for col := 0; col < b.width; col++ {
			blk := b.cells[b.idx(col, row)]
			if !blk.IsGarbage() {
				nonGarbage = true
			}
			if blk.Kind == Void {
				res.ContainsVoidBlock = true
			}
		}
		if nonGarbage {
			res.NonGarbageRowsCleared++
			res.NonGarbageRows = append(res.NonGarbageRows, row)
		}
	}

	// Compact from the bottom up.
	dst := b.height - 1
	for src := b.height - 1; src >= 0; src-- {
		if cleared[src] {
			continue
		}
		if dst != src {
			copy(b.cells[b.idx(0, dst):b.idx(0, dst)+b.width], b.cells[b.idx(0, src):b.idx(0, src)+b.width])
		}
		dst--
	}
	for ; dst >= 0; dst-- {
		row := b.cells[b.idx(0, dst) : b.idx(0, dst)+b.width]
		for i := range row {
			row[i] = nil
		}
	}
	b.changed = true
	return res
}
