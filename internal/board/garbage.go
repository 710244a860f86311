package board

// InsertIndestructibleRow pushes the stack up one row and writes a full
// indestructible row of the given kind at the bottom. The falling piece
// rides up with the stack. If the top row is occupied, or the piece cannot
// rise, the board overflows instead and false is returned.
func (b *Board) InsertIndestructibleRow(kind Kind, defenseBonus int) bool {
	for col := 0; col < b.width; col++ {
		if b.cells[b.idx(col, 0)] != nil {
			b.HandleOverflow()
			return false
		}
	}

	copy(b.cells, b.cells[b.width:])

	hp := GarbageRowHP + defenseBonus
	now := b.clock.Now()
	bottom := b.height - 1
	for col := 0; col < b.width; col++ {
		b.cells[b.idx(col, bottom)] = &Block{
			Color:          GarbageColor,
			HP:             hp,
			MaxHP:          hp,
			Indestructible: true,
			CreatedAt:      now,
			Kind:           kind,
		}
	}
	b.changed = true
	return b.liftOccupant()
}

// AddGarbageBlock writes a destructible garbage block at (col,row). A
// falling piece covering that cell is pushed up a row; if it cannot move the
// board overflows and false is returned.
func (b *Board) AddGarbageBlock(col, row int, kind Kind, hp int) bool {
	if !b.InBounds(col, row) {
		return false
	}
	b.SetBlock(col, row, NewBlock(GarbageColor, hp, kind, b.clock.Now()))
	if b.occupant != nil && b.occupant.Covers(col, row) {
		return b.liftOccupant()
	}
	return true
}
