package board

import "stackfire/internal/effect"

const (
	DefaultWidth  = 10
	DefaultHeight = 20
)

// Clock supplies the simulation time stamped on new blocks
type Clock interface {
	Now() float64
}

type zeroClock struct{}

func (zeroClock) Now() float64 { return 0 }

// Board is the occupancy grid. Row 0 is the spawn edge at the top; the last
// row borders the player's base. Every position-based method treats
// out-of-bounds coordinates as a no-op.
type Board struct {
	width, height int
	cells         []*Block // row-major, nil when empty
	changed       bool
	effects       *effect.Queue
	clock         Clock
	occupant      Occupant
}

// Occupant is the falling piece. The board keeps it clear of the stack when
// garbage pushes in from below.
type Occupant interface {
	Covers(col, row int) bool
	// Lift moves the occupant up to the nearest free position at least one
	// row higher, reporting false when it would leave the board.
	Lift() bool
}

// Option configures a Board
type Option func(*Board)

// WithEffects routes board side effects into q
func WithEffects(q *effect.Queue) Option {
	return func(b *Board) { b.effects = q }
}

// WithClock sets the time source for blocks the board creates itself
func WithClock(c Clock) Option {
	return func(b *Board) {
		if c != nil {
			b.clock = c
		}
	}
}

// New creates an empty board. Non-positive dimensions fall back to 10x20.
func New(width, height int, opts ...Option) *Board {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	b := &Board{
		width:  width,
		height: height,
		cells:  make([]*Block, width*height),
		clock:  zeroClock{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SetOccupant registers the falling piece. Nil detaches it.
func (b *Board) SetOccupant(o Occupant) { b.occupant = o }

// liftOccupant pushes the falling piece clear of new garbage, overflowing
// when it has nowhere to go
func (b *Board) liftOccupant() bool {
	if b.occupant == nil || b.occupant.Lift() {
		return true
	}
	b.HandleOverflow()
	return false
}

// Width returns the number of columns
func (b *Board) Width() int { return b.width }

// Height returns the number of rows
func (b *Board) Height() int { return b.height }

// InBounds reports whether (col,row) lies on the grid
func (b *Board) InBounds(col, row int) bool {
	return col >= 0 && col < b.width && row >= 0 && row < b.height
}

func (b *Board) idx(col, row int) int {
	return row*b.width + col
}

// Occupied reports whether an in-bounds cell holds a block
func (b *Board) Occupied(col, row int) bool {
	if !b.InBounds(col, row) {
		return false
	}
	return b.cells[b.idx(col, row)] != nil
}

// Block returns a copy of the block at (col,row)
func (b *Board) Block(col, row int) (Block, bool) {
	if !b.InBounds(col, row) {
		return Block{}, false
	}
	blk := b.cells[b.idx(col, row)]
	if blk == nil {
		return Block{}, false
	}
	return *blk, true
}

// SetBlock stores a copy of blk at (col,row), replacing any previous content.
// A nil blk empties the cell.
func (b *Board) SetBlock(col, row int, blk *Block) {
	if !b.InBounds(col, row) {
		return
	}
	if blk == nil {
		b.RemoveBlock(col, row)
		return
	}
	c := *blk
	b.cells[b.idx(col, row)] = &c
	b.changed = true
}

// RemoveBlock empties an occupied cell
func (b *Board) RemoveBlock(col, row int) {
	if !b.InBounds(col, row) {
		return
	}
	i := b.idx(col, row)
	if b.cells[i] == nil {
		return
	}
	b.cells[i] = nil
	b.changed = true
}

// DamageBlock subtracts amount from the block's hp and reports whether it was
// destroyed. Indestructible blocks ignore damage. Destroying an explosive
// block hurts the player before the block is removed.
func (b *Board) DamageBlock(col, row, amount int) bool {
	if !b.InBounds(col, row) {
		return false
	}
	blk := b.cells[b.idx(col, row)]
	if blk == nil || blk.Indestructible {
		return false
	}
	blk.HP -= amount
	b.changed = true
	if blk.HP > 0 {
		return false
	}
	if blk.Kind == Explosive {
		b.effects.Emit(effect.Effect{Kind: effect.PlayerDamaged, Amount: ExplosiveBlastHP})
	}
	b.cells[b.idx(col, row)] = nil
	b.effects.Emit(effect.Effect{Kind: effect.BlockDestroyed, Col: col, Row: row})
	return true
}

// TopRow returns the smallest occupied row index in col
func (b *Board) TopRow(col int) (int, bool) {
	if col < 0 || col >= b.width {
		return 0, false
	}
	for row := 0; row < b.height; row++ {
		if b.cells[b.idx(col, row)] != nil {
			return row, true
		}
	}
	return 0, false
}

// HighestOccupiedColumn returns the column with the tallest stack, i.e. the
// smallest topmost row index. Ties go to the leftmost column.
func (b *Board) HighestOccupiedColumn() (int, bool) {
	best, bestRow, found := 0, 0, false
	for col := 0; col < b.width; col++ {
		row, ok := b.TopRow(col)
		if !ok {
			continue
		}
		if !found || row < bestRow {
			best, bestRow, found = col, row, true
		}
	}
	return best, found
}

// LowestOccupiedColumn returns the occupied column with the shortest stack,
// i.e. the largest topmost row index. Ties go to the leftmost column.
func (b *Board) LowestOccupiedColumn() (int, bool) {
	best, bestRow, found := 0, 0, false
	for col := 0; col < b.width; col++ {
		row, ok := b.TopRow(col)
		if !ok {
			continue
		}
		if !found || row > bestRow {
			best, bestRow, found = col, row, true
		}
	}
	return best, found
}

// Clear empties every cell
func (b *Board) Clear() {
	for i := range b.cells {
		b.cells[i] = nil
	}
	b.changed = true
}

// HandleOverflow wipes the board and signals the overflow. Resource
// accounting for the overflow is done by whoever drains the effects.
func (b *Board) HandleOverflow() {
	b.Clear()
	b.effects.Emit(effect.Effect{Kind: effect.BoardOverflow})
}

// Changed reports whether the grid was mutated since the last TakeChanged
func (b *Board) Changed() bool { return b.changed }

// TakeChanged returns and resets the changed flag
func (b *Board) TakeChanged() bool {
	c := b.changed
	b.changed = false
	return c
}

// Cells calls fn for every occupied cell in row-major order
func (b *Board) Cells(fn func(col, row int, blk Block)) {
	for i, blk := range b.cells {
		if blk != nil {
			fn(i%b.width, i/b.width, *blk)
		}
	}
}

// Empty reports whether no cell is occupied
func (b *Board) Empty() bool {
	for _, blk := range b.cells {
		if blk != nil {
			return false
		}
	}
	return true
}
