package piece

import (
	"math/rand"

	"stackfire/internal/board"
	"stackfire/internal/effect"
	"stackfire/internal/tetromino"
)

// DefaultGravity is the number of seconds per one-row fall
const DefaultGravity = 0.8

// State of the controller's spawn/fall/lock cycle
type State uint8

const (
	Spawning State = iota
	Falling
	Locking
)

func (s State) String() string {
	switch s {
	case Falling:
		return "falling"
	case Locking:
		return "locking"
	default:
		return "spawning"
	}
}

// LockListener receives the line-clear outcome of every lock
type LockListener interface {
	OnLock(res board.ClearResult)
}

// Defense supplies the hp bonus for newly locked blocks
type Defense interface {
	DefenseBonus() int
}

// Controller owns the active piece and moves it against the board
type Controller struct {
	board    *board.Board
	bag      *tetromino.Bag
	rng      *rand.Rand
	clock    board.Clock
	defense  Defense
	listener LockListener
	effects  *effect.Queue

	active *Piece
	next   *Piece
	state  State

	gravity float64
	acc     float64
	locks   int
}

// Option configures a Controller
type Option func(*Controller)

// WithGravity sets the seconds per one-row fall
func WithGravity(seconds float64) Option {
	return func(c *Controller) {
		if seconds > 0 {
			c.gravity = seconds
		}
	}
}

// WithDefense supplies the hp bonus for locked blocks
func WithDefense(d Defense) Option {
	return func(c *Controller) { c.defense = d }
}

// WithClock sets the time stamped on locked blocks
func WithClock(clk board.Clock) Option {
	return func(c *Controller) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// WithListener receives every lock's clear result
func WithListener(l LockListener) Option {
	return func(c *Controller) { c.listener = l }
}

// WithEffects routes lock effects into q
func WithEffects(q *effect.Queue) Option {
	return func(c *Controller) { c.effects = q }
}

// WithRand sets the source used to pick corrupted cells
func WithRand(rng *rand.Rand) Option {
	return func(c *Controller) {
		if rng != nil {
			c.rng = rng
		}
	}
}

type stoppedClock struct{}

func (stoppedClock) Now() float64 { return 0 }

// NewController creates a controller in the Spawning state
func NewController(b *board.Board, bag *tetromino.Bag, opts ...Option) *Controller {
	if bag == nil {
		bag = tetromino.NewBag(nil)
	}
	c := &Controller{
		board:   b,
		bag:     bag,
		rng:     rand.New(rand.NewSource(1)),
		clock:   stoppedClock{},
		gravity: DefaultGravity,
		state:   Spawning,
	}
	for _, opt := range opts {
		opt(c)
	}
	b.SetOccupant(c)
	return c
}

// State returns the current cycle state
func (c *Controller) State() State { return c.state }

// Locks returns the number of pieces locked so far
func (c *Controller) Locks() int { return c.locks }

// SetListener replaces the lock listener
func (c *Controller) SetListener(l LockListener) { c.listener = l }

// SetGravity changes the fall interval
func (c *Controller) SetGravity(seconds float64) {
	if seconds > 0 {
		c.gravity = seconds
	}
}

// Active returns a copy of the falling piece
func (c *Controller) Active() (*Piece, bool) {
	if c.active == nil {
		return nil, false
	}
	return c.active.Clone(), true
}

func (c *Controller) ensureNext() *Piece {
	if c.next == nil {
		c.next = New(c.bag.Next())
	}
	return c.next
}

// Next returns a copy of the piece that will spawn next
func (c *Controller) Next() *Piece {
	return c.ensureNext().Clone()
}

// Preview returns the types of the next n pieces, the prepared next piece first
func (c *Controller) Preview(n int) []tetromino.Type {
	if n <= 0 {
		return nil
	}
	out := []tetromino.Type{c.ensureNext().Type}
	return append(out, c.bag.Peek(n-1)...)
}

// fits reports whether shape placed at (col,row) lies inside the board
// without touching an occupied cell
func (c *Controller) fits(shape [][]bool, col, row int) bool {
	for r, line := range shape {
		for cc, on := range line {
			if !on {
				continue
			}
			x, y := col+cc, row+r
			if !c.board.InBounds(x, y) || c.board.Occupied(x, y) {
				return false
			}
		}
	}
	return true
}

// Spawn places the next piece at the top-center anchor. If the anchor is
// blocked the board overflows and the piece stays queued.
func (c *Controller) Spawn() bool {
	if c.active != nil {
		return true
	}
	p := c.ensureNext().Clone()
	p.Col = (c.board.Width() - p.Width()) / 2
	p.Row = 0
	if !c.fits(p.Shape, p.Col, p.Row) {
		c.board.HandleOverflow()
		c.state = Spawning
		return false
	}
	c.next = nil
	c.ensureNext()
	c.active = p
	c.state = Falling
	c.acc = 0
	return true
}

// Update applies gravity for dt seconds, spawning first if needed
func (c *Controller) Update(dt float64) {
	if c.state == Spawning || c.active == nil {
		c.Spawn()
		return
	}
	c.acc += dt
	for c.acc >= c.gravity && c.active != nil {
		c.acc -= c.gravity
		c.MoveDown()
	}
}

func (c *Controller) shift(dc, dr int) bool {
	if c.active == nil {
		return false
	}
	if !c.fits(c.active.Shape, c.active.Col+dc, c.active.Row+dr) {
		return false
	}
	c.active.Col += dc
	c.active.Row += dr
	return true
}

// MoveLeft shifts the piece one column left if the space is free
func (c *Controller) MoveLeft() bool { return c.shift(-1, 0) }

// MoveRight shifts the piece one column right if the space is free
func (c *Controller) MoveRight() bool { return c.shift(1, 0) }

// MoveDown drops the piece one row, locking it when the row below is blocked
func (c *Controller) MoveDown() bool {
	if c.active == nil {
		return false
	}
	if c.shift(0, 1) {
		return true
	}
	c.lock()
	return false
}

// Covers reports whether the falling piece occupies (col,row)
func (c *Controller) Covers(col, row int) bool {
	if c.active == nil {
		return false
	}
	hit := false
	c.active.Cells(func(x, y int, _ board.Kind) {
		if x == col && y == row {
			hit = true
		}
	})
	return hit
}

// Lift raises the falling piece to the nearest row above where it fits. It
// reports false when the piece would have to leave the board.
func (c *Controller) Lift() bool {
	p := c.active
	if p == nil {
		return true
	}
	for row := p.Row - 1; row+len(p.Shape) > 0; row-- {
		if c.fits(p.Shape, p.Col, row) {
			p.Row = row
			return true
		}
	}
	return false
}

// HardDrop moves the piece to its resting row and locks it. It returns the
// number of rows travelled.
func (c *Controller) HardDrop() int {
	if c.active == nil {
		return 0
	}
	n := 0
	for c.fits(c.active.Shape, c.active.Col, c.active.Row+1) {
		c.active.Row++
		n++
	}
	c.lock()
	return n
}

// GhostRow returns the row the active piece would land on
func (c *Controller) GhostRow() (int, bool) {
	if c.active == nil {
		return 0, false
	}
	row := c.active.Row
	for c.fits(c.active.Shape, c.active.Col, row+1) {
		row++
	}
	return row, true
}

// Rotate turns the piece clockwise
func (c *Controller) Rotate() bool { return c.rotate(1) }

// RotateCCW turns the piece counter-clockwise
func (c *Controller) RotateCCW() bool { return c.rotate(-1) }

var rotationShifts = [...]int{0, -1, 1}

func (c *Controller) rotate(dir int) bool {
	p := c.active
	if p == nil || p.Type == tetromino.O {
		return false
	}
	to := (p.Rotation + 4 + dir) % 4
	var shape [][]bool
	var kinds [][]board.Kind
	if dir > 0 {
		shape, kinds = tetromino.RotateCW(p.Shape), tetromino.RotateCW(p.Kinds)
	} else {
		shape, kinds = tetromino.RotateCCW(p.Shape), tetromino.RotateCCW(p.Kinds)
	}
	kicks := tetromino.Kicks(p.Type, p.Rotation, to)
	for _, s := range rotationShifts {
		for _, k := range kicks {
			col, row := p.Col+s+k.X, p.Row-k.Y
			if !c.fits(shape, col, row) {
				continue
			}
			p.Shape, p.Kinds = shape, kinds
			p.Rotation = to
			p.Col, p.Row = col, row
			return true
		}
	}
	return false
}

func (c *Controller) lock() {
	p := c.active
	if p == nil {
		return
	}
	c.state = Locking
	hp := board.BaseBlockHP
	if c.defense != nil {
		hp += c.defense.DefenseBonus()
	}
	// a piece overlapping the stack has no valid resting place
	if !c.fits(p.Shape, p.Col, p.Row) {
		c.active = nil
		c.acc = 0
		c.state = Spawning
		c.board.HandleOverflow()
		return
	}
	now := c.clock.Now()
	p.Cells(func(col, row int, kind board.Kind) {
		c.board.SetBlock(col, row, board.NewBlock(p.Color, hp, kind, now))
	})
	c.active = nil
	c.acc = 0
	c.locks++
	c.state = Spawning
	c.effects.Emit(effect.Effect{Kind: effect.PieceLocked})

	res := c.board.CheckAndClearLines()
	if c.listener != nil {
		c.listener.OnLock(res)
	}
}

// CorruptNext marks one random filled cell of the next piece to lock as kind
func (c *Controller) CorruptNext(kind board.Kind) bool {
	n := c.ensureNext()
	var cells [][2]int
	for r, line := range n.Shape {
		for cc, on := range line {
			if on && n.Kinds[r][cc] != kind {
				cells = append(cells, [2]int{r, cc})
			}
		}
	}
	if len(cells) == 0 {
		return false
	}
	pick := cells[c.rng.Intn(len(cells))]
	n.Kinds[pick[0]][pick[1]] = kind
	return true
}

// Reset drops the active and queued pieces
func (c *Controller) Reset() {
	c.active = nil
	c.next = nil
	c.state = Spawning
	c.acc = 0
}
