package piece

import (
	"stackfire/internal/board"
	"stackfire/internal/tetromino"
)

// Piece is the falling tetromino. Kinds runs parallel to Shape so that
// corrupted cells keep their block kind through rotations.
type Piece struct {
	Type     tetromino.Type
	Shape    [][]bool
	Kinds    [][]board.Kind
	Rotation int
	Col, Row int // board position of Shape[0][0]
	Color    uint8
}

// New builds a piece of type t in rotation state 0 at the origin
func New(t tetromino.Type) *Piece {
	shape := tetromino.Shape(t)
	kinds := make([][]board.Kind, len(shape))
	for r := range shape {
		kinds[r] = make([]board.Kind, len(shape[r]))
	}
	return &Piece{
		Type:  t,
		Shape: shape,
		Kinds: kinds,
		Color: tetromino.Color(t),
	}
}

// Clone returns a deep copy
func (p *Piece) Clone() *Piece {
	c := *p
	c.Shape = make([][]bool, len(p.Shape))
	c.Kinds = make([][]board.Kind, len(p.Kinds))
	for r := range p.Shape {
		c.Shape[r] = append([]bool(nil), p.Shape[r]...)
		c.Kinds[r] = append([]board.Kind(nil), p.Kinds[r]...)
	}
	return &c
}

// Cells calls fn with the board coordinates and kind of every filled cell
func (p *Piece) Cells(fn func(col, row int, kind board.Kind)) {
	for r, line := range p.Shape {
		for c, on := range line {
			if on {
				fn(p.Col+c, p.Row+r, p.Kinds[r][c])
			}
		}
	}
}

// Width returns the column span of the shape matrix
func (p *Piece) Width() int {
	if len(p.Shape) == 0 {
		return 0
	}
	return len(p.Shape[0])
}
