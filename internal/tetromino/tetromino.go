package tetromino

// Type is one of the seven tetromino kinds
type Type uint8

const (
	I Type = iota
	O
	T
	S
	Z
	J
	L
)

// Count is the number of distinct piece types
const Count = 7

var typeNames = [Count]string{"I", "O", "T", "S", "Z", "J", "L"}

func (t Type) String() string {
	if t < Count {
		return typeNames[t]
	}
	return "?"
}

// Valid reports whether t names a real piece
func (t Type) Valid() bool {
	return t < Count
}

// Spawn orientations (rotation state 0), row 0 on top.
var shapes = [Count][][]bool{
	I: {
		{false, false, false, false},
		{true, true, true, true},
		{false, false, false, false},
		{false, false, false, false},
	},
	O: {
		{true, true},
		{true, true},
	},
	T: {
		{false, true, false},
		{true, true, true},
		{false, false, false},
	},
	S: {
		{false, true, true},
		{true, true, false},
		{false, false, false},
	},
	Z: {
		{true, true, false},
		{false, true, true},
		{false, false, false},
	},
	J: {
		{true, false, false},
		{true, true, true},
		{false, false, false},
	},
	L: {
		{false, false, true},
		{true, true, true},
		{false, false, false},
	},
}

// Palette indices; 0 is reserved for garbage.
var colors = [Count]uint8{
	I: 1,
	O: 2,
	T: 3,
	S: 4,
	Z: 5,
	J: 6,
	L: 7,
}

// Shape returns a fresh copy of the rotation-0 matrix for t.
// Unknown types yield an empty matrix.
func Shape(t Type) [][]bool {
	if !t.Valid() {
		return nil
	}
	src := shapes[t]
	out := make([][]bool, len(src))
	for r := range src {
		out[r] = append([]bool(nil), src[r]...)
	}
	return out
}

// Color returns the palette index used for blocks of type t
func Color(t Type) uint8 {
	if !t.Valid() {
		return 0
	}
	return colors[t]
}

// RotateCW returns m rotated 90 degrees clockwise. m must be rectangular.
func RotateCW[E any](m [][]E) [][]E {
	rows := len(m)
	if rows == 0 {
		return nil
	}
	cols := len(m[0])
	out := make([][]E, cols)
	for i := range out {
		out[i] = make([]E, rows)
		for j := range out[i] {
			out[i][j] = m[rows-1-j][i]
		}
	}
	return out
}

// RotateCCW returns m rotated 90 degrees counter-clockwise
func RotateCCW[E any](m [][]E) [][]E {
	rows := len(m)
	if rows == 0 {
		return nil
	}
	cols := len(m[0])
	out := make([][]E, cols)
	for i := range out {
		out[i] = make([]E, rows)
		for j := range out[i] {
			out[i][j] = m[j][cols-1-i]
		}
	}
	return out
}
