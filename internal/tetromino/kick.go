package tetromino

// Offset is a wall-kick translation in SRS convention: X to the right,
// Y upward. Board rows grow downward, so apply it as (col+X, row-Y).
type Offset struct {
	X, Y int
}

// Neg returns the componentwise negation
func (o Offset) Neg() Offset {
	return Offset{X: -o.X, Y: -o.Y}
}

// Clockwise transitions indexed by the source state: 0->R, R->2, 2->L, L->0.
var jlstzKicks = [4][5]Offset{
	{{0, 0}, {-1, 0}, {-1, 1}, {0, -2}, {-1, -2}},
	{{0, 0}, {1, 0}, {1, -1}, {0, 2}, {1, 2}},
	{{0, 0}, {1, 0}, {1, 1}, {0, -2}, {1, -2}},
	{{0, 0}, {-1, 0}, {-1, -1}, {0, 2}, {-1, 2}},
}

var iKicks = [4][5]Offset{
	{{0, 0}, {-2, 0}, {1, 0}, {-2, -1}, {1, 2}},
	{{0, 0}, {-1, 0}, {2, 0}, {-1, 2}, {2, -1}},
	{{0, 0}, {2, 0}, {-1, 0}, {2, 1}, {-1, -2}},
	{{0, 0}, {1, 0}, {-2, 0}, {1, -2}, {-2, 1}},
}

// Kicks returns the ordered offset candidates for rotating a piece of type t
// from rotation state from to state to. Counter-clockwise transitions reuse
// the clockwise table of the reverse transition with every offset negated.
// O pieces, unknown types and transitions that are not a single quarter turn
// get a single zero offset.
func Kicks(t Type, from, to int) []Offset {
	if !t.Valid() || t == O || from < 0 || from > 3 || to < 0 || to > 3 {
		return []Offset{{0, 0}}
	}
	var table *[4][5]Offset
	if t == I {
		table = &iKicks
	} else {
		table = &jlstzKicks
	}

	switch to {
	case (from + 1) % 4:
		out := make([]Offset, len(table[from]))
		copy(out, table[from][:])
		return out
	case (from + 3) % 4:
		src := table[to]
		out := make([]Offset, len(src))
		for i, o := range src {
			out[i] = o.Neg()
		}
		return out
	}
	return []Offset{{0, 0}}
}
