package combat

// DefaultCellSize is the broad-phase bucket size in board cells
const DefaultCellSize = 2.0

// SpatialGrid is a fixed-size grid for broad-phase collision queries.
// Positions outside the field clamp to the border buckets.
type SpatialGrid struct {
	cellSize   float64
	cols, rows int
	cells      [][]uint32
}

// NewSpatialGrid covers a width x height field with square buckets
func NewSpatialGrid(width, height, cellSize float64) *SpatialGrid {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	cols := int(width/cellSize) + 1
	rows := int(height/cellSize) + 1
	return &SpatialGrid{
		cellSize: cellSize,
		cols:     cols,
		rows:     rows,
		cells:    make([][]uint32, cols*rows),
	}
}

// Clear resets all cells (keeps allocated capacity)
func (g *SpatialGrid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

func (g *SpatialGrid) clampCol(c int) int {
	if c < 0 {
		return 0
	}
	if c >= g.cols {
		return g.cols - 1
	}
	return c
}

func (g *SpatialGrid) clampRow(r int) int {
	if r < 0 {
		return 0
	}
	if r >= g.rows {
		return g.rows - 1
	}
	return r
}

func (g *SpatialGrid) bucket(v float64) int {
	if v < 0 {
		return -1
	}
	return int(v / g.cellSize)
}

// Insert adds an id at the given position
func (g *SpatialGrid) Insert(x, y float64, id uint32) {
	idx := g.clampRow(g.bucket(y))*g.cols + g.clampCol(g.bucket(x))
	g.cells[idx] = append(g.cells[idx], id)
}

// InsertCircle adds an id to all cells overlapping its bounding box
func (g *SpatialGrid) InsertCircle(x, y, radius float64, id uint32) {
	minCX, maxCX := g.clampCol(g.bucket(x-radius)), g.clampCol(g.bucket(x+radius))
	minCY, maxCY := g.clampRow(g.bucket(y-radius)), g.clampRow(g.bucket(y+radius))
	for cy := minCY; cy <= maxCY; cy++ {
		for cx := minCX; cx <= maxCX; cx++ {
			idx := cy*g.cols + cx
			g.cells[idx] = append(g.cells[idx], id)
		}
	}
}

// Query returns all ids in cells that overlap the given bounding box
func (g *SpatialGrid) Query(x, y, radius float64) []uint32 {
	return g.QueryBuf(x, y, radius, nil)
}

// QueryBuf appends results to buf and returns the extended slice, avoiding per-call allocation
func (g *SpatialGrid) QueryBuf(x, y, radius float64, buf []uint32) []uint32 {
	minCX, maxCX := g.clampCol(g.bucket(x-radius)), g.clampCol(g.bucket(x+radius))
	minCY, maxCY := g.clampRow(g.bucket(y-radius)), g.clampRow(g.bucket(y+radius))
	for cy := minCY; cy <= maxCY; cy++ {
		for cx := minCX; cx <= maxCX; cx++ {
			buf = append(buf, g.cells[cy*g.cols+cx]...)
		}
	}
	return buf
}
