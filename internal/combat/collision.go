package combat

// WithinDistance reports whether two points are strictly closer than d
func WithinDistance(x1, y1, x2, y2, d float64) bool {
	dx := x2 - x1
	dy := y2 - y1
	return dx*dx+dy*dy < d*d
}
