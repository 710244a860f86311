package effect

// Kind identifies a side effect produced by the simulation during a tick
type Kind uint8

const (
	PieceLocked Kind = iota
	RowsCleared
	BoardOverflow
	MissileFired
	EnemyDamaged
	PlayerDamaged
	ComboChanged
	ComboReset
	GridChanged
	BulletFired
	Intercept
	BlockDestroyed
	CounterFire
	EnemyDefeated
	GameOver
)

var kindNames = [...]string{
	PieceLocked:    "piece_locked",
	RowsCleared:    "rows_cleared",
	BoardOverflow:  "board_overflow",
	MissileFired:   "missile_fired",
	EnemyDamaged:   "enemy_damaged",
	PlayerDamaged:  "player_damaged",
	ComboChanged:   "combo_changed",
	ComboReset:     "combo_reset",
	GridChanged:    "grid_changed",
	BulletFired:    "bullet_fired",
	Intercept:      "intercept",
	BlockDestroyed: "block_destroyed",
	CounterFire:    "counter_fire",
	EnemyDefeated:  "enemy_defeated",
	GameOver:       "game_over",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Effect is one entry of the per-tick effect list. Only the payload fields
// relevant to Kind are populated.
type Effect struct {
	Kind Kind

	Amount float64 // damage for MissileFired / EnemyDamaged / PlayerDamaged
	Count  int     // combo count, or total rows for RowsCleared

	NonGarbage int  // RowsCleared
	HasVoid    bool // RowsCleared

	Col, Row int     // BlockDestroyed
	X, Y     float64 // Intercept, CounterFire

	Bullet uint8 // BulletFired: combat.BulletKind
}

// Queue collects effects in emission order. The zero value is ready to use
// and a nil *Queue silently discards everything.
type Queue struct {
	items []Effect
}

// Emit appends an effect
func (q *Queue) Emit(e Effect) {
	if q == nil {
		return
	}
	q.items = append(q.items, e)
}

// Len returns the number of queued effects
func (q *Queue) Len() int {
	if q == nil {
		return 0
	}
	return len(q.items)
}

// At returns the i-th queued effect. ok is false when i is out of range.
func (q *Queue) At(i int) (e Effect, ok bool) {
	if q == nil || i < 0 || i >= len(q.items) {
		return Effect{}, false
	}
	return q.items[i], true
}

// Since returns the effects emitted at or after index mark
func (q *Queue) Since(mark int) []Effect {
	if q == nil || mark >= len(q.items) {
		return nil
	}
	if mark < 0 {
		mark = 0
	}
	return q.items[mark:]
}

// Drain returns all queued effects and empties the queue
func (q *Queue) Drain() []Effect {
	if q == nil || len(q.items) == 0 {
		return nil
	}
	out := make([]Effect, len(q.items))
	copy(out, q.items)
	q.items = q.items[:0]
	return out
}
