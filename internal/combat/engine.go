package combat

import (
	"github.com/kamstrup/intmap"

	"stackfire/internal/board"
	"stackfire/internal/effect"
)

const (
	BaseMissileDamage = 2.0
	SalvoMult         = 0.5
	BurstMult         = 0.5
	MaxSalvoRows      = 4
)

// Stats exposes the player's upgrade levels read by damage formulas
type Stats interface {
	DefenseBonus() int
	SalvoLevel() int
	BurstLevel() int
	CounterFireLevel() int
	ExtraMissiles() int
	PierceLevel() int
}

// Levels is a plain Stats implementation
type Levels struct {
	Defense     int `yaml:"defense"`
	Salvo       int `yaml:"salvo"`
	Burst       int `yaml:"burst"`
	CounterFire int `yaml:"counter_fire"`
	Extra       int `yaml:"extra_missiles"`
	Pierce      int `yaml:"pierce"`
}

func (l Levels) DefenseBonus() int     { return l.Defense }
func (l Levels) SalvoLevel() int       { return l.Salvo }
func (l Levels) BurstLevel() int       { return l.Burst }
func (l Levels) CounterFireLevel() int { return l.CounterFire }
func (l Levels) ExtraMissiles() int    { return l.Extra }
func (l Levels) PierceLevel() int      { return l.Pierce }

// Combo is the combo state the engine reads and advances
type Combo interface {
	Count() int
	OnClear()
	OnCounterFire() int
	OnLockWithoutClear()
	InCounterWindow(createdAt, now float64) bool
}

// Corrupter rewrites a cell of the upcoming piece
type Corrupter interface {
	CorruptNext(kind board.Kind) bool
}

// ClearDamage is the per-missile damage of a line clear. combo is the count
// before the clear itself is registered.
func ClearDamage(nonGarbageRows, salvoLevel, burstLevel, combo int) float64 {
	rows := min(nonGarbageRows, MaxSalvoRows)
	salvo := 0.0
	if rows > 1 {
		salvo = float64(rows-1) * float64(salvoLevel) * SalvoMult
	}
	burst := float64(burstLevel) * float64(combo) * BurstMult
	return BaseMissileDamage + salvo + burst
}

// CounterDamage is the per-missile damage of a counter-fire volley
func CounterDamage(burstLevel, combo int) float64 {
	return BaseMissileDamage + float64(burstLevel)*float64(combo)*BurstMult
}

// Engine owns every missile and bullet in flight and resolves their
// collisions against each other, the enemy and the board.
type Engine struct {
	board   *board.Board
	stats   Stats
	combo   Combo
	next    Corrupter
	clock   board.Clock
	effects *effect.Queue

	missiles []*Missile
	bullets  []*Bullet
	byID     *intmap.Map[uint32, *Bullet]
	grid     *SpatialGrid
	buf      []uint32
	nextID   uint32

	fired       int
	intercepted int
	counters    int
}

// Option configures an Engine
type Option func(*Engine)

// WithEffects routes engine side effects into q
func WithEffects(q *effect.Queue) Option {
	return func(e *Engine) { e.effects = q }
}

// WithClock sets the time source used for projectile timing
func WithClock(c board.Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithCorrupter sets the next-piece slot targeted by corrupt bullets
func WithCorrupter(c Corrupter) Option {
	return func(e *Engine) { e.next = c }
}

type idleClock struct{}

func (idleClock) Now() float64 { return 0 }

// NewEngine creates an engine bound to b. A nil stats reads as all zero
// levels.
func NewEngine(b *board.Board, stats Stats, combo Combo, opts ...Option) *Engine {
	if stats == nil {
		stats = Levels{}
	}
	e := &Engine{
		board: b,
		stats: stats,
		combo: combo,
		clock: idleClock{},
		byID:  intmap.New[uint32, *Bullet](64),
		grid:  NewSpatialGrid(float64(b.Width()), float64(b.Height()), DefaultCellSize),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) id() uint32 {
	e.nextID++
	return e.nextID
}

// OnLock receives the clear result of every piece lock
func (e *Engine) OnLock(res board.ClearResult) {
	if !res.Cleared() {
		if e.combo != nil {
			e.combo.OnLockWithoutClear()
		}
		return
	}
	e.HandleClear(res)
}

// HandleClear turns a line clear into missiles. Any void block in the
// cleared rows cancels the volley outright.
func (e *Engine) HandleClear(res board.ClearResult) {
	if !res.Cleared() {
		return
	}
	e.effects.Emit(effect.Effect{
		Kind:       effect.RowsCleared,
		Count:      res.TotalRowsCleared,
		NonGarbage: res.NonGarbageRowsCleared,
		HasVoid:    res.ContainsVoidBlock,
	})

	combo := 0
	if e.combo != nil {
		combo = e.combo.Count()
		e.combo.OnClear()
	}
	if res.ContainsVoidBlock || res.NonGarbageRowsCleared == 0 {
		return
	}

	dmg := ClearDamage(res.NonGarbageRowsCleared, e.stats.SalvoLevel(), e.stats.BurstLevel(), combo)
	group := 1 + e.stats.ExtraMissiles()
	for _, row := range res.NonGarbageRows {
		y := float64(row) + 0.5
		for col := 0; col < e.board.Width(); col++ {
			e.spawnGroup(float64(col)+0.5, y, dmg, group)
		}
	}
}

func (e *Engine) spawnGroup(x, y, dmg float64, n int) {
	pierce := e.stats.PierceLevel()
	for i := 0; i < n; i++ {
		e.missiles = append(e.missiles, &Missile{
			ID:     e.id(),
			X:      x,
			Y:      y,
			Speed:  MissileSpeed,
			Damage: dmg,
			Pierce: pierce,
			Delay:  float64(i) * MissileStagger,
			Alive:  true,
		})
	}
}

// SpawnBullet fires a bullet of kind down column col from the top edge.
// Columns outside the board are clamped onto it.
func (e *Engine) SpawnBullet(kind BulletKind, col int, speed float64) *Bullet {
	col = max(0, min(col, e.board.Width()-1))
	if speed <= 0 {
		speed = BulletSpeed
	}
	b := &Bullet{
		ID:    e.id(),
		Kind:  kind,
		X:     float64(col) + 0.5,
		Y:     0,
		Speed: speed,
		Alive: true,
	}
	e.bullets = append(e.bullets, b)
	e.byID.Put(b.ID, b)
	e.effects.Emit(effect.Effect{Kind: effect.BulletFired, Bullet: uint8(kind)})
	return b
}

// Update advances every projectile by dt seconds and resolves collisions
func (e *Engine) Update(dt float64) {
	for _, m := range e.missiles {
		if m.Update(dt) {
			e.fired++
			e.effects.Emit(effect.Effect{Kind: effect.MissileFired, Amount: m.Damage})
		}
	}
	for _, b := range e.bullets {
		b.Update(dt)
	}

	e.interceptBullets()
	e.strikeEnemy()
	e.strikeBoard()
	e.compact()
}

func (e *Engine) interceptBullets() {
	if len(e.bullets) == 0 {
		return
	}
	e.grid.Clear()
	for _, b := range e.bullets {
		if b.Alive {
			e.grid.InsertCircle(b.X, b.Y, CollisionRadius, b.ID)
		}
	}
	for _, m := range e.missiles {
		if !m.Alive || !m.Launched() {
			continue
		}
		e.buf = e.grid.QueryBuf(m.X, m.Y, CollisionRadius, e.buf[:0])
		for _, id := range e.buf {
			b, ok := e.byID.Get(id)
			if !ok || !b.Alive {
				continue
			}
			if !WithinDistance(m.X, m.Y, b.X, b.Y, CollisionRadius) {
				continue
			}
			b.Alive = false
			e.intercepted++
			e.effects.Emit(effect.Effect{Kind: effect.Intercept, X: b.X, Y: b.Y})
			if m.Pierce > 0 {
				m.Pierce--
				continue
			}
			m.Alive = false
			break
		}
	}
}

func (e *Engine) strikeEnemy() {
	for _, m := range e.missiles {
		if m.Alive && m.Launched() && m.Y < 0 {
			m.Alive = false
			e.effects.Emit(effect.Effect{Kind: effect.EnemyDamaged, Amount: m.Damage})
		}
	}
}

func (e *Engine) strikeBoard() {
	for _, b := range e.bullets {
		if !b.Alive {
			continue
		}
		col, row := b.Cell()
		if col < 0 || col >= e.board.Width() {
			b.Alive = false
			continue
		}
		if row >= e.board.Height() {
			b.Alive = false
			e.effects.Emit(effect.Effect{Kind: effect.PlayerDamaged, Amount: BaseImpactDamage})
			continue
		}
		if row < 0 || !e.board.Occupied(col, row) {
			continue
		}
		b.Alive = false
		e.impact(b, col, row)
	}
}

func (e *Engine) impact(b *Bullet, col, row int) {
	blk, _ := e.board.Block(col, row)
	e.board.DamageBlock(col, row, BlockHitDamage)
	e.counterFire(blk.CreatedAt, b.X, b.Y)

	switch b.Kind {
	case AreaDamage:
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				e.board.DamageBlock(col+dx, row+dy, BlockHitDamage)
			}
		}
	case AddBlock, AddExplosiveBlock:
		kind := board.Normal
		if b.Kind == AddExplosiveBlock {
			kind = board.Explosive
		}
		if row == 0 {
			e.board.HandleOverflow()
			return
		}
		if e.board.AddGarbageBlock(col, row-1, kind, board.BaseBlockHP) {
			e.HandleClear(e.board.CheckAndClearLines())
		}
	case InsertRow:
		e.board.InsertIndestructibleRow(board.Normal, e.stats.DefenseBonus())
	case InsertVoidRow:
		e.board.InsertIndestructibleRow(board.Void, e.stats.DefenseBonus())
	case CorruptExplosive:
		if e.next != nil {
			e.next.CorruptNext(board.Explosive)
		}
	case CorruptVoid:
		if e.next != nil {
			e.next.CorruptNext(board.Void)
		}
	}
}

// counterFire fires a volley when the struck block is still inside the
// counter window
func (e *Engine) counterFire(createdAt, x, y float64) {
	if e.combo == nil || !e.combo.InCounterWindow(createdAt, e.clock.Now()) {
		return
	}
	count := e.combo.OnCounterFire()
	e.counters++
	e.effects.Emit(effect.Effect{Kind: effect.CounterFire, Count: count, X: x, Y: y})

	dmg := CounterDamage(e.stats.BurstLevel(), count)
	group := 1 + e.stats.ExtraMissiles()
	for i := 0; i < e.stats.CounterFireLevel(); i++ {
		e.spawnGroup(x, y, dmg, group)
	}
}

// compact drops dead projectiles, keeping order
func (e *Engine) compact() {
	live := e.missiles[:0]
	for _, m := range e.missiles {
		if m.Alive {
			live = append(live, m)
		}
	}
	clear(e.missiles[len(live):])
	e.missiles = live

	bl := e.bullets[:0]
	for _, b := range e.bullets {
		if b.Alive {
			bl = append(bl, b)
		} else {
			e.byID.Del(b.ID)
		}
	}
	clear(e.bullets[len(bl):])
	e.bullets = bl
}

// Missiles returns copies of the missiles in flight or waiting to launch
func (e *Engine) Missiles() []Missile {
	out := make([]Missile, 0, len(e.missiles))
	for _, m := range e.missiles {
		out = append(out, *m)
	}
	return out
}

// Bullets returns copies of the live bullets
func (e *Engine) Bullets() []Bullet {
	out := make([]Bullet, 0, len(e.bullets))
	for _, b := range e.bullets {
		out = append(out, *b)
	}
	return out
}

// Bullet looks up a live bullet by id
func (e *Engine) Bullet(id uint32) (Bullet, bool) {
	b, ok := e.byID.Get(id)
	if !ok {
		return Bullet{}, false
	}
	return *b, true
}

// AddMissile puts a missile into play, assigning it an id
func (e *Engine) AddMissile(m Missile) uint32 {
	m.ID = e.id()
	m.Alive = true
	e.missiles = append(e.missiles, &m)
	return m.ID
}

// MissilesFired returns the number of missiles launched so far
func (e *Engine) MissilesFired() int { return e.fired }

// Intercepts returns the number of bullets shot down by missiles
func (e *Engine) Intercepts() int { return e.intercepted }

// CounterFires returns the number of counter-fire triggers
func (e *Engine) CounterFires() int { return e.counters }

// Reset removes every projectile and zeroes the counters
func (e *Engine) Reset() {
	e.missiles = nil
	e.bullets = nil
	e.byID.Clear()
	e.fired, e.intercepted, e.counters = 0, 0, 0
}
