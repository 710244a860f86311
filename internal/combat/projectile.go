package combat

import "math"

// Playfield units are board cells: x grows to the right, y grows toward the
// player's base. The enemy sits above y=0.
const (
	MissileSpeed     = 24.0 // cells/s, upward
	MissileStagger   = 0.06 // seconds between launches inside one group
	BulletSpeed      = 6.0  // cells/s, downward, when the stage sets none
	CollisionRadius  = 0.5  // cells, missile-bullet center distance
	BaseImpactDamage = 8.0  // player damage when a bullet reaches the base
	BlockHitDamage   = 1    // hp removed from a struck block
)

// BulletKind selects what a bullet does when it strikes the stack
type BulletKind uint8

const (
	Normal BulletKind = iota
	AreaDamage
	AddBlock
	AddExplosiveBlock
	InsertRow
	InsertVoidRow
	CorruptExplosive
	CorruptVoid
)

// BulletKindCount is the number of bullet kinds
const BulletKindCount = 8

var bulletKindNames = [BulletKindCount]string{
	"normal", "area_damage", "add_block", "add_explosive_block",
	"insert_row", "insert_void_row", "corrupt_explosive", "corrupt_void",
}

func (k BulletKind) String() string {
	if k < BulletKindCount {
		return bulletKindNames[k]
	}
	return "unknown"
}

// ParseBulletKind maps a name produced by String back to its kind
func ParseBulletKind(s string) (BulletKind, bool) {
	for i, name := range bulletKindNames {
		if name == s {
			return BulletKind(i), true
		}
	}
	return Normal, false
}

// Missile is fired from cleared rows toward the enemy
type Missile struct {
	ID     uint32
	X, Y   float64
	Speed  float64
	Damage float64
	Pierce int     // bullets it can pass through before dying
	Delay  float64 // seconds until launch; a waiting missile neither moves nor collides
	Alive  bool

	fired bool
}

// Launched reports whether the missile has left its launch slot
func (m *Missile) Launched() bool {
	return m.Delay <= 0
}

// Update moves the missile one tick and reports whether this was its
// launch tick
func (m *Missile) Update(dt float64) bool {
	if !m.Alive {
		return false
	}
	if m.Delay > 0 {
		m.Delay -= dt
		if m.Delay > 0 {
			return false
		}
		m.Delay = 0
	}
	m.Y -= m.Speed * dt
	if m.fired {
		return false
	}
	m.fired = true
	return true
}

// Bullet is fired by the enemy toward the stack
type Bullet struct {
	ID    uint32
	Kind  BulletKind
	X, Y  float64
	Speed float64
	Alive bool
}

// Update moves the bullet one tick
func (b *Bullet) Update(dt float64) {
	if !b.Alive {
		return
	}
	b.Y += b.Speed * dt
}

// Cell maps the bullet position to a grid cell
func (b *Bullet) Cell() (col, row int) {
	return int(math.Floor(b.X)), int(math.Floor(b.Y))
}
