package sim

import "stackfire/internal/combat"

const (
	PlayerMaxHP     = 100.0
	CriticalHP      = 1.0  // player hp after an overflow the CP pool cannot pay for
	OverflowCost    = 1    // CP spent per board overflow
	ExplosionDamage = 30.0 // enemy damage when a stored charge absorbs an overflow
)

// Stats holds the player's pools and upgrade levels. The embedded levels
// satisfy combat.Stats and piece.Defense.
type Stats struct {
	combat.Levels

	HP, MaxHP           float64
	EnemyHP, EnemyMaxHP float64
	CP                  int
	Charges             int // stored explosion charges
}

// NewStats builds starting pools for a loadout against an enemy of enemyHP
func NewStats(lo LoadoutDef, enemyHP float64) Stats {
	hp := lo.MaxHP
	if hp <= 0 {
		hp = PlayerMaxHP
	}
	return Stats{
		Levels:     lo.Levels,
		HP:         hp,
		MaxHP:      hp,
		EnemyHP:    enemyHP,
		EnemyMaxHP: enemyHP,
		CP:         lo.CP,
		Charges:    lo.Charges,
	}
}

// TakeDamage reduces HP and returns true if the player died
func (s *Stats) TakeDamage(dmg float64) bool {
	if s.HP <= 0 {
		return false
	}
	s.HP -= dmg
	if s.HP <= 0 {
		s.HP = 0
		return true
	}
	return false
}

// DamageEnemy reduces enemy HP and returns true if it was defeated
func (s *Stats) DamageEnemy(dmg float64) bool {
	if s.EnemyHP <= 0 {
		return false
	}
	s.EnemyHP -= dmg
	if s.EnemyHP <= 0 {
		s.EnemyHP = 0
		return true
	}
	return false
}

// OverflowResult says how an overflow was paid for
type OverflowResult uint8

const (
	PaidWithCharge OverflowResult = iota
	PaidWithCP
	PaidWithHealth
)

// PayOverflow settles one board overflow: a stored charge goes first, then
// the CP pool, and when both are empty the player drops to critical health.
func (s *Stats) PayOverflow() OverflowResult {
	switch {
	case s.Charges > 0:
		s.Charges--
		return PaidWithCharge
	case s.CP >= OverflowCost:
		s.CP -= OverflowCost
		return PaidWithCP
	default:
		s.HP = min(s.HP, CriticalHP)
		return PaidWithHealth
	}
}
