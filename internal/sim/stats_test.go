package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTakeDamage(t *testing.T) {
	s := NewStats(GetLoadout(LoadoutGunner), 50)
	assert.False(t, s.TakeDamage(40))
	assert.Equal(t, 60.0, s.HP)
	assert.True(t, s.TakeDamage(100))
	assert.Equal(t, 0.0, s.HP)
	assert.False(t, s.TakeDamage(1), "dead player does not die again")
}

func TestDamageEnemy(t *testing.T) {
	s := NewStats(GetLoadout(LoadoutGunner), 10)
	assert.False(t, s.DamageEnemy(4.5))
	assert.True(t, s.DamageEnemy(6))
	assert.Equal(t, 0.0, s.EnemyHP)
	assert.False(t, s.DamageEnemy(1))
}

func TestPayOverflowOrder(t *testing.T) {
	s := Stats{HP: 50, CP: 1, Charges: 1}
	assert.Equal(t, PaidWithCharge, s.PayOverflow())
	assert.Equal(t, PaidWithCP, s.PayOverflow())
	assert.Equal(t, 0, s.CP)
	assert.Equal(t, PaidWithHealth, s.PayOverflow())
	assert.Equal(t, CriticalHP, s.HP)

	s.HP = 0.5
	s.PayOverflow()
	assert.Equal(t, 0.5, s.HP, "critical never heals")
}

func TestLoadouts(t *testing.T) {
	for i, def := range Loadouts {
		lo, ok := ParseLoadout(def.Name)
		assert.True(t, ok)
		assert.Equal(t, Loadout(i), lo)
		assert.Equal(t, def.Name, lo.String())
	}
	lo, ok := ParseLoadout(" Bomber ")
	assert.True(t, ok)
	assert.Equal(t, LoadoutBomber, lo)

	_, ok = ParseLoadout("pacifist")
	assert.False(t, ok)
	assert.Equal(t, "gunner", GetLoadout(Loadout(99)).Name)

	s := NewStats(GetLoadout(LoadoutBulwark), 1)
	assert.Equal(t, 2, s.DefenseBonus())
	assert.Equal(t, 140.0, s.MaxHP)
}
