package sim

import (
	"strings"

	"stackfire/internal/combat"
)

// Loadout identifies a starting build
type Loadout int

const (
	LoadoutGunner  Loadout = 0
	LoadoutBulwark Loadout = 1
	LoadoutDuelist Loadout = 2
	LoadoutBomber  Loadout = 3
)

// LoadoutDef holds the starting levels and pools of a loadout
type LoadoutDef struct {
	Name    string
	Levels  combat.Levels
	MaxHP   float64
	CP      int
	Charges int
}

var Loadouts = [4]LoadoutDef{
	// Gunner: multi-row clears hit hard
	{
		Name:   "gunner",
		Levels: combat.Levels{Salvo: 2, Burst: 1},
		MaxHP:  100, CP: 3,
	},
	// Bulwark: sturdy blocks, deep CP pool
	{
		Name:   "bulwark",
		Levels: combat.Levels{Defense: 2, Pierce: 1},
		MaxHP:  140, CP: 5,
	},
	// Duelist: lives inside the counter window
	{
		Name:   "duelist",
		Levels: combat.Levels{CounterFire: 2, Burst: 2},
		MaxHP:  80, CP: 2,
	},
	// Bomber: wide volleys, overflow turns into a blast
	{
		Name:    "bomber",
		Levels:  combat.Levels{Extra: 1, Salvo: 1},
		MaxHP:   100, CP: 2,
		Charges: 2,
	},
}

// GetLoadout returns the definition for a loadout
func GetLoadout(l Loadout) LoadoutDef {
	if l < 0 || int(l) >= len(Loadouts) {
		return Loadouts[LoadoutGunner]
	}
	return Loadouts[l]
}

func (l Loadout) String() string {
	return GetLoadout(l).Name
}

// ParseLoadout looks a loadout up by name
func ParseLoadout(name string) (Loadout, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, def := range Loadouts {
		if def.Name == name {
			return Loadout(i), true
		}
	}
	return LoadoutGunner, false
}
