package combat

import (
	"math/rand"

	"stackfire/internal/board"
)

const (
	EnemyShootInterval = 3.0  // seconds between bursts
	EnemyBurstSize     = 3    // shots per burst
	EnemyBurstRate     = 0.25 // seconds between shots in a burst
)

// Targeting decides which column a shot aims at
type Targeting uint8

const (
	TargetRandom Targeting = iota
	TargetHighest
	TargetLowest
	TargetMixed // highest or lowest, picked per shot
)

// EnemyConfig is the firing pattern of the stage's enemy
type EnemyConfig struct {
	ShootInterval float64
	BurstSize     int
	BurstRate     float64
	BulletSpeed   float64
	Targeting     Targeting
	Weights       [BulletKindCount]float64 // zero disables a kind
}

// DefaultEnemyConfig fires plain bullets at random columns
func DefaultEnemyConfig() EnemyConfig {
	cfg := EnemyConfig{
		ShootInterval: EnemyShootInterval,
		BurstSize:     EnemyBurstSize,
		BurstRate:     EnemyBurstRate,
		BulletSpeed:   BulletSpeed,
	}
	cfg.Weights[Normal] = 1
	return cfg
}

// Shot is one bullet the enemy wants fired this tick
type Shot struct {
	Kind  BulletKind
	Col   int
	Speed float64
}

// Enemy is the stage boss. It never moves; it only fires bursts.
type Enemy struct {
	cfg EnemyConfig
	rng *rand.Rand

	BurstLeft int     // shots remaining in current burst
	FireCD    float64 // cooldown between individual shots
	BurstCD   float64 // cooldown between bursts
	Shots     int
}

// NewEnemy creates an enemy that waits one full interval before its first burst
func NewEnemy(cfg EnemyConfig, rng *rand.Rand) *Enemy {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = 1
	}
	return &Enemy{
		cfg:     cfg,
		rng:     rng,
		BurstCD: cfg.ShootInterval,
	}
}

// Config returns the firing pattern
func (e *Enemy) Config() EnemyConfig { return e.cfg }

// Update ticks the cooldowns and returns the shot to fire, if any
func (e *Enemy) Update(dt float64, b *board.Board) (Shot, bool) {
	if e.FireCD > 0 {
		e.FireCD -= dt
	}
	if e.BurstCD > 0 {
		e.BurstCD -= dt
	}

	fire := false
	if e.BurstLeft > 0 && e.FireCD <= 0 {
		fire = true
	} else if e.BurstLeft == 0 && e.BurstCD <= 0 {
		e.BurstLeft = e.cfg.BurstSize
		fire = true
	}
	if !fire {
		return Shot{}, false
	}
	e.BurstLeft--
	e.FireCD = e.cfg.BurstRate
	if e.BurstLeft == 0 {
		e.BurstCD = e.cfg.ShootInterval
	}
	e.Shots++
	return Shot{
		Kind:  e.pickKind(),
		Col:   e.pickColumn(b),
		Speed: e.cfg.BulletSpeed,
	}, true
}

func (e *Enemy) pickColumn(b *board.Board) int {
	mode := e.cfg.Targeting
	if mode == TargetMixed {
		mode = TargetHighest
		if e.rng.Intn(2) == 1 {
			mode = TargetLowest
		}
	}
	switch mode {
	case TargetHighest:
		if col, ok := b.HighestOccupiedColumn(); ok {
			return col
		}
	case TargetLowest:
		if col, ok := b.LowestOccupiedColumn(); ok {
			return col
		}
	}
	return e.rng.Intn(b.Width())
}

// pickKind rolls a weighted kind among the enabled ones
func (e *Enemy) pickKind() BulletKind {
	total := 0.0
	for _, w := range e.cfg.Weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return Normal
	}
	roll := e.rng.Float64() * total
	for k, w := range e.cfg.Weights {
		if w <= 0 {
			continue
		}
		if roll < w {
			return BulletKind(k)
		}
		roll -= w
	}
	return Normal
}
