package combat

import (
	"math/rand"
	"testing"

	"stackfire/internal/board"
)

func TestEnemyBurstFire(t *testing.T) {
	cfg := DefaultEnemyConfig()
	cfg.ShootInterval = 1.0
	cfg.BurstSize = 3
	cfg.BurstRate = 0.1
	e := NewEnemy(cfg, rand.New(rand.NewSource(7)))
	b := board.New(10, 20)

	shots := 0
	dt := 1.0 / 60.0
	for i := 0; i < 90; i++ { // 1.5 s: one grace interval, then one burst
		if _, ok := e.Update(dt, b); ok {
			shots++
		}
	}
	if shots != 3 {
		t.Errorf("expected 3 shots in first burst, got %d", shots)
	}
	if e.BurstLeft != 0 {
		t.Errorf("burst should be finished, %d left", e.BurstLeft)
	}
	if e.BurstCD <= 0 {
		t.Error("burst cooldown should be running")
	}
}

func TestEnemyTargetsHighestStack(t *testing.T) {
	cfg := DefaultEnemyConfig()
	cfg.ShootInterval = 0
	cfg.Targeting = TargetHighest
	e := NewEnemy(cfg, nil)

	b := board.New(10, 20)
	b.SetBlock(2, 18, board.NewBlock(1, 1, board.Normal, 0))
	b.SetBlock(7, 12, board.NewBlock(1, 1, board.Normal, 0))

	shot, ok := e.Update(0.01, b)
	if !ok {
		t.Fatal("expected a shot")
	}
	if shot.Col != 7 {
		t.Errorf("expected column 7, got %d", shot.Col)
	}
	if shot.Speed != BulletSpeed {
		t.Errorf("expected speed %f, got %f", BulletSpeed, shot.Speed)
	}
}

func TestEnemyTargetsLowestStack(t *testing.T) {
	cfg := DefaultEnemyConfig()
	cfg.ShootInterval = 0
	cfg.Targeting = TargetLowest
	e := NewEnemy(cfg, nil)

	b := board.New(10, 20)
	b.SetBlock(2, 18, board.NewBlock(1, 1, board.Normal, 0))
	b.SetBlock(7, 12, board.NewBlock(1, 1, board.Normal, 0))

	shot, _ := e.Update(0.01, b)
	if shot.Col != 2 {
		t.Errorf("expected column 2, got %d", shot.Col)
	}
}

func TestEnemyRandomColumnOnEmptyBoard(t *testing.T) {
	cfg := DefaultEnemyConfig()
	cfg.ShootInterval = 0
	cfg.BurstRate = 0
	cfg.Targeting = TargetMixed
	e := NewEnemy(cfg, rand.New(rand.NewSource(3)))
	b := board.New(10, 20)

	for i := 0; i < 50; i++ {
		shot, ok := e.Update(0.01, b)
		if !ok {
			continue
		}
		if shot.Col < 0 || shot.Col >= 10 {
			t.Fatalf("column out of range: %d", shot.Col)
		}
	}
}

func TestEnemyWeightedKinds(t *testing.T) {
	cfg := DefaultEnemyConfig()
	cfg.ShootInterval = 0
	cfg.BurstRate = 0
	cfg.Weights = [BulletKindCount]float64{}
	cfg.Weights[InsertRow] = 2
	e := NewEnemy(cfg, nil)
	b := board.New(10, 20)

	for i := 0; i < 20; i++ {
		shot, ok := e.Update(0.01, b)
		if ok && shot.Kind != InsertRow {
			t.Errorf("only insert_row is enabled, got %s", shot.Kind)
		}
	}

	cfg.Weights = [BulletKindCount]float64{}
	e = NewEnemy(cfg, nil)
	shot, ok := e.Update(0.01, b)
	if !ok || shot.Kind != Normal {
		t.Errorf("no enabled kind should fall back to normal, got %s", shot.Kind)
	}
}

func TestParseBulletKind(t *testing.T) {
	for k := BulletKind(0); k < BulletKindCount; k++ {
		got, ok := ParseBulletKind(k.String())
		if !ok || got != k {
			t.Errorf("round trip of %s failed", k)
		}
	}
	if _, ok := ParseBulletKind("laser"); ok {
		t.Error("unknown name should not parse")
	}
}
