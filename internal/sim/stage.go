package sim

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"stackfire/internal/combat"
	"stackfire/internal/piece"
)

// ErrInvalidStage is returned for stage files that fail validation
var ErrInvalidStage = errors.New("invalid stage")

// BulletSpec enables a bullet kind and gives its relative weight
type BulletSpec struct {
	Enabled bool    `yaml:"enabled"`
	Weight  float64 `yaml:"weight"`
}

// StageConfig describes the enemy and pacing of one stage
type StageConfig struct {
	Name          string                `yaml:"name"`
	EnemyHP       float64               `yaml:"enemy_hp"`
	ShootInterval float64               `yaml:"shoot_interval"` // seconds between bursts
	BurstSize     int                   `yaml:"burst_size"`
	BurstRate     float64               `yaml:"burst_rate"`   // seconds between shots in a burst
	BulletSpeed   float64               `yaml:"bullet_speed"` // cells/s
	TargetHighest bool                  `yaml:"target_highest"`
	TargetLowest  bool                  `yaml:"target_lowest"`
	Gravity       float64               `yaml:"gravity"` // seconds per row
	Bullets       map[string]BulletSpec `yaml:"bullets"`
}

// DefaultStage is the built-in first stage
func DefaultStage() StageConfig {
	return StageConfig{
		Name:          "training",
		EnemyHP:       300,
		ShootInterval: combat.EnemyShootInterval,
		BurstSize:     combat.EnemyBurstSize,
		BurstRate:     combat.EnemyBurstRate,
		BulletSpeed:   combat.BulletSpeed,
		Gravity:       piece.DefaultGravity,
		Bullets: map[string]BulletSpec{
			combat.Normal.String(): {Enabled: true, Weight: 1},
		},
	}
}

// Validate reports the first invalid field
func (c StageConfig) Validate() error {
	switch {
	case c.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidStage)
	case c.EnemyHP <= 0:
		return fmt.Errorf("%w: enemy_hp must be positive, got %g", ErrInvalidStage, c.EnemyHP)
	case c.ShootInterval < 0:
		return fmt.Errorf("%w: shoot_interval must not be negative", ErrInvalidStage)
	case c.BurstSize < 1:
		return fmt.Errorf("%w: burst_size must be at least 1, got %d", ErrInvalidStage, c.BurstSize)
	case c.BurstRate < 0:
		return fmt.Errorf("%w: burst_rate must not be negative", ErrInvalidStage)
	case c.BulletSpeed <= 0:
		return fmt.Errorf("%w: bullet_speed must be positive", ErrInvalidStage)
	case c.Gravity <= 0:
		return fmt.Errorf("%w: gravity must be positive", ErrInvalidStage)
	}
	for name, spec := range c.Bullets {
		if _, ok := combat.ParseBulletKind(name); !ok {
			return fmt.Errorf("%w: unknown bullet kind %q", ErrInvalidStage, name)
		}
		if spec.Weight < 0 {
			return fmt.Errorf("%w: bullet %s has negative weight", ErrInvalidStage, name)
		}
	}
	return nil
}

// EnemyConfig converts the stage into the enemy's firing pattern
func (c StageConfig) EnemyConfig() combat.EnemyConfig {
	cfg := combat.EnemyConfig{
		ShootInterval: c.ShootInterval,
		BurstSize:     c.BurstSize,
		BurstRate:     c.BurstRate,
		BulletSpeed:   c.BulletSpeed,
	}
	switch {
	case c.TargetHighest && c.TargetLowest:
		cfg.Targeting = combat.TargetMixed
	case c.TargetHighest:
		cfg.Targeting = combat.TargetHighest
	case c.TargetLowest:
		cfg.Targeting = combat.TargetLowest
	}
	for name, spec := range c.Bullets {
		k, ok := combat.ParseBulletKind(name)
		if !ok || !spec.Enabled {
			continue
		}
		cfg.Weights[k] = spec.Weight
	}
	return cfg
}

// ParseStage decodes a YAML stage on top of DefaultStage
func ParseStage(data []byte) (StageConfig, error) {
	c := DefaultStage()
	c.Bullets = nil
	if err := yaml.Unmarshal(data, &c); err != nil {
		return StageConfig{}, fmt.Errorf("parse stage: %w", err)
	}
	if c.Bullets == nil {
		c.Bullets = DefaultStage().Bullets
	}
	if err := c.Validate(); err != nil {
		return StageConfig{}, err
	}
	return c, nil
}

// LoadStage reads and validates one stage file
func LoadStage(path string) (StageConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return StageConfig{}, fmt.Errorf("read stage: %w", err)
	}
	c, err := ParseStage(data)
	if err != nil {
		return StageConfig{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return c, nil
}

// LoadStages loads every *.yaml / *.yml file in dir, in file name order
func LoadStages(dir string) ([]StageConfig, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read stage dir: %w", err)
	}
	var stages []StageConfig
	seen := make(map[string]bool)
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		c, err := LoadStage(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("%s: %w: duplicate stage name %q", e.Name(), ErrInvalidStage, c.Name)
		}
		seen[c.Name] = true
		stages = append(stages, c)
	}
	return stages, nil
}
