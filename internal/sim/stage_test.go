package sim

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stackfire/internal/combat"
)

const sampleStage = `
name: bunker
enemy_hp: 450
shoot_interval: 2.5
burst_size: 4
target_highest: true
bullets:
  normal: {enabled: true, weight: 3}
  insert_row: {enabled: true, weight: 1}
  corrupt_void: {enabled: false, weight: 5}
`

func TestParseStage(t *testing.T) {
	c, err := ParseStage([]byte(sampleStage))
	require.NoError(t, err)
	assert.Equal(t, "bunker", c.Name)
	assert.Equal(t, 450.0, c.EnemyHP)
	assert.Equal(t, 4, c.BurstSize)
	assert.Equal(t, combat.EnemyBurstRate, c.BurstRate, "unset fields keep defaults")

	ec := c.EnemyConfig()
	assert.Equal(t, combat.TargetHighest, ec.Targeting)
	assert.Equal(t, 3.0, ec.Weights[combat.Normal])
	assert.Equal(t, 1.0, ec.Weights[combat.InsertRow])
	assert.Equal(t, 0.0, ec.Weights[combat.CorruptVoid], "disabled kinds carry no weight")
}

func TestParseStageDefaultsBullets(t *testing.T) {
	c, err := ParseStage([]byte("name: plain\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultStage().Bullets, c.Bullets)
	assert.Equal(t, combat.TargetRandom, c.EnemyConfig().Targeting)
}

func TestStageTargetingMixed(t *testing.T) {
	c := DefaultStage()
	c.TargetHighest, c.TargetLowest = true, true
	assert.Equal(t, combat.TargetMixed, c.EnemyConfig().Targeting)
	c.TargetHighest = false
	assert.Equal(t, combat.TargetLowest, c.EnemyConfig().Targeting)
}

func TestParseStageInvalid(t *testing.T) {
	for name, doc := range map[string]string{
		"no name":      "name: \"\"\nenemy_hp: 10\n",
		"zero hp":      "name: x\nenemy_hp: 0\n",
		"burst":        "name: x\nburst_size: 0\n",
		"speed":        "name: x\nbullet_speed: -1\n",
		"gravity":      "name: x\ngravity: 0\n",
		"unknown kind": "name: x\nbullets:\n  laser: {enabled: true, weight: 1}\n",
		"weight":       "name: x\nbullets:\n  normal: {enabled: true, weight: -1}\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseStage([]byte(doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidStage), "got %v", err)
		})
	}

	_, err := ParseStage([]byte("name: [unclosed"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidStage))
}

func TestLoadStages(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "02-bunker.yaml"), []byte(sampleStage), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "01-plain.yml"), []byte("name: plain\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	stages, err := LoadStages(dir)
	require.NoError(t, err)
	require.Len(t, stages, 2)
	assert.Equal(t, "plain", stages[0].Name)
	assert.Equal(t, "bunker", stages[1].Name)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "03-again.yaml"), []byte("name: plain\n"), 0o644))
	_, err = LoadStages(dir)
	assert.True(t, errors.Is(err, ErrInvalidStage))

	_, err = LoadStages(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestShippedStagesLoad(t *testing.T) {
	stages, err := LoadStages(filepath.Join("..", "..", "stages"))
	require.NoError(t, err)
	assert.NotEmpty(t, stages)
}
