package combo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stackfire/internal/effect"
)

const frame = 1.0 / 60.0

func TestCounterWindow(t *testing.T) {
	tr := NewTracker(nil)
	assert.True(t, tr.InCounterWindow(10, 10))
	assert.True(t, tr.InCounterWindow(10, 10.2))
	assert.False(t, tr.InCounterWindow(10, 10.21))
	assert.False(t, tr.InCounterWindow(10, 9.9), "block from the future")
}

func TestClearIncrementsAndCancelsReset(t *testing.T) {
	var q effect.Queue
	tr := NewTracker(&q)

	tr.OnClear()
	tr.OnLockWithoutClear()
	require.True(t, tr.ResetPending())
	tr.OnClear()

	assert.Equal(t, 2, tr.Count())
	assert.False(t, tr.ResetPending())

	for i := 0; i < 300; i++ {
		tr.Update(frame)
	}
	assert.Equal(t, 2, tr.Count())

	out := q.Drain()
	require.Len(t, out, 2)
	assert.Equal(t, effect.ComboChanged, out[1].Kind)
	assert.Equal(t, 2, out[1].Count)
}

func TestResetAfterDelay(t *testing.T) {
	var q effect.Queue
	tr := NewTracker(&q)
	tr.OnClear()
	tr.OnClear()
	q.Drain()

	tr.OnLockWithoutClear()
	elapsed := 0.0
	for elapsed+frame < ResetDelay-frame {
		tr.Update(frame)
		elapsed += frame
	}
	assert.Equal(t, 2, tr.Count(), "not yet elapsed")

	for i := 0; i < 5; i++ {
		tr.Update(frame)
	}
	assert.Equal(t, 0, tr.Count())
	assert.Equal(t, 2, tr.Max())
	out := q.Drain()
	require.Len(t, out, 1)
	assert.Equal(t, effect.ComboReset, out[0].Kind)
}

func TestCounterFireCancelsReset(t *testing.T) {
	tr := NewTracker(nil)
	tr.OnLockWithoutClear()
	tr.Update(ResetDelay / 2)

	assert.Equal(t, 1, tr.OnCounterFire())
	tr.Update(ResetDelay)
	assert.Equal(t, 1, tr.Count())
}

func TestResetOnZeroComboIsSilent(t *testing.T) {
	var q effect.Queue
	tr := NewTracker(&q)
	tr.OnLockWithoutClear()
	tr.Update(ResetDelay + 1)
	assert.Equal(t, 0, q.Len())
	assert.False(t, tr.ResetPending())
}
