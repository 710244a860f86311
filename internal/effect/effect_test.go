package effect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueDrain(t *testing.T) {
	var q Queue
	q.Emit(Effect{Kind: PieceLocked})
	q.Emit(Effect{Kind: PlayerDamaged, Amount: 5})

	require.Equal(t, 2, q.Len())
	out := q.Drain()
	require.Len(t, out, 2)
	assert.Equal(t, PieceLocked, out[0].Kind)
	assert.Equal(t, 5.0, out[1].Amount)
	assert.Equal(t, 0, q.Len())
	assert.Nil(t, q.Drain())
}

func TestQueueDrainIsDetached(t *testing.T) {
	var q Queue
	q.Emit(Effect{Kind: ComboChanged, Count: 1})
	out := q.Drain()
	q.Emit(Effect{Kind: ComboReset})
	assert.Equal(t, ComboChanged, out[0].Kind)
}

func TestQueueSince(t *testing.T) {
	var q Queue
	q.Emit(Effect{Kind: PieceLocked})
	mark := q.Len()
	q.Emit(Effect{Kind: BoardOverflow})

	got := q.Since(mark)
	require.Len(t, got, 1)
	assert.Equal(t, BoardOverflow, got[0].Kind)
	assert.Nil(t, q.Since(10))
}

func TestNilQueue(t *testing.T) {
	var q *Queue
	q.Emit(Effect{Kind: GameOver})
	assert.Equal(t, 0, q.Len())
	assert.Nil(t, q.Drain())
	assert.Nil(t, q.Since(0))
	_, ok := q.At(0)
	assert.False(t, ok)
}

func TestQueueAt(t *testing.T) {
	var q Queue
	q.Emit(Effect{Kind: RowsCleared, Count: 2})

	e, ok := q.At(0)
	assert.True(t, ok)
	assert.Equal(t, 2, e.Count)
	for _, i := range []int{-1, 1, 5} {
		_, ok := q.At(i)
		assert.False(t, ok, "index %d", i)
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "rows_cleared", RowsCleared.String())
	assert.Equal(t, "unknown", Kind(200).String())
}
