package tetromino

import "math/rand"

// Bag deals pieces in shuffled runs of all seven types
type Bag struct {
	rng   *rand.Rand
	queue []Type
}

// NewBag creates a randomizer driven by rng. A nil rng seeds from 1.
func NewBag(rng *rand.Rand) *Bag {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Bag{rng: rng}
}

func (b *Bag) refill() {
	run := [Count]Type{I, O, T, S, Z, J, L}
	b.rng.Shuffle(len(run), func(i, j int) { run[i], run[j] = run[j], run[i] })
	b.queue = append(b.queue, run[:]...)
}

// Next removes and returns the next piece type
func (b *Bag) Next() Type {
	if len(b.queue) == 0 {
		b.refill()
	}
	t := b.queue[0]
	b.queue = b.queue[1:]
	return t
}

// Peek returns the next n piece types without consuming them
func (b *Bag) Peek(n int) []Type {
	for len(b.queue) < n {
		b.refill()
	}
	out := make([]Type, n)
	copy(out, b.queue[:n])
	return out
}
