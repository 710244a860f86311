package combo

import "stackfire/internal/effect"

const (
	CounterWindow = 0.2 // seconds after block creation during which a hit counts as a counter
	ResetDelay    = 2.0 // seconds after a no-clear lock before the combo drops
)

// Tracker holds the combo count and the pending reset timer. Timers run on
// the frame delta passed to Update, never on wall-clock time.
type Tracker struct {
	count   int
	max     int
	pending bool
	timer   float64 // remaining seconds before a pending reset fires

	window float64
	delay  float64

	effects *effect.Queue
}

// NewTracker creates a tracker with the default window and delay
func NewTracker(q *effect.Queue) *Tracker {
	return &Tracker{
		window:  CounterWindow,
		delay:   ResetDelay,
		effects: q,
	}
}

// Count returns the current combo count
func (t *Tracker) Count() int { return t.count }

// Max returns the highest combo reached
func (t *Tracker) Max() int { return t.max }

// ResetPending reports whether a reset timer is running
func (t *Tracker) ResetPending() bool { return t.pending }

// InCounterWindow reports whether a block created at createdAt is young
// enough at now for a hit on it to trigger counter-fire
func (t *Tracker) InCounterWindow(createdAt, now float64) bool {
	age := now - createdAt
	return age >= 0 && age <= t.window
}

func (t *Tracker) increment() {
	t.count++
	if t.count > t.max {
		t.max = t.count
	}
	t.pending = false
	t.timer = 0
	t.effects.Emit(effect.Effect{Kind: effect.ComboChanged, Count: t.count})
}

// OnCounterFire registers a counter hit and returns the new count
func (t *Tracker) OnCounterFire() int {
	t.increment()
	return t.count
}

// OnClear registers a row clear: the combo grows by one and any pending
// reset is cancelled
func (t *Tracker) OnClear() {
	t.increment()
}

// OnLockWithoutClear (re)starts the reset timer
func (t *Tracker) OnLockWithoutClear() {
	t.pending = true
	t.timer = t.delay
}

// Update advances the reset timer by dt seconds
func (t *Tracker) Update(dt float64) {
	if !t.pending {
		return
	}
	t.timer -= dt
	if t.timer > 0 {
		return
	}
	t.pending = false
	t.timer = 0
	if t.count == 0 {
		return
	}
	t.count = 0
	t.effects.Emit(effect.Effect{Kind: effect.ComboReset})
}

// Reset clears all state
func (t *Tracker) Reset() {
	t.count, t.max = 0, 0
	t.pending = false
	t.timer = 0
}
