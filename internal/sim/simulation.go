package sim

import (
	"fmt"
	"math/rand"

	"go.uber.org/zap"

	"stackfire/internal/board"
	"stackfire/internal/combat"
	"stackfire/internal/combo"
	"stackfire/internal/effect"
	"stackfire/internal/piece"
	"stackfire/internal/tetromino"
)

// Phase is the outcome state of a session
type Phase uint8

const (
	PhasePlaying Phase = iota
	PhaseCleared       // enemy defeated
	PhaseLost          // player hp reached zero
)

func (p Phase) String() string {
	switch p {
	case PhaseCleared:
		return "cleared"
	case PhaseLost:
		return "lost"
	default:
		return "playing"
	}
}

// MarshalText encodes the phase by name
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// clock is the session's simulated time, advanced only by Tick
type clock struct {
	now float64
}

func (c *clock) Now() float64 { return c.now }

// Simulation owns one play session: the board, the falling piece, the
// projectiles, the combo state and the player's pools. It is not safe for
// concurrent use.
type Simulation struct {
	cfg   Config
	log   *zap.Logger
	q     effect.Queue
	clock clock

	board  *board.Board
	ctrl   *piece.Controller
	engine *combat.Engine
	combo  *combo.Tracker
	enemy  *combat.Enemy
	stats  Stats

	pending []Command
	phase   Phase

	lines       int
	overflows   int
	damageDealt float64
	damageTaken float64
}

// New builds a session from cfg. A nil logger discards output.
func New(cfg Config, log *zap.Logger) (*Simulation, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := cfg.Stage.Validate(); err != nil {
		return nil, fmt.Errorf("new simulation: %w", err)
	}
	if cfg.Width <= 0 {
		cfg.Width = board.DefaultWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = board.DefaultHeight
	}

	s := &Simulation{
		cfg: cfg,
		log: log.With(zap.String("stage", cfg.Stage.Name), zap.String("loadout", cfg.Loadout.String())),
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	s.stats = NewStats(GetLoadout(cfg.Loadout), cfg.Stage.EnemyHP)
	s.board = board.New(cfg.Width, cfg.Height, board.WithEffects(&s.q), board.WithClock(&s.clock))
	s.combo = combo.NewTracker(&s.q)
	s.ctrl = piece.NewController(s.board,
		tetromino.NewBag(rand.New(rand.NewSource(rng.Int63()))),
		piece.WithGravity(cfg.Stage.Gravity),
		piece.WithDefense(&s.stats),
		piece.WithClock(&s.clock),
		piece.WithEffects(&s.q),
		piece.WithRand(rand.New(rand.NewSource(rng.Int63()))),
	)
	s.engine = combat.NewEngine(s.board, &s.stats, s.combo,
		combat.WithEffects(&s.q),
		combat.WithClock(&s.clock),
		combat.WithCorrupter(s.ctrl),
	)
	s.ctrl.SetListener(s.engine)
	s.enemy = combat.NewEnemy(cfg.Stage.EnemyConfig(), rand.New(rand.NewSource(rng.Int63())))
	s.ctrl.Spawn()
	s.board.TakeChanged()
	s.q.Drain()
	return s, nil
}

// Enqueue buffers a command for the next tick. Input beyond the buffer
// size is dropped.
func (s *Simulation) Enqueue(cmd Command) {
	if len(s.pending) >= maxPending {
		return
	}
	s.pending = append(s.pending, cmd)
}

func (s *Simulation) apply(cmd Command) {
	switch cmd {
	case CmdMoveLeft:
		s.ctrl.MoveLeft()
	case CmdMoveRight:
		s.ctrl.MoveRight()
	case CmdSoftDrop:
		s.ctrl.MoveDown()
	case CmdHardDrop:
		s.ctrl.HardDrop()
	case CmdRotateCW:
		s.ctrl.Rotate()
	case CmdRotateCCW:
		s.ctrl.RotateCCW()
	}
}

// Tick advances the session by dt seconds and returns the effects it
// produced, in order. Once the session has an outcome Tick does nothing.
func (s *Simulation) Tick(dt float64) []effect.Effect {
	if s.phase != PhasePlaying {
		s.pending = s.pending[:0]
		return nil
	}
	if dt < 0 {
		dt = 0
	}
	s.clock.now += dt

	for _, cmd := range s.pending {
		s.apply(cmd)
	}
	s.pending = s.pending[:0]

	s.ctrl.Update(dt)
	if shot, ok := s.enemy.Update(dt, s.board); ok {
		s.engine.SpawnBullet(shot.Kind, shot.Col, shot.Speed)
	}
	s.engine.Update(dt)
	s.combo.Update(dt)

	s.settle()
	if s.board.TakeChanged() {
		s.q.Emit(effect.Effect{Kind: effect.GridChanged})
	}
	s.checkOutcome()
	return s.q.Drain()
}

// settle applies pool changes for every effect queued this tick. Effects
// emitted while settling are settled too.
func (s *Simulation) settle() {
	for i := 0; ; i++ {
		e, ok := s.q.At(i)
		if !ok {
			return
		}
		switch e.Kind {
		case effect.PlayerDamaged:
			s.damageTaken += e.Amount
			s.stats.TakeDamage(e.Amount)
		case effect.EnemyDamaged:
			s.damageDealt += e.Amount
			s.stats.DamageEnemy(e.Amount)
		case effect.RowsCleared:
			s.lines += e.Count
		case effect.BoardOverflow:
			s.overflows++
			paid := s.stats.PayOverflow()
			s.log.Debug("board overflow",
				zap.Int("overflows", s.overflows),
				zap.Int("cp", s.stats.CP),
				zap.Float64("hp", s.stats.HP),
				zap.Uint8("paid_with", uint8(paid)),
			)
			if paid == PaidWithCharge {
				s.q.Emit(effect.Effect{Kind: effect.EnemyDamaged, Amount: ExplosionDamage})
			}
		}
	}
}

func (s *Simulation) checkOutcome() {
	switch {
	case s.stats.EnemyHP <= 0:
		s.phase = PhaseCleared
		s.q.Emit(effect.Effect{Kind: effect.EnemyDefeated})
	case s.stats.HP <= 0:
		s.phase = PhaseLost
		s.q.Emit(effect.Effect{Kind: effect.GameOver})
	default:
		return
	}
	s.log.Debug("session over",
		zap.Stringer("phase", s.phase),
		zap.Float64("time", s.clock.now),
		zap.Int("lines", s.lines),
	)
}

// Phase returns the session outcome so far
func (s *Simulation) Phase() Phase { return s.phase }

// Over reports whether the session has an outcome
func (s *Simulation) Over() bool { return s.phase != PhasePlaying }

// Now returns the simulated seconds elapsed
func (s *Simulation) Now() float64 { return s.clock.now }

// Stats returns a copy of the player's pools and levels
func (s *Simulation) Stats() Stats { return s.stats }

// Board exposes the grid for read-only presentation
func (s *Simulation) Board() *board.Board { return s.board }

// Config returns the session configuration
func (s *Simulation) Config() Config { return s.cfg }
