package main

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"stackfire/internal/sim"
)

const (
	TickRate       = 60 // simulation ticks per second
	BroadcastRate  = 30 // state broadcasts per second
	TickDuration   = time.Second / TickRate
	BroadcastEvery = TickRate / BroadcastRate
)

const (
	maxSpectators     = 16
	maxBufferedEvents = 256
)

// CountdownDuration is the pause between a pilot joining and play starting
var CountdownDuration = 3 * time.Second

var ErrSessionFull = errors.New("session full")

// GamePhase is the lifecycle state of a hosted session
type GamePhase int

const (
	PhaseWaiting   GamePhase = iota // no pilot yet
	PhaseCountdown                  // pilot joined, play starts soon
	PhasePlaying
	PhaseResult // run finished, waiting for a rematch
)

func (p GamePhase) String() string {
	switch p {
	case PhaseCountdown:
		return "countdown"
	case PhasePlaying:
		return "playing"
	case PhaseResult:
		return "result"
	default:
		return "waiting"
	}
}

// Member roles
const (
	RolePilot     = "pilot"
	RoleSpectator = "spectator"
)

// Broadcaster is anything a session can push messages to
type Broadcaster interface {
	SendJSON(msg interface{})
	SendBinary(data []byte)
}

// Member is a client attached to a session
type Member struct {
	ID        string
	Name      string
	AccountID int64 // 0 = guest
	client    Broadcaster
}

// Game hosts one simulation and the clients watching or flying it
type Game struct {
	mu       sync.RWMutex
	id       string
	cfg      sim.Config
	sim      *sim.Simulation
	log      *zap.Logger
	recorder RunRecorder

	phase     GamePhase
	countdown float64
	tick      uint64

	pilot      *Member
	controller Broadcaster
	spectators map[string]*Member
	// account credited with the current run, kept if the pilot leaves mid-run
	runAccount int64

	events []EventMsg
	result *ResultMsg

	running bool
	stop    chan struct{}
}

// NewGame builds a session around a fresh simulation
func NewGame(id string, cfg sim.Config, recorder RunRecorder, log *zap.Logger) (*Game, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("session", id))
	s, err := sim.New(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("new game: %w", err)
	}
	return &Game{
		id:         id,
		cfg:        cfg,
		sim:        s,
		log:        log,
		recorder:   recorder,
		spectators: make(map[string]*Member),
		stop:       make(chan struct{}),
	}, nil
}

// Run starts the game loop
func (g *Game) Run() {
	g.mu.Lock()
	g.running = true
	g.mu.Unlock()

	ticker := time.NewTicker(TickDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if g.update() {
				g.finish()
			}
		case <-g.stop:
			return
		}
	}
}

// Stop terminates the game loop
func (g *Game) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		g.running = false
		close(g.stop)
	}
}

// AddMember seats a client as pilot when the seat is free and they asked
// to fly, otherwise as a spectator
func (g *Game) AddMember(name string, accountID int64, client Broadcaster, spectate bool) (*Member, string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	m := &Member{ID: GenerateID(4), Name: name, AccountID: accountID, client: client}
	if !spectate && g.pilot == nil {
		g.pilot = m
		if g.phase == PhaseWaiting {
			g.runAccount = accountID
			g.startCountdown()
		}
		return m, RolePilot, nil
	}
	if len(g.spectators) >= maxSpectators {
		return nil, "", ErrSessionFull
	}
	g.spectators[m.ID] = m
	return m, RoleSpectator, nil
}

// RemoveMember detaches a client. A pilot leaving mid-run abandons it.
func (g *Game) RemoveMember(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pilot != nil && g.pilot.ID == id {
		g.pilot = nil
		if g.controller != nil {
			g.controller.SendJSON(Envelope{T: MsgCtrlOff})
			g.controller = nil
		}
		if g.phase == PhaseCountdown {
			g.setPhase(PhaseWaiting)
		}
		return
	}
	delete(g.spectators, id)
}

// MemberCount returns pilots plus spectators
func (g *Game) MemberCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := len(g.spectators)
	if g.pilot != nil {
		n++
	}
	return n
}

// IsPilot reports whether id flies this session
func (g *Game) IsPilot(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.pilot != nil && g.pilot.ID == id
}

// HandleCommand queues a pilot command. Other members and other phases are ignored.
func (g *Game) HandleCommand(memberID string, cmd sim.Command) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.phase != PhasePlaying || g.pilot == nil || g.pilot.ID != memberID {
		return
	}
	g.sim.Enqueue(cmd)
}

// SetController attaches a phone controller to the pilot
func (g *Game) SetController(pilotID string, c Broadcaster) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pilot == nil || g.pilot.ID != pilotID {
		return false
	}
	g.controller = c
	g.pilot.client.SendJSON(Envelope{T: MsgCtrlOn})
	return true
}

// RemoveController detaches the phone controller if c is the attached one
func (g *Game) RemoveController(c Broadcaster) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.controller != c {
		return
	}
	g.controller = nil
	if g.pilot != nil {
		g.pilot.client.SendJSON(Envelope{T: MsgCtrlOff})
	}
}

// Rematch restarts the session with a new simulation once a run has ended
func (g *Game) Rematch(memberID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.phase != PhaseResult || g.pilot == nil || g.pilot.ID != memberID {
		return nil
	}
	cfg := g.cfg
	cfg.Seed++
	s, err := sim.New(cfg, g.log)
	if err != nil {
		return fmt.Errorf("rematch: %w", err)
	}
	g.cfg = cfg
	g.sim = s
	g.result = nil
	g.events = g.events[:0]
	g.runAccount = g.pilot.AccountID
	g.startCountdown()
	return nil
}

// Info describes the session for lists and checks
func (g *Game) Info() SessionInfo {
	g.mu.RLock()
	defer g.mu.RUnlock()
	info := SessionInfo{
		ID:         g.id,
		Stage:      g.cfg.Stage.Name,
		Loadout:    g.cfg.Loadout.String(),
		Phase:      g.phase.String(),
		Spectators: len(g.spectators),
	}
	if g.pilot != nil {
		info.Pilot = g.pilot.Name
	}
	return info
}

// Phase returns the session phase
func (g *Game) Phase() GamePhase {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.phase
}

// Config returns the simulation configuration in use
func (g *Game) Config() sim.Config {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cfg
}

func (g *Game) startCountdown() {
	g.countdown = CountdownDuration.Seconds()
	g.setPhase(PhaseCountdown)
}

func (g *Game) setPhase(p GamePhase) {
	g.phase = p
	msg := PhaseMsg{Phase: p.String()}
	if p == PhaseCountdown {
		msg.Countdown = g.countdown
	}
	g.broadcastMsg(Envelope{T: MsgPhase, Data: msg})
}

// update runs one tick and reports whether the run just ended
func (g *Game) update() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	dt := 1.0 / float64(TickRate)
	g.tick++
	finished := false

	switch g.phase {
	case PhaseCountdown:
		g.countdown -= dt
		if g.countdown <= 0 {
			g.countdown = 0
			g.setPhase(PhasePlaying)
		}
	case PhasePlaying:
		if g.pilot == nil {
			finished = true
			break
		}
		for _, e := range g.sim.Tick(dt) {
			if forwarded(e.Kind) && len(g.events) < maxBufferedEvents {
				g.events = append(g.events, NewEventMsg(e))
			}
		}
		finished = g.sim.Over()
	}
	if finished {
		// the result message follows from finish; block further ticks now
		g.phase = PhaseResult
	}

	if finished || g.tick%BroadcastEvery == 0 {
		g.broadcastState()
	}
	return finished
}

// finish records the ended run and announces the result. The recorder is
// called without holding the game lock.
func (g *Game) finish() {
	g.mu.RLock()
	sum := g.sim.Summary()
	account := g.runAccount
	g.mu.RUnlock()

	res := ResultMsg{Outcome: outcomeName(sum.Outcome), Summary: sum}
	if g.recorder != nil {
		xp, level, unlocked, err := g.recorder.RecordRun(account, g.id, sum)
		if err != nil {
			g.log.Error("record run failed", zap.Int64("account", account), zap.Error(err))
		} else {
			res.XP, res.Level, res.Achievements = xp, level, unlocked
		}
	}
	g.log.Info("run finished",
		zap.String("outcome", res.Outcome),
		zap.Float64("duration", sum.Duration),
		zap.Int("lines", sum.Lines),
		zap.Float64("damage_dealt", sum.DamageDealt),
	)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.result = &res
	g.broadcastMsg(Envelope{T: MsgResult, Data: res})
	g.setPhase(PhaseResult)
}

// Result returns the last run's result, if any
func (g *Game) Result() (ResultMsg, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.result == nil {
		return ResultMsg{}, false
	}
	return *g.result, true
}

// outcomeName names a run outcome; a run still in play was abandoned
func outcomeName(p sim.Phase) string {
	if p == sim.PhasePlaying {
		return "abandoned"
	}
	return p.String()
}

// broadcastState sends queued events and the binary state frame to every member
func (g *Game) broadcastState() {
	if len(g.events) > 0 {
		g.broadcastMsg(Envelope{T: MsgEvents, Data: g.events})
		g.events = nil
	}

	frame := NewStateFrame(g.tick, g.phase.String(), g.countdown, g.sim.Snapshot())
	data, err := msgpack.Marshal(&frame)
	if err != nil {
		g.log.Error("encode state frame", zap.Error(err))
		return
	}
	g.eachMember(func(m *Member) { m.client.SendBinary(data) })
}

// broadcastMsg sends a JSON message to every member
func (g *Game) broadcastMsg(msg Envelope) {
	g.eachMember(func(m *Member) { m.client.SendJSON(msg) })
}

func (g *Game) eachMember(fn func(*Member)) {
	if g.pilot != nil && g.pilot.client != nil {
		fn(g.pilot)
	}
	for _, m := range g.spectators {
		if m.client != nil {
			fn(m)
		}
	}
}
