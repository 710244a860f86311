package main

import (
	"encoding/json"

	"stackfire/internal/combat"
	"stackfire/internal/effect"
	"stackfire/internal/sim"
)

// Client -> Server message types
const (
	MsgJoin     = "join"
	MsgLeave    = "leave"
	MsgInput    = "input"
	MsgCreate   = "create"  // create session
	MsgList     = "list"    // list sessions
	MsgCheck    = "check"   // check if session exists
	MsgControl  = "control" // phone controller attach
	MsgRematch  = "rematch"
	MsgRegister = "register"
	MsgLogin    = "login"
	MsgAuth     = "auth" // resume with a stored token
	MsgProfile  = "profile"
)

// Server -> Client message types
const (
	MsgState       = "state" // binary msgpack frame, never sent as JSON
	MsgWelcome     = "welcome"
	MsgSessions    = "sessions"
	MsgJoined      = "joined"
	MsgCreated     = "created"
	MsgError       = "error"
	MsgChecked     = "checked"
	MsgControlOK   = "control_ok"
	MsgCtrlOn      = "ctrl_on"  // pilot: controller attached
	MsgCtrlOff     = "ctrl_off" // pilot: controller detached
	MsgPhase       = "phase"
	MsgEvents      = "events"
	MsgResult      = "result"
	MsgAuthOK      = "auth_ok"
	MsgProfileData = "profile_data"
)

// Binary input opcode: [binInput, command]
const binInput = 0x01

// Envelope wraps all outgoing JSON messages with a type field
type Envelope struct {
	T    string      `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

// InEnvelope is used for incoming messages; json.RawMessage avoids double-unmarshal
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// InputMsg carries one pilot command by wire name
type InputMsg struct {
	Cmd string `json:"cmd"`
}

// JoinMsg is sent when a client wants to fly or watch a session
type JoinMsg struct {
	Name      string `json:"name"`
	SessionID string `json:"sid"`
	Spectate  bool   `json:"spectate,omitempty"`
}

// CreateMsg is sent when a client wants to create a session
type CreateMsg struct {
	Name        string `json:"name"`
	SessionName string `json:"sname"`
	Stage       string `json:"stage"`
	Loadout     string `json:"loadout"`
}

// WelcomeMsg is sent to a member when they join
type WelcomeMsg struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Stage   string `json:"stage"`
	Loadout string `json:"loadout"`
	Width   int    `json:"w"`
	Height  int    `json:"h"`
}

// SessionInfo is used in the session list
type SessionInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Stage      string `json:"stage"`
	Loadout    string `json:"loadout"`
	Phase      string `json:"phase"`
	Pilot      string `json:"pilot,omitempty"`
	Spectators int    `json:"spectators"`
}

// SessionsMsg answers a list request with what can be joined or created
type SessionsMsg struct {
	Sessions []SessionInfo `json:"sessions"`
	Stages   []string      `json:"stages"`
	Loadouts []string      `json:"loadouts"`
}

// ErrorMsg sends error to client
type ErrorMsg struct {
	Msg string `json:"msg"`
}

// ControlMsg is sent by a phone controller to attach to a pilot
type ControlMsg struct {
	SID      string `json:"sid"`
	PlayerID string `json:"pid"`
}

// CheckMsg is sent by client to check if a session exists
type CheckMsg struct {
	SID string `json:"sid"`
}

// CheckedMsg is the response to a session check
type CheckedMsg struct {
	SID      string `json:"sid"`
	Exists   bool   `json:"exists"`
	Name     string `json:"name,omitempty"`
	Stage    string `json:"stage,omitempty"`
	HasPilot bool   `json:"pilot,omitempty"`
}

// PhaseMsg announces a session phase change
type PhaseMsg struct {
	Phase     string  `json:"phase"`
	Countdown float64 `json:"cd,omitempty"`
}

// EventMsg is one gameplay effect forwarded to clients
type EventMsg struct {
	Kind   string  `json:"k"`
	Amount float64 `json:"a,omitempty"`
	Count  int     `json:"n,omitempty"`
	Col    int     `json:"c,omitempty"`
	Row    int     `json:"r,omitempty"`
	X      float64 `json:"x,omitempty"`
	Y      float64 `json:"y,omitempty"`
	Bullet string  `json:"b,omitempty"`
}

// ResultMsg closes a run
type ResultMsg struct {
	Outcome      string      `json:"outcome"`
	Summary      sim.Summary `json:"summary"`
	XP           int         `json:"xp,omitempty"`
	Level        int         `json:"level,omitempty"`
	Achievements []string    `json:"achievements,omitempty"`
}

type RegisterMsg struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginMsg struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthMsg struct {
	Token string `json:"token"`
}

type AuthOKMsg struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	PlayerID int64  `json:"pid"`
}

// ProfileDataMsg is the pilot's persistent record
type ProfileDataMsg struct {
	Username     string   `json:"username"`
	Level        int      `json:"level"`
	XP           int      `json:"xp"`
	Runs         int      `json:"runs"`
	Clears       int      `json:"clears"`
	Lines        int      `json:"lines"`
	BestCombo    int      `json:"best_combo"`
	Damage       float64  `json:"damage"`
	Playtime     float64  `json:"playtime"`
	Achievements []string `json:"achievements"`
	Recent       []RunRow `json:"recent"`
}

// CellState is one board cell in a state frame
type CellState struct {
	_msgpack struct{} `msgpack:",as_array"`

	Col, Row       int
	Color          uint8
	HP, MaxHP      int
	Kind           uint8
	Indestructible bool
}

// PieceState is the falling piece in a state frame
type PieceState struct {
	Type     string      `msgpack:"t"`
	Rotation int         `msgpack:"r"`
	Cells    []CellState `msgpack:"c"`
	GhostDY  int         `msgpack:"g"`
}

// ProjectileState is one missile or bullet in a state frame
type ProjectileState struct {
	_msgpack struct{} `msgpack:",as_array"`

	ID   uint32
	X, Y float64
	Kind string
}

// PoolState carries the pilot and enemy pools
type PoolState struct {
	HP         float64 `msgpack:"hp"`
	MaxHP      float64 `msgpack:"mhp"`
	CP         int     `msgpack:"cp"`
	Charges    int     `msgpack:"ch"`
	EnemyHP    float64 `msgpack:"ehp"`
	EnemyMaxHP float64 `msgpack:"emhp"`
}

// StateFrame is the binary state broadcast
type StateFrame struct {
	Tick      uint64            `msgpack:"tick"`
	Phase     string            `msgpack:"ph"`
	Countdown float64           `msgpack:"cd,omitempty"`
	Time      float64           `msgpack:"time"`
	Width     int               `msgpack:"w"`
	Height    int               `msgpack:"h"`
	Cells     []CellState       `msgpack:"cells"`
	Active    *PieceState       `msgpack:"act,omitempty"`
	Next      []string          `msgpack:"next"`
	Missiles  []ProjectileState `msgpack:"ms"`
	Bullets   []ProjectileState `msgpack:"bs"`
	Combo     int               `msgpack:"combo"`
	Pools     PoolState         `msgpack:"pools"`
}

func toCellState(c sim.Cell) CellState {
	return CellState{
		Col:            c.Col,
		Row:            c.Row,
		Color:          c.Color,
		HP:             c.HP,
		MaxHP:          c.MaxHP,
		Kind:           uint8(c.Kind),
		Indestructible: c.Indestructible,
	}
}

// NewStateFrame converts a simulation snapshot to its wire form
func NewStateFrame(tick uint64, phase string, countdown float64, snap sim.Snapshot) StateFrame {
	f := StateFrame{
		Tick:      tick,
		Phase:     phase,
		Countdown: countdown,
		Time:      snap.Time,
		Width:     snap.Width,
		Height:    snap.Height,
		Cells:     make([]CellState, 0, len(snap.Cells)),
		Next:      make([]string, 0, len(snap.Next)),
		Missiles:  make([]ProjectileState, 0, len(snap.Missiles)),
		Bullets:   make([]ProjectileState, 0, len(snap.Bullets)),
		Combo:     snap.Combo,
		Pools: PoolState{
			HP:         snap.Stats.HP,
			MaxHP:      snap.Stats.MaxHP,
			CP:         snap.Stats.CP,
			Charges:    snap.Stats.Charges,
			EnemyHP:    snap.Stats.EnemyHP,
			EnemyMaxHP: snap.Stats.EnemyMaxHP,
		},
	}
	for _, c := range snap.Cells {
		f.Cells = append(f.Cells, toCellState(c))
	}
	for _, t := range snap.Next {
		f.Next = append(f.Next, t.String())
	}
	if a := snap.Active; a != nil {
		ps := &PieceState{Type: a.Type.String(), Rotation: a.Rotation, GhostDY: a.GhostDY}
		for _, c := range a.Cells {
			ps.Cells = append(ps.Cells, toCellState(c))
		}
		f.Active = ps
	}
	for _, m := range snap.Missiles {
		// pending missiles have no position yet
		if !m.Launched() {
			continue
		}
		f.Missiles = append(f.Missiles, ProjectileState{ID: m.ID, X: m.X, Y: m.Y, Kind: "missile"})
	}
	for _, b := range snap.Bullets {
		f.Bullets = append(f.Bullets, ProjectileState{ID: b.ID, X: b.X, Y: b.Y, Kind: b.Kind.String()})
	}
	return f
}

// NewEventMsg converts an effect to its wire form
func NewEventMsg(e effect.Effect) EventMsg {
	ev := EventMsg{Kind: e.Kind.String()}
	switch e.Kind {
	case effect.MissileFired, effect.EnemyDamaged, effect.PlayerDamaged:
		ev.Amount = e.Amount
	case effect.RowsCleared:
		ev.Count = e.Count
	case effect.ComboChanged:
		ev.Count = e.Count
	case effect.BlockDestroyed:
		ev.Col, ev.Row = e.Col, e.Row
	case effect.Intercept:
		ev.X, ev.Y = e.X, e.Y
	case effect.CounterFire:
		ev.Count = e.Count
		ev.X, ev.Y = e.X, e.Y
	case effect.BulletFired:
		ev.Bullet = combat.BulletKind(e.Bullet).String()
	}
	return ev
}

// forwarded reports whether clients care about an effect kind. Grid changes
// are implied by the next state frame.
func forwarded(k effect.Kind) bool {
	return k != effect.GridChanged
}
