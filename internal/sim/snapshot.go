package sim

import (
	"stackfire/internal/board"
	"stackfire/internal/combat"
	"stackfire/internal/tetromino"
)

// PreviewSize is how many upcoming pieces a snapshot lists
const PreviewSize = 3

// Cell is one occupied board position
type Cell struct {
	Col, Row       int
	Color          uint8
	HP, MaxHP      int
	Kind           board.Kind
	Indestructible bool
}

// ActivePiece is the falling piece as seen by presentation layers
type ActivePiece struct {
	Type     tetromino.Type
	Rotation int
	Cells    []Cell // HP fields unset
	GhostRow int    // anchor row the piece would land on
	GhostDY  int    // rows between the piece and its ghost
}

// Snapshot is a copy of everything a renderer needs for one frame
type Snapshot struct {
	Width, Height int
	Time          float64
	Phase         Phase

	Cells    []Cell
	Active   *ActivePiece
	Next     []tetromino.Type
	Missiles []combat.Missile
	Bullets  []combat.Bullet

	Combo        int
	ComboPending bool

	Stats Stats
}

// Snapshot copies the current session state
func (s *Simulation) Snapshot() Snapshot {
	snap := Snapshot{
		Width:        s.board.Width(),
		Height:       s.board.Height(),
		Time:         s.clock.now,
		Phase:        s.phase,
		Next:         s.ctrl.Preview(PreviewSize),
		Missiles:     s.engine.Missiles(),
		Bullets:      s.engine.Bullets(),
		Combo:        s.combo.Count(),
		ComboPending: s.combo.ResetPending(),
		Stats:        s.stats,
	}
	s.board.Cells(func(col, row int, blk board.Block) {
		snap.Cells = append(snap.Cells, Cell{
			Col:            col,
			Row:            row,
			Color:          blk.Color,
			HP:             blk.HP,
			MaxHP:          blk.MaxHP,
			Kind:           blk.Kind,
			Indestructible: blk.Indestructible,
		})
	})
	if p, ok := s.ctrl.Active(); ok {
		ghost, _ := s.ctrl.GhostRow()
		ap := &ActivePiece{
			Type:     p.Type,
			Rotation: p.Rotation,
			GhostRow: ghost,
			GhostDY:  ghost - p.Row,
		}
		p.Cells(func(col, row int, kind board.Kind) {
			ap.Cells = append(ap.Cells, Cell{Col: col, Row: row, Color: p.Color, Kind: kind})
		})
		snap.Active = ap
	}
	return snap
}

// Summary is the persisted record of a finished (or abandoned) session
type Summary struct {
	Stage         string  `json:"stage"`
	Loadout       string  `json:"loadout"`
	Outcome       Phase   `json:"outcome"`
	Duration      float64 `json:"duration"`
	Lines         int     `json:"lines"`
	Pieces        int     `json:"pieces"`
	MaxCombo      int     `json:"max_combo"`
	DamageDealt   float64 `json:"damage_dealt"`
	DamageTaken   float64 `json:"damage_taken"`
	MissilesFired int     `json:"missiles_fired"`
	Intercepts    int     `json:"intercepts"`
	CounterFires  int     `json:"counter_fires"`
	Overflows     int     `json:"overflows"`
}

// Summary reports the session totals
func (s *Simulation) Summary() Summary {
	return Summary{
		Stage:         s.cfg.Stage.Name,
		Loadout:       s.cfg.Loadout.String(),
		Outcome:       s.phase,
		Duration:      s.clock.now,
		Lines:         s.lines,
		Pieces:        s.ctrl.Locks(),
		MaxCombo:      s.combo.Max(),
		DamageDealt:   s.damageDealt,
		DamageTaken:   s.damageTaken,
		MissilesFired: s.engine.MissilesFired(),
		Intercepts:    s.engine.Intercepts(),
		CounterFires:  s.engine.CounterFires(),
		Overflows:     s.overflows,
	}
}
