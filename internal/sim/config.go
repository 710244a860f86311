package sim

import "stackfire/internal/board"

// Config tunes one simulation session
type Config struct {
	Width, Height int
	Seed          int64 // same seed and inputs replay the same session
	Loadout       Loadout
	Stage         StageConfig
}

// DefaultConfig returns a 10x20 session on the built-in stage
func DefaultConfig() Config {
	return Config{
		Width:   board.DefaultWidth,
		Height:  board.DefaultHeight,
		Seed:    1,
		Loadout: LoadoutGunner,
		Stage:   DefaultStage(),
	}
}
