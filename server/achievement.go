package main

import "stackfire/internal/sim"

// AchievementDef describes one unlockable
type AchievementDef struct {
	ID          string
	Name        string
	Description string
}

var Achievements = []AchievementDef{
	{"first_clear", "First Clear", "Defeat an enemy"},
	{"line_cutter", "Line Cutter", "Clear 100 lines in total"},
	{"demolisher", "Demolisher", "Clear 1000 lines in total"},
	{"chain_reaction", "Chain Reaction", "Reach a combo of 5 in a single run"},
	{"untouchable", "Untouchable", "Defeat an enemy without taking damage"},
	{"flak", "Flak Screen", "Intercept 25 bullets in a single run"},
	{"riposte", "Riposte", "Counter-fire 5 times in a single run"},
	{"victor", "Victor", "Defeat 10 enemies"},
	{"veteran", "Veteran", "Reach level 10"},
	{"elite", "Elite", "Reach level 25"},
	{"marathon", "Marathon", "Play for 1 hour total"},
}

// achieved reports whether an achievement's condition holds after a run
func achieved(id string, stats *PilotStatsRow, run sim.Summary) bool {
	cleared := run.Outcome == sim.PhaseCleared
	switch id {
	case "first_clear":
		return stats.Clears >= 1
	case "line_cutter":
		return stats.Lines >= 100
	case "demolisher":
		return stats.Lines >= 1000
	case "chain_reaction":
		return run.MaxCombo >= 5
	case "untouchable":
		return cleared && run.DamageTaken == 0
	case "flak":
		return run.Intercepts >= 25
	case "riposte":
		return run.CounterFires >= 5
	case "victor":
		return stats.Clears >= 10
	case "veteran":
		return stats.Level >= 10
	case "elite":
		return stats.Level >= 25
	case "marathon":
		return stats.Playtime >= 3600
	}
	return false
}

// CheckAchievements unlocks whatever the run earned and returns the new ones
func CheckAchievements(db *DB, accountID int64, run sim.Summary) []AchievementDef {
	if db == nil || accountID == 0 {
		return nil
	}
	stats, err := db.GetStats(accountID)
	if err != nil || stats == nil {
		return nil
	}
	existing, err := db.GetAchievements(accountID)
	if err != nil {
		return nil
	}
	has := make(map[string]bool, len(existing))
	for _, a := range existing {
		has[a] = true
	}

	var unlocked []AchievementDef
	for _, def := range Achievements {
		if has[def.ID] || !achieved(def.ID, stats, run) {
			continue
		}
		if ok, err := db.UnlockAchievement(accountID, def.ID); err == nil && ok {
			unlocked = append(unlocked, def)
		}
	}
	return unlocked
}
