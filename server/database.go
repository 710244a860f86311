package main

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"stackfire/internal/sim"
)

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
	log  *zap.Logger
}

// AccountRow represents an account record
type AccountRow struct {
	ID        int64
	Username  string
	PassHash  string
	CreatedAt time.Time
}

// PilotStatsRow aggregates every recorded run of an account
type PilotStatsRow struct {
	AccountID int64
	Runs      int
	Clears    int
	Lines     int
	BestCombo int
	Damage    float64
	Playtime  float64 // seconds
	XP        int
	Level     int
}

// RunRow is one recorded run
type RunRow struct {
	ID          int64     `json:"id"`
	AccountID   int64     `json:"-"`
	Stage       string    `json:"stage"`
	Loadout     string    `json:"loadout"`
	Outcome     string    `json:"outcome"`
	Duration    float64   `json:"duration"`
	Lines       int       `json:"lines"`
	MaxCombo    int       `json:"max_combo"`
	DamageDealt float64   `json:"damage"`
	XPEarned    int       `json:"xp"`
	CreatedAt   time.Time `json:"at"`
}

// OpenDB opens (or creates) the SQLite database
func OpenDB(path string, log *zap.Logger) (*DB, error) {
	if log == nil {
		log = zap.NewNop()
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// a single connection keeps :memory: databases shared across queries
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	db := &DB{conn: conn, log: log}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates tables if they don't exist
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		pass_hash TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS pilot_stats (
		account_id INTEGER PRIMARY KEY REFERENCES accounts(id),
		runs INTEGER NOT NULL DEFAULT 0,
		clears INTEGER NOT NULL DEFAULT 0,
		lines INTEGER NOT NULL DEFAULT 0,
		best_combo INTEGER NOT NULL DEFAULT 0,
		damage REAL NOT NULL DEFAULT 0,
		playtime REAL NOT NULL DEFAULT 0,
		xp INTEGER NOT NULL DEFAULT 0,
		level INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		account_id INTEGER REFERENCES accounts(id),
		stage TEXT NOT NULL,
		loadout TEXT NOT NULL,
		outcome TEXT NOT NULL,
		duration REAL NOT NULL DEFAULT 0,
		lines INTEGER NOT NULL DEFAULT 0,
		max_combo INTEGER NOT NULL DEFAULT 0,
		damage_dealt REAL NOT NULL DEFAULT 0,
		damage_taken REAL NOT NULL DEFAULT 0,
		xp_earned INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS achievements (
		account_id INTEGER NOT NULL REFERENCES accounts(id),
		achievement TEXT NOT NULL,
		unlocked_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (account_id, achievement)
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS analytics_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_type TEXT NOT NULL,
		account_id INTEGER,
		session_id TEXT,
		data TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_account ON runs(account_id);
	CREATE INDEX IF NOT EXISTS idx_runs_stage ON runs(stage);
	CREATE INDEX IF NOT EXISTS idx_events_type ON analytics_events(event_type, created_at);
	`
	if _, err := db.conn.Exec(schema); err != nil {
		db.log.Error("db migration failed", zap.Error(err))
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// CreateAccount creates an account and its stats row
func (db *DB) CreateAccount(username, passHash string) (int64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec("INSERT INTO accounts (username, pass_hash) VALUES (?, ?)", username, passHash)
	if err != nil {
		return 0, fmt.Errorf("insert account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if _, err := tx.Exec("INSERT INTO pilot_stats (account_id) VALUES (?)", id); err != nil {
		return 0, fmt.Errorf("insert stats: %w", err)
	}
	return id, tx.Commit()
}

// GetAccountByUsername returns nil, nil when no such account exists
func (db *DB) GetAccountByUsername(username string) (*AccountRow, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, pass_hash, created_at FROM accounts WHERE username = ?",
		username,
	)
	a := &AccountRow{}
	err := row.Scan(&a.ID, &a.Username, &a.PassHash, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

// UsernameExists checks if a username is taken
func (db *DB) UsernameExists(username string) (bool, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM accounts WHERE username = ?", username).Scan(&count)
	return count > 0, err
}

// GetStats returns nil, nil for unknown accounts
func (db *DB) GetStats(accountID int64) (*PilotStatsRow, error) {
	row := db.conn.QueryRow(`
		SELECT account_id, runs, clears, lines, best_combo, damage, playtime, xp, level
		FROM pilot_stats WHERE account_id = ?`,
		accountID,
	)
	s := &PilotStatsRow{}
	err := row.Scan(&s.AccountID, &s.Runs, &s.Clears, &s.Lines, &s.BestCombo, &s.Damage, &s.Playtime, &s.XP, &s.Level)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// XPForLevel returns the total XP required to reach a given level.
// Formula: sum of 100 * i^1.5 for i in 1..level-1
func XPForLevel(level int) int {
	if level <= 1 {
		return 0
	}
	total := 0.0
	for i := 1; i < level; i++ {
		total += 100.0 * math.Pow(float64(i), 1.5)
	}
	return int(total)
}

// CalculateLevel returns the level for a given total XP amount, capped at 100
func CalculateLevel(totalXP int) int {
	level := 1
	for level < 100 && totalXP >= XPForLevel(level+1) {
		level++
	}
	return level
}

// RunXP is the experience a run is worth
func RunXP(s sim.Summary) int {
	xp := s.Lines*10 + int(s.DamageDealt/10) + s.MaxCombo*5
	if s.Outcome == sim.PhaseCleared {
		xp += 100
	}
	return xp
}

// RecordRun stores a run and folds it into the account's stats when
// accountID is set. Returns the account's new total XP and level.
func (db *DB) RecordRun(accountID int64, s sim.Summary) (int, int, error) {
	xp := RunXP(s)
	acct := sql.NullInt64{Int64: accountID, Valid: accountID > 0}

	tx, err := db.conn.Begin()
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs (account_id, stage, loadout, outcome, duration, lines, max_combo, damage_dealt, damage_taken, xp_earned)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		acct, s.Stage, s.Loadout, outcomeName(s.Outcome), s.Duration, s.Lines, s.MaxCombo, s.DamageDealt, s.DamageTaken, xp,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("insert run: %w", err)
	}
	if !acct.Valid {
		return 0, 0, tx.Commit()
	}

	cleared := 0
	if s.Outcome == sim.PhaseCleared {
		cleared = 1
	}
	_, err = tx.Exec(`
		UPDATE pilot_stats SET
			runs = runs + 1,
			clears = clears + ?,
			lines = lines + ?,
			best_combo = MAX(best_combo, ?),
			damage = damage + ?,
			playtime = playtime + ?,
			xp = xp + ?
		WHERE account_id = ?`,
		cleared, s.Lines, s.MaxCombo, s.DamageDealt, s.Duration, xp, accountID,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("update stats: %w", err)
	}

	var totalXP int
	if err := tx.QueryRow("SELECT xp FROM pilot_stats WHERE account_id = ?", accountID).Scan(&totalXP); err != nil {
		return 0, 0, err
	}
	level := CalculateLevel(totalXP)
	if _, err := tx.Exec("UPDATE pilot_stats SET level = ? WHERE account_id = ?", level, accountID); err != nil {
		return 0, 0, err
	}
	return totalXP, level, tx.Commit()
}

// RecentRuns returns an account's latest runs, newest first
func (db *DB) RecentRuns(accountID int64, limit int) ([]RunRow, error) {
	rows, err := db.conn.Query(`
		SELECT id, account_id, stage, loadout, outcome, duration, lines, max_combo, damage_dealt, xp_earned, created_at
		FROM runs WHERE account_id = ?
		ORDER BY id DESC LIMIT ?`,
		accountID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []RunRow
	for rows.Next() {
		var r RunRow
		if err := rows.Scan(&r.ID, &r.AccountID, &r.Stage, &r.Loadout, &r.Outcome, &r.Duration,
			&r.Lines, &r.MaxCombo, &r.DamageDealt, &r.XPEarned, &r.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// LeaderboardEntry represents one row in the leaderboard
type LeaderboardEntry struct {
	Rank      int     `json:"rank"`
	Username  string  `json:"username"`
	Level     int     `json:"level"`
	XP        int     `json:"xp"`
	Clears    int     `json:"clears"`
	Lines     int     `json:"lines"`
	BestCombo int     `json:"best_combo"`
	Damage    float64 `json:"damage"`
}

var leaderboardCols = map[string]string{
	"xp":     "s.xp",
	"level":  "s.level",
	"clears": "s.clears",
	"lines":  "s.lines",
	"combo":  "s.best_combo",
	"damage": "s.damage",
}

// GetLeaderboard returns top pilots sorted by a whitelisted column
func (db *DB) GetLeaderboard(orderBy string, limit int) ([]LeaderboardEntry, error) {
	col, ok := leaderboardCols[orderBy]
	if !ok {
		col = "s.xp"
	}

	query := `SELECT a.username, s.level, s.xp, s.clears, s.lines, s.best_combo, s.damage
		FROM pilot_stats s JOIN accounts a ON a.id = s.account_id
		WHERE s.runs > 0
		ORDER BY ` + col + ` DESC, a.id ASC LIMIT ?`

	rows, err := db.conn.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []LeaderboardEntry{}
	rank := 1
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.Username, &e.Level, &e.XP, &e.Clears, &e.Lines, &e.BestCombo, &e.Damage); err != nil {
			return nil, err
		}
		e.Rank = rank
		rank++
		result = append(result, e)
	}
	return result, rows.Err()
}

// GetAchievements lists the achievement ids an account holds
func (db *DB) GetAchievements(accountID int64) ([]string, error) {
	rows, err := db.conn.Query(
		"SELECT achievement FROM achievements WHERE account_id = ? ORDER BY unlocked_at, achievement",
		accountID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UnlockAchievement reports whether the achievement was newly granted
func (db *DB) UnlockAchievement(accountID int64, id string) (bool, error) {
	res, err := db.conn.Exec(
		"INSERT OR IGNORE INTO achievements (account_id, achievement) VALUES (?, ?)",
		accountID, id,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// GetSetting returns "" for missing keys
func (db *DB) GetSetting(key string) string {
	var v string
	if err := db.conn.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&v); err != nil {
		return ""
	}
	return v
}

// SetSetting upserts a setting
func (db *DB) SetSetting(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}
