package main

import (
	"go.uber.org/zap"

	"stackfire/internal/sim"
)

//go:generate mockgen -source=recorder.go -destination=mocks/mock_recorder.go -package=mocks

// RunRecorder persists finished runs. It returns the account's XP and level
// after the run and the ids of achievements the run unlocked.
type RunRecorder interface {
	RecordRun(accountID int64, sessionID string, run sim.Summary) (xp, level int, unlocked []string, err error)
}

// dbRecorder stores runs in sqlite and reports them to analytics
type dbRecorder struct {
	db        *DB
	analytics *Analytics
	log       *zap.Logger
}

// NewRunRecorder returns a recorder backed by db
func NewRunRecorder(db *DB, analytics *Analytics, log *zap.Logger) RunRecorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &dbRecorder{db: db, analytics: analytics, log: log}
}

func (r *dbRecorder) RecordRun(accountID int64, sessionID string, run sim.Summary) (int, int, []string, error) {
	prevLevel := 0
	if accountID > 0 {
		if st, err := r.db.GetStats(accountID); err == nil && st != nil {
			prevLevel = st.Level
		}
	}

	xp, level, err := r.db.RecordRun(accountID, run)
	if err != nil {
		return 0, 0, nil, err
	}
	r.analytics.TrackRun(accountID, sessionID, run)
	if accountID == 0 {
		return 0, 0, nil, nil
	}
	if prevLevel > 0 && level > prevLevel {
		r.analytics.Track(EvtLevelUp, accountID, sessionID, "")
	}

	var ids []string
	for _, a := range CheckAchievements(r.db, accountID, run) {
		ids = append(ids, a.ID)
		r.analytics.Track(EvtAchievement, accountID, sessionID, a.ID)
		r.log.Info("achievement unlocked", zap.Int64("account", accountID), zap.String("achievement", a.ID))
	}
	return xp, level, ids, nil
}
