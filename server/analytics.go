package main

import (
	"database/sql"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"stackfire/internal/sim"
)

// Event types for analytics tracking
const (
	EvtSessionStart = "session_start"
	EvtSessionEnd   = "session_end"
	EvtRunStart     = "run_start"
	EvtRunEnd       = "run_end"
	EvtAchievement  = "achievement"
	EvtLevelUp      = "level_up"
	EvtLogin        = "login"
	EvtRegister     = "register"
)

const (
	analyticsBuffer     = 1024
	analyticsBatch      = 50
	analyticsFlushEvery = 5 * time.Second
)

const (
	queryDAU = `SELECT COUNT(DISTINCT account_id) FROM analytics_events
		WHERE account_id IS NOT NULL AND created_at >= date('now')`

	queryEventCounts = `SELECT event_type, COUNT(*) FROM analytics_events
		WHERE created_at >= date('now', '-' || ? || ' days')
		GROUP BY event_type`

	// run_end rows carry a sim.Summary as JSON
	queryStageStats = `SELECT json_extract(data, '$.stage') AS stage,
			COUNT(*),
			SUM(json_extract(data, '$.outcome') = 'cleared'),
			AVG(CAST(json_extract(data, '$.duration') AS REAL))
		FROM analytics_events
		WHERE event_type = ? AND json_valid(data) AND created_at >= date('now', '-' || ? || ' days')
		GROUP BY stage ORDER BY COUNT(*) DESC`
)

// AnalyticsEvent is one row of the analytics_events table
type AnalyticsEvent struct {
	Type      string
	AccountID int64
	SessionID string
	Data      string // optional JSON
	At        time.Time
}

// Analytics records gameplay events off the game loops and keeps live gauges
type Analytics struct {
	db     *DB
	log    *zap.Logger
	queue  chan AnalyticsEvent
	done   chan struct{}
	closed sync.Once
	wg     sync.WaitGroup

	peers    atomic.Int64
	sessions atomic.Int64
}

// NewAnalytics starts the background writer. A nil db keeps gauges only.
func NewAnalytics(db *DB, log *zap.Logger) *Analytics {
	if log == nil {
		log = zap.NewNop()
	}
	a := &Analytics{
		db:    db,
		log:   log,
		queue: make(chan AnalyticsEvent, analyticsBuffer),
		done:  make(chan struct{}),
	}
	a.wg.Add(1)
	go a.run()
	return a
}

// Track enqueues an event. It never blocks: a full queue drops the event.
func (a *Analytics) Track(evtType string, accountID int64, sessionID string, data string) {
	if a == nil {
		return
	}
	evt := AnalyticsEvent{Type: evtType, AccountID: accountID, SessionID: sessionID, Data: data, At: time.Now().UTC()}
	select {
	case a.queue <- evt:
	default:
		a.log.Debug("analytics queue full", zap.String("type", evtType))
	}
}

// TrackRun records a finished run with its summary as metadata
func (a *Analytics) TrackRun(accountID int64, sessionID string, s sim.Summary) {
	if a == nil {
		return
	}
	data, err := json.Marshal(s)
	if err != nil {
		a.log.Warn("encode run summary", zap.Error(err))
		return
	}
	a.Track(EvtRunEnd, accountID, sessionID, string(data))
}

// SetLive updates the connected-peer and active-session gauges
func (a *Analytics) SetLive(peers, sessions int) {
	if a == nil {
		return
	}
	a.peers.Store(int64(peers))
	a.sessions.Store(int64(sessions))
}

// Live returns connected peers and active sessions
func (a *Analytics) Live() (int, int) {
	if a == nil {
		return 0, 0
	}
	return int(a.peers.Load()), int(a.sessions.Load())
}

// Stop writes whatever is queued and ends the writer. Safe to call twice.
func (a *Analytics) Stop() {
	if a == nil {
		return
	}
	a.closed.Do(func() { close(a.done) })
	a.wg.Wait()
}

func (a *Analytics) run() {
	defer a.wg.Done()

	ticker := time.NewTicker(analyticsFlushEvery)
	defer ticker.Stop()

	batch := make([]AnalyticsEvent, 0, analyticsBatch)
	for {
		select {
		case evt := <-a.queue:
			if batch = append(batch, evt); len(batch) == analyticsBatch {
				batch = a.write(batch)
			}
		case <-ticker.C:
			batch = a.write(batch)
		case <-a.done:
			for {
				select {
				case evt := <-a.queue:
					batch = append(batch, evt)
				default:
					a.write(batch)
					return
				}
			}
		}
	}
}

// write inserts the batch with one multi-row statement and returns it emptied
func (a *Analytics) write(batch []AnalyticsEvent) []AnalyticsEvent {
	if a.db == nil || len(batch) == 0 {
		return batch[:0]
	}
	var sb strings.Builder
	sb.WriteString("INSERT INTO analytics_events (event_type, account_id, session_id, data, created_at) VALUES ")
	args := make([]interface{}, 0, len(batch)*5)
	for i, evt := range batch {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString("(?, ?, ?, ?, ?)")
		args = append(args,
			evt.Type,
			sql.NullInt64{Int64: evt.AccountID, Valid: evt.AccountID > 0},
			sql.NullString{String: evt.SessionID, Valid: evt.SessionID != ""},
			sql.NullString{String: evt.Data, Valid: evt.Data != ""},
			evt.At.Format(time.RFC3339),
		)
	}
	if _, err := a.db.conn.Exec(sb.String(), args...); err != nil {
		a.log.Warn("analytics batch dropped", zap.Int("events", len(batch)), zap.Error(err))
	}
	return batch[:0]
}

// DAUCount returns the number of distinct accounts seen today
func (a *Analytics) DAUCount() (int, error) {
	if a == nil || a.db == nil {
		return 0, nil
	}
	var n int
	err := a.db.conn.QueryRow(queryDAU).Scan(&n)
	return n, err
}

// EventCounts returns per-type event counts for the last N days
func (a *Analytics) EventCounts(days int) (map[string]int, error) {
	if a == nil || a.db == nil {
		return nil, nil
	}
	rows, err := a.db.conn.Query(queryEventCounts, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, err
		}
		counts[typ] = n
	}
	return counts, rows.Err()
}

// StageAnalytics aggregates finished runs per stage
type StageAnalytics struct {
	Stage       string  `json:"stage"`
	Runs        int     `json:"runs"`
	Clears      int     `json:"clears"`
	AvgDuration float64 `json:"avg_duration"`
}

// StageStats returns run counts per stage for the last N days, busiest first
func (a *Analytics) StageStats(days int) ([]StageAnalytics, error) {
	if a == nil || a.db == nil {
		return nil, nil
	}
	rows, err := a.db.conn.Query(queryStageStats, EvtRunEnd, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []StageAnalytics
	for rows.Next() {
		var s StageAnalytics
		var avg sql.NullFloat64
		if err := rows.Scan(&s.Stage, &s.Runs, &s.Clears, &avg); err != nil {
			return nil, err
		}
		s.AvgDuration = avg.Float64
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
