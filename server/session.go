package main

import (
	"errors"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"stackfire/internal/sim"
)

const maxSessions = 100

// SessionIdleTimeout is how long an empty session survives before it is reaped
var SessionIdleTimeout = 60 * time.Second

var ErrTooManySessions = errors.New("too many active sessions")

// Session represents a hosted simulation that clients can join
type Session struct {
	ID        string
	Name      string
	Game      *Game
	CreatedAt time.Time
}

// SessionManager handles creation, lookup and reaping of sessions
type SessionManager struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	lastActive map[string]time.Time

	stages    []sim.StageConfig
	recorder  RunRecorder
	analytics *Analytics
	log       *zap.Logger
}

// NewSessionManager creates a manager offering the given stages. The
// built-in stage is used when none are given.
func NewSessionManager(stages []sim.StageConfig, recorder RunRecorder, analytics *Analytics, log *zap.Logger) *SessionManager {
	if len(stages) == 0 {
		stages = []sim.StageConfig{sim.DefaultStage()}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionManager{
		sessions:   make(map[string]*Session),
		lastActive: make(map[string]time.Time),
		stages:     stages,
		recorder:   recorder,
		analytics:  analytics,
		log:        log,
	}
}

// Stage returns the named stage, or the first one offered
func (sm *SessionManager) Stage(name string) sim.StageConfig {
	for _, st := range sm.stages {
		if st.Name == name {
			return st
		}
	}
	return sm.stages[0]
}

// Stages lists the offered stage names
func (sm *SessionManager) Stages() []string {
	names := make([]string, len(sm.stages))
	for i, st := range sm.stages {
		names[i] = st.Name
	}
	return names
}

// CreateSession creates and starts a session
func (sm *SessionManager) CreateSession(name, stage string, loadout sim.Loadout) (*Session, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if len(sm.sessions) >= maxSessions {
		return nil, ErrTooManySessions
	}

	cfg := sim.DefaultConfig()
	cfg.Stage = sm.Stage(stage)
	cfg.Loadout = loadout
	cfg.Seed = time.Now().UnixNano()

	id := GenerateUUID()
	game, err := NewGame(id, cfg, sm.recorder, sm.log)
	if err != nil {
		return nil, err
	}
	sess := &Session{ID: id, Name: name, Game: game, CreatedAt: time.Now()}
	sm.sessions[id] = sess
	sm.lastActive[id] = time.Now()
	go game.Run()
	sm.scheduleReap(id)

	sm.analytics.Track(EvtSessionStart, 0, id, cfg.Stage.Name)
	sm.log.Info("session created",
		zap.String("session", id),
		zap.String("stage", cfg.Stage.Name),
		zap.Stringer("loadout", cfg.Loadout),
	)
	return sess, nil
}

// GetSession returns a session by ID
func (sm *SessionManager) GetSession(id string) *Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.sessions[id]
}

// MarkActive pushes back a session's idle deadline
func (sm *SessionManager) MarkActive(id string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if _, ok := sm.sessions[id]; ok {
		sm.lastActive[id] = time.Now()
	}
}

// RemoveMember removes a member and schedules reaping once the session is empty
func (sm *SessionManager) RemoveMember(sessionID, memberID string) {
	sess := sm.GetSession(sessionID)
	if sess == nil {
		return
	}
	sess.Game.RemoveMember(memberID)
	if sess.Game.MemberCount() == 0 {
		sm.MarkActive(sessionID)
		sm.scheduleReap(sessionID)
	}
}

func (sm *SessionManager) scheduleReap(id string) {
	timeout := SessionIdleTimeout
	time.AfterFunc(timeout, func() { sm.reapIfIdle(id, timeout) })
}

func (sm *SessionManager) reapIfIdle(id string, timeout time.Duration) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sess, ok := sm.sessions[id]
	if !ok || sess.Game.MemberCount() > 0 || time.Since(sm.lastActive[id]) < timeout {
		return
	}
	sess.Game.Stop()
	delete(sm.sessions, id)
	delete(sm.lastActive, id)
	sm.analytics.Track(EvtSessionEnd, 0, id, "")
	sm.log.Info("session reaped", zap.String("session", id))
}

// ListSessions returns info about all active sessions, oldest first
func (sm *SessionManager) ListSessions() []SessionInfo {
	sm.mu.RLock()
	all := make([]*Session, 0, len(sm.sessions))
	for _, sess := range sm.sessions {
		all = append(all, sess)
	}
	sm.mu.RUnlock()

	slices.SortFunc(all, func(a, b *Session) int { return a.CreatedAt.Compare(b.CreatedAt) })
	list := make([]SessionInfo, 0, len(all))
	for _, sess := range all {
		info := sess.Game.Info()
		info.Name = sess.Name
		list = append(list, info)
	}
	return list
}

// Count returns the number of live sessions
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// StopAll stops every session loop
func (sm *SessionManager) StopAll() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for id, sess := range sm.sessions {
		sess.Game.Stop()
		delete(sm.sessions, id)
		delete(sm.lastActive, id)
	}
}
