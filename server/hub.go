package main

import (
	"context"
	"sync"
	"time"

	"github.com/kamstrup/intmap"
	"go.uber.org/zap"

	"stackfire/internal/sim"
)

const (
	maxConnsPerIP = 5
	maxTotalConns = 1000
)

// HubConfig wires a Hub to its collaborators. Every field is optional.
type HubConfig struct {
	DB        *DB
	Analytics *Analytics
	Stages    []sim.StageConfig
	PublicURL string // base URL encoded into join QR codes
	Log       *zap.Logger
}

// Hub manages all connected clients and routes them to sessions
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	sessions   *SessionManager

	// connection limiting, accessed from HTTP handlers
	connMu     sync.Mutex
	ipConns    map[string]int
	totalConns int

	db        *DB
	auth      *Auth
	analytics *Analytics
	log       *zap.Logger
	publicURL string
	started   time.Time

	// authenticated account id -> client
	onlineMu sync.RWMutex
	online   *intmap.Map[int64, *Client]
}

// NewHub creates a Hub. Without a database accounts and run records are disabled.
func NewHub(cfg HubConfig) *Hub {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	var recorder RunRecorder
	var auth *Auth
	if cfg.DB != nil {
		recorder = NewRunRecorder(cfg.DB, cfg.Analytics, log)
		auth = NewAuth(cfg.DB, log)
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		sessions:   NewSessionManager(cfg.Stages, recorder, cfg.Analytics, log),
		ipConns:    make(map[string]int),
		db:         cfg.DB,
		auth:       auth,
		analytics:  cfg.Analytics,
		log:        log,
		publicURL:  cfg.PublicURL,
		started:    time.Now(),
		online:     intmap.New[int64, *Client](64),
	}
}

func (h *Hub) CanAccept(ip string) bool {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	if h.totalConns >= maxTotalConns {
		return false
	}
	return h.ipConns[ip] < maxConnsPerIP
}

func (h *Hub) TrackConnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]++
	h.totalConns++
}

func (h *Hub) TrackDisconnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]--
	if h.ipConns[ip] <= 0 {
		delete(h.ipConns, ip)
	}
	h.totalConns--
}

// Run processes register/unregister events until ctx is done, then stops
// every session
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.analytics.SetLive(n, h.sessions.Count())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			client.detach()
			if client.authID != 0 {
				h.SetOffline(client.authID, client)
			}
			h.analytics.SetLive(n, h.sessions.Count())

		case <-ctx.Done():
			h.sessions.StopAll()
			return nil
		}
	}
}

// SetOnline marks an authenticated account as online on client
func (h *Hub) SetOnline(accountID int64, client *Client) {
	h.onlineMu.Lock()
	defer h.onlineMu.Unlock()
	h.online.Put(accountID, client)
}

// SetOffline clears the account's online entry if it still points at client
func (h *Hub) SetOffline(accountID int64, client *Client) {
	h.onlineMu.Lock()
	defer h.onlineMu.Unlock()
	if c, ok := h.online.Get(accountID); ok && c == client {
		h.online.Del(accountID)
	}
}

// IsOnline checks if an account is connected
func (h *Hub) IsOnline(accountID int64) bool {
	h.onlineMu.RLock()
	defer h.onlineMu.RUnlock()
	_, ok := h.online.Get(accountID)
	return ok
}

// OnlineCount returns the number of connected accounts
func (h *Hub) OnlineCount() int {
	h.onlineMu.RLock()
	defer h.onlineMu.RUnlock()
	return h.online.Len()
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// TotalConns returns the tracked connection count
func (h *Hub) TotalConns() int {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	return h.totalConns
}
