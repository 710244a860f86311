package main

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"stackfire/internal/sim"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 4096
	sendBufSize       = 256
	maxMessagesPerSec = 50
	maxNameLen        = 16
	maxSessionNameLen = 30
	profileRecentRuns = 10
)

// binaryMarker prefixes queued binary frames so WritePump can tell them from text
const binaryMarker = 0xFF

// msgBudget caps inbound messages per one-second window
type msgBudget struct {
	count   int
	resetAt time.Time
}

func (b *msgBudget) spend(now time.Time) bool {
	if now.After(b.resetAt) {
		b.count, b.resetAt = 0, now.Add(time.Second)
	}
	b.count++
	return b.count <= maxMessagesPerSec
}

// Client is one websocket peer: a pilot, a spectator or a phone controller
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	log        *zap.Logger
	remoteAddr string
	budget     msgBudget

	sessionID    string
	memberID     string // pilot id when acting as a controller
	isController bool

	authID   int64  // 0 = guest
	authName string // "" = guest
}

// NewClient wraps an upgraded connection
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufSize),
		log:        hub.log.With(zap.String("remote", remoteAddr)),
		remoteAddr: remoteAddr,
	}
}

// ReadPump dispatches inbound frames until the connection fails or floods
func (c *Client) ReadPump() {
	defer func() {
		c.hub.TrackDisconnect(c.remoteAddr)
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("ws read error", zap.Error(err))
			}
			return
		}
		if !c.budget.spend(time.Now()) {
			c.log.Warn("message budget exceeded, disconnecting")
			return
		}
		switch {
		case kind == websocket.BinaryMessage && len(frame) == 2 && frame[0] == binInput:
			c.handleBinaryInput(frame[1])
		case kind == websocket.TextMessage:
			c.dispatch(frame)
		}
	}
}

// WritePump drains the send queue and keeps the connection alive with pings
func (c *Client) WritePump() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			kind, payload := websocket.TextMessage, msg
			if len(msg) > 0 && msg[0] == binaryMarker {
				kind, payload = websocket.BinaryMessage, msg[1:]
			}
			if err := c.conn.WriteMessage(kind, payload); err != nil {
				return
			}
		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendJSON queues a JSON text message
func (c *Client) SendJSON(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error("marshal error", zap.Error(err))
		return
	}
	c.sendRaw(data)
}

// SendBinary queues pre-encoded bytes as a binary WebSocket message
func (c *Client) SendBinary(data []byte) {
	c.sendRaw(append([]byte{binaryMarker}, data...))
}

func (c *Client) sendRaw(data []byte) {
	// the hub closes send on unregister; a late broadcast must not panic
	defer func() { recover() }()
	select {
	case c.send <- data:
	default:
		// slow reader: drop the frame, the next one supersedes it
	}
}

func (c *Client) sendError(msg string) {
	c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: msg}})
}

// decode unmarshals a message body, reporting false on malformed input
func decode[T any](data json.RawMessage) (T, bool) {
	var v T
	return v, json.Unmarshal(data, &v) == nil
}

type handlerFunc func(c *Client, data json.RawMessage)

func noBody(f func(*Client)) handlerFunc {
	return func(c *Client, _ json.RawMessage) { f(c) }
}

// withAccounts rejects account messages when the server runs without a database
func withAccounts(f handlerFunc) handlerFunc {
	return func(c *Client, data json.RawMessage) {
		if c.hub.auth == nil {
			c.sendError("accounts disabled")
			return
		}
		f(c, data)
	}
}

var handlers = map[string]handlerFunc{
	MsgList:     noBody((*Client).handleList),
	MsgCreate:   (*Client).handleCreate,
	MsgJoin:     (*Client).handleJoin,
	MsgLeave:    noBody((*Client).detach),
	MsgInput:    (*Client).handleInput,
	MsgCheck:    (*Client).handleCheck,
	MsgControl:  (*Client).handleControl,
	MsgRematch:  noBody((*Client).handleRematch),
	MsgRegister: withAccounts((*Client).handleRegister),
	MsgLogin:    withAccounts((*Client).handleLogin),
	MsgAuth:     withAccounts((*Client).handleAuth),
	MsgProfile:  noBody((*Client).handleProfile),
}

func (c *Client) dispatch(raw []byte) {
	env, ok := decode[InEnvelope](raw)
	if !ok {
		c.log.Debug("malformed envelope")
		return
	}
	if h, ok := handlers[env.T]; ok {
		h(c, env.D)
	}
}

func (c *Client) handleList() {
	loadouts := make([]string, len(sim.Loadouts))
	for i, def := range sim.Loadouts {
		loadouts[i] = def.Name
	}
	c.SendJSON(Envelope{T: MsgSessions, Data: SessionsMsg{
		Sessions: c.hub.sessions.ListSessions(),
		Stages:   c.hub.sessions.Stages(),
		Loadouts: loadouts,
	}})
}

func (c *Client) handleCreate(data json.RawMessage) {
	msg, ok := decode[CreateMsg](data)
	if !ok {
		return
	}
	loadout, ok := sim.ParseLoadout(msg.Loadout)
	if !ok {
		loadout = sim.LoadoutGunner
	}
	sname := truncate(msg.SessionName, maxSessionNameLen, "Proving Ground")

	sess, err := c.hub.sessions.CreateSession(sname, msg.Stage, loadout)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	c.SendJSON(Envelope{T: MsgCreated, Data: map[string]string{"sid": sess.ID}})
}

func (c *Client) handleJoin(data json.RawMessage) {
	msg, ok := decode[JoinMsg](data)
	if !ok {
		return
	}
	name := truncate(msg.Name, maxNameLen, "Pilot")
	if c.authName != "" && msg.Name == "" {
		name = c.authName
	}

	sess := c.hub.sessions.GetSession(msg.SessionID)
	if sess == nil {
		c.sendError("session not found")
		return
	}
	c.detach()

	m, role, err := sess.Game.AddMember(name, c.authID, c, msg.Spectate)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	c.hub.sessions.MarkActive(sess.ID)
	c.memberID = m.ID
	c.sessionID = sess.ID

	cfg := sess.Game.Config()
	c.SendJSON(Envelope{T: MsgJoined, Data: map[string]string{"sid": sess.ID}})
	c.SendJSON(Envelope{T: MsgWelcome, Data: WelcomeMsg{
		ID:      m.ID,
		Role:    role,
		Stage:   cfg.Stage.Name,
		Loadout: cfg.Loadout.String(),
		Width:   cfg.Width,
		Height:  cfg.Height,
	}})
}

// detach leaves the current session, as a member or as a controller
func (c *Client) detach() {
	if c.sessionID == "" {
		return
	}
	if c.isController {
		if sess := c.hub.sessions.GetSession(c.sessionID); sess != nil {
			sess.Game.RemoveController(c)
		}
	} else {
		c.hub.sessions.RemoveMember(c.sessionID, c.memberID)
	}
	c.sessionID = ""
	c.memberID = ""
	c.isController = false
}

func (c *Client) command(cmd sim.Command) {
	if c.sessionID == "" || c.memberID == "" {
		return
	}
	sess := c.hub.sessions.GetSession(c.sessionID)
	if sess == nil {
		return
	}
	sess.Game.HandleCommand(c.memberID, cmd)
}

// handleBinaryInput decodes a compact [binInput, command] message
func (c *Client) handleBinaryInput(b byte) {
	cmd := sim.Command(b)
	if cmd > sim.CmdRotateCCW {
		return
	}
	c.command(cmd)
}

func (c *Client) handleInput(data json.RawMessage) {
	msg, ok := decode[InputMsg](data)
	if !ok {
		return
	}
	cmd, ok := sim.ParseCommand(msg.Cmd)
	if !ok {
		return
	}
	c.command(cmd)
}

func (c *Client) handleCheck(data json.RawMessage) {
	msg, ok := decode[CheckMsg](data)
	if !ok {
		return
	}
	sess := c.hub.sessions.GetSession(msg.SID)
	if sess == nil {
		c.SendJSON(Envelope{T: MsgChecked, Data: CheckedMsg{SID: msg.SID, Exists: false}})
		return
	}
	info := sess.Game.Info()
	c.SendJSON(Envelope{T: MsgChecked, Data: CheckedMsg{
		SID:      msg.SID,
		Exists:   true,
		Name:     sess.Name,
		Stage:    info.Stage,
		HasPilot: info.Pilot != "",
	}})
}

func (c *Client) handleControl(data json.RawMessage) {
	msg, ok := decode[ControlMsg](data)
	if !ok {
		return
	}
	sess := c.hub.sessions.GetSession(msg.SID)
	if sess == nil {
		c.sendError("session not found")
		return
	}
	c.detach()
	if !sess.Game.SetController(msg.PlayerID, c) {
		c.sendError("pilot not found")
		return
	}
	c.sessionID = msg.SID
	c.memberID = msg.PlayerID
	c.isController = true
	c.SendJSON(Envelope{T: MsgControlOK, Data: map[string]string{"pid": msg.PlayerID}})
}

func (c *Client) handleRematch() {
	if c.sessionID == "" || c.isController {
		return
	}
	sess := c.hub.sessions.GetSession(c.sessionID)
	if sess == nil {
		return
	}
	if err := sess.Game.Rematch(c.memberID); err != nil {
		c.log.Error("rematch failed", zap.Error(err))
		c.sendError("rematch failed")
	}
}

func (c *Client) authenticated(id int64, username, token, evt string) {
	if c.hub.IsOnline(id) {
		c.log.Info("account signed in on another connection", zap.Int64("account", id))
	}
	c.authID = id
	c.authName = username
	c.hub.SetOnline(id, c)
	c.hub.analytics.Track(evt, id, c.sessionID, "")
	c.SendJSON(Envelope{T: MsgAuthOK, Data: AuthOKMsg{
		Token:    token,
		Username: username,
		PlayerID: id,
	}})
}

func (c *Client) handleRegister(data json.RawMessage) {
	msg, ok := decode[RegisterMsg](data)
	if !ok {
		return
	}
	id, token, err := c.hub.auth.Register(msg.Username, msg.Password)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	c.authenticated(id, truncate(msg.Username, maxUsernameLen, ""), token, EvtRegister)
}

func (c *Client) handleLogin(data json.RawMessage) {
	msg, ok := decode[LoginMsg](data)
	if !ok {
		return
	}
	id, token, err := c.hub.auth.Login(msg.Username, msg.Password, c.remoteAddr)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	c.authenticated(id, truncate(msg.Username, maxUsernameLen, ""), token, EvtLogin)
}

func (c *Client) handleAuth(data json.RawMessage) {
	msg, ok := decode[AuthMsg](data)
	if !ok {
		return
	}
	id, username, err := c.hub.auth.ValidateToken(msg.Token)
	if err != nil {
		c.sendError(ErrInvalidToken.Error())
		return
	}
	c.authenticated(id, username, msg.Token, EvtLogin)
}

func (c *Client) handleProfile() {
	if c.hub.db == nil || c.authID == 0 {
		c.sendError("not authenticated")
		return
	}
	stats, err := c.hub.db.GetStats(c.authID)
	if err == nil && stats == nil {
		err = errors.New("no stats row")
	}
	if err != nil {
		c.log.Warn("profile lookup failed", zap.Int64("account", c.authID), zap.Error(err))
		c.sendError("profile not found")
		return
	}
	achievements, err := c.hub.db.GetAchievements(c.authID)
	if err != nil {
		c.log.Warn("achievement lookup failed", zap.Int64("account", c.authID), zap.Error(err))
	}
	if achievements == nil {
		achievements = []string{}
	}
	recent, err := c.hub.db.RecentRuns(c.authID, profileRecentRuns)
	if err != nil {
		c.log.Warn("recent runs lookup failed", zap.Int64("account", c.authID), zap.Error(err))
	}
	if recent == nil {
		recent = []RunRow{}
	}
	c.SendJSON(Envelope{T: MsgProfileData, Data: ProfileDataMsg{
		Username:     c.authName,
		Level:        stats.Level,
		XP:           stats.XP,
		Runs:         stats.Runs,
		Clears:       stats.Clears,
		Lines:        stats.Lines,
		BestCombo:    stats.BestCombo,
		Damage:       stats.Damage,
		Playtime:     stats.Playtime,
		Achievements: achievements,
		Recent:       recent,
	}})
}
