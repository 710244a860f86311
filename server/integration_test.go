package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"stackfire/internal/sim"
)

// ---------- helpers ----------

var uuidRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

type testServer struct {
	srv   *httptest.Server
	hub   *Hub
	db    *DB
	wsURL string
}

// startTestServer spins up an httptest.Server with a Hub backed by a temp
// database. Sessions start playing immediately and idle out quickly.
func startTestServer(t *testing.T) *testServer {
	t.Helper()

	prevIdle, prevCountdown, prevCost := SessionIdleTimeout, CountdownDuration, bcryptCost
	SessionIdleTimeout = 150 * time.Millisecond
	CountdownDuration = 0
	bcryptCost = bcrypt.MinCost

	tmpDir := t.TempDir()
	clientDir := filepath.Join(tmpDir, "client")
	os.MkdirAll(filepath.Join(clientDir, "js"), 0o755)
	os.WriteFile(filepath.Join(clientDir, "index.html"), []byte("<html>test</html>"), 0o644)
	os.WriteFile(filepath.Join(clientDir, "js", "main.js"), []byte("// test"), 0o644)

	log := zaptest.NewLogger(t)
	db, err := OpenDB(filepath.Join(tmpDir, "test.db"), log)
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	analytics := NewAnalytics(db, log)

	hub := NewHub(HubConfig{
		DB:        db,
		Analytics: analytics,
		Stages:    []sim.StageConfig{sim.DefaultStage()},
		PublicURL: "https://play.example",
		Log:       log,
	})
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(SetupRoutes(hub, clientDir))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		analytics.Stop()
		db.Close()
		SessionIdleTimeout, CountdownDuration, bcryptCost = prevIdle, prevCountdown, prevCost
	})
	return &testServer{
		srv:   srv,
		hub:   hub,
		db:    db,
		wsURL: "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
	}
}

// dialWS opens a WebSocket connection to the test server.
func dialWS(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial WS: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readEnvelope reads one message. Binary frames come back as MsgState
// envelopes carrying a decoded StateFrame.
func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read WS: %v", err)
	}
	if msgType == websocket.BinaryMessage {
		var f StateFrame
		if err := msgpack.Unmarshal(raw, &f); err != nil {
			t.Fatalf("msgpack unmarshal: %v", err)
		}
		return Envelope{T: MsgState, Data: f}
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return env
}

// readUntil skips messages until one of type msgType arrives
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) Envelope {
	t.Helper()
	for i := 0; i < 500; i++ {
		env := readEnvelope(t, conn)
		if env.T == msgType {
			return env
		}
	}
	t.Fatalf("no %s message received", msgType)
	return Envelope{}
}

// sendMsg sends a typed message over the WebSocket.
func sendMsg(t *testing.T, conn *websocket.Conn, msgType string, data interface{}) {
	t.Helper()
	raw, _ := json.Marshal(Envelope{T: msgType, Data: data})
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("write WS: %v", err)
	}
}

// dataMap extracts the Data field as map[string]interface{}.
func dataMap(t *testing.T, env Envelope) map[string]interface{} {
	t.Helper()
	raw, _ := json.Marshal(env.Data)
	var m map[string]interface{}
	json.Unmarshal(raw, &m)
	return m
}

// createSession creates a session and returns its ID
func createSession(t *testing.T, conn *websocket.Conn, sname string) string {
	t.Helper()
	sendMsg(t, conn, MsgCreate, map[string]string{"sname": sname, "loadout": "duelist"})
	created := readUntil(t, conn, MsgCreated)
	return dataMap(t, created)["sid"].(string)
}

// joinSession joins and returns the welcome payload
func joinSession(t *testing.T, conn *websocket.Conn, name, sid string, spectate bool) map[string]interface{} {
	t.Helper()
	sendMsg(t, conn, MsgJoin, map[string]interface{}{"name": name, "sid": sid, "spectate": spectate})
	readUntil(t, conn, MsgJoined)
	return dataMap(t, readUntil(t, conn, MsgWelcome))
}

// waitFrame reads state frames until ok accepts one
func waitFrame(t *testing.T, conn *websocket.Conn, ok func(StateFrame) bool) StateFrame {
	t.Helper()
	for i := 0; i < 500; i++ {
		env := readEnvelope(t, conn)
		if env.T != MsgState {
			continue
		}
		if f := env.Data.(StateFrame); ok(f) {
			return f
		}
	}
	t.Fatal("no matching state frame")
	return StateFrame{}
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, body
}

// ---------- UUIDs ----------

func TestGenerateUUIDFormat(t *testing.T) {
	for i := 0; i < 20; i++ {
		id := GenerateUUID()
		if !uuidRegex.MatchString(id) {
			t.Errorf("GenerateUUID() = %q, does not match UUID v4 format", id)
		}
		if !IsUUID(id) {
			t.Errorf("IsUUID(%q) = false", id)
		}
	}
	for _, bad := range []string{"", "abc", "js/main.js", "123e4567e89b12d3a456426614174000"} {
		if IsUUID(bad) {
			t.Errorf("IsUUID(%q) = true", bad)
		}
	}
}

func TestGenerateUUIDUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateUUID()
		if seen[id] {
			t.Fatalf("duplicate UUID generated: %s", id)
		}
		seen[id] = true
	}
}

func TestGenerateIDLength(t *testing.T) {
	for _, n := range []int{2, 4, 8} {
		if got := len(GenerateID(n)); got != n*2 {
			t.Errorf("GenerateID(%d) has length %d, want %d", n, got, n*2)
		}
	}
}

// ---------- session manager ----------

func TestSessionManagerCreateAndGet(t *testing.T) {
	sm := NewSessionManager(nil, nil, nil, zaptest.NewLogger(t))
	defer sm.StopAll()

	sess, err := sm.CreateSession("Arena", "no-such-stage", sim.LoadoutBomber)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if !uuidRegex.MatchString(sess.ID) {
		t.Errorf("session ID %q is not a valid UUID v4", sess.ID)
	}
	if sm.GetSession(sess.ID) != sess {
		t.Error("GetSession did not return the created session")
	}
	if sm.GetSession("missing") != nil {
		t.Error("expected nil for unknown session")
	}
	cfg := sess.Game.Config()
	if cfg.Stage.Name != "training" || cfg.Loadout != sim.LoadoutBomber {
		t.Errorf("unexpected config stage=%q loadout=%v", cfg.Stage.Name, cfg.Loadout)
	}
	if got := sm.Stages(); len(got) != 1 || got[0] != "training" {
		t.Errorf("unexpected stages %v", got)
	}
}

func TestSessionManagerListSessions(t *testing.T) {
	sm := NewSessionManager(nil, nil, nil, nil)
	defer sm.StopAll()
	a, _ := sm.CreateSession("First", "", sim.LoadoutGunner)
	time.Sleep(time.Millisecond)
	b, _ := sm.CreateSession("Second", "", sim.LoadoutGunner)

	list := sm.ListSessions()
	if len(list) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(list))
	}
	if list[0].ID != a.ID || list[1].ID != b.ID {
		t.Error("sessions should be listed oldest first")
	}
	if list[0].Name != "First" || list[0].Phase != "waiting" {
		t.Errorf("unexpected info %+v", list[0])
	}
}

func TestSessionManagerReapsIdleSession(t *testing.T) {
	prev := SessionIdleTimeout
	SessionIdleTimeout = 20 * time.Millisecond
	defer func() { SessionIdleTimeout = prev }()

	sm := NewSessionManager(nil, nil, nil, nil)
	defer sm.StopAll()
	sess, _ := sm.CreateSession("Arena", "", sim.LoadoutGunner)
	m, _, _ := sess.Game.AddMember("ace", 0, &mockBroadcaster{}, false)

	time.Sleep(SessionIdleTimeout + 30*time.Millisecond)
	if sm.GetSession(sess.ID) == nil {
		t.Fatal("occupied session was reaped")
	}

	sm.RemoveMember(sess.ID, m.ID)
	time.Sleep(SessionIdleTimeout + 30*time.Millisecond)
	if sm.GetSession(sess.ID) != nil {
		t.Error("empty session should be reaped after the idle timeout")
	}
}

// ---------- HTTP ----------

func TestSPARouting(t *testing.T) {
	ts := startTestServer(t)

	tests := []struct {
		path string
		want string
		code int
	}{
		{"/", "<html>test</html>", http.StatusOK},
		{"/" + GenerateUUID(), "<html>test</html>", http.StatusOK},
		{"/js/main.js", "// test", http.StatusOK},
		{"/not-a-session", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		resp, body := httpGet(t, ts.srv.URL+tt.path)
		if resp.StatusCode != tt.code {
			t.Errorf("GET %s: status %d, want %d", tt.path, resp.StatusCode, tt.code)
		}
		if tt.want != "" && string(body) != tt.want {
			t.Errorf("GET %s: body %q, want %q", tt.path, body, tt.want)
		}
		// http.FileServer drops Cache-Control on its error responses
		if cc := resp.Header.Get("Cache-Control"); tt.code == http.StatusOK && cc != "no-cache" {
			t.Errorf("GET %s: Cache-Control %q", tt.path, cc)
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := startTestServer(t)
	resp, body := httpGet(t, ts.srv.URL+"/api/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(body, &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m["status"] != "ok" {
		t.Errorf("unexpected health %v", m)
	}
}

func TestQREndpoint(t *testing.T) {
	ts := startTestServer(t)
	sess, err := ts.hub.sessions.CreateSession("Arena", "", sim.LoadoutGunner)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	resp, body := httpGet(t, ts.srv.URL+"/qr/"+sess.ID)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type %q", ct)
	}
	if !bytes.HasPrefix(body, []byte("\x89PNG")) {
		t.Error("body is not a PNG")
	}

	resp, _ = httpGet(t, ts.srv.URL+"/qr/"+GenerateUUID())
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown session: status %d, want 404", resp.StatusCode)
	}
}

func TestJoinURL(t *testing.T) {
	h := NewHub(HubConfig{PublicURL: "https://play.example/"})
	r := httptest.NewRequest(http.MethodGet, "/qr/x", nil)
	if got := h.joinURL(r, "abc"); got != "https://play.example/abc" {
		t.Errorf("joinURL = %q", got)
	}
	h = NewHub(HubConfig{})
	r.Host = "localhost:8080"
	if got := h.joinURL(r, "abc"); got != "http://localhost:8080/abc" {
		t.Errorf("joinURL = %q", got)
	}
}

func TestLeaderboardEndpoint(t *testing.T) {
	ts := startTestServer(t)
	a, _ := ts.db.CreateAccount("alpha", "x")
	b, _ := ts.db.CreateAccount("bravo", "x")
	ts.db.CreateAccount("idle", "x")
	ts.db.RecordRun(a, sim.Summary{Stage: "training", Lines: 3, MaxCombo: 1, Outcome: sim.PhaseLost})
	ts.db.RecordRun(b, sim.Summary{Stage: "training", Lines: 10, MaxCombo: 6, Outcome: sim.PhaseCleared})

	resp, body := httpGet(t, ts.srv.URL+"/api/leaderboard?sort=combo&limit=5")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var entries []LeaderboardEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries (idle accounts excluded), got %d", len(entries))
	}
	if entries[0].Username != "bravo" || entries[0].Rank != 1 || entries[0].BestCombo != 6 {
		t.Errorf("unexpected leader %+v", entries[0])
	}
}

// ---------- websocket flows ----------

func TestCheckSession(t *testing.T) {
	ts := startTestServer(t)
	conn := dialWS(t, ts.wsURL)
	sid := createSession(t, conn, "Check Arena")

	sendMsg(t, conn, MsgCheck, map[string]string{"sid": sid})
	m := dataMap(t, readUntil(t, conn, MsgChecked))
	if m["exists"] != true || m["name"] != "Check Arena" || m["stage"] != "training" {
		t.Errorf("unexpected check result %v", m)
	}

	sendMsg(t, conn, MsgCheck, map[string]string{"sid": GenerateUUID()})
	m = dataMap(t, readUntil(t, conn, MsgChecked))
	if m["exists"] != false {
		t.Errorf("expected exists=false, got %v", m)
	}
}

func TestJoinAsPilotThenSpectator(t *testing.T) {
	ts := startTestServer(t)
	pilot := dialWS(t, ts.wsURL)
	sid := createSession(t, pilot, "Arena")

	w := joinSession(t, pilot, "ace", sid, false)
	if w["role"] != RolePilot || w["loadout"] != "duelist" || w["w"] != float64(10) {
		t.Errorf("unexpected pilot welcome %v", w)
	}

	watcher := dialWS(t, ts.wsURL)
	w = joinSession(t, watcher, "fan", sid, false)
	if w["role"] != RoleSpectator {
		t.Errorf("second joiner should spectate, got %v", w["role"])
	}
}

func TestJoinNonExistentSession(t *testing.T) {
	ts := startTestServer(t)
	conn := dialWS(t, ts.wsURL)
	sendMsg(t, conn, MsgJoin, map[string]string{"name": "x", "sid": GenerateUUID()})
	env := readUntil(t, conn, MsgError)
	if dataMap(t, env)["msg"] != "session not found" {
		t.Errorf("unexpected error %v", env.Data)
	}
}

func TestListSessions(t *testing.T) {
	ts := startTestServer(t)
	conn := dialWS(t, ts.wsURL)
	createSession(t, conn, "Listed")

	sendMsg(t, conn, MsgList, nil)
	m := dataMap(t, readUntil(t, conn, MsgSessions))
	sessions, _ := m["sessions"].([]interface{})
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %v", m["sessions"])
	}
	if name := sessions[0].(map[string]interface{})["name"]; name != "Listed" {
		t.Errorf("unexpected session name %v", name)
	}
	loadouts, _ := m["loadouts"].([]interface{})
	if len(loadouts) != len(sim.Loadouts) {
		t.Errorf("expected %d loadouts, got %v", len(sim.Loadouts), m["loadouts"])
	}
}

func TestStateBroadcasts(t *testing.T) {
	ts := startTestServer(t)
	conn := dialWS(t, ts.wsURL)
	sid := createSession(t, conn, "Arena")
	joinSession(t, conn, "ace", sid, false)

	f := waitFrame(t, conn, func(f StateFrame) bool { return f.Phase == "playing" })
	if f.Width != 10 || f.Height != 20 || f.Active == nil {
		t.Errorf("unexpected frame %+v", f)
	}
}

func TestInputHandling(t *testing.T) {
	ts := startTestServer(t)
	conn := dialWS(t, ts.wsURL)
	sid := createSession(t, conn, "Arena")
	joinSession(t, conn, "ace", sid, false)
	waitFrame(t, conn, func(f StateFrame) bool { return f.Phase == "playing" })

	sendMsg(t, conn, MsgInput, map[string]string{"cmd": "hard_drop"})
	f := waitFrame(t, conn, func(f StateFrame) bool { return len(f.Cells) > 0 })
	if len(f.Cells) != 4 {
		t.Errorf("expected 4 locked cells, got %d", len(f.Cells))
	}
}

func TestBinaryInputHandling(t *testing.T) {
	ts := startTestServer(t)
	conn := dialWS(t, ts.wsURL)
	sid := createSession(t, conn, "Arena")
	joinSession(t, conn, "ace", sid, false)
	waitFrame(t, conn, func(f StateFrame) bool { return f.Phase == "playing" })

	if err := conn.WriteMessage(websocket.BinaryMessage, []byte{binInput, byte(sim.CmdHardDrop)}); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitFrame(t, conn, func(f StateFrame) bool { return len(f.Cells) == 4 })
}

func TestInputBeforeJoin(t *testing.T) {
	ts := startTestServer(t)
	conn := dialWS(t, ts.wsURL)
	sendMsg(t, conn, MsgInput, map[string]string{"cmd": "left"})
	sendMsg(t, conn, MsgList, nil)
	if env := readEnvelope(t, conn); env.T != MsgSessions {
		t.Errorf("connection should survive stray input, got %s", env.T)
	}
}

func TestControllerAttach(t *testing.T) {
	ts := startTestServer(t)
	pilot := dialWS(t, ts.wsURL)
	sid := createSession(t, pilot, "Arena")
	pid := joinSession(t, pilot, "ace", sid, false)["id"].(string)

	phone := dialWS(t, ts.wsURL)
	sendMsg(t, phone, MsgControl, map[string]string{"sid": sid, "pid": "bogus"})
	readUntil(t, phone, MsgError)

	sendMsg(t, phone, MsgControl, map[string]string{"sid": sid, "pid": pid})
	if m := dataMap(t, readUntil(t, phone, MsgControlOK)); m["pid"] != pid {
		t.Errorf("unexpected control_ok %v", m)
	}
	readUntil(t, pilot, MsgCtrlOn)

	sendMsg(t, phone, MsgInput, map[string]string{"cmd": "hard_drop"})
	waitFrame(t, pilot, func(f StateFrame) bool { return len(f.Cells) == 4 })
}

func TestCreateAndLeaveSession(t *testing.T) {
	ts := startTestServer(t)
	conn := dialWS(t, ts.wsURL)
	sid := createSession(t, conn, "Brief")
	joinSession(t, conn, "ace", sid, false)

	sendMsg(t, conn, MsgLeave, nil)
	time.Sleep(SessionIdleTimeout + 100*time.Millisecond)

	sendMsg(t, conn, MsgCheck, map[string]string{"sid": sid})
	if m := dataMap(t, readUntil(t, conn, MsgChecked)); m["exists"] != false {
		t.Errorf("session should be reaped after everyone left, got %v", m)
	}
}

func TestDisconnectCleansUpSession(t *testing.T) {
	ts := startTestServer(t)
	conn := dialWS(t, ts.wsURL)
	sid := createSession(t, conn, "Brief")
	joinSession(t, conn, "ace", sid, false)
	conn.Close()

	time.Sleep(SessionIdleTimeout + 150*time.Millisecond)
	if ts.hub.sessions.GetSession(sid) != nil {
		t.Error("session should be reaped after the pilot disconnected")
	}
	if ts.hub.ClientCount() != 0 || ts.hub.TotalConns() != 0 {
		t.Errorf("expected no clients, got %d clients / %d conns", ts.hub.ClientCount(), ts.hub.TotalConns())
	}
}

func TestRegisterLoginProfile(t *testing.T) {
	ts := startTestServer(t)
	conn := dialWS(t, ts.wsURL)

	sendMsg(t, conn, MsgRegister, map[string]string{"username": "ace", "password": "hunter2"})
	ok := dataMap(t, readUntil(t, conn, MsgAuthOK))
	token, _ := ok["token"].(string)
	if token == "" || ok["username"] != "ace" {
		t.Fatalf("unexpected auth_ok %v", ok)
	}
	id := int64(ok["pid"].(float64))
	time.Sleep(20 * time.Millisecond)
	if !ts.hub.IsOnline(id) || ts.hub.OnlineCount() != 1 {
		t.Error("registered account should be online")
	}

	sendMsg(t, conn, MsgRegister, map[string]string{"username": "ace", "password": "hunter2"})
	if m := dataMap(t, readUntil(t, conn, MsgError)); m["msg"] != ErrUsernameTaken.Error() {
		t.Errorf("unexpected duplicate error %v", m)
	}

	sendMsg(t, conn, MsgProfile, nil)
	p := dataMap(t, readUntil(t, conn, MsgProfileData))
	if p["username"] != "ace" || p["level"] != float64(1) || p["runs"] != float64(0) {
		t.Errorf("unexpected profile %v", p)
	}

	other := dialWS(t, ts.wsURL)
	sendMsg(t, other, MsgAuth, map[string]string{"token": token})
	if m := dataMap(t, readUntil(t, other, MsgAuthOK)); m["username"] != "ace" {
		t.Errorf("token resume failed: %v", m)
	}

	sendMsg(t, other, MsgLogin, map[string]string{"username": "ace", "password": "wrong"})
	if m := dataMap(t, readUntil(t, other, MsgError)); m["msg"] != ErrInvalidCredentials.Error() {
		t.Errorf("unexpected login error %v", m)
	}
	sendMsg(t, other, MsgLogin, map[string]string{"username": "ace", "password": "hunter2"})
	readUntil(t, other, MsgAuthOK)
}

func TestProfileRequiresAuth(t *testing.T) {
	ts := startTestServer(t)
	conn := dialWS(t, ts.wsURL)
	sendMsg(t, conn, MsgProfile, nil)
	if m := dataMap(t, readUntil(t, conn, MsgError)); m["msg"] != "not authenticated" {
		t.Errorf("unexpected error %v", m)
	}
}

func TestHubConnectionLimits(t *testing.T) {
	h := NewHub(HubConfig{})
	for i := 0; i < maxConnsPerIP; i++ {
		if !h.CanAccept("1.2.3.4") {
			t.Fatalf("connection %d rejected", i)
		}
		h.TrackConnect("1.2.3.4")
	}
	if h.CanAccept("1.2.3.4") {
		t.Error("per-IP limit not enforced")
	}
	if !h.CanAccept("5.6.7.8") {
		t.Error("other IPs should still connect")
	}
	h.TrackDisconnect("1.2.3.4")
	if !h.CanAccept("1.2.3.4") || h.TotalConns() != maxConnsPerIP-1 {
		t.Error("disconnect not tracked")
	}
}
