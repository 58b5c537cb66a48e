package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/signage-core/internal/audit"
	"github.com/nerrad567/signage-core/internal/auth"
	"github.com/nerrad567/signage-core/internal/infrastructure/config"
	"github.com/nerrad567/signage-core/internal/infrastructure/database"
	"github.com/nerrad567/signage-core/internal/infrastructure/logging"
	"github.com/nerrad567/signage-core/internal/signage"
	_ "github.com/nerrad567/signage-core/migrations"
)

const testJWTSecret = "test-secret-key-at-least-32-characters-long"

type testEnv struct {
	srv     *Server
	service *signage.Service
	router  http.Handler
	audit   *audit.SQLiteRepository

	stopAudit func()
}

// testServer wires a Server to a migrated SQLite database. The hub is the
// service's event sink, as in production.
func testServer(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.Open(database.Config{Path: t.TempDir() + "/api.db", BusyTimeout: 5})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating: %v", err)
	}

	log := logging.NewWithWriter(config.LoggingConfig{Level: "error", Format: "text"}, "test", io.Discard)
	wsCfg := config.WebSocketConfig{Path: "/ws", MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}
	presence := auth.NewPresence(0)
	hub := NewHub(wsCfg, log, presence)

	svc := signage.NewService(signage.Deps{
		Store:  signage.NewSQLiteStore(db.DB),
		Events: hub,
		Logger: log,
	})
	auditRepo := audit.NewSQLiteRepository(db.DB)

	srv, err := New(Deps{
		Config:    config.APIConfig{Host: "127.0.0.1", Port: 0},
		WS:        wsCfg,
		Security:  config.SecurityConfig{JWT: config.JWTConfig{Secret: testJWTSecret, SessionTTL: 60}},
		Logger:    log,
		Service:   svc,
		Hub:       hub,
		AuditRepo: auditRepo,
		Presence:  presence,
		Version:   "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	auditCtx, stopAudit := context.WithCancel(context.Background())
	auditDone := make(chan struct{})
	go func() {
		defer close(auditDone)
		srv.drainAuditLog(auditCtx)
	}()

	env := &testEnv{
		srv:     srv,
		service: svc,
		router:  srv.Handler(),
		audit:   auditRepo,
		stopAudit: func() {
			stopAudit()
			<-auditDone
		},
	}
	t.Cleanup(func() {
		cancel()
		stopAudit()
		<-auditDone
		svc.Flush()
	})
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding %q: %v", w.Body.String(), err)
	}
	return v
}

func (e *testEnv) createDisplay(t *testing.T, clientID string) signage.Display {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/displays", `{"name":"Lobby","client_id":"`+clientID+`"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create display status = %d, body = %s", w.Code, w.Body.String())
	}
	return decode[signage.Display](t, w)
}

func (e *testEnv) createView(t *testing.T, displayID string) signage.View {
	t.Helper()
	body := `{"name":"Main","columns":4,"rows":3,"display_id":"` + displayID + `","screen_type":"landscape"}`
	w := e.do(t, http.MethodPost, "/api/v1/views", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create view status = %d, body = %s", w.Code, w.Body.String())
	}
	return decode[signage.View](t, w)
}

func TestHealth(t *testing.T) {
	env := testServer(t)
	env.srv.health = map[string]HealthChecker{"database": healthFunc(func(context.Context) error { return nil })}

	w := env.do(t, http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := decode[map[string]any](t, w)
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("body = %v", body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestHealth_Degraded(t *testing.T) {
	env := testServer(t)
	env.srv.health = map[string]HealthChecker{
		"mqtt": healthFunc(func(context.Context) error { return errors.New("not connected") }),
	}

	w := env.do(t, http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	body := decode[map[string]any](t, w)
	components := body["components"].(map[string]any)
	if components["mqtt"] != "not connected" {
		t.Errorf("components = %v", components)
	}
}

type healthFunc func(context.Context) error

func (f healthFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

func TestRequestID(t *testing.T) {
	env := testServer(t)

	w := env.do(t, http.MethodGet, "/api/v1/health", "")
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID not generated")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-id-1")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "client-id-1" {
		t.Errorf("X-Request-ID = %q, want client-id-1", got)
	}
}

func TestNotFoundRoute(t *testing.T) {
	env := testServer(t)
	if w := env.do(t, http.MethodGet, "/api/v1/nope", ""); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestDisplayCRUD(t *testing.T) {
	env := testServer(t)

	d := env.createDisplay(t, "lobby-1")
	if !d.Active {
		t.Error("new display should default to active")
	}

	w := env.do(t, http.MethodGet, "/api/v1/displays/"+d.ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}

	w = env.do(t, http.MethodPatch, "/api/v1/displays/"+d.ID, `{"name":"Front Lobby","active":false}`)
	if w.Code != http.StatusOK {
		t.Fatalf("patch status = %d, body = %s", w.Code, w.Body.String())
	}
	updated := decode[signage.Display](t, w)
	if updated.Name != "Front Lobby" || updated.Active {
		t.Errorf("updated = %+v", updated)
	}

	w = env.do(t, http.MethodGet, "/api/v1/displays", "")
	list := decode[struct {
		Displays []signage.Display `json:"displays"`
		Count    int               `json:"count"`
	}](t, w)
	if list.Count != 1 || len(list.Displays) != 1 {
		t.Errorf("list = %+v", list)
	}

	if w = env.do(t, http.MethodDelete, "/api/v1/displays/"+d.ID, ""); w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	if w = env.do(t, http.MethodGet, "/api/v1/displays/"+d.ID, ""); w.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", w.Code)
	}
}

func TestCreateDisplay_Errors(t *testing.T) {
	env := testServer(t)
	env.createDisplay(t, "dup")

	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"malformed json", `{"name":`, ErrCodeBadRequest},
		{"missing name", `{"client_id":"x"}`, ErrCodeValidation},
		{"duplicate client id", `{"name":"Other","client_id":"dup"}`, ErrCodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/v1/displays", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			if got := decode[Error](t, w); got.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

func TestViewCRUD(t *testing.T) {
	env := testServer(t)
	d := env.createDisplay(t, "lobby-1")

	first := env.createView(t, d.ID)
	second := env.createView(t, d.ID)
	if first.Position != 1 || second.Position != 2 {
		t.Errorf("positions = %d, %d, want 1, 2", first.Position, second.Position)
	}

	w := env.do(t, http.MethodPatch, "/api/v1/views/"+first.ID, `{"name":"Renamed"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("patch status = %d, body = %s", w.Code, w.Body.String())
	}
	v := decode[signage.View](t, w)
	if v.Name != "Renamed" || v.Columns != 4 || v.Rows != 3 {
		t.Errorf("patched view = %+v", v)
	}

	w = env.do(t, http.MethodGet, "/api/v1/displays/"+d.ID+"/views", "")
	views := decode[struct {
		Count int `json:"count"`
	}](t, w)
	if views.Count != 2 {
		t.Errorf("display views count = %d, want 2", views.Count)
	}

	if w = env.do(t, http.MethodDelete, "/api/v1/views/"+first.ID, ""); w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	if w = env.do(t, http.MethodGet, "/api/v1/views/"+first.ID, ""); w.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", w.Code)
	}
}

func TestCreateView_UnknownDisplay(t *testing.T) {
	env := testServer(t)
	body := `{"name":"Main","columns":4,"rows":3,"display_id":"missing","screen_type":"landscape"}`
	if w := env.do(t, http.MethodPost, "/api/v1/views", body); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestDisplayViews_UnknownDisplay(t *testing.T) {
	env := testServer(t)
	if w := env.do(t, http.MethodGet, "/api/v1/displays/missing/views", ""); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestReconcileSlots(t *testing.T) {
	env := testServer(t)
	d := env.createDisplay(t, "lobby-1")
	v := env.createView(t, d.ID)
	path := "/api/v1/views/" + v.ID + "/slots"

	body := `[
		{"component_type":"clock","column_start":1,"row_start":1,"column_end":2,"row_end":2,
		 "options":{"format":"24h","showSeconds":true}},
		{"component_type":"weather","column_start":2,"row_start":1,"column_end":5,"row_end":4}
	]`
	w := env.do(t, http.MethodPut, path, body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	res := decode[reconcileSlotsResponse](t, w)
	if res.Stats.SlotsCreated != 2 || res.Stats.OptionsCreated != 2 {
		t.Errorf("stats = %+v", res.Stats)
	}
	if len(res.Slots) != 2 {
		t.Fatalf("slots = %d, want 2", len(res.Slots))
	}

	var clock signage.SlotWithOptions
	for _, s := range res.Slots {
		if s.ComponentType == "clock" {
			clock = s
		}
	}
	if got := clock.Options["format"]; got.Str() != "24h" {
		t.Errorf("format option = %v", got)
	}

	// Keep only the clock and change one option.
	body = `[{"id":"` + clock.ID + `","component_type":"clock","column_start":1,"row_start":1,"column_end":2,"row_end":2,
		"options":{"format":"12h"}}]`
	w = env.do(t, http.MethodPut, path, body)
	if w.Code != http.StatusOK {
		t.Fatalf("second reconcile status = %d, body = %s", w.Code, w.Body.String())
	}
	res = decode[reconcileSlotsResponse](t, w)
	want := signage.ReconcileStats{SlotsDeleted: 1, OptionsUpdated: 1, OptionsDeleted: 1}
	if res.Stats != want {
		t.Errorf("stats = %+v, want %+v", res.Stats, want)
	}

	w = env.do(t, http.MethodGet, path, "")
	list := decode[struct {
		Count int `json:"count"`
	}](t, w)
	if list.Count != 1 {
		t.Errorf("slot count = %d, want 1", list.Count)
	}
}

func TestReconcileSlots_Errors(t *testing.T) {
	env := testServer(t)
	d := env.createDisplay(t, "lobby-1")
	v := env.createView(t, d.ID)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"unknown view", "/api/v1/views/missing/slots", `[]`, http.StatusNotFound},
		{"unknown slot id", "/api/v1/views/" + v.ID + "/slots",
			`[{"id":"sl-nope","component_type":"clock","column_start":1,"row_start":1,"column_end":2,"row_end":2}]`,
			http.StatusNotFound},
		{"nested option value", "/api/v1/views/" + v.ID + "/slots",
			`[{"component_type":"clock","column_start":1,"row_start":1,"column_end":2,"row_end":2,"options":{"a":{"b":1}}}]`,
			http.StatusBadRequest},
		{"not an array", "/api/v1/views/" + v.ID + "/slots", `{"slots":[]}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := env.do(t, http.MethodPut, tt.path, tt.body); w.Code != tt.status {
				t.Errorf("status = %d, want %d, body = %s", w.Code, tt.status, w.Body.String())
			}
		})
	}
}

func TestSlotOptions(t *testing.T) {
	env := testServer(t)
	d := env.createDisplay(t, "lobby-1")
	v := env.createView(t, d.ID)

	w := env.do(t, http.MethodPut, "/api/v1/views/"+v.ID+"/slots",
		`[{"component_type":"ticker","column_start":1,"row_start":1,"column_end":5,"row_end":2,"options":{"speed":3}}]`)
	slot := decode[reconcileSlotsResponse](t, w).Slots[0]
	path := "/api/v1/slots/" + slot.ID + "/options"

	w = env.do(t, http.MethodPut, path, `{"speed":5,"text":"Welcome","loop":null}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	opts := decode[map[string]any](t, w)
	if opts["speed"] != float64(5) || opts["text"] != "Welcome" {
		t.Errorf("options = %v", opts)
	}
	if v, ok := opts["loop"]; !ok || v != nil {
		t.Errorf("loop = %v, %v, want explicit null", v, ok)
	}

	w = env.do(t, http.MethodGet, path, "")
	if got := decode[map[string]any](t, w); len(got) != 3 {
		t.Errorf("GET options = %v", got)
	}

	if w = env.do(t, http.MethodPut, path, `{"bad":[1,2]}`); w.Code != http.StatusBadRequest {
		t.Errorf("array option status = %d, want 400", w.Code)
	}
	if w = env.do(t, http.MethodPut, "/api/v1/slots/missing/options", `{}`); w.Code != http.StatusNotFound {
		t.Errorf("unknown slot status = %d, want 404", w.Code)
	}
}

func TestDisplaySession(t *testing.T) {
	env := testServer(t)
	d := env.createDisplay(t, "lobby-1")

	w := env.do(t, http.MethodPost, "/api/v1/auth/display", `{"client_id":"lobby-1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	session := decode[auth.Session](t, w)
	claims, err := auth.ParseDisplayToken(session.Token, testJWTSecret)
	if err != nil {
		t.Fatalf("ParseDisplayToken: %v", err)
	}
	if claims.DisplayID() != d.ID {
		t.Errorf("token display = %q, want %q", claims.DisplayID(), d.ID)
	}

	if w = env.do(t, http.MethodPost, "/api/v1/auth/display", `{"client_id":"unknown"}`); w.Code != http.StatusUnauthorized {
		t.Errorf("unknown client status = %d, want 401", w.Code)
	}
	if w = env.do(t, http.MethodPost, "/api/v1/auth/display", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("empty client status = %d, want 400", w.Code)
	}

	env.do(t, http.MethodPatch, "/api/v1/displays/"+d.ID, `{"active":false}`)
	if w = env.do(t, http.MethodPost, "/api/v1/auth/display", `{"client_id":"lobby-1"}`); w.Code != http.StatusForbidden {
		t.Errorf("inactive display status = %d, want 403", w.Code)
	}
}

func TestDisplayPresence(t *testing.T) {
	env := testServer(t)
	d := env.createDisplay(t, "lobby-1")

	w := env.do(t, http.MethodGet, "/api/v1/displays/"+d.ID+"/presence", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if st := decode[auth.PresenceStatus](t, w); st.Online {
		t.Error("display without connections reported online")
	}

	env.srv.presence.Heartbeat(d.ID)
	w = env.do(t, http.MethodGet, "/api/v1/displays/"+d.ID+"/presence", "")
	if st := decode[auth.PresenceStatus](t, w); !st.Online {
		t.Error("display with a fresh heartbeat reported offline")
	}

	if w = env.do(t, http.MethodGet, "/api/v1/displays/missing/presence", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown display status = %d, want 404", w.Code)
	}
}

func TestAuditLog(t *testing.T) {
	env := testServer(t)
	d := env.createDisplay(t, "lobby-1")
	v := env.createView(t, d.ID)
	env.do(t, http.MethodPut, "/api/v1/views/"+v.ID+"/slots", `[]`)

	env.stopAudit()

	w := env.do(t, http.MethodGet, "/api/v1/audit?entity_type=view", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	res := decode[audit.ListResult](t, w)
	if res.Total != 2 {
		t.Fatalf("view entries = %d, want 2", res.Total)
	}
	if res.Entries[0].Action != audit.ActionReconcile {
		t.Errorf("newest action = %q, want reconcile", res.Entries[0].Action)
	}

	if w = env.do(t, http.MethodGet, "/api/v1/audit?limit=abc", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", w.Code)
	}
}

func TestCORS_Preflight(t *testing.T) {
	env := testServer(t)
	env.srv.cfg.CORS.AllowedOrigins = []string{"http://admin.local"}
	router := env.srv.Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/displays", nil)
	req.Header.Set("Origin", "http://admin.local")
	req.Header.Set("Access-Control-Request-Method", "PUT")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://admin.local" {
		t.Errorf("Allow-Origin = %q", got)
	}
}

// --- WebSocket ---

func dialDisplay(t *testing.T, env *testEnv, ts *httptest.Server, clientID string) *websocket.Conn {
	t.Helper()

	resp, err := http.Post(ts.URL+"/api/v1/auth/display", "application/json",
		strings.NewReader(`{"client_id":"`+clientID+`"}`))
	if err != nil {
		t.Fatalf("session request: %v", err)
	}
	defer resp.Body.Close()
	var session auth.Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		t.Fatalf("decoding session: %v", err)
	}

	before := env.srv.hub.ClientCount()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws?token=" + session.Token
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { ws.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for env.srv.hub.ClientCount() <= before {
		if time.Now().After(deadline) {
			t.Fatal("client never registered with hub")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return ws
}

// readEvent returns the next event message, skipping responses.
func readEvent(ws *websocket.Conn, timeout time.Duration) (WSMessage, error) {
	ws.SetReadDeadline(time.Now().Add(timeout)) //nolint:errcheck
	for {
		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			return msg, err
		}
		if msg.Type == WSTypeEvent {
			return msg, nil
		}
	}
}

func TestWebSocket_ViewsChangedGoesToOwningDisplay(t *testing.T) {
	env := testServer(t)
	ts := httptest.NewServer(env.router)
	defer ts.Close()

	lobby := env.createDisplay(t, "lobby-1")
	env.createDisplay(t, "cafe-1")
	v := env.createView(t, lobby.ID)

	lobbyWS := dialDisplay(t, env, ts, "lobby-1")
	cafeWS := dialDisplay(t, env, ts, "cafe-1")

	w := env.do(t, http.MethodPut, "/api/v1/views/"+v.ID+"/slots",
		`[{"component_type":"clock","column_start":1,"row_start":1,"column_end":2,"row_end":2}]`)
	if w.Code != http.StatusOK {
		t.Fatalf("reconcile status = %d", w.Code)
	}

	msg, err := readEvent(lobbyWS, 2*time.Second)
	if err != nil {
		t.Fatalf("lobby read: %v", err)
	}
	if msg.EventType != string(signage.EventViewsChanged) {
		t.Errorf("event = %q, want views.changed", msg.EventType)
	}
	payload, _ := msg.Payload.(map[string]any)
	if payload["id"] != lobby.ID {
		t.Errorf("payload display = %v, want %s", payload["id"], lobby.ID)
	}

	if msg, err := readEvent(cafeWS, 200*time.Millisecond); err == nil {
		t.Errorf("other display received %+v", msg)
	}
}

func TestWebSocket_SubscribeToDisplayEvents(t *testing.T) {
	env := testServer(t)
	ts := httptest.NewServer(env.router)
	defer ts.Close()

	d := env.createDisplay(t, "lobby-1")
	ws := dialDisplay(t, env, ts, "lobby-1")

	if err := ws.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: []string{"display.updated"}},
	}); err != nil {
		t.Fatalf("write: %v", err)
	}
	ws.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	var resp WSMessage
	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read response: %v", err)
	}
	if resp.Type != WSTypeResponse || resp.ID != "sub-1" {
		t.Fatalf("response = %+v", resp)
	}

	env.do(t, http.MethodPatch, "/api/v1/displays/"+d.ID, `{"name":"Renamed"}`)

	msg, err := readEvent(ws, 2*time.Second)
	if err != nil {
		t.Fatalf("read event: %v", err)
	}
	if msg.EventType != string(signage.EventDisplayUpdated) {
		t.Errorf("event = %q, want display.updated", msg.EventType)
	}
}

func TestWebSocket_Protocol(t *testing.T) {
	env := testServer(t)
	ts := httptest.NewServer(env.router)
	defer ts.Close()

	env.createDisplay(t, "lobby-1")
	ws := dialDisplay(t, env, ts, "lobby-1")

	tests := []struct {
		name     string
		send     string
		wantType string
	}{
		{"ping", `{"type":"ping","id":"p1"}`, WSTypePong},
		{"invalid json", `not json`, WSTypeError},
		{"unknown type", `{"type":"shout","id":"x"}`, WSTypeError},
		{"unknown channel", `{"type":"subscribe","id":"s","payload":{"channels":["device.state"]}}`, WSTypeError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ws.WriteMessage(websocket.TextMessage, []byte(tt.send)); err != nil {
				t.Fatalf("write: %v", err)
			}
			ws.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
			var msg WSMessage
			if err := ws.ReadJSON(&msg); err != nil {
				t.Fatalf("read: %v", err)
			}
			if msg.Type != tt.wantType {
				t.Errorf("type = %q, want %q", msg.Type, tt.wantType)
			}
		})
	}
}

func TestWebSocket_Auth(t *testing.T) {
	env := testServer(t)
	ts := httptest.NewServer(env.router)
	defer ts.Close()
	base := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"

	tests := []struct {
		name   string
		query  string
		status int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"garbage token", "?token=abc", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(base+tt.query, nil)
			if err == nil {
				t.Fatal("dial succeeded, want failure")
			}
			if resp == nil || resp.StatusCode != tt.status {
				t.Errorf("resp = %v, want status %d", resp, tt.status)
			}
		})
	}
}

func TestWebSocket_DeleteDisplayDisconnects(t *testing.T) {
	env := testServer(t)
	ts := httptest.NewServer(env.router)
	defer ts.Close()

	d := env.createDisplay(t, "lobby-1")
	dialDisplay(t, env, ts, "lobby-1")

	if w := env.do(t, http.MethodDelete, "/api/v1/displays/"+d.ID, ""); w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}

	deadline := time.Now().Add(2 * time.Second)
	for env.srv.hub.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client count = %d after delete, want 0", env.srv.hub.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_PublishWithoutDisplayPayload(t *testing.T) {
	env := testServer(t)
	err := env.srv.hub.Publish(context.Background(), signage.EventViewsChanged, map[string]string{"id": "x"})
	if err == nil {
		t.Error("Publish() accepted views.changed without a display payload")
	}
}

func TestServer_StartAndClose(t *testing.T) {
	env := testServer(t)
	if err := env.srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start should fail")
	}

	env.srv.cfg.Port = 18089
	if err := env.srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := env.srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() after Start = %v", err)
	}
	if err := env.srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
