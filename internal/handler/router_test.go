package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"originchats/internal/app/channel"
	"originchats/internal/app/chat"
	"originchats/internal/app/message"
	"originchats/internal/app/store"
	"originchats/internal/app/user"
	"originchats/internal/configs"
	"originchats/internal/pkg/auth"
)

const testSecret = "router-test-secret"

func newTestRouter(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()

	backend, err := store.NewFile(t.TempDir())
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	users := user.NewDirectory(backend, nil)
	if err := users.EnsureDefaults(ctx); err != nil {
		t.Fatalf("EnsureDefaults: %v", err)
	}
	channels := channel.NewRegistry(backend)
	if err := channels.EnsureDefault(ctx); err != nil {
		t.Fatalf("EnsureDefault: %v", err)
	}

	cfg := &configs.AppConfig{
		Environment:   "development",
		ServerName:    "Router Test",
		ServerVersion: "1.1.0",
		ConnectRate:   100,
		ConnectBurst:  100,
	}
	srv := chat.NewServer(chat.Deps{
		Users:     users,
		Channels:  channels,
		Messages:  message.NewStore(backend),
		Validator: auth.NewJWTValidator(testSecret),
	}, chat.Options{ServerName: cfg.ServerName, Version: cfg.ServerVersion})

	ts := httptest.NewServer(Router(&AppDeps{Server: srv, Config: cfg}))
	t.Cleanup(func() {
		srv.Shutdown()
		ts.Close()
	})
	return ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		t.Fatalf("SetReadDeadline: %v", err)
	}
	var frame map[string]any
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	return frame
}

func TestHealth(t *testing.T) {
	ts := newTestRouter(t)

	res, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
	var body struct {
		Code int            `json:"code"`
		Data map[string]any `json:"data"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data["status"] != "ok" || body.Data["service"] != "Router Test" {
		t.Fatalf("health = %+v", body)
	}
}

func TestWebSocketSession(t *testing.T) {
	ts := newTestRouter(t)
	conn := dial(t, ts)

	handshake := readFrame(t, conn)
	if handshake["cmd"] != "handshake" {
		t.Fatalf("first frame = %v", handshake)
	}

	token, err := auth.GenerateToken(&auth.Payload{ID: "u-1", Username: "alice"}, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if err := conn.WriteJSON(map[string]any{"cmd": "auth", "validator": token}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	for _, want := range []string{"auth_success", "ready", "user_connect"} {
		if got := readFrame(t, conn)["cmd"]; got != want {
			t.Fatalf("got %v, want %s", got, want)
		}
	}

	if err := conn.WriteJSON(map[string]any{"cmd": "message_new", "channel": "general", "content": "hello"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	frame := readFrame(t, conn)
	if frame["cmd"] != "message_new" {
		t.Fatalf("frame = %v", frame)
	}
	if msg := frame["message"].(map[string]any); msg["user"] != "alice" || msg["content"] != "hello" {
		t.Fatalf("message = %v", msg)
	}
}

func TestWebSocketRejectsBadToken(t *testing.T) {
	ts := newTestRouter(t)
	conn := dial(t, ts)
	readFrame(t, conn)

	if err := conn.WriteJSON(map[string]any{"cmd": "auth", "validator": "not-a-jwt"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if got := readFrame(t, conn)["cmd"]; got != "auth_error" {
		t.Fatalf("got %v, want auth_error", got)
	}
}
