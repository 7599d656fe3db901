package chat

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"originchats/internal/app/channel"
	"originchats/internal/app/message"
	"originchats/internal/app/plugin"
	"originchats/internal/app/ratelimit"
	"originchats/internal/app/store"
	"originchats/internal/app/user"
	"originchats/internal/pkg/auth"
	"originchats/internal/pkg/errs"
)

// prefixValidator accepts tokens of the form "tok-<name>".
type prefixValidator struct{}

func (prefixValidator) Validate(_ context.Context, token string) (auth.Identity, error) {
	name, ok := strings.CutPrefix(token, "tok-")
	if !ok || name == "" {
		return auth.Identity{}, errs.NewError(errs.ErrAuthInvalid)
	}
	return auth.Identity{ID: "id-" + name, Username: name}, nil
}

// quotaGate admits allow events per user and denies the rest.
type quotaGate struct {
	allow int
	seen  map[string]int
}

func (g *quotaGate) Enabled() bool { return true }

func (g *quotaGate) IsAllowed(userID string) (bool, string, float64) {
	g.seen[userID]++
	if g.seen[userID] > g.allow {
		return false, ratelimit.ReasonTooQuickly, 1.5
	}
	return true, "", 0
}

func (g *quotaGate) SetUserTimeout(string, float64) {}

func (g *quotaGate) GetUserStatus(string) ratelimit.Status { return ratelimit.Status{} }

func (g *quotaGate) ResetUser(userID string) { delete(g.seen, userID) }

func newTestServer(t *testing.T, gate ratelimit.Gate) *Server {
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

	return NewServer(Deps{
		Users:     users,
		Channels:  channels,
		Messages:  message.NewStore(backend),
		Gate:      gate,
		Validator: prefixValidator{},
	}, Options{
		ServerName:   "Test Server",
		Version:      "1.0.0",
		ValidatorKey: "originChats-key",
	})
}

func connect(t *testing.T, srv *Server) *Session {
	t.Helper()
	sess := NewSession(nil, "203.0.113.7:5000", 0)
	srv.Connect(context.Background(), sess)
	return sess
}

// login connects a session as name and discards the frames received so far.
func login(t *testing.T, srv *Server, name string) *Session {
	t.Helper()
	sess := connect(t, srv)
	send(t, srv, sess, map[string]any{"cmd": "auth", "validator": "tok-" + name})
	if !sess.Authenticated() {
		t.Fatalf("login %s: %v", name, drain(sess))
	}
	drain(sess)
	return sess
}

func makeOwner(t *testing.T, srv *Server, name string) {
	t.Helper()
	ctx := context.Background()
	if _, err := srv.users.Ensure(ctx, "id-"+name, name); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if _, err := srv.users.AddRole(ctx, "id-"+name, user.RoleOwner); err != nil {
		t.Fatalf("AddRole: %v", err)
	}
}

func send(t *testing.T, srv *Server, sess *Session, frame map[string]any) {
	t.Helper()
	raw, err := json.Marshal(frame)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	srv.Handle(context.Background(), sess, raw)
}

// drain returns the frames queued for sess without blocking.
func drain(sess *Session) []map[string]any {
	var out []map[string]any
	for {
		select {
		case raw, ok := <-sess.send:
			if !ok {
				return out
			}
			var frame map[string]any
			if err := json.Unmarshal(raw, &frame); err == nil {
				out = append(out, frame)
			}
		default:
			return out
		}
	}
}

func cmdsOf(frames []map[string]any) []string {
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i], _ = f["cmd"].(string)
	}
	return out
}

func find(t *testing.T, frames []map[string]any, cmd string) map[string]any {
	t.Helper()
	for _, f := range frames {
		if f["cmd"] == cmd {
			return f
		}
	}
	t.Fatalf("no %s frame in %v", cmd, cmdsOf(frames))
	return nil
}

func errorCode(t *testing.T, frames []map[string]any) int {
	t.Helper()
	for _, f := range frames {
		if f["cmd"] == cmdError || f["cmd"] == cmdAuthError {
			return int(f["code"].(float64))
		}
	}
	t.Fatalf("no error frame in %v", cmdsOf(frames))
	return 0
}

func TestHandshake(t *testing.T) {
	srv := newTestServer(t, nil)
	sess := connect(t, srv)

	frames := drain(sess)
	if len(frames) != 1 {
		t.Fatalf("expected only the handshake, got %v", cmdsOf(frames))
	}
	val := find(t, frames, cmdHandshake)["val"].(map[string]any)
	if val["server"].(map[string]any)["name"] != "Test Server" {
		t.Errorf("unexpected server info: %v", val["server"])
	}
	if val["limits"].(map[string]any)["post_content"] != float64(DefaultContentLimit) {
		t.Errorf("unexpected limits: %v", val["limits"])
	}
	if val["validator_key"] != "originChats-key" {
		t.Errorf("unexpected validator key: %v", val["validator_key"])
	}
}

func TestProtocolErrors(t *testing.T) {
	srv := newTestServer(t, nil)
	sess := connect(t, srv)
	drain(sess)

	tests := []struct {
		name  string
		frame string
		code  int
		cmd   string
	}{
		{"not json", `{"cmd":`, errs.ErrInvalidFormat, cmdError},
		{"missing cmd", `{"val":1}`, errs.ErrInvalidFormat, cmdError},
		{"unknown command", `{"cmd":"teleport"}`, errs.ErrUnknownCommand, cmdError},
		{"auth gate", `{"cmd":"message_new","channel":"general","content":"hi"}`, errs.ErrAuthRequired, cmdAuthError},
		{"auth without token", `{"cmd":"auth"}`, errs.ErrMissingField, cmdError},
		{"invalid token", `{"cmd":"auth","validator":"forged"}`, errs.ErrAuthInvalid, cmdAuthError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv.Handle(context.Background(), sess, []byte(tt.frame))
			frames := drain(sess)
			if len(frames) != 1 {
				t.Fatalf("expected one frame, got %v", cmdsOf(frames))
			}
			if frames[0]["cmd"] != tt.cmd {
				t.Errorf("frame cmd = %v, want %s", frames[0]["cmd"], tt.cmd)
			}
			if got := errorCode(t, frames); got != tt.code {
				t.Errorf("code = %d, want %d", got, tt.code)
			}
		})
	}

	if sess.Authenticated() {
		t.Fatal("session must stay unauthenticated")
	}
}

func TestPingBeforeAuth(t *testing.T) {
	srv := newTestServer(t, nil)
	sess := connect(t, srv)
	drain(sess)

	send(t, srv, sess, map[string]any{"cmd": "ping"})
	if got := find(t, drain(sess), cmdPong)["val"]; got != "pong" {
		t.Fatalf("pong val = %v", got)
	}
}

func TestAuthenticate(t *testing.T) {
	srv := newTestServer(t, nil)
	bob := login(t, srv, "bob")

	alice := connect(t, srv)
	drain(alice)
	send(t, srv, alice, map[string]any{"cmd": "auth", "validator": "tok-alice"})

	frames := drain(alice)
	if got := cmdsOf(frames); len(got) != 3 || got[0] != cmdAuthSuccess || got[1] != cmdReady || got[2] != cmdUserConnect {
		t.Fatalf("unexpected auth sequence %v", got)
	}
	profile := frames[1]["user"].(map[string]any)
	if profile["username"] != "alice" {
		t.Errorf("ready profile = %v", profile)
	}

	connected := find(t, drain(bob), cmdUserConnect)["user"].(map[string]any)
	if connected["username"] != "alice" {
		t.Errorf("user_connect = %v", connected)
	}

	send(t, srv, alice, map[string]any{"cmd": "auth", "validator": "tok-alice"})
	if code := errorCode(t, drain(alice)); code != errs.ErrAlreadyAuthenticated {
		t.Fatalf("second auth code = %d", code)
	}
}

func TestMessageNewBroadcastsUsername(t *testing.T) {
	srv := newTestServer(t, nil)
	alice := login(t, srv, "alice")
	bob := login(t, srv, "bob")
	drain(alice)

	send(t, srv, alice, map[string]any{"cmd": "message_new", "channel": "general", "content": "  hello  "})

	for _, sess := range []*Session{alice, bob} {
		f := find(t, drain(sess), string(CmdMessageNew))
		msg := f["message"].(map[string]any)
		if msg["user"] != "alice" {
			t.Errorf("author = %v, want username", msg["user"])
		}
		if msg["content"] != "hello" {
			t.Errorf("content = %q, want trimmed", msg["content"])
		}
		if f["channel"] != "general" || f["global"] != true {
			t.Errorf("unexpected envelope %v", f)
		}
	}
}

func TestAutomodManagedFromChat(t *testing.T) {
	gate := ratelimit.New(ratelimit.Config{MessagesPerMinute: 30, BurstLimit: 5, CooldownSeconds: 60})
	srv := newTestServer(t, gate)
	automod, err := plugin.NewAutomod(filepath.Join(t.TempDir(), "automod.json"))
	if err != nil {
		t.Fatalf("NewAutomod: %v", err)
	}
	plugins := plugin.NewManager(automod)
	plugins.Bind(srv)
	srv.hooks, srv.plugins = plugins, plugins

	makeOwner(t, srv, "root")
	root := login(t, srv, "root")
	alice := login(t, srv, "alice")
	drain(root)

	send(t, srv, alice, map[string]any{"cmd": "message_new", "channel": "general", "content": "!automod add scam"})
	drain(alice)
	if len(automod.Config().BlockedWords) != 0 {
		t.Fatal("a plain user must not manage automod")
	}

	send(t, srv, root, map[string]any{"cmd": "message_new", "channel": "general", "content": "!automod add scam"})
	var reply map[string]any
	for _, f := range drain(root) {
		if f["cmd"] != string(CmdMessageNew) {
			continue
		}
		if msg := f["message"].(map[string]any); msg["user"] == user.SystemAuthor {
			reply = msg
		}
	}
	if reply == nil || reply["content"] != "Added 'scam' to blocked words" {
		t.Fatalf("automod reply = %v", reply)
	}

	drain(alice)
	send(t, srv, alice, map[string]any{"cmd": "message_new", "channel": "general", "content": "cheap scam here"})
	frames := drain(alice)
	find(t, frames, string(CmdMessageDelete))
	if limited := find(t, frames, cmdRateLimit); limited["reason"] != plugin.AutomodReason {
		t.Fatalf("rate_limit reason = %v", limited["reason"])
	}
}

func TestMessageValidation(t *testing.T) {
	srv := newTestServer(t, nil)
	alice := login(t, srv, "alice")

	tests := []struct {
		name  string
		frame map[string]any
		code  int
	}{
		{"missing content", map[string]any{"cmd": "message_new", "channel": "general"}, errs.ErrMissingField},
		{"blank content", map[string]any{"cmd": "message_new", "channel": "general", "content": "   "}, errs.ErrContentEmpty},
		{"too long", map[string]any{"cmd": "message_new", "channel": "general", "content": strings.Repeat("a", DefaultContentLimit+1)}, errs.ErrContentTooLong},
		{"wrong type", map[string]any{"cmd": "message_new", "channel": 7, "content": "hi"}, errs.ErrInvalidField},
		{"unknown channel", map[string]any{"cmd": "message_new", "channel": "nowhere", "content": "hi"}, errs.ErrChannelNotFound},
		{"missing reply target", map[string]any{"cmd": "message_new", "channel": "general", "content": "hi", "reply_to": "nope"}, errs.ErrReplyTargetNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			send(t, srv, alice, tt.frame)
			if code := errorCode(t, drain(alice)); code != tt.code {
				t.Fatalf("code = %d, want %d", code, tt.code)
			}
		})
	}

	msgs, err := srv.messages.List(context.Background(), "general", message.Cursor{}, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("rejected messages were stored: %v", msgs)
	}
}

func TestDeleteRequiresPermission(t *testing.T) {
	srv := newTestServer(t, nil)
	alice := login(t, srv, "alice")
	bob := login(t, srv, "bob")
	drain(alice)

	send(t, srv, alice, map[string]any{"cmd": "message_new", "channel": "general", "content": "mine"})
	id := find(t, drain(alice), string(CmdMessageNew))["message"].(map[string]any)["id"].(string)
	drain(bob)

	send(t, srv, bob, map[string]any{"cmd": "message_delete", "channel": "general", "id": id})
	frames := drain(bob)
	if code := errorCode(t, frames); code != errs.ErrPermissionDenied {
		t.Fatalf("code = %d, want permission denied", code)
	}
	if val := frames[0]["val"]; val != "You do not have permission to delete this message" {
		t.Errorf("val = %v", val)
	}
	if len(drain(alice)) != 0 {
		t.Fatal("a denied delete must not broadcast")
	}

	send(t, srv, alice, map[string]any{"cmd": "message_delete", "channel": "general", "id": id})
	if got := find(t, drain(bob), string(CmdMessageDelete))["id"]; got != id {
		t.Fatalf("deleted id = %v", got)
	}
}

func TestEditOthersRejected(t *testing.T) {
	srv := newTestServer(t, nil)
	alice := login(t, srv, "alice")
	bob := login(t, srv, "bob")

	send(t, srv, alice, map[string]any{"cmd": "message_new", "channel": "general", "content": "original"})
	id := find(t, drain(alice), string(CmdMessageNew))["message"].(map[string]any)["id"].(string)
	drain(bob)

	send(t, srv, bob, map[string]any{"cmd": "message_edit", "channel": "general", "id": id, "content": "hijacked"})
	if code := errorCode(t, drain(bob)); code != errs.ErrEditOthersUnsupported {
		t.Fatalf("code = %d", code)
	}

	send(t, srv, alice, map[string]any{"cmd": "message_edit", "channel": "general", "id": id, "content": "fixed"})
	edited := find(t, drain(bob), string(CmdMessageEdit))
	if edited["content"] != "fixed" {
		t.Fatalf("edit broadcast = %v", edited)
	}
}

func TestRateLimitDenial(t *testing.T) {
	gate := &quotaGate{allow: 2, seen: map[string]int{}}
	srv := newTestServer(t, gate)
	alice := login(t, srv, "alice")

	for range 2 {
		send(t, srv, alice, map[string]any{"cmd": "message_new", "channel": "general", "content": "hi"})
		find(t, drain(alice), string(CmdMessageNew))
	}

	send(t, srv, alice, map[string]any{"cmd": "message_new", "channel": "general", "content": "hi"})
	frames := drain(alice)
	limited := find(t, frames, cmdRateLimit)
	if limited["length"] != float64(1500) {
		t.Errorf("length = %v, want 1500", limited["length"])
	}
	if limited["reason"] != ratelimit.ReasonTooQuickly {
		t.Errorf("reason = %v", limited["reason"])
	}
	if len(frames) != 1 {
		t.Errorf("a denied message must not be broadcast: %v", cmdsOf(frames))
	}
}

func TestTimeoutRequiresLimiter(t *testing.T) {
	srv := newTestServer(t, nil)
	makeOwner(t, srv, "root")
	root := login(t, srv, "root")
	login(t, srv, "bob")
	drain(root)

	send(t, srv, root, map[string]any{"cmd": "user_timeout", "user": "bob", "timeout": 30})
	if code := errorCode(t, drain(root)); code != errs.ErrRateLimiterDisabled {
		t.Fatalf("code = %d", code)
	}
}

func TestOwnerOnlyCommands(t *testing.T) {
	srv := newTestServer(t, nil)
	bob := login(t, srv, "bob")

	for _, frame := range []map[string]any{
		{"cmd": "channel_create", "name": "secret", "type": "text"},
		{"cmd": "roles_list"},
		{"cmd": "user_ban", "user": "bob"},
		{"cmd": "users_banned_list"},
		{"cmd": "plugins_list"},
		{"cmd": "messages_purge", "channel": "general", "count": 1},
	} {
		send(t, srv, bob, frame)
		if code := errorCode(t, drain(bob)); code != errs.ErrOwnerRequired {
			t.Errorf("%s: code = %d", frame["cmd"], code)
		}
	}
}

func TestBanDisconnectsAndRefusesAuth(t *testing.T) {
	srv := newTestServer(t, nil)
	makeOwner(t, srv, "root")
	root := login(t, srv, "root")
	bob := login(t, srv, "bob")
	drain(root)

	send(t, srv, root, map[string]any{"cmd": "user_ban", "user": "bob"})
	ack := find(t, drain(root), string(CmdUserBan))
	if ack["user"] != "bob" || ack["banned"] != true {
		t.Fatalf("ban ack = %v", ack)
	}

	if got := find(t, drain(bob), cmdDisconnect)["reason"]; got != reasonBanned {
		t.Errorf("disconnect reason = %v", got)
	}
	if !bob.Closed() {
		t.Fatal("banned session should be closed")
	}

	again := connect(t, srv)
	drain(again)
	send(t, srv, again, map[string]any{"cmd": "auth", "validator": "tok-bob"})
	frames := drain(again)
	if frames[0]["cmd"] != cmdAuthError || errorCode(t, frames) != errs.ErrBanned {
		t.Fatalf("banned auth = %v", frames)
	}
	if again.Authenticated() {
		t.Fatal("banned user must not authenticate")
	}
}

func TestUserRolesBroadcast(t *testing.T) {
	srv := newTestServer(t, nil)
	makeOwner(t, srv, "root")
	root := login(t, srv, "root")
	bob := login(t, srv, "bob")

	send(t, srv, root, map[string]any{"cmd": "role_create", "name": "mod", "color": "#00ff00"})
	find(t, drain(bob), string(CmdRoleCreate))

	send(t, srv, root, map[string]any{"cmd": "user_role_add", "user": "bob", "role": "mod"})
	update := find(t, drain(bob), cmdUserRoles)
	roles := update["roles"].([]any)
	if update["user"] != "bob" || len(roles) != 2 || roles[0] != "mod" {
		t.Fatalf("user_roles = %v", update)
	}
	if update["color"] != "#00ff00" {
		t.Errorf("display color = %v", update["color"])
	}
}

func createVoiceChannel(t *testing.T, srv *Server, owner *Session, name string) {
	t.Helper()
	send(t, srv, owner, map[string]any{
		"cmd":  "channel_create",
		"name": name,
		"type": "voice",
		"permissions": map[string][]string{
			"view": {user.RoleUser},
			"send": {user.RoleUser},
		},
	})
	find(t, drain(owner), string(CmdChannelCreate))
}

func TestVoiceJoinSwitchAndViewers(t *testing.T) {
	srv := newTestServer(t, nil)
	makeOwner(t, srv, "root")
	root := login(t, srv, "root")
	createVoiceChannel(t, srv, root, "lounge")
	createVoiceChannel(t, srv, root, "studio")

	alice := login(t, srv, "alice")
	bob := login(t, srv, "bob")
	carol := login(t, srv, "carol")
	drain(alice)
	drain(bob)
	drain(root)

	send(t, srv, alice, map[string]any{"cmd": "voice_join", "channel": "lounge", "peer_id": "peer-a"})
	drain(alice)
	drain(carol)

	send(t, srv, bob, map[string]any{"cmd": "voice_join", "channel": "lounge", "peer_id": "peer-b"})
	reply := find(t, drain(bob), string(CmdVoiceJoin))
	if participants := reply["participants"].([]any); len(participants) != 2 {
		t.Fatalf("participants = %v", participants)
	}

	joined := find(t, drain(alice), cmdVoiceUserJoined)["user"].(map[string]any)
	if joined["username"] != "bob" || joined["peer_id"] != "peer-b" {
		t.Errorf("member view = %v", joined)
	}
	viewed := find(t, drain(carol), cmdVoiceUserJoined)["user"].(map[string]any)
	if _, ok := viewed["peer_id"]; ok || viewed["username"] != "bob" {
		t.Errorf("viewer must not see peer ids: %v", viewed)
	}

	send(t, srv, alice, map[string]any{"cmd": "voice_join", "channel": "studio", "peer_id": "peer-a2"})
	got := cmdsOf(drain(alice))
	want := []string{cmdVoiceUserLeft, string(CmdVoiceJoin), cmdVoiceUserJoined}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("switch sequence = %v, want %v", got, want)
	}
	left := find(t, drain(bob), cmdVoiceUserLeft)
	if left["channel"] != "lounge" || left["username"] != "alice" {
		t.Errorf("departure = %v", left)
	}

	send(t, srv, carol, map[string]any{"cmd": "voice_state", "channel": "lounge"})
	state := find(t, drain(carol), string(CmdVoiceState))["participants"].([]any)
	if len(state) != 1 {
		t.Fatalf("lounge roster = %v", state)
	}
	if _, ok := state[0].(map[string]any)["peer_id"]; ok {
		t.Error("non-member voice_state must hide peer ids")
	}
}

func TestVoiceLeaveAndDisconnect(t *testing.T) {
	srv := newTestServer(t, nil)
	makeOwner(t, srv, "root")
	root := login(t, srv, "root")
	createVoiceChannel(t, srv, root, "lounge")

	alice := login(t, srv, "alice")
	bob := login(t, srv, "bob")

	send(t, srv, alice, map[string]any{"cmd": "voice_leave"})
	if code := errorCode(t, drain(alice)); code != errs.ErrNotInVoice {
		t.Fatalf("code = %d", code)
	}

	send(t, srv, alice, map[string]any{"cmd": "voice_join", "channel": "lounge", "peer_id": "peer-a"})
	send(t, srv, bob, map[string]any{"cmd": "voice_join", "channel": "lounge", "peer_id": "peer-b"})
	send(t, srv, bob, map[string]any{"cmd": "voice_mute"})
	muted := find(t, drain(alice), cmdVoiceUserUpdated)["user"].(map[string]any)
	if muted["username"] != "bob" || muted["muted"] != true {
		t.Fatalf("mute update = %v", muted)
	}
	drain(bob)

	srv.Disconnect(context.Background(), alice)
	frames := drain(bob)
	left := find(t, frames, cmdVoiceUserLeft)
	if left["username"] != "alice" {
		t.Errorf("departure = %v", left)
	}
	if find(t, frames, cmdUserDisconnect)["username"] != "alice" {
		t.Error("missing user_disconnect")
	}
	if roster := srv.voice.Roster("lounge"); len(roster.Members) != 1 {
		t.Fatalf("roster after disconnect = %v", roster.Members)
	}
}

func TestSlashCommandRoundTrip(t *testing.T) {
	srv := newTestServer(t, nil)
	alice := login(t, srv, "alice")
	bot := login(t, srv, "bot")
	drain(alice)

	send(t, srv, bot, map[string]any{
		"cmd": "slash_register",
		"commands": []map[string]any{{
			"name":        "roll",
			"description": "Roll a die",
			"options": []map[string]any{
				{"name": "sides", "description": "Number of sides", "type": "int"},
			},
		}},
	})
	if got := find(t, drain(bot), string(CmdSlashRegister))["commands"].([]any); len(got) != 1 || got[0] != "roll" {
		t.Fatalf("registered = %v", got)
	}

	send(t, srv, alice, map[string]any{"cmd": "slash_call", "channel": "general", "command": "roll", "args": map[string]any{"sides": "six"}})
	if code := errorCode(t, drain(alice)); code != errs.ErrSlashArgsInvalid {
		t.Fatalf("bad args code = %d", code)
	}

	send(t, srv, alice, map[string]any{"cmd": "slash_call", "channel": "general", "command": "roll", "args": map[string]any{"sides": 6}})
	if find(t, drain(alice), string(CmdSlashCall))["val"] != "sent" {
		t.Fatal("slash_call not acknowledged")
	}
	invoke := find(t, drain(bot), cmdSlashInvoke)
	if invoke["user"] != "alice" || invoke["command"] != "roll" {
		t.Fatalf("invoke = %v", invoke)
	}

	send(t, srv, alice, map[string]any{"cmd": "slash_response", "invocation": invoke["invocation"], "content": "4"})
	if code := errorCode(t, drain(alice)); code != errs.ErrNotCommandOwner {
		t.Fatalf("foreign response code = %d", code)
	}

	send(t, srv, bot, map[string]any{"cmd": "slash_response", "invocation": invoke["invocation"], "content": "4"})
	if find(t, drain(bot), string(CmdSlashResponse))["val"] != "delivered" {
		t.Fatal("response not acknowledged")
	}
	msg := find(t, drain(alice), string(CmdMessageNew))["message"].(map[string]any)
	if msg["type"] != message.TypeSlashResponse || msg["user"] != "bot" || msg["content"] != "4" {
		t.Fatalf("response message = %v", msg)
	}

	srv.Disconnect(context.Background(), bot)
	send(t, srv, alice, map[string]any{"cmd": "slash_list"})
	if cmds := find(t, drain(alice), string(CmdSlashList))["commands"].([]any); len(cmds) != 0 {
		t.Fatalf("commands of an offline owner should be dropped: %v", cmds)
	}
}

func TestRateLimitStatusSelfOrOwner(t *testing.T) {
	gate := ratelimit.New(ratelimit.Config{MessagesPerMinute: 30, BurstLimit: 5, CooldownSeconds: 60})
	srv := newTestServer(t, gate)
	alice := login(t, srv, "alice")
	login(t, srv, "bob")
	drain(alice)

	send(t, srv, alice, map[string]any{"cmd": "rate_limit_status"})
	status := find(t, drain(alice), string(CmdRateLimitStatus))
	if status["user"] != "alice" {
		t.Errorf("status user = %v", status["user"])
	}

	send(t, srv, alice, map[string]any{"cmd": "rate_limit_status", "user": "bob"})
	if code := errorCode(t, drain(alice)); code != errs.ErrSelfOrOwnerRequired {
		t.Fatalf("status of another user: code = %d", code)
	}

	send(t, srv, alice, map[string]any{"cmd": "rate_limit_reset", "user": "bob"})
	if code := errorCode(t, drain(alice)); code != errs.ErrOwnerRequired {
		t.Fatalf("reset of another user: code = %d", code)
	}
}

func TestTimeoutSurvivesSelfReset(t *testing.T) {
	gate := ratelimit.New(ratelimit.Config{MessagesPerMinute: 30, BurstLimit: 5, CooldownSeconds: 60})
	srv := newTestServer(t, gate)
	makeOwner(t, srv, "root")
	root := login(t, srv, "root")
	alice := login(t, srv, "alice")
	drain(root)

	send(t, srv, root, map[string]any{"cmd": "user_timeout", "user": "alice", "timeout": 600})
	find(t, drain(root), string(CmdUserTimeout))
	drain(alice)

	post := map[string]any{"cmd": "message_new", "channel": "general", "content": "let me out"}
	send(t, srv, alice, post)
	if limited := find(t, drain(alice), cmdRateLimit); limited["reason"] != ratelimit.ReasonTimedOut {
		t.Fatalf("reason = %v", limited["reason"])
	}

	for _, frame := range []map[string]any{
		{"cmd": "rate_limit_reset"},
		{"cmd": "rate_limit_reset", "user": "alice"},
	} {
		send(t, srv, alice, frame)
		if code := errorCode(t, drain(alice)); code != errs.ErrOwnerRequired {
			t.Fatalf("self reset %v: code = %d", frame, code)
		}
	}

	send(t, srv, alice, post)
	frames := drain(alice)
	if limited := find(t, frames, cmdRateLimit); limited["reason"] != ratelimit.ReasonTimedOut {
		t.Fatalf("timeout must still hold, reason = %v", limited["reason"])
	}
	if len(frames) != 1 {
		t.Fatalf("a timed-out message must not be broadcast: %v", cmdsOf(frames))
	}

	send(t, srv, root, map[string]any{"cmd": "rate_limit_reset", "user": "alice"})
	if reset := find(t, drain(root), string(CmdRateLimitReset)); reset["user"] != "alice" {
		t.Fatalf("reset reply = %v", reset)
	}
	send(t, srv, alice, post)
	find(t, drain(alice), string(CmdMessageNew))
}

func TestUserLeave(t *testing.T) {
	srv := newTestServer(t, nil)
	alice := login(t, srv, "alice")
	bob := login(t, srv, "bob")
	drain(alice)

	send(t, srv, alice, map[string]any{"cmd": "user_leave"})
	left := find(t, drain(bob), string(CmdUserLeave))
	if left["user"] != "alice" || left["val"] != valUserLeft {
		t.Fatalf("leave broadcast = %v", left)
	}
	if !alice.Closed() {
		t.Fatal("leaving session should be closed")
	}
	if _, ok, _ := srv.users.Get(context.Background(), "id-alice"); ok {
		t.Fatal("user record should be removed")
	}
}
