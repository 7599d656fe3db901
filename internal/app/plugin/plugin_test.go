package plugin_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"originchats/internal/app/plugin"
	"originchats/internal/pkg/errs"
)

type recordingHost struct {
	deleted  []string
	timeouts map[string]float64
	posted   []string
}

func newHost() *recordingHost {
	return &recordingHost{timeouts: make(map[string]float64)}
}

func (h *recordingHost) DeleteMessage(_ context.Context, channel, id string) error {
	h.deleted = append(h.deleted, channel+"/"+id)
	return nil
}

func (h *recordingHost) TimeoutUser(_ context.Context, userID string, seconds float64, _ string) error {
	h.timeouts[userID] = seconds
	return nil
}

func (h *recordingHost) PostSystemMessage(_ context.Context, _ string, content string) error {
	h.posted = append(h.posted, content)
	return nil
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "automod.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newMessageEvent(content string) plugin.Event {
	return plugin.Event{
		Name:     plugin.EventNewMessage,
		UserID:   "u1",
		Username: "alice",
		Channel:  "general",
		Data:     map[string]any{"id": "m1", "content": content},
	}
}

func TestAutomod(t *testing.T) {
	path := writeConfig(t, `{
		"enabled": true,
		"blocked_words": ["Spam"],
		"timeout_duration": 60,
		"delete_message": true,
		"send_mod_message": true,
		"mod_message": "{username} was muted"
	}`)
	a, err := plugin.NewAutomod(path)
	if err != nil {
		t.Fatalf("NewAutomod: %v", err)
	}

	m := plugin.NewManager(a)
	host := newHost()
	m.Bind(host)

	m.Trigger(context.Background(), newMessageEvent("hello there"))
	if len(host.deleted)+len(host.timeouts)+len(host.posted) != 0 {
		t.Fatal("clean message must not trigger actions")
	}

	m.Trigger(context.Background(), newMessageEvent("buy SPAM now"))
	if len(host.deleted) != 1 || host.deleted[0] != "general/m1" {
		t.Fatalf("expected message deletion, got %v", host.deleted)
	}
	if host.timeouts["u1"] != 60 {
		t.Fatalf("expected 60s timeout, got %v", host.timeouts)
	}
	if len(host.posted) != 1 || host.posted[0] != "alice was muted" {
		t.Fatalf("unexpected mod message: %v", host.posted)
	}

	if err := os.WriteFile(path, []byte(`{"enabled": false}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Reload("automod"); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	m.Trigger(context.Background(), newMessageEvent("spam again"))
	if len(host.deleted) != 1 {
		t.Fatal("disabled automod must not act")
	}
}

func TestAutomodMissingConfigUsesDefaults(t *testing.T) {
	a, err := plugin.NewAutomod(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("NewAutomod: %v", err)
	}
	cfg := a.Config()
	if !cfg.Enabled || cfg.TimeoutDuration != 300 || len(cfg.BlockedWords) != 0 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func commandEvent(content string, roles ...string) plugin.Event {
	ev := newMessageEvent(content)
	ev.UserID, ev.Username = "u-root", "root"
	ev.Data["roles"] = roles
	return ev
}

func TestAutomodCommands(t *testing.T) {
	path := writeConfig(t, `{"enabled": true, "blocked_words": ["spam"], "timeout_duration": 60, "delete_message": true}`)
	a, err := plugin.NewAutomod(path)
	if err != nil {
		t.Fatalf("NewAutomod: %v", err)
	}
	m := plugin.NewManager(a)
	host := newHost()
	m.Bind(host)
	ctx := context.Background()

	tests := []struct {
		content string
		reply   string
	}{
		{"!automod add Scam", "Added 'scam' to blocked words"},
		{"!automod add scam", "Error: 'scam' is already in the blocked words list"},
		{"!automod remove spam", "Removed 'spam' from blocked words"},
		{"!automod list", "Blocked words (1): scam"},
		{"!automod timeout 30", "Timeout duration set to 30s"},
		{"!automod timeout soon", "Error: usage: !automod timeout <seconds>"},
		{"!automod toggle_delete", "Message deletion disabled"},
		{"!automod frobnicate", "Error: unknown command: frobnicate (use !automod help)"},
	}
	for _, tt := range tests {
		host.posted = nil
		m.Trigger(ctx, commandEvent(tt.content, "user", "owner"))
		if len(host.posted) != 1 || host.posted[0] != tt.reply {
			t.Errorf("%q replied %q, want %q", tt.content, host.posted, tt.reply)
		}
	}

	saved, err := plugin.NewAutomod(path)
	if err != nil {
		t.Fatalf("reload saved config: %v", err)
	}
	cfg := saved.Config()
	if len(cfg.BlockedWords) != 1 || cfg.BlockedWords[0] != "scam" || cfg.TimeoutDuration != 30 || cfg.DeleteMessage {
		t.Fatalf("config file not saved: %+v", cfg)
	}

	host.posted = nil
	m.Trigger(ctx, newMessageEvent("a SCAM offer"))
	if host.timeouts["u1"] != 30 || len(host.deleted) != 0 {
		t.Fatalf("new word and settings must apply: timeouts=%v deleted=%v", host.timeouts, host.deleted)
	}

	host.posted = nil
	m.Trigger(ctx, commandEvent("!automod clear", "user"))
	if len(a.Config().BlockedWords) != 1 {
		t.Fatal("users without a manager role must not change the config")
	}

	m.Trigger(ctx, commandEvent("!automod disable", "admin"))
	if a.Config().Enabled {
		t.Fatal("admins may disable automod")
	}
	delete(host.timeouts, "u1")
	m.Trigger(ctx, newMessageEvent("scam again"))
	if _, ok := host.timeouts["u1"]; ok {
		t.Fatal("disabled automod must not act")
	}
}

type panicky struct{ reloadErr error }

func (p *panicky) Name() string { return "panicky" }
func (p *panicky) Reload() error { return p.reloadErr }
func (p *panicky) Handle(context.Context, plugin.Host, plugin.Event) error {
	panic("boom")
}

type counting struct{ n int }

func (c *counting) Name() string { return "counting" }
func (c *counting) Reload() error { return nil }
func (c *counting) Handle(context.Context, plugin.Host, plugin.Event) error {
	c.n++
	return nil
}

func TestManager(t *testing.T) {
	bad := &panicky{}
	good := &counting{}
	m := plugin.NewManager(bad, good)

	m.Trigger(context.Background(), plugin.Event{Name: plugin.EventTyping})
	if good.n != 0 {
		t.Fatal("events before Bind must be dropped")
	}

	m.Bind(newHost())
	m.Trigger(context.Background(), plugin.Event{Name: plugin.EventTyping})
	if good.n != 1 {
		t.Fatal("a panicking plugin must not stop the others")
	}

	if got := m.List(); len(got) != 2 || got[0] != "panicky" || got[1] != "counting" {
		t.Fatalf("List: %v", got)
	}

	if _, err := m.Reload("nope"); errs.CodeOf(err) != errs.ErrPluginNotFound {
		t.Fatalf("expected plugin not found, got %v", err)
	}
	reloaded, err := m.Reload("")
	if err != nil || len(reloaded) != 2 {
		t.Fatalf("Reload all: %v %v", reloaded, err)
	}

	bad.reloadErr = errors.New("broken")
	if _, err := m.Reload("panicky"); err == nil {
		t.Fatal("a failing reload must be reported")
	}

	var hooks plugin.Hooks = plugin.Nop{}
	hooks.Trigger(context.Background(), plugin.Event{})
}
