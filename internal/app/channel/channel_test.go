package channel_test

import (
	"context"
	"testing"

	"originchats/internal/app/channel"
	"originchats/internal/app/store"
	"originchats/internal/pkg/errs"
)

func TestAllowed(t *testing.T) {
	configured := &channel.Channel{
		Name: "c",
		Type: channel.TypeText,
		Permissions: map[channel.Permission][]string{
			channel.PermView:    {"user"},
			channel.PermSend:    {"mod"},
			channel.PermEditOwn: {"mod"},
		},
	}
	bare := &channel.Channel{Name: "bare", Type: channel.TypeText}

	tests := []struct {
		name  string
		ch    *channel.Channel
		roles []string
		kind  channel.Permission
		want  bool
	}{
		{"listed role", configured, []string{"user"}, channel.PermView, true},
		{"unlisted role", configured, []string{"user"}, channel.PermSend, false},
		{"any role intersects", configured, []string{"user", "mod"}, channel.PermSend, true},
		{"configured edit_own closes it", configured, []string{"user"}, channel.PermEditOwn, false},
		{"unconfigured view is owner-only", bare, []string{"user"}, channel.PermView, false},
		{"unconfigured send is owner-only", bare, []string{"admin"}, channel.PermSend, false},
		{"unconfigured pin is owner-only", bare, []string{"user"}, channel.PermPin, false},
		{"unconfigured delete is owner-only", bare, []string{"user"}, channel.PermDelete, false},
		{"unconfigured edit_own is open", bare, []string{"user"}, channel.PermEditOwn, true},
		{"unconfigured delete_own is open", bare, []string{"user"}, channel.PermDeleteOwn, true},
		{"unconfigured react is open", bare, nil, channel.PermReact, true},
		{"nil channel denied", nil, []string{"user"}, channel.PermReact, false},
		{"nil channel owner", nil, []string{"owner"}, channel.PermView, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := channel.Allowed(tt.ch, tt.roles, tt.kind); got != tt.want {
				t.Fatalf("Allowed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOwnerPassesEveryCheck(t *testing.T) {
	chs := []*channel.Channel{
		{Name: "locked", Permissions: map[channel.Permission][]string{
			channel.PermView: {}, channel.PermSend: {}, channel.PermEditOwn: {},
			channel.PermDeleteOwn: {}, channel.PermDelete: {}, channel.PermPin: {}, channel.PermReact: {},
		}},
		{Name: "bare"},
	}
	for _, ch := range chs {
		for _, kind := range channel.Permissions {
			if !channel.Allowed(ch, []string{"banned", "owner"}, kind) {
				t.Errorf("owner denied %s on %s", kind, ch.Name)
			}
		}
	}
}

func newRegistry(t *testing.T) *channel.Registry {
	t.Helper()
	backend, err := store.NewFile(t.TempDir())
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	return channel.NewRegistry(backend)
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t)

	if err := r.EnsureDefault(ctx); err != nil {
		t.Fatalf("EnsureDefault: %v", err)
	}
	if err := r.EnsureDefault(ctx); err != nil {
		t.Fatalf("EnsureDefault twice: %v", err)
	}
	all, _ := r.List(ctx)
	if len(all) != 1 || all[0].Name != channel.DefaultChannel {
		t.Fatalf("expected only the default channel, got %+v", all)
	}

	v, err := r.Create(ctx, channel.Channel{Name: "staff", Type: channel.TypeText})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if v.Position != 1 || len(v.Permissions[channel.PermView]) != 1 {
		t.Fatalf("unexpected created channel: %+v", v)
	}
	if _, err := r.Create(ctx, channel.Channel{Name: "staff", Type: channel.TypeText}); errs.CodeOf(err) != errs.ErrChannelExists {
		t.Fatalf("expected channel exists, got %v", err)
	}
	if _, err := r.Create(ctx, channel.Channel{Name: "x", Type: "forum"}); errs.CodeOf(err) != errs.ErrInvalidField {
		t.Fatalf("expected invalid type, got %v", err)
	}
	if _, err := r.Create(ctx, channel.Channel{Name: "line", Type: channel.TypeSeparator, Size: 8}); err != nil {
		t.Fatalf("Create separator: %v", err)
	}

	visible, _ := r.Visible(ctx, []string{"user"})
	if len(visible) != 1 || visible[0].Name != channel.DefaultChannel {
		t.Fatalf("user should only see general, got %+v", visible)
	}

	moved, err := r.Move(ctx, "line", -5)
	if err != nil || moved.Position != 0 {
		t.Fatalf("Move: %+v, %v", moved, err)
	}
	moved, err = r.Move(ctx, "line", 99)
	if err != nil || moved.Position != 2 {
		t.Fatalf("Move clamp: %+v, %v", moved, err)
	}

	newName := "team"
	desc := "for the team"
	updated, err := r.Update(ctx, "staff", channel.Patch{NewName: &newName, Description: &desc})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Name != "team" || updated.Description != desc {
		t.Fatalf("unexpected update result: %+v", updated)
	}
	if _, err := r.Get(ctx, "staff"); errs.CodeOf(err) != errs.ErrChannelNotFound {
		t.Fatalf("old name should be gone, got %v", err)
	}
	size := 3
	if _, err := r.Update(ctx, "team", channel.Patch{Size: &size}); errs.CodeOf(err) != errs.ErrInvalidField {
		t.Fatalf("size on text channel should be rejected, got %v", err)
	}

	if _, err := r.Delete(ctx, "team"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := r.Delete(ctx, "team"); errs.CodeOf(err) != errs.ErrChannelNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
