/*
Package plugin delivers server lifecycle events to in-process plugins.

The dispatcher only sees the Hooks capability; Nop is used when no plugins are configured.
Plugins act on the server through Host, which the chat server implements.
*/
package plugin

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"originchats/internal/pkg/errs"
	"originchats/internal/pkg/logx"

	"github.com/rs/zerolog"
)

// Event names.
const (
	EventServerStart    = "server_start"
	EventUserConnect    = "user_connect"
	EventUserDisconnect = "user_disconnect"
	EventNewMessage     = "new_message"
	EventMessageEdit    = "message_edit"
	EventMessageDelete  = "message_delete"
	EventMessagePin     = "message_pin"
	EventMessageUnpin   = "message_unpin"
	EventTyping         = "typing"
	EventUserTimeout    = "user_timeout"
	EventUserBan        = "user_ban"
	EventUserUnban      = "user_unban"
	EventUserLeft       = "user_left"
	EventVoiceJoin      = "voice_join"
	EventVoiceLeave     = "voice_leave"
)

// Event is a notification about something that already happened. Unlike client
// payloads it carries the user id next to the username.
type Event struct {
	Name     string
	UserID   string
	Username string
	Channel  string
	Data     map[string]any
}

// Hooks receives events from the dispatcher.
type Hooks interface {
	Trigger(ctx context.Context, ev Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Trigger(context.Context, Event) {}

// Host is the set of server actions available to plugins.
type Host interface {
	DeleteMessage(ctx context.Context, channel, id string) error
	TimeoutUser(ctx context.Context, userID string, seconds float64, reason string) error
	PostSystemMessage(ctx context.Context, channel, content string) error
}

// Plugin is an in-process event handler.
type Plugin interface {
	Name() string
	Handle(ctx context.Context, host Host, ev Event) error
	Reload() error
}

// Manager fans events out to the registered plugins.
type Manager struct {
	mu      sync.RWMutex
	plugins []Plugin
	host    Host
	logger  zerolog.Logger
}

// NewManager returns a Manager running plugins in the given order.
func NewManager(plugins ...Plugin) *Manager {
	return &Manager{
		plugins: plugins,
		logger:  logx.Component("plugin"),
	}
}

// Bind attaches the server actions. Events triggered before Bind are dropped.
func (m *Manager) Bind(host Host) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.host = host
}

// Trigger runs every plugin on ev. A failing or panicking plugin is logged and
// does not affect the others.
func (m *Manager) Trigger(ctx context.Context, ev Event) {
	m.mu.RLock()
	host := m.host
	plugins := slices.Clone(m.plugins)
	m.mu.RUnlock()

	if host == nil {
		return
	}

	for _, p := range plugins {
		if err := m.run(ctx, p, host, ev); err != nil {
			m.logger.Error().
				Err(err).
				Str("plugin", p.Name()).
				Str("event", ev.Name).
				Msg("Plugin failed to handle event")
		}
	}
}

func (m *Manager) run(ctx context.Context, p Plugin, host Host, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return p.Handle(ctx, host, ev)
}

// List returns the plugin names.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, len(m.plugins))
	for i, p := range m.plugins {
		names[i] = p.Name()
	}
	return names
}

// Reload reloads the named plugin, or every plugin when name is empty. It returns
// the names that were reloaded.
func (m *Manager) Reload(name string) ([]string, error) {
	m.mu.RLock()
	plugins := slices.Clone(m.plugins)
	m.mu.RUnlock()

	var reloaded []string
	for _, p := range plugins {
		if name != "" && p.Name() != name {
			continue
		}
		if err := p.Reload(); err != nil {
			m.logger.Error().Err(err).Str("plugin", p.Name()).Msg("Plugin reload failed")
			return reloaded, errs.NewError(errs.ErrPluginNotFound, p.Name())
		}
		reloaded = append(reloaded, p.Name())
	}

	if name != "" && len(reloaded) == 0 {
		return nil, errs.NewError(errs.ErrPluginNotFound, name)
	}
	m.logger.Info().Strs("plugins", reloaded).Msg("Plugins reloaded")
	return reloaded, nil
}
