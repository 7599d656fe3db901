/*
Package chat is the session and broadcast engine of the server.

This file defines the Hub, the registry of connected sessions, and the fanout that
delivers packets to one session, to one user, to everyone, to a channel's viewers or
to a voice channel's participants and viewers.
*/
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"originchats/internal/app/channel"
	"originchats/internal/pkg/logx"
)

// Scope selects the recipients of a Delivery.
type Scope int

const (
	// ScopeSession sends to Delivery.Session.
	ScopeSession Scope = iota

	// ScopeUser sends to every session of Delivery.UserID.
	ScopeUser

	// ScopeGlobal sends to every authenticated session.
	ScopeGlobal

	// ScopeChannel sends to authenticated sessions allowed to view Delivery.Channel.
	ScopeChannel

	// ScopeVoice sends Packet to the sessions of Delivery.Members and Viewer, when set,
	// to the remaining sessions allowed to view Delivery.Channel.
	ScopeVoice
)

// Delivery is one packet and the sessions it should reach.
type Delivery struct {
	Scope   Scope
	Session *Session
	UserID  string
	Channel *channel.Channel
	Members []string
	Packet  Packet
	Viewer  Packet
}

// RoleLookup loads the stored roles of a user.
type RoleLookup func(ctx context.Context, userID string) ([]string, error)

// Hub tracks connected sessions.
type Hub struct {
	// mu protects concurrent access to the sessions map.
	mu sync.RWMutex

	// sessions stores every connected session, keyed by session id.
	sessions map[string]*Session

	// roles fills empty session role caches during channel fanout.
	roles RoleLookup

	// structured logger with Hub context.
	logger zerolog.Logger
}

// NewHub returns an empty Hub.
func NewHub(roles RoleLookup) *Hub {
	return &Hub{
		sessions: make(map[string]*Session),
		roles:    roles,
		logger:   logx.Component("hub"),
	}
}

// Add registers s.
func (h *Hub) Add(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sessions[s.id] = s
}

// Remove unregisters s and reports whether it was registered.
func (h *Hub) Remove(s *Session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[s.id]; !ok {
		return false
	}
	delete(h.sessions, s.id)
	return true
}

// Len returns the number of connected sessions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.sessions)
}

// Snapshot returns the connected sessions.
func (h *Hub) Snapshot() []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		out = append(out, s)
	}
	return out
}

// SessionsOf returns the connected sessions authenticated as userID.
func (h *Hub) SessionsOf(userID string) []*Session {
	var out []*Session
	for _, s := range h.Snapshot() {
		if id, _, ok := s.Identity(); ok && id == userID {
			out = append(out, s)
		}
	}
	return out
}

// SessionByID returns the session with the given id, or nil.
func (h *Hub) SessionByID(id string) *Session {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.sessions[id]
}

// Online returns the distinct ids of authenticated users, sorted.
func (h *Hub) Online() []string {
	var ids []string
	for _, s := range h.Snapshot() {
		if id, _, ok := s.Identity(); ok && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// SetRoles refreshes the role cache of every session of userID.
func (h *Hub) SetRoles(userID string, roles []string) {
	for _, s := range h.SessionsOf(userID) {
		s.setRoles(roles)
	}
}

// ResetRoles empties every role cache so the next fanout reloads them.
func (h *Hub) ResetRoles() {
	for _, s := range h.Snapshot() {
		s.setRoles(nil)
	}
}

// Deliver sends d.Packet to the sessions selected by d.Scope. Each packet is encoded
// once. A session whose queue refuses the frame is removed and closed, and the
// fanout carries on with the remaining sessions.
func (h *Hub) Deliver(ctx context.Context, d Delivery) {
	frame, err := json.Marshal(d.Packet)
	if err != nil {
		h.logger.Error().Err(err).Interface("cmd", d.Packet["cmd"]).Msg("Failed to marshal packet")
		return
	}

	switch d.Scope {
	case ScopeSession:
		if d.Session != nil {
			h.send(d.Session, frame)
		}

	case ScopeUser:
		for _, s := range h.SessionsOf(d.UserID) {
			h.send(s, frame)
		}

	case ScopeGlobal:
		for _, s := range h.Snapshot() {
			if s.Authenticated() {
				h.send(s, frame)
			}
		}

	case ScopeChannel:
		for _, s := range h.Snapshot() {
			if h.canView(ctx, s, d.Channel) {
				h.send(s, frame)
			}
		}

	case ScopeVoice:
		h.deliverVoice(ctx, d, frame)
	}
}

func (h *Hub) deliverVoice(ctx context.Context, d Delivery, frame []byte) {
	var viewerFrame []byte
	if d.Viewer != nil {
		var err error
		if viewerFrame, err = json.Marshal(d.Viewer); err != nil {
			h.logger.Error().Err(err).Interface("cmd", d.Viewer["cmd"]).Msg("Failed to marshal viewer packet")
			viewerFrame = nil
		}
	}

	for _, s := range h.Snapshot() {
		id, _, ok := s.Identity()
		if !ok {
			continue
		}

		switch {
		case slices.Contains(d.Members, id):
			h.send(s, frame)
		case viewerFrame != nil && h.canView(ctx, s, d.Channel):
			h.send(s, viewerFrame)
		}
	}
}

// canView resolves the session's roles, caching them on the session, and applies
// the channel's view permission.
func (h *Hub) canView(ctx context.Context, s *Session, ch *channel.Channel) bool {
	id, _, ok := s.Identity()
	if !ok || ch == nil {
		return false
	}

	roles, cached := s.cachedRoles()
	if !cached {
		var err error
		if roles, err = h.roles(ctx, id); err != nil {
			h.logger.Error().Err(err).Str("user_id", id).Msg("Failed to load roles for fanout")
			return false
		}
		if roles == nil {
			return false
		}
		s.setRoles(roles)
	}

	return channel.Allowed(ch, roles, channel.PermView)
}

func (h *Hub) send(s *Session, frame []byte) {
	err := s.Enqueue(frame)
	if err == nil {
		return
	}

	if h.Remove(s) && !errors.Is(err, errSessionClosed) {
		h.logger.Warn().Err(err).Str("session_id", s.id).Msg("Dropped session after failed delivery")
	}
	s.Close()
}
