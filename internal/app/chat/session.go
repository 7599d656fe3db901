/*
Package chat is the session and broadcast engine of the server.

This file defines the Session struct, representing an active WebSocket connection. It manages
the connection's message loops (ReadPump and WritePump), its outbound queue, and the identity
state populated on authentication.
*/
package chat

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"originchats/internal/pkg/logx"
	"originchats/internal/pkg/randx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame sent by the client.
	maxMessageSize = 64 * 1024

	// capacity of the outbound queue of each session.
	sendQueueSize = 256

	// DefaultHeartbeat is the interval of the application-level ping frame.
	DefaultHeartbeat = 30 * time.Second
)

var (
	errSessionClosed = errors.New("session closed")
	errQueueFull     = errors.New("session send queue full")
)

// Session is one client connection and the transient state attached to it.
type Session struct {
	id string

	// underlying WebSocket connection object.
	conn *websocket.Conn

	// a buffered channel used to queue frames waiting to be sent to the client.
	send chan []byte

	heartbeat time.Duration

	// structured logger with session context.
	logger zerolog.Logger

	// mu guards everything below. Enqueue holds it shared so Close cannot
	// close send underneath a pending write.
	mu            sync.RWMutex
	closed        bool
	authenticated bool
	userID        string
	username      string
	roles         []string
	voiceChannel  string
	peerID        string

	disconnectOnce sync.Once
}

// NewSession wraps conn. A zero heartbeat uses DefaultHeartbeat.
func NewSession(conn *websocket.Conn, remoteAddr string, heartbeat time.Duration) *Session {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}

	id := randx.SessionID()
	sessionLogger := logx.Logger().With().
		Str("session_id", id).
		Str("remote_ip", logx.AnonymizeIP(remoteAddr)).
		Logger()

	return &Session{
		id:        id,
		conn:      conn,
		send:      make(chan []byte, sendQueueSize),
		heartbeat: heartbeat,
		logger:    sessionLogger,
	}
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Identity returns the authenticated user. ok is false before authentication.
func (s *Session) Identity() (userID, username string, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.userID, s.username, s.authenticated
}

// Authenticated reports whether the session completed authentication.
func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.authenticated
}

func (s *Session) authenticate(userID, username string, roles []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.authenticated = true
	s.userID = userID
	s.username = username
	s.roles = slices.Clone(roles)
	s.logger = s.logger.With().Str("user_id", userID).Logger()
}

// cachedRoles returns the role cache. ok is false when the cache is empty.
func (s *Session) cachedRoles() ([]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.roles, s.roles != nil
}

// setRoles replaces the role cache. nil empties it.
func (s *Session) setRoles(roles []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.roles = slices.Clone(roles)
}

// Voice returns the voice channel and peer id this session joined with.
func (s *Session) Voice() (channel, peerID string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.voiceChannel, s.peerID
}

func (s *Session) setVoice(channel, peerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.voiceChannel = channel
	s.peerID = peerID
}

func (s *Session) log() *zerolog.Logger {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l := s.logger
	return &l
}

// Enqueue queues frame for WritePump without blocking.
func (s *Session) Enqueue(frame []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return errSessionClosed
	}

	select {
	case s.send <- frame:
		return nil
	default:
		s.logger.Warn().Int("queue_len", len(s.send)).Msg("Session send queue full, dropping session")
		return errQueueFull
	}
}

// Close closes the outbound queue. WritePump drains what is queued, sends a close
// frame and shuts the connection. Close is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.send)
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.closed
}

// ReadPump reads frames from the connection and hands them to srv in arrival order.
// When the connection ends it runs the server's disconnect cleanup.
func (s *Session) ReadPump(ctx context.Context, srv *Server) {
	defer func() {
		srv.Disconnect(ctx, s)

		if err := s.conn.Close(); err != nil {
			s.log().Debug().Err(err).Msg("Session connection close error in ReadPump")
		}
	}()

	s.conn.SetReadLimit(maxMessageSize)

	if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		s.log().Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log().Info().Err(err).Msg("Error reading frame (client close/going away)")
			}
			return
		}

		srv.Handle(ctx, s, frame)
	}
}

// WritePump writes queued frames to the connection and keeps it alive with WebSocket
// pings and the application heartbeat frame.
func (s *Session) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	heartbeat := time.NewTicker(s.heartbeat)

	defer func() {
		ticker.Stop()
		heartbeat.Stop()

		// ensure the connection is closed on exit
		if err := s.conn.Close(); err != nil {
			s.log().Debug().Err(err).Msg("Session connection close error in WritePump")
		}
	}()

	for {
		select {
		case frame, ok := <-s.send:
			if !s.writeQueuedMessage(frame, ok) {
				return
			}

		case <-ticker.C:
			if !s.writePingMessage() {
				return
			}

		case <-heartbeat.C:
			if !s.writeQueuedMessage(heartbeatFrame, true) {
				return
			}
		}
	}
}

// writeQueuedMessage writes one frame pulled from the send channel.
// Returns true if the WritePump loop should continue, false if it should terminate.
func (s *Session) writeQueuedMessage(frame []byte, ok bool) bool {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		s.log().Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		if err := s.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
			s.log().Debug().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		s.log().Error().Err(err).Msg("Error writing frame")
		return false
	}

	return true
}

// writePingMessage sends a periodic WebSocket Ping message.
// Returns false if the WritePump loop should terminate due to write failure.
func (s *Session) writePingMessage() bool {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		s.log().Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		s.log().Error().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}
