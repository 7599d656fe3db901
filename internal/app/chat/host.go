package chat

import (
	"context"

	"originchats/internal/app/message"
	"originchats/internal/app/plugin"
	"originchats/internal/app/user"
)

var _ plugin.Host = (*Server)(nil)

// DeleteMessage removes a message on behalf of a plugin and tells the channel's viewers.
func (s *Server) DeleteMessage(ctx context.Context, channelName, id string) error {
	ch, err := s.channels.Get(ctx, channelName)
	if err != nil {
		return err
	}
	if _, err := s.messages.Delete(ctx, ch.Name, id); err != nil {
		return err
	}
	s.hub.Deliver(ctx, deleteDelivery(ch, id))
	return nil
}

// TimeoutUser blocks userID for seconds and notifies its sessions. It is a no-op when
// rate limiting is disabled.
func (s *Server) TimeoutUser(ctx context.Context, userID string, seconds float64, reason string) error {
	if !s.gate.Enabled() {
		s.logger.Debug().Str("user_id", userID).Msg("Timeout skipped, rate limiter disabled")
		return nil
	}
	s.gate.SetUserTimeout(userID, seconds)
	s.hub.Deliver(ctx, timeoutDelivery(userID, reason, seconds))
	return nil
}

// PostSystemMessage appends a message authored by the server itself.
func (s *Server) PostSystemMessage(ctx context.Context, channelName, content string) error {
	ch, err := s.channels.Get(ctx, channelName)
	if err != nil {
		return err
	}
	stored, err := s.messages.Append(ctx, ch.Name, message.Message{
		User:    user.SystemAuthor,
		Content: content,
	})
	if err != nil {
		return err
	}

	res, err := s.broadcastMessage(ctx, ch, stored)
	if err != nil {
		return err
	}
	for _, d := range res.Deliveries {
		s.hub.Deliver(ctx, d)
	}
	return nil
}
