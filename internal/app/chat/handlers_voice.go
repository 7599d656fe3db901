package chat

import (
	"context"
	"slices"

	"originchats/internal/app/channel"
	"originchats/internal/app/plugin"
	"originchats/internal/app/voice"
	"originchats/internal/pkg/errs"
)

type voiceJoinRequest struct {
	Channel string `json:"channel" validate:"required"`
	PeerID  string `json:"peer_id" validate:"required"`
}

func (s *Server) voiceJoin(ctx context.Context, c *call) (*Result, error) {
	var req voiceJoinRequest
	if err := s.bind(c, &req); err != nil {
		return nil, err
	}
	ch, err := s.voiceChannel(ctx, c, req.Channel)
	if err != nil {
		return nil, err
	}

	dep, roster := s.voice.Join(ch.Name, c.userID, c.username, req.PeerID)

	res := new(Result)
	if dep != nil {
		res.deliver(s.departureDelivery(ctx, dep))
		res.emit(voiceEvent(plugin.EventVoiceLeave, c.userID, c.username, dep.Channel))
	}

	for _, sess := range s.hub.SessionsOf(c.userID) {
		if sess != c.session {
			sess.setVoice("", "")
		}
	}
	c.session.setVoice(ch.Name, req.PeerID)

	member := roster.Members[slices.IndexFunc(roster.Members, func(m voice.Member) bool {
		return m.UserID == c.userID
	})]

	c.session.log().Info().Str("channel", ch.Name).Int("participants", len(roster.Members)).Msg("Joined voice channel")
	return res.
		deliver(
			c.toSelf(Packet{
				"cmd":          CmdVoiceJoin,
				"channel":      ch.Name,
				"participants": roster.Members,
			}),
			Delivery{
				Scope:   ScopeVoice,
				Channel: ch,
				Members: roster.UserIDs(),
				Packet:  Packet{"cmd": cmdVoiceUserJoined, "channel": ch.Name, "user": member},
				Viewer:  Packet{"cmd": cmdVoiceUserJoined, "channel": ch.Name, "user": member.Public()},
			},
		).
		emit(voiceEvent(plugin.EventVoiceJoin, c.userID, c.username, ch.Name)), nil
}

func (s *Server) voiceLeave(ctx context.Context, c *call) (*Result, error) {
	dep := s.voice.Leave(c.userID)
	if dep == nil {
		return nil, errs.NewError(errs.ErrNotInVoice)
	}
	for _, sess := range s.hub.SessionsOf(c.userID) {
		sess.setVoice("", "")
	}

	return new(Result).
		deliver(
			c.toSelf(Packet{"cmd": CmdVoiceLeave, "channel": dep.Channel}),
			s.departureDelivery(ctx, dep),
		).
		emit(voiceEvent(plugin.EventVoiceLeave, c.userID, c.username, dep.Channel)), nil
}

func (s *Server) voiceMute(ctx context.Context, c *call) (*Result, error) {
	return s.setMuted(ctx, c, true)
}

func (s *Server) voiceUnmute(ctx context.Context, c *call) (*Result, error) {
	return s.setMuted(ctx, c, false)
}

func (s *Server) setMuted(ctx context.Context, c *call, muted bool) (*Result, error) {
	member, roster, err := s.voice.SetMuted(c.userID, muted)
	if err != nil {
		return nil, err
	}

	d := Delivery{
		Scope:   ScopeVoice,
		Members: roster.UserIDs(),
		Packet:  Packet{"cmd": cmdVoiceUserUpdated, "channel": roster.Channel, "user": member},
	}
	if ch, err := s.channels.Get(ctx, roster.Channel); err == nil {
		d.Channel = ch
		d.Viewer = Packet{"cmd": cmdVoiceUserUpdated, "channel": roster.Channel, "user": member.Public()}
	}

	return new(Result).deliver(
		c.toSelf(Packet{"cmd": c.cmd, "channel": roster.Channel, "muted": muted}),
		d,
	), nil
}

func (s *Server) voiceState(ctx context.Context, c *call) (*Result, error) {
	var req channelRequest
	if err := s.bind(c, &req); err != nil {
		return nil, err
	}
	ch, err := s.voiceChannel(ctx, c, req.Channel)
	if err != nil {
		return nil, err
	}

	roster := s.voice.Roster(ch.Name)
	participants := roster.Public()
	if slices.Contains(roster.UserIDs(), c.userID) {
		participants = roster.Members
	}

	return c.reply(Packet{
		"cmd":          CmdVoiceState,
		"channel":      ch.Name,
		"participants": participants,
	}), nil
}

// voiceChannel loads name, requires the view permission and a voice channel type.
func (s *Server) voiceChannel(ctx context.Context, c *call, name string) (*channel.Channel, error) {
	ch, _, err := s.authorize(ctx, c, name, channel.PermView)
	if err != nil {
		return nil, err
	}
	if ch.Type != channel.TypeVoice {
		return nil, errs.NewError(errs.ErrChannelNotVoice, ch.Name)
	}
	return ch, nil
}

// departureDelivery announces dep to the members the channel had before the departure,
// the leaver included, and to the channel's viewers.
func (s *Server) departureDelivery(ctx context.Context, dep *voice.Departure) Delivery {
	p := Packet{
		"cmd":      cmdVoiceUserLeft,
		"channel":  dep.Channel,
		"username": dep.Member.Username,
	}
	d := Delivery{Scope: ScopeVoice, Members: dep.Before.UserIDs(), Packet: p}
	if ch, err := s.channels.Get(ctx, dep.Channel); err == nil {
		d.Channel = ch
		d.Viewer = p
	}
	return d
}

func (s *Server) deliverDeparture(ctx context.Context, dep *voice.Departure) {
	s.hub.Deliver(ctx, s.departureDelivery(ctx, dep))
}

func voiceEvent(name, userID, username, channelName string) plugin.Event {
	return plugin.Event{
		Name:     name,
		UserID:   userID,
		Username: username,
		Channel:  channelName,
	}
}
