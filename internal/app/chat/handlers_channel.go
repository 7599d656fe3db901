package chat

import (
	"context"

	"originchats/internal/app/channel"
	"originchats/internal/pkg/errs"
)

func (s *Server) channelsGet(ctx context.Context, c *call) (*Result, error) {
	roles, err := s.rolesOf(ctx, c)
	if err != nil {
		return nil, err
	}
	views, err := s.channels.Visible(ctx, roles)
	if err != nil {
		return nil, errs.Internal(err)
	}
	return c.reply(Packet{"cmd": CmdChannelsGet, "val": views}), nil
}

type channelCreateRequest struct {
	Name        string                          `json:"name" validate:"required"`
	Type        channel.Type                    `json:"type" validate:"required"`
	Description string                          `json:"description"`
	Wallpaper   string                          `json:"wallpaper"`
	Permissions map[channel.Permission][]string `json:"permissions"`
	Size        int                             `json:"size" validate:"gte=0"`
}

func (s *Server) channelCreate(ctx context.Context, c *call) (*Result, error) {
	var req channelCreateRequest
	if err := s.bind(c, &req); err != nil {
		return nil, err
	}
	if _, err := s.requireOwner(ctx, c); err != nil {
		return nil, err
	}

	view, err := s.channels.Create(ctx, channel.Channel{
		Name:        req.Name,
		Type:        req.Type,
		Description: req.Description,
		Wallpaper:   req.Wallpaper,
		Permissions: req.Permissions,
		Size:        req.Size,
	})
	if err != nil {
		return nil, err
	}

	c.session.log().Info().Str("channel", view.Name).Str("type", string(view.Type)).Msg("Channel created")
	return new(Result).deliver(Delivery{
		Scope:   ScopeChannel,
		Channel: &view.Channel,
		Packet: Packet{
			"cmd":     CmdChannelCreate,
			"channel": view,
			"global":  true,
		},
	}), nil
}

type channelUpdateRequest struct {
	Name        string                          `json:"name" validate:"required"`
	NewName     *string                         `json:"new_name"`
	Description *string                         `json:"description"`
	Wallpaper   *string                         `json:"wallpaper"`
	Permissions map[channel.Permission][]string `json:"permissions"`
	Size        *int                            `json:"size" validate:"omitnil,gte=0"`
}

func (s *Server) channelUpdate(ctx context.Context, c *call) (*Result, error) {
	var req channelUpdateRequest
	if err := s.bind(c, &req); err != nil {
		return nil, err
	}
	if _, err := s.requireOwner(ctx, c); err != nil {
		return nil, err
	}

	view, err := s.channels.Update(ctx, req.Name, channel.Patch{
		NewName:     req.NewName,
		Description: req.Description,
		Wallpaper:   req.Wallpaper,
		Permissions: req.Permissions,
		Size:        req.Size,
	})
	if err != nil {
		return nil, err
	}

	res := new(Result)
	if view.Name != req.Name {
		if err := s.messages.Rename(ctx, req.Name, view.Name); err != nil {
			return nil, errs.Internal(err)
		}
		s.evictVoice(res, req.Name)
	}

	return res.deliver(Delivery{
		Scope:   ScopeChannel,
		Channel: &view.Channel,
		Packet: Packet{
			"cmd":     CmdChannelUpdate,
			"name":    req.Name,
			"channel": view,
			"global":  true,
		},
	}), nil
}

type channelMoveRequest struct {
	Name     string `json:"name" validate:"required"`
	Position *int   `json:"position" validate:"required"`
}

func (s *Server) channelMove(ctx context.Context, c *call) (*Result, error) {
	var req channelMoveRequest
	if err := s.bind(c, &req); err != nil {
		return nil, err
	}
	if _, err := s.requireOwner(ctx, c); err != nil {
		return nil, err
	}

	view, err := s.channels.Move(ctx, req.Name, *req.Position)
	if err != nil {
		return nil, err
	}

	return new(Result).deliver(Delivery{
		Scope:   ScopeChannel,
		Channel: &view.Channel,
		Packet: Packet{
			"cmd":      CmdChannelMove,
			"name":     view.Name,
			"position": view.Position,
			"global":   true,
		},
	}), nil
}

type nameRequest struct {
	Name string `json:"name" validate:"required"`
}

func (s *Server) channelDelete(ctx context.Context, c *call) (*Result, error) {
	var req nameRequest
	if err := s.bind(c, &req); err != nil {
		return nil, err
	}
	if _, err := s.requireOwner(ctx, c); err != nil {
		return nil, err
	}

	removed, err := s.channels.Delete(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	if err := s.messages.Drop(ctx, removed.Name); err != nil {
		c.session.log().Error().Err(err).Str("channel", removed.Name).Msg("Failed to drop message log of deleted channel")
	}

	res := new(Result)
	s.evictVoice(res, removed.Name)

	// Viewers are resolved against the definition the channel had before deletion.
	return res.deliver(Delivery{
		Scope:   ScopeChannel,
		Channel: &removed,
		Packet: Packet{
			"cmd":    CmdChannelDelete,
			"name":   removed.Name,
			"global": true,
		},
	}), nil
}

// evictVoice empties the voice roster of a renamed or deleted channel and tells the
// evicted members.
func (s *Server) evictVoice(res *Result, name string) {
	roster := s.voice.Evict(name)
	if len(roster.Members) == 0 {
		return
	}

	ids := roster.UserIDs()
	for _, id := range ids {
		for _, sess := range s.hub.SessionsOf(id) {
			if joined, _ := sess.Voice(); joined == name {
				sess.setVoice("", "")
			}
		}
	}
	for _, m := range roster.Members {
		res.deliver(Delivery{
			Scope:   ScopeVoice,
			Members: ids,
			Packet: Packet{
				"cmd":      cmdVoiceUserLeft,
				"channel":  name,
				"username": m.Username,
			},
		})
	}
}
