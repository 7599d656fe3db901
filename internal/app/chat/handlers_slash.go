package chat

import (
	"context"
	"fmt"

	"originchats/internal/app/channel"
	"originchats/internal/app/message"
	"originchats/internal/app/slash"
	"originchats/internal/pkg/errs"
)

type slashRegisterRequest struct {
	Commands []slash.Command `json:"commands" validate:"required"`
}

func (s *Server) slashRegister(_ context.Context, c *call) (*Result, error) {
	var req slashRegisterRequest
	if err := s.bind(c, &req); err != nil {
		return nil, err
	}

	names, err := s.slash.Register(c.userID, req.Commands)
	if err != nil {
		return nil, err
	}

	c.session.log().Info().Strs("commands", names).Msg("Slash commands registered")
	return c.reply(Packet{"cmd": CmdSlashRegister, "commands": names}), nil
}

func (s *Server) slashList(_ context.Context, c *call) (*Result, error) {
	return c.reply(Packet{"cmd": CmdSlashList, "commands": s.slash.List()}), nil
}

type slashCallRequest struct {
	Channel string         `json:"channel" validate:"required"`
	Command string         `json:"command" validate:"required"`
	Args    map[string]any `json:"args"`
}

func (s *Server) slashCall(ctx context.Context, c *call) (*Result, error) {
	var req slashCallRequest
	if err := s.bind(c, &req); err != nil {
		return nil, err
	}

	ch, roles, err := s.authorize(ctx, c, req.Channel, channel.PermSend)
	if err != nil {
		return nil, err
	}
	entry, err := s.slash.Get(req.Command)
	if err != nil {
		return nil, err
	}
	if err := slash.Authorize(entry.Command, roles); err != nil {
		return nil, err
	}
	if err := s.admit(c); err != nil {
		return nil, err
	}
	if req.Args == nil {
		req.Args = map[string]any{}
	}
	if err := slash.ValidateArgs(entry.Command, req.Args); err != nil {
		return nil, err
	}
	if len(s.hub.SessionsOf(entry.Owner)) == 0 {
		return nil, errs.NewError(errs.ErrHandlerOffline, entry.Name)
	}

	inv := s.slash.Invoke(entry, c.userID, c.session.ID(), ch.Name, req.Args)

	return new(Result).deliver(
		Delivery{
			Scope:  ScopeUser,
			UserID: entry.Owner,
			Packet: Packet{
				"cmd":        cmdSlashInvoke,
				"invocation": inv.ID,
				"command":    inv.Command,
				"args":       inv.Args,
				"channel":    inv.Channel,
				"user":       c.username,
			},
		},
		c.toSelf(Packet{
			"cmd":        CmdSlashCall,
			"invocation": inv.ID,
			"command":    inv.Command,
			"channel":    inv.Channel,
			"val":        "sent",
		}),
	), nil
}

type slashResponseRequest struct {
	Invocation string `json:"invocation" validate:"required"`
	Content    string `json:"content" validate:"required"`
}

func (s *Server) slashResponse(ctx context.Context, c *call) (*Result, error) {
	var req slashResponseRequest
	if err := s.bind(c, &req); err != nil {
		return nil, err
	}

	inv, err := s.slash.Resolve(req.Invocation, c.userID)
	if err != nil {
		return nil, err
	}
	content, err := s.checkContent(req.Content)
	if err != nil {
		return nil, err
	}

	ack := c.toSelf(Packet{"cmd": CmdSlashResponse, "invocation": inv.ID, "val": "delivered"})

	if inv.Ephemeral {
		res := new(Result)
		if target := s.hub.SessionByID(inv.SessionID); target != nil {
			res.deliver(Delivery{
				Scope:   ScopeSession,
				Session: target,
				Packet: Packet{
					"cmd":        CmdSlashResponse,
					"invocation": inv.ID,
					"command":    inv.Command,
					"channel":    inv.Channel,
					"content":    content,
					"user":       c.username,
				},
			})
		}
		return res.deliver(ack), nil
	}

	ch, err := s.channels.Get(ctx, inv.Channel)
	if err != nil {
		return nil, err
	}
	stored, err := s.messages.Append(ctx, ch.Name, message.Message{
		User:    c.userID,
		Content: content,
		Type:    message.TypeSlashResponse,
	})
	if err != nil {
		return nil, errs.Internal(err)
	}

	res, err := s.broadcastMessage(ctx, ch, stored)
	if err != nil {
		return nil, err
	}
	return res.deliver(ack), nil
}

func (s *Server) pluginsList(ctx context.Context, c *call) (*Result, error) {
	if _, err := s.requireOwner(ctx, c); err != nil {
		return nil, err
	}
	return c.reply(Packet{"cmd": CmdPluginsList, "plugins": s.plugins.List()}), nil
}

type pluginsReloadRequest struct {
	Plugin string `json:"plugin"`
}

func (s *Server) pluginsReload(ctx context.Context, c *call) (*Result, error) {
	var req pluginsReloadRequest
	if err := s.bind(c, &req); err != nil {
		return nil, err
	}
	if _, err := s.requireOwner(ctx, c); err != nil {
		return nil, err
	}

	reloaded, err := s.plugins.Reload(req.Plugin)
	if err != nil {
		return nil, err
	}

	val := "All plugins reloaded successfully"
	if req.Plugin != "" {
		val = fmt.Sprintf("Plugin '%s' reloaded successfully", req.Plugin)
	}
	c.session.log().Info().Strs("plugins", reloaded).Msg("Plugins reloaded")
	return c.reply(Packet{"cmd": CmdPluginsReload, "val": val}), nil
}
