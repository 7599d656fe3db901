package chat

import (
	"context"

	"originchats/internal/app/channel"
	"originchats/internal/app/message"
	"originchats/internal/app/plugin"
	"originchats/internal/pkg/errs"
)

type messageNewRequest struct {
	Channel string `json:"channel" validate:"required"`
	Content string `json:"content" validate:"required"`
	ReplyTo string `json:"reply_to"`
}

func (s *Server) messageNew(ctx context.Context, c *call) (*Result, error) {
	var req messageNewRequest
	if err := s.bind(c, &req); err != nil {
		return nil, err
	}

	ch, roles, err := s.authorize(ctx, c, req.Channel, channel.PermSend)
	if err != nil {
		return nil, err
	}
	if !ch.Type.HoldsMessages() {
		return nil, errs.NewError(errs.ErrChannelNoMessages, ch.Name)
	}
	if err := s.admit(c); err != nil {
		return nil, err
	}

	content, err := s.checkContent(req.Content)
	if err != nil {
		return nil, err
	}

	msg := message.Message{User: c.userID, Content: content}
	if req.ReplyTo != "" {
		target, err := s.messages.Get(ctx, ch.Name, req.ReplyTo)
		if err != nil {
			return nil, errs.NewError(errs.ErrReplyTargetNotFound)
		}
		msg.ReplyTo = &message.ReplyRef{ID: target.ID, User: target.User}
	}

	stored, err := s.messages.Append(ctx, ch.Name, msg)
	if err != nil {
		return nil, errs.Internal(err)
	}

	res, err := s.broadcastMessage(ctx, ch, stored)
	if err != nil {
		return nil, err
	}
	return res.emit(c.event(plugin.EventNewMessage, ch.Name, map[string]any{
		"id":      stored.ID,
		"content": stored.Content,
		"roles":   roles,
	})), nil
}

// broadcastMessage announces a stored message to the channel's viewers.
func (s *Server) broadcastMessage(ctx context.Context, ch *channel.Channel, m message.Message) (*Result, error) {
	names, err := s.names(ctx)
	if err != nil {
		return nil, err
	}
	return new(Result).deliver(Delivery{
		Scope:   ScopeChannel,
		Channel: ch,
		Packet: Packet{
			"cmd":     CmdMessageNew,
			"message": message.Display(m, names),
			"channel": ch.Name,
			"global":  true,
		},
	}), nil
}

type messageEditRequest struct {
	Channel string `json:"channel" validate:"required"`
	ID      string `json:"id" validate:"required"`
	Content string `json:"content" validate:"required"`
}

func (s *Server) messageEdit(ctx context.Context, c *call) (*Result, error) {
	var req messageEditRequest
	if err := s.bind(c, &req); err != nil {
		return nil, err
	}

	ch, err := s.channels.Get(ctx, req.Channel)
	if err != nil {
		return nil, err
	}
	existing, err := s.messages.Get(ctx, ch.Name, req.ID)
	if err != nil {
		return nil, err
	}
	if existing.User != c.userID {
		return nil, errs.NewError(errs.ErrEditOthersUnsupported)
	}
	if _, _, err := s.authorize(ctx, c, ch.Name, channel.PermEditOwn); err != nil {
		return nil, err
	}
	if err := s.admit(c); err != nil {
		return nil, err
	}

	content, err := s.checkContent(req.Content)
	if err != nil {
		return nil, err
	}

	edited, err := s.messages.Edit(ctx, ch.Name, req.ID, content)
	if err != nil {
		return nil, err
	}
	names, err := s.names(ctx)
	if err != nil {
		return nil, err
	}

	return new(Result).
		deliver(Delivery{
			Scope:   ScopeChannel,
			Channel: ch,
			Packet: Packet{
				"cmd":     CmdMessageEdit,
				"id":      edited.ID,
				"content": edited.Content,
				"message": message.Display(edited, names),
				"channel": ch.Name,
				"global":  true,
			},
		}).
		emit(c.event(plugin.EventMessageEdit, ch.Name, map[string]any{
			"id":      edited.ID,
			"content": edited.Content,
		})), nil
}

type messageRefRequest struct {
	Channel string `json:"channel" validate:"required"`
	ID      string `json:"id" validate:"required"`
}

func (s *Server) messageDelete(ctx context.Context, c *call) (*Result, error) {
	var req messageRefRequest
	if err := s.bind(c, &req); err != nil {
		return nil, err
	}

	ch, err := s.channels.Get(ctx, req.Channel)
	if err != nil {
		return nil, err
	}
	existing, err := s.messages.Get(ctx, ch.Name, req.ID)
	if err != nil {
		return nil, err
	}

	kind := channel.PermDelete
	if existing.User == c.userID {
		kind = channel.PermDeleteOwn
	}
	if _, _, err := s.authorize(ctx, c, ch.Name, kind); err != nil {
		return nil, err
	}

	if _, err := s.messages.Delete(ctx, ch.Name, req.ID); err != nil {
		return nil, err
	}

	return new(Result).
		deliver(deleteDelivery(ch, req.ID)).
		emit(c.event(plugin.EventMessageDelete, ch.Name, map[string]any{"id": req.ID})), nil
}

func deleteDelivery(ch *channel.Channel, id string) Delivery {
	return Delivery{
		Scope:   ScopeChannel,
		Channel: ch,
		Packet: Packet{
			"cmd":     CmdMessageDelete,
			"id":      id,
			"channel": ch.Name,
			"global":  true,
		},
	}
}

func (s *Server) messagePin(ctx context.Context, c *call) (*Result, error) {
	return s.setPinned(ctx, c, true)
}

func (s *Server) messageUnpin(ctx context.Context, c *call) (*Result, error) {
	return s.setPinned(ctx, c, false)
}

func (s *Server) setPinned(ctx context.Context, c *call, pinned bool) (*Result, error) {
	var req messageRefRequest
	if err := s.bind(c, &req); err != nil {
		return nil, err
	}

	ch, _, err := s.authorize(ctx, c, req.Channel, channel.PermPin)
	if err != nil {
		return nil, err
	}
	m, err := s.messages.SetPinned(ctx, ch.Name, req.ID, pinned)
	if err != nil {
		return nil, err
	}

	event := plugin.EventMessagePin
	if !pinned {
		event = plugin.EventMessageUnpin
	}
	return new(Result).
		deliver(Delivery{
			Scope:   ScopeChannel,
			Channel: ch,
			Packet: Packet{
				"cmd":     c.cmd,
				"id":      m.ID,
				"channel": ch.Name,
				"pinned":  m.Pinned,
				"global":  true,
			},
		}).
		emit(c.event(event, ch.Name, map[string]any{"id": m.ID})), nil
}

type reactionRequest struct {
	Channel string `json:"channel" validate:"required"`
	ID      string `json:"id" validate:"required"`
	Emoji   string `json:"emoji" validate:"required"`
}

func (s *Server) messageReactAdd(ctx context.Context, c *call) (*Result, error) {
	return s.react(ctx, c, s.messages.AddReaction)
}

func (s *Server) messageReactRemove(ctx context.Context, c *call) (*Result, error) {
	return s.react(ctx, c, s.messages.RemoveReaction)
}

type reactionFunc func(ctx context.Context, channel, id, emoji, userID string) (message.Message, error)

func (s *Server) react(ctx context.Context, c *call, apply reactionFunc) (*Result, error) {
	var req reactionRequest
	if err := s.bind(c, &req); err != nil {
		return nil, err
	}

	ch, _, err := s.authorize(ctx, c, req.Channel, channel.PermReact)
	if err != nil {
		return nil, err
	}
	if err := s.admit(c); err != nil {
		return nil, err
	}
	if _, err := apply(ctx, ch.Name, req.ID, req.Emoji, c.userID); err != nil {
		return nil, err
	}

	return new(Result).deliver(Delivery{
		Scope:   ScopeChannel,
		Channel: ch,
		Packet: Packet{
			"cmd":     c.cmd,
			"id":      req.ID,
			"emoji":   req.Emoji,
			"channel": ch.Name,
			"from":    c.username,
			"global":  true,
		},
	}), nil
}

type messagesGetRequest struct {
	Channel string         `json:"channel" validate:"required"`
	Start   message.Cursor `json:"start"`
	Limit   int            `json:"limit" validate:"gte=0"`
}

func (s *Server) messagesGet(ctx context.Context, c *call) (*Result, error) {
	var req messagesGetRequest
	if err := s.bind(c, &req); err != nil {
		return nil, err
	}

	ch, err := s.readable(ctx, c, req.Channel)
	if err != nil {
		return nil, err
	}
	msgs, err := s.messages.List(ctx, ch.Name, req.Start, req.Limit)
	if err != nil {
		return nil, errs.Internal(err)
	}
	names, err := s.names(ctx)
	if err != nil {
		return nil, err
	}

	return c.reply(Packet{
		"cmd":      CmdMessagesGet,
		"channel":  ch.Name,
		"messages": message.DisplayAll(msgs, names),
	}), nil
}

// readable loads a message-holding channel the caller may view.
func (s *Server) readable(ctx context.Context, c *call, name string) (*channel.Channel, error) {
	ch, _, err := s.authorize(ctx, c, name, channel.PermView)
	if err != nil {
		return nil, err
	}
	if !ch.Type.HoldsMessages() {
		return nil, errs.NewError(errs.ErrChannelNoMessages, ch.Name)
	}
	return ch, nil
}

func (s *Server) messageGet(ctx context.Context, c *call) (*Result, error) {
	var req messageRefRequest
	if err := s.bind(c, &req); err != nil {
		return nil, err
	}

	ch, err := s.readable(ctx, c, req.Channel)
	if err != nil {
		return nil, err
	}
	m, err := s.messages.Get(ctx, ch.Name, req.ID)
	if err != nil {
		return nil, err
	}
	names, err := s.names(ctx)
	if err != nil {
		return nil, err
	}

	return c.reply(Packet{
		"cmd":     CmdMessageGet,
		"channel": ch.Name,
		"message": message.Display(m, names),
	}), nil
}

type repliesRequest struct {
	Channel string `json:"channel" validate:"required"`
	ID      string `json:"id" validate:"required"`
	Limit   int    `json:"limit" validate:"gte=0"`
}

func (s *Server) messageReplies(ctx context.Context, c *call) (*Result, error) {
	var req repliesRequest
	if err := s.bind(c, &req); err != nil {
		return nil, err
	}

	ch, err := s.readable(ctx, c, req.Channel)
	if err != nil {
		return nil, err
	}
	replies, err := s.messages.Replies(ctx, ch.Name, req.ID, req.Limit)
	if err != nil {
		return nil, err
	}
	names, err := s.names(ctx)
	if err != nil {
		return nil, err
	}

	return c.reply(Packet{
		"cmd":        CmdMessageReplies,
		"channel":    ch.Name,
		"message_id": req.ID,
		"replies":    message.DisplayAll(replies, names),
	}), nil
}

type channelRequest struct {
	Channel string `json:"channel" validate:"required"`
}

func (s *Server) messagesPinned(ctx context.Context, c *call) (*Result, error) {
	var req channelRequest
	if err := s.bind(c, &req); err != nil {
		return nil, err
	}

	ch, err := s.readable(ctx, c, req.Channel)
	if err != nil {
		return nil, err
	}
	pinned, err := s.messages.Pinned(ctx, ch.Name)
	if err != nil {
		return nil, errs.Internal(err)
	}
	names, err := s.names(ctx)
	if err != nil {
		return nil, err
	}

	return c.reply(Packet{
		"cmd":      CmdMessagesPinned,
		"channel":  ch.Name,
		"messages": message.DisplayAll(pinned, names),
	}), nil
}

type searchRequest struct {
	Channel string `json:"channel" validate:"required"`
	Query   string `json:"query" validate:"required"`
}

func (s *Server) messagesSearch(ctx context.Context, c *call) (*Result, error) {
	var req searchRequest
	if err := s.bind(c, &req); err != nil {
		return nil, err
	}

	ch, err := s.readable(ctx, c, req.Channel)
	if err != nil {
		return nil, err
	}
	results, err := s.messages.Search(ctx, ch.Name, req.Query)
	if err != nil {
		return nil, errs.Internal(err)
	}
	names, err := s.names(ctx)
	if err != nil {
		return nil, err
	}

	return c.reply(Packet{
		"cmd":     CmdMessagesSearch,
		"channel": ch.Name,
		"query":   req.Query,
		"results": message.DisplayAll(results, names),
	}), nil
}

type purgeRequest struct {
	Channel string `json:"channel" validate:"required"`
	Count   int    `json:"count" validate:"required,gt=0"`
}

func (s *Server) messagesPurge(ctx context.Context, c *call) (*Result, error) {
	var req purgeRequest
	if err := s.bind(c, &req); err != nil {
		return nil, err
	}
	if _, err := s.requireOwner(ctx, c); err != nil {
		return nil, err
	}

	ch, err := s.channels.Get(ctx, req.Channel)
	if err != nil {
		return nil, err
	}
	if err := s.messages.Purge(ctx, ch.Name, req.Count); err != nil {
		return nil, err
	}

	return new(Result).deliver(Delivery{
		Scope:   ScopeChannel,
		Channel: ch,
		Packet: Packet{
			"cmd":     CmdMessagesPurge,
			"channel": ch.Name,
			"count":   req.Count,
			"global":  true,
		},
	}), nil
}

func (s *Server) typing(ctx context.Context, c *call) (*Result, error) {
	var req channelRequest
	if err := s.bind(c, &req); err != nil {
		return nil, err
	}

	ch, _, err := s.authorize(ctx, c, req.Channel, channel.PermSend)
	if err != nil {
		return nil, err
	}
	if err := s.admit(c); err != nil {
		return nil, err
	}

	return new(Result).
		deliver(Delivery{
			Scope:   ScopeChannel,
			Channel: ch,
			Packet: Packet{
				"cmd":     CmdTyping,
				"user":    c.username,
				"channel": ch.Name,
				"global":  true,
			},
		}).
		emit(c.event(plugin.EventTyping, ch.Name, nil)), nil
}
