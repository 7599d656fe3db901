package chat

import (
	"context"

	"originchats/internal/app/plugin"
	"originchats/internal/pkg/errs"
)

func (s *Server) ping(_ context.Context, c *call) (*Result, error) {
	return c.reply(Packet{"cmd": cmdPong, "val": "pong"}), nil
}

type authRequest struct {
	Validator string `json:"validator" validate:"required"`
}

// authenticate validates the token with the identity provider, refuses banned users
// and then creates or refreshes the stored user.
func (s *Server) authenticate(ctx context.Context, c *call) (*Result, error) {
	if c.session.Authenticated() {
		return nil, errs.NewError(errs.ErrAlreadyAuthenticated)
	}

	var req authRequest
	if err := s.bind(c, &req); err != nil {
		return nil, err
	}
	if s.validator == nil {
		return nil, errs.NewError(errs.ErrAuthUnavailable)
	}

	identity, err := s.validator.Validate(ctx, req.Validator)
	if err != nil {
		return nil, err
	}

	existing, ok, err := s.users.Get(ctx, identity.ID)
	if err != nil {
		return nil, errs.Internal(err)
	}
	if ok && existing.Banned() {
		c.session.log().Info().Str("user_id", identity.ID).Msg("Banned user refused")
		return nil, errs.NewError(errs.ErrBanned)
	}

	u, err := s.users.Ensure(ctx, identity.ID, identity.Username)
	if err != nil {
		return nil, err
	}
	c.session.authenticate(u.ID, u.Username, u.Roles)

	profile, err := s.users.Profile(ctx, u)
	if err != nil {
		return nil, errs.Internal(err)
	}

	c.session.log().Info().Str("username", u.Username).Msg("Session authenticated")
	return new(Result).
		deliver(
			c.toSelf(Packet{"cmd": cmdAuthSuccess, "val": valAuthSuccess}),
			c.toSelf(Packet{"cmd": cmdReady, "user": profile}),
			Delivery{Scope: ScopeGlobal, Packet: Packet{"cmd": cmdUserConnect, "user": profile}},
		).
		emit(plugin.Event{Name: plugin.EventUserConnect, UserID: u.ID, Username: u.Username}), nil
}
