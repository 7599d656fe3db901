package chat

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"originchats/internal/app/plugin"
	"originchats/internal/app/user"
	"originchats/internal/pkg/errs"
)

type roleRequest struct {
	Name        string  `json:"name" validate:"required"`
	Color       *string `json:"color" validate:"omitnil,hexcolor"`
	Description *string `json:"description"`
}

func (s *Server) roleCreate(ctx context.Context, c *call) (*Result, error) {
	var req roleRequest
	if err := s.bind(c, &req); err != nil {
		return nil, err
	}
	if _, err := s.requireOwner(ctx, c); err != nil {
		return nil, err
	}

	role := user.Role{Name: req.Name}
	if req.Color != nil {
		role.Color = *req.Color
	}
	if req.Description != nil {
		role.Description = *req.Description
	}
	created, err := s.users.CreateRole(ctx, role)
	if err != nil {
		return nil, err
	}

	return new(Result).deliver(Delivery{
		Scope:  ScopeGlobal,
		Packet: Packet{"cmd": CmdRoleCreate, "role": created, "global": true},
	}), nil
}

func (s *Server) roleUpdate(ctx context.Context, c *call) (*Result, error) {
	var req roleRequest
	if err := s.bind(c, &req); err != nil {
		return nil, err
	}
	if _, err := s.requireOwner(ctx, c); err != nil {
		return nil, err
	}

	updated, err := s.users.UpdateRole(ctx, req.Name, req.Color, req.Description)
	if err != nil {
		return nil, err
	}

	return new(Result).deliver(Delivery{
		Scope:  ScopeGlobal,
		Packet: Packet{"cmd": CmdRoleUpdate, "role": updated, "global": true},
	}), nil
}

func (s *Server) roleDelete(ctx context.Context, c *call) (*Result, error) {
	var req nameRequest
	if err := s.bind(c, &req); err != nil {
		return nil, err
	}
	if _, err := s.requireOwner(ctx, c); err != nil {
		return nil, err
	}

	if err := s.users.DeleteRole(ctx, req.Name); err != nil {
		return nil, err
	}
	s.hub.ResetRoles()

	return new(Result).deliver(Delivery{
		Scope:  ScopeGlobal,
		Packet: Packet{"cmd": CmdRoleDelete, "name": req.Name, "global": true},
	}), nil
}

func (s *Server) rolesList(ctx context.Context, c *call) (*Result, error) {
	if _, err := s.requireOwner(ctx, c); err != nil {
		return nil, err
	}
	roles, err := s.users.Roles(ctx)
	if err != nil {
		return nil, errs.Internal(err)
	}
	return c.reply(Packet{"cmd": CmdRolesList, "roles": roles}), nil
}

type userRoleRequest struct {
	User string `json:"user" validate:"required"`
	Role string `json:"role" validate:"required"`
}

func (s *Server) userRoleAdd(ctx context.Context, c *call) (*Result, error) {
	return s.changeUserRole(ctx, c, s.users.AddRole)
}

func (s *Server) userRoleRemove(ctx context.Context, c *call) (*Result, error) {
	return s.changeUserRole(ctx, c, s.users.RemoveRole)
}

type roleChange func(ctx context.Context, id, role string) (user.User, error)

func (s *Server) changeUserRole(ctx context.Context, c *call, change roleChange) (*Result, error) {
	var req userRoleRequest
	if err := s.bind(c, &req); err != nil {
		return nil, err
	}
	if _, err := s.requireOwner(ctx, c); err != nil {
		return nil, err
	}

	target, err := s.users.Lookup(ctx, req.User)
	if err != nil {
		return nil, err
	}
	updated, err := change(ctx, target.ID, req.Role)
	if err != nil {
		return nil, err
	}
	s.hub.SetRoles(updated.ID, updated.Roles)

	profile, err := s.users.Profile(ctx, updated)
	if err != nil {
		return nil, errs.Internal(err)
	}
	return new(Result).deliver(Delivery{
		Scope: ScopeGlobal,
		Packet: Packet{
			"cmd":    cmdUserRoles,
			"user":   profile.Username,
			"roles":  profile.Roles,
			"color":  profile.Color,
			"global": true,
		},
	}), nil
}

type userRequest struct {
	User string `json:"user" validate:"required"`
}

func (s *Server) userBan(ctx context.Context, c *call) (*Result, error) {
	var req userRequest
	if err := s.bind(c, &req); err != nil {
		return nil, err
	}
	if _, err := s.requireOwner(ctx, c); err != nil {
		return nil, err
	}

	target, err := s.users.Lookup(ctx, req.User)
	if err != nil {
		return nil, err
	}
	banned, err := s.users.Ban(ctx, target.ID)
	if err != nil {
		return nil, err
	}
	s.hub.SetRoles(banned.ID, banned.Roles)

	sessions := s.hub.SessionsOf(banned.ID)
	res := new(Result).deliver(
		c.toSelf(Packet{"cmd": CmdUserBan, "user": banned.Username, "banned": true}),
		Delivery{
			Scope:  ScopeUser,
			UserID: banned.ID,
			Packet: Packet{"cmd": cmdDisconnect, "reason": reasonBanned},
		},
	)
	res.after = func() {
		for _, sess := range sessions {
			sess.Close()
		}
	}

	c.session.log().Warn().Str("target_id", banned.ID).Int("sessions", len(sessions)).Msg("User banned")
	return res.emit(plugin.Event{
		Name:     plugin.EventUserBan,
		UserID:   banned.ID,
		Username: banned.Username,
		Data:     map[string]any{"by": c.username},
	}), nil
}

func (s *Server) userUnban(ctx context.Context, c *call) (*Result, error) {
	var req userRequest
	if err := s.bind(c, &req); err != nil {
		return nil, err
	}
	if _, err := s.requireOwner(ctx, c); err != nil {
		return nil, err
	}

	target, err := s.users.Lookup(ctx, req.User)
	if err != nil {
		return nil, err
	}
	unbanned, err := s.users.Unban(ctx, target.ID)
	if err != nil {
		return nil, err
	}
	s.hub.SetRoles(unbanned.ID, unbanned.Roles)

	return c.reply(Packet{"cmd": CmdUserUnban, "user": unbanned.Username, "unbanned": true}).
		emit(plugin.Event{
			Name:     plugin.EventUserUnban,
			UserID:   unbanned.ID,
			Username: unbanned.Username,
			Data:     map[string]any{"by": c.username},
		}), nil
}

type timeoutRequest struct {
	User    string  `json:"user" validate:"required"`
	Timeout float64 `json:"timeout" validate:"gte=1"`
}

func (s *Server) userTimeout(ctx context.Context, c *call) (*Result, error) {
	var req timeoutRequest
	if err := s.bind(c, &req); err != nil {
		return nil, err
	}
	if _, err := s.requireOwner(ctx, c); err != nil {
		return nil, err
	}
	if !s.gate.Enabled() {
		return nil, errs.NewError(errs.ErrRateLimiterDisabled)
	}

	target, err := s.users.Lookup(ctx, req.User)
	if err != nil {
		return nil, err
	}
	s.gate.SetUserTimeout(target.ID, req.Timeout)

	return new(Result).
		deliver(
			c.toSelf(Packet{"cmd": CmdUserTimeout, "user": target.Username, "timeout": req.Timeout}),
			timeoutDelivery(target.ID, reasonTimeoutSet, req.Timeout),
		).
		emit(plugin.Event{
			Name:     plugin.EventUserTimeout,
			UserID:   target.ID,
			Username: target.Username,
			Data:     map[string]any{"timeout": req.Timeout, "by": c.username},
		}), nil
}

// timeoutDelivery tells every session of userID that it is timed out.
func timeoutDelivery(userID, reason string, seconds float64) Delivery {
	return Delivery{
		Scope:  ScopeUser,
		UserID: userID,
		Packet: Packet{
			"cmd":    cmdRateLimit,
			"reason": reason,
			"length": int64(seconds * 1000),
		},
	}
}

func (s *Server) userLeave(ctx context.Context, c *call) (*Result, error) {
	if err := s.users.Remove(ctx, c.userID); err != nil {
		return nil, errs.Internal(err)
	}
	s.hub.Remove(c.session)

	res := new(Result).deliver(Delivery{
		Scope: ScopeGlobal,
		Packet: Packet{
			"cmd":    CmdUserLeave,
			"user":   c.username,
			"val":    valUserLeft,
			"global": true,
		},
	})
	res.after = c.session.Close

	return res.emit(c.event(plugin.EventUserLeft, "", nil)), nil
}

func (s *Server) usersList(ctx context.Context, c *call) (*Result, error) {
	list, err := s.users.List(ctx)
	if err != nil {
		return nil, errs.Internal(err)
	}
	profiles, err := s.users.Profiles(ctx, list...)
	if err != nil {
		return nil, errs.Internal(err)
	}
	return c.reply(Packet{"cmd": CmdUsersList, "users": profiles}), nil
}

func (s *Server) usersOnline(ctx context.Context, c *call) (*Result, error) {
	var online []user.User
	for _, id := range s.hub.Online() {
		u, ok, err := s.users.Get(ctx, id)
		if err != nil {
			return nil, errs.Internal(err)
		}
		if ok {
			online = append(online, u)
		}
	}

	profiles, err := s.users.Profiles(ctx, online...)
	if err != nil {
		return nil, errs.Internal(err)
	}
	return c.reply(Packet{"cmd": CmdUsersOnline, "users": profiles}), nil
}

func (s *Server) usersBannedList(ctx context.Context, c *call) (*Result, error) {
	if _, err := s.requireOwner(ctx, c); err != nil {
		return nil, err
	}
	banned, err := s.users.Banned(ctx)
	if err != nil {
		return nil, errs.Internal(err)
	}

	names := make([]string, len(banned))
	for i, u := range banned {
		names[i] = u.Username
	}
	return c.reply(Packet{"cmd": CmdUsersBannedList, "users": names}), nil
}

type rateLimitRequest struct {
	User string `json:"user"`
}

// rateLimitTarget resolves the user a rate limit command applies to. With selfAllowed
// users may target themselves; anyone else requires the owner role.
func (s *Server) rateLimitTarget(ctx context.Context, c *call, selfAllowed bool) (user.User, error) {
	var req rateLimitRequest
	if err := s.bind(c, &req); err != nil {
		return user.User{}, err
	}

	self := req.User == "" || strings.EqualFold(req.User, c.username) || req.User == c.userID
	if !self || !selfAllowed {
		roles, err := s.rolesOf(ctx, c)
		if err != nil {
			return user.User{}, err
		}
		if !slices.Contains(roles, user.RoleOwner) {
			if selfAllowed {
				return user.User{}, errs.NewError(errs.ErrSelfOrOwnerRequired)
			}
			return user.User{}, errs.NewError(errs.ErrOwnerRequired)
		}
	}
	if !s.gate.Enabled() {
		return user.User{}, errs.NewError(errs.ErrRateLimiterDisabled)
	}
	if self {
		return user.User{ID: c.userID, Username: c.username}, nil
	}
	return s.users.Lookup(ctx, req.User)
}

func (s *Server) rateLimitStatus(ctx context.Context, c *call) (*Result, error) {
	target, err := s.rateLimitTarget(ctx, c, true)
	if err != nil {
		return nil, err
	}
	return c.reply(Packet{
		"cmd":    CmdRateLimitStatus,
		"user":   target.Username,
		"status": s.gate.GetUserStatus(target.ID),
	}), nil
}

// rateLimitReset clears every limit of the target, explicit timeouts included.
// Only owners may reset, their own state as well as anyone else's.
func (s *Server) rateLimitReset(ctx context.Context, c *call) (*Result, error) {
	target, err := s.rateLimitTarget(ctx, c, false)
	if err != nil {
		return nil, err
	}
	s.gate.ResetUser(target.ID)
	return c.reply(Packet{
		"cmd":  CmdRateLimitReset,
		"user": target.Username,
		"val":  fmt.Sprintf("Rate limit reset for user %s", target.Username),
	}), nil
}
