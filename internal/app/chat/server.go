/*
Package chat is the session and broadcast engine of the server.

This file defines the Server, the dispatcher context shared by every session. It decodes
inbound frames, applies the authentication gate, runs the command handler, delivers the
resulting packets and finally notifies the plugin hooks.
*/
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"originchats/internal/app/channel"
	"originchats/internal/app/message"
	"originchats/internal/app/plugin"
	"originchats/internal/app/ratelimit"
	"originchats/internal/app/slash"
	"originchats/internal/app/user"
	"originchats/internal/app/voice"
	"originchats/internal/pkg/auth"
	"originchats/internal/pkg/errs"
	"originchats/internal/pkg/logx"
)

// PluginCatalogue lists and reloads the loaded plugins.
type PluginCatalogue interface {
	List() []string
	Reload(name string) ([]string, error)
}

// Deps are the collaborators of a Server. Gate, Hooks and Plugins may be nil.
type Deps struct {
	Users     *user.Directory
	Channels  *channel.Registry
	Messages  *message.Store
	Voice     *voice.State
	Slash     *slash.Registry
	Gate      ratelimit.Gate
	Hooks     plugin.Hooks
	Plugins   PluginCatalogue
	Validator auth.Validator
}

// Options are the handshake metadata and limits of a Server.
type Options struct {
	ServerName   string
	ServerIcon   string
	Version      string
	ValidatorKey string
	ContentLimit int
	Heartbeat    time.Duration
}

// DefaultContentLimit is used when Options.ContentLimit is not positive.
const DefaultContentLimit = 2000

// Server dispatches client commands against the shared server state.
type Server struct {
	users     *user.Directory
	channels  *channel.Registry
	messages  *message.Store
	voice     *voice.State
	slash     *slash.Registry
	gate      ratelimit.Gate
	hooks     plugin.Hooks
	plugins   PluginCatalogue
	validator auth.Validator

	hub      *Hub
	validate *validator.Validate
	opts     Options
	logger   zerolog.Logger
}

// NewServer wires deps into a Server. Missing optional collaborators fall back to
// their no-op implementations.
func NewServer(deps Deps, opts Options) *Server {
	if deps.Gate == nil {
		deps.Gate = ratelimit.Disabled{}
	}
	if deps.Hooks == nil {
		deps.Hooks = plugin.Nop{}
	}
	if deps.Plugins == nil {
		deps.Plugins = plugin.NewManager()
	}
	if deps.Voice == nil {
		deps.Voice = voice.NewState()
	}
	if deps.Slash == nil {
		deps.Slash = slash.NewRegistry()
	}
	if opts.ContentLimit <= 0 {
		opts.ContentLimit = DefaultContentLimit
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = DefaultHeartbeat
	}

	s := &Server{
		users:     deps.Users,
		channels:  deps.Channels,
		messages:  deps.Messages,
		voice:     deps.Voice,
		slash:     deps.Slash,
		gate:      deps.Gate,
		hooks:     deps.Hooks,
		plugins:   deps.Plugins,
		validator: deps.Validator,
		validate:  newValidate(),
		opts:      opts,
		logger:    logx.Component("chat"),
	}
	s.hub = NewHub(s.users.RolesOf)
	return s
}

// newValidate reports fields by their JSON names.
func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Hub returns the connected session registry.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Heartbeat is the application ping interval for new sessions.
func (s *Server) Heartbeat() time.Duration {
	return s.opts.Heartbeat
}

// Online returns the number of distinct authenticated users.
func (s *Server) Online() int {
	return len(s.hub.Online())
}

// Start notifies plugins that the server is up.
func (s *Server) Start(ctx context.Context) {
	s.hooks.Trigger(ctx, plugin.Event{Name: plugin.EventServerStart})
	s.logger.Info().Str("version", s.opts.Version).Msg("Chat server started")
}

// Shutdown closes every connected session.
func (s *Server) Shutdown() {
	sessions := s.hub.Snapshot()
	for _, sess := range sessions {
		sess.Close()
	}
	s.logger.Info().Int("sessions", len(sessions)).Msg("Chat server shut down")
}

// Connect registers sess and sends the handshake frame.
func (s *Server) Connect(ctx context.Context, sess *Session) {
	s.hub.Add(sess)

	s.hub.Deliver(ctx, Delivery{
		Scope:   ScopeSession,
		Session: sess,
		Packet: Packet{
			"cmd": cmdHandshake,
			"val": Handshake{
				Server:       ServerInfo{Name: s.opts.ServerName, Icon: s.opts.ServerIcon},
				Limits:       Limits{PostContent: s.opts.ContentLimit},
				Version:      s.opts.Version,
				ValidatorKey: s.opts.ValidatorKey,
			},
		},
	})

	sess.log().Info().Int("sessions", s.hub.Len()).Msg("Session connected")
}

// Disconnect runs the cleanup of sess exactly once, however many times it is called.
func (s *Server) Disconnect(ctx context.Context, sess *Session) {
	sess.disconnectOnce.Do(func() {
		s.disconnect(context.WithoutCancel(ctx), sess)
	})
}

func (s *Server) disconnect(ctx context.Context, sess *Session) {
	sess.Close()

	userID, username, authenticated := sess.Identity()

	var events []plugin.Event
	if authenticated {
		if joined, _ := sess.Voice(); joined != "" {
			if dep := s.voice.Leave(userID); dep != nil {
				s.deliverDeparture(ctx, dep)
				events = append(events, voiceEvent(plugin.EventVoiceLeave, userID, username, dep.Channel))
			}
			sess.setVoice("", "")
		}
	}

	s.hub.Remove(sess)

	if authenticated {
		s.hub.Deliver(ctx, Delivery{
			Scope:  ScopeGlobal,
			Packet: Packet{"cmd": cmdUserDisconnect, "username": username},
		})
		events = append(events, plugin.Event{
			Name:     plugin.EventUserDisconnect,
			UserID:   userID,
			Username: username,
		})
	}

	for _, ev := range events {
		s.hooks.Trigger(ctx, ev)
	}

	if authenticated && len(s.hub.SessionsOf(userID)) == 0 {
		if dropped := s.slash.DropOwner(userID); len(dropped) > 0 {
			sess.log().Info().Strs("commands", dropped).Msg("Dropped slash commands of offline user")
		}
	}

	sess.log().Info().Int("sessions", s.hub.Len()).Msg("Session disconnected")
}

// Result is what a handler asks the dispatcher to do once it returns.
type Result struct {
	// Deliveries are sent in order.
	Deliveries []Delivery

	// after runs once every delivery is queued.
	after func()

	// Events are passed to the hooks last.
	Events []plugin.Event
}

func (r *Result) deliver(d ...Delivery) *Result {
	r.Deliveries = append(r.Deliveries, d...)
	return r
}

func (r *Result) emit(ev ...plugin.Event) *Result {
	r.Events = append(r.Events, ev...)
	return r
}

// call is one inbound command being handled.
type call struct {
	cmd      Command
	frame    []byte
	session  *Session
	userID   string
	username string
}

// reply builds a single-recipient result for the calling session.
func (c *call) reply(p Packet) *Result {
	return new(Result).deliver(c.toSelf(p))
}

func (c *call) toSelf(p Packet) Delivery {
	return Delivery{Scope: ScopeSession, Session: c.session, Packet: p}
}

func (c *call) event(name, channelName string, data map[string]any) plugin.Event {
	return plugin.Event{
		Name:     name,
		UserID:   c.userID,
		Username: c.username,
		Channel:  channelName,
		Data:     data,
	}
}

type handlerFunc func(s *Server, ctx context.Context, c *call) (*Result, error)

type route struct {
	handle handlerFunc

	// public commands are accepted before authentication.
	public bool
}

// Handle processes one inbound frame of sess. Errors are reported to sess only.
func (s *Server) Handle(ctx context.Context, sess *Session, frame []byte) {
	var envelope struct {
		Cmd Command `json:"cmd"`
	}
	if err := json.Unmarshal(frame, &envelope); err != nil {
		s.fail(ctx, sess, "", errs.NewError(errs.ErrInvalidFormat, "expected a JSON object with a cmd field"))
		return
	}
	if envelope.Cmd == "" {
		s.fail(ctx, sess, "", errs.NewError(errs.ErrInvalidFormat, "missing cmd"))
		return
	}

	r, ok := routes[envelope.Cmd]
	if !ok {
		s.fail(ctx, sess, envelope.Cmd, errs.NewError(errs.ErrUnknownCommand, envelope.Cmd))
		return
	}

	userID, username, authenticated := sess.Identity()
	if !r.public && !authenticated {
		s.fail(ctx, sess, envelope.Cmd, errs.NewError(errs.ErrAuthRequired))
		return
	}

	c := &call{
		cmd:      envelope.Cmd,
		frame:    frame,
		session:  sess,
		userID:   userID,
		username: username,
	}

	res, err := r.handle(s, ctx, c)
	if err != nil {
		s.fail(ctx, sess, envelope.Cmd, err)
		return
	}
	s.apply(ctx, res)
}

func (s *Server) apply(ctx context.Context, res *Result) {
	if res == nil {
		return
	}
	for _, d := range res.Deliveries {
		s.hub.Deliver(ctx, d)
	}
	if res.after != nil {
		res.after()
	}
	for _, ev := range res.Events {
		s.hooks.Trigger(ctx, ev)
	}
}

// fail reports err to sess. A rate limit denial gets its own frame; anything that is
// not a CustomError is logged and reported as the generic internal error.
func (s *Server) fail(ctx context.Context, sess *Session, src Command, err error) {
	var denial *ratelimit.Denial
	if errors.As(err, &denial) {
		s.hub.Deliver(ctx, Delivery{Scope: ScopeSession, Session: sess, Packet: rateLimitPacket(denial)})
		return
	}

	customErr := errs.Internal(err)
	if customErr.Kind() == errs.KindInternal {
		sess.log().Error().Err(err).Str("cmd", string(src)).Msg("Command failed")
	} else {
		sess.log().Debug().Err(err).Str("cmd", string(src)).Msg("Command rejected")
	}
	s.hub.Deliver(ctx, Delivery{Scope: ScopeSession, Session: sess, Packet: errorPacket(src, customErr)})
}

// bind decodes the frame into dst and validates it. The offending field is named in
// the returned error.
func (s *Server) bind(c *call, dst any) error {
	if err := json.Unmarshal(c.frame, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return errs.NewError(errs.ErrInvalidField, typeErr.Field)
		}
		return errs.NewError(errs.ErrInvalidFormat, err.Error())
	}

	if err := s.validate.Struct(dst); err != nil {
		var validateErrs validator.ValidationErrors
		if !errors.As(err, &validateErrs) || len(validateErrs) == 0 {
			return errs.Internal(err)
		}
		e := validateErrs[0]
		if e.Tag() == "required" {
			return errs.NewError(errs.ErrMissingField, e.Field())
		}
		return errs.NewError(errs.ErrInvalidField, e.Field())
	}
	return nil
}

// rolesOf loads the caller's stored roles and refreshes the session cache.
func (s *Server) rolesOf(ctx context.Context, c *call) ([]string, error) {
	roles, err := s.users.RolesOf(ctx, c.userID)
	if err != nil {
		return nil, errs.Internal(err)
	}
	if roles == nil {
		return nil, errs.NewError(errs.ErrUserNotFound, c.username)
	}
	c.session.setRoles(roles)
	return roles, nil
}

// requireOwner fails unless the caller holds the owner role.
func (s *Server) requireOwner(ctx context.Context, c *call) ([]string, error) {
	roles, err := s.rolesOf(ctx, c)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(roles, user.RoleOwner) {
		return nil, errs.NewError(errs.ErrOwnerRequired)
	}
	return roles, nil
}

// authorize loads the channel and checks kind for the caller.
func (s *Server) authorize(ctx context.Context, c *call, name string, kind channel.Permission) (*channel.Channel, []string, error) {
	ch, err := s.channels.Get(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	roles, err := s.rolesOf(ctx, c)
	if err != nil {
		return nil, nil, err
	}
	if !channel.Allowed(ch, roles, kind) {
		return nil, nil, errs.NewError(errs.ErrPermissionDenied, actions[kind])
	}
	return ch, roles, nil
}

// actions names each permission kind in denial messages.
var actions = map[channel.Permission]string{
	channel.PermView:      "view this channel",
	channel.PermSend:      "send messages in this channel",
	channel.PermEditOwn:   "edit your own message in this channel",
	channel.PermDeleteOwn: "delete your own message in this channel",
	channel.PermDelete:    "delete this message",
	channel.PermPin:       "pin messages in this channel",
	channel.PermReact:     "react to messages in this channel",
}

// admit passes one user-generated event through the rate limiter.
func (s *Server) admit(c *call) error {
	return ratelimit.Check(s.gate, c.userID)
}

// checkContent applies the content rules to a message body and returns it trimmed.
func (s *Server) checkContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", errs.NewError(errs.ErrContentEmpty)
	}
	if s.validate.Var(content, "max="+strconv.Itoa(s.opts.ContentLimit)) != nil {
		return "", errs.NewError(errs.ErrContentTooLong, s.opts.ContentLimit)
	}
	return content, nil
}

// names snapshots usernames for converting ids at the output boundary.
func (s *Server) names(ctx context.Context) (user.Names, error) {
	names, err := s.users.Names(ctx)
	if err != nil {
		return nil, errs.Internal(err)
	}
	return names, nil
}
