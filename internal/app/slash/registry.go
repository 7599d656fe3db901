package slash

import (
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"originchats/internal/pkg/errs"
	"originchats/internal/pkg/randx"
)

// InvocationTTL is how long a call waits for its response.
const InvocationTTL = 5 * time.Minute

// Entry is a registered command and the user answering it.
type Entry struct {
	Command
	Owner string `json:"-"`
}

// Invocation is a call waiting for the command owner to respond.
type Invocation struct {
	ID        string
	Command   string
	Ephemeral bool
	Owner     string
	Invoker   string
	SessionID string
	Channel   string
	Args      map[string]any
	Expires   time.Time
}

// Registry holds the registered commands and pending invocations.
type Registry struct {
	mu          sync.Mutex
	commands    map[string]Entry
	invocations map[string]Invocation
	now         func() time.Time
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// NewRegistry returns an empty Registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		commands:    make(map[string]Entry),
		invocations: make(map[string]Invocation),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register validates every command and then stores them for owner. Nothing is stored
// when any command is invalid or already belongs to another user.
func (r *Registry) Register(owner string, cmds []Command) ([]string, error) {
	if len(cmds) == 0 {
		return nil, errs.NewError(errs.ErrMissingField, "commands")
	}

	names := make([]string, 0, len(cmds))
	for _, c := range cmds {
		if err := c.validate(); err != nil {
			return nil, errs.NewError(errs.ErrSlashSchemaInvalid, err.Error())
		}
		if slices.Contains(names, c.Name) {
			return nil, errs.NewError(errs.ErrSlashSchemaInvalid, "duplicate command "+c.Name)
		}
		names = append(names, c.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range cmds {
		if e, ok := r.commands[c.Name]; ok && e.Owner != owner {
			return nil, errs.NewError(errs.ErrSlashTaken, c.Name)
		}
	}
	for _, c := range cmds {
		r.commands[c.Name] = Entry{Command: c, Owner: owner}
	}
	return names, nil
}

// List returns every registered command ordered by name.
func (r *Registry) List() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Command, 0, len(r.commands))
	for _, e := range r.commands {
		out = append(out, e.Command)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get returns the entry for name.
func (r *Registry) Get(name string) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.commands[strings.TrimPrefix(name, "/")]
	if !ok {
		return Entry{}, errs.NewError(errs.ErrSlashNotFound, name)
	}
	return e, nil
}

// Authorize applies the command's role filters to the caller's roles.
func Authorize(c Command, roles []string) error {
	if len(c.WhitelistRoles) > 0 && !slices.ContainsFunc(roles, func(r string) bool {
		return slices.Contains(c.WhitelistRoles, r)
	}) {
		return errs.NewError(errs.ErrSlashRoleDenied, c.Name)
	}
	if slices.ContainsFunc(roles, func(r string) bool {
		return slices.Contains(c.BlacklistRoles, r)
	}) {
		return errs.NewError(errs.ErrSlashRoleDenied, c.Name)
	}
	return nil
}

// ValidateArgs checks args against the command schema.
func ValidateArgs(c Command, args map[string]any) error {
	if err := c.validateArgs(args); err != nil {
		return errs.NewError(errs.ErrSlashArgsInvalid, err.Error())
	}
	return nil
}

// Invoke records a pending call of e.
func (r *Registry) Invoke(e Entry, invoker, sessionID, channel string, args map[string]any) Invocation {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.expireLocked(now)

	inv := Invocation{
		ID:        randx.InvocationID(),
		Command:   e.Name,
		Ephemeral: e.Ephemeral,
		Owner:     e.Owner,
		Invoker:   invoker,
		SessionID: sessionID,
		Channel:   channel,
		Args:      args,
		Expires:   now.Add(InvocationTTL),
	}
	r.invocations[inv.ID] = inv
	return inv
}

// Resolve consumes invocation id on behalf of responder, who must own the command.
func (r *Registry) Resolve(id, responder string) (Invocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.expireLocked(r.now())

	inv, ok := r.invocations[id]
	if !ok {
		return Invocation{}, errs.NewError(errs.ErrInvocationNotFound)
	}
	if inv.Owner != responder {
		return Invocation{}, errs.NewError(errs.ErrNotCommandOwner)
	}
	delete(r.invocations, id)
	return inv, nil
}

// DropOwner removes every command and pending invocation answered by owner and
// returns the removed command names.
func (r *Registry) DropOwner(owner string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []string
	for name, e := range r.commands {
		if e.Owner == owner {
			delete(r.commands, name)
			removed = append(removed, name)
		}
	}
	for id, inv := range r.invocations {
		if inv.Owner == owner {
			delete(r.invocations, id)
		}
	}
	sort.Strings(removed)
	return removed
}

func (r *Registry) expireLocked(now time.Time) {
	for id, inv := range r.invocations {
		if !now.Before(inv.Expires) {
			delete(r.invocations, id)
		}
	}
}
