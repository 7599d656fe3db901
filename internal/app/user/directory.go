package user

import (
	"context"
	"slices"
	"sort"
	"strings"

	"originchats/internal/app/store"
	"originchats/internal/pkg/errs"
)

const indexKey = "index"

var defaultRoleDefs = []Role{
	{Name: RoleOwner, Color: "#9A55FF", Description: "Server owner"},
	{Name: RoleAdmin, Color: "#FF5555", Description: "Administrator"},
	{Name: RoleUser, Color: "#FFFFFF", Description: "Default member role"},
	{Name: RoleBanned, Color: "#555555", Description: "Banned from the server"},
}

// Directory stores users and roles, each kind as a single indexed document.
type Directory struct {
	users        *store.Collection[map[string]User]
	roles        *store.Collection[map[string]Role]
	defaultRoles []string
}

// NewDirectory returns a Directory over backend. New users receive defaultRoles.
func NewDirectory(backend store.Backend, defaultRoles []string) *Directory {
	if len(defaultRoles) == 0 {
		defaultRoles = []string{RoleUser}
	}
	return &Directory{
		users:        store.NewCollection[map[string]User](backend, "users"),
		roles:        store.NewCollection[map[string]Role](backend, "roles"),
		defaultRoles: slices.Clone(defaultRoles),
	}
}

// EnsureDefaults seeds the reserved roles that are missing.
func (d *Directory) EnsureDefaults(ctx context.Context) error {
	return d.roles.Update(ctx, indexKey, func(roles *map[string]Role) error {
		if *roles == nil {
			*roles = make(map[string]Role)
		}
		for _, r := range defaultRoleDefs {
			if _, ok := (*roles)[r.Name]; !ok {
				(*roles)[r.Name] = r
			}
		}
		return nil
	})
}

// Get returns the user with id.
func (d *Directory) Get(ctx context.Context, id string) (User, bool, error) {
	all, err := d.users.Get(ctx, indexKey)
	if err != nil {
		return User{}, false, err
	}
	u, ok := all[id]
	return u, ok, nil
}

// Ensure creates the user on first sight or updates the stored username when it
// changed upstream. A username held by a different user is rejected.
func (d *Directory) Ensure(ctx context.Context, id, username string) (User, error) {
	var out User
	err := d.users.Update(ctx, indexKey, func(all *map[string]User) error {
		if *all == nil {
			*all = make(map[string]User)
		}

		for otherID, other := range *all {
			if otherID != id && sameName(other.Username, username) {
				return errs.NewError(errs.ErrUsernameTaken, username)
			}
		}

		u, ok := (*all)[id]
		if !ok {
			u = User{ID: id, Roles: slices.Clone(d.defaultRoles)}
		}
		u.Username = username
		(*all)[id] = u
		out = u
		return nil
	})
	return out, err
}

// Lookup finds a user by username (case-insensitive) or, failing that, by id.
func (d *Directory) Lookup(ctx context.Context, ref string) (User, error) {
	all, err := d.users.Get(ctx, indexKey)
	if err != nil {
		return User{}, err
	}

	for _, u := range all {
		if sameName(u.Username, ref) {
			return u, nil
		}
	}
	if u, ok := all[ref]; ok {
		return u, nil
	}
	return User{}, errs.NewError(errs.ErrUserNotFound, ref)
}

// RolesOf returns the stored roles of id, or nil when the user is unknown.
func (d *Directory) RolesOf(ctx context.Context, id string) ([]string, error) {
	u, ok, err := d.Get(ctx, id)
	if err != nil || !ok {
		return nil, err
	}
	return u.Roles, nil
}

// Names snapshots the id → username mapping.
func (d *Directory) Names(ctx context.Context) (Names, error) {
	all, err := d.users.Get(ctx, indexKey)
	if err != nil {
		return nil, err
	}
	names := make(Names, len(all))
	for id, u := range all {
		names[id] = u.Username
	}
	return names, nil
}

// Username resolves a single id.
func (d *Directory) Username(ctx context.Context, id string) string {
	names, err := d.Names(ctx)
	if err != nil {
		return DeletedUsername
	}
	return names.Username(id)
}

// mutateUser applies fn to an existing user and returns the updated record.
func (d *Directory) mutateUser(ctx context.Context, id string, fn func(*User) error) (User, error) {
	var out User
	err := d.users.Update(ctx, indexKey, func(all *map[string]User) error {
		u, ok := (*all)[id]
		if !ok {
			return errs.NewError(errs.ErrUserNotFound, id)
		}
		if err := fn(&u); err != nil {
			return err
		}
		(*all)[id] = u
		out = u
		return nil
	})
	return out, err
}

// Ban puts the banned role at the front of the user's roles.
func (d *Directory) Ban(ctx context.Context, id string) (User, error) {
	return d.mutateUser(ctx, id, func(u *User) error {
		if !u.Banned() {
			u.Roles = slices.Insert(u.Roles, 0, RoleBanned)
		}
		return nil
	})
}

// Unban removes the banned role. A user left without roles gets the defaults back.
func (d *Directory) Unban(ctx context.Context, id string) (User, error) {
	return d.mutateUser(ctx, id, func(u *User) error {
		u.Roles = slices.DeleteFunc(u.Roles, func(r string) bool { return r == RoleBanned })
		if len(u.Roles) == 0 {
			u.Roles = slices.Clone(d.defaultRoles)
		}
		return nil
	})
}

// AddRole gives the user an existing role, placing it first so it becomes the
// display role.
func (d *Directory) AddRole(ctx context.Context, id, role string) (User, error) {
	if _, ok, err := d.Role(ctx, role); err != nil {
		return User{}, err
	} else if !ok {
		return User{}, errs.NewError(errs.ErrRoleNotFound, role)
	}

	return d.mutateUser(ctx, id, func(u *User) error {
		if !u.HasRole(role) {
			u.Roles = slices.Insert(u.Roles, 0, role)
		}
		return nil
	})
}

// RemoveRole takes a role away from the user. The last role cannot be removed.
func (d *Directory) RemoveRole(ctx context.Context, id, role string) (User, error) {
	return d.mutateUser(ctx, id, func(u *User) error {
		if !u.HasRole(role) {
			return nil
		}
		if len(u.Roles) == 1 {
			return errs.NewError(errs.ErrLastRole)
		}
		u.Roles = slices.DeleteFunc(u.Roles, func(r string) bool { return r == role })
		return nil
	})
}

// Remove deletes the user record.
func (d *Directory) Remove(ctx context.Context, id string) error {
	return d.users.Update(ctx, indexKey, func(all *map[string]User) error {
		delete(*all, id)
		return nil
	})
}

// List returns every user that is not banned, ordered by username.
func (d *Directory) List(ctx context.Context) ([]User, error) {
	return d.filter(ctx, func(u User) bool { return !u.Banned() })
}

// Banned returns every banned user, ordered by username.
func (d *Directory) Banned(ctx context.Context) ([]User, error) {
	return d.filter(ctx, User.Banned)
}

func (d *Directory) filter(ctx context.Context, keep func(User) bool) ([]User, error) {
	all, err := d.users.Get(ctx, indexKey)
	if err != nil {
		return nil, err
	}

	out := make([]User, 0, len(all))
	for _, u := range all {
		if keep(u) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Username) < strings.ToLower(out[j].Username)
	})
	return out, nil
}

// Profiles converts users into their client-facing form, resolving the color of
// each user's first role.
func (d *Directory) Profiles(ctx context.Context, users ...User) ([]Profile, error) {
	roles, err := d.roles.Get(ctx, indexKey)
	if err != nil {
		return nil, err
	}

	out := make([]Profile, 0, len(users))
	for _, u := range users {
		out = append(out, profileOf(u, roles))
	}
	return out, nil
}

// Profile converts a single user.
func (d *Directory) Profile(ctx context.Context, u User) (Profile, error) {
	profiles, err := d.Profiles(ctx, u)
	if err != nil {
		return Profile{}, err
	}
	return profiles[0], nil
}

func profileOf(u User, roles map[string]Role) Profile {
	p := Profile{Username: u.Username, Roles: slices.Clone(u.Roles)}
	if p.Roles == nil {
		p.Roles = []string{}
	}
	if len(u.Roles) > 0 {
		if r, ok := roles[u.Roles[0]]; ok && r.Color != "" {
			color := r.Color
			p.Color = &color
		}
	}
	return p
}
