package user

import (
	"context"
	"slices"
	"sort"

	"originchats/internal/pkg/errs"
)

// Roles returns all role definitions ordered by name.
func (d *Directory) Roles(ctx context.Context) ([]Role, error) {
	all, err := d.roles.Get(ctx, indexKey)
	if err != nil {
		return nil, err
	}

	out := make([]Role, 0, len(all))
	for _, r := range all {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Role returns the definition of name.
func (d *Directory) Role(ctx context.Context, name string) (Role, bool, error) {
	all, err := d.roles.Get(ctx, indexKey)
	if err != nil {
		return Role{}, false, err
	}
	r, ok := all[name]
	return r, ok, nil
}

// CreateRole adds a new role definition.
func (d *Directory) CreateRole(ctx context.Context, role Role) (Role, error) {
	err := d.roles.Update(ctx, indexKey, func(all *map[string]Role) error {
		if *all == nil {
			*all = make(map[string]Role)
		}
		if _, ok := (*all)[role.Name]; ok {
			return errs.NewError(errs.ErrRoleExists, role.Name)
		}
		(*all)[role.Name] = role
		return nil
	})
	return role, err
}

// UpdateRole changes the color and/or description of a role. Nil fields are
// left as they are.
func (d *Directory) UpdateRole(ctx context.Context, name string, color, description *string) (Role, error) {
	var out Role
	err := d.roles.Update(ctx, indexKey, func(all *map[string]Role) error {
		r, ok := (*all)[name]
		if !ok {
			return errs.NewError(errs.ErrRoleNotFound, name)
		}
		if color != nil {
			r.Color = *color
		}
		if description != nil {
			r.Description = *description
		}
		(*all)[name] = r
		out = r
		return nil
	})
	return out, err
}

// DeleteRole removes a non-reserved role and strips it from every user. Users left
// without any role get the default roles back.
func (d *Directory) DeleteRole(ctx context.Context, name string) error {
	if IsReserved(name) {
		return errs.NewError(errs.ErrRoleReserved, name)
	}

	err := d.roles.Update(ctx, indexKey, func(all *map[string]Role) error {
		if _, ok := (*all)[name]; !ok {
			return errs.NewError(errs.ErrRoleNotFound, name)
		}
		delete(*all, name)
		return nil
	})
	if err != nil {
		return err
	}

	return d.users.Update(ctx, indexKey, func(all *map[string]User) error {
		for id, u := range *all {
			if !u.HasRole(name) {
				continue
			}
			u.Roles = slices.DeleteFunc(u.Roles, func(r string) bool { return r == name })
			if len(u.Roles) == 0 {
				u.Roles = slices.Clone(d.defaultRoles)
			}
			(*all)[id] = u
		}
		return nil
	})
}
