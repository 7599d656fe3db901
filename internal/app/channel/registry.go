package channel

import (
	"context"
	"slices"

	"originchats/internal/app/store"
	"originchats/internal/pkg/errs"
)

const (
	indexKey = "index"

	// DefaultChannel is created when the server starts with no channels.
	DefaultChannel = "general"
)

// Registry stores the ordered channel list as one document.
type Registry struct {
	channels *store.Collection[[]Channel]
}

// NewRegistry returns a Registry over backend.
func NewRegistry(backend store.Backend) *Registry {
	return &Registry{channels: store.NewCollection[[]Channel](backend, "channels")}
}

// Patch lists the fields of a channel update. Nil fields are left unchanged.
type Patch struct {
	NewName     *string
	Description *string
	Wallpaper   *string
	Permissions map[Permission][]string
	Size        *int
}

// EnsureDefault seeds the general text channel when no channel exists yet.
func (r *Registry) EnsureDefault(ctx context.Context) error {
	return r.channels.Update(ctx, indexKey, func(list *[]Channel) error {
		if len(*list) > 0 {
			return nil
		}
		*list = []Channel{{
			Name:        DefaultChannel,
			Type:        TypeText,
			Description: "General chat channel",
			Permissions: map[Permission][]string{
				PermView: {"user"},
				PermSend: {"user"},
			},
		}}
		return nil
	})
}

// Get returns the channel called name.
func (r *Registry) Get(ctx context.Context, name string) (*Channel, error) {
	list, err := r.channels.Get(ctx, indexKey)
	if err != nil {
		return nil, err
	}
	i := indexOf(list, name)
	if i < 0 {
		return nil, errs.NewError(errs.ErrChannelNotFound, name)
	}
	ch := list[i].Clone()
	return &ch, nil
}

// List returns every channel in display order.
func (r *Registry) List(ctx context.Context) ([]View, error) {
	return r.filter(ctx, func(Channel) bool { return true })
}

// Visible returns the channels a caller holding roles may view.
func (r *Registry) Visible(ctx context.Context, roles []string) ([]View, error) {
	return r.filter(ctx, func(ch Channel) bool { return Allowed(&ch, roles, PermView) })
}

func (r *Registry) filter(ctx context.Context, keep func(Channel) bool) ([]View, error) {
	list, err := r.channels.Get(ctx, indexKey)
	if err != nil {
		return nil, err
	}

	out := make([]View, 0, len(list))
	for i, ch := range list {
		if keep(ch) {
			out = append(out, View{Channel: ch, Position: i})
		}
	}
	return out, nil
}

// Create appends a new channel. Without explicit permissions only the owner may
// view and send.
func (r *Registry) Create(ctx context.Context, ch Channel) (View, error) {
	if ch.Name == "" {
		return View{}, errs.NewError(errs.ErrMissingField, "name")
	}
	if !ch.Type.Valid() {
		return View{}, errs.NewError(errs.ErrInvalidField, "type")
	}
	if err := validatePermissions(ch.Permissions); err != nil {
		return View{}, err
	}

	ch = ch.Clone()
	if ch.Permissions == nil {
		ch.Permissions = map[Permission][]string{
			PermView: {ownerRole},
			PermSend: {ownerRole},
		}
	}
	if ch.Type != TypeSeparator {
		ch.Size = 0
	}

	var out View
	err := r.channels.Update(ctx, indexKey, func(list *[]Channel) error {
		if indexOf(*list, ch.Name) >= 0 {
			return errs.NewError(errs.ErrChannelExists, ch.Name)
		}
		*list = append(*list, ch)
		out = View{Channel: ch, Position: len(*list) - 1}
		return nil
	})
	return out, err
}

// Update applies patch to the channel called name.
func (r *Registry) Update(ctx context.Context, name string, patch Patch) (View, error) {
	if patch.NewName != nil && *patch.NewName == "" {
		return View{}, errs.NewError(errs.ErrInvalidField, "new_name")
	}
	if err := validatePermissions(patch.Permissions); err != nil {
		return View{}, err
	}

	var out View
	err := r.channels.Update(ctx, indexKey, func(list *[]Channel) error {
		i := indexOf(*list, name)
		if i < 0 {
			return errs.NewError(errs.ErrChannelNotFound, name)
		}
		ch := (*list)[i]

		if patch.NewName != nil && *patch.NewName != name {
			if indexOf(*list, *patch.NewName) >= 0 {
				return errs.NewError(errs.ErrChannelExists, *patch.NewName)
			}
			ch.Name = *patch.NewName
		}
		if patch.Description != nil {
			ch.Description = *patch.Description
		}
		if patch.Wallpaper != nil {
			ch.Wallpaper = *patch.Wallpaper
		}
		if patch.Permissions != nil {
			ch.Permissions = clonePermissions(patch.Permissions)
		}
		if patch.Size != nil {
			if ch.Type != TypeSeparator {
				return errs.NewError(errs.ErrInvalidField, "size")
			}
			ch.Size = *patch.Size
		}

		(*list)[i] = ch
		out = View{Channel: ch.Clone(), Position: i}
		return nil
	})
	return out, err
}

// Move places the channel at position, clamped to the list bounds.
func (r *Registry) Move(ctx context.Context, name string, position int) (View, error) {
	var out View
	err := r.channels.Update(ctx, indexKey, func(list *[]Channel) error {
		i := indexOf(*list, name)
		if i < 0 {
			return errs.NewError(errs.ErrChannelNotFound, name)
		}
		ch := (*list)[i]
		*list = slices.Delete(*list, i, i+1)

		position = max(0, min(position, len(*list)))
		*list = slices.Insert(*list, position, ch)
		out = View{Channel: ch.Clone(), Position: position}
		return nil
	})
	return out, err
}

// Delete removes the channel and returns its last definition.
func (r *Registry) Delete(ctx context.Context, name string) (Channel, error) {
	var out Channel
	err := r.channels.Update(ctx, indexKey, func(list *[]Channel) error {
		i := indexOf(*list, name)
		if i < 0 {
			return errs.NewError(errs.ErrChannelNotFound, name)
		}
		out = (*list)[i]
		*list = slices.Delete(*list, i, i+1)
		return nil
	})
	return out, err
}

func indexOf(list []Channel, name string) int {
	return slices.IndexFunc(list, func(ch Channel) bool { return ch.Name == name })
}

func validatePermissions(p map[Permission][]string) error {
	for kind := range p {
		if !slices.Contains(Permissions, kind) {
			return errs.NewError(errs.ErrInvalidField, "permissions."+string(kind))
		}
	}
	return nil
}
