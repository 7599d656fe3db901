/*
Package user defines the persistent user and role records and the Directory that
stores them.

A user is keyed by the stable id issued by the identity provider. Its ordered role list
drives both permission checks and display color (the first role wins); being banned is
membership in the reserved banned role.
*/
package user

import (
	"slices"
	"strings"
)

// Reserved role names. They carry system meaning and cannot be deleted.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleUser   = "user"
	RoleBanned = "banned"
)

// ReservedRoles lists the role names seeded on first start.
var ReservedRoles = []string{RoleOwner, RoleAdmin, RoleUser, RoleBanned}

const (
	// SystemAuthor is the author id used for server-generated messages.
	SystemAuthor = "originChats"

	// DeletedUsername is shown for ids that no longer resolve to a user.
	DeletedUsername = "[deleted]"
)

// User is a persisted account.
type User struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

// HasRole reports whether the user holds role.
func (u User) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}

// Banned reports whether the user holds the banned role.
func (u User) Banned() bool {
	return u.HasRole(RoleBanned)
}

// Role is a persisted role definition.
type Role struct {
	Name        string `json:"name"`
	Color       string `json:"color,omitempty"`
	Description string `json:"description,omitempty"`
}

// IsReserved reports whether name is one of the reserved roles.
func IsReserved(name string) bool {
	return slices.Contains(ReservedRoles, name)
}

// Profile is the client-facing view of a user. It never carries the user id.
type Profile struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	Color    *string  `json:"color"`
}

// Names maps user ids to usernames for bulk conversion at the output boundary.
type Names map[string]string

// Username resolves id. Unknown ids resolve to DeletedUsername so that raw ids
// never reach clients.
func (n Names) Username(id string) string {
	if id == SystemAuthor {
		return id
	}
	if name, ok := n[id]; ok && name != "" {
		return name
	}
	return DeletedUsername
}

func sameName(a, b string) bool {
	return strings.EqualFold(a, b)
}
