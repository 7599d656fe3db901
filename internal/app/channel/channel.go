/*
Package channel holds the ordered channel list and the role-based permission model
evaluated against it.
*/
package channel

import (
	"maps"
	"slices"
)

// Type is the kind of a channel.
type Type string

const (
	TypeText      Type = "text"
	TypeVoice     Type = "voice"
	TypeSeparator Type = "separator"
)

// Valid reports whether t is a known channel type.
func (t Type) Valid() bool {
	switch t {
	case TypeText, TypeVoice, TypeSeparator:
		return true
	}
	return false
}

// HoldsMessages reports whether channels of this type own a message log.
func (t Type) HoldsMessages() bool {
	return t == TypeText || t == TypeVoice
}

// Permission is a named capability configured per channel.
type Permission string

const (
	PermView      Permission = "view"
	PermSend      Permission = "send"
	PermEditOwn   Permission = "edit_own"
	PermDeleteOwn Permission = "delete_own"
	PermDelete    Permission = "delete"
	PermPin       Permission = "pin"
	PermReact     Permission = "react"
)

// Permissions lists every permission kind.
var Permissions = []Permission{PermView, PermSend, PermEditOwn, PermDeleteOwn, PermDelete, PermPin, PermReact}

// Channel is a persisted channel definition. Its position is its index in the list.
type Channel struct {
	Name        string                  `json:"name"`
	Type        Type                    `json:"type"`
	Description string                  `json:"description,omitempty"`
	Wallpaper   string                  `json:"wallpaper,omitempty"`
	Permissions map[Permission][]string `json:"permissions,omitempty"`
	Size        int                     `json:"size,omitempty"`
}

// Clone returns a deep copy of c.
func (c Channel) Clone() Channel {
	out := c
	out.Permissions = clonePermissions(c.Permissions)
	return out
}

// View is a channel as listed to clients.
type View struct {
	Channel
	Position int `json:"position"`
}

func clonePermissions(p map[Permission][]string) map[Permission][]string {
	out := maps.Clone(p)
	for k, v := range out {
		out[k] = slices.Clone(v)
	}
	return out
}
