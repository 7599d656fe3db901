/*
Package slash keeps the registry of slash commands offered by connected clients.

A client registers commands it will answer. Other users call them; the server validates the
arguments against the declared schema, forwards an invocation to the registering client and
routes its response back.
*/
package slash

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// OptionType is the declared type of a command argument.
type OptionType string

const (
	TypeStr   OptionType = "str"
	TypeInt   OptionType = "int"
	TypeBool  OptionType = "bool"
	TypeEnum  OptionType = "enum"
	TypeFloat OptionType = "float"
)

// Option declares one argument of a command.
type Option struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Type        OptionType `json:"type"`
	Choices     []any      `json:"choices,omitempty"`
	Required    *bool      `json:"required,omitempty"`
}

// IsRequired reports whether the argument must be given. Options are required
// unless they say otherwise.
func (o Option) IsRequired() bool {
	return o.Required == nil || *o.Required
}

// Command is a registered slash command schema.
type Command struct {
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	WhitelistRoles []string `json:"whitelistRoles,omitempty"`
	BlacklistRoles []string `json:"blacklistRoles,omitempty"`
	Options        []Option `json:"options"`
	Ephemeral      bool     `json:"ephemeral"`
}

// validate checks the command schema. The returned error names the offending part.
func (c Command) validate() error {
	if strings.TrimSpace(c.Name) == "" || strings.ContainsAny(c.Name, " \t\n") {
		return fmt.Errorf("command name %q must be a single non-empty word", c.Name)
	}
	if c.Description == "" {
		return fmt.Errorf("%s: description is required", c.Name)
	}

	seen := make(map[string]bool, len(c.Options))
	for _, o := range c.Options {
		if o.Name == "" {
			return fmt.Errorf("%s: option name is required", c.Name)
		}
		if seen[o.Name] {
			return fmt.Errorf("%s: duplicate option %s", c.Name, o.Name)
		}
		seen[o.Name] = true

		switch o.Type {
		case TypeStr, TypeInt, TypeBool, TypeFloat:
		case TypeEnum:
			if len(o.Choices) == 0 {
				return fmt.Errorf("%s.%s: enum option needs choices", c.Name, o.Name)
			}
			for _, choice := range o.Choices {
				switch choice.(type) {
				case string, float64, bool:
				default:
					return fmt.Errorf("%s.%s: choices must be strings, numbers or booleans", c.Name, o.Name)
				}
			}
		default:
			return fmt.Errorf("%s.%s: unknown option type %q", c.Name, o.Name, o.Type)
		}
	}
	return nil
}

// validateArgs checks decoded JSON arguments against the schema.
func (c Command) validateArgs(args map[string]any) error {
	for name := range args {
		if !slices.ContainsFunc(c.Options, func(o Option) bool { return o.Name == name }) {
			return fmt.Errorf("unknown argument %s", name)
		}
	}

	for _, o := range c.Options {
		v, ok := args[o.Name]
		if !ok || v == nil {
			if o.IsRequired() {
				return fmt.Errorf("missing required argument %s", o.Name)
			}
			continue
		}
		if err := o.check(v); err != nil {
			return err
		}
	}
	return nil
}

func (o Option) check(v any) error {
	ok := false
	switch o.Type {
	case TypeStr:
		_, ok = v.(string)
	case TypeBool:
		_, ok = v.(bool)
	case TypeFloat:
		_, ok = v.(float64)
	case TypeInt:
		f, isNum := v.(float64)
		ok = isNum && f == math.Trunc(f) && !math.IsInf(f, 0)
	case TypeEnum:
		ok = slices.Contains(o.Choices, v)
		if !ok {
			return fmt.Errorf("argument %s must be one of %v", o.Name, o.Choices)
		}
	}
	if !ok {
		return fmt.Errorf("argument %s must be of type %s", o.Name, o.Type)
	}
	return nil
}
