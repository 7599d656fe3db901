package channel

import "slices"

const ownerRole = "owner"

// openByDefault holds the kinds that everyone has when the channel does not
// configure them. All other kinds are owner-only when unconfigured.
var openByDefault = map[Permission]bool{
	PermEditOwn:   true,
	PermDeleteOwn: true,
	PermReact:     true,
}

// Allowed reports whether a caller holding roles may exercise kind on ch.
// Owners pass every check, including on a nil channel.
func Allowed(ch *Channel, roles []string, kind Permission) bool {
	if slices.Contains(roles, ownerRole) {
		return true
	}
	if ch == nil {
		return false
	}

	allowed, ok := ch.Permissions[kind]
	if !ok {
		return openByDefault[kind]
	}
	for _, r := range roles {
		if slices.Contains(allowed, r) {
			return true
		}
	}
	return false
}
