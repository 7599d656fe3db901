/*
Package auth validates the identity tokens clients present when they authenticate.

Two validators are provided: RoturValidator asks the Rotur identity service over HTTP, and
JWTValidator checks HS256 tokens signed with a shared secret.
*/
package auth

import "context"

// Identity is the user an identity token belongs to.
type Identity struct {
	ID       string
	Username string
}

// Validator turns a client-supplied token into an Identity.
// Invalid tokens yield errs.ErrAuthInvalid; an unreachable provider yields
// errs.ErrAuthUnavailable.
type Validator interface {
	Validate(ctx context.Context, token string) (Identity, error)
}
