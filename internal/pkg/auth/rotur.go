package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"originchats/internal/pkg/errs"
	"originchats/internal/pkg/logx"
)

const roturTimeout = 5 * time.Second

// RoturValidator checks tokens against the Rotur validate endpoint.
type RoturValidator struct {
	endpoint string
	key      string
	client   *http.Client
}

// NewRoturValidator returns a validator calling endpoint with the server's key.
func NewRoturValidator(endpoint, key string) *RoturValidator {
	return &RoturValidator{
		endpoint: endpoint,
		key:      "originChats-" + key,
		client:   &http.Client{Timeout: roturTimeout},
	}
}

// Key is the namespaced key sent to the identity service. Clients receive it in the
// handshake so they can request tokens for this server.
func (v *RoturValidator) Key() string {
	return v.key
}

type roturResponse struct {
	Valid    bool   `json:"valid"`
	ID       string `json:"id"`
	Username string `json:"username"`
}

func (v *RoturValidator) Validate(ctx context.Context, token string) (Identity, error) {
	u, err := url.Parse(v.endpoint)
	if err != nil {
		return Identity{}, errs.NewError(errs.ErrUnknown, fmt.Errorf("parse validate url: %w", err))
	}
	q := u.Query()
	q.Set("key", v.key)
	q.Set("v", token)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Identity{}, errs.NewError(errs.ErrUnknown, err)
	}

	res, err := v.client.Do(req)
	if err != nil {
		logx.Error(err, "Identity service request failed")
		return Identity{}, errs.NewError(errs.ErrAuthUnavailable)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return Identity{}, errs.NewError(errs.ErrAuthInvalid)
	}

	var body roturResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return Identity{}, errs.NewError(errs.ErrAuthInvalid)
	}
	if !body.Valid || body.ID == "" || body.Username == "" {
		return Identity{}, errs.NewError(errs.ErrAuthInvalid)
	}
	return Identity{ID: body.ID, Username: body.Username}, nil
}
