package hub

import (
	"context"
	"errors"
)

// ErrNoToken is returned by calls that require authentication when the client
// has no token.
var ErrNoToken = errors.New("no hub token configured (set --hub-token or EMOTUNE_HUB_TOKEN)")

// Identity is the decoded reply of GET /api/whoami-v2.
type Identity struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Email string `json:"email"`
	Orgs  []struct {
		Name string `json:"name"`
	} `json:"orgs"`
	Auth struct {
		AccessToken struct {
			DisplayName string `json:"displayName"`
			Role        string `json:"role"`
		} `json:"accessToken"`
	} `json:"auth"`
}

// CanWrite reports whether the token role allows pushes. Fine-grained tokens
// report an empty role and are allowed through; the commit call decides.
func (id *Identity) CanWrite() bool {
	return id.Auth.AccessToken.Role != "read"
}

// Namespaces returns the user name followed by its organizations.
func (id *Identity) Namespaces() []string {
	out := []string{id.Name}
	for _, o := range id.Orgs {
		out = append(out, o.Name)
	}
	return out
}

// WhoAmI verifies the token and returns the identity it belongs to.
func (c *Client) WhoAmI(ctx context.Context) (*Identity, error) {
	if !c.HasToken() {
		return nil, ErrNoToken
	}
	var id Identity
	if err := c.doJSON(ctx, "GET", c.baseURL()+"/api/whoami-v2", nil, &id); err != nil {
		return nil, err
	}
	logf(id.Name, "authenticated (role=%s)", id.Auth.AccessToken.Role)
	return &id, nil
}
