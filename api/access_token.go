package api

import "fmt"

// AccessToken is an OAuth access token.
type AccessToken struct {
	// The token value, typically a 40-character random string.
	Token string
	// The token type, e.g. "bearer".
	Type string
	// Space-separated list of OAuth scopes that this token grants.
	Scope string
}

// String describes the token without revealing it.
func (t AccessToken) String() string {
	return fmt.Sprintf("AccessToken{Type: %q, Scope: %q, Token: [redacted]}", t.Type, t.Scope)
}

// AccessToken extracts the access token information from a server response. The token is considered
// granted whenever the "access_token" key is present in the response body.
func (r Response) AccessToken() (*AccessToken, error) {
	if r.Has("access_token") {
		return &AccessToken{
			Token: r.Get("access_token"),
			Type:  r.Get("token_type"),
			Scope: r.Get("scope"),
		}, nil
	}

	return nil, r.Err()
}
