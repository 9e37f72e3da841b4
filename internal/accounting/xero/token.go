package xero

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"

	"golang.org/x/oauth2"
)

// Endpoint is the provider's OAuth2 authorization server.
var Endpoint = oauth2.Endpoint{
	AuthURL:   "https://login.xero.com/identity/connect/authorize",
	TokenURL:  "https://identity.xero.com/connect/token",
	AuthStyle: oauth2.AuthStyleInHeader,
}

// Scopes requested by cmd/oauth-init. offline_access yields a refresh token.
var Scopes = []string{
	"offline_access",
	"accounting.transactions",
	"accounting.settings",
	"accounting.contacts",
}

// OAuthConfig builds the authorization-code flow configuration.
func OAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     Endpoint,
		RedirectURL:  redirectURL,
		Scopes:       Scopes,
	}
}

// LoadToken reads a token from inline JSON, or from path when inline is empty.
func LoadToken(path, inline string) (*oauth2.Token, error) {
	var b []byte
	switch {
	case strings.TrimSpace(inline) != "":
		b = []byte(inline)
	case strings.TrimSpace(path) != "":
		var err error
		b, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read token file: %w", err)
		}
	default:
		return nil, errors.New("no token configured (set XERO_TOKEN_FILE or XERO_TOKEN_JSON)")
	}
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, errors.New("token has neither access nor refresh token")
	}
	return &tok, nil
}

// SaveToken writes tok to path with owner-only permissions.
func SaveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open token file: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}

// persistingSource writes every newly refreshed token back to disk, since the
// provider rotates refresh tokens on use.
type persistingSource struct {
	src  oauth2.TokenSource
	path string

	mu   sync.Mutex
	last string
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if s.path == "" {
		return tok, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.RefreshToken != s.last {
		if err := SaveToken(s.path, tok); err != nil {
			return nil, err
		}
		s.last = tok.RefreshToken
	}
	return tok, nil
}

// NewHTTPClient returns an http.Client that authenticates with tok and
// refreshes it as needed. Refreshed tokens are saved to tokenPath when set.
func NewHTTPClient(ctx context.Context, cfg *oauth2.Config, tok *oauth2.Token, tokenPath string) *http.Client {
	src := &persistingSource{src: cfg.TokenSource(ctx, tok), path: tokenPath, last: tok.RefreshToken}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, src))
}
