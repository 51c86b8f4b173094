package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const (
	authModeAPIKey    = "api_key"
	authModeHeaderKey = "header_key"
)

// TokenSource returns credential material for request auth.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Source() string
}

type staticTokenSource struct {
	token  string
	source string
}

func NewStaticTokenSource(token, source string) TokenSource {
	return &staticTokenSource{
		token:  strings.TrimSpace(token),
		source: strings.TrimSpace(source),
	}
}

func (s *staticTokenSource) Token(context.Context) (string, error) {
	tok := s.token
	if tok == "" {
		return "", fmt.Errorf("token is empty for %s", s.Source())
	}
	if isPlaceholderToken(tok) {
		return "", fmt.Errorf("token for %s looks like an unexpanded placeholder", s.Source())
	}
	return tok, nil
}

func (s *staticTokenSource) Source() string {
	if s.source != "" {
		return s.source
	}
	return "static"
}

func isPlaceholderToken(tok string) bool {
	return (strings.HasPrefix(tok, "<") && strings.HasSuffix(tok, ">")) ||
		(strings.HasPrefix(tok, "${") && strings.HasSuffix(tok, "}"))
}

// AuthStrategy applies request auth for provider HTTP calls.
type AuthStrategy interface {
	Mode() string
	Apply(ctx context.Context, req *http.Request) error
}

// headerAuth writes the resolved key into one request header, optionally
// behind a scheme prefix.
type headerAuth struct {
	mode   string
	header string
	prefix string
	source TokenSource
}

// NewAPIKeyAuth sends the key as a bearer token.
func NewAPIKeyAuth(source TokenSource) AuthStrategy {
	return &headerAuth{mode: authModeAPIKey, header: "Authorization", prefix: "Bearer ", source: source}
}

// NewHeaderKeyAuth sends the key verbatim in a vendor header such as x-api-key.
func NewHeaderKeyAuth(header string, source TokenSource) AuthStrategy {
	return &headerAuth{mode: authModeHeaderKey, header: header, source: source}
}

func (a *headerAuth) Mode() string { return a.mode }

func (a *headerAuth) Apply(ctx context.Context, req *http.Request) error {
	if a.source == nil {
		return fmt.Errorf("%s auth has no token source", a.mode)
	}
	tok, err := a.source.Token(ctx)
	if err != nil {
		return fmt.Errorf("resolve auth token: %w", err)
	}
	req.Header.Set(a.header, a.prefix+tok)
	return nil
}
