package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"crewsync/internal/domain"
)

// TokenSource supplies a valid bearer token for directory calls. Every public
// client operation asks the source for a token first; refresh behaviour is
// the variant's concern.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// AppTokenSource acquires tokens via the OAuth2 client-credential grant and
// self-refreshes ahead of expiry by a safety buffer.
type AppTokenSource struct {
	cc     clientcredentials.Config
	buffer time.Duration

	mu      sync.Mutex
	current *oauth2.Token
}

// NewAppTokenSource builds an application-credential token source.
// refreshBuffer is how far ahead of expiry a new token is acquired.
func NewAppTokenSource(tokenURL, clientID, clientSecret string, scopes []string, refreshBuffer time.Duration) *AppTokenSource {
	return &AppTokenSource{
		cc: clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			Scopes:       scopes,
		},
		buffer: refreshBuffer,
	}
}

// Token returns the cached token, acquiring a fresh one when the cached
// token is absent or within the refresh buffer of expiring.
func (s *AppTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil && time.Until(s.current.Expiry) > s.buffer {
		return s.current.AccessToken, nil
	}

	tok, err := s.cc.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("client-credential grant: %w", err)
	}
	s.current = tok
	return tok.AccessToken, nil
}

// CachedToken is the app-metadata representation of a delegated-mode token.
type CachedToken struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry"`
}

// DelegatedTokenSource reads a user token cached in app metadata by the login
// adapter. It has no refresh capability: once the cached token is expired
// (past the buffer), every call fails until an operator signs in again.
type DelegatedTokenSource struct {
	meta   domain.MetadataStore
	key    string
	buffer time.Duration
}

// NewDelegatedTokenSource builds a delegated-mode token source reading the
// given app-metadata key.
func NewDelegatedTokenSource(meta domain.MetadataStore, key string, refreshBuffer time.Duration) *DelegatedTokenSource {
	return &DelegatedTokenSource{meta: meta, key: key, buffer: refreshBuffer}
}

// Token returns the cached user token, or an AccessDeniedError when no token
// is cached or the cached token is expired.
func (s *DelegatedTokenSource) Token(ctx context.Context) (string, error) {
	raw, err := s.meta.Get(ctx, s.key)
	if err != nil {
		var notFound *domain.NotFoundError
		if errors.As(err, &notFound) {
			return "", domain.ErrAccessDenied("no cached user token; sign in via /auth/login")
		}
		return "", fmt.Errorf("read cached token: %w", err)
	}

	var tok CachedToken
	if err := json.Unmarshal([]byte(raw), &tok); err != nil {
		return "", fmt.Errorf("decode cached token: %w", err)
	}
	if time.Until(tok.Expiry) <= s.buffer {
		return "", domain.ErrAccessDenied("cached user token expired; sign in via /auth/login")
	}
	return tok.AccessToken, nil
}

// StaticTokenSource returns a fixed token. Test use.
type StaticTokenSource string

func (s StaticTokenSource) Token(context.Context) (string, error) { return string(s), nil }
