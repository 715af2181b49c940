package github

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
)

// tokenExpiryMargin is subtracted from a cached installation token's expiry so
// a token is never handed out moments before GitHub invalidates it.
const tokenExpiryMargin = 2 * time.Minute

// TokenSource yields credentials for API calls and git operations.
type TokenSource interface {
	// Token returns a credential valid for at least tokenExpiryMargin.
	Token(ctx context.Context) (string, error)
	// Transport returns the http.RoundTripper the API client should use.
	Transport() http.RoundTripper
}

// staticTokenSource wraps a personal access token.
type staticTokenSource struct {
	token string
}

// NewStaticTokenSource builds a TokenSource from a fixed token.
func NewStaticTokenSource(token string) TokenSource {
	return &staticTokenSource{token: token}
}

func (s *staticTokenSource) Token(context.Context) (string, error) {
	return s.token, nil
}

func (s *staticTokenSource) Transport() http.RoundTripper {
	return &staticAuthTransport{token: s.token, base: http.DefaultTransport}
}

type staticAuthTransport struct {
	token string
	base  http.RoundTripper
}

func (t *staticAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+t.token)
	return t.base.RoundTrip(clone)
}

// installationTokenSource issues short-lived GitHub App installation tokens
// and caches each one until shortly before expiry.
type installationTokenSource struct {
	transport *ghinstallation.Transport

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewInstallationTokenSource builds a TokenSource from GitHub App credentials.
func NewInstallationTokenSource(appID, installationID int64, privateKeyPath string) (TokenSource, error) {
	transport, err := ghinstallation.NewKeyFromFile(http.DefaultTransport, appID, installationID, privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("create installation transport: %w", err)
	}
	return &installationTokenSource{transport: transport}, nil
}

func (s *installationTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && time.Now().Before(s.expires.Add(-tokenExpiryMargin)) {
		return s.token, nil
	}

	token, err := s.transport.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch installation token: %w", err)
	}
	s.token = token
	// ghinstallation refreshes hourly tokens internally; mirror its window
	s.expires = time.Now().Add(time.Hour)
	return token, nil
}

func (s *installationTokenSource) Transport() http.RoundTripper {
	return s.transport
}
