package platform

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// AppTokenSource fetches and caches a Discord app access (client credentials) token.
// NOTE: This token CANNOT be used for bot endpoints; those require the bot token.
type AppTokenSource struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
	HTTPClient   *http.Client

	mu     sync.Mutex
	source oauth2.TokenSource
}

// Get returns a valid (fresh or cached) app access token.
func (ts *AppTokenSource) Get(ctx context.Context) (string, error) {
	if ts.ClientID == "" || ts.ClientSecret == "" {
		return "", errors.New("missing client id/secret for discord app token")
	}
	ts.mu.Lock()
	if ts.source == nil {
		tokenURL := ts.TokenURL
		if tokenURL == "" {
			tokenURL = DefaultBaseURL + "/oauth2/token"
		}
		cfg := &clientcredentials.Config{
			ClientID:     ts.ClientID,
			ClientSecret: ts.ClientSecret,
			TokenURL:     tokenURL,
			Scopes:       ts.Scopes,
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
		cctx := ctx
		if ts.HTTPClient != nil {
			cctx = context.WithValue(ctx, oauth2.HTTPClient, ts.HTTPClient)
		}
		// ReuseTokenSource caches until expiry and refreshes under its own lock.
		ts.source = cfg.TokenSource(cctx)
	}
	source := ts.source
	ts.mu.Unlock()

	tok, err := source.Token()
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}
