package backend

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// AuthConfig selects how the console authenticates to the backend.
// Client credentials win over a static token; with neither, requests are anonymous.
type AuthConfig struct {
	Token        string
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
}

// NewHTTPClient builds the *http.Client used for backend calls.
func NewHTTPClient(ctx context.Context, auth AuthConfig, timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	base := &http.Client{Timeout: timeout}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)

	switch {
	case auth.ClientID != "" && auth.TokenURL != "":
		cc := &clientcredentials.Config{
			ClientID:     auth.ClientID,
			ClientSecret: auth.ClientSecret,
			TokenURL:     auth.TokenURL,
			Scopes:       auth.Scopes,
		}
		client := cc.Client(ctx)
		client.Timeout = timeout
		return client
	case auth.Token != "":
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: auth.Token, TokenType: "Bearer"})
		client := oauth2.NewClient(ctx, ts)
		client.Timeout = timeout
		return client
	default:
		return base
	}
}
