package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vidmark/internal/shared"
	"golang.org/x/oauth2"
)

// OAuthConfig builds the [oauth2.Config] for the configured identity provider.
func OAuthConfig(auth shared.AuthConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:    auth.ClientID,
		RedirectURL: auth.RedirectURI,
		Scopes:      []string{"jobs:read"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  auth.IssuerURL + "/oauth/authorize",
			TokenURL: auth.IssuerURL + "/oauth/token",
		},
	}
}

// Login runs the authorization-code flow against the identity provider.
//
// It serves the callback on the redirect URI's host, opens the system browser
// to the authorize URL, and blocks until the callback delivers a token or the
// context expires.
func Login(ctx context.Context, config *oauth2.Config, logger *log.Logger) (*oauth2.Token, error) {
	redirect, err := url.Parse(config.RedirectURL)
	if err != nil || redirect.Host == "" {
		return nil, fmt.Errorf("%w: invalid redirect uri %q", shared.ErrInvalidConfig, config.RedirectURL)
	}

	state := shared.GenerateID()
	handler := NewOAuthHandler(config, state)

	router := NewBasicRouter()
	router.Use(RequestLogger(logger))
	router.Handle(http.MethodGet, redirect.Path, handler)

	srv := &http.Server{Addr: redirect.Host, Handler: router}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("callback server failed", "err", err)
		}
	}()
	defer srv.Shutdown(context.Background())

	authURL := config.AuthCodeURL(state)
	logger.Info("waiting for authorization", "url", authURL)
	if err := shared.OpenBrowser(authURL); err != nil {
		logger.Warn("could not open browser, visit the URL manually", "err", err)
	}

	select {
	case result := <-handler.Result():
		if err := result.Error(); err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
		}
		return result.Token, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", shared.ErrTimeout, ctx.Err())
	}
}
