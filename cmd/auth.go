package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/vidmark/internal/server"
	"github.com/desertthunder/vidmark/internal/shared"
	"github.com/urfave/cli/v3"
)

// AuthLogin runs the browser authorization flow and persists the issued token.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if r.config.Auth.ClientID == "" || r.config.Auth.ClientID == "your_vidmark_client_id" {
		return fmt.Errorf("%w: auth.client_id is not set, run 'vidmark setup' and edit config.toml", shared.ErrMissingConfig)
	}

	oauthConfig := server.OAuthConfig(r.config.Auth)
	token, err := server.Login(ctx, oauthConfig, r.logger)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}

	if err := r.tokens.Save(token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	r.logger.Info("token saved", "path", r.config.Auth.TokenPath)
	return r.writePlain("✓ Signed in\n")
}

// AuthStatus reports whether a usable token is stored.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	token, err := r.tokens.Load()

	status := map[string]any{"authenticated": false}
	switch {
	case errors.Is(err, shared.ErrMissingCredentials):
		status["detail"] = "no stored token, run 'vidmark auth login'"
	case err != nil:
		return fmt.Errorf("failed to read token: %w", err)
	case !token.Valid() && !token.Expiry.IsZero():
		status["detail"] = "token expired"
		status["expired_at"] = token.Expiry
	default:
		status["authenticated"] = true
		if !token.Expiry.IsZero() {
			status["expires_at"] = token.Expiry
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, true)
	}

	if status["authenticated"] == true {
		return r.writePlain("✓ Authenticated\n")
	}
	return r.writePlain("✗ Not authenticated: %v\n", status["detail"])
}

// AuthLogout removes the stored token.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := r.tokens.Clear(); err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	return r.writePlain("✓ Signed out\n")
}
