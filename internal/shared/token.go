package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
)

// TokenStore persists the [oauth2.Token] issued by the identity provider as a JSON file.
//
// It is the credential source for the realtime client: the channel auth
// handshake and the history endpoint both read the access token from here.
type TokenStore struct {
	path string
}

// NewTokenStore creates a TokenStore backed by the file at path.
func NewTokenStore(path string) *TokenStore {
	return &TokenStore{path: path}
}

// Load reads the persisted token.
//
// Returns [ErrMissingCredentials] if no token has been saved yet.
func (s *TokenStore) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrMissingCredentials
		}
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}

	return &token, nil
}

// Save writes the token to disk, creating parent directories as needed.
// The file is only readable by the current user.
func (s *TokenStore) Save(token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: empty token", ErrInvalidCredentials)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create token directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}

	return nil
}

// Clear removes the persisted token. Missing files are not an error.
func (s *TokenStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}

// Credential returns the raw access token string for the auth handshake and
// bearer headers.
//
// Returns [ErrMissingCredentials] if no token is persisted and
// [ErrTokenExpired] if the persisted token carries an expiry in the past.
func (s *TokenStore) Credential() (string, error) {
	token, err := s.Load()
	if err != nil {
		return "", err
	}

	if !token.Expiry.IsZero() && token.Expiry.Before(time.Now()) {
		return "", ErrTokenExpired
	}

	return token.AccessToken, nil
}
