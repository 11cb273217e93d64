package qbo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
)

const (
	tokenEndpoint     = "https://oauth.platform.intuit.com/oauth2/v1/tokens/bearer"
	tokenExpiryBuffer = 5 * time.Minute // Refresh 5 minutes before expiry
)

// ErrNotConnected indicates there is no usable token material on file, or
// that refreshing it failed. Callers report this as a soft "not connected"
// condition rather than a hard error.
var ErrNotConnected = errors.New("accounting system not connected")

// SavedToken is the on-disk token format.
type SavedToken struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	Expiry       time.Time `json:"expiry"`
	RealmID      string    `json:"realm_id,omitempty"`
}

// TokenStore persists OAuth2 tokens to a local file.
type TokenStore struct {
	path string
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(path string) *TokenStore {
	return &TokenStore{path: path}
}

// Load reads the token from disk. Returns (nil, nil) when no token is saved.
func (s *TokenStore) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var saved SavedToken
	if err := json.Unmarshal(data, &saved); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}

	return &oauth2.Token{
		AccessToken:  saved.AccessToken,
		RefreshToken: saved.RefreshToken,
		TokenType:    saved.TokenType,
		Expiry:       saved.Expiry,
	}, nil
}

// Save writes the token to disk.
func (s *TokenStore) Save(token *oauth2.Token) error {
	saved := SavedToken{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		Expiry:       token.Expiry,
	}

	data, err := json.MarshalIndent(saved, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}

	return nil
}

// TokenManager handles token persistence and refresh.
type TokenManager struct {
	store *TokenStore
	conf  *oauth2.Config
}

// NewTokenManager creates a new token manager.
func NewTokenManager(clientID, clientSecret, tokenFile string) *TokenManager {
	return &TokenManager{
		store: NewTokenStore(tokenFile),
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL: tokenEndpoint,
			},
		},
	}
}

// SetTokenURL overrides the OAuth token endpoint, for sandbox realms or a
// local API emulator.
func (m *TokenManager) SetTokenURL(url string) {
	m.conf.Endpoint.TokenURL = url
}

// expiringSoon reports whether the token is expired or inside the safety
// buffer before its recorded expiry.
func expiringSoon(token *oauth2.Token) bool {
	if token.Expiry.IsZero() {
		return false
	}
	return time.Now().Add(tokenExpiryBuffer).After(token.Expiry)
}

// ValidToken returns a usable access token, refreshing synchronously when the
// saved one is expired or about to expire. A missing token or a failed
// refresh yields ErrNotConnected.
func (m *TokenManager) ValidToken(ctx context.Context) (*oauth2.Token, error) {
	token, err := m.store.Load()
	if err != nil {
		return nil, err
	}
	if token == nil || (token.AccessToken == "" && token.RefreshToken == "") {
		return nil, ErrNotConnected
	}

	if !expiringSoon(token) {
		return token, nil
	}

	return m.refresh(ctx, token)
}

// refresh exchanges the refresh token for a fresh access token. The token
// source only refreshes tokens it considers invalid, at its own threshold
// well inside our safety buffer, so it is handed the refresh token alone to
// force the exchange now.
func (m *TokenManager) refresh(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error) {
	stale := &oauth2.Token{RefreshToken: token.RefreshToken}
	newToken, err := m.conf.TokenSource(ctx, stale).Token()
	if err != nil {
		return nil, fmt.Errorf("%w: token refresh failed: %v", ErrNotConnected, err)
	}

	// Intuit rotates refresh tokens; keep the old one if the response
	// omitted a replacement.
	if newToken.RefreshToken == "" {
		newToken.RefreshToken = token.RefreshToken
	}

	if err := m.store.Save(newToken); err != nil {
		return nil, fmt.Errorf("failed to save refreshed token: %w", err)
	}

	return newToken, nil
}

// InitializeToken saves initial token material from an authorization code
// exchange performed elsewhere.
func (m *TokenManager) InitializeToken(accessToken, refreshToken string, expiry time.Time) error {
	return m.store.Save(&oauth2.Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		Expiry:       expiry,
	})
}
