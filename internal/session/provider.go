// Package session manages the logged-in user's identity and bearer
// credential. The session lives in a 0600 JSON file; access tokens are
// refreshed against the auth endpoint when expired and the refreshed token
// is persisted back.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/oauth2"
)

// ErrNoSession means nobody is logged in (or the refresh token is gone).
// The remote client surfaces this as an auth error so sync cycles abort
// instead of retrying.
var ErrNoSession = errors.New("session: not logged in")

// Provider is the session source for the sync engine and remote client.
// Safe for concurrent use.
type Provider struct {
	path   string
	conf   *oauth2.Config
	logger *slog.Logger

	mu     sync.Mutex
	cached *sessionFile
}

// NewProvider creates a Provider storing its session at path. authURL is the
// token refresh endpoint; empty disables refresh (tokens are used until they
// expire, then the session reads as logged out).
func NewProvider(path, authURL string, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}

	return &Provider{
		path:   path,
		conf:   &oauth2.Config{Endpoint: oauth2.Endpoint{TokenURL: authURL}},
		logger: logger,
	}
}

// Login persists a new session, replacing any existing one.
func (p *Provider) Login(tok *oauth2.Token, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	sf := &sessionFile{Token: tok, UserID: userID}
	if err := saveFile(p.path, sf); err != nil {
		return err
	}

	p.cached = sf
	p.logger.Info("session saved", slog.String("user_id", userID))

	return nil
}

// Logout removes the session file. Missing file is not an error.
func (p *Provider) Logout() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cached = nil

	if err := removeFile(p.path); err != nil {
		return err
	}

	p.logger.Info("session cleared")

	return nil
}

// UserID returns the logged-in user's id, or ErrNoSession.
func (p *Provider) UserID() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sf, err := p.load()
	if err != nil {
		return "", err
	}

	return sf.UserID, nil
}

// AccessToken returns a valid bearer token, refreshing and persisting it
// when the cached one has expired. Implements rest.SessionSource.
func (p *Provider) AccessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sf, err := p.load()
	if err != nil {
		return "", err
	}

	if sf.Token.Valid() {
		return sf.Token.AccessToken, nil
	}

	if sf.Token.RefreshToken == "" || p.conf.Endpoint.TokenURL == "" {
		return "", fmt.Errorf("session: token expired and no refresh available: %w", ErrNoSession)
	}

	fresh, err := p.conf.TokenSource(ctx, sf.Token).Token()
	if err != nil {
		return "", fmt.Errorf("session: refreshing token: %w", err)
	}

	sf.Token = fresh
	if saveErr := saveFile(p.path, sf); saveErr != nil {
		// The refreshed token still works for this process; losing the write
		// only costs a re-refresh after restart.
		p.logger.Warn("could not persist refreshed token", slog.String("error", saveErr.Error()))
	}

	p.logger.Debug("access token refreshed")

	return fresh.AccessToken, nil
}

// load returns the cached session, reading the file on first use.
// Callers hold p.mu.
func (p *Provider) load() (*sessionFile, error) {
	if p.cached != nil {
		return p.cached, nil
	}

	sf, err := loadFile(p.path)
	if err != nil {
		return nil, err
	}

	if sf == nil {
		return nil, ErrNoSession
	}

	p.cached = sf

	return sf, nil
}
