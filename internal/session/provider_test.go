package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func sessionPath(t *testing.T) string {
	t.Helper()

	return filepath.Join(t.TempDir(), "session.json")
}

func TestNoSession(t *testing.T) {
	p := NewProvider(sessionPath(t), "", testLogger(t))

	_, err := p.UserID()
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = p.AccessToken(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestLoginRoundTrip(t *testing.T) {
	path := sessionPath(t)
	p := NewProvider(path, "", testLogger(t))

	tok := &oauth2.Token{
		AccessToken: "access123",
		Expiry:      time.Now().Add(time.Hour),
	}
	require.NoError(t, p.Login(tok, "u1"))

	uid, err := p.UserID()
	require.NoError(t, err)
	assert.Equal(t, "u1", uid)

	got, err := p.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access123", got)

	// A fresh provider reads the same session back from disk.
	p2 := NewProvider(path, "", testLogger(t))

	uid, err = p2.UserID()
	require.NoError(t, err)
	assert.Equal(t, "u1", uid)

	// Owner-only permissions on the session file.
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLogout(t *testing.T) {
	path := sessionPath(t)
	p := NewProvider(path, "", testLogger(t))

	require.NoError(t, p.Login(&oauth2.Token{AccessToken: "a"}, "u1"))
	require.NoError(t, p.Logout())

	_, err := p.UserID()
	assert.ErrorIs(t, err, ErrNoSession)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))

	// Logging out twice is fine.
	require.NoError(t, p.Logout())
}

func TestExpiredTokenRefreshes(t *testing.T) {
	var refreshCalls int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshCalls++

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "refresh123", r.Form.Get("refresh_token"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "fresh456",
			"refresh_token": "refresh789",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	}))
	defer srv.Close()

	path := sessionPath(t)
	p := NewProvider(path, srv.URL, testLogger(t))

	require.NoError(t, p.Login(&oauth2.Token{
		AccessToken:  "stale",
		RefreshToken: "refresh123",
		Expiry:       time.Now().Add(-time.Minute),
	}, "u1"))

	got, err := p.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh456", got)
	assert.Equal(t, 1, refreshCalls)

	// The refreshed token was persisted: a fresh provider uses it directly.
	p2 := NewProvider(path, srv.URL, testLogger(t))

	got, err = p2.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh456", got)
	assert.Equal(t, 1, refreshCalls)
}

func TestExpiredTokenWithoutRefreshIsNoSession(t *testing.T) {
	p := NewProvider(sessionPath(t), "", testLogger(t))

	require.NoError(t, p.Login(&oauth2.Token{
		AccessToken: "stale",
		Expiry:      time.Now().Add(-time.Minute),
	}, "u1"))

	_, err := p.AccessToken(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestCorruptSessionFile(t *testing.T) {
	path := sessionPath(t)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	p := NewProvider(path, "", testLogger(t))

	_, err := p.UserID()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSession)
}
