package google

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"pocketbook/internal/config"
)

const installedClient = `{"installed":{"client_id":"test","client_secret":"test","redirect_uris":["http://localhost"],"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token"}}`

func TestOAuthConfig(t *testing.T) {
	conf, err := OAuthConfig([]byte(installedClient))
	require.NoError(t, err)
	assert.Equal(t, "test", conf.ClientID)
	assert.Contains(t, conf.Scopes, "https://www.googleapis.com/auth/spreadsheets")

	_, err = OAuthConfig([]byte(`{}`))
	assert.ErrorContains(t, err, "oauth config")
}

func TestLoadOAuthClient(t *testing.T) {
	data, err := LoadOAuthClient(Config{OAuthClientJSON: installedClient, OAuthClientFile: "/ignored"})
	require.NoError(t, err)
	assert.JSONEq(t, installedClient, string(data))

	path := filepath.Join(t.TempDir(), "client.json")
	require.NoError(t, os.WriteFile(path, []byte(installedClient), 0o600))
	data, err = LoadOAuthClient(Config{OAuthClientFile: path})
	require.NoError(t, err)
	assert.JSONEq(t, installedClient, string(data))

	_, err = LoadOAuthClient(Config{})
	assert.ErrorContains(t, err, "missing oauth client")
}

func TestSaveAndLoadToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	expiry := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	require.NoError(t, SaveToken(path, &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       expiry,
	}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	tok, err := LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, "refresh", tok.RefreshToken)
	assert.True(t, tok.Expiry.Equal(expiry))

	_, err = LoadToken(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "open token file")
}

func TestNewWithOAuthToken(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	_, err := New(ctx, Config{SpreadsheetID: "id", OAuthTokenFile: filepath.Join(dir, "token.json")}, nil)
	assert.ErrorContains(t, err, "missing oauth client")

	_, err = New(ctx, Config{
		SpreadsheetID:   "id",
		OAuthClientJSON: installedClient,
		OAuthTokenFile:  filepath.Join(dir, "token.json"),
	}, nil)
	assert.ErrorContains(t, err, "open token file")

	tokenPath := filepath.Join(dir, "token.json")
	require.NoError(t, SaveToken(tokenPath, &oauth2.Token{AccessToken: "a", RefreshToken: "r"}))
	c, err := New(ctx, Config{
		SpreadsheetID:   "id",
		OAuthClientJSON: installedClient,
		OAuthTokenFile:  tokenPath,
	}, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, "Transactions", c.sheetName)
}

func TestFromAppConfig(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	cfg := FromAppConfig(config.SheetsConfig{
		SpreadsheetID:   "sheet",
		SheetName:       "Tx",
		CredentialsFile: "sa.json",
		OAuthClientFile: "client.json",
		OAuthTokenFile:  "token.json",
	}, loc)

	assert.Equal(t, "sheet", cfg.SpreadsheetID)
	assert.Equal(t, "Tx", cfg.SheetName)
	assert.Equal(t, "sa.json", cfg.CredentialsFile)
	assert.Equal(t, "client.json", cfg.OAuthClientFile)
	assert.Equal(t, "token.json", cfg.OAuthTokenFile)
	assert.Same(t, loc, cfg.Location)
}

func TestNewState(t *testing.T) {
	a, b := NewState(), NewState()
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}

func TestCallbackCode(t *testing.T) {
	tests := []struct {
		name    string
		query   url.Values
		code    string
		wantErr string
	}{
		{"ok", url.Values{"state": {"s1"}, "code": {"abc"}}, "abc", ""},
		{"provider error", url.Values{"error": {"access_denied"}}, "", "oauth error: access_denied"},
		{"state mismatch", url.Values{"state": {"other"}, "code": {"abc"}}, "", "oauth state mismatch"},
		{"no code", url.Values{"state": {"s1"}}, "", "missing authorization code"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := CallbackCode(tt.query, "s1")
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.code, code)
		})
	}
}
