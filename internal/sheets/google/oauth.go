package google

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// OAuthConfig parses an installed-app OAuth client for the Sheets scope.
func OAuthConfig(clientJSON []byte) (*oauth2.Config, error) {
	conf, err := googleoauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	return conf, nil
}

// LoadOAuthClient returns the OAuth client JSON from cfg, inline first.
func LoadOAuthClient(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.OAuthClientJSON) != "":
		return []byte(cfg.OAuthClientJSON), nil
	case cfg.OAuthClientFile != "":
		data, err := os.ReadFile(cfg.OAuthClientFile)
		if err != nil {
			return nil, fmt.Errorf("read oauth client file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing oauth client (set sheets.oauth_client_json or sheets.oauth_client_file)")
	}
}

// LoadToken reads a token saved by SaveToken.
func LoadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open token file: %w", err)
	}
	defer f.Close()

	var tok oauth2.Token
	if err := json.NewDecoder(f).Decode(&tok); err != nil {
		return nil, fmt.Errorf("decode token file: %w", err)
	}
	return &tok, nil
}

// SaveToken writes tok to path, readable by the owner only.
func SaveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open token file: %w", err)
	}
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		f.Close()
		return fmt.Errorf("write token: %w", err)
	}
	return f.Close()
}

// clientOptions authenticates with the user's OAuth token when a token file
// is configured, otherwise with the service account.
func clientOptions(ctx context.Context, cfg Config) ([]goption.ClientOption, error) {
	if cfg.OAuthTokenFile != "" {
		clientJSON, err := LoadOAuthClient(cfg)
		if err != nil {
			return nil, err
		}
		conf, err := OAuthConfig(clientJSON)
		if err != nil {
			return nil, err
		}
		tok, err := LoadToken(cfg.OAuthTokenFile)
		if err != nil {
			return nil, err
		}
		return []goption.ClientOption{goption.WithTokenSource(conf.TokenSource(ctx, tok))}, nil
	}

	credentialsJSON, err := loadCredentials(cfg)
	if err != nil {
		return nil, err
	}
	return []goption.ClientOption{
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
	}, nil
}

// NewState returns a random value for the OAuth state parameter.
func NewState() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("state-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

// CallbackCode extracts the authorization code from the redirect query,
// rejecting provider errors and a mismatched state.
func CallbackCode(q url.Values, state string) (string, error) {
	if e := q.Get("error"); e != "" {
		return "", fmt.Errorf("oauth error: %s", e)
	}
	if q.Get("state") != state {
		return "", errors.New("oauth state mismatch")
	}
	code := q.Get("code")
	if code == "" {
		return "", errors.New("missing authorization code")
	}
	return code, nil
}
