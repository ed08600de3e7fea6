// Command pocketbook-oauth-init runs the OAuth consent flow once and saves
// the token used by the Google Sheets export.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"pocketbook/internal/cli"
	"pocketbook/internal/config"
	"pocketbook/internal/log"
	"pocketbook/internal/sheets/google"
)

const authTimeout = 5 * time.Minute

func main() {
	if err := cli.LoadEnvFile(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger, err := cli.SetupLogger(cfg.Log, log.ComponentSheets, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, cancel := cli.ShutdownContext(context.Background(), logger)
	defer cancel()

	if err := run(ctx, cfg.Sheets, logger); err != nil {
		logger.ErrorContext(ctx, "OAuth setup failed", log.FieldError, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, sc config.SheetsConfig, logger *log.Logger) error {
	clientJSON, err := google.LoadOAuthClient(google.FromAppConfig(sc, nil))
	if err != nil {
		return err
	}
	conf, err := google.OAuthConfig(clientJSON)
	if err != nil {
		return err
	}

	// The OAuth client must list this URI among its authorized redirect URIs.
	port := sc.OAuthRedirectPort
	if port == 0 {
		port = 8085
	}
	conf.RedirectURL = "http://localhost:" + strconv.Itoa(port) + "/callback"

	state := google.NewState()
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		code, err := google.CallbackCode(r.URL.Query(), state)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			select {
			case errCh <- err:
			default:
			}
			return
		}
		fmt.Fprintln(w, "You may close this window and return to the terminal.")
		select {
		case codeCh <- code:
		default:
		}
	})
	srv := &http.Server{Addr: "localhost:" + strconv.Itoa(port), Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case errCh <- err:
			default:
			}
		}
	}()
	defer srv.Close()

	fmt.Printf("Open this URL to authorize:\n%s\n", conf.AuthCodeURL(state, oauth2.AccessTypeOffline))

	var code string
	select {
	case code = <-codeCh:
	case err := <-errCh:
		return err
	case <-time.After(authTimeout):
		return errors.New("authorization timed out")
	case <-ctx.Done():
		return errors.New("interrupted")
	}

	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("token exchange: %w", err)
	}

	out := sc.OAuthTokenFile
	if out == "" {
		out = "token.json"
	}
	if err := google.SaveToken(out, tok); err != nil {
		return err
	}
	logger.InfoContext(ctx, "OAuth token saved", log.FieldPath, out)
	fmt.Printf("Saved token to %s\nSet sheets.oauth_token_file to use it.\n", out)
	return nil
}
