// Package cli holds the start-up steps shared by cmd/pocketbook and
// cmd/pocketbook-backup.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"pocketbook/internal/config"
	"pocketbook/internal/log"
)

// LoadEnvFile loads .env for local development. A missing file is not an
// error.
func LoadEnvFile(files ...string) error {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// SetupLogger builds the process logger from config and installs it as the
// slog default.
func SetupLogger(cfg config.LogConfig, component string, out io.Writer) (*log.Logger, error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	lc := log.DefaultConfig()
	lc.Level = level
	lc.Format = cfg.Format
	lc.Component = component
	if out != nil {
		lc.Output = out
	}
	logger := log.New(lc)
	log.SetDefault(logger)
	return logger, nil
}

// LoadAndValidateConfig reads configuration and runs Validate.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ShutdownContext is cancelled on SIGINT or SIGTERM.
func ShutdownContext(parent context.Context, logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.InfoContext(ctx, "Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// RunCleanup calls every cleanup in order and gives up waiting after timeout.
// Errors are logged and joined.
func RunCleanup(logger *log.Logger, timeout time.Duration, cleanups ...func() error) error {
	done := make(chan error, 1)
	go func() {
		var errs []error
		for _, c := range cleanups {
			if c == nil {
				continue
			}
			if err := c(); err != nil {
				errs = append(errs, err)
			}
		}
		done <- errors.Join(errs...)
	}()

	ctx := context.Background()
	select {
	case err := <-done:
		if err != nil {
			logger.LogError(ctx, "Cleanup failed", err, log.OpShutdown, nil)
			return err
		}
		logger.InfoContext(ctx, "Shutdown complete")
		return nil
	case <-time.After(timeout):
		logger.WarnContext(ctx, "Shutdown timeout reached")
		return fmt.Errorf("cleanup timed out after %s", timeout)
	}
}
