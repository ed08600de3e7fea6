package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"pocketbook/internal/backend"
	"pocketbook/internal/cli"
	"pocketbook/internal/config"
	"pocketbook/internal/log"
	"pocketbook/internal/store"
	"pocketbook/internal/trace"
)

type app struct {
	cfg    *config.Config
	logger *log.Logger
	store  *store.Store
	loc    *time.Location
	out    io.Writer
	now    func() time.Time

	cleanup backend.CleanupFunc
}

var errUsage = errors.New("usage")

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		usage(stdout)
		return 0
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "pocketbook: unknown command %q\n\n", args[0])
		usage(stderr)
		return 2
	}

	a, err := newApp(ctx, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "pocketbook: %v\n", err)
		return 1
	}
	defer a.close()

	ctx, span := trace.Start(ctx, a.logger.Slog(), args[0])
	err = cmd.run(ctx, a, args[1:])
	span.End(err)
	if err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(stderr, "usage: pocketbook %s %s\n", args[0], cmd.usage)
			return 2
		}
		fmt.Fprintf(stderr, "pocketbook: %v\n", userMessage(err))
		return 1
	}
	return 0
}

func newApp(ctx context.Context, stdout, stderr io.Writer) (*app, error) {
	if err := cli.LoadEnvFile(); err != nil {
		return nil, err
	}
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return nil, err
	}
	logger, err := cli.SetupLogger(cfg.Log, log.ComponentCLI, stderr)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger.Slog()).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	opts := []store.Option{store.WithLogger(logger.Slog())}
	if res.Notifier != nil {
		opts = append(opts, store.WithNotifier(res.Notifier))
	}
	s := store.New(res.Store, opts...)
	if err := s.Initialize(ctx); err != nil {
		if res.Cleanup != nil {
			res.Cleanup()
		}
		return nil, err
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   s,
		loc:     loc,
		out:     stdout,
		now:     time.Now,
		cleanup: res.Cleanup,
	}, nil
}

func (a *app) close() {
	if a.cleanup == nil {
		return
	}
	_ = cli.RunCleanup(a.logger, 5*time.Second, a.cleanup)
}

func (a *app) today() time.Time {
	return a.now().In(a.loc)
}
