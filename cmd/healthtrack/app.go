package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/healthtrack/healthtrack/internal/config"
	"github.com/healthtrack/healthtrack/internal/domain/identity"
	"github.com/healthtrack/healthtrack/internal/domain/insights"
	"github.com/healthtrack/healthtrack/internal/domain/records"
	"github.com/healthtrack/healthtrack/internal/domain/scheduling"
	"github.com/healthtrack/healthtrack/internal/platform/gateway"
	"github.com/healthtrack/healthtrack/internal/platform/reporting"
	"github.com/healthtrack/healthtrack/internal/platform/session"
	"github.com/healthtrack/healthtrack/pkg/healthmodels"
)

// app holds the services one command invocation needs.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	out    io.Writer
	now    func() time.Time

	store    session.Store
	gw       *gateway.Gateway
	identity *identity.Service
	repo     records.Repository
	agg      *records.Aggregator
	sched    *scheduling.Service
	remote   *reporting.Remote
	policy   insights.Policy

	closeStore func() error
}

// newApp loads configuration and wires the services.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())

	store, closeStore, err := openSessionStore(cmd.Context(), cfg)
	if err != nil {
		return nil, err
	}
	policy, err := insights.PolicyByName(cfg.ScorePolicy)
	if err != nil {
		closeStore()
		return nil, err
	}

	gw := gateway.New(gateway.Config{
		BaseURL:     cfg.APIBaseURL,
		Timeout:     cfg.HTTPTimeout,
		SessionTTL:  cfg.SessionTTL,
		RememberTTL: cfg.RememberTTL,
	}, store, logger)

	var repo records.Repository = records.NewAPIRepository(gw)
	if cfg.RecordSource == config.SourceLocal {
		repo = records.NewLocalRepository(store, records.WithSeed())
	}

	return &app{
		cfg:        cfg,
		logger:     logger,
		out:        cmd.OutOrStdout(),
		now:        time.Now,
		store:      store,
		gw:         gw,
		identity:   identity.NewService(gw, logger),
		repo:       repo,
		agg:        records.NewAggregator(repo),
		sched:      scheduling.NewService(scheduling.NewClient(gw), logger),
		remote:     reporting.NewRemote(gw),
		policy:     policy,
		closeStore: closeStore,
	}, nil
}

func (a *app) Close() error {
	if a.closeStore == nil {
		return nil
	}
	return a.closeStore()
}

// user returns the logged-in user or gateway.ErrNotAuthenticated.
func (a *app) user(ctx context.Context) (*healthmodels.UserSummary, error) {
	return a.identity.RequireUser(ctx)
}

// apiRecords returns the REST repository, which some commands require.
func (a *app) apiRecords() (*records.APIRepository, error) {
	api, ok := a.repo.(*records.APIRepository)
	if !ok {
		return nil, gateway.NewValidationError("source", "this command needs RECORD_SOURCE=api")
	}
	return api, nil
}

// openSessionStore builds the configured session backend and its closer.
func openSessionStore(ctx context.Context, cfg *config.Config) (session.Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.SessionBackend {
	case config.SessionBackendMemory:
		return session.NewMemoryStore(), noop, nil
	case config.SessionBackendRedis:
		rs, err := session.NewRedisStore(ctx, cfg.RedisURL, session.DefaultRedisPrefix)
		if err != nil {
			return nil, nil, err
		}
		return rs, rs.Close, nil
	}

	var opts []session.FileOption
	if cfg.SessionKey != "" {
		sealer, err := session.NewSealerFromHex(cfg.SessionKey)
		if err != nil {
			return nil, nil, fmt.Errorf("session key: %w", err)
		}
		opts = append(opts, session.WithSealer(sealer))
	}
	fs, err := session.NewFileStore(cfg.SessionFile, opts...)
	if err != nil {
		return nil, nil, err
	}
	return fs, noop, nil
}

// withApp runs fn with a wired app and closes it afterwards.
func withApp(fn func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, args, a)
	}
}
