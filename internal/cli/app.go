package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/roach88/studybot/internal/config"
	"github.com/roach88/studybot/internal/roster"
	"github.com/roach88/studybot/internal/session"
	"github.com/roach88/studybot/internal/store"
)

// newLogger builds the process logger from config. --verbose forces debug.
func newLogger(cfg *config.Config, verbose bool, w io.Writer) *slog.Logger {
	level := cfg.LogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}

// openRoster returns the configured roster repository and its closer. An
// empty path keeps the roster in memory.
func openRoster(cfg *config.Config, logger *slog.Logger) (roster.Repository, func(), error) {
	if cfg.Roster.Path == "" {
		logger.Info("roster in memory")
		return roster.NewMemory(nil, nil), func() {}, nil
	}

	st, err := store.Open(cfg.Roster.Path, store.WithLocation(cfg.Location()))
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open roster", err)
	}
	logger.Info("roster opened", "path", cfg.Roster.Path)
	return st, func() {
		if err := st.Close(); err != nil {
			logger.Error("error closing roster", "error", err)
		}
	}, nil
}

// openSessions returns the configured session store and its closer.
func openSessions(ctx context.Context, cfg *config.Config, logger *slog.Logger) (session.Store, func(), error) {
	switch cfg.Sessions.Backend {
	case "redis":
		opts, err := redis.ParseURL(cfg.Sessions.RedisURL)
		if err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "invalid redis URL", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, WrapExitError(ExitCommandError, "failed to reach redis", err)
		}
		logger.Info("sessions in redis", "addr", opts.Addr, "db", opts.DB)
		return session.NewRedisStore(client), func() {
			if err := client.Close(); err != nil {
				logger.Error("error closing redis", "error", err)
			}
		}, nil
	case "memory", "":
		return session.NewMemoryStore(), func() {}, nil
	default:
		return nil, nil, NewExitError(ExitCommandError, fmt.Sprintf("unknown session backend %q", cfg.Sessions.Backend))
	}
}
