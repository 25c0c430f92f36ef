package main

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinic/scheduler/internal/config"
	"github.com/clinic/scheduler/internal/domain/scheduling"
	"github.com/clinic/scheduler/internal/platform/auth"
	"github.com/clinic/scheduler/internal/platform/cache"
	"github.com/clinic/scheduler/internal/platform/db"
)

func newLogger(cfg *config.Config, w io.Writer) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

func jwtConfig(cfg *config.Config) auth.JWTConfig {
	return auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		SigningKey: []byte(cfg.AuthSigningKey),
		Skipper:    auth.AuthSkipper,
	}
}

// app holds the wired scheduler and the resources that must be released on
// exit.
type app struct {
	scheduler *scheduling.Scheduler
	loc       *time.Location
	checks    []db.Check
	closers   []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp selects the store named by STORE, puts the Redis cache in front of
// it when REDIS_URL is set, and builds the Scheduler.
func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	sc, err := cfg.SchedulerConfig()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	a := &app{loc: loc}

	var store scheduling.AppointmentStore
	switch cfg.Store {
	case config.StoreMemory:
		store = scheduling.NewMemoryStore()
		logger.Info().Msg("using in-memory appointment store")
	default:
		pool, err := db.NewPool(ctx, db.PoolConfig{
			URL:      cfg.DatabaseURL,
			MaxConns: cfg.DBMaxConns,
			MinConns: cfg.DBMinConns,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		a.checks = append(a.checks, db.PoolCheck(pool))
		store = scheduling.NewAppointmentStorePG(pool)
		logger.Info().Msg("connected to database")
	}

	if cfg.RedisURL != "" {
		c, err := cache.New(ctx, cache.Config{URL: cfg.RedisURL, TTL: cfg.CacheTTL}, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = c.Close() })
		a.checks = append(a.checks, db.Check{Name: "cache", Ping: c.Ping})
		store = cache.NewAppointmentStore(store, c)
	}

	a.scheduler = scheduling.NewScheduler(store, scheduling.SystemClock{}, sc, logger)
	return a, nil
}
