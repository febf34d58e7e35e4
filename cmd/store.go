package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/podreach/leadpipe/internal/config"
	"github.com/podreach/leadpipe/internal/store"
)

// openStore opens the configured backend and applies migrations.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	var (
		s   store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		s, err = store.NewSQLite(cfg.Store.Path)
	case "postgres":
		s, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}

	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return s, nil
}
