package main

import (
	"context"
	"fmt"
	"time"

	"confprog/internal/auth"
	"confprog/internal/catalog"
	"confprog/internal/config"
	"confprog/internal/favorites"
	"confprog/internal/ics"
	appLog "confprog/internal/log"
	"confprog/internal/store"
)

// app is the wired set of collaborators shared by the subcommands.
type app struct {
	cfg       *config.Config
	loc       *time.Location
	catalog   *catalog.Catalog
	docs      store.DocumentStore
	provider  *auth.LocalProvider
	favorites *favorites.Repository
	encoder   *ics.Encoder
}

func bootstrap(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", configPath, err)
	}
	appLog.Configure(appLog.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	cat, err := catalog.Load(ctx, cfg.CatalogSource, catalog.NewFetcher(cfg.CatalogCacheDir))
	if err != nil {
		return nil, err
	}

	docs, err := store.Open(ctx, store.Options{
		Backend:     cfg.Store.Backend,
		Dir:         cfg.Store.Dir,
		PostgresDSN: cfg.Store.PostgresDSN,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}

	return &app{
		cfg:       cfg,
		loc:       loc,
		catalog:   cat,
		docs:      docs,
		provider:  auth.NewLocalProvider(docs, cfg.Auth.MinPasswordLength),
		favorites: favorites.NewRepository(docs),
		encoder:   ics.NewEncoder(cfg.Calendar.ProductID, cfg.Calendar.UIDDomain),
	}, nil
}

func (a *app) close() {
	if err := a.docs.Close(); err != nil {
		appLog.Error("closing document store failed", err)
	}
}
