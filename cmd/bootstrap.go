package cmd

import (
	"context"
	"fmt"

	"asset-streamer/core/config"
	"asset-streamer/core/database"
	"asset-streamer/core/logger"
	"asset-streamer/core/resource"
	"asset-streamer/core/storage"
	"asset-streamer/feature/assets"
	"asset-streamer/feature/catalog"

	"go.uber.org/zap"
)

// deps is the set of dependencies every command builds the same way.
type deps struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    storage.Client
	catalog  *catalog.Repository
	registry *resource.Registry
}

// bootstrap loads configuration and connects the logger, the storage client
// and, when enabled, the catalog database.
func bootstrap(ctx context.Context) (*deps, error) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logg, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	rt := &deps{cfg: cfg, logger: logg, registry: resource.NewRegistry()}

	if cfg.Assets.Source == assets.SourceBucket || cfg.Database.Enabled {
		store, err := storage.NewClient(cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		rt.store = store
	}

	if cfg.Database.Enabled {
		db, err := database.Connect(cfg.Database)
		if err != nil {
			// The catalog only enriches metadata; serving works without it.
			logg.Warn("Catalog database unavailable", zap.Error(err))
		} else {
			repo := catalog.NewRepository(db)
			if err := repo.Migrate(ctx); err != nil {
				return nil, err
			}
			rt.catalog = repo
			logg.Info("Connected to catalog database", zap.String("database", cfg.Database.Name))
		}
	}
	return rt, nil
}

// source builds the configured asset source.
func (rt *deps) source() (assets.Source, error) {
	switch rt.cfg.Assets.Source {
	case assets.SourceBucket:
		return assets.NewBucketSource(rt.store, rt.cfg.Storage.Bucket, rt.cfg.Assets.Prefix), nil
	case assets.SourceDir:
		return assets.NewDirSource(rt.cfg.Assets.Dir), nil
	default:
		return nil, fmt.Errorf("unknown asset source %q", rt.cfg.Assets.Source)
	}
}

// service builds the resource manager and the asset service over it.
func (rt *deps) service() (*assets.Service, error) {
	src, err := rt.source()
	if err != nil {
		return nil, err
	}
	mgr, err := resource.NewManager("assets", rt.cfg.Cache,
		resource.WithLogger(rt.logger),
		resource.WithRegistry(rt.registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource manager: %w", err)
	}

	var cat assets.Catalog
	if rt.catalog != nil {
		cat = rt.catalog
	}
	return assets.NewService(mgr, src, cat, rt.cfg.Assets, rt.logger), nil
}

// syncer returns a catalog syncer, or nil without a catalog or bucket.
func (rt *deps) syncer() *catalog.Syncer {
	if rt.catalog == nil || rt.store == nil {
		return nil
	}
	return catalog.NewSyncer(rt.catalog, rt.store, rt.cfg.Storage.Bucket, rt.cfg.Assets.Prefix, rt.logger)
}
