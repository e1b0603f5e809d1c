package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"asset-streamer/core/loader"
	"asset-streamer/core/logger"
	"asset-streamer/core/middleware/auth"
	"asset-streamer/core/middleware/rayid"
	"asset-streamer/feature/assets"
	"asset-streamer/feature/catalog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	_ "asset-streamer/docs/swagger"
)

// @title Asset Streamer API
// @version 1.0
// @description Serves assets through a budgeted, generation-evicting cache.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the asset streaming server",
	Long: `Starts the HTTP server, the cache worker, the post-sync frame loop and,
when enabled, the change watcher.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runStart(ctx)
	},
}

func init() {
	RootCmd.AddCommand(startCmd)
}

func runStart(ctx context.Context) error {
	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	logg := rt.logger
	defer logg.Sync()
	zap.ReplaceGlobals(logg)

	svc, err := rt.service()
	if err != nil {
		return err
	}

	features := loader.NewManager()
	features.Register(assets.NewFeature(svc, logg))
	features.Register(catalog.NewFeature(rt.catalog, rt.syncer(), logg))

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             rt.cfg.Server.BodyLimit,
	})
	app.Use(rayid.New())
	app.Use(logger.Middleware(logg))
	app.Get("/swagger/*", swagger.HandlerDefault)
	app.Use(auth.New(auth.Config{ApiKey: rt.cfg.Server.ApiKey, Skip: []string{"/swagger"}}))

	if err := features.LoadAll(app); err != nil {
		return err
	}
	logg.Info("Features loaded", zap.Strings("features", features.Loaded()))

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		addr := rt.cfg.Server.Address()
		logg.Info("Starting server", zap.String("address", addr))
		if err := app.Listen(addr); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	if svc.Manager().UsesAsync() {
		loop := assets.NewFrameLoop(rt.registry, rt.cfg.Cache.FrameInterval, rt.cfg.Cache.PostSyncBudget, logg)
		g.Go(func() error { return loop.Run(ctx) })
	}

	if rt.cfg.Assets.Watch {
		run, err := watcher(rt, svc)
		if err != nil {
			return err
		}
		g.Go(func() error { return run(ctx) })
	}

	g.Go(func() error {
		<-ctx.Done()
		logg.Info("Shutting down server...")
		return app.ShutdownWithTimeout(rt.cfg.Server.ShutdownTimeout)
	})

	err = g.Wait()
	if cerr := features.CloseAll(); cerr != nil {
		logg.Warn("Feature shutdown reported errors", zap.Error(cerr))
	}
	return err
}

// watcher picks the change watcher matching the asset source.
func watcher(rt *deps, svc *assets.Service) (func(context.Context) error, error) {
	switch src := svc.Source().(type) {
	case *assets.BucketSource:
		return assets.NewBucketWatcher(rt.store, rt.cfg.Storage.Bucket, src, svc, rt.logger).Run, nil
	case *assets.DirSource:
		return assets.NewDirWatcher(src, svc, rt.logger).Run, nil
	default:
		return nil, fmt.Errorf("no watcher for source %T", src)
	}
}
