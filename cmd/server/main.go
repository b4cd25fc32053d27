package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"

	"github.com/pauljones0/harvester/internal/app"
	"github.com/pauljones0/harvester/internal/cache"
	"github.com/pauljones0/harvester/internal/config"
	"github.com/pauljones0/harvester/internal/identity"
	"github.com/pauljones0/harvester/internal/normalizer"
	"github.com/pauljones0/harvester/internal/remotesync"
	"github.com/pauljones0/harvester/internal/scriptgen"
	"github.com/pauljones0/harvester/internal/server"
	"github.com/pauljones0/harvester/internal/storage"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Critical error loading configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	logger.Info("Starting harvester server...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped.")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	store, err := cache.NewStoreFromConfig(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	logger.Info("Local cache ready", "backend", cfg.CacheBackend)

	opts := app.Options{
		Store:      store,
		Normalizer: normalizer.New(normalizer.WithIDGenerator(normalizer.IDGeneratorFor(cfg.SyntheticIDMode))),
		IngestMode: cfg.IngestMode,
		Logger:     logger,
	}

	if cfg.RemoteEnabled() {
		var clientOpts []option.ClientOption
		if cfg.CredentialsFile != "" {
			clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
		}
		remote, err := storage.New(ctx, cfg.ProjectID, cfg.UsersCollection, cfg.PostsCollection, clientOpts...)
		if err != nil {
			return err
		}
		defer remote.Close()

		opts.Syncer = remotesync.New(remote, cfg.SyncChunkSize, cfg.SyncCommitsPerSecond, logger)
		if cfg.OAuthClientID != "" {
			verifier, err := identity.NewGoogleVerifier(ctx, cfg.OAuthClientID, clientOpts...)
			if err != nil {
				return err
			}
			opts.Verifier = verifier
		}
		logger.Info("Remote sync enabled", "project", cfg.ProjectID)
	} else {
		logger.Warn("Remote sync disabled; running guest-only. Set GOOGLE_CLOUD_PROJECT and GOOGLE_OAUTH_CLIENT_ID to enable sign-in.")
	}

	a := app.New(ctx, opts)
	defer a.Close()

	srv := server.New(cfg, a, scriptgen.New(scriptgen.LoadConfig("")), logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
