package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"socialhub/config"
	"socialhub/handlers"
	"socialhub/jobs"
	"socialhub/media"
	"socialhub/metrics"
	"socialhub/middleware"
	"socialhub/presence"
	"socialhub/spotify"
	"socialhub/storage"
	"socialhub/storage/memory"
	"socialhub/storage/seed"
	"socialhub/storage/sqlstore"
)

var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}

	cmd := &cobra.Command{
		Use:           "socialhub",
		Short:         "Social network API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (environment variables override it)")

	cmd.AddCommand(serve)
	cmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create or update the SQL schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(configPath)
			if err != nil {
				return err
			}
			if cfg.Storage.Driver == "memory" {
				log.Info("memory storage has no schema, nothing to migrate")
				return nil
			}
			store, err := openStorage(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			return store.Close()
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "Insert demo users, posts and stories into an empty backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(configPath)
			if err != nil {
				return err
			}
			store, err := openStorage(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer store.Close()
			return seed.Run(cmd.Context(), store, log, cfg.Storage.SeedAdminPassword)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("socialhub %s\n", version)
		},
	})
	return cmd
}

func setup(configPath string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, errors.Wrap(err, "load config")
	}
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(log)
	return cfg, log, nil
}

// openStorage connects the configured backend; SQL backends are migrated.
func openStorage(ctx context.Context, cfg *config.Config, log *slog.Logger) (storage.Storage, error) {
	if cfg.Storage.Driver == "memory" {
		log.Info("using in-memory storage, data is lost on restart")
		return memory.New(), nil
	}
	store, err := sqlstore.Open(cfg.Storage.Driver, cfg.Storage.DSN, log)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func initMedia(ctx context.Context, cfg *config.Config, log *slog.Logger) (media.Store, error) {
	if cfg.MinIO.Endpoint == "" {
		return media.NewLocalStore(cfg.Upload.Dir, cfg.Upload.PublicURL)
	}
	store, err := media.NewMinioStore(media.MinioConfig{
		Endpoint:  cfg.MinIO.Endpoint,
		AccessKey: cfg.MinIO.AccessKey,
		SecretKey: cfg.MinIO.SecretKey,
		Bucket:    cfg.MinIO.Bucket,
		UseSSL:    cfg.MinIO.UseSSL,
		PublicURL: cfg.MinIO.PublicURL,
	})
	if err != nil {
		return nil, err
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	log.Info("uploads go to minio", "endpoint", cfg.MinIO.Endpoint, "bucket", cfg.MinIO.Bucket)
	return store, nil
}

// initRedis returns nil when no address is configured.
func initRedis(ctx context.Context, cfg *config.Config, log *slog.Logger) (*redis.Client, error) {
	if cfg.Redis.Addr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, errors.Wrapf(err, "connect redis %s", cfg.Redis.Addr)
	}
	log.Info("redis connected", "addr", cfg.Redis.Addr)
	return rdb, nil
}

func runServe(ctx context.Context, configPath string) error {
	cfg, log, err := setup(configPath)
	if err != nil {
		return err
	}
	if cfg.UsesDefaultSecret() {
		log.Warn("JWT_SECRET is not set, tokens are signed with the built-in development secret")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()
	if cfg.Storage.Seed {
		if err := seed.Run(ctx, store, log, cfg.Storage.SeedAdminPassword); err != nil {
			return err
		}
	}

	uploads, err := initMedia(ctx, cfg, log)
	if err != nil {
		return err
	}

	rdb, err := initRedis(ctx, cfg, log)
	if err != nil {
		return err
	}
	var (
		tokens  spotify.TokenCache
		tracker presence.Tracker = presence.NewMemoryTracker(cfg.Presence.TTL)
	)
	if rdb != nil {
		defer rdb.Close()
		tokens = spotify.NewRedisTokenCache(rdb)
		tracker = presence.NewRedisTracker(rdb, cfg.Presence.TTL)
	}

	m := metrics.New()
	srv := &handlers.Server{
		Store:          store,
		Auth:           middleware.NewAuth(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Media:          uploads,
		Spotify:        spotify.NewClient(cfg.Spotify.ClientID, cfg.Spotify.ClientSecret, cfg.Spotify.Timeout, tokens),
		Presence:       tracker,
		Metrics:        m,
		Log:            log,
		MaxUploadBytes: cfg.Upload.MaxBytes,
		CORSOrigins:    cfg.HTTP.CORSOrigins,
		TrustedProxies: cfg.HTTP.TrustedProxies,
	}
	if cfg.MinIO.Endpoint == "" {
		srv.UploadDir, srv.UploadURL = cfg.Upload.Dir, cfg.Upload.PublicURL
	}
	if cfg.HTTP.RateLimitRPS > 0 {
		srv.Limiter = middleware.NewRateLimiter(cfg.HTTP.RateLimitRPS, cfg.HTTP.RateLimitBurst)
		srv.Limiter.StartCleanup(time.Minute, ctx.Done())
	}

	sweeper := &jobs.StorySweeper{
		Store:    store,
		TTL:      cfg.Stories.TTL,
		Interval: cfg.Stories.SweepInterval,
		Log:      log.With("job", "story_sweeper"),
		Swept:    m.StoriesSwept,
	}
	go sweeper.Run(ctx)

	gin.SetMode(gin.ReleaseMode)
	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", cfg.HTTP.Addr, "storage", cfg.Storage.Driver, "version", version)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return errors.Wrap(err, "http server")
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return errors.Wrap(httpServer.Shutdown(shutdownCtx), "shutdown")
}
