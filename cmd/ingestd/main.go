// Command ingestd runs the security-event ingestion and storage
// pipeline: HTTP ingress, the hybrid queue, normalization, enrichment,
// tiered columnar storage, and the processor orchestrator.
//
// Logging:
//   - Base logger is created here with output format and level.
//   - Logger is passed to all components via dependency injection.
//   - No global slog configuration (no slog.SetDefault).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"secureingest/internal/auth"
	"secureingest/internal/config"
	"secureingest/internal/enrich"
	"secureingest/internal/orchestrator"
	"secureingest/internal/queue"
	"secureingest/internal/ratelimit"
	"secureingest/internal/server"
	"secureingest/internal/storage"
	"secureingest/internal/telemetry"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-co-op/gocron/v2"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "ingestd",
		Short: "Security event ingestion and storage pipeline",
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ingestion service",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			addrFlag, _ := cmd.Flags().GetString("addr")
			workersFlag, _ := cmd.Flags().GetInt("num-workers")

			cfg := config.Default()
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			if addrFlag != "" {
				cfg.Server.Addr = addrFlag
			}
			if workersFlag > 0 {
				cfg.Orchestrator.NumWorkers = workersFlag
			}

			var level slog.Level
			if err := level.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
				return fmt.Errorf("logging level: %w", err)
			}
			opts := &slog.HandlerOptions{Level: level}
			var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
			if cfg.Logging.Format == "json" {
				handler = slog.NewJSONHandler(os.Stderr, opts)
			}
			logger := slog.New(handler)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			return run(ctx, logger, cfg)
		},
	}
	serveCmd.Flags().String("config", "", "path to YAML config file")
	serveCmd.Flags().String("addr", "", "listen address override")
	serveCmd.Flags().Int("num-workers", 0, "worker pool size override")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}

	rootCmd.AddCommand(serveCmd, versionCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, cfg config.Config) error {
	q, err := queue.New(queue.Config{
		MaxMemorySize:    cfg.Queue.MaxMemorySize,
		DiskBufferPath:   cfg.Queue.DiskBufferPath,
		OverflowStrategy: queue.OverflowStrategy(cfg.Queue.OverflowStrategy),
		Logger:           logger,
	})
	if err != nil {
		return fmt.Errorf("open queue: %w", err)
	}
	defer q.Close()

	backend, err := buildBackend(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("build storage backend: %w", err)
	}

	writer, err := storage.NewWriter(storage.WriterConfig{Backend: backend, Logger: logger})
	if err != nil {
		return fmt.Errorf("build storage writer: %w", err)
	}

	retention := storage.RetentionConfig{
		HotRetention:  time.Duration(cfg.Storage.HotRetentionDays) * 24 * time.Hour,
		WarmRetention: time.Duration(cfg.Storage.WarmRetentionDays) * 24 * time.Hour,
		ColdRetention: time.Duration(cfg.Storage.ColdRetentionDays) * 24 * time.Hour,
	}

	var geoIP *enrich.GeoIP
	if cfg.Enrichment.GeoIPPath != "" {
		geoIP, err = enrich.NewGeoIP(cfg.Enrichment.GeoIPPath)
		if err != nil {
			logger.Warn("geoip database unavailable, geo enrichment disabled", "error", err)
		} else {
			go func() {
				if err := geoIP.WatchAndReload(ctx, cfg.Enrichment.GeoIPPath, logger); err != nil {
					logger.Error("geoip watcher exited", "error", err)
				}
			}()
		}
	}

	enricher := enrich.New(enrich.Config{
		GeoIP:          geoIP,
		EntityCacheTTL: time.Duration(cfg.Enrichment.EntityCacheTTLSeconds) * time.Second,
		Logger:         logger,
	})

	orch, err := orchestrator.New(orchestrator.Config{
		Queue:               q,
		Enricher:            enricher,
		Writer:              writer,
		NumWorkers:          cfg.Orchestrator.NumWorkers,
		BatchSize:           cfg.Orchestrator.BatchSize,
		BatchTimeoutSeconds: cfg.Orchestrator.BatchTimeoutSeconds,
		MaxRetries:          cfg.Orchestrator.MaxRetries,
		Logger:              logger,
	})
	if err != nil {
		return fmt.Errorf("build orchestrator: %w", err)
	}
	orch.Start(ctx)

	lifecycle := storage.NewLifecycle(storage.LifecycleConfig{Backend: backend, Retention: retention, Logger: logger})
	lifecycleSched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("build lifecycle scheduler: %w", err)
	}
	if _, err := lifecycleSched.NewJob(
		gocron.DurationJob(time.Hour),
		gocron.NewTask(func() {
			if err := lifecycle.Run(context.Background(), time.Now()); err != nil {
				logger.Error("lifecycle run failed", "error", err)
			}
		}),
	); err != nil {
		return fmt.Errorf("schedule lifecycle job: %w", err)
	}
	lifecycleSched.Start()
	defer lifecycleSched.Shutdown()

	collector := telemetry.New(telemetry.Config{Queue: q, Orchestrator: orch})

	var authenticator *auth.Authenticator
	if cfg.Auth.SigningKey != "" {
		authenticator = auth.New(auth.Config{
			SigningKey:    []byte(cfg.Auth.SigningKey),
			AllowedKeyIDs: cfg.Auth.AllowedKeyIDs,
		})
	}
	limiter := ratelimit.New(cfg.RateLimit.RequestsPerMinute)

	srv := server.New(server.Config{
		Addr:          cfg.Server.Addr,
		Queue:         q,
		Collector:     collector,
		Authenticator: authenticator,
		Limiter:       limiter,
		Logger:        logger,
	})

	serverErr := make(chan error, 1)
	go func() { serverErr <- srv.Run(ctx) }()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			logger.Error("server exited with error", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := orch.Shutdown(shutdownCtx); err != nil {
		logger.Error("orchestrator shutdown error", "error", err)
	}
	return nil
}

func buildBackend(ctx context.Context, cfg config.StorageConfig) (storage.Backend, error) {
	switch cfg.Backend {
	case "s3":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3Region))
		if err != nil {
			return nil, err
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.S3Endpoint != "" {
				o.BaseEndpoint = &cfg.S3Endpoint
				o.UsePathStyle = true
			}
		})
		return storage.NewS3Backend(client, cfg.S3Bucket), nil
	default:
		return storage.NewLocalBackend(cfg.StoragePath)
	}
}
