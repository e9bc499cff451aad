package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"stowage/internal/config"
	"stowage/internal/mediastore"
	"stowage/internal/repository"
	"stowage/internal/server"
	"stowage/internal/store"
	"stowage/internal/worker"
)

const (
	staleJobMessage  = "interrupted by shutdown"
	poolDrainTimeout = 30 * time.Second
)

func newSrvCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "srv",
		Short: "Run the stowage API server and download workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil {
				return fmt.Errorf("config not initialized")
			}
			if cfg.DBPath == "" {
				return fmt.Errorf("db path is required")
			}
			if cfg.MediaPath == "" {
				return fmt.Errorf("media path is required")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg, slog.Default().With("component", "server"))
		},
	}
}

func runServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	addr, err := server.ListenAddr(cfg.APIURL)
	if err != nil {
		return err
	}

	logger.Info("opening database", "path", cfg.DBPath)
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	media, err := mediastore.New(cfg.MediaPath)
	if err != nil {
		return err
	}
	logger.Info("media directory ready", "path", media.Root())

	var pool *worker.Pool
	if cfg.Downloads.Enabled {
		if n, err := st.FailStaleJobs(ctx, staleJobMessage); err != nil {
			return fmt.Errorf("recover stale jobs: %w", err)
		} else if n > 0 {
			logger.Warn("failed jobs left running by a previous process", "count", n)
		}

		pool = worker.New(st, repository.New(st, media), media, worker.Config{
			MaxConcurrent:    cfg.Downloads.MaxConcurrent,
			PollInterval:     cfg.Downloads.PollIntervalDuration(),
			ErrorBackoff:     cfg.Downloads.ErrorBackoffDuration(),
			FetchTimeout:     cfg.Downloads.FetchTimeoutDuration(),
			MaxDownloadBytes: cfg.Downloads.MaxDownloadBytes,
		}, slog.Default().With("component", "worker"))
		pool.Start(ctx)
		defer func() {
			pool.Stop()
			drainCtx, cancel := context.WithTimeout(context.Background(), poolDrainTimeout)
			defer cancel()
			if err := pool.Wait(drainCtx); err != nil {
				logger.Warn("download workers did not drain", "error", err)
			}
		}()
	}

	srv := server.New(addr, st, media, pool, logger, server.Options{
		DBPath:         cfg.DBPath,
		MaxUploadBytes: cfg.Uploads.MaxUploadBytes,
	})
	return srv.ListenAndServe(ctx)
}
