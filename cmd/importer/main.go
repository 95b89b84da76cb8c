package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"homematch/internal/config"
	"homematch/internal/db"
	"homematch/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Logging.Level, cfg.Logging.Format).With().Str("component", "importer").Logger()

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("importer stopped")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	file := cfg.Importer.File
	if file == "" {
		file = cfg.Store.SeedFile
	}
	if file == "" {
		return errors.New("IMPORT_FILE is required")
	}
	if cfg.Store.Driver == config.DriverMemory {
		log.Warn().Msg("memory store selected, imported records are discarded on exit")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := db.Open(ctx, cfg.Store, log)
	if err != nil {
		return err
	}
	defer repo.Close()

	log.Info().Str("file", file).Dur("interval", cfg.Importer.Interval).Msg("importer starting")
	for {
		importOnce(ctx, repo, file, log)
		if cfg.Importer.Interval <= 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(cfg.Importer.Interval):
		}
	}
}

func importOnce(ctx context.Context, repo db.Repository, file string, log zerolog.Logger) {
	runLog := log.With().Str("run_id", uuid.NewString()).Logger()
	start := time.Now()
	n, err := db.Seed(ctx, repo, file, runLog)
	if err != nil {
		runLog.Error().Err(err).Msg("import failed")
		return
	}
	total, err := repo.Count(ctx)
	if err != nil {
		runLog.Warn().Err(err).Msg("count after import")
	}
	runLog.Info().Int("written", n).Int("total", total).Dur("took", time.Since(start)).Msg("import completed")
}
