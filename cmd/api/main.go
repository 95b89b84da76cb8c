package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"homematch/internal/api"
	"homematch/internal/cache"
	"homematch/internal/config"
	"homematch/internal/db"
	"homematch/internal/estimate"
	"homematch/internal/metrics"
	"homematch/internal/recommend"
	"homematch/pkg/logger"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("api stopped")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := db.Open(ctx, cfg.Store, log)
	if err != nil {
		return err
	}
	defer repo.Close()

	if cfg.Store.SeedFile != "" {
		n, err := db.Seed(ctx, repo, cfg.Store.SeedFile, log)
		if err != nil {
			return fmt.Errorf("seed %s: %w", cfg.Store.SeedFile, err)
		}
		log.Info().Int("records", n).Str("file", cfg.Store.SeedFile).Msg("seeded property store")
	}

	results, err := cache.New(cache.Config{MaxSize: cfg.Cache.MaxSize, DefaultTTL: cfg.Cache.DefaultTTL})
	if err != nil {
		return err
	}
	prometheus.MustRegister(cache.NewCollector(metrics.Namespace, results))

	janitor, err := cache.NewJanitor(results, cfg.Cache.CleanupInterval, log)
	if err != nil {
		return err
	}
	janitor.Start()
	defer janitor.Stop()

	engine, err := recommend.NewEngine(results, recommend.Config{
		Policy: recommend.Policy{
			DefaultMaxCommute: cfg.Recommend.DefaultMaxCommute,
			DefaultMaxAge:     cfg.Recommend.DefaultMaxAge,
			PriceOvershoot:    cfg.Recommend.PriceOvershoot,
		},
		Limit:             cfg.Recommend.Limit,
		ParallelThreshold: cfg.Recommend.ParallelThreshold,
	}, log)
	if err != nil {
		return err
	}

	var estimator estimate.Estimator
	if cfg.Estimator.URL != "" {
		client, err := estimate.NewClient(estimate.ClientConfig{
			BaseURL:          cfg.Estimator.URL,
			Timeout:          cfg.Estimator.Timeout,
			Retries:          cfg.Estimator.Retries,
			Backoff:          cfg.Estimator.Backoff,
			FailureThreshold: cfg.Estimator.FailureThreshold,
			OpenTimeout:      cfg.Estimator.OpenTimeout,
		}, log)
		if err != nil {
			return err
		}
		estimator = client
	}

	srv := &http.Server{
		Addr: ":" + strconv.Itoa(cfg.Server.Port),
		Handler: api.NewRouter(api.Deps{
			Repo:           repo,
			Engine:         engine,
			Cache:          results,
			Estimator:      estimator,
			Log:            log,
			CandidateLimit: cfg.Store.CandidateLimit,
			CORSOrigins:    cfg.Server.CORSOrigins,
			RateLimit:      cfg.Server.RateLimit,
			Version:        version,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("store", cfg.Store.Driver).
			Int("cache_max_size", cfg.Cache.MaxSize).
			Dur("cache_ttl", cfg.Cache.DefaultTTL).
			Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	st := results.Stats()
	log.Info().Int64("hits", st.Hits).Int64("misses", st.Misses).Int64("evictions", st.Evictions).Msg("cache totals")
	return nil
}
