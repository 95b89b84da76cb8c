package config

import (
	"errors"
	"fmt"
	"strings"

	"homematch/internal/cache"
	"homematch/pkg/logger"
)

// Validate rejects settings the service cannot start with. Cache sizing
// problems surface as *cache.ConfigurationError.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("server.rate_limit must not be negative, got %d", c.Server.RateLimit))
	}

	if c.Cache.MaxSize <= 0 {
		errs = append(errs, &cache.ConfigurationError{Field: "cache.max_size", Reason: fmt.Sprintf("must be positive, got %d", c.Cache.MaxSize)})
	}
	if c.Cache.DefaultTTL <= 0 {
		errs = append(errs, &cache.ConfigurationError{Field: "cache.default_ttl", Reason: fmt.Sprintf("must be positive, got %s", c.Cache.DefaultTTL), Err: cache.ErrInvalidTTL})
	}
	if c.Cache.CleanupInterval <= 0 {
		errs = append(errs, &cache.ConfigurationError{Field: "cache.cleanup_interval", Reason: fmt.Sprintf("must be positive, got %s", c.Cache.CleanupInterval)})
	}

	if c.Recommend.Limit <= 0 {
		errs = append(errs, fmt.Errorf("recommend.limit must be positive, got %d", c.Recommend.Limit))
	}
	if c.Recommend.DefaultMaxCommute <= 0 || c.Recommend.DefaultMaxAge <= 0 {
		errs = append(errs, errors.New("recommend.default_max_commute and recommend.default_max_age must be positive"))
	}
	if c.Recommend.PriceOvershoot <= 1 {
		errs = append(errs, fmt.Errorf("recommend.price_overshoot must be greater than 1, got %g", c.Recommend.PriceOvershoot))
	}

	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if strings.TrimSpace(c.Store.PostgresURL) == "" {
			errs = append(errs, errors.New("store.postgres_url is required for the postgres driver"))
		}
	case DriverScylla:
		if len(c.Store.ScyllaHosts) == 0 {
			errs = append(errs, errors.New("store.scylla_hosts is required for the scylla driver"))
		}
		if c.Store.ScyllaKeyspace == "" {
			errs = append(errs, errors.New("store.scylla_keyspace is required for the scylla driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not one of memory, postgres, scylla", c.Store.Driver))
	}
	if c.Store.CandidateLimit < 0 {
		errs = append(errs, fmt.Errorf("store.candidate_limit must not be negative, got %d", c.Store.CandidateLimit))
	}

	if c.Estimator.Retries < 0 {
		errs = append(errs, fmt.Errorf("estimator.retries must not be negative, got %d", c.Estimator.Retries))
	}
	if c.Importer.Interval < 0 {
		errs = append(errs, fmt.Errorf("importer.interval must not be negative, got %s", c.Importer.Interval))
	}

	if !logger.ValidFormat(c.Logging.Format) {
		errs = append(errs, fmt.Errorf("logging.format %q is not one of console, json", c.Logging.Format))
	}

	return errors.Join(errs...)
}
