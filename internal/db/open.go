package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"homematch/internal/config"
	"homematch/internal/property"
	pkgdb "homematch/pkg/db"
)

// Repository is a property.Repository that holds a connection to release.
type Repository interface {
	property.Repository
	Close()
}

type memoryStore struct {
	*property.MemoryRepository
}

func (memoryStore) Close() {}

type postgresStore struct {
	*PostgresRepository
}

func (p postgresStore) Close() { p.pool.Close() }

type scyllaStore struct {
	*ScyllaRepository
}

func (s scyllaStore) Close() { s.session.Close() }

// Open connects the configured driver and makes sure its schema exists.
func Open(ctx context.Context, cfg config.StoreConfig, log zerolog.Logger) (Repository, error) {
	switch cfg.Driver {
	case config.DriverMemory, "":
		repo, err := property.NewMemoryRepository()
		if err != nil {
			return nil, err
		}
		return memoryStore{repo}, nil

	case config.DriverPostgres:
		pool, err := pkgdb.Connect(ctx, cfg.PostgresURL, cfg.PostgresMaxConns)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		repo := NewPostgresRepository(pool, log)
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return postgresStore{repo}, nil

	case config.DriverScylla:
		session, err := pkgdb.ConnectScylla(pkgdb.ScyllaOptions{
			Hosts:       cfg.ScyllaHosts,
			Port:        cfg.ScyllaPort,
			Keyspace:    cfg.ScyllaKeyspace,
			Consistency: cfg.ScyllaConsistency,
			Replication: cfg.ScyllaReplication,
			Retries:     20,
		}, log)
		if err != nil {
			return nil, err
		}
		repo := NewScyllaRepository(session, cfg.ScyllaKeyspace, log)
		if err := repo.EnsureSchema(ctx); err != nil {
			session.Close()
			return nil, err
		}
		return scyllaStore{repo}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

// Seed loads a JSON listing file into repo. Invalid records are logged and
// skipped; it returns how many were written.
func Seed(ctx context.Context, repo property.Repository, path string, log zerolog.Logger) (int, error) {
	records, err := property.LoadFile(path)
	if err != nil {
		return 0, err
	}
	valid, errs := property.Partition(records)
	for _, err := range errs {
		log.Warn().Err(err).Str("file", path).Msg("skipping invalid record")
	}
	if len(valid) == 0 {
		if len(records) > 0 {
			return 0, errors.New("no valid records")
		}
		return 0, nil
	}
	if err := repo.Upsert(ctx, valid...); err != nil {
		return 0, err
	}
	return len(valid), nil
}
