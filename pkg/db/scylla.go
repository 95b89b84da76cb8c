package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/gocql/gocql"
	"github.com/rs/zerolog"
)

type ScyllaOptions struct {
	Hosts       []string
	Port        int
	Keyspace    string
	Consistency string
	Replication int
	Retries     int
	RetryDelay  time.Duration
}

// ConnectScylla makes sure the keyspace exists, then returns a session bound to it.
func ConnectScylla(opts ScyllaOptions, log zerolog.Logger) (*gocql.Session, error) {
	if len(opts.Hosts) == 0 || strings.TrimSpace(opts.Hosts[0]) == "" {
		return nil, fmt.Errorf("scylla hosts are required")
	}
	if opts.Retries <= 0 {
		opts.Retries = 1
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 3 * time.Second
	}
	cluster := gocql.NewCluster(opts.Hosts...)
	if opts.Port > 0 {
		cluster.Port = opts.Port
	}
	cluster.Timeout = 5 * time.Second
	cluster.Consistency = ParseConsistency(opts.Consistency)

	var lastErr error
	for i := 0; i < opts.Retries; i++ {
		session, err := connectKeyspace(cluster, opts)
		if err == nil {
			return session, nil
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", i+1).Int("of", opts.Retries).Msg("scylla connect retry")
		time.Sleep(opts.RetryDelay)
	}
	return nil, fmt.Errorf("scylla not ready after %d attempts: %w", opts.Retries, lastErr)
}

func connectKeyspace(cluster *gocql.ClusterConfig, opts ScyllaOptions) (*gocql.Session, error) {
	cluster.Keyspace = ""
	tmp, err := cluster.CreateSession()
	if err != nil {
		return nil, err
	}
	err = EnsureKeyspace(tmp, opts.Keyspace, opts.Replication)
	tmp.Close()
	if err != nil {
		return nil, err
	}
	cluster.Keyspace = opts.Keyspace
	return cluster.CreateSession()
}

func EnsureKeyspace(session *gocql.Session, keyspace string, replicationFactor int) error {
	if replicationFactor <= 0 {
		replicationFactor = 1
	}
	stmt := fmt.Sprintf("CREATE KEYSPACE IF NOT EXISTS %s WITH replication = {'class': 'SimpleStrategy', 'replication_factor': %d}", keyspace, replicationFactor)
	return session.Query(stmt).Exec()
}

func ParseConsistency(c string) gocql.Consistency {
	switch strings.ToUpper(strings.TrimSpace(c)) {
	case "ONE":
		return gocql.One
	case "LOCAL_ONE":
		return gocql.LocalOne
	case "LOCAL_QUORUM":
		return gocql.LocalQuorum
	case "ALL":
		return gocql.All
	default:
		return gocql.Quorum
	}
}
