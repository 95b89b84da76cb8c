package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are tried in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/homematch/config.yaml",
}

const ConfigPathEnvVar = "CONFIG_PATH"

// Load builds the configuration from defaults, the first config file found
// and the environment, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path, err := findConfigFile(); err != nil {
		return nil, err
	} else if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns the explicit CONFIG_PATH, which must exist, or the
// first default path present. An empty result means run on defaults.
func findConfigFile() (string, error) {
	if p := strings.TrimSpace(os.Getenv(ConfigPathEnvVar)); p != "" {
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("config file %s: %w", p, err)
		}
		return p, nil
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

var sliceConfigPaths = []string{
	"server.cors_origins",
	"store.scylla_hosts",
}

// processSliceFields splits comma-separated env values for slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := splitCSV(s)
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("set %s: %w", path, err)
		}
	}
	return nil
}

func splitCSV(s string) []string {
	out := []string{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var envMappings = map[string]string{
	"http_port":             "server.port",
	"port":                  "server.port",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"cors_origins":          "server.cors_origins",
	"rate_limit":            "server.rate_limit",

	"cache_max_size":         "cache.max_size",
	"cache_default_ttl":      "cache.default_ttl",
	"cache_cleanup_interval": "cache.cleanup_interval",

	"recommend_limit":               "recommend.limit",
	"recommend_default_max_commute": "recommend.default_max_commute",
	"recommend_default_max_age":     "recommend.default_max_age",
	"recommend_price_overshoot":     "recommend.price_overshoot",
	"recommend_parallel_threshold":  "recommend.parallel_threshold",

	"store_driver":          "store.driver",
	"seed_file":             "store.seed_file",
	"database_url":          "store.postgres_url",
	"db_max_conns":          "store.postgres_max_conns",
	"scylla_hosts":          "store.scylla_hosts",
	"scylla_port":           "store.scylla_port",
	"scylla_keyspace":       "store.scylla_keyspace",
	"scylla_consistency":    "store.scylla_consistency",
	"scylla_replication":    "store.scylla_replication",
	"store_candidate_limit": "store.candidate_limit",

	"estimator_url":               "estimator.url",
	"estimator_timeout":           "estimator.timeout",
	"estimator_retries":           "estimator.retries",
	"estimator_backoff":           "estimator.backoff",
	"estimator_failure_threshold": "estimator.failure_threshold",
	"estimator_open_timeout":      "estimator.open_timeout",

	"import_file":     "importer.file",
	"import_interval": "importer.interval",

	"log_level":  "logging.level",
	"log_format": "logging.format",
}

// envTransformFunc maps a known environment variable to its config path.
// Unknown variables map to "" and are skipped.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
