// Command healthcheck probes one or more homematch /health endpoints and
// exits non-zero when any of them is unhealthy. It is meant for container
// HEALTHCHECK directives and load balancer sidecars.
package main

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"homematch/pkg/logger"
)

type result struct {
	URL     string
	OK      bool
	Status  int
	Latency time.Duration
	Err     error
}

func main() {
	log := logger.New(getenv("LOG_LEVEL", "info"), getenv("LOG_FORMAT", "console"))

	targets := os.Args[1:]
	if len(targets) == 0 {
		targets = splitCSV(getenv("HEALTHCHECK_URLS", "http://127.0.0.1:"+getenv("HTTP_PORT", "8080")+"/health"))
	}
	timeout, err := time.ParseDuration(getenv("HEALTHCHECK_TIMEOUT", "2s"))
	if err != nil || timeout <= 0 {
		timeout = 2 * time.Second
	}
	concurrent := atoiDefault(os.Getenv("HEALTHCHECK_CONCURRENCY"), 4)

	client := &http.Client{Timeout: timeout}
	results := runChecks(context.Background(), client, targets, concurrent)
	if !report(results, log) {
		os.Exit(1)
	}
}

func runChecks(ctx context.Context, client *http.Client, targets []string, concurrent int) []result {
	if concurrent <= 0 {
		concurrent = 1
	}
	out := make([]result, len(targets))
	sem := make(chan struct{}, concurrent)
	var wg sync.WaitGroup
	for i, url := range targets {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, url string) {
			defer wg.Done()
			defer func() { <-sem }()
			out[i] = probe(ctx, client, url)
		}(i, url)
	}
	wg.Wait()
	return out
}

func probe(ctx context.Context, client *http.Client, url string) result {
	res := result{URL: url}
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		res.Err = err
		return res
	}
	resp, err := client.Do(req)
	res.Latency = time.Since(start)
	if err != nil {
		res.Err = err
		return res
	}
	defer resp.Body.Close()
	res.Status = resp.StatusCode
	res.OK = resp.StatusCode >= 200 && resp.StatusCode < 300
	return res
}

// report logs every result and returns true when all were healthy.
func report(results []result, log zerolog.Logger) bool {
	healthy := len(results) > 0
	for _, r := range results {
		if r.OK {
			log.Info().Str("url", r.URL).Int("status", r.Status).Dur("latency", r.Latency).Msg("healthy")
			continue
		}
		healthy = false
		log.Error().Err(r.Err).Str("url", r.URL).Int("status", r.Status).Msg("unhealthy")
	}
	return healthy
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
