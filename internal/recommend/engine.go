package recommend

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"homematch/internal/cache"
	"homematch/internal/metrics"
	"homematch/internal/property"
	"homematch/internal/validation"
)

const keyNamespace = "recommend"

type Config struct {
	Policy Policy
	// Limit caps the ranked list. Defaults to 10.
	Limit int
	// TTL of cached rankings. Zero uses the store's default TTL.
	TTL time.Duration
	// ParallelThreshold is the candidate count above which scoring fans out.
	ParallelThreshold int
	Workers           int
}

func DefaultConfig() Config {
	return Config{
		Policy:            DefaultPolicy(),
		Limit:             10,
		ParallelThreshold: 512,
		Workers:           runtime.GOMAXPROCS(0),
	}
}

func (c Config) normalize() Config {
	def := DefaultConfig()
	c.Policy = c.Policy.normalize()
	if c.Limit <= 0 {
		c.Limit = def.Limit
	}
	if c.ParallelThreshold <= 0 {
		c.ParallelThreshold = def.ParallelThreshold
	}
	if c.Workers <= 0 {
		c.Workers = def.Workers
	}
	return c
}

// Result is a ranking plus how it was produced.
type Result struct {
	Properties []ScoredProperty
	CacheHit   bool
	Key        string
	// Excluded counts candidates dropped as structurally invalid. Always 0 on a hit.
	Excluded int
}

// Engine ranks candidates against a request and memoizes the ranking in a
// shared cache.Store keyed by the request's parameters.
type Engine struct {
	store *cache.Store
	cfg   Config
	log   zerolog.Logger
}

func NewEngine(store *cache.Store, cfg Config, log zerolog.Logger) (*Engine, error) {
	if store == nil {
		return nil, &cache.ConfigurationError{Field: "store", Reason: "is required"}
	}
	cfg = cfg.normalize()
	if cfg.TTL < 0 {
		return nil, &cache.ConfigurationError{Field: "ttl", Reason: fmt.Sprintf("must be positive, got %s", cfg.TTL), Err: cache.ErrInvalidTTL}
	}
	if cfg.TTL == 0 {
		cfg.TTL = store.DefaultTTL()
	}
	return &Engine{
		store: store,
		cfg:   cfg,
		log:   log.With().Str("component", "recommend").Logger(),
	}, nil
}

func (e *Engine) Policy() Policy {
	return e.cfg.Policy
}

// Recommend returns at most Limit candidates ordered by descending score,
// then ascending price, then ascending id.
func (e *Engine) Recommend(ctx context.Context, req Request, candidates []property.Record) ([]ScoredProperty, error) {
	res, err := e.Evaluate(ctx, req, candidates)
	if err != nil {
		return nil, err
	}
	return res.Properties, nil
}

// Evaluate is Recommend with cache details attached.
func (e *Engine) Evaluate(ctx context.Context, req Request, candidates []property.Record) (Result, error) {
	start := time.Now()
	if err := req.Validate(); err != nil {
		metrics.RecommendRequests.WithLabelValues("invalid").Inc()
		return Result{}, err
	}

	key := cache.NamespacedKey(keyNamespace, req.Params())
	if v, ok := e.store.Get(key); ok {
		if ranked, ok := v.([]ScoredProperty); ok {
			metrics.RecommendRequests.WithLabelValues("hit").Inc()
			metrics.RecommendDuration.WithLabelValues("hit").Observe(time.Since(start).Seconds())
			e.log.Debug().Str("key", shortKey(key)).Int("results", len(ranked)).Msg("cache hit")
			return Result{Properties: copyRanked(ranked), CacheHit: true, Key: key}, nil
		}
		e.log.Warn().Str("key", shortKey(key)).Msg("unexpected cached value type, rescoring")
	}

	ranked, excluded, err := e.rank(ctx, req, candidates)
	if err != nil {
		metrics.RecommendRequests.WithLabelValues("canceled").Inc()
		return Result{}, err
	}
	if excluded > 0 {
		metrics.CandidatesExcluded.Add(float64(excluded))
		e.log.Warn().Int("excluded", excluded).Int("candidates", len(candidates)).Msg("invalid candidates excluded")
	}
	if err := e.store.Set(key, ranked, e.cfg.TTL); err != nil {
		return Result{}, fmt.Errorf("cache ranking: %w", err)
	}

	metrics.RecommendRequests.WithLabelValues("miss").Inc()
	metrics.RecommendDuration.WithLabelValues("miss").Observe(time.Since(start).Seconds())
	e.log.Debug().
		Str("key", shortKey(key)).
		Int("candidates", len(candidates)).
		Int("results", len(ranked)).
		Msg("cache miss, ranked")
	return Result{Properties: copyRanked(ranked), Key: key, Excluded: excluded}, nil
}

func (e *Engine) rank(ctx context.Context, req Request, candidates []property.Record) ([]ScoredProperty, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	valid := make([]property.Record, 0, len(candidates))
	for _, c := range candidates {
		if err := c.Validate(); err != nil {
			e.log.Debug().Err(err).Msg("skipping candidate")
			continue
		}
		valid = append(valid, c)
	}
	excluded := len(candidates) - len(valid)

	scored, err := e.scoreAll(ctx, req, valid)
	if err != nil {
		return nil, excluded, err
	}
	metrics.CandidatesScored.Add(float64(len(scored)))

	Sort(scored)
	if len(scored) > e.cfg.Limit {
		scored = scored[:e.cfg.Limit]
	}
	return scored, excluded, nil
}

func (e *Engine) scoreAll(ctx context.Context, req Request, records []property.Record) ([]ScoredProperty, error) {
	out := make([]ScoredProperty, len(records))
	if len(records) <= e.cfg.ParallelThreshold {
		for i, rec := range records {
			out[i] = e.cfg.Policy.Score(rec, req)
		}
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	chunk := (len(records) + e.cfg.Workers - 1) / e.cfg.Workers
	for lo := 0; lo < len(records); lo += chunk {
		lo, hi := lo, min(lo+chunk, len(records))
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if i%256 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				out[i] = e.cfg.Policy.Score(records[i], req)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Sort orders a ranking: score descending, price ascending, id ascending.
func Sort(ranked []ScoredProperty) {
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		if a.Price != b.Price {
			return a.Price < b.Price
		}
		return a.PropertyID < b.PropertyID
	})
}

func copyRanked(in []ScoredProperty) []ScoredProperty {
	if in == nil {
		return []ScoredProperty{}
	}
	return append(make([]ScoredProperty, 0, len(in)), in...)
}

func shortKey(key string) string {
	if len(key) > len(keyNamespace)+13 {
		return key[:len(keyNamespace)+13]
	}
	return key
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func sortFields(fields []validation.FieldError) {
	sort.Slice(fields, func(i, j int) bool { return fields[i].Field < fields[j].Field })
}

// IsValidation reports whether err is a rejected request.
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
