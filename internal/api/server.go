// Package api exposes the recommendation service over HTTP.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"homematch/internal/cache"
	"homematch/internal/estimate"
	"homematch/internal/property"
	"homematch/internal/recommend"
)

type Deps struct {
	Repo   property.Repository
	Engine *recommend.Engine
	Cache  *cache.Store
	// Estimator is optional; without it POST /predict answers 503.
	Estimator estimate.Estimator
	// Gatherer backs /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
	Log      zerolog.Logger

	// CandidateLimit caps the listings fetched per recommendation and
	// returned per search.
	CandidateLimit int
	CORSOrigins    []string
	RateLimit      int
	Version        string
}

func NewRouter(d Deps) http.Handler {
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}
	d.Log = d.Log.With().Str("component", "http").Logger()

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(d.Log), middleware.Recoverer)
	r.Use(corsHandler(d.CORSOrigins))

	r.Get("/", handleIndex(d.Version, d.Estimator != nil))
	r.Get("/health", handleHealth(d.Repo, d.Cache))
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(rateLimit(d.RateLimit))

		r.Get("/properties", handleListProperties(d.Repo))
		r.Get("/properties/{id}", handleGetProperty(d.Repo))
		r.Get("/compare/{id1}/{id2}", handleCompare(d.Repo))
		r.Post("/recommend", handleRecommend(d.Repo, d.Engine, d.CandidateLimit, d.Log))
		r.Post("/findproperties", handleFindProperties(d.Repo, d.CandidateLimit, d.Log))
		r.Get("/suggestions", handleSuggestions(d.Repo))
		r.Post("/predict", handlePredict(d.Estimator))
		r.Get("/pricedata", handlePriceData(d.Estimator))
	})

	r.Route("/cache", func(r chi.Router) {
		r.Get("/stats", handleCacheStats(d.Cache))
		r.Post("/clear", handleCacheClear(d.Cache, d.Log))
		r.Post("/cleanup", handleCacheCleanup(d.Cache, d.Log))
	})

	return r
}
