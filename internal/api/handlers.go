package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"homematch/internal/cache"
	"homematch/internal/estimate"
	"homematch/internal/property"
	"homematch/internal/recommend"
	"homematch/internal/validation"
)

const (
	defaultListLimit = 100
	suggestionScan   = 500
)

func handleIndex(version string, predict bool) http.HandlerFunc {
	endpoints := map[string]string{
		"health":     "/health",
		"metrics":    "/metrics",
		"properties": "/properties",
		"property":   "/properties/{id}",
		"compare":    "/compare/{id1}/{id2}",
		"recommend":  "/recommend",
		"search":     "/findproperties",
		"suggest":    "/suggestions",
		"cacheStats": "/cache/stats",
	}
	if predict {
		endpoints["predict"] = "/predict"
		endpoints["priceData"] = "/pricedata"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"service":   "homematch",
			"version":   version,
			"endpoints": endpoints,
		})
	}
}

func handleHealth(repo property.Repository, store *cache.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status, code := "healthy", http.StatusOK
		database := map[string]any{"connected": true}
		if err := repo.Ping(ctx); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
			database = map[string]any{"connected": false, "error": err.Error()}
		} else if n, err := repo.Count(ctx); err == nil {
			database["properties"] = n
		}
		writeJSON(w, code, map[string]any{
			"status":    status,
			"database":  database,
			"cache":     store.Stats(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func handleListProperties(repo property.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultListLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 || n > 1000 {
				errorJSON(w, http.StatusBadRequest, "limit must be between 1 and 1000")
				return
			}
			limit = n
		}
		items, err := repo.List(r.Context(), r.URL.Query().Get("q"), limit)
		if err != nil {
			errorJSON(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":     "success",
			"count":      len(items),
			"properties": items,
		})
	}
}

func handleGetProperty(repo property.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := repo.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			repoError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func handleCompare(repo property.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := repo.Get(r.Context(), chi.URLParam(r, "id1"))
		if err != nil {
			repoError(w, err)
			return
		}
		b, err := repo.Get(r.Context(), chi.URLParam(r, "id2"))
		if err != nil {
			repoError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":     "success",
			"comparison": property.Compare(a, b),
		})
	}
}

type cacheInfo struct {
	Hit      bool   `json:"hit"`
	Key      string `json:"key"`
	Excluded int    `json:"excluded"`
}

// TotalProperties counts the recommended listings; CandidatesConsidered
// counts what was fetched and ranked.
type recommendResponse struct {
	Status                string                     `json:"status"`
	TotalProperties       int                        `json:"totalProperties"`
	CandidatesConsidered  int                        `json:"candidatesConsidered"`
	RecommendedProperties []recommend.ScoredProperty `json:"recommendedProperties"`
	CacheInfo             cacheInfo                  `json:"cacheInfo"`
}

// handleRecommend fetches candidates, then lets the engine rank them. The
// request is validated up front so a bad body never reaches the repository.
func handleRecommend(repo property.Repository, engine *recommend.Engine, candidateLimit int, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req recommend.Request
		if err := decodeJSON(r, &req); err != nil {
			errorJSON(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := req.Validate(); err != nil {
			recommendError(w, err, log)
			return
		}

		candidates, err := repo.FetchCandidates(r.Context(), property.Filter{
			Location: req.Location,
			Limit:    candidateLimit,
		})
		if err != nil {
			log.Error().Err(err).Msg("fetch candidates")
			errorJSON(w, http.StatusInternalServerError, "could not load properties")
			return
		}

		res, err := engine.Evaluate(r.Context(), req, candidates)
		if err != nil {
			recommendError(w, err, log)
			return
		}
		writeJSON(w, http.StatusOK, recommendResponse{
			Status:                "success",
			TotalProperties:       len(res.Properties),
			CandidatesConsidered:  len(candidates),
			RecommendedProperties: res.Properties,
			CacheInfo:             cacheInfo{Hit: res.CacheHit, Key: res.Key, Excluded: res.Excluded},
		})
	}
}

type searchResponse struct {
	Status         string                  `json:"status"`
	TotalFound     int                     `json:"totalFound"`
	Properties     []property.Record       `json:"properties"`
	SearchCriteria property.SearchCriteria `json:"searchCriteria"`
	Message        string                  `json:"message"`
}

func handleFindProperties(repo property.Repository, limit int, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var c property.SearchCriteria
		if err := decodeJSON(r, &c); err != nil {
			errorJSON(w, http.StatusBadRequest, err.Error())
			return
		}
		if verr := c.Validate(); verr != nil {
			validationJSON(w, verr.Fields)
			return
		}
		found, err := property.Search(r.Context(), repo, c, limit)
		if err != nil {
			log.Error().Err(err).Msg("find properties")
			errorJSON(w, http.StatusInternalServerError, "could not search properties")
			return
		}
		if found == nil {
			found = []property.Record{}
		}
		msg := fmt.Sprintf("found %d properties in %s within budget", len(found), strings.TrimSpace(c.Location))
		if len(found) == 0 {
			msg = "no properties match the search criteria"
		}
		writeJSON(w, http.StatusOK, searchResponse{
			Status:         "success",
			TotalFound:     len(found),
			Properties:     found,
			SearchCriteria: c,
			Message:        msg,
		})
	}
}

func handleSuggestions(repo property.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		if len(q) > 200 {
			errorJSON(w, http.StatusBadRequest, "q must be at most 200 characters")
			return
		}
		out, err := property.Suggestions(r.Context(), repo, q, suggestionScan)
		if err != nil {
			errorJSON(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":      "success",
			"query":       q,
			"suggestions": out,
		})
	}
}

// handlePriceData reports the estimator in use and a prediction for the
// default feature set.
func handlePriceData(est estimate.Estimator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if est == nil {
			errorJSON(w, http.StatusServiceUnavailable, "price estimator is not configured")
			return
		}
		sample := estimate.DefaultFeatures()
		payload := map[string]any{
			"status":      "success",
			"sampleInput": sample,
		}
		if d, ok := est.(estimate.Describer); ok {
			payload["model"] = d.Info()
		}
		price, err := est.Estimate(r.Context(), sample)
		switch {
		case errors.Is(err, estimate.ErrUnavailable):
			errorJSON(w, http.StatusServiceUnavailable, err.Error())
			return
		case err != nil:
			errorJSON(w, http.StatusBadGateway, err.Error())
			return
		}
		payload["samplePrediction"] = price
		writeJSON(w, http.StatusOK, payload)
	}
}

func handlePredict(est estimate.Estimator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if est == nil {
			errorJSON(w, http.StatusServiceUnavailable, "price estimator is not configured")
			return
		}
		f := estimate.DefaultFeatures()
		if err := decodeJSON(r, &f); err != nil {
			errorJSON(w, http.StatusBadRequest, err.Error())
			return
		}
		price, err := est.Estimate(r.Context(), f)
		var verr *validation.RequestValidationError
		switch {
		case errors.As(err, &verr):
			validationJSON(w, verr.Fields)
			return
		case errors.Is(err, estimate.ErrUnavailable):
			errorJSON(w, http.StatusServiceUnavailable, err.Error())
			return
		case err != nil:
			errorJSON(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":         "success",
			"predictedPrice": price,
			"inputData":      f,
		})
	}
}

func handleCacheStats(store *cache.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":          "success",
			"cacheStatistics": store.Stats(),
		})
	}
}

func handleCacheClear(store *cache.Store, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store.Clear()
		log.Info().Msg("cache cleared")
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "success",
			"message": "cache cleared",
		})
	}
}

func handleCacheCleanup(store *cache.Store, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		before := store.Stats()
		removed := store.CleanupExpired()
		after := store.Stats()
		log.Info().Int("removed", removed).Msg("expired cache entries removed")
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "success",
			"removed": removed,
			"before":  before,
			"after":   after,
		})
	}
}

func repoError(w http.ResponseWriter, err error) {
	if errors.Is(err, property.ErrNotFound) {
		errorJSON(w, http.StatusNotFound, err.Error())
		return
	}
	errorJSON(w, http.StatusInternalServerError, err.Error())
}

func recommendError(w http.ResponseWriter, err error, log zerolog.Logger) {
	var verr *recommend.ValidationError
	switch {
	case errors.As(err, &verr):
		validationJSON(w, verr.Fields())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		errorJSON(w, http.StatusServiceUnavailable, "request canceled")
	default:
		log.Error().Err(err).Msg("recommend")
		errorJSON(w, http.StatusInternalServerError, "could not compute recommendations")
	}
}
