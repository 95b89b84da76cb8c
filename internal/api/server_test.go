package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homematch/internal/cache"
	"homematch/internal/estimate"
	"homematch/internal/property"
	"homematch/internal/recommend"
)

type stubEstimator struct {
	price float64
	err   error
	got   estimate.Features
}

func (s *stubEstimator) Estimate(ctx context.Context, f estimate.Features) (float64, error) {
	s.got = f
	if err := f.Validate(); err != nil {
		return 0, err
	}
	return s.price, s.err
}

type fixture struct {
	handler http.Handler
	store   *cache.Store
	repo    *property.MemoryRepository
}

func newFixture(t *testing.T, est estimate.Estimator) fixture {
	t.Helper()
	repo, err := property.NewMemoryRepository(
		property.Record{ID: "p1", Title: "Craftsman bungalow", Location: "Austin, TX", Price: 480000, Bedrooms: 3, Bathrooms: 2, SizeSqft: 1800,
			SchoolRating: property.Float(8), CommuteTime: property.Float(20), AgeYears: property.Float(5), Amenities: []string{"garden"}},
		property.Record{ID: "p2", Title: "Downtown loft", Location: "Austin, TX", Price: 650000, Bedrooms: 2, Bathrooms: 2, SizeSqft: 1200,
			SchoolRating: property.Float(6), CommuteTime: property.Float(5), AgeYears: property.Float(2), Amenities: []string{"gym", "pool"}},
		property.Record{ID: "p3", Title: "Ranch house", Location: "Dallas, TX", Price: 390000, Bedrooms: 4, Bathrooms: 3, SizeSqft: 2400},
	)
	require.NoError(t, err)
	store, err := cache.New(cache.Config{MaxSize: 10, DefaultTTL: time.Hour})
	require.NoError(t, err)
	engine, err := recommend.NewEngine(store, recommend.DefaultConfig(), zerolog.Nop())
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	reg.MustRegister(cache.NewCollector("homematch", store))

	h := NewRouter(Deps{
		Repo:           repo,
		Engine:         engine,
		Cache:          store,
		Estimator:      est,
		Gatherer:       reg,
		Log:            zerolog.Nop(),
		CandidateLimit: 100,
		Version:        "test",
	})
	return fixture{handler: h, store: store, repo: repo}
}

func (f fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestIndexAndHealth(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	idx := decode[map[string]any](t, rec)
	assert.Equal(t, "homematch", idx["service"])
	assert.NotContains(t, idx["endpoints"], "predict")

	rec = f.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[struct {
		Status   string         `json:"status"`
		Database map[string]any `json:"database"`
		Cache    cache.Stats    `json:"cache"`
	}](t, rec)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, float64(3), health.Database["properties"])
	assert.Equal(t, 10, health.Cache.MaxSize)
}

func TestListAndGetProperties(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/properties?q=austin&limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Count      int               `json:"count"`
		Properties []property.Record `json:"properties"`
	}](t, rec)
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, "p1", list.Properties[0].ID)

	rec = f.do(t, http.MethodGet, "/properties?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/properties/p3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ranch house", decode[property.Record](t, rec).Title)

	rec = f.do(t, http.MethodGet, "/properties/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCompare(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/compare/p1/p2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode[struct {
		Comparison property.Comparison `json:"comparison"`
	}](t, rec)
	assert.Equal(t, 170000.0, out.Comparison.PriceDifference)
	assert.Equal(t, "p2", out.Comparison.Notes.MoreExpensive)

	rec = f.do(t, http.MethodGet, "/compare/p1/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecommendMissThenHit(t *testing.T) {
	f := newFixture(t, nil)
	body := `{"budget":500000,"minBedrooms":3,"desiredAmenities":["garden"]}`

	rec := f.do(t, http.MethodPost, "/recommend", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decode[recommendResponse](t, rec)
	assert.Equal(t, len(first.RecommendedProperties), first.TotalProperties)
	assert.Equal(t, 3, first.CandidatesConsidered)
	assert.False(t, first.CacheInfo.Hit)
	require.NotEmpty(t, first.RecommendedProperties)
	assert.Equal(t, "p1", first.RecommendedProperties[0].PropertyID)

	rec = f.do(t, http.MethodPost, "/recommend", body)
	require.Equal(t, http.StatusOK, rec.Code)
	second := decode[recommendResponse](t, rec)
	assert.True(t, second.CacheInfo.Hit)
	assert.Equal(t, first.RecommendedProperties, second.RecommendedProperties)
}

func TestRecommendLocationScopesCandidates(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/recommend", `{"budget":500000,"minBedrooms":3,"location":"dallas"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode[recommendResponse](t, rec)
	assert.Equal(t, 1, out.TotalProperties)
	assert.Equal(t, 1, out.CandidatesConsidered)
	require.Len(t, out.RecommendedProperties, 1)
	assert.Equal(t, "p3", out.RecommendedProperties[0].PropertyID)
}

func TestRecommendRejectsInvalidRequest(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/recommend", `{"minBedrooms":3}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	out := decode[struct {
		Fields []struct {
			Field string `json:"field"`
		} `json:"fields"`
	}](t, rec)
	require.Len(t, out.Fields, 1)
	assert.Equal(t, "budget", out.Fields[0].Field)
	assert.Equal(t, 0, f.store.Stats().Size)
	assert.Zero(t, f.store.Stats().Misses)

	rec = f.do(t, http.MethodPost, "/recommend", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPredict(t *testing.T) {
	est := &stubEstimator{price: 425000}
	f := newFixture(t, est)

	rec := f.do(t, http.MethodPost, "/predict", `{"bedrooms":4,"has_pool":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[map[string]any](t, rec)
	assert.Equal(t, 425000.0, out["predictedPrice"])
	assert.Equal(t, 4, est.got.Bedrooms)
	assert.True(t, est.got.HasPool)
	assert.Equal(t, "SFH", est.got.PropertyType)

	rec = f.do(t, http.MethodPost, "/predict", `{"school_rating":11}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	est.err = estimate.ErrUnavailable
	rec = f.do(t, http.MethodPost, "/predict", `{"bedrooms":2}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	est.err = errors.New("boom")
	rec = f.do(t, http.MethodPost, "/predict", `{"bedrooms":2}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestPredictWithoutEstimator(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodPost, "/predict", `{}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	rec = f.do(t, http.MethodGet, "/pricedata", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPriceData(t *testing.T) {
	est := &stubEstimator{price: 510000}
	f := newFixture(t, est)

	rec := f.do(t, http.MethodGet, "/pricedata", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[struct {
		SampleInput      estimate.Features `json:"sampleInput"`
		SamplePrediction float64           `json:"samplePrediction"`
	}](t, rec)
	assert.Equal(t, 510000.0, out.SamplePrediction)
	assert.Equal(t, estimate.DefaultFeatures(), out.SampleInput)
	assert.Equal(t, estimate.DefaultFeatures(), est.got)

	est.err = estimate.ErrUnavailable
	rec = f.do(t, http.MethodGet, "/pricedata", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestFindProperties(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/findproperties", `{"location":"austin","budget":700000,"preferences":{"bedrooms":2,"bathrooms":2}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[searchResponse](t, rec)
	assert.Equal(t, 2, out.TotalFound)
	require.Len(t, out.Properties, 2)
	assert.Equal(t, "p1", out.Properties[0].ID, "cheapest first")
	assert.Equal(t, "p2", out.Properties[1].ID)
	assert.Equal(t, "austin", out.SearchCriteria.Location)

	rec = f.do(t, http.MethodPost, "/findproperties", `{"location":"austin","budget":500000,"preferences":{"bedrooms":3,"bathrooms":2}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	out = decode[searchResponse](t, rec)
	require.Len(t, out.Properties, 1)
	assert.Equal(t, "p1", out.Properties[0].ID)

	rec = f.do(t, http.MethodPost, "/findproperties", `{"location":"austin","budget":100000,"preferences":{"bedrooms":1,"bathrooms":1}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	out = decode[searchResponse](t, rec)
	assert.Zero(t, out.TotalFound)
	assert.NotNil(t, out.Properties)
}

func TestFindPropertiesRejectsInvalidCriteria(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/findproperties", `{"budget":0,"preferences":{"bedrooms":-1}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	out := decode[struct {
		Fields []struct {
			Field string `json:"field"`
		} `json:"fields"`
	}](t, rec)
	var fields []string
	for _, fe := range out.Fields {
		fields = append(fields, fe.Field)
	}
	assert.ElementsMatch(t, []string{"location", "budget", "bedrooms"}, fields)

	rec = f.do(t, http.MethodPost, "/findproperties", `{"location":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSuggestions(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/suggestions?q=AUSTIN", "")
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode[struct {
		Suggestions []string `json:"suggestions"`
	}](t, rec)
	assert.Equal(t, []string{"Austin, TX"}, out.Suggestions)

	rec = f.do(t, http.MethodGet, "/suggestions?q=ranch", "")
	require.Equal(t, http.StatusOK, rec.Code)
	out = decode[struct {
		Suggestions []string `json:"suggestions"`
	}](t, rec)
	assert.Equal(t, []string{"Ranch house"}, out.Suggestions)

	rec = f.do(t, http.MethodGet, "/suggestions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	out = decode[struct {
		Suggestions []string `json:"suggestions"`
	}](t, rec)
	assert.Empty(t, out.Suggestions)
}

func TestCacheAdmin(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.store.Set("stale", 1, time.Nanosecond))
	require.NoError(t, f.store.Set("fresh", 2, time.Hour))
	time.Sleep(time.Millisecond)

	rec := f.do(t, http.MethodGet, "/cache/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[struct {
		Stats cache.Stats `json:"cacheStatistics"`
	}](t, rec)
	assert.Equal(t, 1, stats.Stats.Size)
	assert.Equal(t, 2, stats.Stats.Stored)

	rec = f.do(t, http.MethodPost, "/cache/cleanup", "")
	require.Equal(t, http.StatusOK, rec.Code)
	cleanup := decode[struct {
		Removed int         `json:"removed"`
		Before  cache.Stats `json:"before"`
		After   cache.Stats `json:"after"`
	}](t, rec)
	assert.Equal(t, 1, cleanup.Removed)
	assert.Equal(t, 2, cleanup.Before.Stored)
	assert.Equal(t, 1, cleanup.After.Stored)
	assert.Equal(t, 1, cleanup.After.Size)

	rec = f.do(t, http.MethodPost, "/cache/clear", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, f.store.Stats().Size)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "homematch_cache_capacity 10")
}

func TestRateLimit(t *testing.T) {
	repo, err := property.NewMemoryRepository()
	require.NoError(t, err)
	store, err := cache.New(cache.Config{MaxSize: 1, DefaultTTL: time.Minute})
	require.NoError(t, err)
	engine, err := recommend.NewEngine(store, recommend.DefaultConfig(), zerolog.Nop())
	require.NoError(t, err)
	h := NewRouter(Deps{Repo: repo, Engine: engine, Cache: store, Log: zerolog.Nop(), RateLimit: 2, Gatherer: prometheus.NewRegistry()})

	codes := make([]int, 3)
	for i := range codes {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/properties", nil))
		codes[i] = rec.Code
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
