package property

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func searchRepo(t *testing.T) *MemoryRepository {
	t.Helper()
	repo, err := NewMemoryRepository(
		Record{ID: "a1", Title: "Austin bungalow", Location: "Austin", Price: 350000, Bedrooms: 3, Bathrooms: 2},
		Record{ID: "a2", Title: "Lake house", Location: "Austin", Price: 300000, Bedrooms: 4, Bathrooms: 3},
		Record{ID: "a3", Title: "Studio", Location: "Austin", Price: 200000, Bedrooms: 1, Bathrooms: 1},
		Record{ID: "a4", Title: "Ranch", Location: "Austin", Price: 300000, Bedrooms: 3, Bathrooms: 2},
		Record{ID: "a5", Title: "Estate", Location: "Austin", Price: 900000, Bedrooms: 6, Bathrooms: 5},
		Record{ID: "d1", Title: "Condo", Location: "Dallas", Price: 250000, Bedrooms: 3, Bathrooms: 2},
	)
	require.NoError(t, err)
	return repo
}

func TestSearch(t *testing.T) {
	repo := searchRepo(t)
	c := SearchCriteria{Location: " austin ", Budget: 400000, Preferences: SearchPreferences{Bedrooms: 3, Bathrooms: 2}}
	require.Nil(t, c.Validate())

	got, err := Search(context.Background(), repo, c, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a2", "a4", "a1"}, ids(got), "cheapest first, ties by id")

	limited, err := Search(context.Background(), repo, c, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a2"}, ids(limited))
}

func TestSearchCriteriaValidate(t *testing.T) {
	cases := []struct {
		name  string
		c     SearchCriteria
		field string
	}{
		{"missing location", SearchCriteria{Budget: 1}, "location"},
		{"blank location", SearchCriteria{Location: "  ", Budget: 1}, "location"},
		{"zero budget", SearchCriteria{Location: "x"}, "budget"},
		{"infinite budget", SearchCriteria{Location: "x", Budget: math.Inf(1)}, "budget"},
		{"negative bedrooms", SearchCriteria{Location: "x", Budget: 1, Preferences: SearchPreferences{Bedrooms: -1}}, "bedrooms"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			verr := tc.c.Validate()
			require.NotNil(t, verr)
			assert.True(t, verr.Has(tc.field), verr.Error())
		})
	}
}

func TestSuggestions(t *testing.T) {
	repo := searchRepo(t)
	ctx := context.Background()

	got, err := Suggestions(ctx, repo, "AUS", 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"Austin", "Austin bungalow"}, got)

	got, err = Suggestions(ctx, repo, "  ", 100)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = Suggestions(ctx, repo, "zzz", 100)
	require.NoError(t, err)
	assert.Equal(t, []string{}, got)
}
