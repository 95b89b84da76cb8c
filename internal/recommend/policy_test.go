package recommend

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homematch/internal/property"
)

func TestWeightsSumToOne(t *testing.T) {
	sum := WeightPrice + WeightBedrooms + WeightSchool + WeightCommute + WeightAge + WeightAmenities
	assert.InDelta(t, 1.0, sum, 1e-12)
}

func TestScoreReferenceListing(t *testing.T) {
	rec := property.Record{
		ID:           "p1",
		Price:        480000,
		Bedrooms:     3,
		SchoolRating: property.Float(8),
		CommuteTime:  property.Float(20),
		AgeYears:     property.Float(5),
		Amenities:    []string{},
	}
	req := Request{Budget: 500000, MinBedrooms: 3}

	got := DefaultPolicy().Score(rec, req)

	assert.Equal(t, "p1", got.PropertyID)
	assert.InDelta(t, 1.0, got.ComponentScores.Price, 1e-9)
	assert.InDelta(t, 1.0, got.ComponentScores.Bedrooms, 1e-9)
	assert.InDelta(t, 0.8, got.ComponentScores.School, 1e-9)
	assert.InDelta(t, 1-20.0/60, got.ComponentScores.Commute, 1e-9)
	assert.InDelta(t, 0.9, got.ComponentScores.Age, 1e-9)
	assert.InDelta(t, 1.0, got.ComponentScores.Amenities, 1e-9)
	assert.InDelta(t, 0.91, got.TotalScore, 1e-9)
}

func TestPriceScore(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		name  string
		price float64
		want  float64
	}{
		{"under budget", 400, 1},
		{"at budget", 1000, 1},
		{"quarter over", 1250, 0.5},
		{"at overshoot", 1500, 0},
		{"far over", 5000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, p.priceScore(tt.price, 1000), 1e-9)
		})
	}
}

func TestBedroomScorePartialCredit(t *testing.T) {
	assert.Equal(t, 1.0, bedroomScore(4, 3))
	assert.InDelta(t, 2.0/3, bedroomScore(2, 3), 1e-9)
	assert.Equal(t, 0.0, bedroomScore(0, 3))
}

func TestMissingFieldsAreNeutral(t *testing.T) {
	rec := property.Record{ID: "bare", Price: 100, Bedrooms: 2}
	req := Request{Budget: 100, MinBedrooms: 2, DesiredAmenities: []string{"pool"}}

	got := DefaultPolicy().Score(rec, req)

	assert.Equal(t, 0.5, got.ComponentScores.School)
	assert.Equal(t, 0.5, got.ComponentScores.Commute)
	assert.Equal(t, 0.5, got.ComponentScores.Age)
	assert.Equal(t, 0.5, got.ComponentScores.Amenities)
}

func TestRequestThresholdsOverrideDefaults(t *testing.T) {
	rec := property.Record{ID: "x", Price: 100, Bedrooms: 1, CommuteTime: property.Float(30), AgeYears: property.Float(10)}
	req := Request{Budget: 100, MinBedrooms: 1, MaxAcceptableCommute: property.Float(120), MaxAgeConsidered: property.Float(20)}

	got := DefaultPolicy().Score(rec, req)

	assert.InDelta(t, 0.75, got.ComponentScores.Commute, 1e-9)
	assert.InDelta(t, 0.5, got.ComponentScores.Age, 1e-9)
}

func TestAmenityOverlapIgnoresCase(t *testing.T) {
	rec := property.Record{ID: "a", Price: 1, Bedrooms: 1, Amenities: []string{"Pool", "gym "}}
	req := Request{Budget: 1, MinBedrooms: 1, DesiredAmenities: []string{"pool", "GYM", "garden", "garage"}}

	got := DefaultPolicy().Score(rec, req)

	assert.InDelta(t, 0.5, got.ComponentScores.Amenities, 1e-9)
}

func TestScoresStayInUnitRange(t *testing.T) {
	p := DefaultPolicy()
	recs := []property.Record{
		{ID: "cheap", Price: 1, Bedrooms: 10, SchoolRating: property.Float(15), CommuteTime: property.Float(0), AgeYears: property.Float(0), Amenities: []string{"pool"}},
		{ID: "pricey", Price: 1e9, Bedrooms: 0, SchoolRating: property.Float(0), CommuteTime: property.Float(1e6), AgeYears: property.Float(1e6), Amenities: []string{}},
	}
	req := Request{Budget: 1000, MinBedrooms: 3, DesiredAmenities: []string{"pool", "gym"}}
	for _, rec := range recs {
		got := p.Score(rec, req)
		assert.GreaterOrEqual(t, got.TotalScore, 0.0, rec.ID)
		assert.LessOrEqual(t, got.TotalScore, 1.0, rec.ID)
		for _, c := range []float64{got.ComponentScores.Price, got.ComponentScores.Bedrooms, got.ComponentScores.School, got.ComponentScores.Commute, got.ComponentScores.Age, got.ComponentScores.Amenities} {
			require.False(t, math.IsNaN(c))
			assert.GreaterOrEqual(t, c, 0.0)
			assert.LessOrEqual(t, c, 1.0)
		}
	}
}

func TestPolicyNormalizeFillsDefaults(t *testing.T) {
	p := Policy{PriceOvershoot: 0.5, Neutral: 2}.normalize()
	assert.Equal(t, DefaultPolicy(), p)

	custom := Policy{DefaultMaxCommute: 90, DefaultMaxAge: 30, PriceOvershoot: 2, SchoolScale: 5, Neutral: 0.4}
	assert.Equal(t, custom, custom.normalize())
}
