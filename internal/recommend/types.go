package recommend

import (
	"sort"
	"strings"

	"homematch/internal/cache"
	"homematch/internal/property"
)

// Request is a user's preference set. It is passed by value and never
// modified after construction.
type Request struct {
	Budget                float64  `json:"budget" validate:"gt=0"`
	MinBedrooms           int      `json:"minBedrooms" validate:"gt=0"`
	PreferredSchoolRating *float64 `json:"preferredSchoolRating,omitempty" validate:"omitempty,gte=0,lte=10"`
	MaxAcceptableCommute  *float64 `json:"maxAcceptableCommute,omitempty" validate:"omitempty,gt=0"`
	MaxAgeConsidered      *float64 `json:"maxAgeConsidered,omitempty" validate:"omitempty,gt=0"`
	DesiredAmenities      []string `json:"desiredAmenities,omitempty"`
	// Location scopes the candidate set the serving layer fetches, so it is
	// part of the cache key even though scoring ignores it.
	Location string `json:"location,omitempty" validate:"max=200"`
}

// Params is the canonical parameter set the cache key is built from.
func (r Request) Params() cache.Params {
	amenities := make([]string, 0, len(r.DesiredAmenities))
	for name := range property.NormalizeAmenities(r.DesiredAmenities) {
		amenities = append(amenities, name)
	}
	sort.Strings(amenities)
	return cache.Params{
		"budget":                r.Budget,
		"minBedrooms":           r.MinBedrooms,
		"preferredSchoolRating": r.PreferredSchoolRating,
		"maxAcceptableCommute":  r.MaxAcceptableCommute,
		"maxAgeConsidered":      r.MaxAgeConsidered,
		"desiredAmenities":      amenities,
		"location":              strings.ToLower(strings.TrimSpace(r.Location)),
	}
}

type ComponentScores struct {
	Price     float64 `json:"price"`
	Bedrooms  float64 `json:"bedrooms"`
	School    float64 `json:"school"`
	Commute   float64 `json:"commute"`
	Age       float64 `json:"age"`
	Amenities float64 `json:"amenities"`
}

// ScoredProperty is one ranked candidate. Price, Title and Location are
// carried along for tie-breaking and display.
type ScoredProperty struct {
	PropertyID      string          `json:"propertyId"`
	Title           string          `json:"title,omitempty"`
	Location        string          `json:"location,omitempty"`
	Price           float64         `json:"price"`
	TotalScore      float64         `json:"totalScore"`
	ComponentScores ComponentScores `json:"componentScores"`
}
