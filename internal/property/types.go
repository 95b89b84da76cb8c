package property

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"homematch/internal/validation"
)

var ErrNotFound = errors.New("property not found")

// Record is one listing as handed to the recommendation core. SchoolRating,
// CommuteTime and AgeYears are nil when the listing does not carry them;
// a nil Amenities slice means unknown, an empty one means none.
type Record struct {
	ID           string   `json:"id" validate:"required"`
	Title        string   `json:"title,omitempty"`
	Location     string   `json:"location,omitempty"`
	Price        float64  `json:"price" validate:"gt=0"`
	Bedrooms     int      `json:"bedrooms" validate:"gte=0"`
	Bathrooms    int      `json:"bathrooms,omitempty" validate:"gte=0"`
	SizeSqft     int      `json:"sizeSqft,omitempty" validate:"gte=0"`
	SchoolRating *float64 `json:"schoolRating,omitempty" validate:"omitempty,gte=0"`
	CommuteTime  *float64 `json:"commuteTime,omitempty" validate:"omitempty,gte=0"`
	AgeYears     *float64 `json:"ageYears,omitempty" validate:"omitempty,gte=0"`
	Amenities    []string `json:"amenities"`
}

// Filter narrows FetchCandidates. Zero values disable each bound.
type Filter struct {
	Location     string
	MaxPrice     float64
	MinBedrooms  int
	MinBathrooms int
	Limit        int
}

func (f Filter) Match(r Record) bool {
	if f.MaxPrice > 0 && r.Price > f.MaxPrice {
		return false
	}
	if r.Bedrooms < f.MinBedrooms || r.Bathrooms < f.MinBathrooms {
		return false
	}
	if loc := strings.TrimSpace(f.Location); loc != "" {
		if !strings.Contains(strings.ToLower(r.Location), strings.ToLower(loc)) {
			return false
		}
	}
	return true
}

// Repository supplies property records. The recommendation core never queries
// it directly; the serving layer fetches candidates and hands them in.
type Repository interface {
	FetchCandidates(ctx context.Context, filter Filter) ([]Record, error)
	Get(ctx context.Context, id string) (Record, error)
	List(ctx context.Context, query string, limit int) ([]Record, error)
	Upsert(ctx context.Context, records ...Record) error
	Count(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
}

// Validate reports whether r is structurally usable for ranking.
func (r Record) Validate() error {
	if verr := validation.Struct(&r); verr != nil {
		return fmt.Errorf("property %q: %w", r.ID, verr)
	}
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("property: id is blank")
	}
	if !finite(r.Price) {
		return fmt.Errorf("property %q: price must be finite", r.ID)
	}
	for name, v := range map[string]*float64{"schoolRating": r.SchoolRating, "commuteTime": r.CommuteTime, "ageYears": r.AgeYears} {
		if v != nil && !finite(*v) {
			return fmt.Errorf("property %q: %s must be finite", r.ID, name)
		}
	}
	return nil
}

// AmenitySet returns the normalized amenity names of r, or nil when the
// listing carries no amenity information.
func (r Record) AmenitySet() map[string]struct{} {
	if r.Amenities == nil {
		return nil
	}
	return NormalizeAmenities(r.Amenities)
}

// NormalizeAmenities lower-cases and trims names, dropping blanks and duplicates.
func NormalizeAmenities(names []string) map[string]struct{} {
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		if v := NormalizeAmenity(n); v != "" {
			out[v] = struct{}{}
		}
	}
	return out
}

func NormalizeAmenity(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Float is a helper for optional numeric fields.
func Float(v float64) *float64 {
	return &v
}
