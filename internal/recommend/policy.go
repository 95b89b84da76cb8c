package recommend

import (
	"math"

	"homematch/internal/property"
)

// Component weights. They sum to 1.0.
const (
	WeightPrice     = 0.30
	WeightBedrooms  = 0.20
	WeightSchool    = 0.15
	WeightCommute   = 0.15
	WeightAge       = 0.10
	WeightAmenities = 0.10
)

// Policy holds the normalization thresholds of the sub-scores. Weights are
// fixed; the curves are tunable.
type Policy struct {
	// DefaultMaxCommute applies when a request leaves MaxAcceptableCommute unset.
	DefaultMaxCommute float64
	// DefaultMaxAge applies when a request leaves MaxAgeConsidered unset.
	DefaultMaxAge float64
	// PriceOvershoot is the multiple of budget at which the price score reaches 0.
	PriceOvershoot float64
	SchoolScale    float64
	// Neutral is the sub-score used when a listing lacks the field.
	Neutral float64
}

func DefaultPolicy() Policy {
	return Policy{
		DefaultMaxCommute: 60,
		DefaultMaxAge:     50,
		PriceOvershoot:    1.5,
		SchoolScale:       10,
		Neutral:           0.5,
	}
}

func (p Policy) normalize() Policy {
	def := DefaultPolicy()
	if !(p.DefaultMaxCommute > 0) {
		p.DefaultMaxCommute = def.DefaultMaxCommute
	}
	if !(p.DefaultMaxAge > 0) {
		p.DefaultMaxAge = def.DefaultMaxAge
	}
	if !(p.PriceOvershoot > 1) {
		p.PriceOvershoot = def.PriceOvershoot
	}
	if !(p.SchoolScale > 0) {
		p.SchoolScale = def.SchoolScale
	}
	if p.Neutral < 0 || p.Neutral > 1 || math.IsNaN(p.Neutral) {
		p.Neutral = def.Neutral
	}
	return p
}

// Score rates one candidate against req. It has no side effects and is safe
// for concurrent use. The candidate is assumed to have passed Validate.
func (p Policy) Score(rec property.Record, req Request) ScoredProperty {
	p = p.normalize()
	c := ComponentScores{
		Price:     p.priceScore(rec.Price, req.Budget),
		Bedrooms:  bedroomScore(rec.Bedrooms, req.MinBedrooms),
		School:    p.schoolScore(rec.SchoolRating),
		Commute:   p.decayScore(rec.CommuteTime, req.MaxAcceptableCommute, p.DefaultMaxCommute),
		Age:       p.decayScore(rec.AgeYears, req.MaxAgeConsidered, p.DefaultMaxAge),
		Amenities: p.amenityScore(rec.AmenitySet(), req.DesiredAmenities),
	}
	total := WeightPrice*c.Price +
		WeightBedrooms*c.Bedrooms +
		WeightSchool*c.School +
		WeightCommute*c.Commute +
		WeightAge*c.Age +
		WeightAmenities*c.Amenities
	return ScoredProperty{
		PropertyID:      rec.ID,
		Title:           rec.Title,
		Location:        rec.Location,
		Price:           rec.Price,
		TotalScore:      clamp01(total),
		ComponentScores: c,
	}
}

// priceScore is 1 within budget and falls linearly to 0 at budget*PriceOvershoot.
func (p Policy) priceScore(price, budget float64) float64 {
	if price <= budget {
		return 1
	}
	span := budget * (p.PriceOvershoot - 1)
	if !(span > 0) {
		return 0
	}
	return clamp01(1 - (price-budget)/span)
}

func bedroomScore(bedrooms, minBedrooms int) float64 {
	if minBedrooms <= 0 || bedrooms >= minBedrooms {
		return 1
	}
	return clamp01(float64(bedrooms) / float64(minBedrooms))
}

func (p Policy) schoolScore(rating *float64) float64 {
	if rating == nil {
		return p.Neutral
	}
	return clamp01(*rating / p.SchoolScale)
}

// decayScore is 1 - value/limit, with limit taken from the request or the
// policy default.
func (p Policy) decayScore(value, requested *float64, fallback float64) float64 {
	if value == nil {
		return p.Neutral
	}
	limit := fallback
	if requested != nil && *requested > 0 {
		limit = *requested
	}
	return clamp01(1 - *value/limit)
}

func (p Policy) amenityScore(have map[string]struct{}, desired []string) float64 {
	want := property.NormalizeAmenities(desired)
	if len(want) == 0 {
		return 1
	}
	if have == nil {
		return p.Neutral
	}
	matched := 0
	for name := range want {
		if _, ok := have[name]; ok {
			matched++
		}
	}
	return clamp01(float64(matched) / float64(len(want)))
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
