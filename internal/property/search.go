package property

import (
	"context"
	"sort"
	"strings"

	"homematch/internal/validation"
)

// MaxSuggestions caps Suggestions output.
const MaxSuggestions = 10

type SearchPreferences struct {
	Bedrooms  int `json:"bedrooms" validate:"gte=0"`
	Bathrooms int `json:"bathrooms" validate:"gte=0"`
}

// SearchCriteria selects listings in a location at or under budget with at
// least the preferred number of rooms.
type SearchCriteria struct {
	Location    string            `json:"location" validate:"required,max=200"`
	Budget      float64           `json:"budget" validate:"gt=0"`
	Preferences SearchPreferences `json:"preferences"`
}

func (c SearchCriteria) Validate() *validation.RequestValidationError {
	if verr := validation.Struct(&c); verr != nil {
		return verr
	}
	if strings.TrimSpace(c.Location) == "" {
		return &validation.RequestValidationError{Fields: []validation.FieldError{
			{Field: "location", Tag: "required", Message: "location is required"},
		}}
	}
	if !finite(c.Budget) {
		return &validation.RequestValidationError{Fields: []validation.FieldError{
			{Field: "budget", Tag: "finite", Message: "budget must be a finite number"},
		}}
	}
	return nil
}

func (c SearchCriteria) Filter(limit int) Filter {
	return Filter{
		Location:     strings.TrimSpace(c.Location),
		MaxPrice:     c.Budget,
		MinBedrooms:  c.Preferences.Bedrooms,
		MinBathrooms: c.Preferences.Bathrooms,
		Limit:        limit,
	}
}

// Search returns up to limit listings matching c, cheapest first with ties
// by id. c must already be valid.
func Search(ctx context.Context, repo Repository, c SearchCriteria, limit int) ([]Record, error) {
	out, err := repo.FetchCandidates(ctx, c.Filter(0))
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Price != out[j].Price {
			return out[i].Price < out[j].Price
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Suggestions returns up to MaxSuggestions distinct locations and titles
// containing q, ignoring case. Locations come before titles; each group is
// sorted. scan bounds how many listings are inspected.
func Suggestions(ctx context.Context, repo Repository, q string, scan int) ([]string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []string{}, nil
	}
	records, err := repo.List(ctx, q, scan)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(q)
	seen := make(map[string]struct{})
	var locations, titles []string
	add := func(dst *[]string, v string) {
		if v == "" || !strings.Contains(strings.ToLower(v), needle) {
			return
		}
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		*dst = append(*dst, v)
	}
	for _, r := range records {
		add(&locations, r.Location)
		add(&titles, r.Title)
	}
	sort.Strings(locations)
	sort.Strings(titles)
	out := append(locations, titles...)
	if len(out) > MaxSuggestions {
		out = out[:MaxSuggestions]
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}
