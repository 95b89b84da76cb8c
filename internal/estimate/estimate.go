// Package estimate talks to the remote price model. The model itself is a
// black box: features in, price out.
package estimate

import (
	"context"
	"errors"

	"homematch/internal/validation"
)

// ErrUnavailable is returned while the circuit to the model service is open.
var ErrUnavailable = errors.New("price estimator unavailable")

// Estimator predicts a listing price from its features.
type Estimator interface {
	Estimate(ctx context.Context, f Features) (float64, error)
}

// ModelInfo describes where estimates come from.
type ModelInfo struct {
	Endpoint     string `json:"endpoint"`
	BreakerState string `json:"breakerState"`
}

// Describer is implemented by estimators that can report ModelInfo.
type Describer interface {
	Info() ModelInfo
}

// Features is the model input. Field names follow the model service's wire format.
type Features struct {
	PropertyType string  `json:"property_type" validate:"required,max=32"`
	LotArea      float64 `json:"lot_area" validate:"gte=0"`
	BuildingArea float64 `json:"building_area" validate:"gt=0"`
	Bedrooms     int     `json:"bedrooms" validate:"gte=0,lte=50"`
	Bathrooms    int     `json:"bathrooms" validate:"gte=0,lte=50"`
	YearBuilt    int     `json:"year_built" validate:"gte=1800,lte=2100"`
	HasPool      bool    `json:"has_pool"`
	HasGarage    bool    `json:"has_garage"`
	SchoolRating int     `json:"school_rating" validate:"gte=0,lte=10"`
}

// DefaultFeatures is a typical single family home; request bodies are decoded
// on top of it so omitted fields keep these values.
func DefaultFeatures() Features {
	return Features{
		PropertyType: "SFH",
		LotArea:      5000,
		BuildingArea: 1500,
		Bedrooms:     3,
		Bathrooms:    2,
		YearBuilt:    2015,
		HasGarage:    true,
		SchoolRating: 7,
	}
}

func (f Features) Validate() error {
	if verr := validation.Struct(&f); verr != nil {
		return verr
	}
	return nil
}
