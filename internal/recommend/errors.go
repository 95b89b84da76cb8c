package recommend

import (
	"homematch/internal/validation"
)

// ValidationError rejects a malformed Request. It is returned before the
// cache is consulted or any candidate is scored.
type ValidationError struct {
	Err *validation.RequestValidationError
}

func (e *ValidationError) Error() string {
	return "invalid recommendation request: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Fields lists the per-field failures.
func (e *ValidationError) Fields() []validation.FieldError {
	if e.Err == nil {
		return nil
	}
	return e.Err.Fields
}

// Validate checks req and returns a *ValidationError when it is malformed.
func (r Request) Validate() error {
	if verr := validation.Struct(&r); verr != nil {
		return &ValidationError{Err: verr}
	}
	var bad []validation.FieldError
	for name, v := range map[string]*float64{
		"preferredSchoolRating": r.PreferredSchoolRating,
		"maxAcceptableCommute":  r.MaxAcceptableCommute,
		"maxAgeConsidered":      r.MaxAgeConsidered,
	} {
		if v != nil && !finite(*v) {
			bad = append(bad, validation.FieldError{Field: name, Tag: "finite", Message: name + " must be a finite number"})
		}
	}
	if !finite(r.Budget) {
		bad = append(bad, validation.FieldError{Field: "budget", Tag: "finite", Message: "budget must be a finite number"})
	}
	if len(bad) > 0 {
		sortFields(bad)
		return &ValidationError{Err: &validation.RequestValidationError{Fields: bad}}
	}
	return nil
}
