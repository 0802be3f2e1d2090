package tracker

import (
	"fmt"
	"time"

	"github.com/buspulse/buspulse/pkg/fleet"
	"github.com/go-playground/validator/v10"
)

// Validator checks incoming position reports for structural and physical
// plausibility before they enter the pipeline.
type Validator struct {
	config   Config
	validate *validator.Validate
}

func NewValidator(config Config) *Validator {
	return &Validator{
		config:   config,
		validate: validator.New(),
	}
}

// Validate returns a *ValidationError describing the first failed check, or
// nil for an acceptable report. Checks run in order: coordinate ranges, speed
// bound, timestamp plausibility.
func (v *Validator) Validate(report fleet.Position, now time.Time) error {
	if !report.Coordinates().Valid() {
		return &ValidationError{Field: "coordinates", Reason: "outside valid latitude/longitude range"}
	}

	if err := v.validate.Struct(report); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok && len(validationErrors) > 0 {
			first := validationErrors[0]
			return &ValidationError{
				Field:  first.Field(),
				Reason: fmt.Sprintf("failed %s check", first.Tag()),
			}
		}

		return &ValidationError{Field: "report", Reason: err.Error()}
	}

	// Faster than physically plausible means sensor error, not clamping
	if report.SpeedKMH > v.config.MaxSpeedKMH {
		return &ValidationError{
			Field:  "SpeedKMH",
			Reason: fmt.Sprintf("%.1f exceeds maximum %.1f", report.SpeedKMH, v.config.MaxSpeedKMH),
		}
	}

	if report.ObservedAt.After(now.Add(v.config.ClockSkewTolerance)) {
		return &ValidationError{Field: "ObservedAt", Reason: "timestamp in the future"}
	}

	if report.ObservedAt.Before(now.Add(-v.config.StalenessBound)) {
		return &ValidationError{Field: "ObservedAt", Reason: "timestamp too old"}
	}

	return nil
}
