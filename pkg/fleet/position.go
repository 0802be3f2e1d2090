package fleet

import (
	"time"

	"github.com/buspulse/buspulse/pkg/geomath"
)

// Position is a single report from a vehicle's GPS device. Immutable once created.
type Position struct {
	VehicleID string `json:"vehicle_id" validate:"required"`

	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`

	SpeedKMH float64 `json:"speed_kmh" validate:"gte=0"`

	AccuracyMeters *float64 `json:"accuracy_meters,omitempty"`
	BatteryPercent *float64 `json:"battery_percent,omitempty" validate:"omitempty,gte=0,lte=100"`

	ObservedAt time.Time `json:"observed_at" validate:"required"`
}

func (p Position) Coordinates() geomath.Coordinates {
	return geomath.Coordinates{
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
	}
}
