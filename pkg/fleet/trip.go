package fleet

import (
	"encoding/json"
	"time"
)

var TripIDFormat = "TRIP:%s:%s"

type TripStatus string

const (
	TripStatusScheduled  TripStatus = "scheduled"
	TripStatusInProgress TripStatus = "in_progress"
	TripStatusCompleted  TripStatus = "completed"
	TripStatusCancelled  TripStatus = "cancelled"
)

// Trip is a bounded period of active movement tracking for one vehicle,
// bracketed by explicit start and stop commands.
type Trip struct {
	PrimaryIdentifier string `json:"primary_identifier"`
	VehicleID         string `json:"vehicle_id"`

	Status TripStatus `json:"status"`

	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	StartLatitude  *float64 `json:"start_latitude,omitempty"`
	StartLongitude *float64 `json:"start_longitude,omitempty"`
	EndLatitude    *float64 `json:"end_latitude,omitempty"`
	EndLongitude   *float64 `json:"end_longitude,omitempty"`

	TotalDistanceKM float64 `json:"total_distance_km"`
	AverageSpeedKMH float64 `json:"average_speed_kmh"`
	PointCount      int     `json:"point_count"`

	CreationDateTime time.Time `json:"creation_date_time"`
}

func (t *Trip) MarshalBinary() ([]byte, error) {
	return json.Marshal(t)
}

func (t *Trip) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, t)
}

// TripPoint is one sequenced position sample belonging to a trip. Append-only;
// sequence starts at 1 and is strictly increasing with no gaps.
type TripPoint struct {
	TripID   string `json:"trip_id"`
	Sequence int    `json:"sequence"`

	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	SpeedKMH  float64 `json:"speed_kmh"`

	Timestamp time.Time `json:"timestamp"`
}
