package fleet

import (
	"encoding/json"
	"time"
)

// LiveState is the single most recent accepted position for a vehicle plus the
// facts derived from it. Overwritten on every accepted ingestion, never historical.
type LiveState struct {
	VehicleID string `json:"vehicle_id"`

	Position Position `json:"position"`
	Bearing  float64  `json:"bearing"`

	GeofenceMemberships []string `json:"geofence_memberships,omitempty"`
	ActiveTripID        string   `json:"active_trip_id,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

func (s *LiveState) MarshalBinary() ([]byte, error) {
	return json.Marshal(s)
}

func (s *LiveState) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, s)
}
