package fleet

import "time"

type VehicleStatus string

const (
	VehicleStatusActive      VehicleStatus = "active"
	VehicleStatusInactive    VehicleStatus = "inactive"
	VehicleStatusMaintenance VehicleStatus = "maintenance"
)

type Vehicle struct {
	PrimaryIdentifier string `json:"primary_identifier"`

	Registration string        `json:"registration"`
	Status       VehicleStatus `json:"status"`

	DriverID string `json:"driver_id,omitempty"`

	// Observers (passengers) assigned to this vehicle; used to resolve
	// observer scoped subscriptions and notification targets.
	AssignedObservers []string `json:"assigned_observers,omitempty"`

	CreationDateTime     time.Time `json:"creation_date_time"`
	ModificationDateTime time.Time `json:"modification_date_time"`
}
