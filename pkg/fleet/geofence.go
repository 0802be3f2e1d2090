package fleet

import (
	"time"

	"github.com/buspulse/buspulse/pkg/geomath"
)

type GeofenceKind string

const (
	GeofenceKindZone       GeofenceKind = "zone"
	GeofenceKindStop       GeofenceKind = "stop"
	GeofenceKindSchool     GeofenceKind = "school"
	GeofenceKindRestricted GeofenceKind = "restricted"
)

// Geofence is a circular region tied to a center point and radius. Read-only
// to the tracking engine; managed by the administrative store.
type Geofence struct {
	PrimaryIdentifier string `json:"primary_identifier"`

	Name string       `json:"name"`
	Kind GeofenceKind `json:"kind"`

	CenterLatitude  float64 `json:"center_latitude"`
	CenterLongitude float64 `json:"center_longitude"`
	RadiusMeters    float64 `json:"radius_meters"`

	Active bool `json:"active"`

	CreationDateTime time.Time `json:"creation_date_time"`
}

func (g *Geofence) Center() geomath.Coordinates {
	return geomath.Coordinates{
		Latitude:  g.CenterLatitude,
		Longitude: g.CenterLongitude,
	}
}

// Contains reports whether the position lies within the fence's radius.
func (g *Geofence) Contains(point geomath.Coordinates) bool {
	return geomath.ContainsCircle(g.Center(), g.RadiusMeters, point)
}

type GeofenceEventType string

const (
	GeofenceEventTypeEntry  GeofenceEventType = "entry"
	GeofenceEventTypeExit   GeofenceEventType = "exit"
	GeofenceEventTypeInside GeofenceEventType = "inside"
)

// GeofenceEvent is one entry in the append-only containment transition log.
type GeofenceEvent struct {
	VehicleID  string `json:"vehicle_id"`
	GeofenceID string `json:"geofence_id"`

	EventType GeofenceEventType `json:"event_type"`

	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`

	Timestamp time.Time `json:"timestamp"`
}
