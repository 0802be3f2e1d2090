package tracker

import (
	"context"
	"time"

	"github.com/buspulse/buspulse/pkg/fleet"
)

// Store is the durable record store the engine reads from and appends to.
// Lookups return (nil, nil) when no matching record exists.
type Store interface {
	AppendPosition(ctx context.Context, position fleet.Position) error
	AppendGeofenceEvent(ctx context.Context, event fleet.GeofenceEvent) error
	AppendTripPoint(ctx context.Context, point fleet.TripPoint) error

	PutTrip(ctx context.Context, trip *fleet.Trip) error
	GetTrip(ctx context.Context, id string) (*fleet.Trip, error)
	GetActiveTrip(ctx context.Context, vehicleID string) (*fleet.Trip, error)
	GetLatestTripPoint(ctx context.Context, tripID string) (*fleet.TripPoint, error)

	GetActiveGeofences(ctx context.Context) ([]fleet.Geofence, error)
	GetLatestGeofenceEvents(ctx context.Context) ([]fleet.GeofenceEvent, error)

	GetAssignedVehicle(ctx context.Context, observerID string) (*fleet.Vehicle, error)
	GetLocationHistory(ctx context.Context, vehicleID string, since time.Time) ([]fleet.Position, error)
}
