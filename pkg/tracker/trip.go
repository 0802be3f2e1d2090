package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/buspulse/buspulse/pkg/fleet"
	"github.com/buspulse/buspulse/pkg/geomath"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/rs/zerolog/log"
)

const activeTripCacheKeyFormat = "activetrip/%s"

type activeTrip struct {
	Trip *fleet.Trip

	LastPoint *fleet.TripPoint
	SpeedSum  float64
}

// TripAggregator owns the trip lifecycle per vehicle: explicit start/stop
// commands plus incremental distance and speed aggregation on each accepted
// position. At most one trip is in progress per vehicle at any time.
type TripAggregator struct {
	store Store
	live  *LiveStore

	// Optional Redis mirror of the active trip per vehicle
	cache *cache.Cache[*fleet.Trip]

	mutex  sync.Mutex
	active map[string]*activeTrip
}

func NewTripAggregator(store Store, live *LiveStore) *TripAggregator {
	return &TripAggregator{
		store:  store,
		live:   live,
		active: map[string]*activeTrip{},
	}
}

func (a *TripAggregator) WithCache(tripCache *cache.Cache[*fleet.Trip]) *TripAggregator {
	a.cache = tripCache
	return a
}

// Start begins a new trip for the vehicle. Fails with ErrTripConflict when a
// trip is already in progress. The start position is seeded from the live
// state when one exists.
func (a *TripAggregator) Start(ctx context.Context, vehicleID string) (*fleet.Trip, error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.active[vehicleID] != nil {
		return nil, ErrTripConflict
	}

	// Another process may own an in-progress trip for this vehicle
	if a.store != nil {
		existing, err := a.store.GetActiveTrip(ctx, vehicleID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			a.adoptTrip(ctx, existing)
			return nil, ErrTripConflict
		}
	}

	now := time.Now()
	trip := &fleet.Trip{
		PrimaryIdentifier: fmt.Sprintf(fleet.TripIDFormat, vehicleID, now.UTC().Format("20060102150405")),
		VehicleID:         vehicleID,

		Status:    fleet.TripStatusInProgress,
		StartTime: now,

		CreationDateTime: now,
	}

	if liveState, ok := a.live.Get(vehicleID); ok {
		latitude := liveState.Position.Latitude
		longitude := liveState.Position.Longitude
		trip.StartLatitude = &latitude
		trip.StartLongitude = &longitude
	}

	if err := a.persist(ctx, trip); err != nil {
		return nil, err
	}

	a.active[vehicleID] = &activeTrip{Trip: trip}

	tripCopy := *trip
	return &tripCopy, nil
}

// Append records an accepted position against the vehicle's active trip. A
// vehicle with no trip in progress is a no-op. Returns the appended point.
func (a *TripAggregator) Append(ctx context.Context, position fleet.Position) (*fleet.TripPoint, error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	state := a.loadActive(ctx, position.VehicleID)
	if state == nil {
		return nil, nil
	}

	trip := state.Trip
	if a.finalisedElsewhere(ctx, trip) {
		return nil, nil
	}

	point := &fleet.TripPoint{
		TripID:   trip.PrimaryIdentifier,
		Sequence: trip.PointCount + 1,

		Latitude:  position.Latitude,
		Longitude: position.Longitude,
		SpeedKMH:  position.SpeedKMH,

		Timestamp: position.ObservedAt,
	}

	if state.LastPoint != nil {
		trip.TotalDistanceKM += geomath.Distance(
			geomath.Coordinates{Latitude: state.LastPoint.Latitude, Longitude: state.LastPoint.Longitude},
			position.Coordinates(),
		)
	}

	state.SpeedSum += position.SpeedKMH
	trip.PointCount = point.Sequence
	// Running mean of per-point speeds, not distance over elapsed time
	trip.AverageSpeedKMH = state.SpeedSum / float64(trip.PointCount)

	state.LastPoint = point

	if a.store != nil {
		if err := a.store.AppendTripPoint(ctx, *point); err != nil {
			log.Error().Err(err).Str("trip", trip.PrimaryIdentifier).Msg("Failed to append trip point")
		}
	}
	if err := a.persist(ctx, trip); err != nil {
		log.Error().Err(err).Str("trip", trip.PrimaryIdentifier).Msg("Failed to persist trip aggregates")
	}

	pointCopy := *point
	return &pointCopy, nil
}

// Stop completes the vehicle's active trip, freezing its aggregates. Fails
// with ErrNoActiveTrip when nothing is in progress.
func (a *TripAggregator) Stop(ctx context.Context, vehicleID string) (*fleet.Trip, error) {
	return a.finalise(ctx, vehicleID, fleet.TripStatusCompleted)
}

// Cancel is the administrative override; the trip accepts no further points.
func (a *TripAggregator) Cancel(ctx context.Context, vehicleID string) (*fleet.Trip, error) {
	return a.finalise(ctx, vehicleID, fleet.TripStatusCancelled)
}

func (a *TripAggregator) finalise(ctx context.Context, vehicleID string, status fleet.TripStatus) (*fleet.Trip, error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	state := a.loadActive(ctx, vehicleID)
	if state == nil {
		return nil, ErrNoActiveTrip
	}

	trip := state.Trip
	if a.finalisedElsewhere(ctx, trip) {
		return nil, ErrNoActiveTrip
	}

	trip.Status = status

	now := time.Now()
	trip.EndTime = &now

	if liveState, ok := a.live.Get(vehicleID); ok {
		latitude := liveState.Position.Latitude
		longitude := liveState.Position.Longitude
		trip.EndLatitude = &latitude
		trip.EndLongitude = &longitude
	}

	if err := a.persist(ctx, trip); err != nil {
		return nil, err
	}

	delete(a.active, vehicleID)

	if a.cache != nil {
		a.cache.Delete(ctx, fmt.Sprintf(activeTripCacheKeyFormat, vehicleID))
	}

	tripCopy := *trip
	return &tripCopy, nil
}

// loadActive returns the vehicle's in-progress trip, adopting one started by
// another process when it only exists in the record store. Callers hold the
// mutex.
func (a *TripAggregator) loadActive(ctx context.Context, vehicleID string) *activeTrip {
	if state := a.active[vehicleID]; state != nil {
		return state
	}

	if a.store == nil {
		return nil
	}

	existing, err := a.store.GetActiveTrip(ctx, vehicleID)
	if err != nil {
		log.Error().Err(err).Str("vehicle", vehicleID).Msg("Failed to look up active trip")
		return nil
	}
	if existing == nil {
		return nil
	}

	return a.adoptTrip(ctx, existing)
}

// adoptTrip resumes aggregation of a trip owned by another process. The last
// recorded point is reloaded so the next distance hop measures from it.
// Callers hold the mutex.
func (a *TripAggregator) adoptTrip(ctx context.Context, trip *fleet.Trip) *activeTrip {
	state := &activeTrip{
		Trip: trip,
		// Resume the running mean from the persisted aggregates
		SpeedSum: trip.AverageSpeedKMH * float64(trip.PointCount),
	}

	if point, err := a.store.GetLatestTripPoint(ctx, trip.PrimaryIdentifier); err != nil {
		log.Error().Err(err).Str("trip", trip.PrimaryIdentifier).Msg("Failed to load last trip point")
	} else if point != nil {
		state.LastPoint = point
	}

	a.active[trip.VehicleID] = state

	return state
}

// finalisedElsewhere reports whether another process has already ended the
// trip, discarding the stale in-memory state when it has. Completed trips
// accept no further mutation. Callers hold the mutex.
func (a *TripAggregator) finalisedElsewhere(ctx context.Context, trip *fleet.Trip) bool {
	if a.store == nil {
		return false
	}

	stored, err := a.store.GetTrip(ctx, trip.PrimaryIdentifier)
	if err != nil {
		log.Error().Err(err).Str("trip", trip.PrimaryIdentifier).Msg("Failed to check stored trip status")
		return false
	}
	if stored == nil || stored.Status == fleet.TripStatusInProgress {
		return false
	}

	delete(a.active, trip.VehicleID)
	if a.cache != nil {
		a.cache.Delete(ctx, fmt.Sprintf(activeTripCacheKeyFormat, trip.VehicleID))
	}

	return true
}

// Active returns a copy of the vehicle's in-progress trip.
func (a *TripAggregator) Active(vehicleID string) (*fleet.Trip, bool) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	state := a.active[vehicleID]
	if state == nil {
		return nil, false
	}

	tripCopy := *state.Trip
	return &tripCopy, true
}

func (a *TripAggregator) persist(ctx context.Context, trip *fleet.Trip) error {
	if a.store != nil {
		if err := a.store.PutTrip(ctx, trip); err != nil {
			return err
		}
	}

	if a.cache != nil && trip.Status == fleet.TripStatusInProgress {
		err := a.cache.Set(ctx, fmt.Sprintf(activeTripCacheKeyFormat, trip.VehicleID), trip)
		if err != nil {
			log.Error().Err(err).Str("trip", trip.PrimaryIdentifier).Msg("Failed to mirror active trip")
		}
	}

	return nil
}
