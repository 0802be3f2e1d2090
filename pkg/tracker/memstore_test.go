package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/buspulse/buspulse/pkg/fleet"
)

// memStore is an in-memory Store for tests.
type memStore struct {
	mutex sync.Mutex

	positions      []fleet.Position
	geofenceEvents []fleet.GeofenceEvent
	tripPoints     []fleet.TripPoint
	trips          map[string]*fleet.Trip
	geofences      []fleet.Geofence
	vehicles       []fleet.Vehicle
}

func newMemStore() *memStore {
	return &memStore{
		trips: map[string]*fleet.Trip{},
	}
}

func (s *memStore) AppendPosition(ctx context.Context, position fleet.Position) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.positions = append(s.positions, position)
	return nil
}

func (s *memStore) AppendGeofenceEvent(ctx context.Context, event fleet.GeofenceEvent) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.geofenceEvents = append(s.geofenceEvents, event)
	return nil
}

func (s *memStore) AppendTripPoint(ctx context.Context, point fleet.TripPoint) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.tripPoints = append(s.tripPoints, point)
	return nil
}

func (s *memStore) PutTrip(ctx context.Context, trip *fleet.Trip) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	tripCopy := *trip
	s.trips[trip.PrimaryIdentifier] = &tripCopy
	return nil
}

func (s *memStore) GetTrip(ctx context.Context, id string) (*fleet.Trip, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	trip := s.trips[id]
	if trip == nil {
		return nil, nil
	}

	tripCopy := *trip
	return &tripCopy, nil
}

func (s *memStore) GetActiveTrip(ctx context.Context, vehicleID string) (*fleet.Trip, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, trip := range s.trips {
		if trip.VehicleID == vehicleID && trip.Status == fleet.TripStatusInProgress {
			tripCopy := *trip
			return &tripCopy, nil
		}
	}

	return nil, nil
}

func (s *memStore) GetLatestTripPoint(ctx context.Context, tripID string) (*fleet.TripPoint, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var latest *fleet.TripPoint
	for i, point := range s.tripPoints {
		if point.TripID == tripID && (latest == nil || point.Sequence > latest.Sequence) {
			latest = &s.tripPoints[i]
		}
	}

	if latest == nil {
		return nil, nil
	}

	pointCopy := *latest
	return &pointCopy, nil
}

func (s *memStore) GetActiveGeofences(ctx context.Context) ([]fleet.Geofence, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var active []fleet.Geofence
	for _, geofence := range s.geofences {
		if geofence.Active {
			active = append(active, geofence)
		}
	}

	return active, nil
}

func (s *memStore) GetLatestGeofenceEvents(ctx context.Context) ([]fleet.GeofenceEvent, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	latest := map[string]fleet.GeofenceEvent{}
	for _, event := range s.geofenceEvents {
		key := event.VehicleID + "/" + event.GeofenceID
		if existing, ok := latest[key]; !ok || event.Timestamp.After(existing.Timestamp) {
			latest[key] = event
		}
	}

	var events []fleet.GeofenceEvent
	for _, event := range latest {
		events = append(events, event)
	}

	return events, nil
}

func (s *memStore) GetAssignedVehicle(ctx context.Context, observerID string) (*fleet.Vehicle, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, vehicle := range s.vehicles {
		for _, assigned := range vehicle.AssignedObservers {
			if assigned == observerID {
				vehicleCopy := vehicle
				return &vehicleCopy, nil
			}
		}
	}

	return nil, nil
}

func (s *memStore) GetLocationHistory(ctx context.Context, vehicleID string, since time.Time) ([]fleet.Position, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var history []fleet.Position
	for _, position := range s.positions {
		if position.VehicleID == vehicleID && !position.ObservedAt.Before(since) {
			history = append(history, position)
		}
	}

	return history, nil
}

func (s *memStore) positionCount(vehicleID string) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	count := 0
	for _, position := range s.positions {
		if position.VehicleID == vehicleID {
			count++
		}
	}

	return count
}

// memEventPublisher collects published events for tests.
type memEventPublisher struct {
	mutex  sync.Mutex
	events []fleet.Event
}

func (p *memEventPublisher) Publish(event fleet.Event) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.events = append(p.events, event)
	return nil
}

func (p *memEventPublisher) byType(eventType fleet.EventType) []fleet.Event {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	var matched []fleet.Event
	for _, event := range p.events {
		if event.Type == eventType {
			matched = append(matched, event)
		}
	}

	return matched
}
