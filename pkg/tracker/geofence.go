package tracker

import (
	"fmt"
	"sync"
	"time"

	"github.com/buspulse/buspulse/pkg/fleet"
)

type membershipState struct {
	Inside          bool
	LastInsideEvent time.Time
}

// GeofenceEvaluator tracks containment per (vehicle, geofence) pair and turns
// position reports into entry/exit/inside transition events. Updates for a
// single pair are ordered by the pipeline's per-vehicle serialisation.
type GeofenceEvaluator struct {
	heartbeatInterval time.Duration

	mutex       sync.Mutex
	memberships map[string]*membershipState
}

func NewGeofenceEvaluator(heartbeatInterval time.Duration) *GeofenceEvaluator {
	return &GeofenceEvaluator{
		heartbeatInterval: heartbeatInterval,
		memberships:       map[string]*membershipState{},
	}
}

func membershipKey(vehicleID string, geofenceID string) string {
	return fmt.Sprintf("%s/%s", vehicleID, geofenceID)
}

// Evaluate runs the position against every active geofence and returns the
// resulting events. Entry fires exactly once per crossing; while inside, a
// heartbeat "inside" event is emitted at most once per heartbeat interval.
func (e *GeofenceEvaluator) Evaluate(position fleet.Position, geofences []fleet.Geofence) []fleet.GeofenceEvent {
	var events []fleet.GeofenceEvent

	e.mutex.Lock()
	defer e.mutex.Unlock()

	for _, geofence := range geofences {
		if !geofence.Active {
			continue
		}

		key := membershipKey(position.VehicleID, geofence.PrimaryIdentifier)
		state := e.memberships[key]
		if state == nil {
			state = &membershipState{}
			e.memberships[key] = state
		}

		insideNow := geofence.Contains(position.Coordinates())

		switch {
		case insideNow && !state.Inside:
			state.Inside = true
			state.LastInsideEvent = position.ObservedAt

			events = append(events, e.newEvent(position, geofence, fleet.GeofenceEventTypeEntry))
		case insideNow && state.Inside:
			// Rate limited heartbeat so the event log isn't flooded
			if position.ObservedAt.Sub(state.LastInsideEvent) >= e.heartbeatInterval {
				state.LastInsideEvent = position.ObservedAt

				events = append(events, e.newEvent(position, geofence, fleet.GeofenceEventTypeInside))
			}
		case !insideNow && state.Inside:
			state.Inside = false

			events = append(events, e.newEvent(position, geofence, fleet.GeofenceEventTypeExit))
		}
	}

	return events
}

func (e *GeofenceEvaluator) newEvent(position fleet.Position, geofence fleet.Geofence, eventType fleet.GeofenceEventType) fleet.GeofenceEvent {
	return fleet.GeofenceEvent{
		VehicleID:  position.VehicleID,
		GeofenceID: geofence.PrimaryIdentifier,
		EventType:  eventType,
		Latitude:   position.Latitude,
		Longitude:  position.Longitude,
		Timestamp:  position.ObservedAt,
	}
}

// Memberships returns the geofence identifiers the vehicle is currently inside.
func (e *GeofenceEvaluator) Memberships(vehicleID string) []string {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	var inside []string
	prefix := fmt.Sprintf("%s/", vehicleID)

	for key, state := range e.memberships {
		if state.Inside && len(key) > len(prefix) && key[:len(prefix)] == prefix {
			inside = append(inside, key[len(prefix):])
		}
	}

	return inside
}

// Reconcile seeds the pair state from the most recent persisted event so a
// process restart does not re-fire entry events for vehicles already inside.
func (e *GeofenceEvaluator) Reconcile(events []fleet.GeofenceEvent) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	for _, event := range events {
		key := membershipKey(event.VehicleID, event.GeofenceID)

		state := e.memberships[key]
		if state == nil {
			state = &membershipState{}
			e.memberships[key] = state
		}

		switch event.EventType {
		case fleet.GeofenceEventTypeEntry, fleet.GeofenceEventTypeInside:
			state.Inside = true
			state.LastInsideEvent = event.Timestamp
		case fleet.GeofenceEventTypeExit:
			state.Inside = false
		}
	}
}
