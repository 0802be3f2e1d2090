package tracker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/buspulse/buspulse/pkg/fleet"
	"github.com/buspulse/buspulse/pkg/geomath"
	"github.com/rs/zerolog/log"
)

type IngestOutcome string

const (
	IngestOutcomeAccepted IngestOutcome = "accepted"
	IngestOutcomeRejected IngestOutcome = "rejected"
	IngestOutcomeStale    IngestOutcome = "stale"
)

type IngestResult struct {
	Outcome IngestOutcome
	Reason  string

	LiveState      *fleet.LiveState
	GeofenceEvents []fleet.GeofenceEvent
}

// EventPublisher hands engine events to the notification dispatcher.
type EventPublisher interface {
	Publish(event fleet.Event) error
}

// Pipeline orchestrates ingestion: validate, update live state, evaluate
// geofences, append to the active trip, broadcast, persist history. Each
// vehicle's stream is serialised; different vehicles process in parallel.
type Pipeline struct {
	config Config

	validator   *Validator
	live        *LiveStore
	geofences   *GeofenceEvaluator
	trips       *TripAggregator
	broadcaster *Broadcaster
	store       Store
	events      EventPublisher

	vehicleMutexes sync.Map // vehicle id -> *sync.Mutex
}

func NewPipeline(config Config, store Store, events EventPublisher) *Pipeline {
	live := NewLiveStore()

	return &Pipeline{
		config: config,

		validator:   NewValidator(config),
		live:        live,
		geofences:   NewGeofenceEvaluator(config.HeartbeatInterval),
		trips:       NewTripAggregator(store, live),
		broadcaster: NewBroadcaster(live, config.SubscriberBufferSize),
		store:       store,
		events:      events,
	}
}

func (p *Pipeline) LiveStore() *LiveStore                 { return p.live }
func (p *Pipeline) Trips() *TripAggregator                { return p.trips }
func (p *Pipeline) Broadcaster() *Broadcaster             { return p.broadcaster }
func (p *Pipeline) GeofenceEvaluator() *GeofenceEvaluator { return p.geofences }

func (p *Pipeline) vehicleMutex(vehicleID string) *sync.Mutex {
	mutex, _ := p.vehicleMutexes.LoadOrStore(vehicleID, &sync.Mutex{})
	return mutex.(*sync.Mutex)
}

// Reconcile seeds geofence membership state from the most recent persisted
// events so a restart does not re-fire spurious entries.
func (p *Pipeline) Reconcile(ctx context.Context) error {
	if p.store == nil {
		return nil
	}

	events, err := p.store.GetLatestGeofenceEvents(ctx)
	if err != nil {
		return err
	}

	p.geofences.Reconcile(events)

	log.Info().Int("pairs", len(events)).Msg("Reconciled geofence memberships")

	return nil
}

// Ingest runs one position report through the pipeline. A rejected or stale
// report never affects any other vehicle and never halts ingestion.
func (p *Pipeline) Ingest(ctx context.Context, report fleet.Position) (*IngestResult, error) {
	now := time.Now()

	if err := p.validator.Validate(report, now); err != nil {
		var validationError *ValidationError
		if errors.As(err, &validationError) {
			log.Debug().
				Str("vehicle", report.VehicleID).
				Str("field", validationError.Field).
				Str("reason", validationError.Reason).
				Msg("Dropped invalid position")

			recordIngestAudit(report.VehicleID, string(IngestOutcomeRejected), validationError.Reason)

			return &IngestResult{Outcome: IngestOutcomeRejected, Reason: validationError.Error()}, nil
		}

		return nil, err
	}

	mutex := p.vehicleMutex(report.VehicleID)
	mutex.Lock()
	defer mutex.Unlock()

	state := &fleet.LiveState{
		VehicleID: report.VehicleID,
		Position:  report,
		UpdatedAt: now,
	}

	if previous, ok := p.live.Get(report.VehicleID); ok {
		state.Bearing = geomath.Bearing(previous.Position.Coordinates(), report.Coordinates())
		state.ActiveTripID = previous.ActiveTripID
	}
	if trip, ok := p.trips.Active(report.VehicleID); ok {
		state.ActiveTripID = trip.PrimaryIdentifier
	}

	if err := p.live.Set(state); err != nil {
		var staleWrite *StaleWriteError
		if errors.As(err, &staleWrite) {
			// Still archived for historical consistency; the current
			// pointer and all derived state are untouched
			p.archivePosition(ctx, report)

			recordIngestAudit(report.VehicleID, string(IngestOutcomeStale), "older than live state")

			return &IngestResult{Outcome: IngestOutcomeStale, Reason: staleWrite.Error()}, nil
		}

		return nil, err
	}

	geofenceEvents := p.evaluateGeofences(ctx, report, state)

	if point, err := p.trips.Append(ctx, report); err != nil {
		log.Error().Err(err).Str("vehicle", report.VehicleID).Msg("Failed to append trip point")
	} else if point != nil {
		state.ActiveTripID = point.TripID
	}

	p.broadcaster.PublishLocation(*state)
	p.publishGeofenceStatus(geofenceEvents)

	if report.SpeedKMH > p.config.ExcessiveSpeedKMH {
		p.publishEvent(fleet.Event{
			Type:      fleet.EventTypeExcessiveSpeed,
			Timestamp: report.ObservedAt,
			Body: map[string]interface{}{
				"VehicleID": report.VehicleID,
				"SpeedKMH":  report.SpeedKMH,
			},
		})
	}

	p.archivePosition(ctx, report)

	recordIngestAudit(report.VehicleID, string(IngestOutcomeAccepted), "")

	return &IngestResult{
		Outcome:        IngestOutcomeAccepted,
		LiveState:      state,
		GeofenceEvents: geofenceEvents,
	}, nil
}

func (p *Pipeline) evaluateGeofences(ctx context.Context, report fleet.Position, state *fleet.LiveState) []fleet.GeofenceEvent {
	if p.store == nil {
		return nil
	}

	geofences, err := p.store.GetActiveGeofences(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load active geofences")
		return nil
	}

	geofencesByID := map[string]fleet.Geofence{}
	for _, geofence := range geofences {
		geofencesByID[geofence.PrimaryIdentifier] = geofence
	}

	events := p.geofences.Evaluate(report, geofences)
	state.GeofenceMemberships = p.geofences.Memberships(report.VehicleID)

	for _, event := range events {
		if err := p.store.AppendGeofenceEvent(ctx, event); err != nil {
			log.Error().Err(err).Str("geofence", event.GeofenceID).Msg("Failed to persist geofence event")
		}

		geofence := geofencesByID[event.GeofenceID]

		// School and restricted fences notify on crossing
		notify := geofence.Kind == fleet.GeofenceKindSchool || geofence.Kind == fleet.GeofenceKindRestricted
		if !notify || event.EventType == fleet.GeofenceEventTypeInside {
			continue
		}

		eventType := fleet.EventType(fleet.EventTypeGeofenceEntry)
		if event.EventType == fleet.GeofenceEventTypeExit {
			eventType = fleet.EventTypeGeofenceExit
		}

		p.publishEvent(fleet.Event{
			Type:      eventType,
			Timestamp: event.Timestamp,
			Body: map[string]interface{}{
				"VehicleID":    event.VehicleID,
				"GeofenceID":   event.GeofenceID,
				"GeofenceName": geofence.Name,
				"GeofenceKind": string(geofence.Kind),
			},
		})
	}

	return events
}

func (p *Pipeline) publishGeofenceStatus(events []fleet.GeofenceEvent) {
	for _, event := range events {
		if event.EventType == fleet.GeofenceEventTypeInside {
			continue
		}

		p.broadcaster.Publish(BroadcastEvent{
			Kind:      BroadcastEventStatusUpdate,
			VehicleID: event.VehicleID,
			Timestamp: event.Timestamp,
			Data:      event,
		})
	}
}

func (p *Pipeline) archivePosition(ctx context.Context, report fleet.Position) {
	if p.store == nil {
		return
	}

	if err := p.store.AppendPosition(ctx, report); err != nil {
		log.Error().Err(err).Str("vehicle", report.VehicleID).Msg("Failed to archive position")
	}
}

func (p *Pipeline) publishEvent(event fleet.Event) {
	if p.events == nil {
		return
	}

	if err := p.events.Publish(event); err != nil {
		log.Error().Err(err).Str("type", string(event.Type)).Msg("Failed to publish event")
	}
}

// StartTrip begins tracking a trip for the vehicle.
func (p *Pipeline) StartTrip(ctx context.Context, vehicleID string) (*fleet.Trip, error) {
	mutex := p.vehicleMutex(vehicleID)
	mutex.Lock()
	defer mutex.Unlock()

	trip, err := p.trips.Start(ctx, vehicleID)
	if err != nil {
		return nil, err
	}

	p.publishTripLifecycle(fleet.EventTypeTripStarted, trip)

	return trip, nil
}

// StopTrip completes the vehicle's trip, freezing its aggregates.
func (p *Pipeline) StopTrip(ctx context.Context, vehicleID string) (*fleet.Trip, error) {
	mutex := p.vehicleMutex(vehicleID)
	mutex.Lock()
	defer mutex.Unlock()

	trip, err := p.trips.Stop(ctx, vehicleID)
	if err != nil {
		return nil, err
	}

	p.publishTripLifecycle(fleet.EventTypeTripEnded, trip)

	return trip, nil
}

// CancelTrip is the administrative override ending a trip without completing it.
func (p *Pipeline) CancelTrip(ctx context.Context, vehicleID string) (*fleet.Trip, error) {
	mutex := p.vehicleMutex(vehicleID)
	mutex.Lock()
	defer mutex.Unlock()

	trip, err := p.trips.Cancel(ctx, vehicleID)
	if err != nil {
		return nil, err
	}

	// Subscribers see the cancelled status but the dispatcher is not told
	p.broadcaster.Publish(BroadcastEvent{
		Kind:      BroadcastEventTripUpdate,
		VehicleID: trip.VehicleID,
		Timestamp: time.Now(),
		Data:      trip,
	})

	return trip, nil
}

func (p *Pipeline) publishTripLifecycle(eventType fleet.EventType, trip *fleet.Trip) {
	p.broadcaster.Publish(BroadcastEvent{
		Kind:      BroadcastEventTripUpdate,
		VehicleID: trip.VehicleID,
		Timestamp: time.Now(),
		Data:      trip,
	})

	p.publishEvent(fleet.Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Body: map[string]interface{}{
			"VehicleID":       trip.VehicleID,
			"TripID":          trip.PrimaryIdentifier,
			"TotalDistanceKM": trip.TotalDistanceKM,
		},
	})
}

// CurrentState returns the latest known snapshot for the vehicle.
func (p *Pipeline) CurrentState(vehicleID string) (fleet.LiveState, bool) {
	return p.live.Get(vehicleID)
}

// Subscribe attaches an observer to the vehicle's broadcast topic.
func (p *Pipeline) Subscribe(vehicleID string) *Subscription {
	return p.broadcaster.Subscribe(vehicleID)
}

// SubscribeObserver attaches an observer to their assigned vehicle's topic.
func (p *Pipeline) SubscribeObserver(ctx context.Context, observerID string) (*Subscription, error) {
	return p.broadcaster.SubscribeObserver(ctx, observerID, p.store)
}
