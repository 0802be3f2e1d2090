package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/buspulse/buspulse/pkg/fleet"
)

func newTestPipeline(store *memStore) (*Pipeline, *memEventPublisher) {
	publisher := &memEventPublisher{}
	return NewPipeline(defaultConfig, store, publisher), publisher
}

func ingestAt(t *testing.T, pipeline *Pipeline, latitude float64, longitude float64, speed float64, observedAt time.Time) *IngestResult {
	t.Helper()

	result, err := pipeline.Ingest(context.Background(), fleet.Position{
		VehicleID:  "BUS:TEST:1",
		Latitude:   latitude,
		Longitude:  longitude,
		SpeedKMH:   speed,
		ObservedAt: observedAt,
	})
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	return result
}

func TestPipelineAcceptsAndAppliesReport(t *testing.T) {
	store := newMemStore()
	pipeline, _ := newTestPipeline(store)
	now := time.Now()

	result := ingestAt(t, pipeline, 10, 10, 30, now)
	if result.Outcome != IngestOutcomeAccepted {
		t.Fatalf("expected accepted, got %s (%s)", result.Outcome, result.Reason)
	}

	state, ok := pipeline.CurrentState("BUS:TEST:1")
	if !ok {
		t.Fatal("expected live state after ingest")
	}
	if state.Position.Latitude != 10 {
		t.Fatalf("unexpected latitude %f", state.Position.Latitude)
	}

	if store.positionCount("BUS:TEST:1") != 1 {
		t.Fatal("expected position to be archived")
	}
}

func TestPipelineRejectsInvalidReport(t *testing.T) {
	store := newMemStore()
	pipeline, _ := newTestPipeline(store)

	result, err := pipeline.Ingest(context.Background(), fleet.Position{
		VehicleID:  "BUS:TEST:1",
		Latitude:   95,
		Longitude:  10,
		ObservedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if result.Outcome != IngestOutcomeRejected {
		t.Fatalf("expected rejected, got %s", result.Outcome)
	}

	if _, ok := pipeline.CurrentState("BUS:TEST:1"); ok {
		t.Fatal("rejected report must not create live state")
	}
	if store.positionCount("BUS:TEST:1") != 0 {
		t.Fatal("rejected report must not be archived")
	}
}

func TestPipelineStaleReportArchivedButNotApplied(t *testing.T) {
	store := newMemStore()
	pipeline, _ := newTestPipeline(store)
	now := time.Now()

	ingestAt(t, pipeline, 10, 10, 30, now)

	result := ingestAt(t, pipeline, 20, 20, 30, now.Add(-time.Minute))
	if result.Outcome != IngestOutcomeStale {
		t.Fatalf("expected stale, got %s", result.Outcome)
	}

	state, _ := pipeline.CurrentState("BUS:TEST:1")
	if state.Position.Latitude != 10 {
		t.Fatal("stale report must not replace live state")
	}

	// Both reports are kept in the history archive
	if store.positionCount("BUS:TEST:1") != 2 {
		t.Fatalf("expected 2 archived positions, got %d", store.positionCount("BUS:TEST:1"))
	}
}

func TestPipelineDerivesBearing(t *testing.T) {
	pipeline, _ := newTestPipeline(newMemStore())
	now := time.Now()

	ingestAt(t, pipeline, 10, 10, 30, now)
	// Due north
	ingestAt(t, pipeline, 10.01, 10, 30, now.Add(10*time.Second))

	state, _ := pipeline.CurrentState("BUS:TEST:1")
	if state.Bearing > 1 && state.Bearing < 359 {
		t.Fatalf("expected northward bearing, got %f", state.Bearing)
	}
}

func TestPipelineGeofenceEventsAndNotification(t *testing.T) {
	store := newMemStore()
	store.geofences = []fleet.Geofence{testGeofence}

	pipeline, publisher := newTestPipeline(store)
	now := time.Now()

	// Outside, then inside
	ingestAt(t, pipeline, 10.1, 10, 30, now)
	result := ingestAt(t, pipeline, 10.001, 10, 30, now.Add(10*time.Second))

	if len(result.GeofenceEvents) != 1 || result.GeofenceEvents[0].EventType != fleet.GeofenceEventTypeEntry {
		t.Fatalf("expected one entry event, got %v", result.GeofenceEvents)
	}

	if len(store.geofenceEvents) != 1 {
		t.Fatalf("expected entry event to be persisted, got %d", len(store.geofenceEvents))
	}

	// School fences raise a notification event on entry
	entries := publisher.byType(fleet.EventTypeGeofenceEntry)
	if len(entries) != 1 {
		t.Fatalf("expected one geofence entry notification, got %d", len(entries))
	}

	state, _ := pipeline.CurrentState("BUS:TEST:1")
	if len(state.GeofenceMemberships) != 1 || state.GeofenceMemberships[0] != testGeofence.PrimaryIdentifier {
		t.Fatalf("expected membership in live state, got %v", state.GeofenceMemberships)
	}
}

func TestPipelineExcessiveSpeedEvent(t *testing.T) {
	pipeline, publisher := newTestPipeline(newMemStore())
	now := time.Now()

	// Over the alert threshold but under the rejection bound
	result := ingestAt(t, pipeline, 10, 10, 95, now)
	if result.Outcome != IngestOutcomeAccepted {
		t.Fatalf("expected accepted, got %s", result.Outcome)
	}

	alerts := publisher.byType(fleet.EventTypeExcessiveSpeed)
	if len(alerts) != 1 {
		t.Fatalf("expected one excessive speed event, got %d", len(alerts))
	}
}

func TestPipelineTripLifecycle(t *testing.T) {
	store := newMemStore()
	pipeline, publisher := newTestPipeline(store)
	ctx := context.Background()
	now := time.Now()

	ingestAt(t, pipeline, 10, 10, 30, now)

	trip, err := pipeline.StartTrip(ctx, "BUS:TEST:1")
	if err != nil {
		t.Fatalf("start trip failed: %v", err)
	}
	if trip.StartLatitude == nil || *trip.StartLatitude != 10 {
		t.Fatal("expected start position seeded from live state")
	}

	if len(publisher.byType(fleet.EventTypeTripStarted)) != 1 {
		t.Fatal("expected trip started event")
	}

	// Accepted positions are appended to the active trip
	ingestAt(t, pipeline, 10.01, 10, 30, now.Add(10*time.Second))

	state, _ := pipeline.CurrentState("BUS:TEST:1")
	if state.ActiveTripID != trip.PrimaryIdentifier {
		t.Fatalf("expected active trip id on live state, got %q", state.ActiveTripID)
	}

	if len(store.tripPoints) != 1 {
		t.Fatalf("expected 1 trip point, got %d", len(store.tripPoints))
	}

	stopped, err := pipeline.StopTrip(ctx, "BUS:TEST:1")
	if err != nil {
		t.Fatalf("stop trip failed: %v", err)
	}
	if stopped.Status != fleet.TripStatusCompleted {
		t.Fatalf("expected completed trip, got %s", stopped.Status)
	}

	if len(publisher.byType(fleet.EventTypeTripEnded)) != 1 {
		t.Fatal("expected trip ended event")
	}
}

func TestPipelineTripCommandsFromSecondProcess(t *testing.T) {
	store := newMemStore()
	engine, _ := newTestPipeline(store)
	commander, commanderPublisher := newTestPipeline(store)
	ctx := context.Background()
	now := time.Now()

	ingestAt(t, engine, 10, 10, 30, now)
	started, err := engine.StartTrip(ctx, "BUS:TEST:1")
	if err != nil {
		t.Fatalf("start trip failed: %v", err)
	}

	subscription := commander.Subscribe("BUS:TEST:1")
	defer subscription.Close()

	// Trip ended from a process that only shares the record store
	stopped, err := commander.StopTrip(ctx, "BUS:TEST:1")
	if err != nil {
		t.Fatalf("stop trip from second process failed: %v", err)
	}
	if stopped.PrimaryIdentifier != started.PrimaryIdentifier {
		t.Fatalf("expected stop against %s, got %s", started.PrimaryIdentifier, stopped.PrimaryIdentifier)
	}

	if len(commanderPublisher.byType(fleet.EventTypeTripEnded)) != 1 {
		t.Fatal("expected trip ended event from the commanding process")
	}

	select {
	case event := <-subscription.Events:
		if event.Kind != BroadcastEventTripUpdate {
			t.Fatalf("expected trip update broadcast, got %s", event.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("expected trip update broadcast on stop")
	}

	stored, _ := store.GetTrip(ctx, started.PrimaryIdentifier)
	if stored.Status != fleet.TripStatusCompleted {
		t.Fatalf("expected completed trip in store, got %s", stored.Status)
	}
}

func TestPipelineSubscriberReceivesIngestedUpdate(t *testing.T) {
	pipeline, _ := newTestPipeline(newMemStore())
	now := time.Now()

	subscription := pipeline.Subscribe("BUS:TEST:1")
	defer subscription.Close()

	ingestAt(t, pipeline, 10, 10, 30, now)

	select {
	case event := <-subscription.Events:
		if event.Kind != BroadcastEventLocationUpdate {
			t.Fatalf("expected location update, got %s", event.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("expected broadcast after ingest")
	}
}

func TestPipelineReconcileSeedsMemberships(t *testing.T) {
	store := newMemStore()
	store.geofences = []fleet.Geofence{testGeofence}
	store.geofenceEvents = []fleet.GeofenceEvent{
		{
			VehicleID:  "BUS:TEST:1",
			GeofenceID: testGeofence.PrimaryIdentifier,
			EventType:  fleet.GeofenceEventTypeEntry,
			Timestamp:  time.Now().Add(-time.Minute),
		},
	}

	pipeline, _ := newTestPipeline(store)
	if err := pipeline.Reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}

	// Still inside after restart, no fresh entry event
	result := ingestAt(t, pipeline, 10.001, 10, 30, time.Now())
	for _, event := range result.GeofenceEvents {
		if event.EventType == fleet.GeofenceEventTypeEntry {
			t.Fatal("reconciled membership must suppress replayed entry")
		}
	}
}
