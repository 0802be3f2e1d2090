package tracker

import (
	"errors"
	"testing"
	"time"

	"github.com/buspulse/buspulse/pkg/fleet"
)

func liveStateAt(vehicleID string, observedAt time.Time) *fleet.LiveState {
	return &fleet.LiveState{
		VehicleID: vehicleID,
		Position: fleet.Position{
			VehicleID:  vehicleID,
			Latitude:   10,
			Longitude:  10,
			ObservedAt: observedAt,
		},
		UpdatedAt: time.Now(),
	}
}

func TestLiveStoreLastWriteWins(t *testing.T) {
	store := NewLiveStore()
	base := time.Now()

	if err := store.Set(liveStateAt("BUS:TEST:1", base)); err != nil {
		t.Fatalf("first write failed: %v", err)
	}

	if err := store.Set(liveStateAt("BUS:TEST:1", base.Add(time.Second))); err != nil {
		t.Fatalf("newer write failed: %v", err)
	}

	state, ok := store.Get("BUS:TEST:1")
	if !ok {
		t.Fatal("expected live state to exist")
	}
	if !state.Position.ObservedAt.Equal(base.Add(time.Second)) {
		t.Fatalf("expected newest observation to be stored, got %s", state.Position.ObservedAt)
	}
}

func TestLiveStoreRejectsStaleWrite(t *testing.T) {
	store := NewLiveStore()
	base := time.Now()

	if err := store.Set(liveStateAt("BUS:TEST:1", base)); err != nil {
		t.Fatalf("first write failed: %v", err)
	}

	err := store.Set(liveStateAt("BUS:TEST:1", base.Add(-time.Minute)))

	var staleWrite *StaleWriteError
	if !errors.As(err, &staleWrite) {
		t.Fatalf("expected StaleWriteError, got %v", err)
	}
	if staleWrite.VehicleID != "BUS:TEST:1" {
		t.Fatalf("unexpected vehicle id %s", staleWrite.VehicleID)
	}

	state, _ := store.Get("BUS:TEST:1")
	if !state.Position.ObservedAt.Equal(base) {
		t.Fatal("stale write must not replace the stored state")
	}
}

func TestLiveStoreAcceptsEqualTimestamp(t *testing.T) {
	store := NewLiveStore()
	base := time.Now()

	if err := store.Set(liveStateAt("BUS:TEST:1", base)); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if err := store.Set(liveStateAt("BUS:TEST:1", base)); err != nil {
		t.Fatalf("equal timestamp write should be accepted, got %v", err)
	}
}

func TestLiveStoreIsolatesVehicles(t *testing.T) {
	store := NewLiveStore()
	base := time.Now()

	store.Set(liveStateAt("BUS:TEST:1", base))
	store.Set(liveStateAt("BUS:TEST:2", base.Add(-time.Hour)))

	if _, ok := store.Get("BUS:TEST:2"); !ok {
		t.Fatal("expected state for second vehicle")
	}

	ids := store.VehicleIDs()
	if len(ids) != 2 {
		t.Fatalf("expected 2 vehicles, got %d", len(ids))
	}
}

func TestLiveStoreGetUnknownVehicle(t *testing.T) {
	store := NewLiveStore()

	if _, ok := store.Get("BUS:TEST:MISSING"); ok {
		t.Fatal("expected no state for unknown vehicle")
	}
}
