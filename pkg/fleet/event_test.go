package fleet

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEventNotificationDataGeofenceEntry(t *testing.T) {
	event := Event{
		Type:      EventTypeGeofenceEntry,
		Timestamp: time.Now(),
		Body: map[string]interface{}{
			"VehicleID":    "BUS:TEST:1",
			"GeofenceID":   "GEOFENCE:TEST:SCHOOL",
			"GeofenceName": "Test School",
			"GeofenceKind": "school",
		},
	}

	data := event.GetNotificationData()
	if data.Title != "Bus arriving" {
		t.Fatalf("unexpected title %q", data.Title)
	}
	if data.Message != "Bus BUS:TEST:1 has entered Test School." {
		t.Fatalf("unexpected message %q", data.Message)
	}
}

func TestEventNotificationDataSurvivesQueueRoundTrip(t *testing.T) {
	event := Event{
		Type:      EventTypeExcessiveSpeed,
		Timestamp: time.Now(),
		Body: map[string]interface{}{
			"VehicleID": "BUS:TEST:1",
			"SpeedKMH":  95.0,
		},
	}

	encoded, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded Event
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	data := decoded.GetNotificationData()
	if data.Title != "Speed alert" {
		t.Fatalf("unexpected title %q", data.Title)
	}
	if data.Message != "Bus BUS:TEST:1 was recorded at 95 km/h." {
		t.Fatalf("unexpected message %q", data.Message)
	}
}

func TestEventNotificationDataUnknownBody(t *testing.T) {
	event := Event{Type: EventTypeTripStarted, Body: "not a map"}

	data := event.GetNotificationData()
	if data.Title != "" || data.Message != "" {
		t.Fatal("expected empty notification data for malformed body")
	}
}
