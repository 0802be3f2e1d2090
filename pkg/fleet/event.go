package fleet

import (
	"fmt"
	"time"
)

type Event struct {
	Type      EventType
	Timestamp time.Time
	Body      interface{}
}

type EventType string

const (
	EventTypeTripStarted EventType = "TripStarted"
	EventTypeTripEnded   EventType = "TripEnded"

	EventTypeGeofenceEntry   = "GeofenceEntry"
	EventTypeGeofenceExit    = "GeofenceExit"
	EventTypeExcessiveSpeed  = "ExcessiveSpeed"
	EventTypeLocationUpdated = "LocationUpdated"
)

type EventNotificationData struct {
	Title   string
	Message string
}

// GetNotificationData maps an event to the title and message handed to the
// notification dispatcher. The body is a map as events arrive over the queue
// as JSON.
func (e *Event) GetNotificationData() EventNotificationData {
	eventNotificationData := EventNotificationData{}

	eventBody, ok := e.Body.(map[string]interface{})
	if !ok {
		return eventNotificationData
	}

	switch e.Type {
	case EventTypeTripStarted:
		eventNotificationData.Title = "Bus on the way"
		eventNotificationData.Message = fmt.Sprintf("Bus %s has started its trip.", eventBody["VehicleID"])
	case EventTypeTripEnded:
		eventNotificationData.Title = "Trip completed"

		distance := eventBody["TotalDistanceKM"]
		eventNotificationData.Message = fmt.Sprintf("Bus %s has completed its trip (%.1f km).", eventBody["VehicleID"], toFloat(distance))
	case EventTypeGeofenceEntry:
		eventNotificationData.Title = "Bus arriving"
		eventNotificationData.Message = fmt.Sprintf("Bus %s has entered %s.", eventBody["VehicleID"], eventBody["GeofenceName"])
	case EventTypeGeofenceExit:
		eventNotificationData.Title = "Bus departed"
		eventNotificationData.Message = fmt.Sprintf("Bus %s has left %s.", eventBody["VehicleID"], eventBody["GeofenceName"])
	case EventTypeExcessiveSpeed:
		eventNotificationData.Title = "Speed alert"
		eventNotificationData.Message = fmt.Sprintf("Bus %s was recorded at %.0f km/h.", eventBody["VehicleID"], toFloat(eventBody["SpeedKMH"]))
	}

	return eventNotificationData
}

func toFloat(value interface{}) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}
