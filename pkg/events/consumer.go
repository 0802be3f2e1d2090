package events

import (
	"context"
	"encoding/json"

	"github.com/adjust/rmq/v5"
	"github.com/buspulse/buspulse/pkg/database"
	"github.com/buspulse/buspulse/pkg/fleet"
	"github.com/buspulse/buspulse/pkg/redis_client"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
)

// EventsBatchConsumer turns engine events into per-user notifications and
// queues them for the notify dispatcher.
type EventsBatchConsumer struct {
	notifyQueue rmq.Queue
}

func NewEventsBatchConsumer() *EventsBatchConsumer {
	notifyQueue, err := redis_client.QueueConnection.OpenQueue("notify-queue")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open notify queue")
	}

	return &EventsBatchConsumer{notifyQueue: notifyQueue}
}

func (c *EventsBatchConsumer) Consume(batch rmq.Deliveries) {
	payloads := batch.Payloads()

	for _, payload := range payloads {
		var event *fleet.Event
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			log.Error().Err(err).Msg("Failed to decode event")
			continue
		}

		c.handleEvent(event)
	}

	if ackErrors := batch.Ack(); len(ackErrors) > 0 {
		for _, err := range ackErrors {
			log.Fatal().Err(err).Msg("Failed to consume event")
		}
	}
}

func (c *EventsBatchConsumer) handleEvent(event *fleet.Event) {
	notificationData := event.GetNotificationData()
	if notificationData.Title == "" {
		return
	}

	for _, userID := range eventMatchedUsers(event) {
		notification := fleet.Notification{
			TargetUser: userID,
			Type:       fleet.NotificationTypePush,

			Title:   notificationData.Title,
			Message: notificationData.Message,
		}

		notificationBytes, err := json.Marshal(notification)
		if err != nil {
			log.Error().Err(err).Msg("Failed to encode notification")
			continue
		}

		c.notifyQueue.PublishBytes(notificationBytes)
	}
}

// eventMatchedUsers resolves the observers assigned to the vehicle the
// event concerns.
func eventMatchedUsers(event *fleet.Event) []string {
	eventBody, ok := event.Body.(map[string]interface{})
	if !ok {
		return nil
	}

	vehicleID, ok := eventBody["VehicleID"].(string)
	if !ok || vehicleID == "" {
		return nil
	}

	vehiclesCollection := database.GetCollection("vehicles")

	var vehicle *fleet.Vehicle
	vehiclesCollection.FindOne(context.Background(), bson.M{
		"primaryidentifier": vehicleID,
	}).Decode(&vehicle)

	if vehicle == nil {
		return nil
	}

	return vehicle.AssignedObservers
}
