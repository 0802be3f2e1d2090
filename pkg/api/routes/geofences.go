package routes

import (
	"context"

	"github.com/buspulse/buspulse/pkg/database"
	"github.com/buspulse/buspulse/pkg/fleet"
	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func GeofencesRouter(router fiber.Router) {
	router.Get("/", listGeofences)
	router.Get("/:identifier", getGeofence)
	router.Get("/:identifier/events", getGeofenceEvents)
}

func listGeofences(c *fiber.Ctx) error {
	geofencesCollection := database.GetCollection("geofences")

	cursor, err := geofencesCollection.Find(context.Background(), bson.M{"active": true})
	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "Could not load geofences",
		})
	}

	geofences := []fleet.Geofence{}
	if err := cursor.All(context.Background(), &geofences); err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "Could not load geofences",
		})
	}

	return c.JSON(geofences)
}

func getGeofence(c *fiber.Ctx) error {
	identifier := c.Params("identifier")

	geofencesCollection := database.GetCollection("geofences")
	var geofence *fleet.Geofence
	geofencesCollection.FindOne(context.Background(), bson.M{"primaryidentifier": identifier}).Decode(&geofence)

	if geofence == nil {
		c.SendStatus(fiber.StatusNotFound)
		return c.JSON(fiber.Map{
			"error": "Could not find Geofence matching Geofence Identifier",
		})
	}

	return c.JSON(geofence)
}

func getGeofenceEvents(c *fiber.Ctx) error {
	identifier := c.Params("identifier")

	eventsCollection := database.GetCollection("geofence_events")

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}).SetLimit(100)
	cursor, err := eventsCollection.Find(context.Background(), bson.M{"geofenceid": identifier}, opts)
	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "Could not load geofence events",
		})
	}

	events := []fleet.GeofenceEvent{}
	if err := cursor.All(context.Background(), &events); err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "Could not load geofence events",
		})
	}

	return c.JSON(events)
}
