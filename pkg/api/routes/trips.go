package routes

import (
	"context"

	"github.com/buspulse/buspulse/pkg/database"
	"github.com/buspulse/buspulse/pkg/fleet"
	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TripsRouter(router fiber.Router) {
	router.Get("/:identifier", getTrip)
	router.Get("/:identifier/points", getTripPoints)
}

func getTrip(c *fiber.Ctx) error {
	identifier := c.Params("identifier")

	tripsCollection := database.GetCollection("trips")
	var trip *fleet.Trip
	tripsCollection.FindOne(context.Background(), bson.M{"primaryidentifier": identifier}).Decode(&trip)

	if trip == nil {
		c.SendStatus(fiber.StatusNotFound)
		return c.JSON(fiber.Map{
			"error": "Could not find Trip matching Trip Identifier",
		})
	}

	return c.JSON(trip)
}

func getTripPoints(c *fiber.Ctx) error {
	identifier := c.Params("identifier")

	tripPointsCollection := database.GetCollection("trip_points")

	opts := options.Find().SetSort(bson.D{{Key: "sequence", Value: 1}})
	cursor, err := tripPointsCollection.Find(context.Background(), bson.M{"tripid": identifier}, opts)
	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "Could not load trip points",
		})
	}

	points := []fleet.TripPoint{}
	if err := cursor.All(context.Background(), &points); err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "Could not load trip points",
		})
	}

	return c.JSON(points)
}
