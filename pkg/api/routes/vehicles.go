package routes

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/buspulse/buspulse/pkg/database"
	"github.com/buspulse/buspulse/pkg/fleet"
	"github.com/buspulse/buspulse/pkg/geomath"
	"github.com/buspulse/buspulse/pkg/tracker"
	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson"
)

func VehiclesRouter(router fiber.Router) {
	router.Get("/:identifier", getVehicle)
	router.Post("/:identifier/position", postVehiclePosition)
	router.Get("/:identifier/state", getVehicleState)
	router.Get("/:identifier/history", getVehicleHistory)
	router.Get("/:identifier/eta", getVehicleETA)

	router.Post("/:identifier/trip/start", startVehicleTrip)
	router.Post("/:identifier/trip/stop", stopVehicleTrip)
	router.Post("/:identifier/trip/cancel", cancelVehicleTrip)
}

func getVehicle(c *fiber.Ctx) error {
	identifier := c.Params("identifier")

	vehiclesCollection := database.GetCollection("vehicles")
	var vehicle *fleet.Vehicle
	vehiclesCollection.FindOne(context.Background(), bson.M{"primaryidentifier": identifier}).Decode(&vehicle)

	if vehicle == nil {
		c.SendStatus(fiber.StatusNotFound)
		return c.JSON(fiber.Map{
			"error": "Could not find Vehicle matching Vehicle Identifier",
		})
	}

	return c.JSON(vehicle)
}

func postVehiclePosition(c *fiber.Ctx) error {
	identifier := c.Params("identifier")

	var report fleet.Position
	if err := c.BodyParser(&report); err != nil {
		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"error": "Could not parse position report",
		})
	}

	report.VehicleID = identifier
	if report.ObservedAt.IsZero() {
		report.ObservedAt = time.Now()
	}

	if !report.Coordinates().Valid() {
		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"error": "Coordinates out of range",
		})
	}

	reportBytes, _ := json.Marshal(report)
	if err := positionQueue.PublishBytes(reportBytes); err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "Could not queue position report",
		})
	}

	c.SendStatus(fiber.StatusAccepted)
	return c.JSON(fiber.Map{
		"status": "queued",
	})
}

func getVehicleState(c *fiber.Ctx) error {
	identifier := c.Params("identifier")

	state, err := liveStateCache.Get(context.Background(), tracker.LiveStateCacheKey(identifier))
	if err != nil || state == nil {
		c.SendStatus(fiber.StatusNotFound)
		return c.JSON(fiber.Map{
			"error": "No known position for Vehicle",
		})
	}

	return c.JSON(state)
}

func getVehicleHistory(c *fiber.Ctx) error {
	identifier := c.Params("identifier")

	hours, err := strconv.Atoi(c.Query("hours", "1"))
	if err != nil || hours < 1 || hours > 168 {
		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"error": "hours must be between 1 and 168",
		})
	}

	since := time.Now().Add(-time.Duration(hours) * time.Hour)

	store := tracker.NewMongoStore()
	positions, err := store.GetLocationHistory(context.Background(), identifier, since)
	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "Could not load location history",
		})
	}

	return c.JSON(positions)
}

func getVehicleETA(c *fiber.Ctx) error {
	identifier := c.Params("identifier")

	latitude, latErr := strconv.ParseFloat(c.Query("lat"), 64)
	longitude, lonErr := strconv.ParseFloat(c.Query("lon"), 64)
	if latErr != nil || lonErr != nil {
		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"error": "lat and lon are required",
		})
	}

	destination := geomath.Coordinates{Latitude: latitude, Longitude: longitude}
	if !destination.Valid() {
		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"error": "Coordinates out of range",
		})
	}

	state, err := liveStateCache.Get(context.Background(), tracker.LiveStateCacheKey(identifier))
	if err != nil || state == nil {
		c.SendStatus(fiber.StatusNotFound)
		return c.JSON(fiber.Map{
			"error": "No known position for Vehicle",
		})
	}

	distanceKM := geomath.Distance(state.Position.Coordinates(), destination)

	etaMinutes, moving := geomath.EstimateETAMinutes(state.Position.Coordinates(), destination, state.Position.SpeedKMH)
	if !moving {
		return c.JSON(fiber.Map{
			"distance_km": distanceKM,
			"moving":      false,
		})
	}

	return c.JSON(fiber.Map{
		"distance_km": distanceKM,
		"moving":      true,
		"eta_minutes": etaMinutes,
	})
}

func startVehicleTrip(c *fiber.Ctx) error {
	identifier := c.Params("identifier")

	trip, err := enginePipeline.StartTrip(context.Background(), identifier)
	if errors.Is(err, tracker.ErrTripConflict) {
		c.SendStatus(fiber.StatusConflict)
		return c.JSON(fiber.Map{
			"error": "Vehicle already has a trip in progress",
		})
	}
	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "Could not start trip",
		})
	}

	return c.JSON(trip)
}

func stopVehicleTrip(c *fiber.Ctx) error {
	return finaliseVehicleTrip(c, enginePipeline.StopTrip)
}

func cancelVehicleTrip(c *fiber.Ctx) error {
	return finaliseVehicleTrip(c, enginePipeline.CancelTrip)
}

func finaliseVehicleTrip(c *fiber.Ctx, finalise func(context.Context, string) (*fleet.Trip, error)) error {
	identifier := c.Params("identifier")

	trip, err := finalise(context.Background(), identifier)
	if errors.Is(err, tracker.ErrNoActiveTrip) {
		c.SendStatus(fiber.StatusConflict)
		return c.JSON(fiber.Map{
			"error": "Vehicle has no trip in progress",
		})
	}
	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "Could not end trip",
		})
	}

	return c.JSON(trip)
}
