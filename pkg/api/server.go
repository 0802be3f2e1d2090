package api

import (
	"github.com/buspulse/buspulse/pkg/api/routes"
	"github.com/gofiber/fiber/v2"
)

func SetupServer(listen string) error {
	if err := routes.GlobalSetup(); err != nil {
		return err
	}

	webApp := fiber.New()
	webApp.Use(NewLogger())

	group := webApp.Group("/core")

	group.Get("version", routes.APIVersion)

	routes.VehiclesRouter(group.Group("/vehicles"))
	routes.TripsRouter(group.Group("/trips"))
	routes.GeofencesRouter(group.Group("/geofences"))

	return webApp.Listen(listen)
}
