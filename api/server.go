package api

import (
	"github.com/gofiber/contrib/fiberzerolog"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/pyneda/consentscan/db"
	"github.com/pyneda/consentscan/pkg/scan/queue"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	queueLocalKey = "queue"
	dbLocalKey    = "db"
)

// NewApp builds the HTTP facade over a job queue
func NewApp(jobQueue queue.JobQueue, conn *db.DatabaseConnection) *fiber.App {
	apiLogger := log.With().Str("type", "api").Logger()

	app := fiber.New(fiber.Config{
		ServerHeader:          "consentscan",
		AppName:               "consentscan API",
		DisableStartupMessage: true,
	})

	app.Use(fiberzerolog.New(fiberzerolog.Config{
		Logger: &apiLogger,
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("API Running")
	})

	if viper.GetBool("api.metrics.enabled") {
		path := viper.GetString("api.metrics.path")
		if path == "" {
			path = "/metrics"
		}
		app.Get(path, adaptor.HTTPHandler(promhttp.Handler()))
	}

	api := app.Group("/api/v1")
	api.Use(func(c *fiber.Ctx) error {
		c.Locals(queueLocalKey, jobQueue)
		c.Locals(dbLocalKey, conn)
		return c.Next()
	})

	api.Post("/scans", CreateScanHandler)
	api.Get("/scans", ListScansHandler)
	api.Get("/scans/:id", GetScanHandler)
	api.Delete("/scans/:id", CancelScanHandler)
	api.Get("/queue/stats", QueueStatsHandler)
	api.Get("/reports/:id", GetReportHandler)

	return app
}

func jobQueueFrom(c *fiber.Ctx) queue.JobQueue {
	q, _ := c.Locals(queueLocalKey).(queue.JobQueue)
	return q
}

func dbFrom(c *fiber.Ctx) *db.DatabaseConnection {
	conn, _ := c.Locals(dbLocalKey).(*db.DatabaseConnection)
	return conn
}
