package routes

import (
	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	controller "sendloop/controllers"
	"sendloop/middleware"
)

// SetupRoutes wires the HTTP surface: campaign control plus the public
// tracking endpoints referenced from sent emails.
func SetupRoutes(app *fiber.App, db *gorm.DB, rdb *redis.Client, logger *logrus.Logger) {
	campaignController := controller.NewCampaignController(db, logger)
	trackingController := controller.NewTrackingController(db, logger)

	// ========= Campaign control =========
	campaigns := app.Group("/campaigns", fiberlogger.New())
	campaigns.Get("/:id", campaignController.GetCampaign)
	campaigns.Post("/:id/start", campaignController.StartCampaign)
	campaigns.Post("/:id/pause", campaignController.PauseCampaign)
	campaigns.Post("/:id/resume", campaignController.ResumeCampaign)
	campaigns.Put("/:id/schedule", campaignController.UpdateSchedule)
	campaigns.Get("/:id/trigger-logs", campaignController.ListTriggerLogs)

	// ========= Public tracking =========
	track := app.Group("/track", middleware.TrackingRateLimiter(rdb))
	track.Get("/open/:messageID", trackingController.TrackOpen)
	track.Get("/click/:messageID", trackingController.TrackClick)

	app.Get("/unsubscribe/:messageID", middleware.TrackingRateLimiter(rdb), trackingController.Unsubscribe)
}
