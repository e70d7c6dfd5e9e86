package controller

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"sendloop/models"
	"sendloop/scheduler"
	"sendloop/utils"
)

// CampaignController exposes the operator surface for campaign lifecycle and
// schedule settings. The scheduler itself has no HTTP surface.
type CampaignController struct {
	DB     *gorm.DB
	Logger *logrus.Logger
}

func NewCampaignController(db *gorm.DB, logger *logrus.Logger) *CampaignController {
	return &CampaignController{DB: db, Logger: logger}
}

type StartCampaignRequest struct {
	ScheduledAt *time.Time `json:"scheduled_at"`
}

type UpdateScheduleRequest struct {
	Timezone        string   `json:"timezone" validate:"required"`
	SendDays        []string `json:"send_days" validate:"dive,oneof=Mon Tue Wed Thu Fri Sat Sun"`
	WindowStart     string   `json:"window_start" validate:"required,datetime=15:04"`
	WindowEnd       string   `json:"window_end" validate:"required,datetime=15:04"`
	IntervalMinutes int      `json:"interval_minutes" validate:"required,min=1"`
	MaxEmailsPerDay int      `json:"max_emails_per_day" validate:"min=0"`
	SendingPriority int      `json:"sending_priority" validate:"min=0,max=100"`
}

// StartCampaign moves a draft campaign to scheduled and creates its runtime
// row. The scheduler picks it up on the first tick at or after next_run_at.
func (cc *CampaignController) StartCampaign(c *fiber.Ctx) error {
	var campaign models.Campaign
	if err := cc.DB.First(&campaign, utils.ParseUint(c.Params("id"))).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
	}

	if campaign.Status != models.CampaignStatusDraft {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Only draft campaigns can be started", nil)
	}

	var req StartCampaignRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
		}
	}

	// The schedule settings must be evaluable before the first tick runs.
	if _, err := scheduler.DayKeyInTZ(time.Now(), campaign.Timezone); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Campaign timezone is invalid", err)
	}
	if _, err := scheduler.IsWithinSchedule(time.Now(), campaign.Timezone, campaign.SendDays, campaign.WindowStart, campaign.WindowEnd); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Campaign send window is invalid", err)
	}

	firstRun := time.Now()
	if req.ScheduledAt != nil && req.ScheduledAt.After(firstRun) {
		firstRun = *req.ScheduledAt
	}

	runtime := models.CampaignRuntime{CampaignID: campaign.ID}
	if err := cc.DB.Where("campaign_id = ?", campaign.ID).FirstOrCreate(&runtime).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create campaign runtime", err)
	}
	if err := cc.DB.Model(&runtime).Update("next_run_at", firstRun).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to schedule campaign", err)
	}

	err := cc.DB.Model(&campaign).Updates(map[string]interface{}{
		"status":       models.CampaignStatusScheduled,
		"scheduled_at": firstRun,
	}).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update campaign status", err)
	}

	cc.Logger.WithField("campaign_id", campaign.ID).Info("campaign scheduled")
	return c.JSON(utils.SuccessResponse(fiber.Map{
		"status":      models.CampaignStatusScheduled,
		"next_run_at": firstRun,
	}))
}

// PauseCampaign suspends an active campaign.
func (cc *CampaignController) PauseCampaign(c *fiber.Ctx) error {
	var campaign models.Campaign
	if err := cc.DB.First(&campaign, utils.ParseUint(c.Params("id"))).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
	}

	if campaign.Status != models.CampaignStatusActive && campaign.Status != models.CampaignStatusScheduled {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Campaign is not running", nil)
	}

	if err := cc.DB.Model(&campaign).Update("status", models.CampaignStatusPaused).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to pause campaign", err)
	}

	cc.Logger.WithField("campaign_id", campaign.ID).Info("campaign paused")
	return c.JSON(utils.SuccessResponse(fiber.Map{"status": models.CampaignStatusPaused}))
}

// ResumeCampaign reactivates a paused campaign.
func (cc *CampaignController) ResumeCampaign(c *fiber.Ctx) error {
	var campaign models.Campaign
	if err := cc.DB.First(&campaign, utils.ParseUint(c.Params("id"))).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
	}

	if campaign.Status != models.CampaignStatusPaused {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Campaign is not paused", nil)
	}

	runtime := models.CampaignRuntime{CampaignID: campaign.ID, NextRunAt: time.Now()}
	if err := cc.DB.Where("campaign_id = ?", campaign.ID).FirstOrCreate(&runtime).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load campaign runtime", err)
	}

	if err := cc.DB.Model(&campaign).Update("status", models.CampaignStatusActive).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to resume campaign", err)
	}

	cc.Logger.WithField("campaign_id", campaign.ID).Info("campaign resumed")
	return c.JSON(utils.SuccessResponse(fiber.Map{"status": models.CampaignStatusActive}))
}

// GetCampaign returns the campaign with its runtime state and steps.
func (cc *CampaignController) GetCampaign(c *fiber.Ctx) error {
	var campaign models.Campaign
	err := cc.DB.
		Preload("Runtime").
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("step_number ASC") }).
		First(&campaign, utils.ParseUint(c.Params("id"))).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
	}
	return c.JSON(utils.SuccessResponse(campaign))
}

// UpdateSchedule replaces the campaign's schedule settings.
func (cc *CampaignController) UpdateSchedule(c *fiber.Ctx) error {
	var campaign models.Campaign
	if err := cc.DB.First(&campaign, utils.ParseUint(c.Params("id"))).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
	}
	if campaign.Status == models.CampaignStatusCompleted {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Completed campaigns cannot be rescheduled", nil)
	}

	var req UpdateScheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Unknown timezone", err)
	}

	err := cc.DB.Model(&campaign).
		Select("timezone", "send_days", "window_start", "window_end", "interval_minutes", "max_emails_per_day", "sending_priority").
		Updates(models.Campaign{
			Timezone:        req.Timezone,
			SendDays:        req.SendDays,
			WindowStart:     req.WindowStart,
			WindowEnd:       req.WindowEnd,
			IntervalMinutes: req.IntervalMinutes,
			MaxEmailsPerDay: req.MaxEmailsPerDay,
			SendingPriority: req.SendingPriority,
		}).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update schedule", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{"updated": true}))
}

// ListTriggerLogs returns the most recent tick audit entries for a campaign.
func (cc *CampaignController) ListTriggerLogs(c *fiber.Ctx) error {
	var logs []models.CampaignTriggerLog
	err := cc.DB.
		Where("campaign_id = ?", utils.ParseUint(c.Params("id"))).
		Order("created_at DESC").
		Limit(50).
		Find(&logs).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load trigger logs", err)
	}
	return c.JSON(utils.SuccessResponse(logs))
}
