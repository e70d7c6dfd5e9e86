package controller

import (
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"sendloop/models"
	"sendloop/utils"
)

// transparent 1x1 GIF served by the open pixel.
var trackingPixel = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

// TrackingController handles the public engagement endpoints embedded in sent
// emails. These routes must never fail visibly: a broken pixel or redirect in
// a recipient's inbox reflects on the sender, so errors degrade silently.
type TrackingController struct {
	DB     *gorm.DB
	Logger *logrus.Logger
}

func NewTrackingController(db *gorm.DB, logger *logrus.Logger) *TrackingController {
	return &TrackingController{DB: db, Logger: logger}
}

// TrackOpen records an open event and serves the pixel regardless of outcome.
func (tc *TrackingController) TrackOpen(c *fiber.Ctx) error {
	messageID := c.Params("messageID")

	var send models.EmailSend
	if err := tc.DB.Where("message_id = ?", messageID).First(&send).Error; err == nil {
		if send.OpenedAt == nil {
			now := time.Now()
			updates := map[string]interface{}{"opened_at": now}
			if send.Status == models.EmailSendStatusSent {
				updates["status"] = models.EmailSendStatusOpened
			}
			if err := tc.DB.Model(&send).Updates(updates).Error; err != nil {
				tc.Logger.WithError(err).WithField("message_id", messageID).Warn("failed to record open")
			} else if err := utils.IncrementCampaignCounter(tc.DB, send.CampaignID, utils.CounterEventOpen); err != nil {
				tc.Logger.WithError(err).WithField("campaign_id", send.CampaignID).Warn("failed to bump open counter")
			}
		}
	}

	c.Set("Content-Type", "image/gif")
	c.Set("Cache-Control", "no-store, no-cache, must-revalidate")
	return c.Send(trackingPixel)
}

// TrackClick records a click event and redirects to the original URL.
func (tc *TrackingController) TrackClick(c *fiber.Ctx) error {
	messageID := c.Params("messageID")
	target := c.Query("url")

	parsed, err := url.Parse(target)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid redirect URL", nil)
	}

	var send models.EmailSend
	if err := tc.DB.Where("message_id = ?", messageID).First(&send).Error; err == nil {
		if send.ClickedAt == nil {
			now := time.Now()
			updates := map[string]interface{}{"clicked_at": now}
			if send.Status == models.EmailSendStatusSent || send.Status == models.EmailSendStatusOpened {
				updates["status"] = models.EmailSendStatusClicked
			}
			if err := tc.DB.Model(&send).Updates(updates).Error; err != nil {
				tc.Logger.WithError(err).WithField("message_id", messageID).Warn("failed to record click")
			} else if err := utils.IncrementCampaignCounter(tc.DB, send.CampaignID, utils.CounterEventClick); err != nil {
				tc.Logger.WithError(err).WithField("campaign_id", send.CampaignID).Warn("failed to bump click counter")
			}
		}
	}

	return c.Redirect(target, fiber.StatusFound)
}

// Unsubscribe stops the lead in the campaign and marks the contact so no
// other campaign picks them up either.
func (tc *TrackingController) Unsubscribe(c *fiber.Ctx) error {
	messageID := c.Params("messageID")

	var send models.EmailSend
	if err := tc.DB.Where("message_id = ?", messageID).First(&send).Error; err != nil {
		// Don't reveal whether the token was valid.
		return c.SendString("You have been unsubscribed.")
	}

	if send.UnsubscribedAt == nil {
		now := time.Now()
		if err := tc.DB.Model(&send).Update("unsubscribed_at", now).Error; err != nil {
			tc.Logger.WithError(err).WithField("message_id", messageID).Warn("failed to record unsubscribe")
		}

		err := tc.DB.Model(&models.CampaignLead{}).
			Where("id = ?", send.CampaignLeadID).
			Updates(map[string]interface{}{
				"is_stopped":  true,
				"stop_reason": "unsubscribed",
			}).Error
		if err != nil {
			tc.Logger.WithError(err).WithField("campaign_lead_id", send.CampaignLeadID).Warn("failed to stop unsubscribed lead")
		}

		var cl models.CampaignLead
		if err := tc.DB.First(&cl, send.CampaignLeadID).Error; err == nil {
			err = tc.DB.Model(&models.Lead{}).
				Where("id = ?", cl.LeadID).
				Update("is_unsubscribed", true).Error
			if err != nil {
				tc.Logger.WithError(err).WithField("lead_id", cl.LeadID).Warn("failed to flag unsubscribed contact")
			}
		}

		if err := utils.IncrementCampaignCounter(tc.DB, send.CampaignID, utils.CounterEventUnsubscribe); err != nil {
			tc.Logger.WithError(err).WithField("campaign_id", send.CampaignID).Warn("failed to bump unsubscribe counter")
		}
	}

	return c.SendString("You have been unsubscribed.")
}
