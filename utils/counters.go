package utils

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"sendloop/models"
)

// CounterEvent is the closed set of engagement events that map to campaign
// counter columns. Keeping the mapping a switch keeps the counter set
// statically verifiable.
type CounterEvent string

const (
	CounterEventOpen        CounterEvent = "open"
	CounterEventClick       CounterEvent = "click"
	CounterEventReply       CounterEvent = "reply"
	CounterEventBounce      CounterEvent = "bounce"
	CounterEventUnsubscribe CounterEvent = "unsubscribe"
)

func counterColumn(event CounterEvent) (string, bool) {
	switch event {
	case CounterEventOpen:
		return "open_count", true
	case CounterEventClick:
		return "click_count", true
	case CounterEventReply:
		return "reply_count", true
	case CounterEventBounce:
		return "bounce_count", true
	case CounterEventUnsubscribe:
		return "unsubscribe_count", true
	default:
		return "", false
	}
}

// IncrementCampaignCounter bumps the denormalized campaign counter for the
// given engagement event.
func IncrementCampaignCounter(db *gorm.DB, campaignID uint, event CounterEvent) error {
	column, ok := counterColumn(event)
	if !ok {
		return fmt.Errorf("unknown counter event %q", event)
	}
	return db.Model(&models.Campaign{}).
		Where("id = ?", campaignID).
		Update(column, gorm.Expr(column+" + ?", 1)).Error
}

// IncrementEmailsSent bumps the owning user's lifetime send counter.
// Fire-and-forget: failures are logged, never propagated.
func IncrementEmailsSent(db *gorm.DB, userID uint, logger *logrus.Logger) {
	err := db.Model(&models.User{}).
		Where("id = ?", userID).
		Update("emails_sent_total", gorm.Expr("emails_sent_total + ?", 1)).Error
	if err != nil {
		logger.WithError(err).WithField("user_id", userID).Warn("failed to increment usage counter")
	}
}
