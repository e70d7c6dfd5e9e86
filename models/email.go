package models

import (
	"time"

	"gorm.io/gorm"
)

// EmailSend statuses. Queued and sent/failed are set by the scheduler and
// delivery worker; the engagement states come from tracking.
const (
	EmailSendStatusQueued  = "queued"
	EmailSendStatusSent    = "sent"
	EmailSendStatusFailed  = "failed"
	EmailSendStatusBounced = "bounced"
	EmailSendStatusReplied = "replied"
	EmailSendStatusOpened  = "opened"
	EmailSendStatusClicked = "clicked"
)

// EmailSend is one attempted send. The unique (campaign_lead, step) index is
// the idempotency guard: at most one row may ever exist per pair.
type EmailSend struct {
	gorm.Model
	CampaignID     uint `gorm:"not null;index" json:"campaign_id"`
	CampaignLeadID uint `gorm:"not null;uniqueIndex:idx_lead_step" json:"campaign_lead_id"`
	StepNumber     int  `gorm:"not null;uniqueIndex:idx_lead_step" json:"step_number"`
	SenderID       uint `gorm:"not null;index" json:"sender_id"`
	UserID         uint `gorm:"not null;index" json:"user_id"`

	Status   string `gorm:"default:'queued';index" json:"status"`
	Attempts int    `gorm:"default:0" json:"attempts"`

	// Provider identifiers
	MessageID string `gorm:"index" json:"message_id"`
	ThreadID  string `json:"thread_id"`

	Subject      string  `json:"subject"`
	ErrorMessage *string `json:"error_message"`

	SentAt         *time.Time `json:"sent_at"`
	OpenedAt       *time.Time `json:"opened_at"`
	ClickedAt      *time.Time `json:"clicked_at"`
	RepliedAt      *time.Time `json:"replied_at"`
	BouncedAt      *time.Time `json:"bounced_at"`
	UnsubscribedAt *time.Time `json:"unsubscribed_at"`

	// Relations
	Campaign     Campaign     `json:"-"`
	CampaignLead CampaignLead `json:"-"`
	Sender       Sender       `json:"-"`
}
