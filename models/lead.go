package models

import (
	"time"

	"gorm.io/gorm"
)

// CampaignLead statuses. A lead that is stopped or not pending is never
// selected by the scheduler.
const (
	LeadStatusPending = "pending"
	LeadStatusSent    = "sent"
	LeadStatusBounced = "bounced"
)

// Lead represents a single contact
type Lead struct {
	gorm.Model
	UserID uint `gorm:"index" json:"user_id"`

	Email     string `gorm:"not null;index" json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company"`
	Position  string `json:"position"`
	Phone     string `json:"phone"`
	Website   string `json:"website"`

	IsBounced      bool `gorm:"default:false" json:"is_bounced"`
	IsUnsubscribed bool `gorm:"default:false" json:"is_unsubscribed"`
	IsDoNotContact bool `gorm:"default:false" json:"is_do_not_contact"`
}

// CampaignLead joins a campaign to a lead and carries the lead's sequence
// progress within that campaign. CurrentStep 0 means not started yet.
type CampaignLead struct {
	gorm.Model
	CampaignID uint `gorm:"not null;index;uniqueIndex:idx_campaign_lead" json:"campaign_id"`
	LeadID     uint `gorm:"not null;index;uniqueIndex:idx_campaign_lead" json:"lead_id"`

	Status      string `gorm:"default:'pending';index" json:"status"` // pending, sent, bounced
	CurrentStep int    `gorm:"default:0" json:"current_step"`

	IsStopped  bool   `gorm:"default:false" json:"is_stopped"`
	StopReason string `json:"stop_reason"`

	NextSendAt *time.Time `gorm:"index" json:"next_send_at"` // earliest time the next step may fire
	LastSentAt *time.Time `json:"last_sent_at"`

	// Relations
	Lead Lead `json:"lead,omitempty"`
}
