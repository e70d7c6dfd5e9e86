package models

import (
	"time"

	"gorm.io/gorm"
)

// Campaign lifecycle statuses. Transitions are one-directional except
// paused<->active; completed is terminal.
const (
	CampaignStatusDraft     = "draft"
	CampaignStatusScheduled = "scheduled"
	CampaignStatusActive    = "active"
	CampaignStatusPaused    = "paused"
	CampaignStatusCompleted = "completed"
)

// Campaign represents an outreach campaign
type Campaign struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	Name   string `gorm:"not null" json:"name"`
	Status string `gorm:"default:'draft';index" json:"status"` // draft, scheduled, active, paused, completed

	// ========= Schedule Settings =========
	Timezone        string   `gorm:"default:'UTC'" json:"timezone"`               // IANA name
	SendDays        []string `gorm:"type:jsonb;serializer:json" json:"send_days"` // Mon..Sun, empty = every day
	WindowStart     string   `gorm:"default:'09:00'" json:"window_start"`         // HH:MM local
	WindowEnd       string   `gorm:"default:'17:00'" json:"window_end"`           // HH:MM local
	IntervalMinutes int      `gorm:"default:30" json:"interval_minutes"`
	MaxEmailsPerDay int      `gorm:"default:100" json:"max_emails_per_day"`
	SendingPriority int      `gorm:"default:50" json:"sending_priority"` // follow-up share target, 0-100

	// Scheduling timestamps
	ScheduledAt *time.Time `json:"scheduled_at"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`

	// ========= Tracking Settings =========
	TrackOpens      bool   `gorm:"default:true" json:"track_opens"`
	TrackClicks     bool   `gorm:"default:true" json:"track_clicks"`
	UnsubscribeLink bool   `gorm:"default:true" json:"unsubscribe_link"`
	UnsubscribeText string `json:"unsubscribe_text"`
	PlainText       bool   `gorm:"default:false" json:"plain_text"`

	// Statistics (denormalized for performance)
	SentCount        int `gorm:"default:0" json:"sent_count"`
	OpenCount        int `gorm:"default:0" json:"open_count"`
	ClickCount       int `gorm:"default:0" json:"click_count"`
	ReplyCount       int `gorm:"default:0" json:"reply_count"`
	BounceCount      int `gorm:"default:0" json:"bounce_count"`
	UnsubscribeCount int `gorm:"default:0" json:"unsubscribe_count"`

	// Relations
	Runtime *CampaignRuntime `gorm:"foreignKey:CampaignID" json:"runtime,omitempty"`
	Steps   []SequenceStep   `gorm:"foreignKey:CampaignID" json:"steps,omitempty"`
	Leads   []CampaignLead   `gorm:"foreignKey:CampaignID" json:"leads,omitempty"`
	Senders []CampaignSender `gorm:"foreignKey:CampaignID" json:"senders,omitempty"`
}

// CampaignRuntime holds the mutable scheduling state for one campaign.
// NextRunAt only ever moves forward; LockedAt is the campaign lease.
type CampaignRuntime struct {
	gorm.Model
	CampaignID uint       `gorm:"not null;uniqueIndex" json:"campaign_id"`
	NextRunAt  time.Time  `gorm:"not null;index" json:"next_run_at"`
	DayKey     string     `json:"day_key"` // local calendar day the counters apply to, YYYY-MM-DD
	SentToday  int        `gorm:"default:0" json:"sent_today"`
	LockedAt   *time.Time `json:"locked_at"`
}

// CampaignSender joins campaigns to sender accounts
type CampaignSender struct {
	gorm.Model
	CampaignID uint `gorm:"not null;index" json:"campaign_id"`
	SenderID   uint `gorm:"not null;index" json:"sender_id"`
	Weight     int  `gorm:"default:1" json:"weight"` // selection order only
}

// CampaignTriggerLog is an append-only audit entry per tick-per-campaign.
// Written by the scheduler, never read by control flow.
type CampaignTriggerLog struct {
	gorm.Model
	CampaignID uint `gorm:"not null;index" json:"campaign_id"`

	EmailsQueued int                   `gorm:"default:0" json:"emails_queued"`
	SenderDetail []SenderTriggerDetail `gorm:"type:jsonb;serializer:json" json:"sender_detail"`
	Activity     string                `gorm:"type:text" json:"activity"`
	DurationMs   int64                 `json:"duration_ms"`
}

// SenderTriggerDetail is the per-sender breakdown inside a trigger log entry
type SenderTriggerDetail struct {
	SenderID   uint   `json:"sender_id"`
	Queued     int    `json:"queued"`
	SkipReason string `json:"skip_reason,omitempty"`
}
