package models

import "gorm.io/gorm"

// SequenceStep represents one ordered step (1..N) of a campaign's email
// sequence. Delay is the wait after the previous step, in units set by
// SEQUENCE_DELAY_UNIT (days in production, hours for shortened staging runs).
type SequenceStep struct {
	gorm.Model
	CampaignID uint `gorm:"not null;index" json:"campaign_id"`

	StepNumber int    `gorm:"not null" json:"step_number"`
	Delay      int    `gorm:"default:1" json:"delay"`
	Subject    string `gorm:"not null" json:"subject"`
	Body       string `gorm:"type:text" json:"body"`
	IsActive   bool   `gorm:"default:true" json:"is_active"`

	// Tracking
	SentCount int `gorm:"default:0" json:"sent_count"`
}
