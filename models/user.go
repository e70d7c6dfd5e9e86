package models

import "gorm.io/gorm"

// User owns campaigns, senders and leads. Account management lives in a
// separate service; only the fields the scheduler touches are kept here.
type User struct {
	gorm.Model
	Email string `gorm:"not null;uniqueIndex" json:"email"`
	Name  string `json:"name"`

	PlanName        string `gorm:"default:'free'" json:"plan_name"`
	EmailsSentTotal int64  `gorm:"default:0" json:"emails_sent_total"`
}
