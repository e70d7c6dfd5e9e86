package models

import (
	"time"

	"gorm.io/gorm"
)

// Sender represents an outbound mailbox and its sending credentials
type Sender struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	// Basic identification
	Name      string `gorm:"not null" json:"name"`
	FromEmail string `gorm:"not null" json:"from_email"`
	FromName  string `gorm:"not null" json:"from_name"`

	// Connection Type
	ProviderType string `gorm:"default:'smtp'" json:"provider_type"` // smtp, gmail, outlook

	// ========= SMTP Configuration =========
	SMTPHost     string `json:"smtp_host"`
	SMTPPort     int    `gorm:"default:587" json:"smtp_port"`
	SMTPUsername string `json:"smtp_username"`
	SMTPPassword string `json:"-"` // Encrypted in application layer
	Encryption   string `gorm:"default:'STARTTLS'" json:"encryption"`

	// ========= Status & Usage =========
	IsActive   bool    `gorm:"default:true" json:"is_active"`
	DailyLimit int     `gorm:"default:500" json:"daily_limit"`
	TotalSent  int     `gorm:"default:0" json:"total_sent"`
	LastError  *string `json:"last_error"`
}

// SenderRuntime tracks per-sender per-day sending state. One row per
// (sender, day key), created lazily on first use for a given day.
type SenderRuntime struct {
	gorm.Model
	SenderID uint   `gorm:"not null;uniqueIndex:idx_sender_day" json:"sender_id"`
	DayKey   string `gorm:"not null;uniqueIndex:idx_sender_day" json:"day_key"`

	SentToday  int        `gorm:"default:0" json:"sent_today"`
	LastSentAt *time.Time `json:"last_sent_at"`
	LockedAt   *time.Time `json:"locked_at"`
}
