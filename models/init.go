package models

import "gorm.io/gorm"

// Migrate runs the schema migrations for all models
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Sender{},
		&SenderRuntime{},
		&Campaign{},
		&CampaignRuntime{},
		&CampaignSender{},
		&SequenceStep{},
		&Lead{},
		&CampaignLead{},
		&EmailSend{},
		&CampaignTriggerLog{},
	)
}
