package scheduler

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"sendloop/models"
)

// Lease TTLs. A lease older than its TTL is considered stale and may be
// reclaimed, so a crashed holder cannot wedge a campaign or sender forever.
const (
	CampaignLockTTL = 10 * time.Minute
	SenderLockTTL   = 2 * time.Minute
)

// LockManager implements short-lived mutual-exclusion leases on top of the
// runtime rows. Acquisition is a single conditional UPDATE; the lock is held
// iff exactly one row was affected. Unlock clears the lease unconditionally;
// staleness-based reclamation is the real safety net.
type LockManager struct {
	DB *gorm.DB
}

func NewLockManager(db *gorm.DB) *LockManager {
	return &LockManager{DB: db}
}

// LockCampaign attempts to acquire the campaign lease. Returns false without
// error when another holder owns a fresh lease.
func (lm *LockManager) LockCampaign(campaignID uint, now time.Time) (bool, error) {
	res := lm.DB.Model(&models.CampaignRuntime{}).
		Where("campaign_id = ? AND (locked_at IS NULL OR locked_at < ?)", campaignID, now.Add(-CampaignLockTTL)).
		Update("locked_at", now)
	if res.Error != nil {
		return false, fmt.Errorf("lock campaign %d: %w", campaignID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// UnlockCampaign releases the campaign lease regardless of holder.
func (lm *LockManager) UnlockCampaign(campaignID uint) error {
	err := lm.DB.Model(&models.CampaignRuntime{}).
		Where("campaign_id = ?", campaignID).
		Update("locked_at", nil).Error
	if err != nil {
		return fmt.Errorf("unlock campaign %d: %w", campaignID, err)
	}
	return nil
}

// LockSender attempts to acquire the per-day sender lease, creating the
// runtime row on first use for the day.
func (lm *LockManager) LockSender(senderID uint, dayKey string, now time.Time) (bool, error) {
	// Atomic upsert: two processes racing on the first use of a day must both
	// land on the same row and contend on the lease below, never error.
	runtime := models.SenderRuntime{SenderID: senderID, DayKey: dayKey}
	if err := lm.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&runtime).Error; err != nil {
		return false, fmt.Errorf("ensure sender runtime %d/%s: %w", senderID, dayKey, err)
	}

	res := lm.DB.Model(&models.SenderRuntime{}).
		Where("sender_id = ? AND day_key = ? AND (locked_at IS NULL OR locked_at < ?)", senderID, dayKey, now.Add(-SenderLockTTL)).
		Update("locked_at", now)
	if res.Error != nil {
		return false, fmt.Errorf("lock sender %d/%s: %w", senderID, dayKey, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// UnlockSender releases the sender lease regardless of holder.
func (lm *LockManager) UnlockSender(senderID uint, dayKey string) error {
	err := lm.DB.Model(&models.SenderRuntime{}).
		Where("sender_id = ? AND day_key = ?", senderID, dayKey).
		Update("locked_at", nil).Error
	if err != nil {
		return fmt.Errorf("unlock sender %d/%s: %w", senderID, dayKey, err)
	}
	return nil
}
