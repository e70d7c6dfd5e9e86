package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"sendloop/models"
)

// Skip reasons recorded in trigger logs. All of these are expected, frequent
// outcomes; the next tick retries naturally.
const (
	SkipLocked     = "locked"
	SkipDailyLimit = "daily_limit"
	SkipMinGap     = "min_gap"
	SkipDuplicate  = "duplicate"
)

// Tolerance when enforcing the minimum inter-send gap, so a tick firing a few
// seconds early does not push a send to the next interval.
const sendGapJitter = 5 * time.Second

// DeliveryQueue is the durable queue the scheduler hands send jobs to.
type DeliveryQueue interface {
	Enqueue(ctx context.Context, emailSendID uint) error
}

// Scheduler is the periodic tick engine. A single invocation is idempotent
// and safe to run concurrently with itself; the lock manager serializes work
// at campaign and sender granularity.
type Scheduler struct {
	DB        *gorm.DB
	Queue     DeliveryQueue
	Locks     *LockManager
	Logger    *logrus.Logger
	Interval  time.Duration
	DelayUnit time.Duration // duration of one sequence-step delay unit
}

func New(db *gorm.DB, q DeliveryQueue, logger *logrus.Logger, interval, delayUnit time.Duration) *Scheduler {
	return &Scheduler{
		DB:        db,
		Queue:     q,
		Locks:     NewLockManager(db),
		Logger:    logger,
		Interval:  interval,
		DelayUnit: delayUnit,
	}
}

// Start runs the tick on a fixed wall-clock timer until ctx is canceled.
func (s *Scheduler) Start(ctx context.Context) {
	s.Logger.Info("campaign scheduler started")

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Logger.Info("campaign scheduler shutting down")
			return
		case <-ticker.C:
			s.RunOnce(ctx, time.Now())
		}
	}
}

// RunOnce processes every due campaign. A failure in one campaign never
// aborts the rest of the run.
func (s *Scheduler) RunOnce(ctx context.Context, now time.Time) {
	var due []models.Campaign
	err := s.DB.WithContext(ctx).
		Joins("JOIN campaign_runtimes ON campaign_runtimes.campaign_id = campaigns.id").
		Where("campaign_runtimes.next_run_at <= ?", now).
		Where("campaigns.status IN ?", []string{models.CampaignStatusActive, models.CampaignStatusScheduled}).
		Order("campaigns.created_at DESC").
		Find(&due).Error
	if err != nil {
		s.Logger.WithError(err).Error("failed to query due campaigns")
		sentry.CaptureException(err)
		return
	}

	for i := range due {
		if err := s.processCampaign(ctx, &due[i], now); err != nil {
			s.Logger.WithError(err).WithField("campaign_id", due[i].ID).Error("campaign tick failed")
			sentry.CaptureException(err)
		}
	}
}

// tickState accumulates one campaign-tick's outcome for the trigger log and
// the follow-up ratio decision.
type tickState struct {
	queued        int
	followupsSent int
	totalSent     int
	senderDetail  []models.SenderTriggerDetail
	activity      []string
}

func (t *tickState) logf(format string, args ...interface{}) {
	t.activity = append(t.activity, fmt.Sprintf(format, args...))
}

func (t *tickState) sender(id uint, queued int, reason string) {
	t.senderDetail = append(t.senderDetail, models.SenderTriggerDetail{
		SenderID:   id,
		Queued:     queued,
		SkipReason: reason,
	})
}

func (s *Scheduler) processCampaign(ctx context.Context, campaign *models.Campaign, now time.Time) error {
	started := time.Now()
	state := &tickState{}

	if campaign.Status == models.CampaignStatusScheduled {
		err := s.DB.WithContext(ctx).Model(campaign).Updates(map[string]interface{}{
			"status":     models.CampaignStatusActive,
			"started_at": now,
		}).Error
		if err != nil {
			return fmt.Errorf("activate campaign %d: %w", campaign.ID, err)
		}
		campaign.Status = models.CampaignStatusActive
		state.logf("campaign auto-started")
	}
	if campaign.Status != models.CampaignStatusActive {
		s.Logger.WithField("campaign_id", campaign.ID).Infof("skipping campaign in status %s", campaign.Status)
		return nil
	}

	acquired, err := s.Locks.LockCampaign(campaign.ID, now)
	if err != nil {
		return err
	}
	if !acquired {
		// Another tick is handling this campaign.
		s.Logger.WithField("campaign_id", campaign.ID).Info("campaign locked, skipping")
		return nil
	}
	defer func() {
		if err := s.Locks.UnlockCampaign(campaign.ID); err != nil {
			s.Logger.WithError(err).WithField("campaign_id", campaign.ID).Warn("failed to release campaign lock")
		}
	}()

	var runtime models.CampaignRuntime
	if err := s.DB.WithContext(ctx).Where("campaign_id = ?", campaign.ID).First(&runtime).Error; err != nil {
		return fmt.Errorf("load runtime for campaign %d: %w", campaign.ID, err)
	}

	dayKey, err := DayKeyInTZ(now, campaign.Timezone)
	if err != nil {
		return err
	}
	if runtime.DayKey != dayKey {
		err := s.DB.WithContext(ctx).Model(&runtime).Updates(map[string]interface{}{
			"day_key":    dayKey,
			"sent_today": 0,
		}).Error
		if err != nil {
			return fmt.Errorf("roll over day counters for campaign %d: %w", campaign.ID, err)
		}
		runtime.DayKey = dayKey
		runtime.SentToday = 0
		state.logf("daily counters reset for %s", dayKey)
	}

	// Crash-safety invariant: advance next_run_at before anything else. Even
	// if the rest of this tick dies, the campaign is not evaluated again
	// until the next interval and never twice for the same slot.
	next := nextRunAfter(runtime.NextRunAt, campaign.IntervalMinutes)
	if err := s.DB.WithContext(ctx).Model(&runtime).Update("next_run_at", next).Error; err != nil {
		return fmt.Errorf("advance next_run_at for campaign %d: %w", campaign.ID, err)
	}

	within, err := IsWithinSchedule(now, campaign.Timezone, campaign.SendDays, campaign.WindowStart, campaign.WindowEnd)
	if err != nil {
		return err
	}
	if !within {
		state.logf("outside send window %s-%s %s", campaign.WindowStart, campaign.WindowEnd, campaign.Timezone)
		s.writeTriggerLog(campaign.ID, state, started)
		return nil
	}

	// Re-read: a concurrent tick may have bumped the counter since the lock.
	if err := s.DB.WithContext(ctx).First(&runtime, runtime.ID).Error; err != nil {
		return fmt.Errorf("reload runtime for campaign %d: %w", campaign.ID, err)
	}
	if runtime.SentToday >= campaign.MaxEmailsPerDay {
		state.logf("campaign daily limit reached (%d/%d)", runtime.SentToday, campaign.MaxEmailsPerDay)
		s.writeTriggerLog(campaign.ID, state, started)
		return nil
	}

	var senders []models.Sender
	err = s.DB.WithContext(ctx).
		Joins("JOIN campaign_senders ON campaign_senders.sender_id = senders.id").
		Where("campaign_senders.campaign_id = ? AND senders.is_active = ?", campaign.ID, true).
		Order("campaign_senders.weight DESC, senders.id ASC").
		Find(&senders).Error
	if err != nil {
		return fmt.Errorf("load senders for campaign %d: %w", campaign.ID, err)
	}

	// At most one send per sender per tick bounds a campaign-tick to
	// O(senders) emails.
	for i := range senders {
		if err := s.DB.WithContext(ctx).First(&runtime, runtime.ID).Error; err != nil {
			return fmt.Errorf("reload runtime for campaign %d: %w", campaign.ID, err)
		}
		if runtime.SentToday >= campaign.MaxEmailsPerDay {
			state.logf("campaign daily limit reached mid-tick (%d/%d)", runtime.SentToday, campaign.MaxEmailsPerDay)
			break
		}

		if err := s.processSender(ctx, campaign, &senders[i], &runtime, dayKey, now, state); err != nil {
			// Isolated: a failing sender must not take down the others.
			s.Logger.WithError(err).WithFields(logrus.Fields{
				"campaign_id": campaign.ID,
				"sender_id":   senders[i].ID,
			}).Error("sender processing failed")
			sentry.CaptureException(err)
			state.sender(senders[i].ID, 0, "error")
		}
	}

	if state.queued == 0 {
		var pending int64
		err := s.DB.WithContext(ctx).Model(&models.CampaignLead{}).
			Where("campaign_id = ? AND status = ? AND is_stopped = ?", campaign.ID, models.LeadStatusPending, false).
			Count(&pending).Error
		if err != nil {
			return fmt.Errorf("count pending leads for campaign %d: %w", campaign.ID, err)
		}
		if pending == 0 {
			err := s.DB.WithContext(ctx).Model(campaign).Updates(map[string]interface{}{
				"status":       models.CampaignStatusCompleted,
				"completed_at": now,
			}).Error
			if err != nil {
				return fmt.Errorf("complete campaign %d: %w", campaign.ID, err)
			}
			state.logf("campaign completed: no pending leads remain")
			s.Logger.WithField("campaign_id", campaign.ID).Info("campaign completed")
		} else {
			state.logf("%d pending leads blocked by caps, gaps or delays", pending)
		}
	}

	s.writeTriggerLog(campaign.ID, state, started)
	return nil
}

// processSender attempts at most one send through the given sender.
func (s *Scheduler) processSender(ctx context.Context, campaign *models.Campaign, sender *models.Sender, runtime *models.CampaignRuntime, dayKey string, now time.Time, state *tickState) error {
	acquired, err := s.Locks.LockSender(sender.ID, dayKey, now)
	if err != nil {
		return err
	}
	if !acquired {
		state.sender(sender.ID, 0, SkipLocked)
		return nil
	}
	defer func() {
		if err := s.Locks.UnlockSender(sender.ID, dayKey); err != nil {
			s.Logger.WithError(err).WithField("sender_id", sender.ID).Warn("failed to release sender lock")
		}
	}()

	var senderRuntime models.SenderRuntime
	if err := s.DB.WithContext(ctx).Where("sender_id = ? AND day_key = ?", sender.ID, dayKey).First(&senderRuntime).Error; err != nil {
		return fmt.Errorf("load sender runtime %d/%s: %w", sender.ID, dayKey, err)
	}

	interval := time.Duration(campaign.IntervalMinutes) * time.Minute
	if reason := senderGateReason(sender.DailyLimit, &senderRuntime, now, interval); reason != "" {
		state.sender(sender.ID, 0, reason)
		return nil
	}

	var leads []models.CampaignLead
	err = s.DB.WithContext(ctx).
		Where("campaign_id = ? AND status = ? AND is_stopped = ?", campaign.ID, models.LeadStatusPending, false).
		Order("created_at ASC, id ASC").
		Find(&leads).Error
	if err != nil {
		return fmt.Errorf("load pending leads for campaign %d: %w", campaign.ID, err)
	}

	var steps []models.SequenceStep
	err = s.DB.WithContext(ctx).
		Where("campaign_id = ? AND is_active = ?", campaign.ID, true).
		Order("step_number ASC").
		Find(&steps).Error
	if err != nil {
		return fmt.Errorf("load sequence steps for campaign %d: %w", campaign.ID, err)
	}

	pick, exhausted, reason := SelectNextLead(leads, steps, now, campaign.SendingPriority, state.followupsSent, state.totalSent)

	if len(exhausted) > 0 {
		// Their next step no longer exists: finalize lazily.
		err := s.DB.WithContext(ctx).Model(&models.CampaignLead{}).
			Where("id IN ?", exhausted).
			Update("status", models.LeadStatusSent).Error
		if err != nil {
			return fmt.Errorf("finalize exhausted leads: %w", err)
		}
		state.logf("finalized %d leads with exhausted sequences", len(exhausted))
	}

	if pick == nil {
		state.sender(sender.ID, 0, reason)
		return nil
	}

	// The EmailSend insert is the idempotency checkpoint: the unique
	// (lead, step) index makes concurrent attempts collapse to one row.
	send := models.EmailSend{
		CampaignID:     campaign.ID,
		CampaignLeadID: pick.Lead.ID,
		StepNumber:     pick.Step.StepNumber,
		SenderID:       sender.ID,
		UserID:         campaign.UserID,
		Status:         models.EmailSendStatusQueued,
		Subject:        pick.Step.Subject,
	}
	res := s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&send)
	if res.Error != nil {
		return fmt.Errorf("create email send: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		state.sender(sender.ID, 0, SkipDuplicate)
		return nil
	}

	if err := s.Queue.Enqueue(ctx, send.ID); err != nil {
		return fmt.Errorf("enqueue delivery job for send %d: %w", send.ID, err)
	}

	err = s.DB.WithContext(ctx).Model(&senderRuntime).Updates(map[string]interface{}{
		"sent_today":   gorm.Expr("sent_today + ?", 1),
		"last_sent_at": now,
	}).Error
	if err != nil {
		return fmt.Errorf("update sender runtime counters: %w", err)
	}
	err = s.DB.WithContext(ctx).Model(&models.Sender{}).Where("id = ?", sender.ID).
		Update("total_sent", gorm.Expr("total_sent + ?", 1)).Error
	if err != nil {
		return fmt.Errorf("update sender total: %w", err)
	}
	err = s.DB.WithContext(ctx).Model(runtime).
		Update("sent_today", gorm.Expr("sent_today + ?", 1)).Error
	if err != nil {
		return fmt.Errorf("update campaign counters: %w", err)
	}
	err = s.DB.WithContext(ctx).Model(&models.Campaign{}).Where("id = ?", campaign.ID).
		Update("sent_count", gorm.Expr("sent_count + ?", 1)).Error
	if err != nil {
		return fmt.Errorf("update campaign sent count: %w", err)
	}
	err = s.DB.WithContext(ctx).Model(&models.SequenceStep{}).Where("id = ?", pick.Step.ID).
		Update("sent_count", gorm.Expr("sent_count + ?", 1)).Error
	if err != nil {
		return fmt.Errorf("update step sent count: %w", err)
	}

	leadUpdates := map[string]interface{}{
		"current_step": pick.Step.StepNumber,
		"last_sent_at": now,
	}
	if nextStep, ok := nextActiveStep(steps, pick.Step.StepNumber); ok {
		leadUpdates["status"] = models.LeadStatusPending
		leadUpdates["next_send_at"] = now.Add(time.Duration(nextStep.Delay) * s.DelayUnit)
	} else {
		// Sequence exhausted for this lead.
		leadUpdates["status"] = models.LeadStatusSent
		leadUpdates["next_send_at"] = nil
	}
	err = s.DB.WithContext(ctx).Model(&models.CampaignLead{}).
		Where("id = ?", pick.Lead.ID).
		Updates(leadUpdates).Error
	if err != nil {
		return fmt.Errorf("advance lead %d: %w", pick.Lead.ID, err)
	}

	if pick.Lead.CurrentStep > 0 {
		state.followupsSent++
	}
	state.totalSent++
	state.queued++
	state.sender(sender.ID, 1, "")
	state.logf("queued step %d for lead %d via sender %d", pick.Step.StepNumber, pick.Lead.LeadID, sender.ID)
	return nil
}

func (s *Scheduler) writeTriggerLog(campaignID uint, state *tickState, started time.Time) {
	entry := models.CampaignTriggerLog{
		CampaignID:   campaignID,
		EmailsQueued: state.queued,
		SenderDetail: state.senderDetail,
		Activity:     strings.Join(state.activity, "\n"),
		DurationMs:   time.Since(started).Milliseconds(),
	}
	if err := s.DB.Create(&entry).Error; err != nil {
		// Informational only, never control flow.
		s.Logger.WithError(err).WithField("campaign_id", campaignID).Warn("failed to write trigger log")
	}
}

// nextRunAfter advances a runtime's next evaluation time by the campaign
// interval, always from the previous value.
func nextRunAfter(prev time.Time, intervalMinutes int) time.Time {
	return prev.Add(time.Duration(intervalMinutes) * time.Minute)
}

// senderGateReason evaluates the per-sender gates: daily cap, then minimum
// inter-send gap (with jitter tolerance). Empty means the sender may send.
func senderGateReason(dailyLimit int, runtime *models.SenderRuntime, now time.Time, interval time.Duration) string {
	if runtime.SentToday >= dailyLimit {
		return SkipDailyLimit
	}
	if runtime.LastSentAt != nil && now.Sub(*runtime.LastSentAt) < interval-sendGapJitter {
		return SkipMinGap
	}
	return ""
}

// nextActiveStep returns the active step that immediately follows the given
// step number, if one exists.
func nextActiveStep(steps []models.SequenceStep, after int) (models.SequenceStep, bool) {
	for _, step := range steps {
		if step.StepNumber == after+1 && step.IsActive {
			return step, true
		}
	}
	return models.SequenceStep{}, false
}
