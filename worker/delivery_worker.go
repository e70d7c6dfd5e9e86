package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"sendloop/models"
	"sendloop/queue"
	"sendloop/utils"
)

// DeliveryWorker drains the delivery queue and performs the actual sends.
// It runs decoupled from the scheduler tick: they only share durable records.
type DeliveryWorker struct {
	DB     *gorm.DB
	Queue  *queue.DeliveryQueue
	Mailer utils.Mailer
	Logger *logrus.Logger

	Concurrency int
	Limiter     *rate.Limiter
	SendTimeout time.Duration

	MaxAttempts int
	BaseBackoff time.Duration
}

func NewDeliveryWorker(db *gorm.DB, q *queue.DeliveryQueue, mailer utils.Mailer, logger *logrus.Logger, concurrency, ratePerSecond int, sendTimeout time.Duration) *DeliveryWorker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &DeliveryWorker{
		DB:          db,
		Queue:       q,
		Mailer:      mailer,
		Logger:      logger,
		Concurrency: concurrency,
		Limiter:     rate.NewLimiter(rate.Limit(ratePerSecond), ratePerSecond),
		SendTimeout: sendTimeout,
		MaxAttempts: 3,
		BaseBackoff: time.Minute,
	}
}

// Start pulls jobs until ctx is canceled. Jobs run in parallel up to
// Concurrency, throttled by the rate limiter.
func (dw *DeliveryWorker) Start(ctx context.Context) {
	dw.Logger.Info("delivery worker started")

	sem := make(chan struct{}, dw.Concurrency)
	for {
		if ctx.Err() != nil {
			dw.Logger.Info("delivery worker shutting down")
			return
		}

		if _, err := dw.Queue.PromoteDue(ctx, time.Now()); err != nil && ctx.Err() == nil {
			dw.Logger.WithError(err).Warn("failed to promote due retries")
		}

		job, err := dw.Queue.Dequeue(ctx, 5*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				dw.Logger.Info("delivery worker shutting down")
				return
			}
			dw.Logger.WithError(err).Error("failed to dequeue delivery job")
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}

		if err := dw.Limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				dw.Logger.Info("delivery worker shutting down")
			} else {
				dw.Logger.WithError(err).Error("rate limiter wait failed, stopping delivery worker")
			}
			return
		}

		sem <- struct{}{}
		go func(job queue.Job) {
			defer func() { <-sem }()
			dw.processJob(ctx, job)
		}(*job)
	}
}

// processJob delivers one job and schedules a retry on failure until the
// attempt budget is exhausted. An abandoned job leaves the EmailSend FAILED;
// the scheduler never retries it, it has already advanced past that slot.
func (dw *DeliveryWorker) processJob(ctx context.Context, job queue.Job) {
	err := dw.deliver(ctx, job)
	if err == nil {
		return
	}

	dw.Logger.WithError(err).WithFields(logrus.Fields{
		"email_send_id": job.EmailSendID,
		"attempt":       job.Attempt,
	}).Warn("delivery attempt failed")
	sentry.CaptureException(err)

	if errors.Is(err, utils.ErrReauthorizationRequired) {
		dw.Logger.WithField("email_send_id", job.EmailSendID).Error("sender needs reauthorization, not retrying")
		return
	}
	if job.Attempt >= dw.MaxAttempts {
		dw.Logger.WithField("email_send_id", job.EmailSendID).Error("delivery abandoned after max attempts")
		return
	}

	retry := queue.Job{EmailSendID: job.EmailSendID, Attempt: job.Attempt + 1}
	readyAt := time.Now().Add(BackoffDelay(dw.BaseBackoff, job.Attempt))
	if err := dw.Queue.ScheduleRetry(ctx, retry, readyAt); err != nil && ctx.Err() == nil {
		dw.Logger.WithError(err).WithField("email_send_id", job.EmailSendID).Error("failed to schedule retry")
		sentry.CaptureException(err)
	}
}

func (dw *DeliveryWorker) deliver(ctx context.Context, job queue.Job) error {
	var send models.EmailSend
	err := dw.DB.WithContext(ctx).
		Preload("Campaign").
		Preload("Sender").
		Preload("CampaignLead.Lead").
		First(&send, job.EmailSendID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		dw.Logger.WithField("email_send_id", job.EmailSendID).Warn("delivery job references missing send, dropping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load email send %d: %w", job.EmailSendID, err)
	}

	// Duplicate-delivery guard: at-least-once queue semantics.
	if send.Status == models.EmailSendStatusSent {
		return nil
	}

	var step models.SequenceStep
	err = dw.DB.WithContext(ctx).
		Where("campaign_id = ? AND step_number = ?", send.CampaignID, send.StepNumber).
		First(&step).Error
	if err != nil {
		return fmt.Errorf("load step %d of campaign %d: %w", send.StepNumber, send.CampaignID, err)
	}

	lead := send.CampaignLead.Lead
	subject := utils.RenderTemplate(step.Subject, &lead)
	body := utils.RenderTemplate(step.Body, &lead)

	sendCtx, cancel := context.WithTimeout(ctx, dw.SendTimeout)
	defer cancel()

	result, sendErr := dw.Mailer.Send(sendCtx, utils.SendRequest{
		CampaignID:      send.CampaignID,
		LeadID:          lead.ID,
		UserID:          send.UserID,
		Sender:          send.Sender,
		To:              lead.Email,
		Subject:         subject,
		Body:            body,
		PlainText:       send.Campaign.PlainText,
		TrackOpens:      send.Campaign.TrackOpens,
		TrackClicks:     send.Campaign.TrackClicks,
		UnsubscribeLink: send.Campaign.UnsubscribeLink,
		UnsubscribeText: send.Campaign.UnsubscribeText,
	})
	if sendErr != nil {
		updateErr := dw.DB.WithContext(ctx).Model(&send).Updates(map[string]interface{}{
			"status":        models.EmailSendStatusFailed,
			"attempts":      gorm.Expr("attempts + ?", 1),
			"error_message": sendErr.Error(),
		}).Error
		if updateErr != nil {
			dw.Logger.WithError(updateErr).WithField("email_send_id", send.ID).Error("failed to record delivery failure")
		}
		return fmt.Errorf("deliver send %d: %w", send.ID, sendErr)
	}

	err = dw.DB.WithContext(ctx).Model(&send).Updates(map[string]interface{}{
		"status":        models.EmailSendStatusSent,
		"attempts":      gorm.Expr("attempts + ?", 1),
		"message_id":    result.MessageID,
		"thread_id":     result.ThreadID,
		"subject":       subject,
		"error_message": nil,
		"sent_at":       time.Now(),
	}).Error
	if err != nil {
		return fmt.Errorf("record delivery of send %d: %w", send.ID, err)
	}

	// Best-effort usage accounting, must never fail the send.
	go utils.IncrementEmailsSent(dw.DB, send.UserID, dw.Logger)

	dw.Logger.WithFields(logrus.Fields{
		"email_send_id": send.ID,
		"campaign_id":   send.CampaignID,
		"message_id":    result.MessageID,
	}).Info("email sent")
	return nil
}

// BackoffDelay returns the exponential backoff before the next attempt:
// base * 2^(attempt-1).
func BackoffDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base << (attempt - 1)
}
