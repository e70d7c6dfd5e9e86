package utils

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"sendloop/models"
)

// ErrReauthorizationRequired marks provider rejections that need an operator
// re-authorization flow rather than a queue retry.
var ErrReauthorizationRequired = errors.New("sender requires reauthorization")

// SendRequest carries everything the transport needs for one delivery.
type SendRequest struct {
	CampaignID      uint
	LeadID          uint
	UserID          uint
	Sender          models.Sender
	To              string
	Subject         string
	Body            string
	PlainText       bool
	TrackOpens      bool
	TrackClicks     bool
	UnsubscribeLink bool
	UnsubscribeText string
}

// SendResult is what the provider reports back on success.
type SendResult struct {
	MessageID string
	ThreadID  string // empty for providers without threading
}

// Mailer places an email on the wire through a sender account.
type Mailer interface {
	Send(ctx context.Context, req SendRequest) (*SendResult, error)
}

// SMTPMailer delivers through the sender's SMTP credentials.
type SMTPMailer struct {
	BaseURL string // public base URL for tracking and unsubscribe links
	Logger  *logrus.Logger
}

func NewSMTPMailer(baseURL string, logger *logrus.Logger) *SMTPMailer {
	return &SMTPMailer{BaseURL: baseURL, Logger: logger}
}

func (m *SMTPMailer) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	messageID := BuildMessageID(req.Sender.FromEmail)

	body := req.Body
	contentType := "text/html"
	if req.PlainText {
		contentType = "text/plain"
	} else if req.TrackOpens || req.TrackClicks {
		body = InjectTracking(body, m.BaseURL, messageID, req.TrackOpens, req.TrackClicks)
	}
	if req.UnsubscribeLink {
		body = AppendUnsubscribeFooter(body, m.BaseURL, messageID, req.UnsubscribeText, req.PlainText)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", fmt.Sprintf("%s <%s>", req.Sender.FromName, req.Sender.FromEmail))
	msg.SetHeader("To", req.To)
	msg.SetHeader("Subject", req.Subject)
	msg.SetHeader("Message-ID", fmt.Sprintf("<%s>", messageID))
	if req.UnsubscribeLink {
		msg.SetHeader("List-Unsubscribe", fmt.Sprintf("<%s/unsubscribe/%s>", m.BaseURL, messageID))
	}
	msg.SetBody(contentType, body)

	dialer := gomail.NewDialer(
		req.Sender.SMTPHost,
		req.Sender.SMTPPort,
		req.Sender.SMTPUsername,
		req.Sender.SMTPPassword,
	)

	// DialAndSend has no context support; run it under our deadline so a
	// hung provider connection cannot stall a worker slot.
	errCh := make(chan error, 1)
	go func() { errCh <- dialer.DialAndSend(msg) }()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("smtp send to %s: %w", req.To, ctx.Err())
	case err := <-errCh:
		if err != nil {
			if isAuthFailure(err) {
				return nil, fmt.Errorf("smtp send to %s: %v: %w", req.To, err, ErrReauthorizationRequired)
			}
			return nil, fmt.Errorf("smtp send to %s: %w", req.To, err)
		}
	}

	m.Logger.WithFields(logrus.Fields{
		"sender_id":  req.Sender.ID,
		"message_id": messageID,
	}).Debug("email delivered via smtp")

	return &SendResult{MessageID: messageID}, nil
}

// BuildMessageID generates an RFC-style message id scoped to the sender's
// domain.
func BuildMessageID(fromEmail string) string {
	domain := "sendloop.local"
	if at := strings.LastIndex(fromEmail, "@"); at != -1 && at+1 < len(fromEmail) {
		domain = fromEmail[at+1:]
	}
	return fmt.Sprintf("%s@%s", uuid.New().String(), domain)
}

func isAuthFailure(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "535") || strings.Contains(msg, "authentication failed") ||
		strings.Contains(msg, "invalid credentials")
}
