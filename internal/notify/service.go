package notify

import (
	"context"
	"fmt"
	"html/template"
	"strings"
	"sync"
	"time"

	"github.com/wolfman30/career-journal-signup/pkg/logging"
)

// Reminder is the data of a reminder opt-in email.
type Reminder struct {
	To          string
	FirstName   string
	CalendarURL string
	FirstRun    time.Time
}

var reminderHTML = template.Must(template.New("reminder").Parse(`<p>Hi {{.FirstName}},</p>
<p>Your weekly career journaling reminder is set for Fridays at 5pm, starting {{.FirstRun.Format "Monday, January 2"}}.</p>
<p><a href="{{.CalendarURL}}">Add the reminder to your calendar</a></p>
<p>Take 15 minutes each week to reflect on your wins, challenges, and learnings.</p>`))

// Service sends visitor-facing notifications. Sends run in the background so
// the wizard never waits on email delivery.
type Service struct {
	email   EmailSender
	logger  *logging.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewService creates a notification service.
func NewService(email EmailSender, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if email == nil {
		email = NewStubEmailSender(logger)
	}
	return &Service{
		email:   email,
		logger:  logger.Component("notify"),
		timeout: 10 * time.Second,
	}
}

// ReminderMessage renders the opt-in email.
func ReminderMessage(r Reminder) (EmailMessage, error) {
	var html strings.Builder
	if err := reminderHTML.Execute(&html, r); err != nil {
		return EmailMessage{}, fmt.Errorf("notify: render reminder: %w", err)
	}
	body := fmt.Sprintf("Hi %s,\n\nYour weekly career journaling reminder is set for Fridays at 5pm, starting %s.\n\nAdd it to your calendar: %s\n",
		r.FirstName, r.FirstRun.Format("Monday, January 2"), r.CalendarURL)
	return EmailMessage{
		To:      r.To,
		ToName:  r.FirstName,
		Subject: "Your weekly career journaling reminder",
		Body:    body,
		HTML:    html.String(),
	}, nil
}

// SendReminder queues the opt-in email. Failures are logged, never returned
// to the caller.
func (s *Service) SendReminder(ctx context.Context, r Reminder) {
	msg, err := ReminderMessage(r)
	if err != nil {
		s.logger.Error("reminder email not rendered", "error", err)
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		if err := s.email.Send(sendCtx, msg); err != nil {
			s.logger.Error("reminder email failed", "error", err)
			return
		}
		s.logger.Debug("reminder email sent")
	}()
}

// Wait blocks until queued sends have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}
