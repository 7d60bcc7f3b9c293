package account

import (
	"context"

	"github.com/wolfman30/career-journal-signup/internal/calendar"
	"github.com/wolfman30/career-journal-signup/internal/notify"
	"github.com/wolfman30/career-journal-signup/internal/signup"
	"github.com/wolfman30/career-journal-signup/pkg/logging"
)

// ReminderSender queues the reminder opt-in email without blocking.
type ReminderSender interface {
	SendReminder(ctx context.Context, r notify.Reminder)
}

// ReminderAccounts sends the reminder opt-in email once an email signup with
// SendReminder has been created. Social signups never get it.
type ReminderAccounts struct {
	inner  signup.AccountService
	sender ReminderSender
	clock  calendar.Clock
	logger *logging.Logger
}

// WithReminderEmail wraps inner. A nil sender returns inner unchanged.
func WithReminderEmail(inner signup.AccountService, sender ReminderSender, clock calendar.Clock, logger *logging.Logger) signup.AccountService {
	if inner == nil || sender == nil {
		return inner
	}
	if clock == nil {
		clock = calendar.SystemClock{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ReminderAccounts{
		inner:  inner,
		sender: sender,
		clock:  clock,
		logger: logger.Component("account"),
	}
}

func (a *ReminderAccounts) CreateAccount(ctx context.Context, data signup.UserSignupData) error {
	if err := a.inner.CreateAccount(ctx, data); err != nil {
		return err
	}
	acct := data.Account
	if acct == nil || !acct.SendReminder || acct.Method != signup.MethodEmail {
		return nil
	}

	// CreatedAt carries the session timezone, so the first reminder lands on
	// the visitor's Friday.
	now := acct.CreatedAt
	if now.IsZero() {
		now = a.clock.Now()
	}
	event := calendar.WeeklyReminder(now)
	a.sender.SendReminder(ctx, notify.Reminder{
		To:          acct.Email,
		FirstName:   acct.FirstName,
		CalendarURL: calendar.BuildReminderURL(event),
		FirstRun:    event.Start,
	})
	a.logger.Debug("reminder email queued", "first_run", event.Start)
	return nil
}

func (a *ReminderAccounts) UpdateProfile(ctx context.Context, data signup.UserSignupData) error {
	return a.inner.UpdateProfile(ctx, data)
}
