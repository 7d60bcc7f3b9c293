package account

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/career-journal-signup/internal/calendar"
	"github.com/wolfman30/career-journal-signup/internal/notify"
	"github.com/wolfman30/career-journal-signup/internal/signup"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []notify.Reminder
}

func (r *recordingSender) SendReminder(_ context.Context, rem notify.Reminder) {
	r.mu.Lock()
	r.sent = append(r.sent, rem)
	r.mu.Unlock()
}

func (r *recordingSender) all() []notify.Reminder {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Reminder(nil), r.sent...)
}

func TestReminderEmailSentForEmailSignup(t *testing.T) {
	sender := &recordingSender{}
	svc := WithReminderEmail(NewSimulator(SimulatorConfig{}), sender, nil, nil)

	require.NoError(t, svc.CreateAccount(context.Background(), emailSignup()))

	sent := sender.all()
	require.Len(t, sent, 1)
	assert.Equal(t, "jane@acme.io", sent[0].To)
	assert.Equal(t, "Jane", sent[0].FirstName)
	assert.Equal(t, time.Date(2026, 10, 23, 17, 0, 0, 0, time.UTC), sent[0].FirstRun)
	assert.Contains(t, sent[0].CalendarURL, calendar.ProviderURL)
}

func TestReminderEmailSkipped(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*signup.Account)
	}{
		{"opted out", func(a *signup.Account) { a.SendReminder = false }},
		{"social signup", func(a *signup.Account) { a.Method = signup.MethodGoogle }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &recordingSender{}
			svc := WithReminderEmail(NewSimulator(SimulatorConfig{}), sender, nil, nil)
			data := emailSignup()
			tt.mutate(data.Account)

			require.NoError(t, svc.CreateAccount(context.Background(), data))
			assert.Empty(t, sender.all())
		})
	}
}

func TestReminderEmailNotSentWhenCreateFails(t *testing.T) {
	sender := &recordingSender{}
	sim := NewSimulator(SimulatorConfig{})
	sim.FailNext(1)
	svc := WithReminderEmail(sim, sender, nil, nil)

	assert.Error(t, svc.CreateAccount(context.Background(), emailSignup()))
	assert.Empty(t, sender.all())
}

func TestReminderEmailFallsBackToClock(t *testing.T) {
	sender := &recordingSender{}
	clock := calendar.FixedClock(time.Date(2026, 10, 21, 8, 0, 0, 0, time.UTC))
	svc := WithReminderEmail(NewSimulator(SimulatorConfig{}), sender, clock, nil)
	data := emailSignup()
	data.Account.CreatedAt = time.Time{}

	require.NoError(t, svc.CreateAccount(context.Background(), data))
	require.Len(t, sender.all(), 1)
	assert.Equal(t, time.Date(2026, 10, 23, 17, 0, 0, 0, time.UTC), sender.all()[0].FirstRun)
}

func TestWithReminderEmailNilSender(t *testing.T) {
	sim := NewSimulator(SimulatorConfig{})
	assert.Same(t, sim, WithReminderEmail(sim, nil, nil, nil))
}

func TestReminderAccountsDelegatesProfile(t *testing.T) {
	sim := NewSimulator(SimulatorConfig{})
	svc := WithReminderEmail(sim, &recordingSender{}, nil, nil)

	require.NoError(t, svc.UpdateProfile(context.Background(), emailSignup()))
	assert.Equal(t, 1, sim.UpdateCalls())
}
