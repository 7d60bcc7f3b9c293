package signup

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/career-journal-signup/internal/calendar"
	"github.com/wolfman30/career-journal-signup/internal/observability/metrics"
	"github.com/wolfman30/career-journal-signup/internal/session"
)

type fakeAccounts struct {
	creates atomic.Int32
	updates atomic.Int32

	mu      sync.Mutex
	fail    error
	block   chan struct{}
	entered chan struct{}
	last    UserSignupData
}

func (f *fakeAccounts) CreateAccount(ctx context.Context, data UserSignupData) error {
	f.creates.Add(1)
	return f.run(data)
}

func (f *fakeAccounts) UpdateProfile(ctx context.Context, data UserSignupData) error {
	f.updates.Add(1)
	return f.run(data)
}

func (f *fakeAccounts) run(data UserSignupData) error {
	f.mu.Lock()
	f.last = data
	block, entered, fail := f.block, f.entered, f.fail
	f.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		<-block
	}
	return fail
}

func (f *fakeAccounts) setBlock(block chan struct{}) {
	f.mu.Lock()
	f.block = block
	f.mu.Unlock()
}

func (f *fakeAccounts) setFail(err error) {
	f.mu.Lock()
	f.fail = err
	f.mu.Unlock()
}

type recordingTracker struct {
	mu     sync.Mutex
	events []string
	props  []map[string]any
}

func (r *recordingTracker) Track(_ context.Context, name string, props map[string]any) {
	r.mu.Lock()
	r.events = append(r.events, name)
	r.props = append(r.props, props)
	r.mu.Unlock()
}

func (r *recordingTracker) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type harness struct {
	machine  *Machine
	gate     InFlightGate
	accounts *fakeAccounts
	tracker  *recordingTracker
	metrics  *metrics.SignupMetrics
	now      time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, session.NewMemoryStore(), session.NewMemoryGate())
}

func newRedisHarness(t *testing.T, lease time.Duration) (*harness, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return newHarnessWith(t, session.NewRedisStore(client), session.NewRedisGate(client, lease)), mr
}

func newHarnessWith(t *testing.T, store SessionStore, gate InFlightGate) *harness {
	t.Helper()
	h := &harness{
		gate:     gate,
		accounts: &fakeAccounts{},
		tracker:  &recordingTracker{},
		metrics:  metrics.NewSignupMetrics(prometheus.NewRegistry()),
		now:      testNow,
	}
	h.machine = NewMachine(Options{
		Store:    store,
		Gate:     gate,
		Accounts: h.accounts,
		Tracker:  h.tracker,
		Metrics:  h.metrics,
		Clock:    calendar.ClockFunc(func() time.Time { return h.now }),
		NewID:    func() string { return "s-1" },
	})
	return h
}

func (h *harness) start(t *testing.T) string {
	t.Helper()
	r, err := h.machine.Start(context.Background(), UTM{Source: "newsletter"}, "")
	require.NoError(t, err)
	return r.SessionID
}

func TestMachineHappyPath(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.start(t)

	r, err := h.machine.Dispatch(ctx, id, SubmitSignup(validSignupFields()))
	require.NoError(t, err)
	assert.Equal(t, StepProfile, r.ActiveStep)
	assert.Equal(t, "jane@acme.io", r.Account.Email)

	r, err = h.machine.Dispatch(ctx, id, SubmitProfile(Fields{FieldJobTitle: "Engineer", FieldCareerGoal: "promotion"}))
	require.NoError(t, err)
	assert.Equal(t, StepSuccess, r.ActiveStep)
	assert.Equal(t, []bool{true, true, true}, r.Progress)

	url, err := h.machine.ReminderURL(ctx, id)
	require.NoError(t, err)
	assert.Contains(t, url, "dates=20261023T170000Z%2F20261023T171500Z")

	r, err = h.machine.Dispatch(ctx, id, StartJournaling())
	require.NoError(t, err)
	assert.Equal(t, "/journal", r.Redirect)
	assert.Equal(t, StepSuccess, r.ActiveStep)

	assert.Equal(t, int32(1), h.accounts.creates.Load())
	assert.Equal(t, int32(1), h.accounts.updates.Load())
	assert.Equal(t, []string{
		"session_started",
		"account_created",
		"profile_completed",
		"calendar_reminder_clicked",
		"calendar_reminder_added",
		"start_journaling_clicked",
	}, h.tracker.names())
	assert.Equal(t, map[string]any{"method": "email", "utm_source": "newsletter"}, h.tracker.props[1])
}

func TestMachineInvalidSignupRunsNoEffect(t *testing.T) {
	h := newHarness(t)
	id := h.start(t)

	r, err := h.machine.Dispatch(context.Background(), id, SubmitSignup(Fields{
		FieldFirstName: "Jane",
		FieldEmail:     "jane@gmail.com",
	}))
	require.NoError(t, err)

	assert.Equal(t, StepSignup, r.ActiveStep)
	assert.Equal(t, FieldErrors{FieldPassword: "Password is required"}, r.FieldErrors)
	assert.Equal(t, FieldPassword, r.FocusField)
	assert.Contains(t, r.FieldWarnings, FieldEmail)
	assert.Zero(t, h.accounts.creates.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.TransitionCounter("submit_signup", "invalid")))
}

func TestMachineDoubleSubmitRunsOneEffect(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.start(t)

	h.accounts.block = make(chan struct{})
	h.accounts.entered = make(chan struct{}, 1)

	type result struct {
		r   Render
		err error
	}
	first := make(chan result, 1)
	go func() {
		r, err := h.machine.Dispatch(ctx, id, SubmitSignup(validSignupFields()))
		first <- result{r, err}
	}()
	<-h.accounts.entered

	view, err := h.machine.Render(ctx, id)
	require.NoError(t, err)
	assert.True(t, view.ButtonLoading[ButtonCreateAccount])

	_, err = h.machine.Dispatch(ctx, id, SubmitSignup(validSignupFields()))
	assert.ErrorIs(t, err, ErrTransitionInFlight)
	_, err = h.machine.Dispatch(ctx, id, SubmitSocial("google"))
	assert.ErrorIs(t, err, ErrTransitionInFlight)

	close(h.accounts.block)
	res := <-first
	require.NoError(t, res.err)
	assert.Equal(t, StepProfile, res.r.ActiveStep)
	assert.Equal(t, int32(1), h.accounts.creates.Load())

	view, err = h.machine.Render(ctx, id)
	require.NoError(t, err)
	assert.False(t, view.ButtonLoading[ButtonSaveProfile])
}

func TestMachineEffectSurvivesCancelledRequest(t *testing.T) {
	redisHarness, _ := newRedisHarness(t, time.Minute)
	harnesses := map[string]*harness{
		"memory": newHarness(t),
		"redis":  redisHarness,
	}
	for name, h := range harnesses {
		t.Run(name, func(t *testing.T) {
			id := h.start(t)

			ctx, cancel := context.WithCancel(context.Background())
			h.accounts.block = make(chan struct{})
			h.accounts.entered = make(chan struct{}, 1)
			done := make(chan error, 1)
			go func() {
				_, err := h.machine.Dispatch(ctx, id, SubmitSignup(validSignupFields()))
				done <- err
			}()
			<-h.accounts.entered
			cancel()
			close(h.accounts.block)
			require.NoError(t, <-done)

			r, err := h.machine.Render(context.Background(), id)
			require.NoError(t, err)
			assert.Equal(t, StepProfile, r.ActiveStep)
			assert.False(t, r.ButtonLoading[ButtonSaveProfile])

			// The committed step blocks a second account creation.
			_, err = h.machine.Dispatch(context.Background(), id, SubmitSignup(validSignupFields()))
			assert.ErrorIs(t, err, ErrWrongStep)
			assert.Equal(t, int32(1), h.accounts.creates.Load())
		})
	}
}

func TestMachineCancelledRequestFailureStillRecordsNotice(t *testing.T) {
	h, _ := newRedisHarness(t, time.Minute)
	id := h.start(t)
	h.accounts.setFail(errors.New("backend down"))

	ctx, cancel := context.WithCancel(context.Background())
	block := make(chan struct{})
	h.accounts.setBlock(block)
	h.accounts.entered = make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		_, err := h.machine.Dispatch(ctx, id, SubmitSignup(validSignupFields()))
		done <- err
	}()
	<-h.accounts.entered
	cancel()
	close(block)
	require.NoError(t, <-done)

	r, err := h.machine.Render(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StepSignup, r.ActiveStep)
	require.NotNil(t, r.Notice)
	assert.Equal(t, "An error occurred during signup. Please try again.", r.Notice.Message)
}

func TestMachineStaleReleaseKeepsNewerMarker(t *testing.T) {
	h, mr := newRedisHarness(t, time.Second)
	ctx := context.Background()
	id := h.start(t)

	firstBlock := make(chan struct{})
	h.accounts.setBlock(firstBlock)
	h.accounts.entered = make(chan struct{}, 2)
	first := make(chan error, 1)
	go func() {
		_, err := h.machine.Dispatch(ctx, id, SubmitSignup(validSignupFields()))
		first <- err
	}()
	<-h.accounts.entered

	// The first lease lapses and a second submit of the same button wins the
	// gate.
	mr.FastForward(2 * time.Second)
	secondBlock := make(chan struct{})
	h.accounts.setBlock(secondBlock)
	second := make(chan error, 1)
	go func() {
		_, err := h.machine.Dispatch(ctx, id, SubmitSignup(validSignupFields()))
		second <- err
	}()
	<-h.accounts.entered

	secondHolder, err := h.gate.Holder(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, ButtonCreateAccount, holderButton(secondHolder))

	close(firstBlock)
	require.NoError(t, <-first)

	holder, err := h.gate.Holder(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, secondHolder, holder, "finishing the first transition must not free the second one's marker")
	_, err = h.machine.Dispatch(ctx, id, SkipProfile())
	assert.ErrorIs(t, err, ErrTransitionInFlight)

	close(secondBlock)
	require.NoError(t, <-second)
	holder, err = h.gate.Holder(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, holder)
}

func TestInFlightHolderIsUniquePerDispatch(t *testing.T) {
	a := inFlightHolder(ButtonCreateAccount, "t1")
	b := inFlightHolder(ButtonCreateAccount, "t2")
	assert.NotEqual(t, a, b)
	assert.Equal(t, ButtonCreateAccount, holderButton(a))
	assert.Equal(t, "", holderButton(""))
}

func TestMachineEffectFailureKeepsStepAndAllowsRetry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.start(t)
	h.accounts.setFail(errors.New("backend down"))

	r, err := h.machine.Dispatch(ctx, id, SubmitSocial("google"))
	require.NoError(t, err)
	assert.Equal(t, StepSignup, r.ActiveStep)
	require.NotNil(t, r.Notice)
	assert.Equal(t, "google login failed. Please try again.", r.Notice.Message)
	assert.Equal(t, testNow.Add(5*time.Second), r.Notice.ExpiresAt)
	assert.Nil(t, r.Account)

	h.now = testNow.Add(6 * time.Second)
	r, err = h.machine.Render(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, r.Notice)

	h.accounts.setFail(nil)
	r, err = h.machine.Dispatch(ctx, id, SubmitSocial("google"))
	require.NoError(t, err)
	assert.Equal(t, StepProfile, r.ActiveStep)
	assert.Equal(t, int32(2), h.accounts.creates.Load())

	assert.Equal(t, []string{
		"session_started",
		"social_login_attempt",
		"signup_failed",
		"social_login_attempt",
		"social_login_success",
		"account_created",
	}, h.tracker.names())
}

func TestMachineSkipProfileCallsNoEffect(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.start(t)

	_, err := h.machine.Dispatch(ctx, id, SubmitSignup(validSignupFields()))
	require.NoError(t, err)
	r, err := h.machine.Dispatch(ctx, id, SkipProfile())
	require.NoError(t, err)

	assert.Equal(t, StepSuccess, r.ActiveStep)
	assert.Zero(t, h.accounts.updates.Load())
	assert.Contains(t, h.tracker.names(), "profile_skipped")
}

func TestMachineStepsNeverMoveBackwards(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.start(t)

	_, err := h.machine.Dispatch(ctx, id, SubmitSignup(validSignupFields()))
	require.NoError(t, err)

	r, err := h.machine.Dispatch(ctx, id, SubmitSignup(validSignupFields()))
	assert.ErrorIs(t, err, ErrWrongStep)
	assert.Equal(t, StepProfile, r.ActiveStep)
	assert.Equal(t, int32(1), h.accounts.creates.Load())

	_, err = h.machine.ReminderURL(ctx, id)
	assert.ErrorIs(t, err, ErrWrongStep)
}

func TestMachineUnknownSession(t *testing.T) {
	h := newHarness(t)
	_, err := h.machine.Render(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = h.machine.Dispatch(context.Background(), "nope", SkipProfile())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMachineReminderUsesSessionTimezone(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r, err := h.machine.Start(ctx, UTM{Source: "direct"}, "America/Los_Angeles")
	require.NoError(t, err)
	id := r.SessionID

	_, err = h.machine.Dispatch(ctx, id, SubmitSocial("linkedin"))
	require.NoError(t, err)
	_, err = h.machine.Dispatch(ctx, id, SkipProfile())
	require.NoError(t, err)

	url, err := h.machine.ReminderURL(ctx, id)
	require.NoError(t, err)
	assert.Contains(t, url, "dates=20261024T000000Z%2F20261024T001500Z")
}

func TestNewMachineRequiresCollaborators(t *testing.T) {
	assert.Panics(t, func() { NewMachine(Options{}) })
	assert.Panics(t, func() {
		NewMachine(Options{Store: session.NewMemoryStore(), Accounts: &fakeAccounts{}})
	})
}
