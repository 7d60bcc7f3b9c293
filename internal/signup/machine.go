package signup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/career-journal-signup/internal/calendar"
	"github.com/wolfman30/career-journal-signup/internal/observability/metrics"
	"github.com/wolfman30/career-journal-signup/internal/session"
	"github.com/wolfman30/career-journal-signup/pkg/logging"
)

var tracer = otel.Tracer("careerjournal.internal.signup")

// SessionStore keeps encoded wizard state between requests.
type SessionStore interface {
	Get(ctx context.Context, id string) ([]byte, error)
	Put(ctx context.Context, id string, data []byte, ttl time.Duration) error
}

// InFlightGate admits one mutating transition per session at a time.
type InFlightGate interface {
	TryAcquire(ctx context.Context, key, holder string) (bool, error)
	Release(ctx context.Context, key, holder string) error
	Holder(ctx context.Context, key string) (string, error)
}

// AccountService performs the external effects of the wizard.
type AccountService interface {
	CreateAccount(ctx context.Context, data UserSignupData) error
	UpdateProfile(ctx context.Context, data UserSignupData) error
}

// Tracker receives analytics events. Implementations must not block.
type Tracker interface {
	Track(ctx context.Context, name string, props map[string]any)
}

// Options configures a Machine.
type Options struct {
	Store           SessionStore
	Gate            InFlightGate
	Accounts        AccountService
	Tracker         Tracker
	Metrics         *metrics.SignupMetrics
	Clock           calendar.Clock
	Logger          *logging.Logger
	SessionTTL      time.Duration
	NoticeTTL       time.Duration
	DefaultTimezone string
	DashboardURL    string
	NewID           func() string
}

// Machine runs wizard sessions: it loads state, applies the pure transition
// functions, awaits effects and saves the result.
type Machine struct {
	store        SessionStore
	gate         InFlightGate
	accounts     AccountService
	tracker      Tracker
	metrics      *metrics.SignupMetrics
	clock        calendar.Clock
	logger       *logging.Logger
	sessionTTL   time.Duration
	noticeTTL    time.Duration
	defaultTZ    string
	dashboardURL string
	newID        func() string
}

// NewMachine wires a Machine. Store, Gate and Accounts are required.
func NewMachine(opts Options) *Machine {
	if opts.Store == nil {
		panic("signup: session store required")
	}
	if opts.Gate == nil {
		panic("signup: in-flight gate required")
	}
	if opts.Accounts == nil {
		panic("signup: account service required")
	}
	m := &Machine{
		store:        opts.Store,
		gate:         opts.Gate,
		accounts:     opts.Accounts,
		tracker:      opts.Tracker,
		metrics:      opts.Metrics,
		clock:        opts.Clock,
		logger:       opts.Logger,
		sessionTTL:   opts.SessionTTL,
		noticeTTL:    opts.NoticeTTL,
		defaultTZ:    opts.DefaultTimezone,
		dashboardURL: opts.DashboardURL,
		newID:        opts.NewID,
	}
	if m.tracker == nil {
		m.tracker = nopTracker{}
	}
	if m.clock == nil {
		m.clock = calendar.SystemClock{}
	}
	if m.logger == nil {
		m.logger = logging.Default()
	}
	m.logger = m.logger.Component("signup")
	if m.sessionTTL <= 0 {
		m.sessionTTL = 30 * time.Minute
	}
	if m.noticeTTL <= 0 {
		m.noticeTTL = 5 * time.Second
	}
	if _, err := time.LoadLocation(m.defaultTZ); m.defaultTZ == "" || err != nil {
		m.defaultTZ = "UTC"
	}
	if m.dashboardURL == "" {
		m.dashboardURL = "/journal"
	}
	if m.newID == nil {
		m.newID = uuid.NewString
	}
	return m
}

// Start opens a session on the signup step. utm is captured here once and
// never changes afterwards.
func (m *Machine) Start(ctx context.Context, utm UTM, timezone string) (Render, error) {
	st := NewState(m.newID(), utm, m.timezone(timezone), m.clock.Now())
	if err := m.save(ctx, st); err != nil {
		return Render{}, err
	}
	m.metrics.ObserveSessionStarted(utm.Source)
	m.tracker.Track(ctx, "session_started", utmProps(utm))
	m.logger.Info("signup session started", "session_id", st.SessionID, "utm_source", utm.Source, "timezone", st.Timezone)
	return RenderState(st, "", m.clock.Now()), nil
}

// Render returns the current view of a session, including the spinner of
// any transition still in flight.
func (m *Machine) Render(ctx context.Context, id string) (Render, error) {
	st, err := m.load(ctx, id)
	if err != nil {
		return Render{}, err
	}
	holder, err := m.gate.Holder(ctx, id)
	if err != nil {
		m.logger.Warn("in-flight lookup failed", "error", err, "session_id", id)
		holder = ""
	}
	return RenderState(st, holderButton(holder), m.clock.Now()), nil
}

// Dispatch executes one command. Validation failures come back inside the
// Render; effect failures set a notice and keep the step. The error is
// reserved for unknown sessions, illegal commands and in-flight rejections.
func (m *Machine) Dispatch(ctx context.Context, id string, cmd Command) (Render, error) {
	if _, err := cmd.step(); err != nil {
		return Render{}, err
	}
	if !cmd.Mutating() {
		return m.act(ctx, id, cmd)
	}

	holder := inFlightHolder(cmd.ButtonID(), uuid.NewString())
	acquired, err := m.gate.TryAcquire(ctx, id, holder)
	if err != nil {
		return Render{}, fmt.Errorf("signup: acquire in-flight gate: %w", err)
	}
	if !acquired {
		m.metrics.ObserveTransition(string(cmd.Type), "in_flight")
		m.logger.Warn("transition rejected while another is in flight", "session_id", id, "command", cmd.Type)
		return Render{}, ErrTransitionInFlight
	}
	// Once the gate is held the transition runs to completion, including its
	// commit, even if the caller goes away.
	commitCtx := context.WithoutCancel(ctx)
	defer func() {
		if err := m.gate.Release(commitCtx, id, holder); err != nil {
			m.logger.Error("failed to release in-flight gate", "error", err, "session_id", id)
		}
	}()

	st, err := m.load(ctx, id)
	if err != nil {
		return Render{}, err
	}
	now := m.clock.Now().In(st.Location())

	d, err := Decide(st, cmd, now)
	if err != nil {
		m.metrics.ObserveTransition(string(cmd.Type), "illegal")
		return RenderState(st, "", now), err
	}
	if d.Rejected() {
		m.metrics.ObserveTransition(string(cmd.Type), "invalid")
		m.logger.Debug("validation failed", "session_id", id, "command", cmd.Type, "fields", len(d.FieldErrors))
		r := RenderState(st, "", now).WithFieldErrors(d.FieldErrors)
		if cmd.Type == CmdSubmitSignup {
			r.FieldWarnings = FieldWarnings(cmd.Fields)
		}
		return r, nil
	}

	if cmd.Type == CmdSubmitSocial {
		m.tracker.Track(ctx, "social_login_attempt", map[string]any{"provider": string(d.Data.Account.Method)})
	}

	if d.Effect != EffectNone {
		if err := m.runEffect(commitCtx, d); err != nil {
			st.Notice = &Notice{Message: d.FailureMessage(), ExpiresAt: now.Add(m.noticeTTL)}
			if err := m.save(commitCtx, st); err != nil {
				return Render{}, err
			}
			m.metrics.ObserveTransition(string(cmd.Type), "effect_failed")
			m.tracker.Track(ctx, "signup_failed", map[string]any{
				"transition": string(cmd.Type),
				"effect":     d.Effect.String(),
			})
			return RenderState(st, "", now), nil
		}
	}

	next := d.Apply(st)
	if err := m.save(commitCtx, next); err != nil {
		return Render{}, err
	}
	m.metrics.ObserveTransition(string(cmd.Type), "advanced")
	m.trackAdvanced(ctx, d)
	m.logger.Info("wizard step advanced", "session_id", id, "command", cmd.Type, "from", int(d.From), "to", int(next.Step))
	return RenderState(next, "", now), nil
}

// ReminderURL builds the calendar link for a session on the success step.
func (m *Machine) ReminderURL(ctx context.Context, id string) (string, error) {
	r, err := m.Dispatch(ctx, id, AddCalendarReminder())
	if err != nil {
		return "", err
	}
	return r.CalendarURL, nil
}

// act handles the success-step actions, which never change state.
func (m *Machine) act(ctx context.Context, id string, cmd Command) (Render, error) {
	st, err := m.load(ctx, id)
	if err != nil {
		return Render{}, err
	}
	now := m.clock.Now().In(st.Location())
	if _, err := Decide(st, cmd, now); err != nil {
		m.metrics.ObserveTransition(string(cmd.Type), "illegal")
		return RenderState(st, "", now), err
	}

	r := RenderState(st, "", now)
	switch cmd.Type {
	case CmdAddCalendarReminder:
		m.tracker.Track(ctx, "calendar_reminder_clicked", nil)
		r.CalendarURL = calendar.BuildReminderURL(calendar.WeeklyReminder(now))
		m.tracker.Track(ctx, "calendar_reminder_added", nil)
	case CmdStartJournaling:
		m.tracker.Track(ctx, "start_journaling_clicked", nil)
		r.Redirect = m.dashboardURL
		m.logger.Info("redirecting to journaling dashboard", "session_id", id, "target", m.dashboardURL)
	}
	m.metrics.ObserveTransition(string(cmd.Type), "ok")
	return r, nil
}

// runEffect awaits the decision's effect. ctx must already be detached from
// the request.
func (m *Machine) runEffect(ctx context.Context, d Decision) error {
	ctx, span := tracer.Start(ctx, "signup."+d.Effect.String(),
		trace.WithAttributes(
			attribute.String("signup.command", string(d.Command.Type)),
			attribute.Int("signup.step", int(d.From)),
		))
	defer span.End()

	start := time.Now()
	var err error
	switch d.Effect {
	case EffectCreateAccount:
		err = m.accounts.CreateAccount(ctx, d.Data)
	case EffectUpdateProfile:
		err = m.accounts.UpdateProfile(ctx, d.Data)
	}
	m.metrics.ObserveEffect(d.Effect.String(), err == nil, time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.logger.Error("wizard effect failed", "error", err, "effect", d.Effect.String(), "command", d.Command.Type)
		return err
	}
	return nil
}

func (m *Machine) trackAdvanced(ctx context.Context, d Decision) {
	switch d.Command.Type {
	case CmdSubmitSignup, CmdSubmitSocial:
		acct := d.Data.Account
		if d.Command.Type == CmdSubmitSocial {
			m.tracker.Track(ctx, "social_login_success", map[string]any{"provider": string(acct.Method)})
		}
		m.tracker.Track(ctx, "account_created", map[string]any{
			"method":     string(acct.Method),
			"utm_source": d.Data.UTM.Source,
		})
	case CmdSubmitProfile:
		m.tracker.Track(ctx, "profile_completed", nil)
	case CmdSkipProfile:
		m.tracker.Track(ctx, "profile_skipped", nil)
	}
}

func (m *Machine) timezone(requested string) string {
	if requested != "" {
		if _, err := time.LoadLocation(requested); err == nil {
			return requested
		}
	}
	return m.defaultTZ
}

func (m *Machine) load(ctx context.Context, id string) (State, error) {
	raw, err := m.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return State{}, ErrSessionNotFound
		}
		return State{}, fmt.Errorf("signup: load session: %w", err)
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return State{}, fmt.Errorf("signup: decode session: %w", err)
	}
	if st.Step < StepSignup || int(st.Step) > StepCount {
		return State{}, fmt.Errorf("signup: session %s holds invalid step %d", id, st.Step)
	}
	return st, nil
}

func (m *Machine) save(ctx context.Context, st State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("signup: encode session: %w", err)
	}
	if err := m.store.Put(ctx, st.SessionID, raw, m.sessionTTL); err != nil {
		return fmt.Errorf("signup: save session: %w", err)
	}
	return nil
}

func utmProps(utm UTM) map[string]any {
	props := map[string]any{"utm_source": utm.Source}
	for key, v := range map[string]*string{
		"utm_medium":   utm.Medium,
		"utm_campaign": utm.Campaign,
		"utm_content":  utm.Content,
		"utm_term":     utm.Term,
	} {
		if v != nil {
			props[key] = *v
		}
	}
	return props
}

type nopTracker struct{}

func (nopTracker) Track(context.Context, string, map[string]any) {}

// inFlightHolder builds a gate token that is unique per dispatch while still
// naming the button that triggered it.
func inFlightHolder(button, token string) string {
	return button + "|" + token
}

// holderButton extracts the button id from a gate token.
func holderButton(holder string) string {
	button, _, _ := strings.Cut(holder, "|")
	return button
}
