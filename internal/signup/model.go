package signup

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// SignupMethod records how the account was created.
type SignupMethod string

const (
	MethodEmail    SignupMethod = "email"
	MethodGoogle   SignupMethod = "google"
	MethodLinkedIn SignupMethod = "linkedin"
)

// ParseProvider accepts the social providers offered on the signup step.
func ParseProvider(raw string) (SignupMethod, error) {
	switch SignupMethod(strings.ToLower(strings.TrimSpace(raw))) {
	case MethodGoogle:
		return MethodGoogle, nil
	case MethodLinkedIn:
		return MethodLinkedIn, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownProvider, raw)
}

// CareerGoal is the primary goal picked on the profile step.
type CareerGoal string

const (
	GoalPromotion        CareerGoal = "promotion"
	GoalSkillDevelopment CareerGoal = "skill-development"
	GoalLeadership       CareerGoal = "leadership"
	GoalCareerChange     CareerGoal = "career-change"
	GoalWorkLifeBalance  CareerGoal = "work-life-balance"
	GoalSalaryIncrease   CareerGoal = "salary-increase"
	GoalOther            CareerGoal = "other"
)

var careerGoals = map[CareerGoal]struct{}{
	GoalPromotion:        {},
	GoalSkillDevelopment: {},
	GoalLeadership:       {},
	GoalCareerChange:     {},
	GoalWorkLifeBalance:  {},
	GoalSalaryIncrease:   {},
	GoalOther:            {},
}

// Valid reports whether g is one of the known goals.
func (g CareerGoal) Valid() bool {
	_, ok := careerGoals[g]
	return ok
}

// DefaultUTMSource is used when the landing URL carried no utm_source.
const DefaultUTMSource = "direct"

// UTM holds campaign attribution captured once when the session starts.
type UTM struct {
	Source   string  `json:"utm_source"`
	Medium   *string `json:"utm_medium,omitempty"`
	Campaign *string `json:"utm_campaign,omitempty"`
	Content  *string `json:"utm_content,omitempty"`
	Term     *string `json:"utm_term,omitempty"`
}

// UTMFromQuery reads utm_* parameters. Only utm_source has a default.
func UTMFromQuery(q url.Values) UTM {
	utm := UTM{
		Source:   DefaultUTMSource,
		Medium:   optional(q, "utm_medium"),
		Campaign: optional(q, "utm_campaign"),
		Content:  optional(q, "utm_content"),
		Term:     optional(q, "utm_term"),
	}
	if src := optional(q, "utm_source"); src != nil {
		utm.Source = *src
	}
	return utm
}

func optional(q url.Values, key string) *string {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return nil
	}
	return &v
}

// Account is filled in by the signup step.
type Account struct {
	FirstName    string       `json:"first_name"`
	Email        string       `json:"email"`
	Password     string       `json:"-"`
	SendReminder bool         `json:"send_reminder"`
	Method       SignupMethod `json:"signup_method"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Profile is filled in by the profile step. Nil fields were not provided.
type Profile struct {
	JobTitle   *string     `json:"job_title"`
	CareerGoal *CareerGoal `json:"career_goal"`
}

// UserSignupData accumulates what the visitor entered. Sections of steps
// not reached yet stay nil.
type UserSignupData struct {
	UTM     UTM      `json:"utm"`
	Account *Account `json:"account,omitempty"`
	Profile *Profile `json:"profile,omitempty"`
}

// Notice is a transient global message shown after an effect failure.
type Notice struct {
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

// State is the whole wizard state of one session.
type State struct {
	SessionID string         `json:"session_id"`
	Step      Step           `json:"step"`
	Data      UserSignupData `json:"data"`
	Timezone  string         `json:"timezone"`
	Notice    *Notice        `json:"notice,omitempty"`
	StartedAt time.Time      `json:"started_at"`
}

// NewState returns a session positioned on the first step.
func NewState(id string, utm UTM, timezone string, now time.Time) State {
	return State{
		SessionID: id,
		Step:      StepSignup,
		Data:      UserSignupData{UTM: utm},
		Timezone:  timezone,
		StartedAt: now,
	}
}

// Location resolves the session timezone, falling back to UTC.
func (s State) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
