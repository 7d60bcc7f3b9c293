package signup

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Effect is the external operation a transition must complete before the
// step advances.
type Effect int

const (
	EffectNone Effect = iota
	EffectCreateAccount
	EffectUpdateProfile
)

func (e Effect) String() string {
	switch e {
	case EffectCreateAccount:
		return "create_account"
	case EffectUpdateProfile:
		return "update_profile"
	}
	return "none"
}

// Placeholder identity used until a real provider hands back the profile.
const (
	socialFirstName = "John"
	socialEmail     = "john@example.com"
)

// Decision is the outcome of Decide. It carries the merged data but does
// not change any state until Apply is called.
type Decision struct {
	Command     Command
	From        Step
	Data        UserSignupData
	Effect      Effect
	Advance     bool
	FieldErrors FieldErrors
}

// Rejected reports whether validation failed.
func (d Decision) Rejected() bool {
	return len(d.FieldErrors) > 0
}

// Decide validates cmd against state and prepares the merge. It is pure:
// state is not modified and no effect runs.
func Decide(state State, cmd Command, now time.Time) (Decision, error) {
	want, err := cmd.step()
	if err != nil {
		return Decision{}, err
	}
	if state.Step != want {
		return Decision{}, fmt.Errorf("%w: %s needs step %d, session is on step %d", ErrWrongStep, cmd.Type, want, state.Step)
	}

	d := Decision{Command: cmd, From: state.Step, Data: state.Data}
	switch cmd.Type {
	case CmdSubmitSignup:
		if errs := ValidateStep(StepSignup, cmd.Fields); len(errs) > 0 {
			d.FieldErrors = errs
			return d, nil
		}
		d.Data.Account = &Account{
			FirstName:    strings.TrimSpace(cmd.Fields[FieldFirstName]),
			Email:        strings.ToLower(strings.TrimSpace(cmd.Fields[FieldEmail])),
			Password:     cmd.Fields[FieldPassword],
			SendReminder: cmd.Fields.Checked(FieldSendReminder),
			Method:       MethodEmail,
			CreatedAt:    now,
		}
		d.Effect = EffectCreateAccount
		d.Advance = true

	case CmdSubmitSocial:
		provider, err := ParseProvider(cmd.Provider)
		if err != nil {
			return Decision{}, err
		}
		d.Data.Account = &Account{
			FirstName:    socialFirstName,
			Email:        socialEmail,
			SendReminder: true,
			Method:       provider,
			CreatedAt:    now,
		}
		d.Effect = EffectCreateAccount
		d.Advance = true

	case CmdSubmitProfile:
		profile, errs := parseProfile(cmd.Fields)
		if len(errs) > 0 {
			d.FieldErrors = errs
			return d, nil
		}
		d.Data.Profile = profile
		d.Effect = EffectUpdateProfile
		d.Advance = true

	case CmdSkipProfile:
		d.Advance = true
	}
	return d, nil
}

// Apply commits the decision: merged data replaces the old record and the
// step moves forward by exactly one. Rejected decisions leave state as is.
func (d Decision) Apply(state State) State {
	if d.Rejected() || !d.Advance || state.Step != d.From {
		return state
	}
	MustStep(d.From + 1)
	state.Data = d.Data
	state.Step = d.From + 1
	state.Notice = nil
	return state
}

// FailureMessage is the notice shown when the decision's effect fails.
func (d Decision) FailureMessage() string {
	switch d.Command.Type {
	case CmdSubmitSocial:
		if d.Data.Account != nil {
			return fmt.Sprintf("%s login failed. Please try again.", d.Data.Account.Method)
		}
	case CmdSubmitProfile:
		return "Failed to save profile. Please try again."
	}
	return "An error occurred during signup. Please try again."
}

func parseProfile(fields Fields) (*Profile, FieldErrors) {
	profile := &Profile{}
	errs := FieldErrors{}

	if title := strings.TrimSpace(fields[FieldJobTitle]); title != "" {
		if utf8.RuneCountInString(title) > maxJobTitleLen {
			errs[FieldJobTitle] = fmt.Sprintf("Job title must be at most %d characters", maxJobTitleLen)
		} else {
			profile.JobTitle = &title
		}
	}
	if raw := strings.TrimSpace(fields[FieldCareerGoal]); raw != "" {
		goal := CareerGoal(raw)
		if !goal.Valid() {
			errs[FieldCareerGoal] = "Please choose a valid career goal"
		} else {
			profile.CareerGoal = &goal
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return profile, nil
}
