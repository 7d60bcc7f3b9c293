package signup

import "fmt"

// Step is a 1-based wizard position.
type Step int

const (
	StepSignup Step = iota + 1
	StepProfile
	StepSuccess
)

// StepCount is the number of configured steps.
const StepCount = int(StepSuccess)

// Button ids the presenter renders loading state for.
const (
	ButtonCreateAccount   = "create-account-btn"
	ButtonGoogle          = "google-btn"
	ButtonLinkedIn        = "linkedin-btn"
	ButtonSaveProfile     = "save-profile-btn"
	ButtonSkipProfile     = "skip-profile-btn"
	ButtonAddCalendar     = "add-calendar-btn"
	ButtonStartJournaling = "start-journaling-btn"
)

// StepDef describes one screen of the wizard.
type StepDef struct {
	Step     Step
	Name     string
	Required []FieldID
	Order    []FieldID
	Buttons  []string
}

var stepDefs = [...]StepDef{
	{
		Step:     StepSignup,
		Name:     "signup",
		Required: []FieldID{FieldFirstName, FieldEmail, FieldPassword},
		Order:    []FieldID{FieldFirstName, FieldEmail, FieldPassword, FieldSendReminder},
		Buttons:  []string{ButtonCreateAccount, ButtonGoogle, ButtonLinkedIn},
	},
	{
		Step:    StepProfile,
		Name:    "profile",
		Order:   []FieldID{FieldJobTitle, FieldCareerGoal},
		Buttons: []string{ButtonSaveProfile, ButtonSkipProfile},
	},
	{
		Step:    StepSuccess,
		Name:    "success",
		Buttons: []string{ButtonAddCalendar, ButtonStartJournaling},
	},
}

// MustStep returns the definition of s. Asking for a step outside 1..StepCount
// is a programming error and panics.
func MustStep(s Step) StepDef {
	if s < StepSignup || int(s) > StepCount {
		panic(fmt.Sprintf("signup: step %d out of range 1..%d", s, StepCount))
	}
	return stepDefs[s-1]
}

// Terminal reports whether s is the confirmation step.
func (s Step) Terminal() bool {
	return int(s) == StepCount
}
