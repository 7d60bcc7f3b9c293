package signup

import "fmt"

// CommandType enumerates what the presenter can ask the wizard to do.
type CommandType string

const (
	CmdSubmitSignup        CommandType = "submit_signup"
	CmdSubmitSocial        CommandType = "submit_social"
	CmdSubmitProfile       CommandType = "submit_profile"
	CmdSkipProfile         CommandType = "skip_profile"
	CmdAddCalendarReminder CommandType = "add_calendar_reminder"
	CmdStartJournaling     CommandType = "start_journaling"
)

// Command is one user action mapped from a UI event.
type Command struct {
	Type     CommandType `json:"type"`
	Fields   Fields      `json:"fields,omitempty"`
	Provider string      `json:"provider,omitempty"`
}

func SubmitSignup(fields Fields) Command {
	return Command{Type: CmdSubmitSignup, Fields: fields}
}

func SubmitSocial(provider string) Command {
	return Command{Type: CmdSubmitSocial, Provider: provider}
}

func SubmitProfile(fields Fields) Command {
	return Command{Type: CmdSubmitProfile, Fields: fields}
}

func SkipProfile() Command { return Command{Type: CmdSkipProfile} }

func AddCalendarReminder() Command { return Command{Type: CmdAddCalendarReminder} }

func StartJournaling() Command { return Command{Type: CmdStartJournaling} }

// step returns the only step on which the command is legal.
func (c Command) step() (Step, error) {
	switch c.Type {
	case CmdSubmitSignup, CmdSubmitSocial:
		return StepSignup, nil
	case CmdSubmitProfile, CmdSkipProfile:
		return StepProfile, nil
	case CmdAddCalendarReminder, CmdStartJournaling:
		return StepSuccess, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCommand, c.Type)
}

// Mutating reports whether the command may change the session state.
func (c Command) Mutating() bool {
	switch c.Type {
	case CmdAddCalendarReminder, CmdStartJournaling:
		return false
	}
	return true
}

// ButtonID is the control that triggered the command. It doubles as the
// in-flight marker so the presenter can show the right spinner.
func (c Command) ButtonID() string {
	switch c.Type {
	case CmdSubmitSignup:
		return ButtonCreateAccount
	case CmdSubmitSocial:
		if p, err := ParseProvider(c.Provider); err == nil {
			return string(p) + "-btn"
		}
		return ButtonGoogle
	case CmdSubmitProfile:
		return ButtonSaveProfile
	case CmdSkipProfile:
		return ButtonSkipProfile
	case CmdAddCalendarReminder:
		return ButtonAddCalendar
	case CmdStartJournaling:
		return ButtonStartJournaling
	}
	return ""
}
