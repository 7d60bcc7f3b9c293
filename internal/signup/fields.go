package signup

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// FieldID names a form input.
type FieldID string

const (
	FieldFirstName    FieldID = "firstName"
	FieldEmail        FieldID = "email"
	FieldPassword     FieldID = "password"
	FieldSendReminder FieldID = "sendReminder"
	FieldJobTitle     FieldID = "jobTitle"
	FieldCareerGoal   FieldID = "careerGoal"
)

const (
	minFirstNameLen = 2
	minPasswordLen  = 6
	maxJobTitleLen  = 100
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var fieldLabels = map[FieldID]string{
	FieldFirstName: "First name",
	FieldEmail:     "Email",
	FieldPassword:  "Password",
}

var personalDomains = map[string]struct{}{
	"gmail.com":   {},
	"yahoo.com":   {},
	"hotmail.com": {},
	"outlook.com": {},
}

// Label returns the human label of a field, or the raw id when none is known.
func Label(id FieldID) string {
	if label, ok := fieldLabels[id]; ok {
		return label
	}
	return string(id)
}

// Result is the verdict for a single field.
type Result struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

// Validate checks one raw value. Rules apply in order and the first match
// wins, so an empty required email reports "required" and never a format error.
func Validate(id FieldID, raw string, required bool) Result {
	value := strings.TrimSpace(raw)
	switch {
	case required && value == "":
		return Result{Message: Label(id) + " is required"}
	case id == FieldEmail && value != "" && !emailPattern.MatchString(value):
		return Result{Message: "Please enter a valid email address"}
	case id == FieldPassword && value != "" && utf8.RuneCountInString(value) < minPasswordLen:
		return Result{Message: "Password must be at least 6 characters"}
	case id == FieldFirstName && value != "" && utf8.RuneCountInString(value) < minFirstNameLen:
		return Result{Message: "First name must be at least 2 characters"}
	}
	return Result{Valid: true}
}

// Fields carries raw form values keyed by field id.
type Fields map[FieldID]string

// Checked reports whether a checkbox field was submitted as ticked.
func (f Fields) Checked(id FieldID) bool {
	v, ok := f[id]
	if !ok {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "false", "off", "0":
		return false
	}
	return true
}

// FieldErrors maps failing fields to their message.
type FieldErrors map[FieldID]string

// First returns the first failing field in form order.
func (e FieldErrors) First(order []FieldID) (FieldID, bool) {
	for _, id := range order {
		if _, ok := e[id]; ok {
			return id, true
		}
	}
	return "", false
}

// ValidateStep validates every required field of step. An empty result
// means the step may advance.
func ValidateStep(step Step, fields Fields) FieldErrors {
	errs := FieldErrors{}
	for _, id := range MustStep(step).Required {
		if res := Validate(id, fields[id], true); !res.Valid {
			errs[id] = res.Message
		}
	}
	return errs
}

// FieldWarnings returns non-blocking hints for the signup form.
func FieldWarnings(fields Fields) map[FieldID]string {
	email := strings.ToLower(strings.TrimSpace(fields[FieldEmail]))
	at := strings.LastIndex(email, "@")
	if at < 0 || !emailPattern.MatchString(email) {
		return nil
	}
	if _, personal := personalDomains[email[at+1:]]; !personal {
		return nil
	}
	return map[FieldID]string{FieldEmail: "Consider using your work email for better experience"}
}
