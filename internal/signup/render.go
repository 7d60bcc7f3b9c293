package signup

import "time"

// Render is the instruction the presenter draws from. The wizard never
// touches the display itself.
type Render struct {
	SessionID     string             `json:"session_id"`
	ActiveStep    Step               `json:"active_step"`
	StepName      string             `json:"step_name"`
	Progress      []bool             `json:"progress"`
	FieldErrors   FieldErrors        `json:"field_errors,omitempty"`
	FieldWarnings map[FieldID]string `json:"field_warnings,omitempty"`
	FocusField    FieldID            `json:"focus_field,omitempty"`
	ButtonLoading map[string]bool    `json:"button_loading"`
	Notice        *Notice            `json:"notice,omitempty"`
	Account       *Account           `json:"account,omitempty"`
	CalendarURL   string             `json:"calendar_url,omitempty"`
	Redirect      string             `json:"redirect,omitempty"`
}

// RenderState projects state for the presenter. inFlight is the button id of
// an outstanding transition, or empty. Expired notices are dropped.
func RenderState(state State, inFlight string, now time.Time) Render {
	def := MustStep(state.Step)

	progress := make([]bool, StepCount)
	for i := range progress {
		progress[i] = i < int(state.Step)
	}

	loading := make(map[string]bool, len(def.Buttons))
	for _, id := range def.Buttons {
		loading[id] = id == inFlight
	}

	r := Render{
		SessionID:     state.SessionID,
		ActiveStep:    state.Step,
		StepName:      def.Name,
		Progress:      progress,
		ButtonLoading: loading,
		Account:       state.Data.Account,
	}
	if n := state.Notice; n != nil && now.Before(n.ExpiresAt) {
		r.Notice = n
	}
	return r
}

// WithFieldErrors attaches validation failures and the field to focus.
func (r Render) WithFieldErrors(errs FieldErrors) Render {
	if len(errs) == 0 {
		return r
	}
	r.FieldErrors = errs
	if first, ok := errs.First(MustStep(r.ActiveStep).Order); ok {
		r.FocusField = first
	}
	return r
}
