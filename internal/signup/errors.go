package signup

import "errors"

var (
	// ErrSessionNotFound is returned when a wizard session is unknown or expired.
	ErrSessionNotFound = errors.New("signup: session not found")

	// ErrWrongStep is returned when a command is not legal on the current step.
	ErrWrongStep = errors.New("signup: command not allowed on current step")

	// ErrTransitionInFlight is returned while an earlier transition of the
	// same session is still waiting on its effect.
	ErrTransitionInFlight = errors.New("signup: transition already in flight")

	// ErrUnknownProvider is returned for social providers other than google and linkedin.
	ErrUnknownProvider = errors.New("signup: unknown social provider")

	// ErrUnknownCommand is returned for unrecognised command types.
	ErrUnknownCommand = errors.New("signup: unknown command")
)
