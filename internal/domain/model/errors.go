package model

import "errors"

// Sentinel error kinds for the scoring domain. Callers match them with errors.Is.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrMissingFeature    = errors.New("missing feature")
	ErrUnknownUser       = errors.New("unknown user")
	ErrUnknownCombatant  = errors.New("unknown combatant")
	ErrUnknownConflict   = errors.New("unknown conflict")
	ErrBoundsNotComputed = errors.New("bounds not computed")
)
