package lifecycle

import "errors"

var (
	// ErrInvalidTransition is returned when a status transition is not in the
	// allowed-transition table. Callers receive it wrapped with the offending
	// from/to pair; the machine never coerces to a nearby valid state.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidStatus is returned when a status is not a known lifecycle status
	ErrInvalidStatus = errors.New("invalid status")
)
