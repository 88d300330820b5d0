package billing

import "errors"

var (
	// ErrSaveInFlight indicates a second submit while a save is running.
	ErrSaveInFlight = errors.New("billing: save already in progress")
	// ErrInvalidState indicates a workflow call out of sequence.
	ErrInvalidState = errors.New("billing: invalid workflow state")
	// ErrValidationBlocked indicates confirmation cannot override a
	// blocking validation failure.
	ErrValidationBlocked = errors.New("billing: validation failures must be fixed before saving")
	// ErrUnknownKind indicates an unrecognized document kind.
	ErrUnknownKind = errors.New("billing: unknown document kind")
)
