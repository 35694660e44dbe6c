package overlay

import "errors"

var (
	// ErrAdmissionRejected is returned by Place when the registry is full.
	// It is advisory: nothing was created and the caller can carry on.
	ErrAdmissionRejected = errors.New("overlay: admission rejected, registry full")

	// ErrClosed is returned by Place after the manager has been torn down.
	ErrClosed = errors.New("overlay: manager closed")

	// Construction failures.
	ErrNoMap            = errors.New("overlay: map handle is required")
	ErrNoMountContainer = errors.New("overlay: map has no mount container")
	ErrNoLoop           = errors.New("overlay: schedule loop is required")
	ErrNoVisualFactory  = errors.New("overlay: visual factory is required")
	ErrInvalidConfig    = errors.New("overlay: invalid config")
)
