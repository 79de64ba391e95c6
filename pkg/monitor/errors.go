package monitor

import "errors"

var (
	// ErrInvalidTarget is returned when a switch targets neither primary
	// nor fallback.
	ErrInvalidTarget = errors.New("invalid storage target")

	// ErrTargetUnavailable is returned when a switch targets an endpoint
	// the probe reports as unreachable.
	ErrTargetUnavailable = errors.New("target storage is not available")
)
