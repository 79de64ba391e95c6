package catalog

import "errors"

var (
	// ErrDatabaseError is returned when a database operation fails.
	ErrDatabaseError = errors.New("database error")

	// ErrSongNotFound is returned when the requested song does not exist.
	ErrSongNotFound = errors.New("song not found")

	// ErrAlertNotFound is returned when the requested alert does not exist.
	ErrAlertNotFound = errors.New("alert not found")

	// ErrInvalidStorageType is returned when a storage type is neither
	// primary nor fallback.
	ErrInvalidStorageType = errors.New("invalid storage type")
)
