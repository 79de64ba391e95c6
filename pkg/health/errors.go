package health

import "errors"

var (
	// ErrPathUnavailable is returned when read/write access to a storage
	// path cannot be established.
	ErrPathUnavailable = errors.New("storage path is not available")

	// ErrIOTimeout is returned when the I/O performance test exceeds its
	// configured ceiling.
	ErrIOTimeout = errors.New("io test exceeded time ceiling")

	// ErrIntegrityMismatch is returned when filesystem round-trip
	// verification reads back different content than was written.
	ErrIntegrityMismatch = errors.New("content verification mismatch")

	// ErrUnknownStorage is returned when a check targets neither primary
	// nor fallback storage.
	ErrUnknownStorage = errors.New("unknown storage type")
)
