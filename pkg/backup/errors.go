package backup

import "errors"

var (
	// ErrSourceMissing means the song's primary file no longer exists.
	ErrSourceMissing = errors.New("source file not found")
	// ErrChecksumMismatch means a copied file did not verify against its source.
	ErrChecksumMismatch = errors.New("checksum mismatch")
)
