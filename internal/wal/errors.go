package wal

import "errors"

var (
	// ErrTooLargeValue is returned when a single record cannot fit in any
	// segment, even an empty one.
	ErrTooLargeValue = errors.New("wal: value too large for segment")
	// ErrInvalidOption is returned by Open when the WAL's Options fail
	// validation (extension must start with ".", block cache must not
	// exceed segment size).
	ErrInvalidOption = errors.New("wal: invalid option")
	// ErrSegmentNotFound is returned by Read when the position names a
	// segment id the WAL no longer holds.
	ErrSegmentNotFound = errors.New("wal: segment not found")
	// ErrEndOfSegments is returned by Reader.Next once every segment in
	// its snapshot has been exhausted.
	ErrEndOfSegments = errors.New("wal: end of segments")
)
