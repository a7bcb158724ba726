package segment

import "errors"

var (
	// ErrSegmentClosed is returned by any operation on a closed segment.
	ErrSegmentClosed = errors.New("segment: closed")
	// ErrInvalidCheckSum is returned when a chunk's stored CRC does not
	// match the recomputed CRC of its header tail and payload.
	ErrInvalidCheckSum = errors.New("segment: invalid checksum")
	// ErrEndOfSegment is returned once a read cursor passes the end of the
	// segment's current size.
	ErrEndOfSegment = errors.New("segment: end of segment")
)
