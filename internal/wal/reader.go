package wal

import (
	"errors"

	"barrelkv/internal/segment"
)

// Reader walks a snapshot of segment readers in ascending id order,
// crossing segment boundaries transparently until every segment is spent.
type Reader struct {
	readers []*segment.Reader
	idx     int
}

// Next returns the next record's payload and position, advancing past
// segment boundaries automatically. It returns ErrEndOfSegments once every
// segment in the snapshot is exhausted.
func (r *Reader) Next() ([]byte, segment.ChunkPosition, error) {
	if r.idx >= len(r.readers) {
		return nil, segment.ChunkPosition{}, ErrEndOfSegments
	}
	data, pos, err := r.readers[r.idx].Next()
	if err != nil {
		if errors.Is(err, segment.ErrEndOfSegment) {
			r.idx++
			return r.Next()
		}
		return nil, segment.ChunkPosition{}, err
	}
	return data, pos, nil
}

// SkipCurrentSegment advances past the entire segment currently being read,
// used by recovery to skip segments already folded into a merge.
func (r *Reader) SkipCurrentSegment() {
	r.idx++
}

// CurrentSegmentID returns the id of the segment the cursor currently sits
// in. It panics if the reader is already exhausted; callers must check
// Next's error first.
func (r *Reader) CurrentSegmentID() uint32 {
	return r.readers[r.idx].ID()
}

// Done reports whether every segment in the snapshot has been consumed.
func (r *Reader) Done() bool {
	return r.idx >= len(r.readers)
}
