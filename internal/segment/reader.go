package segment

// Reader is a streaming cursor over one segment's chunks. Next decodes one
// logical record (a Full chunk, or a First..Last run) and advances past it.
type Reader struct {
	seg         *Segment
	blockNumber uint32
	chunkOffset int64
}

// ID returns the id of the segment this reader walks.
func (r *Reader) ID() uint32 { return r.seg.id }

// BlockNumber returns the reader's current block cursor.
func (r *Reader) BlockNumber() uint32 { return r.blockNumber }

// ChunkOffset returns the reader's current offset cursor.
func (r *Reader) ChunkOffset() int64 { return r.chunkOffset }

// Next reads the record starting at the reader's cursor and advances the
// cursor to the following chunk boundary. It returns ErrEndOfSegment once
// the cursor reaches the end of the segment.
func (r *Reader) Next() ([]byte, ChunkPosition, error) {
	startBlock, startOffset := r.blockNumber, r.chunkOffset
	payload, next, err := r.seg.readFrom(startBlock, startOffset)
	if err != nil {
		return nil, ChunkPosition{}, err
	}
	chunkSize := (int64(next.BlockNumber)*BlockSize + next.ChunkOffset) -
		(int64(startBlock)*BlockSize + startOffset)
	pos := ChunkPosition{
		SegmentID:   r.seg.id,
		BlockNumber: startBlock,
		ChunkOffset: startOffset,
		ChunkSize:   uint32(chunkSize),
	}
	r.blockNumber, r.chunkOffset = next.BlockNumber, next.ChunkOffset
	return payload, pos, nil
}
