// Package segment implements the chunked, CRC-protected, block-aligned
// record container described in spec.md §4.C. Each Segment is a single
// append-only file made of fixed 32 KiB blocks; a record too large for the
// remaining block space is carved into First/Middle/Last chunks. Reads go
// through an optional shared LRU of decoded blocks.
//
// Grounded on _examples/original_source/segment.hpp (Segment::write,
// Segment::readImpl, SegmentReader::next) with the on-disk framing
// translated from the C++ union/span encoding to explicit little-endian
// byte layout.
package segment

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"barrelkv/internal/bytesx"
	"barrelkv/internal/lru"
)

const (
	// BlockSize is the fixed logical block size every segment file is
	// divided into.
	BlockSize = 32 * 1024
	// HeaderSize is the on-disk size of a chunk header: crc(4) + length(2) + type(1).
	HeaderSize = 7
	// FilePerm is the mode segment files are created with.
	FilePerm = 0o644
)

// ChunkType distinguishes whether a chunk carries a whole record or a
// fragment of one spanning multiple blocks.
type ChunkType uint8

const (
	ChunkFull ChunkType = iota
	ChunkFirst
	ChunkMiddle
	ChunkLast
)

// ID identifies a segment file within a WAL.
type ID = uint32

// ChunkPosition locates a chunk (or the first chunk of a multi-chunk
// record) within a segment. Equality per spec.md invariant I2/DATA MODEL
// considers only (SegmentID, BlockNumber, ChunkOffset); ChunkSize is
// informational, populated by the writer for the caller's bookkeeping.
type ChunkPosition struct {
	SegmentID   uint32
	BlockNumber uint32
	ChunkOffset int64
	ChunkSize   uint32
}

// Equal compares the identity fields only, per spec.md's DATA MODEL note
// that ChunkSize must not participate in position equality.
func (p ChunkPosition) Equal(o ChunkPosition) bool {
	return p.SegmentID == o.SegmentID && p.BlockNumber == o.BlockNumber && p.ChunkOffset == o.ChunkOffset
}

// EncodedPositionSize is the fixed width of a hint-record position field.
const EncodedPositionSize = 16

// EncodePosition serializes the identity fields of pos as 16 little-endian
// bytes: SegmentID(4) BlockNumber(4) ChunkOffset(8). This is the explicit
// layout spec.md's Open Questions section asks for in place of memory-
// dumping the C++ struct.
func EncodePosition(pos ChunkPosition) [EncodedPositionSize]byte {
	var buf [EncodedPositionSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], pos.SegmentID)
	binary.LittleEndian.PutUint32(buf[4:8], pos.BlockNumber)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(pos.ChunkOffset))
	return buf
}

// DecodePosition parses the layout EncodePosition produces.
func DecodePosition(buf []byte) (ChunkPosition, error) {
	if len(buf) < EncodedPositionSize {
		return ChunkPosition{}, fmt.Errorf("segment: short hint position (%d bytes)", len(buf))
	}
	return ChunkPosition{
		SegmentID:   binary.LittleEndian.Uint32(buf[0:4]),
		BlockNumber: binary.LittleEndian.Uint32(buf[4:8]),
		ChunkOffset: int64(binary.LittleEndian.Uint64(buf[8:16])),
	}, nil
}

// Segment is a single append-only, block-structured file.
type Segment struct {
	id                 uint32
	path               string
	fd                 *os.File
	currentBlockNumber uint32
	currentBlockSize   uint32
	cache              *lru.Cache[uint64, []byte]
	closed             bool
}

// FileName builds the nine-digit zero-padded segment file name spec.md §4.D
// mandates.
func FileName(dirPath, ext string, id uint32) string {
	return fmt.Sprintf("%s/%09d%s", dirPath, id, ext)
}

// Open opens (creating if absent) the segment file for id, deriving the
// current block cursor from the file's end offset.
func Open(dirPath, ext string, id uint32, cache *lru.Cache[uint64, []byte]) (*Segment, error) {
	path := FileName(dirPath, ext, id)
	fd, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, FilePerm)
	if err != nil {
		return nil, fmt.Errorf("segment: open %s: %w", path, err)
	}
	off, err := fd.Seek(0, io.SeekEnd)
	if err != nil {
		fd.Close()
		return nil, fmt.Errorf("segment: seek %s: %w", path, err)
	}
	return &Segment{
		id:                 id,
		path:               path,
		fd:                 fd,
		currentBlockNumber: uint32(off / BlockSize),
		currentBlockSize:   uint32(off % BlockSize),
		cache:              cache,
	}, nil
}

// ID returns the segment's id.
func (s *Segment) ID() uint32 { return s.id }

// Size returns the segment's current logical size in bytes (invariant I1).
func (s *Segment) Size() int64 {
	return int64(s.currentBlockNumber)*BlockSize + int64(s.currentBlockSize)
}

// Sync fsyncs the segment file.
func (s *Segment) Sync() error {
	if s.closed {
		return ErrSegmentClosed
	}
	return s.fd.Sync()
}

// Close closes the underlying file.
func (s *Segment) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.fd.Close()
}

// Remove closes and unlinks the segment file.
func (s *Segment) Remove() error {
	if err := s.Close(); err != nil {
		return err
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Write appends payload as one or more chunks, returning the position of
// the first chunk. See spec.md §4.C for the block-padding and chunk-
// splitting rules this follows exactly.
func (s *Segment) Write(payload []byte) (ChunkPosition, error) {
	if s.closed {
		return ChunkPosition{}, ErrSegmentClosed
	}

	if s.currentBlockSize+HeaderSize >= BlockSize {
		if s.currentBlockSize < BlockSize {
			padding := int64(BlockSize - s.currentBlockSize)
			if err := s.fd.Truncate(s.Size() + padding); err != nil {
				return ChunkPosition{}, fmt.Errorf("segment: pad %s: %w", s.path, err)
			}
		}
		s.currentBlockNumber++
		s.currentBlockSize = 0
	}

	pos := ChunkPosition{
		SegmentID:   s.id,
		BlockNumber: s.currentBlockNumber,
		ChunkOffset: int64(s.currentBlockSize),
	}
	dataSize := uint32(len(payload))

	if s.currentBlockSize+dataSize+HeaderSize <= BlockSize {
		if err := s.writeChunk(payload, ChunkFull); err != nil {
			return ChunkPosition{}, err
		}
		pos.ChunkSize = dataSize + HeaderSize
		return pos, nil
	}

	leftSize := int64(dataSize)
	var blockCount uint32
	for leftSize > 0 {
		chunkSize := int64(BlockSize) - int64(s.currentBlockSize) - HeaderSize
		if chunkSize > leftSize {
			chunkSize = leftSize
		}
		start := int64(dataSize) - leftSize
		chunk := payload[start : start+chunkSize]

		var typ ChunkType
		switch {
		case leftSize == int64(dataSize):
			typ = ChunkFirst
		case leftSize == chunkSize:
			typ = ChunkLast
		default:
			typ = ChunkMiddle
		}
		if err := s.writeChunk(chunk, typ); err != nil {
			return ChunkPosition{}, err
		}
		leftSize -= chunkSize
		blockCount++
	}
	pos.ChunkSize = blockCount*HeaderSize + dataSize
	return pos, nil
}

func (s *Segment) writeChunk(data []byte, typ ChunkType) error {
	var header [HeaderSize]byte
	binary.LittleEndian.PutUint16(header[4:6], uint16(len(data)))
	header[6] = byte(typ)
	crc := bytesx.Checksum(header[4:7], data)
	binary.LittleEndian.PutUint32(header[0:4], crc)

	if _, err := s.fd.Write(header[:]); err != nil {
		return fmt.Errorf("segment: write header %s: %w", s.path, err)
	}
	if len(data) > 0 {
		if _, err := s.fd.Write(data); err != nil {
			return fmt.Errorf("segment: write payload %s: %w", s.path, err)
		}
	}

	s.currentBlockSize += HeaderSize + uint32(len(data))
	if s.currentBlockSize == BlockSize {
		s.currentBlockNumber++
		s.currentBlockSize = 0
	}
	return nil
}

// Read returns the full payload of the record starting at (blockNumber,
// chunkOffset).
func (s *Segment) Read(blockNumber uint32, chunkOffset int64) (bytesx.Bytes, error) {
	payload, _, err := s.readFrom(blockNumber, chunkOffset)
	if err != nil {
		return bytesx.Bytes{}, err
	}
	return bytesx.New(payload), nil
}

func (s *Segment) cacheKey(blockNumber uint32) uint64 {
	return uint64(s.id)<<32 | uint64(blockNumber)
}

// readFrom decodes the chunk chain starting at (blockNumber, chunkOffset)
// and returns the reassembled payload plus the position immediately after
// it (the next chunk boundary).
func (s *Segment) readFrom(blockNumber uint32, chunkOffset int64) ([]byte, ChunkPosition, error) {
	if s.closed {
		return nil, ChunkPosition{}, ErrSegmentClosed
	}
	segSize := s.Size()
	var result []byte

	for {
		sliceSize := int64(BlockSize)
		offset := int64(blockNumber) * BlockSize
		if offset+BlockSize > segSize {
			sliceSize = segSize - offset
		}
		if chunkOffset >= sliceSize {
			return nil, ChunkPosition{}, ErrEndOfSegment
		}

		block, err := s.readBlock(blockNumber, offset, sliceSize)
		if err != nil {
			return nil, ChunkPosition{}, err
		}

		header := block[chunkOffset : chunkOffset+HeaderSize]
		length := int64(binary.LittleEndian.Uint16(header[4:6]))
		typ := ChunkType(header[6])
		start := chunkOffset + HeaderSize
		payload := block[start : start+length]

		crc := bytesx.Checksum(header[4:7], payload)
		saved := binary.LittleEndian.Uint32(header[0:4])
		if crc != saved {
			return nil, ChunkPosition{}, ErrInvalidCheckSum
		}
		result = append(result, payload...)

		checksumEnd := chunkOffset + HeaderSize + length
		if typ == ChunkFull || typ == ChunkLast {
			nextBlock, nextOffset := blockNumber, checksumEnd
			if nextOffset+HeaderSize >= BlockSize {
				nextBlock++
				nextOffset = 0
			}
			return result, ChunkPosition{SegmentID: s.id, BlockNumber: nextBlock, ChunkOffset: nextOffset}, nil
		}
		blockNumber++
		chunkOffset = 0
	}
}

func (s *Segment) readBlock(blockNumber uint32, offset, sliceSize int64) ([]byte, error) {
	key := s.cacheKey(blockNumber)
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			return v, nil
		}
	}
	block := make([]byte, sliceSize)
	if _, err := s.fd.ReadAt(block, offset); err != nil && err != io.EOF {
		return nil, fmt.Errorf("segment: read %s: %w", s.path, err)
	}
	if s.cache != nil && sliceSize == BlockSize {
		s.cache.Put(key, block)
	}
	return block, nil
}

// Reader returns a streaming cursor over this segment's chunks, starting
// at the beginning of the file.
func (s *Segment) Reader() *Reader {
	return &Reader{seg: s}
}
