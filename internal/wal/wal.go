// Package wal implements the ordered collection of segments described in
// spec.md §4.D: one active (append) segment, rollover into new segments as
// the active one fills, and a multi-segment streaming reader used by
// recovery and merge.
//
// Grounded on _examples/original_source/wal.hpp (Wal::setup, Wal::write,
// Wal::read, Wal::readerWithMax).
package wal

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"barrelkv/internal/lru"
	"barrelkv/internal/segment"
)

// InitialSegmentID is the id assigned to the first segment of a fresh WAL.
const InitialSegmentID uint32 = 1

// Options configures a WAL. Fields mirror spec.md §6's recognized options.
type Options struct {
	DirPath        string
	SegmentSize    int64
	SegmentFileExt string
	BlockCache     uint32
	SyncWrite      bool
	BytesPerSync   uint32
}

// WAL is the ordered set of segments with exactly one active tail segment.
type WAL struct {
	mu         sync.RWMutex
	options    Options
	active     *segment.Segment
	older      map[uint32]*segment.Segment
	cache      *lru.Cache[uint64, []byte]
	bytesWrite uint32
}

// Open creates or reopens a WAL rooted at options.DirPath, discovering
// existing segment files by their nine-digit id prefix and options.SegmentFileExt.
func Open(options Options) (*WAL, error) {
	if !strings.HasPrefix(options.SegmentFileExt, ".") {
		return nil, ErrInvalidOption
	}
	if options.BlockCache > 0 && uint64(options.BlockCache) > uint64(options.SegmentSize) {
		return nil, ErrInvalidOption
	}
	if err := os.MkdirAll(options.DirPath, 0o755); err != nil {
		return nil, fmt.Errorf("wal: mkdir %s: %w", options.DirPath, err)
	}

	var cache *lru.Cache[uint64, []byte]
	if options.BlockCache > 0 {
		lruSize := int(options.BlockCache / segment.BlockSize)
		if options.BlockCache%segment.BlockSize != 0 {
			lruSize++
		}
		cache = lru.New[uint64, []byte](lruSize, lruSize/10+1)
	}

	entries, err := os.ReadDir(options.DirPath)
	if err != nil {
		return nil, fmt.Errorf("wal: readdir %s: %w", options.DirPath, err)
	}

	var ids []uint32
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, options.SegmentFileExt) {
			continue
		}
		idPart := strings.TrimSuffix(name, options.SegmentFileExt)
		id, err := strconv.ParseUint(idPart, 10, 32)
		if err != nil {
			continue
		}
		ids = append(ids, uint32(id))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	w := &WAL{options: options, older: make(map[uint32]*segment.Segment), cache: cache}

	if len(ids) == 0 {
		active, err := segment.Open(options.DirPath, options.SegmentFileExt, InitialSegmentID, cache)
		if err != nil {
			return nil, err
		}
		w.active = active
		return w, nil
	}

	for i, id := range ids {
		seg, err := segment.Open(options.DirPath, options.SegmentFileExt, id, cache)
		if err != nil {
			return nil, err
		}
		if i == len(ids)-1 {
			w.active = seg
		} else {
			w.older[id] = seg
		}
	}
	return w, nil
}

func (w *WAL) isFull(delta int64) bool {
	return w.active.Size()+delta+segment.HeaderSize > w.options.SegmentSize
}

// Write appends payload to the active segment, rolling over to a new
// segment first if it would not fit, and fsyncing per the sync policy in
// Options.
func (w *WAL) Write(payload []byte) (segment.ChunkPosition, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if int64(len(payload))+segment.HeaderSize > w.options.SegmentSize {
		return segment.ChunkPosition{}, ErrTooLargeValue
	}

	if w.isFull(int64(len(payload))) {
		if err := w.rollover(); err != nil {
			return segment.ChunkPosition{}, err
		}
	}

	pos, err := w.active.Write(payload)
	if err != nil {
		return segment.ChunkPosition{}, err
	}
	w.bytesWrite += pos.ChunkSize

	needSync := w.options.SyncWrite
	if !needSync && w.options.BytesPerSync > 0 {
		needSync = w.bytesWrite >= w.options.BytesPerSync
	}
	if needSync {
		if err := w.active.Sync(); err != nil {
			return segment.ChunkPosition{}, err
		}
		w.bytesWrite = 0
	}
	return pos, nil
}

// rollover fsyncs the active segment, demotes it to older, and opens a
// fresh active segment. Caller must hold w.mu.
func (w *WAL) rollover() error {
	if err := w.active.Sync(); err != nil {
		return err
	}
	w.bytesWrite = 0
	next, err := segment.Open(w.options.DirPath, w.options.SegmentFileExt, w.active.ID()+1, w.cache)
	if err != nil {
		return err
	}
	w.older[w.active.ID()] = w.active
	w.active = next
	return nil
}

// UseNewActiveSegment forces a rollover regardless of remaining space,
// used by merge to freeze the current active segment as the copy boundary.
func (w *WAL) UseNewActiveSegment() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rollover()
}

// Read returns the payload stored at pos.
func (w *WAL) Read(pos segment.ChunkPosition) ([]byte, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	seg := w.segmentFor(pos.SegmentID)
	if seg == nil {
		return nil, ErrSegmentNotFound
	}
	b, err := seg.Read(pos.BlockNumber, pos.ChunkOffset)
	if err != nil {
		return nil, err
	}
	return b.Data(), nil
}

func (w *WAL) segmentFor(id uint32) *segment.Segment {
	if w.active.ID() == id {
		return w.active
	}
	return w.older[id]
}

// ActiveSegmentID returns the id of the current active segment.
func (w *WAL) ActiveSegmentID() uint32 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.active.ID()
}

// OlderSegmentCount returns the number of sealed, non-active segments.
func (w *WAL) OlderSegmentCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.older)
}

// Empty reports whether the WAL holds no older segments and the active
// segment has never been written to.
func (w *WAL) Empty() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.older) == 0 && w.active.Size() == 0
}

// Sync fsyncs the active segment.
func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active.Sync()
}

// Close clears the shared cache and closes every segment. Older segments
// are closed concurrently, bounded, since a WAL that rolled over many
// times otherwise pays their close latency one file at a time.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cache != nil {
		w.cache.Clear()
	}
	if err := closeAllBounded(w.older, (*segment.Segment).Close); err != nil {
		return err
	}
	return w.active.Close()
}

// RemoveFiles clears the shared cache and unlinks every segment file.
func (w *WAL) RemoveFiles() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cache != nil {
		w.cache.Clear()
	}
	if err := closeAllBounded(w.older, (*segment.Segment).Remove); err != nil {
		return err
	}
	return w.active.Remove()
}

// closeAllBounded fans op out over segments with a bounded concurrency,
// so closing/removing a WAL with hundreds of rolled-over segments does not
// serialize on file-close syscalls one at a time.
func closeAllBounded(segments map[uint32]*segment.Segment, op func(*segment.Segment) error) error {
	g := new(errgroup.Group)
	g.SetLimit(8)
	for _, seg := range segments {
		seg := seg
		g.Go(func() error { return op(seg) })
	}
	return g.Wait()
}

// Reader returns a snapshot cursor over every segment with id <= maxSegmentID
// (0 means every segment), sorted ascending by id.
func (w *WAL) Reader(maxSegmentID uint32) *Reader {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var readers []*segment.Reader
	for id, seg := range w.older {
		if maxSegmentID == 0 || id <= maxSegmentID {
			readers = append(readers, seg.Reader())
		}
	}
	if maxSegmentID == 0 || w.active.ID() <= maxSegmentID {
		readers = append(readers, w.active.Reader())
	}
	sort.Slice(readers, func(i, j int) bool { return readers[i].ID() < readers[j].ID() })
	return &Reader{readers: readers}
}
