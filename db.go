// Package barrelkv implements a log-structured, append-only, embedded
// key-value store following the Bitcask design: mutations are appended to
// a segmented write-ahead log and a wholly in-memory index maps each live
// key to the on-disk location of its most recent value.
//
// Grounded on _examples/original_source/db.hpp and db.cpp.
package barrelkv

import (
	"fmt"
	"path/filepath"
	"sync"

	"barrelkv/internal/dirlock"
	"barrelkv/internal/idgen"
	"barrelkv/internal/index"
	"barrelkv/internal/record"
	"barrelkv/internal/segment"
	"barrelkv/internal/wal"
)

// DB is a single-process, single-writer embedded key-value store rooted at
// one exclusively-owned directory.
type DB struct {
	options Options

	mu sync.RWMutex

	dataWAL *wal.WAL
	hintWAL *wal.WAL
	index   *index.Index
	idGen   *idgen.Node

	lock *dirlock.Lock

	closed  bool
	merging bool
	mergeMu sync.Mutex
}

// Stats is a read-only snapshot of database state, exposed for operator
// tooling per SPEC_FULL.md §3 (not named by spec.md, needed by any
// introspection layer).
type Stats struct {
	KeyCount          int
	ActiveSegmentID   uint32
	OlderSegmentCount int
	Merging           bool
}

// Open validates options, takes the directory's exclusive lock, finishes
// any interrupted merge, and replays the hint file and data WAL into a
// fresh in-memory index, per spec.md §4.H.
func Open(options Options) (*DB, error) {
	if err := validateOptions(&options); err != nil {
		return nil, err
	}

	lock, err := dirlock.Acquire(filepath.Join(options.DirPath, dirlock.FileName))
	if err != nil {
		if err == dirlock.ErrLocked {
			return nil, ErrDatabaseIsUsing
		}
		return nil, err
	}

	db := &DB{
		options: options,
		index:   index.New(),
		idGen:   idgen.NewNode(1),
		lock:    lock,
	}

	if err := finishInterruptedMerge(options.DirPath); err != nil {
		lock.Release()
		return nil, fmt.Errorf("barrelkv: finish interrupted merge: %w", err)
	}

	dataWAL, err := wal.Open(wal.Options{
		DirPath:        options.DirPath,
		SegmentSize:    options.SegmentSize,
		SegmentFileExt: segmentFileExt,
		BlockCache:     options.BlockCache,
		SyncWrite:      options.SyncWrite,
		BytesPerSync:   options.BytesPerSync,
	})
	if err != nil {
		lock.Release()
		return nil, fmt.Errorf("barrelkv: open wal: %w", err)
	}
	db.dataWAL = dataWAL

	hintWAL, err := wal.Open(wal.Options{
		DirPath:        options.DirPath,
		SegmentSize:    hintSegmentSize,
		SegmentFileExt: hintFileExt,
		BlockCache:     0,
	})
	if err != nil {
		dataWAL.Close()
		lock.Release()
		return nil, fmt.Errorf("barrelkv: open hint wal: %w", err)
	}
	db.hintWAL = hintWAL

	if err := db.loadHintFile(); err != nil {
		db.dataWAL.Close()
		db.hintWAL.Close()
		lock.Release()
		return nil, fmt.Errorf("barrelkv: load hint file: %w", err)
	}
	if err := db.loadIndexFromWAL(); err != nil {
		db.dataWAL.Close()
		db.hintWAL.Close()
		lock.Release()
		return nil, fmt.Errorf("barrelkv: load index from wal: %w", err)
	}

	return db, nil
}

// Close closes the WAL and hint WAL, releases the directory lock, and
// marks the database closed. Idempotent.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	if err := db.dataWAL.Close(); err != nil {
		return err
	}
	if err := db.hintWAL.Close(); err != nil {
		return err
	}
	if err := db.lock.Release(); err != nil {
		return err
	}
	db.closed = true
	return nil
}

// Sync fsyncs the data WAL.
func (db *DB) Sync() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrDBClosed
	}
	return db.dataWAL.Sync()
}

// Stats returns a snapshot of database state.
func (db *DB) Stats() Stats {
	db.mu.RLock()
	defer db.mu.RUnlock()
	db.mergeMu.Lock()
	merging := db.merging
	db.mergeMu.Unlock()
	return Stats{
		KeyCount:          db.index.Size(),
		ActiveSegmentID:   db.dataWAL.ActiveSegmentID(),
		OlderSegmentCount: db.dataWAL.OlderSegmentCount(),
		Merging:           merging,
	}
}

// NewBatch creates a batch and acquires db's lock for its full lifetime,
// per spec.md §4.G/§5.
func (db *DB) NewBatch(options BatchOptions) *Batch {
	return newBatch(db, options)
}

// Put stores value under key via a single-record batch.
func (db *DB) Put(key, value []byte) error {
	b := db.NewBatch(BatchOptions{})
	if err := b.Put(key, value); err != nil {
		b.Rollback()
		return err
	}
	return b.Commit()
}

// Get returns the current value for key.
func (db *DB) Get(key []byte) ([]byte, error) {
	b := db.NewBatch(BatchOptions{ReadOnly: true})
	defer b.Rollback()
	return b.Get(key)
}

// Delete removes key.
func (db *DB) Delete(key []byte) error {
	b := db.NewBatch(BatchOptions{})
	if err := b.Delete(key); err != nil {
		b.Rollback()
		return err
	}
	return b.Commit()
}

// Exist reports whether key currently resolves to a live value.
func (db *DB) Exist(key []byte) (bool, error) {
	b := db.NewBatch(BatchOptions{ReadOnly: true})
	defer b.Rollback()
	return b.Exist(key)
}

// readValueAt reads and decodes the record at pos, returning its value. A
// Deleted record reached through the index is an invariant violation
// (I6) and is fatal, per spec.md §4.G/§7.
func (db *DB) readValueAt(pos segment.ChunkPosition) ([]byte, error) {
	data, err := db.dataWAL.Read(pos)
	if err != nil {
		return nil, err
	}
	rec, err := record.Decode(data)
	if err != nil {
		return nil, err
	}
	if rec.Type == record.Deleted {
		db.options.Logger.Panicf("barrelkv: invariant violation: index points to a Deleted record at %+v", pos)
	}
	return rec.Value, nil
}
