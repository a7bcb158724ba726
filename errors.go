package barrelkv

import (
	"errors"

	"barrelkv/internal/segment"
	"barrelkv/internal/wal"
)

// Error taxonomy per spec.md §7, grouped by the subsystem that raises them.
var (
	// Database errors.
	ErrKeyEmpty        = errors.New("barrelkv: key is empty")
	ErrKeyNotFound     = errors.New("barrelkv: key not found")
	ErrDatabaseIsUsing = errors.New("barrelkv: another process holds this database")
	ErrReadOnlyBatch   = errors.New("barrelkv: batch is read-only")
	ErrBatchCommitted  = errors.New("barrelkv: batch already committed")
	ErrBatchRolledBack = errors.New("barrelkv: batch already rolled back")
	ErrDBClosed        = errors.New("barrelkv: database is closed")
	ErrMergeRunning    = errors.New("barrelkv: merge already running")
	ErrInvalidDBOption = errors.New("barrelkv: invalid database option")

	// WAL/segment errors, re-exported so callers can errors.Is against them
	// without reaching into internal packages.
	ErrTooLargeValue   = wal.ErrTooLargeValue
	ErrInvalidOption   = wal.ErrInvalidOption
	ErrEndOfSegments   = wal.ErrEndOfSegments
	ErrSegmentClosed   = segment.ErrSegmentClosed
	ErrInvalidCheckSum = segment.ErrInvalidCheckSum
	ErrEndOfSegment    = segment.ErrEndOfSegment
)
