package barrelkv

import "log"

// Options configures a Database. Fields mirror spec.md §6's recognized
// options; dirPath and segmentSize are the only ones validated here, per
// SPEC_FULL.md §3's note that silence elsewhere is not license to add
// unstated validation.
type Options struct {
	// DirPath is the directory the database owns exclusively.
	DirPath string
	// SegmentSize is the max bytes per segment file before rollover.
	SegmentSize int64
	// BlockCache is the total bytes for the shared block LRU; 0 disables it.
	BlockCache uint32
	// SyncWrite fsyncs the WAL after every committing append.
	SyncWrite bool
	// BytesPerSync fsyncs once unsynced bytes reach this threshold; 0 disables it.
	BytesPerSync uint32
	// Logger receives operational and fatal-invariant log lines. Defaults
	// to log.Default() when nil, matching the teacher's use of a plain
	// *log.Logger field.
	Logger *log.Logger
}

// BatchOptions overrides Options for a single batch.
type BatchOptions struct {
	// SyncWrite forces an fsync on commit even if Options.SyncWrite is false.
	SyncWrite bool
	// ReadOnly rejects Put/Delete on the batch and takes the Database lock
	// in shared rather than exclusive mode.
	ReadOnly bool
}

// DefaultOptions returns the conservative defaults the teacher's config
// layer falls back to when a field is left unset.
func DefaultOptions() Options {
	return Options{
		SegmentSize:  1 << 30, // 1 GiB
		BlockCache:   0,
		SyncWrite:    false,
		BytesPerSync: 0,
		Logger:       log.Default(),
	}
}

func validateOptions(o *Options) error {
	if o.DirPath == "" {
		return ErrInvalidDBOption
	}
	if o.SegmentSize < 0 {
		return ErrInvalidDBOption
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	return nil
}

const (
	segmentFileExt = ".SEG"
	hintFileExt    = ".HINT"
	mergeFinExt    = ".MERGEFIN"
	mergeDirSuffix = "-merge"

	// mergeFinishedBatchID is the sentinel batch id merge-emitted records
	// carry, fixed at 0 per spec.md §9's Open Question resolution.
	mergeFinishedBatchID uint64 = 0

	// hintSegmentSize is effectively unbounded ("segmentSize = infinity"
	// per spec.md §4.H): a single hint segment never rolls over in practice.
	hintSegmentSize int64 = 1 << 62
)
