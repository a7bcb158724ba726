package barrelkv

import (
	"errors"
	"os"

	"barrelkv/internal/index"
	"barrelkv/internal/record"
	"barrelkv/internal/wal"
)

// Merge compacts the database: it copies every still-live record of the
// segments sealed before the call into a shadow directory, emits a hint
// file for the surviving keys, and (if reopen) promotes the shadow in
// place. Grounded on _examples/original_source/db.cpp's merge/doMerge.
func (db *DB) Merge(reopen bool) error {
	db.mu.Lock()
	if db.closed {
		db.mu.Unlock()
		return ErrDBClosed
	}
	if db.dataWAL.Empty() {
		db.mu.Unlock()
		return nil
	}

	db.mergeMu.Lock()
	if db.merging {
		db.mergeMu.Unlock()
		db.mu.Unlock()
		return ErrMergeRunning
	}
	db.merging = true
	db.mergeMu.Unlock()

	prevActiveID := db.dataWAL.ActiveSegmentID()
	if err := db.dataWAL.UseNewActiveSegment(); err != nil {
		db.mergeMu.Lock()
		db.merging = false
		db.mergeMu.Unlock()
		db.mu.Unlock()
		return err
	}
	db.mu.Unlock()

	mergeErr := db.doMerge(prevActiveID)

	db.mergeMu.Lock()
	db.merging = false
	db.mergeMu.Unlock()

	if mergeErr != nil {
		return mergeErr
	}
	if !reopen {
		return nil
	}
	return db.reopenAfterMerge()
}

// doMerge streams the original WAL up to prevActiveID, keeping only
// records the index still points at, into a fresh shadow directory.
func (db *DB) doMerge(prevActiveID uint32) error {
	mergeDir := mergeDirPath(db.options.DirPath)
	// Drop an earlier merge's marker first, so a shadow left by an
	// interrupted run is discarded on the next open instead of promoted.
	if err := removeSuffixFiles(db.options.DirPath, mergeFinExt); err != nil {
		return err
	}
	if err := os.RemoveAll(mergeDir); err != nil {
		return err
	}
	if err := os.MkdirAll(mergeDir, 0o755); err != nil {
		return err
	}

	shadowWAL, err := wal.Open(wal.Options{
		DirPath:        mergeDir,
		SegmentSize:    db.options.SegmentSize,
		SegmentFileExt: segmentFileExt,
	})
	if err != nil {
		return err
	}
	shadowHint, err := wal.Open(wal.Options{
		DirPath:        mergeDir,
		SegmentSize:    hintSegmentSize,
		SegmentFileExt: hintFileExt,
	})
	if err != nil {
		shadowWAL.Close()
		return err
	}

	if err := db.copyLiveRecords(prevActiveID, shadowWAL, shadowHint); err != nil {
		shadowWAL.Close()
		shadowHint.Close()
		return err
	}

	if err := shadowWAL.Sync(); err != nil {
		shadowWAL.Close()
		shadowHint.Close()
		return err
	}
	if err := shadowHint.Sync(); err != nil {
		shadowWAL.Close()
		shadowHint.Close()
		return err
	}
	if err := shadowWAL.Close(); err != nil {
		return err
	}
	if err := shadowHint.Close(); err != nil {
		return err
	}

	return writeMergeFin(db.options.DirPath, prevActiveID)
}

func (db *DB) copyLiveRecords(prevActiveID uint32, shadowWAL, shadowHint *wal.WAL) error {
	r := db.dataWAL.Reader(prevActiveID)
	for {
		data, pos, err := r.Next()
		if err != nil {
			if errors.Is(err, wal.ErrEndOfSegments) {
				return nil
			}
			return err
		}
		rec, err := record.Decode(data)
		if err != nil {
			return err
		}
		if rec.Type != record.Normal {
			continue
		}

		db.mu.RLock()
		current, live := db.index.Get(rec.Key)
		db.mu.RUnlock()
		if !live || !current.Equal(pos) {
			continue
		}

		rec.BatchID = mergeFinishedBatchID
		newPos, err := shadowWAL.Write(rec.Encode())
		if err != nil {
			return err
		}
		if _, err := shadowHint.Write(encodeHintRecord(rec.Key, newPos)); err != nil {
			return err
		}
	}
}

// reopenAfterMerge closes the current files, promotes the shadow merge,
// and rebuilds the index from the promoted hint file and remaining WAL.
func (db *DB) reopenAfterMerge() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.dataWAL.Close(); err != nil {
		return err
	}
	if err := db.hintWAL.Close(); err != nil {
		return err
	}

	if err := loadMergeFiles(db.options.DirPath); err != nil {
		return err
	}

	dataWAL, err := wal.Open(wal.Options{
		DirPath:        db.options.DirPath,
		SegmentSize:    db.options.SegmentSize,
		SegmentFileExt: segmentFileExt,
		BlockCache:     db.options.BlockCache,
		SyncWrite:      db.options.SyncWrite,
		BytesPerSync:   db.options.BytesPerSync,
	})
	if err != nil {
		return err
	}
	db.dataWAL = dataWAL

	hintWAL, err := wal.Open(wal.Options{
		DirPath:        db.options.DirPath,
		SegmentSize:    hintSegmentSize,
		SegmentFileExt: hintFileExt,
	})
	if err != nil {
		return err
	}
	db.hintWAL = hintWAL

	db.index = index.New()
	if err := db.loadHintFile(); err != nil {
		return err
	}
	return db.loadIndexFromWAL()
}
