package barrelkv

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"barrelkv/internal/record"
	"barrelkv/internal/segment"
	"barrelkv/internal/wal"
)

// mergeDirPath is the transient shadow directory a merge writes into,
// promoted or discarded on the next open.
func mergeDirPath(dirPath string) string {
	return filepath.Clean(dirPath) + mergeDirSuffix
}

func dirHasSuffixFile(dirPath, suffix string) (bool, error) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), suffix) {
			return true, nil
		}
	}
	return false, nil
}

func removeSuffixFiles(dirPath, suffix string) error {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), suffix) {
			if err := os.Remove(filepath.Join(dirPath, e.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}

// readMergeFin reads the merge boundary segment id recorded by the most
// recent merge's .MERGEFIN marker, if one exists.
func readMergeFin(dirPath string) (id uint32, ok bool, err error) {
	has, err := dirHasSuffixFile(dirPath, mergeFinExt)
	if err != nil || !has {
		return 0, false, err
	}
	w, err := wal.Open(wal.Options{DirPath: dirPath, SegmentSize: hintSegmentSize, SegmentFileExt: mergeFinExt})
	if err != nil {
		return 0, false, err
	}
	defer w.Close()

	data, _, err := w.Reader(0).Next()
	if err != nil {
		return 0, false, fmt.Errorf("barrelkv: read mergefin: %w", err)
	}
	if len(data) != 4 {
		return 0, false, fmt.Errorf("barrelkv: malformed mergefin record (%d bytes)", len(data))
	}
	return binary.LittleEndian.Uint32(data), true, nil
}

// writeMergeFin overwrites dirPath's .MERGEFIN marker with boundary,
// discarding whatever an earlier merge had recorded there.
func writeMergeFin(dirPath string, boundary uint32) error {
	if err := removeSuffixFiles(dirPath, mergeFinExt); err != nil {
		return err
	}
	w, err := wal.Open(wal.Options{DirPath: dirPath, SegmentSize: hintSegmentSize, SegmentFileExt: mergeFinExt})
	if err != nil {
		return err
	}
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, boundary)
	if _, err := w.Write(buf); err != nil {
		w.Close()
		return err
	}
	if err := w.Sync(); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// finishInterruptedMerge promotes a completed shadow merge or abandons an
// incomplete one, run once at the top of Open per spec.md §4.H.
func finishInterruptedMerge(dirPath string) error {
	return loadMergeFiles(dirPath)
}

// loadMergeFiles is the idempotent promotion step of spec.md §4.H.3: if
// mergefin is present the shadow's segments and hint file replace the
// main directory's; if absent, the shadow is a crash-interrupted attempt
// and is discarded.
func loadMergeFiles(dirPath string) error {
	mergeDir := mergeDirPath(dirPath)
	if _, err := os.Stat(mergeDir); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	boundary, ok, err := readMergeFin(dirPath)
	if err != nil {
		return err
	}
	if !ok {
		return os.RemoveAll(mergeDir)
	}

	for id := uint32(1); id <= boundary; id++ {
		mainSeg := segment.FileName(dirPath, segmentFileExt, id)
		mergeSeg := segment.FileName(mergeDir, segmentFileExt, id)
		if err := os.Remove(mainSeg); err != nil && !os.IsNotExist(err) {
			return err
		}
		if info, err := os.Stat(mergeSeg); err == nil && info.Size() > 0 {
			if err := os.Rename(mergeSeg, mainSeg); err != nil {
				return err
			}
		}
	}

	if err := removeSuffixFiles(dirPath, hintFileExt); err != nil {
		return err
	}
	entries, err := os.ReadDir(mergeDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), hintFileExt) {
			continue
		}
		if err := os.Rename(filepath.Join(mergeDir, e.Name()), filepath.Join(dirPath, e.Name())); err != nil {
			return err
		}
	}

	return os.RemoveAll(mergeDir)
}

// encodeHintRecord lays out a hint record as ChunkPosition's 16-byte
// encoding followed by the raw key, per spec.md §6.
func encodeHintRecord(key []byte, pos segment.ChunkPosition) []byte {
	posBuf := segment.EncodePosition(pos)
	buf := make([]byte, len(posBuf)+len(key))
	copy(buf, posBuf[:])
	copy(buf[len(posBuf):], key)
	return buf
}

func decodeHintRecord(data []byte) ([]byte, segment.ChunkPosition, error) {
	pos, err := segment.DecodePosition(data)
	if err != nil {
		return nil, segment.ChunkPosition{}, err
	}
	key := make([]byte, len(data)-segment.EncodedPositionSize)
	copy(key, data[segment.EncodedPositionSize:])
	return key, pos, nil
}

// loadHintFile replays every hint record into the index. Hint records
// encode already-surviving entries from the last merge, letting recovery
// skip the data those entries came from.
func (db *DB) loadHintFile() error {
	r := db.hintWAL.Reader(0)
	for {
		data, _, err := r.Next()
		if err != nil {
			if errors.Is(err, wal.ErrEndOfSegments) {
				return nil
			}
			return err
		}
		key, pos, err := decodeHintRecord(data)
		if err != nil {
			return err
		}
		db.index.Put(key, pos)
	}
}

type pendingUpdate struct {
	key []byte
	del bool
	pos segment.ChunkPosition
}

// loadIndexFromWAL replays the data WAL, buffering each batch's updates
// until its Finish marker is observed (I7), applying merge-emitted
// records directly, and skipping segments already folded into the hint
// file loaded by loadHintFile. Unterminated batches at EOF are discarded.
func (db *DB) loadIndexFromWAL() error {
	boundary, ok, err := readMergeFin(db.options.DirPath)
	if err != nil {
		return err
	}
	if !ok {
		boundary = 0
	}

	r := db.dataWAL.Reader(0)
	pending := make(map[uint64][]pendingUpdate)

	for {
		if boundary > 0 && !r.Done() && r.CurrentSegmentID() <= boundary {
			r.SkipCurrentSegment()
			continue
		}

		data, pos, err := r.Next()
		if err != nil {
			if errors.Is(err, wal.ErrEndOfSegments) {
				break
			}
			return err
		}

		rec, err := record.Decode(data)
		if err != nil {
			return err
		}

		switch {
		case rec.Type == record.Finished:
			batchID, err := record.DecodeBatchID(rec.Key)
			if err != nil {
				return err
			}
			for _, u := range pending[batchID] {
				if u.del {
					db.index.Del(u.key)
				} else {
					db.index.Put(u.key, u.pos)
				}
			}
			delete(pending, batchID)
		case rec.BatchID == mergeFinishedBatchID:
			db.index.Put(rec.Key, pos)
		case rec.Type == record.Deleted:
			pending[rec.BatchID] = append(pending[rec.BatchID], pendingUpdate{key: rec.Key, del: true})
		default:
			pending[rec.BatchID] = append(pending[rec.BatchID], pendingUpdate{key: rec.Key, pos: pos})
		}
	}
	return nil
}
