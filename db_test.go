package barrelkv

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTempDB(t *testing.T, opts ...func(*Options)) *DB {
	t.Helper()
	dir, err := os.MkdirTemp("", "barrelkvtest")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	o := DefaultOptions()
	o.DirPath = dir
	for _, fn := range opts {
		fn(&o)
	}
	db, err := Open(o)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPutGetDelete(t *testing.T) {
	db := openTempDB(t)

	require.NoError(t, db.Put([]byte("k1"), []byte("v1")))
	got, err := db.Get([]byte("k1"))
	require.NoError(t, err)
	assert.Equal(t, "v1", string(got))

	ok, err := db.Exist([]byte("k1"))
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, db.Delete([]byte("k1")))
	_, err = db.Get([]byte("k1"))
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestEmptyKeyRejected(t *testing.T) {
	db := openTempDB(t)
	assert.ErrorIs(t, db.Put(nil, []byte("v")), ErrKeyEmpty)
	_, err := db.Get(nil)
	assert.ErrorIs(t, err, ErrKeyEmpty)
	assert.ErrorIs(t, db.Delete(nil), ErrKeyEmpty)
}

func TestDeleteOfAbsentKeyIsNoop(t *testing.T) {
	db := openTempDB(t)
	require.NoError(t, db.Delete([]byte("missing")))
}

// S4: put 10,000 keys through batches, close, reopen, and verify every key.
func TestReopenPersistenceAfterPuts(t *testing.T) {
	dir, err := os.MkdirTemp("", "barrelkvtest")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	o := DefaultOptions()
	o.DirPath = dir
	db, err := Open(o)
	require.NoError(t, err)

	const n = 10000
	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("key-%d", i))
		val := []byte(fmt.Sprintf("value-%d", i))
		require.NoError(t, db.Put(key, val))
	}
	require.NoError(t, db.Close())

	reopened, err := Open(o)
	require.NoError(t, err)
	defer reopened.Close()

	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("key-%d", i))
		want := fmt.Sprintf("value-%d", i)
		got, err := reopened.Get(key)
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}
}

// S5: delete through a batch, reopen, and verify the deletion survives.
func TestReopenPersistenceAfterDelete(t *testing.T) {
	dir, err := os.MkdirTemp("", "barrelkvtest")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	o := DefaultOptions()
	o.DirPath = dir
	db, err := Open(o)
	require.NoError(t, err)

	require.NoError(t, db.Put([]byte("a"), []byte("1")))
	require.NoError(t, db.Put([]byte("b"), []byte("2")))

	batch := db.NewBatch(BatchOptions{})
	require.NoError(t, batch.Delete([]byte("a")))
	require.NoError(t, batch.Commit())
	require.NoError(t, db.Close())

	reopened, err := Open(o)
	require.NoError(t, err)
	defer reopened.Close()

	_, err = reopened.Get([]byte("a"))
	assert.ErrorIs(t, err, ErrKeyNotFound)
	got, err := reopened.Get([]byte("b"))
	require.NoError(t, err)
	assert.Equal(t, "2", string(got))
}

// S6: a rolled-back batch leaves no trace, even after reopen.
func TestBatchRollbackLeavesNoTrace(t *testing.T) {
	dir, err := os.MkdirTemp("", "barrelkvtest")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	o := DefaultOptions()
	o.DirPath = dir
	db, err := Open(o)
	require.NoError(t, err)

	batch := db.NewBatch(BatchOptions{})
	require.NoError(t, batch.Put([]byte("ghost"), []byte("boo")))
	require.NoError(t, batch.Rollback())
	require.NoError(t, db.Close())

	reopened, err := Open(o)
	require.NoError(t, err)
	defer reopened.Close()

	_, err = reopened.Get([]byte("ghost"))
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestBatchDoubleCommitOrRollbackRejected(t *testing.T) {
	db := openTempDB(t)

	b := db.NewBatch(BatchOptions{})
	require.NoError(t, b.Put([]byte("k"), []byte("v")))
	require.NoError(t, b.Commit())
	assert.ErrorIs(t, b.Commit(), ErrBatchCommitted)

	b2 := db.NewBatch(BatchOptions{})
	require.NoError(t, b2.Rollback())
	assert.ErrorIs(t, b2.Rollback(), ErrBatchRolledBack)
}

func TestReadOnlyBatchRejectsWrites(t *testing.T) {
	db := openTempDB(t)
	b := db.NewBatch(BatchOptions{ReadOnly: true})
	defer b.Rollback()
	assert.ErrorIs(t, b.Put([]byte("k"), []byte("v")), ErrReadOnlyBatch)
	assert.ErrorIs(t, b.Delete([]byte("k")), ErrReadOnlyBatch)
}

// P6: reads within the same uncommitted batch see its own pending writes,
// and once Commit returns the database serves the committed value.
func TestBatchIsolationBeforeCommit(t *testing.T) {
	db := openTempDB(t)
	require.NoError(t, db.Put([]byte("k"), []byte("old")))

	b := db.NewBatch(BatchOptions{})
	require.NoError(t, b.Put([]byte("k"), []byte("new")))

	got, err := b.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))

	require.NoError(t, b.Commit())
	got, err = db.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
}

// S7: merge compacts overwritten and deleted keys while preserving live data.
func TestMergePreservesLiveData(t *testing.T) {
	dir, err := os.MkdirTemp("", "barrelkvtest")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	o := DefaultOptions()
	o.DirPath = dir
	o.SegmentSize = 1 << 16
	db, err := Open(o)
	require.NoError(t, err)

	const n = 1000
	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("key-%d", i))
		for rev := 0; rev < 5; rev++ {
			val := []byte(fmt.Sprintf("value-%d-rev%d", i, rev))
			require.NoError(t, db.Put(key, val))
		}
	}
	for i := 0; i < 100; i++ {
		require.NoError(t, db.Delete([]byte(fmt.Sprintf("key-%d", i))))
	}

	sizeBefore := dirSize(t, dir)
	require.NoError(t, db.Merge(true))
	sizeAfter := dirSize(t, dir)
	assert.Less(t, sizeAfter, sizeBefore, "merge should shrink on-disk size")

	for i := 0; i < 100; i++ {
		_, err := db.Get([]byte(fmt.Sprintf("key-%d", i)))
		assert.ErrorIs(t, err, ErrKeyNotFound)
	}
	for i := 100; i < n; i++ {
		key := []byte(fmt.Sprintf("key-%d", i))
		want := fmt.Sprintf("value-%d-rev4", i)
		got, err := db.Get(key)
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}

	require.NoError(t, db.Close())
	reopened, err := Open(o)
	require.NoError(t, err)
	defer reopened.Close()
	for i := 100; i < n; i++ {
		key := []byte(fmt.Sprintf("key-%d", i))
		want := fmt.Sprintf("value-%d-rev4", i)
		got, err := reopened.Get(key)
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}
}

func TestMergeOnEmptyDatabaseIsNoop(t *testing.T) {
	db := openTempDB(t)
	assert.NoError(t, db.Merge(true))
}

func TestDoubleOpenRejected(t *testing.T) {
	dir, err := os.MkdirTemp("", "barrelkvtest")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	o := DefaultOptions()
	o.DirPath = dir
	db, err := Open(o)
	require.NoError(t, err)
	defer db.Close()

	_, err = Open(o)
	assert.ErrorIs(t, err, ErrDatabaseIsUsing)
}

func TestStats(t *testing.T) {
	db := openTempDB(t)
	require.NoError(t, db.Put([]byte("a"), []byte("1")))
	require.NoError(t, db.Put([]byte("b"), []byte("2")))

	s := db.Stats()
	assert.Equal(t, 2, s.KeyCount)
	assert.Equal(t, 0, s.OlderSegmentCount)
	assert.False(t, s.Merging)
}

func TestStatsOlderSegmentCountAfterRollover(t *testing.T) {
	dir := t.TempDir()
	o := DefaultOptions()
	o.DirPath = dir
	o.SegmentSize = 1 << 16
	db, err := Open(o)
	require.NoError(t, err)
	defer db.Close()

	for i := 0; i < 5000; i++ {
		key := []byte(fmt.Sprintf("key-%d", i))
		val := []byte(fmt.Sprintf("value-%d", i))
		require.NoError(t, db.Put(key, val))
	}

	s := db.Stats()
	assert.Greater(t, s.OlderSegmentCount, 0)
}

func dirSize(t *testing.T, dir string) int64 {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var total int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		require.NoError(t, err)
		total += info.Size()
	}
	return total
}
