package barrelkv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchPutOverwritesPendingWrite(t *testing.T) {
	db := openTempDB(t)
	b := db.NewBatch(BatchOptions{})
	require.NoError(t, b.Put([]byte("k"), []byte("first")))
	require.NoError(t, b.Put([]byte("k"), []byte("second")))
	require.NoError(t, b.Commit())

	got, err := db.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
}

// Deleting a key that only exists as a pending put in this batch (never
// committed) drops the pending write rather than staging a tombstone.
func TestBatchDeleteOfPendingOnlyKeyDropsIt(t *testing.T) {
	db := openTempDB(t)
	b := db.NewBatch(BatchOptions{})
	require.NoError(t, b.Put([]byte("ephemeral"), []byte("v")))
	require.NoError(t, b.Delete([]byte("ephemeral")))

	_, err := b.Get([]byte("ephemeral"))
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, b.Commit())
	_, err = db.Get([]byte("ephemeral"))
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestBatchMultiKeyAtomicCommit(t *testing.T) {
	db := openTempDB(t)
	b := db.NewBatch(BatchOptions{})
	require.NoError(t, b.Put([]byte("a"), []byte("1")))
	require.NoError(t, b.Put([]byte("b"), []byte("2")))
	require.NoError(t, b.Put([]byte("c"), []byte("3")))
	require.NoError(t, b.Commit())

	for k, want := range map[string]string{"a": "1", "b": "2", "c": "3"} {
		got, err := db.Get([]byte(k))
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}
}

func TestBatchExist(t *testing.T) {
	db := openTempDB(t)
	require.NoError(t, db.Put([]byte("k"), []byte("v")))

	b := db.NewBatch(BatchOptions{})
	defer b.Rollback()

	ok, err := b.Exist([]byte("k"))
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, b.Delete([]byte("k")))
	ok, err = b.Exist([]byte("k"))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = b.Exist([]byte("never-existed"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOperationsOnClosedDatabase(t *testing.T) {
	dir := t.TempDir()
	o := DefaultOptions()
	o.DirPath = dir
	db, err := Open(o)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	assert.ErrorIs(t, db.Put([]byte("k"), []byte("v")), ErrDBClosed)
	assert.ErrorIs(t, db.Sync(), ErrDBClosed)
}

// A read-only batch, or a writable batch with no pending writes, must still
// report ErrDBClosed on Commit once the owning database is closed, rather
// than short-circuiting to a silent success. A batch's lock lives for the
// batch's full lifetime, so Close (which itself takes that lock) can only
// complete once no batch is outstanding — the batches here are created
// after Close returns, mirroring the only order in which this is reachable.
func TestBatchCommitOnClosedDatabase(t *testing.T) {
	dir := t.TempDir()
	o := DefaultOptions()
	o.DirPath = dir
	db, err := Open(o)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	roBatch := db.NewBatch(BatchOptions{ReadOnly: true})
	assert.ErrorIs(t, roBatch.Commit(), ErrDBClosed)

	emptyBatch := db.NewBatch(BatchOptions{})
	assert.ErrorIs(t, emptyBatch.Commit(), ErrDBClosed)
}

func TestBatchRollbackOnClosedDatabase(t *testing.T) {
	dir := t.TempDir()
	o := DefaultOptions()
	o.DirPath = dir
	db, err := Open(o)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	b := db.NewBatch(BatchOptions{})
	assert.ErrorIs(t, b.Rollback(), ErrDBClosed)
}
