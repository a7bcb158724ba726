package index

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"barrelkv/internal/segment"
)

func TestPutGetDel(t *testing.T) {
	idx := New()
	pos := segment.ChunkPosition{SegmentID: 1, BlockNumber: 2, ChunkOffset: 10, ChunkSize: 20}

	idx.Put([]byte("k"), pos)
	got, ok := idx.Get([]byte("k"))
	assert.True(t, ok)
	assert.True(t, got.Equal(pos))

	assert.True(t, idx.Del([]byte("k")))
	_, ok = idx.Get([]byte("k"))
	assert.False(t, ok)
	assert.False(t, idx.Del([]byte("k")), "deleting an absent key reports false")
}

func TestGetPtrMutatesInPlace(t *testing.T) {
	idx := New()
	pos := segment.ChunkPosition{SegmentID: 1, BlockNumber: 0, ChunkOffset: 0}
	idx.Put([]byte("k"), pos)

	ptr := idx.GetPtr([]byte("k"))
	assert.NotNil(t, ptr)
	ptr.BlockNumber = 99

	got, ok := idx.Get([]byte("k"))
	assert.True(t, ok)
	assert.Equal(t, uint32(99), got.BlockNumber)
}

func TestGetPtrAbsent(t *testing.T) {
	idx := New()
	assert.Nil(t, idx.GetPtr([]byte("missing")))
}

func TestRemove(t *testing.T) {
	idx := New()
	pos := segment.ChunkPosition{SegmentID: 3, BlockNumber: 1, ChunkOffset: 5}
	idx.Put([]byte("k"), pos)

	got, ok := idx.Remove([]byte("k"))
	assert.True(t, ok)
	assert.True(t, got.Equal(pos))
	_, ok = idx.Get([]byte("k"))
	assert.False(t, ok)
}

func TestSize(t *testing.T) {
	idx := New()
	assert.Equal(t, 0, idx.Size())
	idx.Put([]byte("a"), segment.ChunkPosition{})
	idx.Put([]byte("b"), segment.ChunkPosition{})
	assert.Equal(t, 2, idx.Size())
}
