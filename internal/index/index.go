// Package index implements the in-memory key -> ChunkPosition map spec.md
// §4.E describes. It is not internally synchronized; the Database's
// reader/writer lock protects it, as spec.md's CONCURRENCY section
// requires. Grounded on _examples/original_source/indexer.hpp's MemoryMap.
package index

import "barrelkv/internal/segment"

// Index maps a key to the position of its most recent live value. Values
// are stored by pointer so GetPtr can hand back a reference a caller may
// mutate in place, mirroring indexer.hpp's getPtr.
type Index struct {
	m map[string]*segment.ChunkPosition
}

// New creates an empty index.
func New() *Index {
	return &Index{m: make(map[string]*segment.ChunkPosition)}
}

// Put records pos as the current location of key, replacing any prior entry.
func (idx *Index) Put(key []byte, pos segment.ChunkPosition) {
	p := pos
	idx.m[string(key)] = &p
}

// Get returns the position for key, if any.
func (idx *Index) Get(key []byte) (segment.ChunkPosition, bool) {
	p, ok := idx.m[string(key)]
	if !ok {
		return segment.ChunkPosition{}, false
	}
	return *p, true
}

// GetPtr returns a pointer to the stored position for in-place inspection,
// or nil if key is absent. Callers must not retain it past a concurrent Put/Del.
func (idx *Index) GetPtr(key []byte) *segment.ChunkPosition {
	return idx.m[string(key)]
}

// Del removes key, reporting whether it was present.
func (idx *Index) Del(key []byte) bool {
	k := string(key)
	if _, ok := idx.m[k]; !ok {
		return false
	}
	delete(idx.m, k)
	return true
}

// Remove is Get followed by Del in one call.
func (idx *Index) Remove(key []byte) (segment.ChunkPosition, bool) {
	pos, ok := idx.Get(key)
	if ok {
		idx.Del(key)
	}
	return pos, ok
}

// Size returns the number of live keys.
func (idx *Index) Size() int {
	return len(idx.m)
}
