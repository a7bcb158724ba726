package barrelkv

import (
	"barrelkv/internal/record"
	"barrelkv/internal/segment"
)

// Batch buffers a set of pending mutations and commits them atomically.
// Grounded on _examples/original_source/batch.hpp and batch.cpp.
type Batch struct {
	db      *DB
	options BatchOptions

	pendingWrites map[string]*record.Record

	committed  bool
	rolledBack bool
}

// newBatch acquires db's lock (shared for read-only, exclusive otherwise)
// for the batch's full lifetime, per spec.md §4.G/§5.
func newBatch(db *DB, options BatchOptions) *Batch {
	if options.ReadOnly {
		db.mu.RLock()
	} else {
		db.mu.Lock()
	}
	return &Batch{
		db:            db,
		options:       options,
		pendingWrites: make(map[string]*record.Record),
	}
}

// unlock releases whichever mode of db's lock this batch acquired.
func (b *Batch) unlock() {
	if b.options.ReadOnly {
		b.db.mu.RUnlock()
	} else {
		b.db.mu.Unlock()
	}
}

// Put stages a write of key -> value, replacing any earlier pending write
// for the same key in this batch.
func (b *Batch) Put(key, value []byte) error {
	if len(key) == 0 {
		return ErrKeyEmpty
	}
	if b.db.closed {
		return ErrDBClosed
	}
	if b.options.ReadOnly {
		return ErrReadOnlyBatch
	}
	b.pendingWrites[string(key)] = &record.Record{
		Type:  record.Normal,
		Key:   key,
		Value: value,
	}
	return nil
}

// Delete stages a deletion of key. If key is absent from both the
// persistent index and this batch's pending writes, Delete is a no-op: no
// tombstone is recorded for a key that never existed. If key has only a
// pending put in this batch (never committed), that pending write is
// simply dropped rather than tombstoned.
func (b *Batch) Delete(key []byte) error {
	if len(key) == 0 {
		return ErrKeyEmpty
	}
	if b.db.closed {
		return ErrDBClosed
	}
	if b.options.ReadOnly {
		return ErrReadOnlyBatch
	}

	k := string(key)
	if b.db.index.GetPtr(key) != nil {
		b.pendingWrites[k] = &record.Record{Type: record.Deleted, Key: key}
		return nil
	}
	if _, ok := b.pendingWrites[k]; ok {
		delete(b.pendingWrites, k)
	}
	return nil
}

// Get returns the current value for key, consulting the pending writes of
// this batch before falling through to the persistent index.
func (b *Batch) Get(key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, ErrKeyEmpty
	}
	if b.db.closed {
		return nil, ErrDBClosed
	}

	if pw, ok := b.pendingWrites[string(key)]; ok {
		if pw.Type == record.Deleted {
			return nil, ErrKeyNotFound
		}
		return pw.Value, nil
	}

	pos := b.db.index.GetPtr(key)
	if pos == nil {
		return nil, ErrKeyNotFound
	}
	return b.db.readValueAt(*pos)
}

// Exist reports whether key currently resolves to a live value.
func (b *Batch) Exist(key []byte) (bool, error) {
	if len(key) == 0 {
		return false, ErrKeyEmpty
	}
	if b.db.closed {
		return false, ErrDBClosed
	}

	if pw, ok := b.pendingWrites[string(key)]; ok {
		return pw.Type != record.Deleted, nil
	}
	return b.db.index.GetPtr(key) != nil, nil
}

// Commit executes the atomic commit protocol of spec.md §4.G: append every
// pending record stamped with a fresh batch id, seal with a Finish marker,
// optionally fsync, then apply index updates in one pass.
func (b *Batch) Commit() error {
	if b.committed {
		return ErrBatchCommitted
	}
	if b.rolledBack {
		return ErrBatchRolledBack
	}
	defer b.unlock()

	if b.db.closed {
		return ErrDBClosed
	}
	b.committed = true

	if b.options.ReadOnly || len(b.pendingWrites) == 0 {
		return nil
	}

	batchID := b.db.idGen.Generate()

	type update struct {
		key []byte
		del bool
		pos segment.ChunkPosition
	}
	updates := make([]update, 0, len(b.pendingWrites))

	for _, rec := range b.pendingWrites {
		rec.BatchID = batchID
		pos, err := b.db.dataWAL.Write(rec.Encode())
		if err != nil {
			return err
		}
		if rec.Type == record.Deleted {
			updates = append(updates, update{key: rec.Key, del: true})
		} else {
			updates = append(updates, update{key: rec.Key, pos: pos})
		}
	}

	finish := &record.Record{Type: record.Finished, BatchID: batchID, Key: record.EncodeBatchID(batchID)}
	if _, err := b.db.dataWAL.Write(finish.Encode()); err != nil {
		return err
	}

	if b.options.SyncWrite && !b.db.options.SyncWrite {
		if err := b.db.dataWAL.Sync(); err != nil {
			return err
		}
	}

	for _, u := range updates {
		if u.del {
			b.db.index.Del(u.key)
			continue
		}
		b.db.index.Put(u.key, u.pos)
	}

	return nil
}

// Rollback discards pending writes without touching disk.
func (b *Batch) Rollback() error {
	if b.committed {
		return ErrBatchCommitted
	}
	if b.rolledBack {
		return ErrBatchRolledBack
	}
	defer b.unlock()

	if b.db.closed {
		return ErrDBClosed
	}
	b.rolledBack = true
	b.pendingWrites = nil
	return nil
}
