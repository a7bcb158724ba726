// Package record implements the LogRecord codec spec.md §4.F/§6 defines:
// a typed, batch-tagged envelope carrying a key/value pair or a Finish
// marker. Grounded on _examples/original_source/record.hpp (LogRecord's
// constructor-from-bytes and asBytes), with the C++ span encoding
// translated to explicit little-endian encoding/binary.
package record

import (
	"encoding/binary"
	"fmt"
)

// Type distinguishes a live write, a tombstone, and a batch's Finish marker.
type Type uint8

const (
	Normal Type = iota
	Deleted
	Finished
)

// HeaderSize is the fixed-width prefix before key and value bytes:
// type(1) + batch_id(8) + key_len(4) + value_len(4).
const HeaderSize = 1 + 8 + 4 + 4

// Record is one WAL payload: a typed, batch-tagged key/value pair.
type Record struct {
	Type    Type
	BatchID uint64
	Key     []byte
	Value   []byte
}

// Encode serializes r per spec.md §4.F/§6: type . batch_id . key_len .
// value_len . key . value, all little-endian.
func (r *Record) Encode() []byte {
	buf := make([]byte, HeaderSize+len(r.Key)+len(r.Value))
	buf[0] = byte(r.Type)
	binary.LittleEndian.PutUint64(buf[1:9], r.BatchID)
	binary.LittleEndian.PutUint32(buf[9:13], uint32(len(r.Key)))
	binary.LittleEndian.PutUint32(buf[13:17], uint32(len(r.Value)))
	copy(buf[17:17+len(r.Key)], r.Key)
	copy(buf[17+len(r.Key):], r.Value)
	return buf
}

// Decode parses the layout Encode produces, validating that the declared
// key/value lengths actually fit within data.
func Decode(data []byte) (*Record, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("record: short payload (%d bytes)", len(data))
	}
	typ := Type(data[0])
	batchID := binary.LittleEndian.Uint64(data[1:9])
	keyLen := binary.LittleEndian.Uint32(data[9:13])
	valLen := binary.LittleEndian.Uint32(data[13:17])

	want := HeaderSize + int(keyLen) + int(valLen)
	if len(data) != want {
		return nil, fmt.Errorf("record: length mismatch: have %d want %d", len(data), want)
	}
	key := make([]byte, keyLen)
	copy(key, data[17:17+keyLen])
	val := make([]byte, valLen)
	copy(val, data[17+keyLen:])

	return &Record{Type: typ, BatchID: batchID, Key: key, Value: val}, nil
}

// EncodeBatchID renders a batch id as the 8 little-endian bytes used as a
// Finish marker's key, per spec.md §6.
func EncodeBatchID(id uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, id)
	return buf
}

// DecodeBatchID is the inverse of EncodeBatchID.
func DecodeBatchID(key []byte) (uint64, error) {
	if len(key) != 8 {
		return 0, fmt.Errorf("record: finish key must be 8 bytes, got %d", len(key))
	}
	return binary.LittleEndian.Uint64(key), nil
}
