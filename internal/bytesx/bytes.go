// Package bytesx provides the owned, reference-shared byte buffer that
// segment reads return, plus the
// CRC helper segments use to validate a chunk on read.
package bytesx

import (
	"bytes"
	"hash/crc32"
)

// Bytes is a thin, immutable-by-convention wrapper over a byte slice.
// Clone shares the underlying array; DeepClone copies it. Equality and
// hashing (via Key) are bytewise.
type Bytes struct {
	data []byte
}

// New wraps data without copying.
func New(data []byte) Bytes {
	return Bytes{data: data}
}

// FromString copies the bytes of s into a new buffer.
func FromString(s string) Bytes {
	return Bytes{data: []byte(s)}
}

// Data returns the underlying slice. Callers must not mutate it if the
// Bytes value is shared.
func (b Bytes) Data() []byte {
	return b.data
}

// Len returns the number of bytes.
func (b Bytes) Len() int {
	return len(b.data)
}

// Empty reports whether the buffer holds zero bytes.
func (b Bytes) Empty() bool {
	return len(b.data) == 0
}

// Clone returns a Bytes sharing the same backing array.
func (b Bytes) Clone() Bytes {
	return Bytes{data: b.data}
}

// DeepClone returns a Bytes backed by a fresh copy of the data.
func (b Bytes) DeepClone() Bytes {
	cp := make([]byte, len(b.data))
	copy(cp, b.data)
	return Bytes{data: cp}
}

// Grow returns a Bytes with capacity at least n, copying the existing
// contents into a new backing array. It never shrinks.
func (b Bytes) Grow(n int) Bytes {
	if n <= len(b.data) {
		return b
	}
	grown := make([]byte, n)
	copy(grown, b.data)
	return Bytes{data: grown}
}

// Equal reports bytewise equality.
func (b Bytes) Equal(o Bytes) bool {
	return bytes.Equal(b.data, o.data)
}

// Key returns a string usable as a map key; Go strings already hash and
// compare bytewise, so this doubles as the "hashing" spec.md asks for.
func (b Bytes) Key() string {
	return string(b.data)
}

// Checksum computes the IEEE CRC-32 over headerTail followed by payload,
// matching the on-disk chunk checksum defined in spec.md's EXTERNAL
// INTERFACES section (CRC over length . type . payload).
func Checksum(headerTail, payload []byte) uint32 {
	h := crc32.NewIEEE()
	h.Write(headerTail)
	h.Write(payload)
	return h.Sum32()
}
