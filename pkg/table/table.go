package table

import (
	"bytes"
	"errors"
	"math"
)

// MaxCapacity is the largest capacity accepted by New. It keeps the probe
// arithmetic (start cell + capacity) within the uint32 range.
const MaxCapacity = math.MaxUint32 / 2

var (
	// ErrInvalidCapacity is returned by New when the requested capacity is zero,
	// negative or larger than MaxCapacity.
	ErrInvalidCapacity = errors.New("table: invalid capacity")
	// ErrDuplicate is returned by Add when the key is already stored.
	// The table is left untouched and the first value stays retrievable.
	ErrDuplicate = errors.New("table: duplicate key")
	// ErrFull is returned by Add when a full probe cycle finds neither an
	// empty cell nor the same key.
	ErrFull = errors.New("table: table is full")
)

// Table is a fixed-capacity, open-addressing hash table mapping byte-string
// keys to values of type T.
//
// Collisions are resolved with linear probing. The capacity is chosen once
// by New and never changes: there is no growth, no rehashing, and no
// deletion, so an entry never moves after insertion.
//
// A Table is meant to be filled during startup and only read afterwards.
// Concurrent calls to Get are safe as long as no Add runs at the same time.
type Table[T any] struct {
	cells []*entry[T]
	size  int
}

type entry[T any] struct {
	key   []byte
	value T
}

// New allocates a Table with `capacity` empty cells.
func New[T any](capacity int) (*Table[T], error) {
	if capacity <= 0 || uint64(capacity) > MaxCapacity {
		return nil, ErrInvalidCapacity
	}
	return &Table[T]{
		cells: make([]*entry[T], capacity),
	}, nil
}

// Hash computes the djb2 hash of key: starting from 5381, every byte b
// updates the hash as h*33 + b.
func Hash(key []byte) uint64 {
	var h uint64 = 5381
	for _, b := range key {
		h = (h << 5) + h + uint64(b)
	}
	return h
}

// probe walks the cells h, h+1, ..., h+capacity-1 (mod capacity) and returns
// the position of the first cell that is either empty or holds key.
// It returns -1 when the whole cycle is exhausted.
func (t *Table[T]) probe(key []byte) int {
	n := uint64(len(t.cells))
	h := Hash(key) % n

	for i := uint64(0); i < n; i++ {
		pos := (h + i) % n

		e := t.cells[pos]
		if e == nil || bytes.Equal(e.key, key) {
			return int(pos)
		}
	}
	return -1
}

// Add stores v under key.
//
// The first writer wins: adding a key which is already present returns
// ErrDuplicate without modifying the table. When every cell is occupied by
// other keys, ErrFull is returned. The key is copied, so callers may reuse
// the slice afterwards.
func (t *Table[T]) Add(key []byte, v T) error {
	pos := t.probe(key)
	if pos < 0 {
		return ErrFull
	}

	if t.cells[pos] != nil {
		return ErrDuplicate
	}

	t.cells[pos] = &entry[T]{
		key:   bytes.Clone(key),
		value: v,
	}
	t.size++
	return nil
}

// Get retrieves the value stored under key.
//
// It returns false when the key is absent. Absence is not an error: the probe
// simply hit an empty cell (or completed the cycle) before finding key.
func (t *Table[T]) Get(key []byte) (T, bool) {
	pos := t.probe(key)
	if pos < 0 || t.cells[pos] == nil {
		var zero T
		return zero, false
	}
	return t.cells[pos].value, true
}

// Len returns the number of entries stored in the table.
func (t *Table[T]) Len() int {
	return t.size
}

// Cap returns the fixed number of cells of the table.
func (t *Table[T]) Cap() int {
	return len(t.cells)
}
