// Package fat implements the in-memory File Allocation Table: a dense
// 16-bit-entry array mirroring blocks 1..1+FATBlocks-1 on disk, bulk
// (de)serialized to/from its on-disk bytes, with three fixed sentinel
// values (Free, EOF, Bad) instead of a family of version-specific markers.
package fat

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/blocklayer/myfatfs/block"
	"github.com/blocklayer/myfatfs/bootsector"
)

// Sentinel FAT entry values. All other values in [0, block.Count) are
// "link to block N".
const (
	Free uint16 = 0xFFFF
	EOF  uint16 = 0xFFFE
	Bad  uint16 = 0xFFFD
)

// MaxFileBlocks is the per-file cap: at most 128 blocks (128 KiB) may be
// chained to a single file.
const MaxFileBlocks = 128

// ErrOutOfSpace is returned by Allocate when no free block remains.
var ErrOutOfSpace = errors.New("no free blocks remaining")

// ErrChainCorrupt indicates a chain walk encountered Bad or an
// out-of-range successor — a fatal invariant break, not a user error.
var ErrChainCorrupt = errors.New("FAT chain corrupt")

// Table is the in-memory FAT, with DataStartBlock entries all tagged Bad
// (they belong to the boot sector / FAT / root directory and are never
// allocatable) and everything else starting life as Free.
type Table struct {
	entries []uint16
}

// New builds a freshly formatted table: every block below
// bootsector.DataStartBlock is Bad, everything else is Free.
func New() *Table {
	t := &Table{entries: make([]uint16, block.Count)}
	for i := uint32(0); i < block.Count; i++ {
		if i < bootsector.DataStartBlock {
			t.entries[i] = Bad
		} else {
			t.entries[i] = Free
		}
	}
	return t
}

// FromBytes parses a FAT table from its on-disk bytes (FATBlocks blocks
// worth, block.Count*2 bytes).
func FromBytes(b []byte) (*Table, error) {
	want := block.Count * 2
	if len(b) < want {
		return nil, fmt.Errorf("FAT buffer too short: got %d bytes, want %d", len(b), want)
	}
	t := &Table{entries: make([]uint16, block.Count)}
	for i := uint32(0); i < block.Count; i++ {
		t.entries[i] = binary.LittleEndian.Uint16(b[i*2 : i*2+2])
	}
	return t, nil
}

// Bytes serializes the table back to its on-disk form.
func (t *Table) Bytes() []byte {
	b := make([]byte, block.Count*2)
	for i, v := range t.entries {
		binary.LittleEndian.PutUint16(b[i*2:i*2+2], v)
	}
	return b
}

// Next returns the FAT entry for block b: a sentinel, or the next block
// in b's chain.
func (t *Table) Next(b uint32) uint16 {
	return t.entries[b]
}

// SetNext sets the FAT entry for block b without flushing; callers that
// build a chain in memory batch many SetNext calls and flush once at the
// end instead of flushing on every link.
func (t *Table) SetNext(b uint32, v uint16) {
	t.entries[b] = v
}

// Allocate performs a first-fit linear scan over [DataStartBlock, Count)
// for the first Free entry, marks it EOF, and returns its index. It
// deliberately skips block index 0xFFFF even though it falls inside the
// data region: 0xFFFF collides with the Free sentinel, so it must never be
// treated as an allocatable block number.
func (t *Table) Allocate() (uint32, error) {
	for i := bootsector.DataStartBlock; i < block.Count; i++ {
		if i == uint32(Free) {
			continue
		}
		if t.entries[i] == Free {
			t.entries[i] = EOF
			return i, nil
		}
	}
	return 0, ErrOutOfSpace
}

// FreeChain walks the chain starting at head, marking every visited entry
// Free, and stops at EOF or Free. It is a no-op when head is already EOF
// (an empty file has nothing to free) and refuses to follow Bad or an
// out-of-range successor, reporting ErrChainCorrupt instead of silently
// wandering into the reserved region.
func (t *Table) FreeChain(head uint16) error {
	current := head
	for current != EOF && current != Free {
		if current == Bad || uint32(current) >= block.Count {
			return ErrChainCorrupt
		}
		next := t.entries[current]
		t.entries[current] = Free
		current = next
	}
	return nil
}

// Walk returns the full list of block indices in the chain starting at
// head, in chain order, validating as it goes that the chain terminates
// at EOF without revisiting Bad/out-of-range/Free entries mid-chain.
func (t *Table) Walk(head uint16) ([]uint32, error) {
	if head == EOF {
		return nil, nil
	}
	var chain []uint32
	current := head
	seen := make(map[uint32]bool)
	for current != EOF {
		if current == Free || current == Bad || uint32(current) >= block.Count {
			return nil, ErrChainCorrupt
		}
		if seen[uint32(current)] {
			return nil, ErrChainCorrupt
		}
		seen[uint32(current)] = true
		chain = append(chain, uint32(current))
		current = t.entries[current]
	}
	return chain, nil
}

// FreeCount returns the number of blocks currently marked Free, used by
// Usage() reporting.
func (t *Table) FreeCount() uint32 {
	var n uint32
	for _, v := range t.entries {
		if v == Free {
			n++
		}
	}
	return n
}
