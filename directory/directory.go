package directory

import (
	"encoding/binary"

	"github.com/blocklayer/myfatfs/block"
)

// contentSize is the number of bytes needed to hold MaxEntries entries
// plus the trailing advisory entry_count counter.
const contentSize = MaxEntries*EntrySize + 2

// BlockSpan is the number of contiguous block.Size blocks one directory's
// content occupies.
//
// 128 entries of a 64-byte-name record cannot fit in a single 1024-byte
// block no matter how the remaining fields are packed (128 * 64 bytes
// alone is already 8192 bytes), so a directory's content is stored across
// a small, fixed-length chain of BlockSpan blocks, allocated and linked
// exactly the way a file's data chain is (see fat.Table.Allocate/SetNext
// and fatfs's write path). MaxEntries stays 128 regardless: it bounds
// slot count, not block count.
var BlockSpan = (contentSize + block.Size - 1) / block.Size

// Block is one directory's content: its fixed slots plus the advisory
// counter. It is read from and written back to the block chain identified
// by a directory entry's FirstBlock by the caller (fatfs.FileSystem).
type Block struct {
	Entries    [MaxEntries]Entry
	EntryCount uint16
}

// Decode parses a directory's content from its concatenated block bytes
// (BlockSpan * block.Size bytes).
func Decode(buf []byte) Block {
	var b Block
	for i := 0; i < MaxEntries; i++ {
		start := i * EntrySize
		b.Entries[i] = decodeEntry(buf[start : start+EntrySize])
	}
	b.EntryCount = binary.LittleEndian.Uint16(buf[MaxEntries*EntrySize : MaxEntries*EntrySize+2])
	return b
}

// Encode serializes the directory's content into a zero-padded buffer
// exactly BlockSpan * block.Size bytes long, ready to be written across
// that many consecutive blocks.
func (b *Block) Encode() ([]byte, error) {
	buf := make([]byte, BlockSpan*block.Size)
	for i, e := range b.Entries {
		eb, err := e.encode()
		if err != nil {
			return nil, err
		}
		copy(buf[i*EntrySize:(i+1)*EntrySize], eb)
	}
	binary.LittleEndian.PutUint16(buf[MaxEntries*EntrySize:MaxEntries*EntrySize+2], b.EntryCount)
	return buf, nil
}

// FindByName performs a linear scan of the fixed slots. A slot matches if
// it is occupied and its name equals name byte-for-byte (case-sensitive).
// The authoritative occupancy test is Entry.Occupied, never EntryCount.
func (b *Block) FindByName(name string) (int, bool) {
	for i, e := range b.Entries {
		if e.Occupied() && e.Name == name {
			return i, true
		}
	}
	return -1, false
}

// FindFree returns the first unoccupied slot index, or -1 if the
// directory is full.
func (b *Block) FindFree() int {
	for i, e := range b.Entries {
		if !e.Occupied() {
			return i
		}
	}
	return -1
}

// List returns all occupied slots, in slot order.
func (b *Block) List() []Entry {
	var out []Entry
	for _, e := range b.Entries {
		if e.Occupied() {
			out = append(out, e)
		}
	}
	return out
}

// Insert writes e into slot i and bumps the advisory counter.
func (b *Block) Insert(i int, e Entry) {
	b.Entries[i] = e
	b.EntryCount++
}

// Remove zeroes slot i and decrements the advisory counter, floored at 0
// so a stale or already-inconsistent counter never underflows.
func (b *Block) Remove(i int) {
	b.Entries[i] = Entry{}
	if b.EntryCount > 0 {
		b.EntryCount--
	}
}

// NewEmpty returns a zeroed directory content block with no entries.
func NewEmpty() Block {
	return Block{}
}
