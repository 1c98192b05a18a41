package directory

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blocklayer/myfatfs/block"
	"github.com/blocklayer/myfatfs/util"
)

func TestBlockSpanHoldsAllEntriesPlusCounter(t *testing.T) {
	require.GreaterOrEqual(t, BlockSpan*block.Size, MaxEntries*EntrySize+2)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	b := NewEmpty()
	b.Insert(0, Entry{Name: "a.txt", FileSize: 5, FirstBlock: 200, Type: TypeFile, CreatedTime: 1, ModifiedTime: 2})
	b.Insert(1, Entry{Name: "sub", FirstBlock: 201, Type: TypeDir, CreatedTime: 3, ModifiedTime: 3})

	buf, err := b.Encode()
	require.NoError(t, err)
	require.Len(t, buf, BlockSpan*block.Size)

	got := Decode(buf)
	require.Equal(t, b, got)
}

func TestEncodeRejectsOverlongName(t *testing.T) {
	b := NewEmpty()
	b.Insert(0, Entry{Name: strings.Repeat("x", MaxNameLen), Type: TypeFile})
	_, err := b.Encode()
	require.ErrorIs(t, err, ErrNameTooLong)
}

func TestFindByNameAndFindFree(t *testing.T) {
	b := NewEmpty()
	b.Insert(3, Entry{Name: "hello"})

	idx, ok := b.FindByName("hello")
	require.True(t, ok)
	require.Equal(t, 3, idx)

	_, ok = b.FindByName("missing")
	require.False(t, ok)

	free := b.FindFree()
	require.NotEqual(t, 3, free)
}

func TestFindFreeReturnsMinusOneWhenFull(t *testing.T) {
	b := NewEmpty()
	for i := 0; i < MaxEntries; i++ {
		b.Insert(i, Entry{Name: "f"})
	}
	require.Equal(t, -1, b.FindFree())
}

func TestListReturnsOnlyOccupiedSlotsInOrder(t *testing.T) {
	b := NewEmpty()
	b.Insert(5, Entry{Name: "b"})
	b.Insert(2, Entry{Name: "a"})

	list := b.List()
	require.Len(t, list, 2)
	require.Equal(t, "a", list[0].Name)
	require.Equal(t, "b", list[1].Name)
}

func TestRemoveZeroesSlotAndFloorsCounter(t *testing.T) {
	b := NewEmpty()
	b.Insert(0, Entry{Name: "a"})
	require.Equal(t, uint16(1), b.EntryCount)

	b.Remove(0)
	require.False(t, b.Entries[0].Occupied())
	require.Equal(t, uint16(0), b.EntryCount)

	// removing an already-empty slot must not underflow
	b.Remove(0)
	require.Equal(t, uint16(0), b.EntryCount)
}

func TestEncodeChangesBytesWhenEntryChanges(t *testing.T) {
	b := NewEmpty()
	b.Insert(0, Entry{Name: "a.txt", FileSize: 5, FirstBlock: 200, Type: TypeFile})
	before, err := b.Encode()
	require.NoError(t, err)

	b.Entries[0].FileSize = 6
	after, err := b.Encode()
	require.NoError(t, err)

	different, diff := util.DumpByteSlicesWithDiffs(before, after, 32, true, true, false)
	require.True(t, different, "expected encode to change bytes after mutating an entry:\n%s", diff)
}

func TestOccupiedUsesNameConvention(t *testing.T) {
	var e Entry
	require.False(t, e.Occupied())
	e.Name = "x"
	require.True(t, e.Occupied())
}
