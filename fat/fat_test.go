package fat

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blocklayer/myfatfs/block"
	"github.com/blocklayer/myfatfs/bootsector"
)

func TestNewMarksReservedRegionBad(t *testing.T) {
	tbl := New()
	for i := uint32(0); i < bootsector.DataStartBlock; i++ {
		require.Equal(t, Bad, tbl.Next(i), "block %d should be Bad", i)
	}
	require.Equal(t, Free, tbl.Next(bootsector.DataStartBlock))
	require.Equal(t, Free, tbl.Next(block.Count-1))
}

func TestBytesRoundTrip(t *testing.T) {
	tbl := New()
	b, err := tbl.Allocate()
	require.NoError(t, err)
	tbl.SetNext(b, EOF)

	buf := tbl.Bytes()
	require.Len(t, buf, block.Count*2)

	got, err := FromBytes(buf)
	require.NoError(t, err)
	require.Equal(t, tbl.entries, got.entries)
}

func TestAllocateSkipsFreeSentinelCollision(t *testing.T) {
	tbl := New()
	// drain every block up to just before the 0xFFFF collision index
	for i := bootsector.DataStartBlock; i < uint32(Free); i++ {
		b, err := tbl.Allocate()
		require.NoError(t, err)
		require.Equal(t, i, b)
	}
	// 0xFFFF is the last block index, so skipping it leaves nothing to
	// allocate even though its own entry is still Free
	_, err := tbl.Allocate()
	require.ErrorIs(t, err, ErrOutOfSpace)
	require.Equal(t, Free, tbl.Next(uint32(Free)))
}

func TestAllocateReturnsOutOfSpaceWhenFull(t *testing.T) {
	tbl := New()
	for {
		_, err := tbl.Allocate()
		if err != nil {
			require.ErrorIs(t, err, ErrOutOfSpace)
			break
		}
	}
	_, err := tbl.Allocate()
	require.ErrorIs(t, err, ErrOutOfSpace)
}

func TestFreeChainMarksWholeChainFree(t *testing.T) {
	tbl := New()
	a, err := tbl.Allocate()
	require.NoError(t, err)
	b, err := tbl.Allocate()
	require.NoError(t, err)
	tbl.SetNext(a, uint16(b))
	tbl.SetNext(b, EOF)

	require.NoError(t, tbl.FreeChain(uint16(a)))
	require.Equal(t, Free, tbl.Next(a))
	require.Equal(t, Free, tbl.Next(b))
}

func TestFreeChainNoopOnEOF(t *testing.T) {
	tbl := New()
	require.NoError(t, tbl.FreeChain(EOF))
}

func TestFreeChainRejectsCorruptChain(t *testing.T) {
	tbl := New()
	require.ErrorIs(t, tbl.FreeChain(Bad), ErrChainCorrupt)
}

func TestWalkReturnsChainInOrder(t *testing.T) {
	tbl := New()
	a, _ := tbl.Allocate()
	b, _ := tbl.Allocate()
	c, _ := tbl.Allocate()
	tbl.SetNext(a, uint16(b))
	tbl.SetNext(b, uint16(c))
	tbl.SetNext(c, EOF)

	chain, err := tbl.Walk(uint16(a))
	require.NoError(t, err)
	require.Equal(t, []uint32{a, b, c}, chain)
}

func TestWalkDetectsCycle(t *testing.T) {
	tbl := New()
	a, _ := tbl.Allocate()
	b, _ := tbl.Allocate()
	tbl.SetNext(a, uint16(b))
	tbl.SetNext(b, uint16(a)) // cycle instead of EOF

	_, err := tbl.Walk(uint16(a))
	require.ErrorIs(t, err, ErrChainCorrupt)
}

func TestFreeCountDecreasesAsBlocksAllocate(t *testing.T) {
	tbl := New()
	before := tbl.FreeCount()
	_, err := tbl.Allocate()
	require.NoError(t, err)
	require.Equal(t, before-1, tbl.FreeCount())
}
