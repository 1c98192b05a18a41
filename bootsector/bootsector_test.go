package bootsector

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blocklayer/myfatfs/block"
	"github.com/blocklayer/myfatfs/directory"
	"github.com/blocklayer/myfatfs/util"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	b := New(1_700_000_000)
	buf := b.Encode()
	require.Len(t, buf, block.Size)

	got, err := Decode(buf)
	require.NoError(t, err)
	require.Equal(t, b, got)
}

func TestDecodeRejectsBadSignature(t *testing.T) {
	b := New(0)
	buf := b.Encode()
	buf[0] = 'X'

	_, err := Decode(buf)
	require.ErrorIs(t, err, ErrBadSignature)
}

func TestLabelTrimsPadding(t *testing.T) {
	b := New(0)
	require.Equal(t, VolumeLabel, b.Label())
}

func TestEncodePadsRemainderWithZeros(t *testing.T) {
	b := New(42)
	buf := b.Encode()
	for i := 47; i < block.Size; i++ {
		if buf[i] != 0 {
			t.Fatalf("byte %d not zero-padded: got %d\n%s", i, buf[i], util.DumpByteSlice(buf, 32, true, true, false, []int{i}))
		}
	}
}

func TestDataStartBlockFollowsReservedRegion(t *testing.T) {
	require.Equal(t, uint32(RootDirBlock+directory.BlockSpan), DataStartBlock)
}
