package file

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blocklayer/myfatfs/block"
)

func TestCreateImageSizedExactly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.bin")
	require.NoError(t, CreateImage(path))

	store, err := Open(path, false)
	require.NoError(t, err)
	defer store.Close()

	buf := make([]byte, block.Size)
	require.NoError(t, store.ReadBlock(block.Count-1, buf))
	require.NoError(t, store.WriteBlock(block.Count-1, buf))
	require.ErrorIs(t, store.ReadBlock(block.Count, buf), block.ErrOutOfRange)
}

func TestCreateImageRefusesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.bin")
	require.NoError(t, CreateImage(path))
	require.Error(t, CreateImage(path))
}

func TestReadWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.bin")
	require.NoError(t, CreateImage(path))

	store, err := Open(path, false)
	require.NoError(t, err)

	payload := make([]byte, block.Size)
	for i := range payload {
		payload[i] = byte(i)
	}
	require.NoError(t, store.WriteBlock(42, payload))
	require.NoError(t, store.Close())

	store2, err := Open(path, true)
	require.NoError(t, err)
	defer store2.Close()

	out := make([]byte, block.Size)
	require.NoError(t, store2.ReadBlock(42, out))
	require.Equal(t, payload, out)
}

func TestReadOnlyStoreRejectsWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.bin")
	require.NoError(t, CreateImage(path))

	store, err := Open(path, true)
	require.NoError(t, err)
	defer store.Close()

	buf := make([]byte, block.Size)
	require.ErrorIs(t, store.WriteBlock(0, buf), block.ErrReadOnly)
}

func TestSecondReadWriteOpenIsLockedOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.bin")
	require.NoError(t, CreateImage(path))

	first, err := Open(path, false)
	require.NoError(t, err)
	defer first.Close()

	_, err = Open(path, false)
	if err == nil {
		t.Skip("advisory locking unavailable on this platform")
	}
}

func TestClosedStoreRejectsIO(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.bin")
	require.NoError(t, CreateImage(path))

	store, err := Open(path, false)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	buf := make([]byte, block.Size)
	require.ErrorIs(t, store.ReadBlock(0, buf), block.ErrNotOpen)
	require.ErrorIs(t, store.WriteBlock(0, buf), block.ErrNotOpen)
}
