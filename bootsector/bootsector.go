// Package bootsector encodes and decodes the single boot sector stored at
// block 0 of a myfatfs image: fixed-offset little-endian fields packed
// into a zero-padded block buffer.
package bootsector

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/blocklayer/myfatfs/block"
	"github.com/blocklayer/myfatfs/directory"
)

// Signature is the 8-byte, NUL-padded magic value every valid image
// begins with.
var Signature = [8]byte{'M', 'Y', 'F', 'A', 'T', 'F', 'S'}

// VolumeLabel is the fixed label stamped on every freshly formatted image.
const VolumeLabel = "MYVOLUME"

// FATBlocks is the number of blocks occupied by the FAT: 128 blocks of
// 1024 bytes hold the 65536 16-bit entries (ceil(65536*2/1024)).
const FATBlocks = 128

// RootDirBlock is the fixed block number at which the root directory's
// content chain begins.
const RootDirBlock = 1 + FATBlocks

// DataStartBlock is the first block number available for file/directory
// data allocation: it follows the root directory's full content span
// (directory.BlockSpan blocks), not a single block, since a 128-entry,
// 64-byte-name directory cannot be packed into one 1024-byte block (see
// directory.BlockSpan's doc comment for why).
var DataStartBlock = uint32(RootDirBlock + directory.BlockSpan)

// ErrBadSignature is returned by Decode when the first 8 bytes of a
// candidate boot sector do not match Signature.
var ErrBadSignature = fmt.Errorf("bad boot sector signature, expected %q", string(Signature[:]))

// BootSector is the in-memory form of block 0.
type BootSector struct {
	Signature      [8]byte
	TotalBlocks    uint32
	FATBlocks      uint32
	RootDirBlock   uint32
	DataStartBlock uint32
	BlockSize      uint16
	FATCopies      uint8
	VolumeLabel    [16]byte
	CreatedTime    uint32
}

// New builds the boot sector written at format time: fixed geometry,
// the format signature, a single FAT copy, the fixed volume label, and
// createdTime (seconds since epoch, from the caller's clock).
func New(createdTime uint32) BootSector {
	var label [16]byte
	copy(label[:], VolumeLabel)

	return BootSector{
		Signature:      Signature,
		TotalBlocks:    block.Count,
		FATBlocks:      FATBlocks,
		RootDirBlock:   RootDirBlock,
		DataStartBlock: DataStartBlock,
		BlockSize:      block.Size,
		FATCopies:      1,
		VolumeLabel:    label,
		CreatedTime:    createdTime,
	}
}

// Encode serializes b into a zero-padded block.Size-byte buffer ready to
// be written to block 0.
func (b BootSector) Encode() []byte {
	buf := make([]byte, block.Size)
	copy(buf[0:8], b.Signature[:])
	binary.LittleEndian.PutUint32(buf[8:12], b.TotalBlocks)
	binary.LittleEndian.PutUint32(buf[12:16], b.FATBlocks)
	binary.LittleEndian.PutUint32(buf[16:20], b.RootDirBlock)
	binary.LittleEndian.PutUint32(buf[20:24], b.DataStartBlock)
	binary.LittleEndian.PutUint16(buf[24:26], b.BlockSize)
	buf[26] = b.FATCopies
	copy(buf[27:43], b.VolumeLabel[:])
	binary.LittleEndian.PutUint32(buf[43:47], b.CreatedTime)
	// remainder of the block (buf[47:]) is left zero-filled
	return buf
}

// Decode parses a block.Size-byte buffer read from block 0 into a
// BootSector, validating the signature.
func Decode(buf []byte) (BootSector, error) {
	if len(buf) < block.Size {
		return BootSector{}, fmt.Errorf("boot sector buffer too short: %d bytes", len(buf))
	}

	var b BootSector
	copy(b.Signature[:], buf[0:8])
	if err := Validate(b.Signature); err != nil {
		return BootSector{}, err
	}
	b.TotalBlocks = binary.LittleEndian.Uint32(buf[8:12])
	b.FATBlocks = binary.LittleEndian.Uint32(buf[12:16])
	b.RootDirBlock = binary.LittleEndian.Uint32(buf[16:20])
	b.DataStartBlock = binary.LittleEndian.Uint32(buf[20:24])
	b.BlockSize = binary.LittleEndian.Uint16(buf[24:26])
	b.FATCopies = buf[26]
	copy(b.VolumeLabel[:], buf[27:43])
	b.CreatedTime = binary.LittleEndian.Uint32(buf[43:47])
	return b, nil
}

// Validate returns ErrBadSignature unless sig matches Signature exactly.
func Validate(sig [8]byte) error {
	if !bytes.Equal(sig[:], Signature[:]) {
		return ErrBadSignature
	}
	return nil
}

// Label returns the volume label with its NUL padding trimmed.
func (b BootSector) Label() string {
	n := bytes.IndexByte(b.VolumeLabel[:], 0)
	if n < 0 {
		n = len(b.VolumeLabel)
	}
	return string(b.VolumeLabel[:n])
}
