// Package directory implements the fixed-slot directory block: 128
// directory-entry slots plus an advisory counter, loaded from raw bytes
// and encoded back with zero-padding, using a single 64-byte name field
// per slot rather than a short/long dual-entry scheme.
package directory

import (
	"encoding/binary"
	"errors"
)

// MaxEntries is the number of fixed slots in one directory.
const MaxEntries = 128

// MaxNameLen is the size of the filename field, NUL terminator included.
const MaxNameLen = 64

// EntrySize is the on-disk size of one directory entry: 64-byte name +
// 4-byte size + 2-byte first block + 1-byte type + 4-byte created time +
// 4-byte modified time + 1-byte attributes.
const EntrySize = MaxNameLen + 4 + 2 + 1 + 4 + 4 + 1

// Type identifies whether a directory entry names a file or a directory.
type Type uint8

const (
	TypeFile Type = 0
	TypeDir  Type = 1
)

// ErrNameTooLong is returned when a name (including its NUL terminator)
// would not fit in MaxNameLen bytes.
var ErrNameTooLong = errors.New("name too long")

// Entry is the in-memory form of one directory slot.
type Entry struct {
	Name         string
	FileSize     uint32
	FirstBlock   uint16
	Type         Type
	CreatedTime  uint32
	ModifiedTime uint32
	Attributes   uint8
}

// Occupied reports whether this slot holds a live entry. The on-disk
// convention is canonical (filename[0] == 0 means empty) and is preserved
// here as "Name == \"\"" in the in-memory representation, per the
// instruction to keep the disk convention while giving callers an
// explicit notion of occupancy rather than re-deriving it ad hoc.
func (e Entry) Occupied() bool {
	return e.Name != ""
}

// encode writes e into a fresh EntrySize-byte buffer.
func (e Entry) encode() ([]byte, error) {
	if len(e.Name)+1 > MaxNameLen {
		return nil, ErrNameTooLong
	}
	buf := make([]byte, EntrySize)
	if e.Occupied() {
		copy(buf[0:MaxNameLen], e.Name)
	}
	binary.LittleEndian.PutUint32(buf[64:68], e.FileSize)
	binary.LittleEndian.PutUint16(buf[68:70], e.FirstBlock)
	buf[70] = uint8(e.Type)
	binary.LittleEndian.PutUint32(buf[71:75], e.CreatedTime)
	binary.LittleEndian.PutUint32(buf[75:79], e.ModifiedTime)
	buf[79] = e.Attributes
	return buf, nil
}

// decodeEntry parses one EntrySize-byte slot.
func decodeEntry(buf []byte) Entry {
	var e Entry
	if buf[0] != 0 {
		n := 0
		for n < MaxNameLen && buf[n] != 0 {
			n++
		}
		e.Name = string(buf[0:n])
	}
	e.FileSize = binary.LittleEndian.Uint32(buf[64:68])
	e.FirstBlock = binary.LittleEndian.Uint16(buf[68:70])
	e.Type = Type(buf[70])
	e.CreatedTime = binary.LittleEndian.Uint32(buf[71:75])
	e.ModifiedTime = binary.LittleEndian.Uint32(buf[75:79])
	e.Attributes = buf[79]
	return e
}
