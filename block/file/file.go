// Package file implements block.Store on top of a regular OS file: a thin
// wrapper that turns block-indexed reads/writes into ReadAt/WriteAt calls
// at the right offset.
package file

import (
	"errors"
	"fmt"
	"os"

	"github.com/blocklayer/myfatfs/block"
)

// Store is a block.Store backed by an *os.File.
type Store struct {
	f        *os.File
	readOnly bool
	locked   bool
}

// CreateImage creates a new zero-filled image file of exactly
// block.Count*block.Size bytes at path. The file must not already exist.
func CreateImage(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o666)
	if err != nil {
		return fmt.Errorf("create image %s: %w", path, err)
	}
	defer f.Close()

	if err := f.Truncate(int64(block.Count) * int64(block.Size)); err != nil {
		return fmt.Errorf("size image %s: %w", path, err)
	}
	return nil
}

// Open opens an existing image file at path. If readOnly is false, an
// advisory exclusive lock is taken on the file for the lifetime of the
// Store so that a second process cannot mount the same image read-write
// at the same time (see flock_unix.go / flock_other.go).
func Open(path string, readOnly bool) (*Store, error) {
	if path == "" {
		return nil, errors.New("must pass a path to an image file")
	}

	flags := os.O_RDONLY
	if !readOnly {
		flags = os.O_RDWR
	}
	f, err := os.OpenFile(path, flags, 0o666)
	if err != nil {
		return nil, fmt.Errorf("open image %s: %w", path, err)
	}

	s := &Store{f: f, readOnly: readOnly}
	if !readOnly {
		if err := tryLock(f); err != nil {
			f.Close()
			return nil, fmt.Errorf("lock image %s: %w", path, err)
		}
		s.locked = true
	}
	return s, nil
}

var _ block.Store = (*Store)(nil)

// ReadBlock implements block.Store.
func (s *Store) ReadBlock(n uint32, buf []byte) error {
	if s == nil || s.f == nil {
		return block.ErrNotOpen
	}
	if err := block.CheckRange(n); err != nil {
		return err
	}
	_, err := s.f.ReadAt(buf[:block.Size], int64(n)*block.Size)
	if err != nil {
		return fmt.Errorf("read block %d: %w", n, err)
	}
	return nil
}

// WriteBlock implements block.Store.
func (s *Store) WriteBlock(n uint32, buf []byte) error {
	if s == nil || s.f == nil {
		return block.ErrNotOpen
	}
	if s.readOnly {
		return block.ErrReadOnly
	}
	if err := block.CheckRange(n); err != nil {
		return err
	}
	_, err := s.f.WriteAt(buf[:block.Size], int64(n)*block.Size)
	if err != nil {
		return fmt.Errorf("write block %d: %w", n, err)
	}
	return nil
}

// Close implements block.Store.
func (s *Store) Close() error {
	if s == nil || s.f == nil {
		return nil
	}
	if s.locked {
		unlock(s.f)
		s.locked = false
	}
	err := s.f.Close()
	s.f = nil
	return err
}
