// Package testhelper provides test doubles shared across myfatfs's
// package tests: BlockStore, an in-memory block.Store for simulating
// I/O failures without a real file on disk.
package testhelper

import "github.com/blocklayer/myfatfs/block"

// BlockStore is a block.Store backed by an in-memory buffer, with
// optional hooks to inject failures on specific block indexes.
type BlockStore struct {
	Buf []byte // block.Count * block.Size bytes

	// FailRead/FailWrite, if set, are consulted before every
	// ReadBlock/WriteBlock; returning a non-nil error fails that call
	// without touching Buf.
	FailRead  func(n uint32) error
	FailWrite func(n uint32) error

	closed bool
}

// NewBlockStore returns a zero-filled BlockStore sized for a full image.
func NewBlockStore() *BlockStore {
	return &BlockStore{Buf: make([]byte, block.Count*block.Size)}
}

var _ block.Store = (*BlockStore)(nil)

func (s *BlockStore) ReadBlock(n uint32, buf []byte) error {
	if s.closed {
		return block.ErrNotOpen
	}
	if s.FailRead != nil {
		if err := s.FailRead(n); err != nil {
			return err
		}
	}
	if err := block.CheckRange(n); err != nil {
		return err
	}
	copy(buf, s.Buf[int(n)*block.Size:int(n)*block.Size+block.Size])
	return nil
}

func (s *BlockStore) WriteBlock(n uint32, buf []byte) error {
	if s.closed {
		return block.ErrNotOpen
	}
	if s.FailWrite != nil {
		if err := s.FailWrite(n); err != nil {
			return err
		}
	}
	if err := block.CheckRange(n); err != nil {
		return err
	}
	copy(s.Buf[int(n)*block.Size:int(n)*block.Size+block.Size], buf[:block.Size])
	return nil
}

func (s *BlockStore) Close() error {
	s.closed = true
	return nil
}
