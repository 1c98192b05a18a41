// Package fatfs implements the public filesystem operations — format,
// mount, unmount, and the per-file/per-directory verbs — composing
// block.Store, bootsector, fat, and directory into one mounted image at a
// time. There is no partition table mediating between a disk and a
// filesystem here: one image, one filesystem, one FileSystem value.
package fatfs

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/blocklayer/myfatfs/block"
	"github.com/blocklayer/myfatfs/block/file"
	"github.com/blocklayer/myfatfs/bootsector"
	"github.com/blocklayer/myfatfs/directory"
	"github.com/blocklayer/myfatfs/fat"
)

// translateStoreErr maps a block.Store failure onto the sentinel a caller
// of a fatfs operation can match with errors.Is: a bounds violation stays
// identifiable as ErrOutOfRangeBlock, anything else (a failed host read,
// a stubbed-out test failure) becomes ErrIOError.
func translateStoreErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, block.ErrOutOfRange) {
		return ErrOutOfRangeBlock
	}
	return fmt.Errorf("%w: %v", ErrIOError, err)
}

// translateFatErr maps a fat.Table failure onto the sentinel a caller of
// a fatfs operation can match with errors.Is: fat.ErrChainCorrupt and
// fat.ErrOutOfSpace (distinct values in the fat package) become the public
// fatfs.ErrChainCorrupt and fatfs.ErrOutOfSpace, the same way
// translateStoreErr bridges block.Store failures onto fatfs's own sentinels.
func translateFatErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, fat.ErrChainCorrupt) {
		return ErrChainCorrupt
	}
	if errors.Is(err, fat.ErrOutOfSpace) {
		return ErrOutOfSpace
	}
	return err
}

// Clock is the capability the core receives for sourcing timestamps,
// rather than calling time.Now() itself, so tests can pin it to a fixed
// value. See util/timestamp.Now for the default implementation.
type Clock func() uint32

// EntryInfo is the read-only view of a directory entry returned by Ls and
// Stat-like lookups.
type EntryInfo struct {
	Name         string
	IsDir        bool
	Size         uint32
	CreatedTime  uint32
	ModifiedTime uint32
}

// Violation describes one invariant breach found by Check.
type Violation struct {
	Path   string
	Detail string
}

// Options configures Format and Mount.
type Options struct {
	// Clock sources created_time/modified_time. Required.
	Clock Clock
	// Logger receives structured operation logs. If nil, logging is
	// silenced (logrus.New() with output discarded), so callers that
	// don't care about logs pay nothing extra.
	Logger *logrus.Logger
}

// FileSystem is one mounted myfatfs image: the open backing store, the
// boot-sector copy, the in-memory FAT, and the current-directory cursor,
// held as an explicit value rather than process-wide global state.
type FileSystem struct {
	store     block.Store
	boot      bootsector.BootSector
	fatTable  *fat.Table
	curDir    uint32
	curPath   string
	clock     Clock
	log       *logrus.Entry
	SessionID uuid.UUID
}

func newLogger(opts Options) *logrus.Entry {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(discardWriter{})
	}
	return logrus.NewEntry(logger)
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// Format creates (if needed) a zero-filled image at path and lays down a
// fresh boot sector, FAT, and empty root directory. Re-formatting an
// existing image destroys all prior content.
func Format(path string, opts Options) error {
	if opts.Clock == nil {
		return wrapErr("format", path, fmt.Errorf("Options.Clock is required"))
	}
	log := newLogger(opts)

	if err := file.CreateImage(path); err != nil {
		// an existing file of the right size is fine; anything else isn't
		if !isExistsErr(err) {
			return wrapErr("format", path, err)
		}
		info, statErr := os.Stat(path)
		if statErr != nil {
			return wrapErr("format", path, statErr)
		}
		if want := int64(block.Count) * int64(block.Size); info.Size() != want {
			return wrapErr("format", path, fmt.Errorf("existing image is %d bytes, want %d", info.Size(), want))
		}
	}

	store, err := file.Open(path, false)
	if err != nil {
		return wrapErr("format", path, err)
	}
	defer store.Close()

	if err := formatStore(store, opts.Clock()); err != nil {
		return wrapErr("format", path, err)
	}
	log.WithField("path", path).Debug("formatted myfatfs image")
	return nil
}

// formatStore lays down a fresh boot sector, FAT, and root directory onto
// an already-open store, factored out of Format so package tests can
// exercise the format/mount lifecycle against an in-memory
// testhelper.BlockStore instead of a real file.
func formatStore(store block.Store, createdTime uint32) error {
	boot := bootsector.New(createdTime)
	if err := store.WriteBlock(0, boot.Encode()); err != nil {
		return translateStoreErr(err)
	}

	fatTable := fat.New()
	if err := writeFATBlocks(store, fatTable); err != nil {
		return err
	}

	rootBlk := directory.NewEmpty()
	return writeDirSpan(store, bootsector.RootDirBlock, &rootBlk)
}

// Mount opens path, validates its signature, and loads the FAT into
// memory. It always returns a new FileSystem and does not unmount any
// FileSystem mounted earlier. The image is opened read-write under an
// exclusive advisory lock where flock is available, so mounting an image
// that an earlier FileSystem still holds fails until that one is
// unmounted.
func Mount(path string, opts Options) (*FileSystem, error) {
	if opts.Clock == nil {
		return nil, wrapErr("mount", path, fmt.Errorf("Options.Clock is required"))
	}

	store, err := file.Open(path, false)
	if err != nil {
		return nil, wrapErr("mount", path, err)
	}

	fs, err := mountStore(store, opts)
	if err != nil {
		store.Close()
		return nil, wrapErr("mount", path, err)
	}
	fs.log = fs.log.WithField("path", path)
	fs.log.Debug("mounted myfatfs image")
	return fs, nil
}

// mountStore loads the boot sector and FAT from an already-open store,
// factored out of Mount for the same reason formatStore is: package
// tests drive it directly against testhelper.BlockStore.
func mountStore(store block.Store, opts Options) (*FileSystem, error) {
	log := newLogger(opts)

	bootBuf := make([]byte, block.Size)
	if err := store.ReadBlock(0, bootBuf); err != nil {
		return nil, translateStoreErr(err)
	}
	boot, err := bootsector.Decode(bootBuf)
	if err != nil {
		return nil, ErrNotAFilesystem
	}

	fatTable, err := readFATBlocks(store)
	if err != nil {
		return nil, err
	}

	sessionID := uuid.New()
	return &FileSystem{
		store:     store,
		boot:      boot,
		fatTable:  fatTable,
		curDir:    bootsector.RootDirBlock,
		curPath:   "/",
		clock:     opts.Clock,
		log:       log.WithField("session", sessionID.String()),
		SessionID: sessionID,
	}, nil
}

// Unmount releases the backing file handle and the in-memory FAT. It is
// always safe to call, including on an already-unmounted FileSystem.
func (fs *FileSystem) Unmount() error {
	if fs == nil || fs.store == nil {
		return nil
	}
	if fs.log != nil {
		fs.log.Debug("unmounted myfatfs image")
	}
	err := fs.store.Close()
	fs.store = nil
	fs.fatTable = nil
	return err
}

func (fs *FileSystem) mounted() bool {
	return fs != nil && fs.store != nil
}

func (fs *FileSystem) requireMounted(op string) error {
	if !fs.mounted() {
		return wrapErr(op, "", ErrNotMounted)
	}
	return nil
}

// CurrentPath returns the cursor's textual path, e.g. "/" or "/a/b".
func (fs *FileSystem) CurrentPath() string {
	if fs == nil {
		return ""
	}
	return fs.curPath
}

// Label returns the image's volume label.
func (fs *FileSystem) Label() string {
	return fs.boot.Label()
}

// --- FAT I/O helpers -------------------------------------------------

func writeFATBlocks(store block.Store, t *fat.Table) error {
	buf := t.Bytes()
	for i := 0; i < bootsector.FATBlocks; i++ {
		chunk := buf[i*block.Size : (i+1)*block.Size]
		if err := store.WriteBlock(uint32(1+i), chunk); err != nil {
			return translateStoreErr(err)
		}
	}
	return nil
}

func readFATBlocks(store block.Store) (*fat.Table, error) {
	buf := make([]byte, bootsector.FATBlocks*block.Size)
	for i := 0; i < bootsector.FATBlocks; i++ {
		if err := store.ReadBlock(uint32(1+i), buf[i*block.Size:(i+1)*block.Size]); err != nil {
			return nil, translateStoreErr(err)
		}
	}
	return fat.FromBytes(buf)
}

func (fs *FileSystem) flushFAT() error {
	return writeFATBlocks(fs.store, fs.fatTable)
}

// allocateBlock allocates one block and flushes the FAT to disk
// immediately before returning.
func (fs *FileSystem) allocateBlock() (uint32, error) {
	b, err := fs.fatTable.Allocate()
	if err != nil {
		return 0, translateFatErr(err)
	}
	if err := fs.flushFAT(); err != nil {
		return 0, err
	}
	return b, nil
}

// freeChain walks a chain marking every block free, then flushes the FAT
// once the walk completes.
func (fs *FileSystem) freeChain(head uint16) error {
	if err := fs.fatTable.FreeChain(head); err != nil {
		return translateFatErr(err)
	}
	return fs.flushFAT()
}

// walkChain returns the chain starting at head, translating
// fat.ErrChainCorrupt onto fatfs.ErrChainCorrupt so every caller gets the
// same public sentinel regardless of which operation hit the corruption.
func (fs *FileSystem) walkChain(head uint16) ([]uint32, error) {
	chain, err := fs.fatTable.Walk(head)
	if err != nil {
		return nil, translateFatErr(err)
	}
	return chain, nil
}

// buildChainAndWrite allocates enough blocks to hold len(data) bytes,
// writing each block's slice of data as soon as its block is allocated
// and linked, then terminates the chain with EOF and issues one final
// flush. It is used for file content; a new directory's chain is built by
// allocateDirChain instead.
func (fs *FileSystem) buildChainAndWrite(data []byte) ([]uint32, error) {
	n := (len(data) + block.Size - 1) / block.Size
	if n == 0 {
		return nil, nil
	}

	chain := make([]uint32, 0, n)
	for i := 0; i < n; i++ {
		b, err := fs.allocateBlock()
		if err != nil {
			if len(chain) > 0 {
				_ = fs.freeChain(uint16(chain[0]))
			}
			return nil, err
		}
		if i > 0 {
			fs.fatTable.SetNext(chain[i-1], uint16(b))
		}
		chain = append(chain, b)

		buf := make([]byte, block.Size)
		start := i * block.Size
		end := start + block.Size
		if end > len(data) {
			end = len(data)
		}
		copy(buf, data[start:end])
		if err := fs.store.WriteBlock(b, buf); err != nil {
			_ = fs.freeChain(uint16(chain[0]))
			return nil, translateStoreErr(err)
		}
	}
	fs.fatTable.SetNext(chain[n-1], fat.EOF)
	if err := fs.flushFAT(); err != nil {
		return nil, err
	}
	return chain, nil
}

// --- directory I/O helpers -------------------------------------------

// dirSpan returns the list of block numbers holding a directory's
// content, in order. The root directory is a fixed, reserved span (its
// blocks are all tagged Bad and never touched by the FAT allocator); any
// other directory is a fixed-length FAT chain headed by head.
func (fs *FileSystem) dirSpan(head uint32) ([]uint32, error) {
	if head == bootsector.RootDirBlock {
		span := make([]uint32, directory.BlockSpan)
		for i := range span {
			span[i] = head + uint32(i)
		}
		return span, nil
	}
	chain, err := fs.walkChain(uint16(head))
	if err != nil {
		return nil, err
	}
	if len(chain) != directory.BlockSpan {
		return nil, ErrChainCorrupt
	}
	return chain, nil
}

func readDirSpan(store block.Store, span []uint32) (directory.Block, error) {
	buf := make([]byte, len(span)*block.Size)
	for i, b := range span {
		if err := store.ReadBlock(b, buf[i*block.Size:(i+1)*block.Size]); err != nil {
			return directory.Block{}, translateStoreErr(err)
		}
	}
	return directory.Decode(buf), nil
}

func writeDirSpan(store block.Store, head uint32, blk *directory.Block) error {
	span := make([]uint32, directory.BlockSpan)
	for i := range span {
		span[i] = head + uint32(i)
	}
	return writeDirBlocks(store, span, blk)
}

func writeDirBlocks(store block.Store, span []uint32, blk *directory.Block) error {
	buf, err := blk.Encode()
	if err != nil {
		return err
	}
	for i, b := range span {
		if err := store.WriteBlock(b, buf[i*block.Size:(i+1)*block.Size]); err != nil {
			return translateStoreErr(err)
		}
	}
	return nil
}

func (fs *FileSystem) readDir(head uint32) (directory.Block, error) {
	span, err := fs.dirSpan(head)
	if err != nil {
		return directory.Block{}, err
	}
	return readDirSpan(fs.store, span)
}

func (fs *FileSystem) writeDir(head uint32, blk *directory.Block) error {
	span, err := fs.dirSpan(head)
	if err != nil {
		return err
	}
	return writeDirBlocks(fs.store, span, blk)
}

func validateName(name string) error {
	if len(name) == 0 || len(name)+1 > directory.MaxNameLen {
		return ErrNameTooLong
	}
	if strings.ContainsRune(name, 0) {
		return ErrNameTooLong
	}
	return nil
}

func isExistsErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "exist")
}
