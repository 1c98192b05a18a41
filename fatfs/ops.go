package fatfs

import (
	"github.com/blocklayer/myfatfs/block"
	"github.com/blocklayer/myfatfs/directory"
	"github.com/blocklayer/myfatfs/fat"
)

// CreateFile adds an empty file entry to the current directory.
func (fs *FileSystem) CreateFile(name string) error {
	const op = "create_file"
	if err := fs.requireMounted(op); err != nil {
		return err
	}
	if err := validateName(name); err != nil {
		return wrapErr(op, name, err)
	}

	dir, err := fs.readDir(fs.curDir)
	if err != nil {
		return wrapErr(op, name, err)
	}
	if _, ok := dir.FindByName(name); ok {
		return wrapErr(op, name, ErrExists)
	}
	slot := dir.FindFree()
	if slot < 0 {
		return wrapErr(op, name, ErrDirFull)
	}

	now := fs.clock()
	dir.Insert(slot, directory.Entry{
		Name:         name,
		FileSize:     0,
		FirstBlock:   fat.EOF,
		Type:         directory.TypeFile,
		CreatedTime:  now,
		ModifiedTime: now,
	})
	if err := fs.writeDir(fs.curDir, &dir); err != nil {
		return wrapErr(op, name, err)
	}
	fs.log.WithField("name", name).Debug(op)
	return nil
}

// DeleteFile removes a file entry and frees its chain.
func (fs *FileSystem) DeleteFile(name string) error {
	const op = "delete_file"
	if err := fs.requireMounted(op); err != nil {
		return err
	}

	dir, err := fs.readDir(fs.curDir)
	if err != nil {
		return wrapErr(op, name, err)
	}
	slot, ok := dir.FindByName(name)
	if !ok {
		return wrapErr(op, name, ErrNotFound)
	}
	entry := dir.Entries[slot]
	if entry.Type != directory.TypeFile {
		return wrapErr(op, name, ErrNotAFile)
	}

	if entry.FirstBlock != fat.EOF {
		if err := fs.freeChain(entry.FirstBlock); err != nil {
			return wrapErr(op, name, err)
		}
	}
	dir.Remove(slot)
	if err := fs.writeDir(fs.curDir, &dir); err != nil {
		return wrapErr(op, name, err)
	}
	fs.log.WithField("name", name).Debug(op)
	return nil
}

// ReadFile returns a file's full content.
func (fs *FileSystem) ReadFile(name string) ([]byte, error) {
	const op = "read_file"
	if err := fs.requireMounted(op); err != nil {
		return nil, err
	}

	dir, err := fs.readDir(fs.curDir)
	if err != nil {
		return nil, wrapErr(op, name, err)
	}
	slot, ok := dir.FindByName(name)
	if !ok {
		return nil, wrapErr(op, name, ErrNotFound)
	}
	entry := dir.Entries[slot]
	if entry.Type != directory.TypeFile {
		return nil, wrapErr(op, name, ErrNotAFile)
	}
	if entry.FileSize == 0 {
		return []byte{}, nil
	}

	chain, err := fs.walkChain(entry.FirstBlock)
	if err != nil {
		return nil, wrapErr(op, name, err)
	}
	wantBlocks := int((entry.FileSize + block.Size - 1) / block.Size)
	if len(chain) != wantBlocks {
		return nil, wrapErr(op, name, ErrChainCorrupt)
	}

	out := make([]byte, 0, entry.FileSize)
	remaining := entry.FileSize
	buf := make([]byte, block.Size)
	for _, b := range chain {
		if err := fs.store.ReadBlock(b, buf); err != nil {
			return nil, wrapErr(op, name, translateStoreErr(err))
		}
		take := remaining
		if take > block.Size {
			take = block.Size
		}
		out = append(out, buf[:take]...)
		remaining -= take
	}
	return out, nil
}

// WriteFile replaces a file's entire content.
func (fs *FileSystem) WriteFile(name string, data []byte) error {
	const op = "write_file"
	if err := fs.requireMounted(op); err != nil {
		return err
	}
	if len(data) > fat.MaxFileBlocks*block.Size {
		return wrapErr(op, name, ErrTooLarge)
	}

	dir, err := fs.readDir(fs.curDir)
	if err != nil {
		return wrapErr(op, name, err)
	}
	slot, ok := dir.FindByName(name)
	if !ok {
		return wrapErr(op, name, ErrNotFound)
	}
	entry := dir.Entries[slot]
	if entry.Type != directory.TypeFile {
		return wrapErr(op, name, ErrNotAFile)
	}

	if entry.FirstBlock != fat.EOF {
		if err := fs.freeChain(entry.FirstBlock); err != nil {
			return wrapErr(op, name, err)
		}
		entry.FirstBlock = fat.EOF
	}

	if len(data) > 0 {
		chain, err := fs.buildChainAndWrite(data)
		if err != nil {
			return wrapErr(op, name, err)
		}
		entry.FirstBlock = uint16(chain[0])
	}
	entry.FileSize = uint32(len(data))
	entry.ModifiedTime = fs.clock()

	dir.Entries[slot] = entry
	if err := fs.writeDir(fs.curDir, &dir); err != nil {
		return wrapErr(op, name, err)
	}
	fs.log.WithFields(map[string]interface{}{"name": name, "size": len(data)}).Debug(op)
	return nil
}

// TruncateFile shrinks a file to newSize bytes. Growing is rejected with
// ErrGrow; shrinking to the current size is a no-op success.
func (fs *FileSystem) TruncateFile(name string, newSize uint32) error {
	const op = "truncate_file"
	if err := fs.requireMounted(op); err != nil {
		return err
	}

	dir, err := fs.readDir(fs.curDir)
	if err != nil {
		return wrapErr(op, name, err)
	}
	slot, ok := dir.FindByName(name)
	if !ok {
		return wrapErr(op, name, ErrNotFound)
	}
	entry := dir.Entries[slot]
	if entry.Type != directory.TypeFile {
		return wrapErr(op, name, ErrNotAFile)
	}
	if newSize > entry.FileSize {
		return wrapErr(op, name, ErrGrow)
	}
	if newSize == entry.FileSize {
		return nil
	}

	if newSize == 0 {
		if entry.FirstBlock != fat.EOF {
			if err := fs.freeChain(entry.FirstBlock); err != nil {
				return wrapErr(op, name, err)
			}
		}
		entry.FirstBlock = fat.EOF
	} else {
		chain, err := fs.walkChain(entry.FirstBlock)
		if err != nil {
			return wrapErr(op, name, err)
		}
		blocksNeeded := int((newSize + block.Size - 1) / block.Size)
		if blocksNeeded < len(chain) {
			tail := chain[blocksNeeded]
			prev := chain[blocksNeeded-1]
			if err := fs.freeChain(uint16(tail)); err != nil {
				return wrapErr(op, name, err)
			}
			fs.fatTable.SetNext(prev, fat.EOF)
			if err := fs.flushFAT(); err != nil {
				return wrapErr(op, name, err)
			}
		}
	}

	entry.FileSize = newSize
	entry.ModifiedTime = fs.clock()
	dir.Entries[slot] = entry
	if err := fs.writeDir(fs.curDir, &dir); err != nil {
		return wrapErr(op, name, err)
	}
	fs.log.WithField("name", name).WithField("size", newSize).Debug(op)
	return nil
}

// Mkdir creates a subdirectory of the current directory, seeded with "."
// and ".." entries.
func (fs *FileSystem) Mkdir(name string) error {
	const op = "mkdir"
	if err := fs.requireMounted(op); err != nil {
		return err
	}
	if err := validateName(name); err != nil {
		return wrapErr(op, name, err)
	}

	parent, err := fs.readDir(fs.curDir)
	if err != nil {
		return wrapErr(op, name, err)
	}
	if _, ok := parent.FindByName(name); ok {
		return wrapErr(op, name, ErrExists)
	}
	parentSlot := parent.FindFree()
	if parentSlot < 0 {
		return wrapErr(op, name, ErrDirFull)
	}

	chain, err := fs.allocateDirChain()
	if err != nil {
		return wrapErr(op, name, err)
	}
	newHead := chain[0]

	now := fs.clock()
	child := directory.NewEmpty()
	child.Insert(0, directory.Entry{
		Name:         ".",
		FirstBlock:   uint16(newHead),
		Type:         directory.TypeDir,
		CreatedTime:  now,
		ModifiedTime: now,
	})
	child.Insert(1, directory.Entry{
		Name:         "..",
		FirstBlock:   uint16(fs.curDir),
		Type:         directory.TypeDir,
		CreatedTime:  now,
		ModifiedTime: now,
	})
	if err := writeDirBlocks(fs.store, chain, &child); err != nil {
		_ = fs.freeChain(uint16(newHead))
		return wrapErr(op, name, err)
	}

	parent.Insert(parentSlot, directory.Entry{
		Name:         name,
		FirstBlock:   uint16(newHead),
		Type:         directory.TypeDir,
		CreatedTime:  now,
		ModifiedTime: now,
	})
	if err := fs.writeDir(fs.curDir, &parent); err != nil {
		_ = fs.freeChain(uint16(newHead))
		return wrapErr(op, name, err)
	}
	fs.log.WithField("name", name).Debug(op)
	return nil
}

// allocateDirChain allocates and links directory.BlockSpan blocks for a
// fresh directory's content, the same build-then-link discipline
// buildChainAndWrite uses for file data, specialized here because a
// directory's initial content isn't known until its own head block
// number is (the "." entry needs it).
func (fs *FileSystem) allocateDirChain() ([]uint32, error) {
	n := directory.BlockSpan
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
	}
	fs.fatTable.SetNext(chain[n-1], fat.EOF)
	if err := fs.flushFAT(); err != nil {
		return nil, err
	}
	return chain, nil
}

// Ls returns the occupied entries of the current directory.
func (fs *FileSystem) Ls() ([]EntryInfo, error) {
	const op = "ls"
	if err := fs.requireMounted(op); err != nil {
		return nil, err
	}
	dir, err := fs.readDir(fs.curDir)
	if err != nil {
		return nil, wrapErr(op, fs.curPath, err)
	}
	entries := dir.List()
	out := make([]EntryInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, EntryInfo{
			Name:         e.Name,
			IsDir:        e.Type == directory.TypeDir,
			Size:         e.FileSize,
			CreatedTime:  e.CreatedTime,
			ModifiedTime: e.ModifiedTime,
		})
	}
	return out, nil
}
