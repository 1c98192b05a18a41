// Operations layered on top of the core's closed set of file/directory
// verbs: cd, rmdir, usage reporting, and a read-only consistency check.
package fatfs

import (
	"fmt"
	"strings"

	"github.com/blocklayer/myfatfs/block"
	"github.com/blocklayer/myfatfs/bootsector"
	"github.com/blocklayer/myfatfs/directory"
	"github.com/blocklayer/myfatfs/fat"
)

// ChangeDir moves the cursor into name (a single path component, not a
// multi-segment path), ".", or "..". ".." at the root directory is a
// no-op: there is nothing above root to navigate to.
func (fs *FileSystem) ChangeDir(name string) error {
	const op = "cd"
	if err := fs.requireMounted(op); err != nil {
		return err
	}

	if name == "." {
		return nil
	}
	if name == ".." {
		if fs.curDir == bootsector.RootDirBlock {
			return nil
		}
		dir, err := fs.readDir(fs.curDir)
		if err != nil {
			return wrapErr(op, name, err)
		}
		slot, ok := dir.FindByName("..")
		if !ok {
			return wrapErr(op, name, ErrChainCorrupt)
		}
		fs.curDir = uint32(dir.Entries[slot].FirstBlock)
		fs.curPath = parentPath(fs.curPath)
		return nil
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
	if entry.Type != directory.TypeDir {
		return wrapErr(op, name, ErrNotADirectory)
	}
	fs.curDir = uint32(entry.FirstBlock)
	fs.curPath = joinPath(fs.curPath, name)
	fs.log.WithField("path", fs.curPath).Debug(op)
	return nil
}

func joinPath(base, name string) string {
	if base == "/" {
		return "/" + name
	}
	return base + "/" + name
}

func parentPath(p string) string {
	if p == "/" {
		return "/"
	}
	i := strings.LastIndex(p, "/")
	if i <= 0 {
		return "/"
	}
	return p[:i]
}

// Rmdir removes an empty subdirectory of the current directory. A
// directory is empty when its content holds only its own "." and ".."
// entries. "." and ".." are rejected with ErrNotFound, and a name that is
// not a directory with ErrNotADirectory; the root directory has no name
// in any directory, so it cannot be removed.
func (fs *FileSystem) Rmdir(name string) error {
	const op = "rmdir"
	if err := fs.requireMounted(op); err != nil {
		return err
	}
	if name == "." || name == ".." {
		return wrapErr(op, name, ErrNotFound)
	}

	parent, err := fs.readDir(fs.curDir)
	if err != nil {
		return wrapErr(op, name, err)
	}
	slot, ok := parent.FindByName(name)
	if !ok {
		return wrapErr(op, name, ErrNotFound)
	}
	entry := parent.Entries[slot]
	if entry.Type != directory.TypeDir {
		return wrapErr(op, name, ErrNotADirectory)
	}

	head := uint32(entry.FirstBlock)
	child, err := fs.readDir(head)
	if err != nil {
		return wrapErr(op, name, err)
	}
	if len(child.List()) > 2 {
		return wrapErr(op, name, ErrNotEmpty)
	}

	if err := fs.freeChain(entry.FirstBlock); err != nil {
		return wrapErr(op, name, err)
	}
	parent.Remove(slot)
	if err := fs.writeDir(fs.curDir, &parent); err != nil {
		return wrapErr(op, name, err)
	}
	fs.log.WithField("name", name).Debug(op)
	return nil
}

// Usage reports block accounting for the mounted image.
type Usage struct {
	TotalBlocks  uint32
	SystemBlocks uint32 // boot sector + FAT + root directory, never allocatable
	DataBlocks   uint32 // TotalBlocks - SystemBlocks
	FreeBlocks   uint32
	UsedBlocks   uint32
}

// Usage reports the current block allocation accounting, derived by
// scanning the in-memory FAT.
func (fs *FileSystem) Usage() (Usage, error) {
	const op = "usage"
	if err := fs.requireMounted(op); err != nil {
		return Usage{}, err
	}
	free := fs.fatTable.FreeCount()
	data := fs.boot.TotalBlocks - fs.boot.DataStartBlock
	return Usage{
		TotalBlocks:  fs.boot.TotalBlocks,
		SystemBlocks: fs.boot.DataStartBlock,
		DataBlocks:   data,
		FreeBlocks:   free,
		UsedBlocks:   data - free,
	}, nil
}

// Check walks the whole tree from the root directory, read-only,
// verifying that the reserved region is all Bad, every file's chain
// length matches its file_size, and every directory's "."/".." entries
// point where they should. It returns every violation found rather than
// stopping at the first, and never runs implicitly as part of Mount.
func (fs *FileSystem) Check() ([]Violation, error) {
	const op = "check"
	if err := fs.requireMounted(op); err != nil {
		return nil, err
	}

	var violations []Violation
	for b := uint32(0); b < fs.boot.DataStartBlock; b++ {
		if fs.fatTable.Next(b) != fat.Bad {
			violations = append(violations, Violation{
				Path:   "/",
				Detail: fmt.Sprintf("reserved block %d is not tagged Bad", b),
			})
		}
	}

	visited := map[uint32]bool{bootsector.RootDirBlock: true}
	fs.checkDir(bootsector.RootDirBlock, "/", bootsector.RootDirBlock, visited, &violations)
	return violations, nil
}

func (fs *FileSystem) checkDir(head uint32, path string, parentHead uint32, visited map[uint32]bool, out *[]Violation) {
	dir, err := fs.readDir(head)
	if err != nil {
		*out = append(*out, Violation{Path: path, Detail: err.Error()})
		return
	}

	if head != bootsector.RootDirBlock {
		dotSlot, ok := dir.FindByName(".")
		if !ok || uint32(dir.Entries[dotSlot].FirstBlock) != head {
			*out = append(*out, Violation{Path: path, Detail: "\".\" entry missing or incorrect"})
		}
		dotdotSlot, ok := dir.FindByName("..")
		if !ok || uint32(dir.Entries[dotdotSlot].FirstBlock) != parentHead {
			*out = append(*out, Violation{Path: path, Detail: "\"..\" entry missing or incorrect"})
		}
	}

	for _, e := range dir.List() {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		childPath := joinPath(path, e.Name)
		switch e.Type {
		case directory.TypeFile:
			if e.FileSize == 0 {
				if e.FirstBlock != fat.EOF {
					*out = append(*out, Violation{Path: childPath, Detail: "zero-size file has a non-EOF FirstBlock"})
				}
				continue
			}
			chain, err := fs.fatTable.Walk(e.FirstBlock)
			if err != nil {
				*out = append(*out, Violation{Path: childPath, Detail: err.Error()})
				continue
			}
			want := int((e.FileSize + block.Size - 1) / block.Size)
			if len(chain) != want {
				*out = append(*out, Violation{Path: childPath, Detail: fmt.Sprintf("chain length %d does not match size %d (want %d blocks)", len(chain), e.FileSize, want)})
			}
		case directory.TypeDir:
			childHead := uint32(e.FirstBlock)
			if visited[childHead] {
				*out = append(*out, Violation{Path: childPath, Detail: "directory chain cycle detected"})
				continue
			}
			visited[childHead] = true
			fs.checkDir(childHead, childPath, head, visited, out)
		}
	}
}
