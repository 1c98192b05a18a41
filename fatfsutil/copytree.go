// Package fatfsutil provides host-filesystem interop conveniences layered
// on top of fatfs.FileSystem: importing a host directory tree into a
// mounted image, and exposing a mounted image read-only as an io/fs.FS.
// Neither is part of the core's closed operation set.
package fatfsutil

import (
	"fmt"
	"io"
	"io/fs"
	"path"

	"github.com/blocklayer/myfatfs/fatfs"
)

// excludedNames mirrors sync.excludedPaths: host-filesystem cruft that
// should never end up inside an image.
var excludedNames = map[string]bool{
	"lost+found":                true,
	".DS_Store":                 true,
	"System Volume Information": true,
}

// CopyTree imports every regular file and directory under src into dst's
// current directory, recursively, preserving structure. Symlinks and
// other non-regular files are skipped: the on-disk format has no entry
// type for them (directory.Type is FILE or DIRECTORY only).
//
// dst's cursor is left inside the directory it started in: CopyTree
// descends with ChangeDir and always returns with an equal number of
// ChangeDir("..") calls before returning, successful or not.
func CopyTree(src fs.FS, dst *fatfs.FileSystem) error {
	return copyDir(src, dst, ".")
}

func copyDir(src fs.FS, dst *fatfs.FileSystem, dir string) error {
	entries, err := fs.ReadDir(src, dir)
	if err != nil {
		return fmt.Errorf("read dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if excludedNames[name] {
			continue
		}
		p := name
		if dir != "." {
			p = path.Join(dir, name)
		}

		info, err := entry.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", p, err)
		}
		if !info.Mode().IsRegular() && !entry.IsDir() {
			continue
		}

		if entry.IsDir() {
			if err := dst.Mkdir(name); err != nil {
				return fmt.Errorf("mkdir %s: %w", p, err)
			}
			if err := dst.ChangeDir(name); err != nil {
				return fmt.Errorf("cd %s: %w", p, err)
			}
			if err := copyDir(src, dst, p); err != nil {
				_ = dst.ChangeDir("..")
				return fmt.Errorf("copy dir %s: %w", p, err)
			}
			if err := dst.ChangeDir(".."); err != nil {
				return fmt.Errorf("cd .. from %s: %w", p, err)
			}
			continue
		}

		if err := copyOneFile(src, dst, p, name); err != nil {
			return fmt.Errorf("copy file %s: %w", p, err)
		}
	}
	return nil
}

func copyOneFile(src fs.FS, dst *fatfs.FileSystem, srcPath, name string) error {
	in, err := src.Open(srcPath)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	data, err := io.ReadAll(in)
	if err != nil {
		return err
	}

	if err := dst.CreateFile(name); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return dst.WriteFile(name, data)
}
