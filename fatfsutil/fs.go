package fatfsutil

import (
	"bytes"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/blocklayer/myfatfs/fatfs"
)

// ReadOnlyFS adapts a mounted fatfs.FileSystem to io/fs.FS so it can back
// an http.FileServer or any other fs.FS consumer.
//
// The core only ever operates on "the current directory", so every Open
// / ReadDir call here temporarily navigates the underlying FileSystem's
// cursor to the requested path and restores it to its original location
// before returning — acceptable because the core is single-threaded and
// non-reentrant, so there is no concurrent caller to surprise.
type ReadOnlyFS struct {
	FS *fatfs.FileSystem
}

var _ fs.FS = ReadOnlyFS{}
var _ fs.ReadDirFS = ReadOnlyFS{}

func (r ReadOnlyFS) Open(name string) (fs.File, error) {
	name = path.Clean(name)
	if name == "." || name == "/" {
		return &dirFile{name: name, entries: nil, fsys: r.FS}, nil
	}

	dir, base := path.Split(name)
	restore, err := enterDir(r.FS, dir)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	defer restore()

	entries, err := r.FS.Ls()
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	for _, e := range entries {
		if e.Name != base {
			continue
		}
		if e.IsDir {
			return &dirFile{name: name, parentDir: dir, fsys: r.FS}, nil
		}
		data, err := r.FS.ReadFile(base)
		if err != nil {
			return nil, &fs.PathError{Op: "open", Path: name, Err: err}
		}
		return &regularFile{
			info:   entryFileInfo{e},
			reader: bytes.NewReader(data),
		}, nil
	}
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}

func (r ReadOnlyFS) ReadDir(name string) ([]fs.DirEntry, error) {
	restore, err := enterDir(r.FS, name)
	if err != nil {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: err}
	}
	defer restore()

	entries, err := r.FS.Ls()
	if err != nil {
		return nil, err
	}
	out := make([]fs.DirEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryFileInfo{e})
	}
	return out, nil
}

// enterDir navigates from root down to dir and returns a function that
// walks back up to wherever the cursor started.
func enterDir(fsys *fatfs.FileSystem, dir string) (func(), error) {
	original := fsys.CurrentPath()
	if err := goToRoot(fsys); err != nil {
		return nil, err
	}
	for _, part := range strings.Split(path.Clean(dir), "/") {
		if part == "" || part == "." {
			continue
		}
		if err := fsys.ChangeDir(part); err != nil {
			_ = goToRoot(fsys)
			return nil, err
		}
	}
	return func() {
		_ = goToRoot(fsys)
		for _, part := range strings.Split(original, "/") {
			if part == "" || part == "." {
				continue
			}
			if err := fsys.ChangeDir(part); err != nil {
				return
			}
		}
	}, nil
}

// goToRoot walks ".." until the cursor reports "/", bounded so a
// corrupted ".." pointer can't spin forever.
func goToRoot(fsys *fatfs.FileSystem) error {
	for i := 0; i < 1024 && fsys.CurrentPath() != "/"; i++ {
		if err := fsys.ChangeDir(".."); err != nil {
			return err
		}
	}
	return nil
}

// entryFileInfo adapts fatfs.EntryInfo to both fs.DirEntry and fs.FileInfo.
type entryFileInfo struct {
	e fatfs.EntryInfo
}

func (i entryFileInfo) Name() string      { return i.e.Name }
func (i entryFileInfo) IsDir() bool       { return i.e.IsDir }
func (i entryFileInfo) Type() fs.FileMode { return i.Mode().Type() }
func (i entryFileInfo) Info() (fs.FileInfo, error) {
	return i, nil
}
func (i entryFileInfo) Size() int64 { return int64(i.e.Size) }
func (i entryFileInfo) Mode() fs.FileMode {
	if i.e.IsDir {
		return fs.ModeDir | 0o555
	}
	return 0o444
}
func (i entryFileInfo) ModTime() time.Time { return time.Unix(int64(i.e.ModifiedTime), 0).UTC() }
func (i entryFileInfo) Sys() any           { return nil }

// regularFile implements fs.File for a file opened in ReadOnlyFS.
type regularFile struct {
	info   entryFileInfo
	reader *bytes.Reader
}

func (f *regularFile) Stat() (fs.FileInfo, error) { return f.info, nil }
func (f *regularFile) Read(b []byte) (int, error) { return f.reader.Read(b) }
func (f *regularFile) Close() error               { return nil }

// dirFile implements fs.ReadDirFile for a directory opened in ReadOnlyFS.
type dirFile struct {
	name      string
	parentDir string
	entries   []fs.DirEntry
	fsys      *fatfs.FileSystem
	read      bool
}

func (d *dirFile) Stat() (fs.FileInfo, error) {
	return entryFileInfo{fatfs.EntryInfo{Name: path.Base(d.name), IsDir: true}}, nil
}
func (d *dirFile) Read([]byte) (int, error) { return 0, fs.ErrInvalid }
func (d *dirFile) Close() error             { return nil }

func (d *dirFile) ReadDir(n int) ([]fs.DirEntry, error) {
	if !d.read {
		restore, err := enterDir(d.fsys, d.name)
		if err != nil {
			return nil, err
		}
		entries, err := d.fsys.Ls()
		restore()
		if err != nil {
			return nil, err
		}
		d.entries = make([]fs.DirEntry, 0, len(entries))
		for _, e := range entries {
			d.entries = append(d.entries, entryFileInfo{e})
		}
		d.read = true
	}
	if n <= 0 {
		out := d.entries
		d.entries = nil
		return out, nil
	}
	if len(d.entries) == 0 {
		return nil, io.EOF
	}
	take := n
	if take > len(d.entries) {
		take = len(d.entries)
	}
	out := d.entries[:take]
	d.entries = d.entries[take:]
	return out, nil
}
