package filesystem

import (
	"io"
	"io/fs"
	"path"
	"slices"
	"strings"
	"sync"
	"time"
)

// MemoryFS is a volume held entirely in memory.
type MemoryFS struct {
	mu    sync.RWMutex
	files map[string]*memNode
}

type memNode struct {
	name    string
	mode    fs.FileMode
	modTime time.Time
	data    []byte
}

type fileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
}

type memFile struct {
	fs     *MemoryFS
	node   *memNode
	flag   FileFlag
	off    int
	closed bool
}

type memDir struct {
	fs     *MemoryFS
	node   *memNode
	prefix string
	read   int
	closed bool
}

func NewMemoryFS() *MemoryFS {
	return &MemoryFS{files: map[string]*memNode{
		".": {name: ".", mode: fs.ModeDir | 0o755},
	}}
}

// WriteFile creates or replaces name, creating parent directories.
func (m *MemoryFS) WriteFile(name string, data []byte, perm fs.FileMode) error {
	name = Clean(name)
	if name == "." {
		return &fs.PathError{Op: "write", Path: name, Err: fs.ErrInvalid}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.mkdirAll(path.Dir(name)); err != nil {
		return err
	}
	if n, ok := m.files[name]; ok && n.mode.IsDir() {
		return &fs.PathError{Op: "write", Path: name, Err: fs.ErrExist}
	}
	m.files[name] = &memNode{name: path.Base(name), mode: perm, modTime: time.Now(), data: slices.Clone(data)}
	return nil
}

// ReadFile returns a copy of the contents of name.
func (m *MemoryFS) ReadFile(name string) ([]byte, error) {
	name = Clean(name)
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrNotExist}
	} else if n.mode.IsDir() {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrInvalid}
	}
	return slices.Clone(n.data), nil
}

func (m *MemoryFS) mkdirAll(dir string) error {
	if dir == "." {
		return nil
	}
	if n, ok := m.files[dir]; ok {
		if !n.mode.IsDir() {
			return &fs.PathError{Op: "mkdir", Path: dir, Err: fs.ErrExist}
		}
		return nil
	}
	if err := m.mkdirAll(path.Dir(dir)); err != nil {
		return err
	}
	m.files[dir] = &memNode{name: path.Base(dir), mode: fs.ModeDir | 0o755, modTime: time.Now()}
	return nil
}

func (m *MemoryFS) Open(name string) (fs.File, error) {
	return Open(m, name)
}

func (m *MemoryFS) OpenFile(name string, flag FileFlag, perm fs.FileMode) (File, error) {
	name = Clean(name)
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.files[name]
	switch {
	case ok && flag&(O_CREATE|O_EXCL) == O_CREATE|O_EXCL:
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrExist}
	case !ok && flag&O_CREATE == 0:
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	case !ok:
		if err := m.mkdirAll(path.Dir(name)); err != nil {
			return nil, err
		}
		n = &memNode{name: path.Base(name), mode: perm, modTime: time.Now()}
		m.files[name] = n
	}
	if n.mode.IsDir() {
		if flag.writable() {
			return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrPermission}
		}
		prefix := ""
		if name != "." {
			prefix = name + "/"
		}
		return &memDir{fs: m, node: n, prefix: prefix}, nil
	}
	if flag.writable() && n.mode.Perm()&0o200 == 0 {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrPermission}
	}
	f := &memFile{fs: m, node: n, flag: flag}
	switch {
	case flag&O_TRUNC != 0 && flag.writable():
		n.data = nil
	case flag&O_APPEND != 0:
		f.off = len(n.data)
	}
	return f, nil
}

func (n *memNode) info() *fileInfo {
	return &fileInfo{name: n.name, size: int64(len(n.data)), mode: n.mode, modTime: n.modTime}
}

func (fi fileInfo) Name() string {
	return fi.name
}

func (fi fileInfo) Size() int64 {
	return fi.size
}

func (fi fileInfo) Mode() fs.FileMode {
	return fi.mode
}

func (fi fileInfo) ModTime() time.Time {
	return fi.modTime
}

func (fi fileInfo) IsDir() bool {
	return fi.mode.IsDir()
}

func (fi fileInfo) Sys() any {
	return nil
}

func (f *memFile) Close() error {
	if f.closed {
		return fs.ErrClosed
	}
	f.closed = true
	return nil
}

func (f *memFile) Stat() (fs.FileInfo, error) {
	if f.closed {
		return nil, fs.ErrClosed
	}
	f.fs.mu.RLock()
	defer f.fs.mu.RUnlock()
	return f.node.info(), nil
}

func (f *memFile) Seek(offset int64, whence int) (int64, error) {
	f.fs.mu.RLock()
	defer f.fs.mu.RUnlock()
	var off int
	switch whence {
	case io.SeekStart:
		off = int(offset)
	case io.SeekCurrent:
		off = f.off + int(offset)
	case io.SeekEnd:
		off = len(f.node.data) + int(offset)
	default:
		return 0, fs.ErrInvalid
	}
	if off < 0 {
		return 0, fs.ErrInvalid
	}
	f.off = off
	return int64(off), nil
}

func (f *memFile) Read(b []byte) (int, error) {
	if f.closed {
		return 0, fs.ErrClosed
	} else if f.flag&O_WRONLY != 0 {
		return 0, fs.ErrPermission
	}
	f.fs.mu.RLock()
	defer f.fs.mu.RUnlock()
	if f.off >= len(f.node.data) {
		return 0, io.EOF
	}
	n := copy(b, f.node.data[f.off:])
	f.off += n
	return n, nil
}

func (f *memFile) Write(b []byte) (int, error) {
	if f.closed {
		return 0, fs.ErrClosed
	} else if !f.flag.writable() {
		return 0, fs.ErrPermission
	}
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	if end := f.off + len(b); end > len(f.node.data) {
		f.node.data = append(f.node.data, make([]byte, end-len(f.node.data))...)
	}
	n := copy(f.node.data[f.off:], b)
	f.off += n
	f.node.modTime = time.Now()
	return n, nil
}

func (d *memDir) Close() error {
	if d.closed {
		return fs.ErrClosed
	}
	d.closed = true
	return nil
}

func (d *memDir) Stat() (fs.FileInfo, error) {
	return d.node.info(), nil
}

func (d *memDir) OpenFile(name string, flag FileFlag, perm fs.FileMode) (File, error) {
	if d.closed {
		return nil, fs.ErrClosed
	}
	return d.fs.OpenFile(d.prefix+Clean(name), flag, perm)
}

func (d *memDir) ReadDir(n int) ([]fs.DirEntry, error) {
	d.fs.mu.RLock()
	var names []string
	for name := range d.fs.files {
		rest, ok := strings.CutPrefix(name, d.prefix)
		if ok && name != "." && rest != "" && !strings.Contains(rest, "/") {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	var entries []fs.DirEntry
	for _, name := range names[min(d.read, len(names)):] {
		if n > 0 && len(entries) == n {
			break
		}
		entries = append(entries, fs.FileInfoToDirEntry(d.fs.files[name].info()))
	}
	d.fs.mu.RUnlock()
	d.read += len(entries)
	if n > 0 && len(entries) == 0 {
		return nil, io.EOF
	}
	return entries, nil
}
