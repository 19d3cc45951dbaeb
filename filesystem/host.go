package filesystem

import (
	"io/fs"
	"os"
	"path/filepath"
)

type hostFS string

type hostDir struct {
	*os.File
	fs     hostFS
	prefix string
}

// HostFS exposes a host directory as a boot volume.
func HostFS(dir string) FS {
	return hostFS(dir)
}

func (h hostFS) Open(name string) (fs.File, error) {
	return Open(h, name)
}

func (h hostFS) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(h.join(Clean(name)))
}

func (h hostFS) OpenFile(name string, flag FileFlag, perm fs.FileMode) (File, error) {
	name = Clean(name)
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	file, err := os.OpenFile(h.join(name), int(flag), perm)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil || !info.IsDir() {
		return file, nil
	}
	prefix := ""
	if name != "." {
		prefix = name + "/"
	}
	return &hostDir{file, h, prefix}, nil
}

func (h hostFS) join(name string) string {
	return filepath.Join(string(h), filepath.FromSlash(name))
}

func (d *hostDir) OpenFile(name string, flag FileFlag, perm fs.FileMode) (File, error) {
	return d.fs.OpenFile(d.prefix+Clean(name), flag, perm)
}
