package filesystem

import (
	"io/fs"
	"os"
	"path"
	"strings"
)

type FileFlag int

const (
	O_RDONLY = FileFlag(os.O_RDONLY)
	O_WRONLY = FileFlag(os.O_WRONLY)
	O_RDWR   = FileFlag(os.O_RDWR)
	O_APPEND = FileFlag(os.O_APPEND)
	O_CREATE = FileFlag(os.O_CREATE)
	O_EXCL   = FileFlag(os.O_EXCL)
	O_SYNC   = FileFlag(os.O_SYNC)
	O_TRUNC  = FileFlag(os.O_TRUNC)
)

func (f FileFlag) writable() bool {
	return f&(O_WRONLY|O_RDWR) != 0
}

type FS interface {
	fs.FS
	OpenFile(name string, flag FileFlag, perm fs.FileMode) (File, error)
}

// Clean turns a firmware path such as `\EFI\BOOT\kernel.elf` into a
// slash-separated fs.ValidPath. The volume root is ".".
func Clean(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = path.Clean("/" + name)
	if name == "/" {
		return "."
	}
	return name[1:]
}

func Open(f FS, name string) (fs.File, error) {
	file, err := f.OpenFile(name, O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	return file.(fs.File), nil
}

// Root opens the root directory of f.
func Root(f FS) (Dir, error) {
	file, err := f.OpenFile(".", O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	dir, ok := file.(Dir)
	if !ok {
		file.Close()
		return nil, &fs.PathError{Op: "open", Path: ".", Err: fs.ErrInvalid}
	}
	return dir, nil
}
