package filesystem

import "io/fs"

type DirFile interface {
	File
	ReadDir(n int) ([]fs.DirEntry, error)
}

// Dir is an open directory. Names passed to OpenFile are relative to it.
type Dir interface {
	DirFile
	OpenFile(name string, flag FileFlag, perm fs.FileMode) (File, error)
}
