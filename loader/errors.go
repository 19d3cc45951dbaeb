package loader

import "errors"

var (
	ErrNotELF          = errors.New("not an ELF image")
	ErrClass           = errors.New("unsupported ELF class")
	ErrType            = errors.New("unsupported ELF type")
	ErrMachine         = errors.New("unsupported machine")
	ErrNoSegments      = errors.New("no loadable segments")
	ErrSegmentSize     = errors.New("segment memory size smaller than file size")
	ErrSegmentBounds   = errors.New("segment file range outside image")
	ErrSegmentOverlap  = errors.New("overlapping segments")
	ErrAddressOverflow = errors.New("segment address range overflows")
	ErrEntryOutside    = errors.New("entry point outside loaded image")
	ErrNotAllocated    = errors.New("segment outside allocated range")
)
