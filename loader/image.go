package loader

import (
	"github.com/wnxd/efiboot/firmware"
)

type Image interface {
	Arch() firmware.Arch
	Entry() uint64
	Segments() []Segment
	Span() Span
	// Place copies every segment to its address in mem. Each segment
	// must lie inside allocated.
	Place(mem firmware.Memory, allocated Span) error
}

// placeSegments copies segs out of the raw image to mem, zero-filling each tail.
func placeSegments(mem firmware.Memory, raw []byte, segs []Segment, allocated Span) error {
	for _, seg := range segs {
		if !allocated.Covers(seg.Addr, seg.MemSize) {
			return &SegmentError{seg, ErrNotAllocated}
		}
	}
	for _, seg := range segs {
		dst := firmware.ToPointer(mem, seg.Addr)
		if seg.FileSize > 0 {
			end := seg.Offset + seg.FileSize
			if end < seg.Offset || end > uint64(len(raw)) {
				return &SegmentError{seg, ErrSegmentBounds}
			}
			if err := dst.MemWrite(raw[seg.Offset:end]); err != nil {
				return &SegmentError{seg, err}
			}
		}
		if tail := seg.MemSize - seg.FileSize; tail > 0 {
			if err := dst.Add(seg.FileSize).MemZero(tail); err != nil {
				return &SegmentError{seg, err}
			}
		}
	}
	return nil
}

type SegmentError struct {
	Segment Segment
	Err     error
}

func (e *SegmentError) Error() string {
	return "segment " + e.Segment.String() + ": " + e.Err.Error()
}

func (e *SegmentError) Unwrap() error {
	return e.Err
}
