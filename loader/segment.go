package loader

import (
	"fmt"

	"github.com/wnxd/efiboot/firmware"
)

// Segment is one PT_LOAD program header.
type Segment struct {
	Addr     uint64
	MemSize  uint64
	Offset   uint64
	FileSize uint64
	Align    uint64
	Prot     firmware.MemProt
}

func (s Segment) End() uint64 {
	return s.Addr + s.MemSize
}

func (s Segment) Overlaps(o Segment) bool {
	return s.Addr < o.End() && o.Addr < s.End()
}

func (s Segment) String() string {
	return fmt.Sprintf("[%#x, %#x) %s file %#x+%#x", s.Addr, s.End(), s.Prot, s.Offset, s.FileSize)
}

// Span is the half-open range [Low, High).
type Span struct {
	Low, High uint64
}

func (s Span) Size() uint64 {
	return s.High - s.Low
}

func (s Span) Contains(addr uint64) bool {
	return addr >= s.Low && addr < s.High
}

// Covers reports whether [addr, addr+size) lies inside s.
func (s Span) Covers(addr, size uint64) bool {
	end := addr + size
	return end >= addr && addr >= s.Low && end <= s.High
}

// Align widens s outward to multiples of pageSize.
func (s Span) Align(pageSize uint64) Span {
	return Span{firmware.AlignDown(s.Low, pageSize), firmware.Align(s.High, pageSize)}
}

// Pages is ceil((High-Low)/pageSize) for an aligned span.
func (s Span) Pages(pageSize uint64) uint64 {
	return firmware.Align(s.Size(), pageSize) / pageSize
}

func (s Span) String() string {
	return fmt.Sprintf("[%#x, %#x)", s.Low, s.High)
}

// SpanOf returns the smallest span covering every segment.
func SpanOf(segs []Segment) Span {
	if len(segs) == 0 {
		return Span{}
	}
	span := Span{segs[0].Addr, segs[0].End()}
	for _, s := range segs[1:] {
		span.Low = min(span.Low, s.Addr)
		span.High = max(span.High, s.End())
	}
	return span
}
