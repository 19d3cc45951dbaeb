// Package memviz draws a memory map as a PNG: a proportional strip of
// physical RAM followed by one labelled row per region.
package memviz

import (
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/fogleman/gg"
	"github.com/wnxd/efiboot/firmware"
)

const (
	DefaultWidth     = 960
	DefaultRowHeight = 18

	margin      = 8
	stripHeight = 48
	swatch      = 12
)

type Options struct {
	Width     int
	RowHeight int
}

var palette = map[firmware.MemoryType]color.RGBA{
	firmware.ReservedMemoryType:      {0x60, 0x60, 0x60, 0xff},
	firmware.LoaderCode:              {0xd6, 0x27, 0x28, 0xff},
	firmware.LoaderData:              {0xff, 0x7f, 0x0e, 0xff},
	firmware.BootServicesCode:        {0x1f, 0x77, 0xb4, 0xff},
	firmware.BootServicesData:        {0x6b, 0xae, 0xd6, 0xff},
	firmware.RuntimeServicesCode:     {0x94, 0x67, 0xbd, 0xff},
	firmware.RuntimeServicesData:     {0xc5, 0xb0, 0xd5, 0xff},
	firmware.ConventionalMemory:      {0x2c, 0xa0, 0x2c, 0xff},
	firmware.UnusableMemory:          {0x30, 0x30, 0x30, 0xff},
	firmware.ACPIReclaimMemory:       {0xbc, 0xbd, 0x22, 0xff},
	firmware.ACPIMemoryNVS:           {0x8c, 0x8d, 0x12, 0xff},
	firmware.MemoryMappedIO:          {0x8c, 0x56, 0x4b, 0xff},
	firmware.MemoryMappedIOPortSpace: {0xc4, 0x9c, 0x94, 0xff},
	firmware.PalCode:                 {0xe3, 0x77, 0xc2, 0xff},
	firmware.PersistentMemory:        {0x17, 0xbe, 0xcf, 0xff},
	firmware.UnacceptedMemory:        {0x9e, 0xda, 0xe5, 0xff},
}

var unknownColor = color.RGBA{0xff, 0x00, 0xff, 0xff}

// Color is the fill used for regions of type t.
func Color(t firmware.MemoryType) color.RGBA {
	if c, ok := palette[t]; ok {
		return c
	}
	return unknownColor
}

// Render draws regions in the order given. The strip covers RAM only:
// memory-mapped I/O and reserved windows above the last usable region are
// left out so that they do not flatten it.
func Render(regions []firmware.MemoryDescriptor, opts Options) image.Image {
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.RowHeight <= 0 {
		opts.RowHeight = DefaultRowHeight
	}
	height := margin*3 + stripHeight + len(regions)*opts.RowHeight
	dc := gg.NewContext(opts.Width, height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	drawStrip(dc, regions, float64(opts.Width-2*margin))
	y := float64(margin*2 + stripHeight)
	for i, r := range regions {
		drawRow(dc, i, r, y, float64(opts.RowHeight))
		y += float64(opts.RowHeight)
	}
	return dc.Image()
}

// WritePNG renders regions and encodes the result as PNG.
func WritePNG(w io.Writer, regions []firmware.MemoryDescriptor, opts Options) error {
	dc := gg.NewContextForImage(Render(regions, opts))
	return dc.EncodePNG(w)
}

// ramEnd is the end of the highest region that is not an address window.
func ramEnd(regions []firmware.MemoryDescriptor) uint64 {
	var end uint64
	for _, r := range regions {
		switch r.Type {
		case firmware.MemoryMappedIO, firmware.MemoryMappedIOPortSpace, firmware.ReservedMemoryType:
			continue
		}
		end = max(end, r.End())
	}
	return end
}

func drawStrip(dc *gg.Context, regions []firmware.MemoryDescriptor, width float64) {
	end := ramEnd(regions)
	if end == 0 {
		return
	}
	scale := width / float64(end)
	for _, r := range regions {
		if r.PhysStart >= end {
			continue
		}
		x := margin + float64(r.PhysStart)*scale
		w := max(float64(min(r.End(), end)-r.PhysStart)*scale, 1)
		dc.SetColor(Color(r.Type))
		dc.DrawRectangle(x, margin, w, stripHeight)
		dc.Fill()
	}
	dc.SetRGB(0, 0, 0)
	dc.SetLineWidth(1)
	dc.DrawRectangle(margin, margin, width, stripHeight)
	dc.Stroke()
}

func drawRow(dc *gg.Context, i int, r firmware.MemoryDescriptor, y, height float64) {
	dc.SetColor(Color(r.Type))
	dc.DrawRectangle(margin, y+(height-swatch)/2, swatch, swatch)
	dc.Fill()

	label := fmt.Sprintf("%3d  %016x-%016x  %-22s %10s  %s",
		i, r.PhysStart, r.End(), r.Type, humanize.IBytes(r.PageCount*firmware.PageSize), r.Attribute)
	dc.SetRGB(0, 0, 0)
	dc.DrawStringAnchored(label, margin+swatch+6, y+height/2, 0, 0.35)
}
