package memviz

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wnxd/efiboot/firmware"
	"github.com/wnxd/efiboot/internal/sim"
)

func TestRender(t *testing.T) {
	regions := sim.DefaultRegions(16 << 20)
	img := Render(regions, Options{Width: 400, RowHeight: 20})
	b := img.Bounds()
	require.Equal(t, 400, b.Dx())
	require.Equal(t, margin*3+stripHeight+len(regions)*20, b.Dy())

	// The first row's swatch carries its region's color.
	y := margin*2 + stripHeight + 10
	r, g, bl, _ := img.At(margin+swatch/2, y).RGBA()
	want := Color(regions[0].Type)
	require.Equal(t, uint32(want.R), r>>8)
	require.Equal(t, uint32(want.G), g>>8)
	require.Equal(t, uint32(want.B), bl>>8)

	// Conventional memory above 1 MiB dominates the strip.
	r, g, bl, _ = img.At(200, margin+stripHeight/2).RGBA()
	want = Color(firmware.ConventionalMemory)
	require.Equal(t, [3]uint32{uint32(want.R), uint32(want.G), uint32(want.B)}, [3]uint32{r >> 8, g >> 8, bl >> 8})
}

func TestWritePNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, sim.DefaultRegions(8<<20), Options{}))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, DefaultWidth, img.Bounds().Dx())
}

func TestColor(t *testing.T) {
	require.Equal(t, unknownColor, Color(firmware.MemoryType(0x80000000)))
	require.NotEqual(t, Color(firmware.LoaderCode), Color(firmware.LoaderData))
}
