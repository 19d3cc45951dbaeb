package encoding

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

type descriptor struct {
	Type      uint32
	PhysStart uint64
	VirtStart uint64
	PageCount uint64
	Attribute uint64
}

type tagged struct {
	Kind  uint8
	Cache []int `encoding:"ignore"`
	Addr  uint64
	Name  [3]uint16
}

func TestDecodeDescriptorLayout(t *testing.T) {
	raw := make([]byte, 40)
	binary.LittleEndian.PutUint32(raw[0:], 7)
	binary.LittleEndian.PutUint64(raw[8:], 0x100000)
	binary.LittleEndian.PutUint64(raw[24:], 0x20)
	binary.LittleEndian.PutUint64(raw[32:], 0xf)

	var d descriptor
	require.NoError(t, Decode(Bytes(raw), &d))
	require.Equal(t, descriptor{Type: 7, PhysStart: 0x100000, PageCount: 0x20, Attribute: 0xf}, d)

	n, err := Size(&d)
	require.NoError(t, err)
	require.Equal(t, 40, n)
}

func TestEncodeIgnoredField(t *testing.T) {
	v := tagged{Kind: 2, Cache: []int{1, 2}, Addr: 0xdead0000, Name: [3]uint16{1, 2, 3}}
	n, err := Size(v)
	require.NoError(t, err)
	require.Equal(t, 24, n)

	buf := make([]byte, n)
	s := Bytes(buf)
	require.NoError(t, Encode(s, &v))
	require.Equal(t, uint64(24), s.Offset())
	require.Equal(t, byte(2), buf[0])
	require.Equal(t, uint64(0xdead0000), binary.LittleEndian.Uint64(buf[8:]))
	require.Equal(t, uint16(3), binary.LittleEndian.Uint16(buf[20:]))

	var out tagged
	require.NoError(t, Decode(Bytes(buf), &out))
	require.Nil(t, out.Cache)
	out.Cache = v.Cache
	require.Equal(t, v, out)
}

func TestShortBuffer(t *testing.T) {
	var d descriptor
	require.ErrorIs(t, Decode(Bytes(make([]byte, 39)), &d), ErrShortBuffer)
	require.ErrorIs(t, Encode(Bytes(make([]byte, 8)), &d), ErrShortBuffer)
}

func TestRejectsUnsupported(t *testing.T) {
	var s struct{ P *int }
	require.ErrorIs(t, Decode(Bytes(make([]byte, 8)), &s), ErrUnsupportedType)
	require.ErrorIs(t, Decode(Bytes(make([]byte, 8)), s), ErrNotPointer)
	require.ErrorIs(t, Encode(Bytes(nil), nil), ErrNilValue)
}
