package encoding

// Stream is a cursor over a little-endian, naturally aligned byte layout.
type Stream interface {
	Offset() uint64
	Skip(int) error
	Read([]byte) (int, error)
	Write([]byte) (int, error)
}

type bytesStream struct {
	buf []byte
	off int
}

// Bytes returns a Stream reading from and writing into buf. It never grows buf.
func Bytes(buf []byte) Stream {
	return &bytesStream{buf: buf}
}

func (s *bytesStream) Offset() uint64 {
	return uint64(s.off)
}

func (s *bytesStream) Skip(n int) error {
	if n < 0 || s.off+n > len(s.buf) {
		return ErrShortBuffer
	}
	s.off += n
	return nil
}

func (s *bytesStream) Read(b []byte) (int, error) {
	if s.off+len(b) > len(s.buf) {
		return 0, ErrShortBuffer
	}
	n := copy(b, s.buf[s.off:])
	s.off += n
	return n, nil
}

func (s *bytesStream) Write(b []byte) (int, error) {
	if s.off+len(b) > len(s.buf) {
		return 0, ErrShortBuffer
	}
	n := copy(s.buf[s.off:], b)
	s.off += n
	return n, nil
}
