package encoding

const wordSize = 8

type layout struct {
	size  int
	align int
}

func (l layout) pad(offset int) int {
	return alignUp(offset, l.align) - offset
}

func alignUp(a, b int) int {
	return (a + b - 1) &^ (b - 1)
}
