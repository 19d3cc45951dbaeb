package firmware

type Arch int

const (
	ARCH_UNKNOWN Arch = iota
	ARCH_ARM
	ARCH_ARM64
	ARCH_X86
	ARCH_X86_64
)

func (a Arch) String() string {
	switch a {
	case ARCH_ARM:
		return "arm"
	case ARCH_ARM64:
		return "arm64"
	case ARCH_X86:
		return "x86"
	case ARCH_X86_64:
		return "x86_64"
	}
	return "unknown"
}

func ParseArch(s string) Arch {
	for a := ARCH_ARM; a <= ARCH_X86_64; a++ {
		if a.String() == s {
			return a
		}
	}
	return ARCH_UNKNOWN
}
