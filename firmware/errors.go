package firmware

import "fmt"

// Status is a firmware return code. Only the error codes used by the loader are named.
type Status uint64

const errorBit Status = 1 << 63

const (
	StatusSuccess          Status = 0
	StatusLoadError               = errorBit | 1
	StatusInvalidParameter        = errorBit | 2
	StatusUnsupported             = errorBit | 3
	StatusBufferTooSmall          = errorBit | 5
	StatusNotReady                = errorBit | 6
	StatusDeviceError             = errorBit | 7
	StatusWriteProtected          = errorBit | 8
	StatusOutOfResources          = errorBit | 9
	StatusNotFound                = errorBit | 14
	StatusAccessDenied            = errorBit | 15
)

func (s Status) Error() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusLoadError:
		return "load error"
	case StatusInvalidParameter:
		return "invalid parameter"
	case StatusUnsupported:
		return "unsupported"
	case StatusBufferTooSmall:
		return "buffer too small"
	case StatusNotReady:
		return "not ready"
	case StatusDeviceError:
		return "device error"
	case StatusWriteProtected:
		return "write protected"
	case StatusOutOfResources:
		return "out of resources"
	case StatusNotFound:
		return "not found"
	case StatusAccessDenied:
		return "access denied"
	}
	return fmt.Sprintf("status %#x", uint64(s))
}

// IsError reports whether s has the high bit set.
func (s Status) IsError() bool {
	return s&errorBit != 0
}
