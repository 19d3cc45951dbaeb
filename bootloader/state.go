package bootloader

import "fmt"

// State is a stage of the boot handoff. Stages only move forward, one at a time.
type State int

const (
	StateInit State = iota
	StateMapCaptured
	StateImageLoaded
	StateAddressFinalized
	StateServicesTerminated
	StateEntered
)

var stateNames = [...]string{
	StateInit:               "Init",
	StateMapCaptured:        "MapCaptured",
	StateImageLoaded:        "ImageLoaded",
	StateAddressFinalized:   "AddressFinalized",
	StateServicesTerminated: "ServicesTerminated",
	StateEntered:            "Entered",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Next is the only state s may advance to.
func (s State) Next() State {
	if s >= StateEntered {
		return s
	}
	return s + 1
}

// CanAdvance reports whether the transition s -> to is legal.
func (s State) CanAdvance(to State) bool {
	return s < StateEntered && to == s+1
}

// BootServicesActive reports whether firmware boot services may still be called in s.
func (s State) BootServicesActive() bool {
	return s < StateServicesTerminated
}
