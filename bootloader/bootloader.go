// Package bootloader defines the boot handoff: its stages, its failure
// classes, its compiled-in options and what it leaves behind for the kernel.
package bootloader

// Loader drives one boot from firmware entry to kernel entry.
type Loader interface {
	State() State
	// Step performs the work of the current state and advances to the next.
	Step() error
	// Boot steps until the kernel is entered. It only returns on failure.
	Boot() error
}
