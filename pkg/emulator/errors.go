package emulator

import "fmt"

// LoadError is returned by LoadROM for a cartridge image the core could
// not accept: a truncated dump, or a RAM size declared by the header that
// doesn't match the battery bytes supplied alongside it.
type LoadError struct {
	Reason string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("emulator: load failed: %s", e.Reason)
}

// StateError is returned by Restore for a save-state blob the core could
// not apply: a version header mismatch, or a section marker mismatch
// indicating the reader drifted out of sync with the writer. Restore
// leaves the Machine in Paused on either.
type StateError struct {
	Reason string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("emulator: restore failed: %s", e.Reason)
}
