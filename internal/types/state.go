package types

import (
	"encoding/binary"
	"fmt"
	"os"
)

// stateVersion is bumped whenever the binary layout written by Stater
// implementations changes incompatibly.
const stateVersion = 1

// sectionMarker delimits each component's Save output so Load can detect
// drift between the writer and reader order instead of silently
// misinterpreting bytes belonging to a different component.
const sectionMarker uint32 = 0xDEADBEEF

// Resettable is an interface that allows an object to be reset.
type Resettable interface {
	Reset() // Reset the state of the object
}

// State represents the Game Boy state. This is used to
// save and load states between runs.
type State struct {
	raw           []byte // raw state data (for serialization)
	readPosition  int    // current read position
	writePosition int    // current write position
}

// Stater is an interface that allows an object to be saved
// and loaded from a state.
type Stater interface {
	Load(*State) // Load the state of the object
	Save(*State) // Save the state of the object
}

// NewState creates a new state with the version header already written.
func NewState() *State {
	s := &State{raw: make([]byte, 0, 4096)}
	s.Write32(stateVersion)
	return s
}

// ResetPosition resets the read and write positions,
// allowing the state to be read from the beginning.
func (s *State) ResetPosition() {
	s.readPosition = 0
	s.writePosition = 0
}

// StateFromBytes creates a new state from the given bytes and validates
// the version header, returning an error if the snapshot was produced by
// an incompatible writer.
func StateFromBytes(raw []byte) (*State, error) {
	if len(raw) < 4 {
		return nil, fmt.Errorf("types: state too short (%d bytes)", len(raw))
	}
	s := &State{raw: raw}
	version := s.Read32()
	if version != stateVersion {
		return nil, fmt.Errorf("types: unsupported state version %d (want %d)", version, stateVersion)
	}
	return s, nil
}

// BeginSection writes a section marker, used to bracket one component's
// Save output so Load can assert the reader is still in sync.
func (s *State) BeginSection() {
	s.Write32(sectionMarker)
}

// EndSection reads back a section marker and returns an error if it does
// not match, meaning a Save/Load pair has drifted out of sync.
func (s *State) EndSection() error {
	if s.readPosition+4 > len(s.raw) {
		return fmt.Errorf("types: state truncated reading section marker")
	}
	got := s.Read32()
	if got != sectionMarker {
		return fmt.Errorf("types: state section marker mismatch (got 0x%08X, want 0x%08X)", got, sectionMarker)
	}
	return nil
}

func (s *State) Write8(value uint8) {
	s.raw = append(s.raw, value)
	s.writePosition++
}

func (s *State) Write16(value uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], value)
	s.raw = append(s.raw, b[:]...)
	s.writePosition += 2
}

func (s *State) Write32(value uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], value)
	s.raw = append(s.raw, b[:]...)
	s.writePosition += 4
}

func (s *State) WriteBool(value bool) {
	if value {
		s.raw = append(s.raw, 1)
	} else {
		s.raw = append(s.raw, 0)
	}
	s.writePosition++
}

func (s *State) WriteData(data []byte) {
	s.Write32(uint32(len(data)))
	s.raw = append(s.raw, data...)
	s.writePosition += len(data)
}

func (s *State) Read8() uint8 {
	value := s.raw[s.readPosition]
	s.readPosition++
	return value
}

func (s *State) Read16() uint16 {
	value := binary.BigEndian.Uint16(s.raw[s.readPosition:])
	s.readPosition += 2
	return value
}

func (s *State) Read32() uint32 {
	value := binary.BigEndian.Uint32(s.raw[s.readPosition:])
	s.readPosition += 4
	return value
}

func (s *State) ReadBool() bool {
	value := s.raw[s.readPosition] != 0
	s.readPosition++
	return value
}

// ReadData reads a length-prefixed byte slice previously written with
// WriteData.
func (s *State) ReadData() []byte {
	n := int(s.Read32())
	data := make([]byte, n)
	copy(data, s.raw[s.readPosition:s.readPosition+n])
	s.readPosition += n
	return data
}

func (s *State) SaveToFile(filename string) error {
	return os.WriteFile(filename, s.raw, 0644)
}

func (s *State) Bytes() []byte {
	return s.raw
}
