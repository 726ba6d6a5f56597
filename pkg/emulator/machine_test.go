package emulator

import (
	"testing"

	"github.com/ferrite-systems/gbcore/internal/joypad"
)

// buildROM returns a minimal valid Game Boy ROM image of romType with
// code placed at the entry point (0x100). It sets no licensee, country
// or checksum bytes since nothing in this module validates them.
func buildROM(size int, romType byte, ramSizeCode byte, code []byte) []byte {
	rom := make([]byte, size)
	copy(rom[0x100:], code)
	copy(rom[0x134:0x144], []byte("TESTROM"))
	rom[0x147] = romType
	rom[0x148] = 0x00 // 32KB banks, unused by the flat ROM-only mapper
	rom[0x149] = ramSizeCode
	return rom
}

// infiniteLoop is `JR -2`, a two-byte instruction that jumps to itself
// forever: enough to drive RunUntil without reaching an undefined
// opcode.
var infiniteLoop = []byte{0x18, 0xFE}

func TestLoadROM_TooShort(t *testing.T) {
	m := New()
	err := m.LoadROM(make([]byte, 0x10), nil)
	if _, ok := err.(*LoadError); !ok {
		t.Fatalf("LoadROM(short) = %v, want *LoadError", err)
	}
}

func TestLoadROM_Valid(t *testing.T) {
	m := New()
	rom := buildROM(0x8000, 0x00, 0x00, infiniteLoop)
	if err := m.LoadROM(rom, nil); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}
	if !m.State().IsPaused() {
		t.Fatalf("State() = %v, want Paused after LoadROM", m.State())
	}
	if pc := m.DebugSnapshot().PC; pc != 0x100 {
		t.Fatalf("PC = 0x%04X, want 0x0100", pc)
	}
}

func TestLoadROM_SaveBytesWithoutBattery(t *testing.T) {
	m := New()
	rom := buildROM(0x8000, 0x00, 0x00, infiniteLoop) // plain ROM cart, no RAMController
	err := m.LoadROM(rom, []byte{0x01, 0x02})
	if _, ok := err.(*LoadError); !ok {
		t.Fatalf("LoadROM(saveBytes, no battery) = %v, want *LoadError", err)
	}
}

func TestLoadROM_SaveSizeMismatch(t *testing.T) {
	m := New()
	rom := buildROM(0x8000, 0x03 /* MBC1RAMBATT */, 0x02 /* 8KB RAM */, infiniteLoop)
	err := m.LoadROM(rom, make([]byte, 100))
	if _, ok := err.(*LoadError); !ok {
		t.Fatalf("LoadROM(mismatched save size) = %v, want *LoadError", err)
	}
}

func TestLoadROM_UnrecognizedMBCIsLoadError(t *testing.T) {
	m := New()
	rom := buildROM(0x8000, 0x20 /* not mapped by any cartridge constructor */, 0x00, infiniteLoop)
	err := m.LoadROM(rom, nil)
	if _, ok := err.(*LoadError); !ok {
		t.Fatalf("LoadROM(unrecognized MBC) = %v, want *LoadError", err)
	}
}

func TestExportBattery_RoundTrip(t *testing.T) {
	m := New()
	rom := buildROM(0x8000, 0x03, 0x02, infiniteLoop)
	saveBytes := make([]byte, 8*1024)
	saveBytes[0] = 0x42
	if err := m.LoadROM(rom, saveBytes); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}
	got := m.ExportBattery()
	if len(got) != len(saveBytes) || got[0] != 0x42 {
		t.Fatalf("ExportBattery() = %v, want round-tripped save bytes", got)
	}
}

func TestRunUntil_CycleBudget(t *testing.T) {
	m := New()
	rom := buildROM(0x8000, 0x00, 0x00, infiniteLoop)
	if err := m.LoadROM(rom, nil); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}
	if reason := m.RunUntil(100); reason != CycleBudget {
		t.Fatalf("RunUntil(100) = %v, want CycleBudget", reason)
	}
}

func TestRunUntil_FrameReady(t *testing.T) {
	m := New()
	rom := buildROM(0x8000, 0x00, 0x00, infiniteLoop)
	if err := m.LoadROM(rom, nil); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}
	if reason := m.RunUntil(CyclesPerFrame + 1000); reason != FrameReady {
		t.Fatalf("RunUntil(CyclesPerFrame+1000) = %v, want FrameReady", reason)
	}
}

func TestRunUntil_UndefinedOpcodeIsFatal(t *testing.T) {
	m := New()
	rom := buildROM(0x8000, 0x00, 0x00, []byte{0xD3}) // undefined opcode
	if err := m.LoadROM(rom, nil); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}
	if reason := m.RunUntil(CyclesPerFrame); reason != Fatal {
		t.Fatalf("RunUntil after undefined opcode = %v, want Fatal", reason)
	}
	if !m.State().IsStopped() {
		t.Fatalf("State() after Fatal = %v, want Stopped", m.State())
	}
	if reason := m.RunUntil(100); reason != Fatal {
		t.Fatalf("RunUntil on an already-Fatal Machine = %v, want Fatal", reason)
	}
}

func TestRunUntil_StoppedMachineIsFatal(t *testing.T) {
	m := New()
	if reason := m.RunUntil(100); reason != Fatal {
		t.Fatalf("RunUntil on a Machine with no ROM loaded = %v, want Fatal", reason)
	}
}

func TestSnapshotRestore_RoundTrip(t *testing.T) {
	m := New()
	rom := buildROM(0x8000, 0x00, 0x00, infiniteLoop)
	if err := m.LoadROM(rom, nil); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}
	m.RunUntil(1000)
	snap := m.Snapshot()
	before := m.DebugSnapshot()

	m.RunUntil(1000)
	if after := m.DebugSnapshot(); after == before {
		t.Fatalf("state did not advance between snapshot and restore")
	}

	if err := m.Restore(snap); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restored := m.DebugSnapshot(); restored != before {
		t.Fatalf("DebugSnapshot() after Restore = %+v, want %+v", restored, before)
	}
}

func TestRestore_WrongROMIsStateError(t *testing.T) {
	a := New()
	if err := a.LoadROM(buildROM(0x8000, 0x00, 0x00, infiniteLoop), nil); err != nil {
		t.Fatalf("LoadROM a: %v", err)
	}
	snap := a.Snapshot()

	b := New()
	romB := buildROM(0x8000, 0x00, 0x00, infiniteLoop)
	copy(romB[0x134:0x144], []byte("OTHERROM"))
	if err := b.LoadROM(romB, nil); err != nil {
		t.Fatalf("LoadROM b: %v", err)
	}

	err := b.Restore(snap)
	if _, ok := err.(*StateError); !ok {
		t.Fatalf("Restore(mismatched ROM) = %v, want *StateError", err)
	}
	if !b.State().IsPaused() {
		t.Fatalf("State() after failed Restore = %v, want Paused", b.State())
	}
}

func TestSnapshotCompressed_RoundTrip(t *testing.T) {
	m := New()
	if err := m.LoadROM(buildROM(0x8000, 0x00, 0x00, infiniteLoop), nil); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}
	m.RunUntil(1000)
	before := m.DebugSnapshot()

	compressed, err := m.SnapshotCompressed()
	if err != nil {
		t.Fatalf("SnapshotCompressed: %v", err)
	}
	m.RunUntil(1000)
	if err := m.RestoreCompressed(compressed); err != nil {
		t.Fatalf("RestoreCompressed: %v", err)
	}
	if restored := m.DebugSnapshot(); restored != before {
		t.Fatalf("DebugSnapshot() after RestoreCompressed = %+v, want %+v", restored, before)
	}
}

func TestSetButton_PressAndRelease(t *testing.T) {
	m := New()
	if err := m.LoadROM(buildROM(0x8000, 0x00, 0x00, infiniteLoop), nil); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}
	m.SetButton(joypad.ButtonA, true)
	m.SetButton(joypad.ButtonA, false)
	m.SetButton(joypad.ButtonStart, true)
}

func TestSetFrameSkip_SkipsIntermediateFrames(t *testing.T) {
	m := New()
	if err := m.LoadROM(buildROM(0x8000, 0x00, 0x00, infiniteLoop), nil); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}
	m.SetFrameSkip(2)
	if reason := m.RunUntil(CyclesPerFrame + 1000); reason != CycleBudget {
		t.Fatalf("RunUntil with frameskip after one frame = %v, want CycleBudget (still skipping)", reason)
	}
	if reason := m.RunUntil(CyclesPerFrame + 1000); reason != FrameReady {
		t.Fatalf("RunUntil with frameskip after second frame = %v, want FrameReady", reason)
	}
}

func TestTakeFramebuffer_ClearsPendingFrame(t *testing.T) {
	m := New()
	if err := m.LoadROM(buildROM(0x8000, 0x00, 0x00, infiniteLoop), nil); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}
	m.RunUntil(CyclesPerFrame + 1000)
	fb := m.TakeFramebuffer()
	if fb == nil {
		t.Fatal("TakeFramebuffer() = nil")
	}
	if reason := m.RunUntil(100); reason != CycleBudget {
		t.Fatalf("RunUntil(100) right after TakeFramebuffer = %v, want CycleBudget", reason)
	}
}

func TestTakeAudio_DrainsBuffer(t *testing.T) {
	m := New()
	if err := m.LoadROM(buildROM(0x8000, 0x00, 0x00, infiniteLoop), nil); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}
	m.RunUntil(CyclesPerFrame + 1000)
	out := make([]byte, 4)
	n := m.TakeAudio(out)
	if n < 0 || n > len(out) {
		t.Fatalf("TakeAudio returned n=%d, out of range for len(out)=%d", n, len(out))
	}
}
