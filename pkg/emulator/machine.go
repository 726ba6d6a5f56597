// Package emulator provides the host-facing API for running a Game Boy
// core: loading ROMs, stepping the interpreter, and exchanging frames,
// audio and save data with the embedding application.
package emulator

import (
	"fmt"

	"github.com/ferrite-systems/gbcore/internal/cartridge"
	"github.com/ferrite-systems/gbcore/internal/cpu"
	"github.com/ferrite-systems/gbcore/internal/interrupts"
	"github.com/ferrite-systems/gbcore/internal/joypad"
	"github.com/ferrite-systems/gbcore/internal/mmu"
	"github.com/ferrite-systems/gbcore/internal/ppu"
	"github.com/ferrite-systems/gbcore/internal/statecodec"
	"github.com/ferrite-systems/gbcore/internal/types"
	"github.com/ferrite-systems/gbcore/pkg/log"
)

// powerOnRegisters holds the non-CPU IO register values Pan Docs
// documents as the post-boot-ROM state, applied once a ROM has been
// loaded and before the first instruction executes.
var powerOnRegisters = map[types.HardwareAddress]uint8{
	types.NR10: 0x80,
	types.NR11: 0xBF,
	types.NR12: 0xF3,
	types.NR14: 0xBF,
	types.NR21: 0x3F,
	types.NR22: 0x00,
	types.NR24: 0xBF,
	types.NR30: 0x7F,
	types.NR31: 0xFF,
	types.NR32: 0x9F,
	types.NR33: 0xBF,
	types.NR41: 0xFF,
	types.NR42: 0x00,
	types.NR43: 0x00,
	types.NR50: 0x77,
	types.NR51: 0xF3,
	types.NR52: 0xF1,
	types.LCDC: 0x91,
	types.STAT: 0x80,
	types.BGP:  0xFC,
}

// CyclesPerFrame is the number of T-cycles in one 59.7Hz DMG frame, the
// natural maxCycles argument for a host driving RunUntil once per
// vertical blank.
const CyclesPerFrame = 70224

// Machine is the arena owner of a single emulated Game Boy: Cartridge,
// CPU, MMU (which in turn owns PPU, APU, Timer, Serial, Joypad,
// Interrupts). No owned component holds a back-pointer to Machine.
type Machine struct {
	cart *cartridge.Cartridge
	irq  *interrupts.Service
	mmu  *mmu.MMU
	cpu  *cpu.CPU

	state State

	frameSkip    int
	framesToSkip int

	tileCacheCapacity int
	modelOverride     types.Model

	audioBuf []byte

	onFrame func(*Machine)

	log log.Logger
}

// Config bundles the construction-time choices a host can make about a
// Machine as a single struct passed to NewWithConfig: a model override, the initial
// frame-skip count, and the PPU tile cache's capacity. All fields are
// optional; the zero Config reproduces New()'s defaults.
type Config struct {
	// ModelOverride forces DMG or CGB hardware identification instead of
	// inferring it from the cartridge header's CGB flag.
	ModelOverride types.Model
	// FrameSkip is the initial value passed to SetFrameSkip; 0 means 1
	// (no skipping).
	FrameSkip int
	// TileCacheCapacity bounds the PPU's decoded-tile LRU (internal/ppu);
	// 0 selects the package's default capacity.
	TileCacheCapacity int
	// Logger overrides the default logrus-backed logger.
	Logger log.Logger
}

// New returns a Machine with no cartridge loaded and default Config
// values. Call LoadROM before RunUntil.
func New() *Machine {
	return NewWithConfig(Config{})
}

// NewWithConfig is New with explicit construction-time choices.
func NewWithConfig(cfg Config) *Machine {
	l := cfg.Logger
	if l == nil {
		l = log.New()
	}
	frameSkip := cfg.FrameSkip
	if frameSkip < 1 {
		frameSkip = 1
	}
	m := &Machine{
		state:             Stopped,
		frameSkip:         frameSkip,
		tileCacheCapacity: cfg.TileCacheCapacity,
		modelOverride:     cfg.ModelOverride,
		log:               l,
	}
	m.loadCartridge(cartridge.NewEmptyCartridge())
	return m
}

// WithLogger overrides the default logger, matching the teacher's
// functional-option naming for a host-supplied logging sink.
func (m *Machine) WithLogger(l log.Logger) *Machine {
	m.log = l
	m.mmu.Log = l
	return m
}

func (m *Machine) loadCartridge(cart *cartridge.Cartridge) {
	model := m.modelFor(cart)

	m.cart = cart
	m.irq = interrupts.NewService()
	m.mmu = mmu.New(cart, m.irq, model.IsCGB(), m.tileCacheCapacity)
	m.mmu.Log = m.log
	m.cpu = cpu.NewCPU(m.mmu, m.irq, m.mmu.PPU.DMA, m.mmu.Timer, m.mmu.PPU, m.mmu.APU, m.mmu.Serial)

	m.cpu.PC = 0x100
	m.cpu.SP = 0xFFFE
	for i, v := range model.Registers() {
		switch i {
		case 0:
			m.cpu.A = v
		case 1:
			m.cpu.F = v
		case 2:
			m.cpu.B = v
		case 3:
			m.cpu.C = v
		case 4:
			m.cpu.D = v
		case 5:
			m.cpu.E = v
		case 6:
			m.cpu.H = v
		case 7:
			m.cpu.L = v
		}
	}
	for addr, v := range powerOnRegisters {
		m.mmu.Write(addr, v)
	}

	m.mmu.APU.OnSample = m.collectSample
}

func (m *Machine) modelFor(cart *cartridge.Cartridge) types.Model {
	if m.modelOverride != 0 {
		return m.modelOverride
	}
	if cart.Header().Hardware() == "CGB" {
		return types.CGBABC
	}
	return types.DMGABC
}

// LoadROM parses rom, constructs a fresh component graph around it, and
// restores saveBytes (if non-empty) as the cartridge's battery RAM. A
// truncated ROM, unrecognized MBC or RAM-size mismatch is reported as a
// *LoadError rather than a panic.
func (m *Machine) LoadROM(rom []byte, saveBytes []byte) error {
	if len(rom) < 0x150 {
		return &LoadError{Reason: fmt.Sprintf("ROM too short to contain a header (%d bytes)", len(rom))}
	}

	cart, err := newCartridgeSafe(rom)
	if err != nil {
		return err
	}

	if len(saveBytes) > 0 {
		ramCart, ok := cart.MemoryBankController.(cartridge.RAMController)
		if !ok {
			return &LoadError{Reason: "save bytes supplied for a cartridge with no battery RAM"}
		}
		if want := len(ramCart.SaveRAM()); want != len(saveBytes) {
			return &LoadError{Reason: fmt.Sprintf("save size %d does not match declared RAM size %d", len(saveBytes), want)}
		}
		ramCart.LoadRAM(saveBytes)
	}

	m.loadCartridge(cart)
	m.state = Paused
	return nil
}

// newCartridgeSafe wraps cartridge.NewCartridge, which panics on an
// MBC type it has no mapper for, and turns that panic into a LoadError
// so a malformed ROM can never bring the host process down.
func newCartridgeSafe(rom []byte) (cart *cartridge.Cartridge, err error) {
	defer func() {
		if r := recover(); r != nil {
			cart = nil
			err = &LoadError{Reason: fmt.Sprintf("%v", r)}
		}
	}()
	return cartridge.NewCartridge(rom), nil
}

// RunUntil steps the CPU until a full PPU frame completes or maxCycles
// T-cycles have elapsed, whichever comes first, honoring frame-skip and
// reporting why it stopped.
func (m *Machine) RunUntil(maxCycles uint64) StopReason {
	if m.state.IsStopped() {
		return Fatal
	}
	m.state = Running

	var elapsed uint64
	for elapsed < maxCycles {
		elapsed += uint64(m.cpu.Step())

		if m.cpu.IsFatal() {
			m.state = Stopped
			return Fatal
		}

		if !m.mmu.PPU.HasFrame() {
			continue
		}

		if m.framesToSkip > 0 {
			m.framesToSkip--
			m.mmu.PPU.ClearFrame()
			continue
		}
		m.framesToSkip = m.frameSkip - 1
		if m.onFrame != nil {
			m.onFrame(m)
		}
		return FrameReady
	}

	return CycleBudget
}

// SetOnFrame registers a callback invoked synchronously, from within
// RunUntil, whenever a frame completes and before RunUntil returns
// FrameReady to its caller. Used by pkg/debugserver to push a state
// snapshot to any attached observers without the core depending on it.
func (m *Machine) SetOnFrame(fn func(*Machine)) {
	m.onFrame = fn
}

// SetButton presses or releases a joypad button, requesting the joypad
// interrupt exactly like a real button edge would.
func (m *Machine) SetButton(button joypad.Button, pressed bool) {
	if pressed {
		if m.mmu.Joypad.Press(button) {
			m.irq.Request(interrupts.JoypadFlag)
		}
	} else {
		m.mmu.Joypad.Release(button)
	}
}

// TakeFramebuffer returns the most recently completed frame as RGBA
// pixels and marks it consumed. The returned array aliases PPU-owned
// storage; the host must copy it before the next RunUntil call.
func (m *Machine) TakeFramebuffer() *[ppu.ScreenHeight][ppu.ScreenWidth][4]uint8 {
	m.mmu.PPU.ClearFrame()
	return &m.mmu.PPU.PreparedFrame
}

// TakeAudio drains accumulated stereo samples (interleaved, one signed
// byte per channel per sample) into out and returns the number of bytes
// written, up to len(out).
func (m *Machine) TakeAudio(out []byte) int {
	n := copy(out, m.audioBuf)
	m.audioBuf = m.audioBuf[n:]
	return n
}

func (m *Machine) collectSample(left, right float32) {
	m.audioBuf = append(m.audioBuf, floatToByte(left), floatToByte(right))
}

func floatToByte(f float32) byte {
	v := int32(f * 127)
	if v > 127 {
		v = 127
	} else if v < -128 {
		v = -128
	}
	return byte(int8(v))
}

// SetFrameSkip sets how many frames RunUntil advances through before
// returning FrameReady; n must be >= 1.
func (m *Machine) SetFrameSkip(n int) {
	if n < 1 {
		n = 1
	}
	m.frameSkip = n
	m.framesToSkip = n - 1
}

// Snapshot serializes the full machine state into a versioned,
// section-delimited blob suitable for Restore.
func (m *Machine) Snapshot() []byte {
	s := types.NewState()
	s.WriteData([]byte(m.cart.Title()))

	s.BeginSection()
	m.cpu.Save(s)
	s.BeginSection()
	if stater, ok := m.cart.MemoryBankController.(types.Stater); ok {
		stater.Save(s)
	}
	s.BeginSection()
	m.mmu.Save(s)
	s.BeginSection()
	m.mmu.PPU.Save(s)
	s.BeginSection()
	m.mmu.APU.Save(s)
	s.BeginSection()
	m.mmu.Joypad.Save(s)
	s.BeginSection()
	m.mmu.Timer.Save(s)

	return s.Bytes()
}

// Restore applies a snapshot produced by Snapshot. On any version or
// section-marker mismatch it returns a *StateError and leaves the
// Machine Paused with its prior state untouched. A successful Restore
// keeps the current run state, except that a Stopped Machine becomes
// Paused.
func (m *Machine) Restore(data []byte) error {
	s, err := types.StateFromBytes(data)
	if err != nil {
		m.state = Paused
		return &StateError{Reason: err.Error()}
	}
	romBasename := string(s.ReadData())
	if romBasename != m.cart.Title() {
		m.state = Paused
		return &StateError{Reason: fmt.Sprintf("snapshot was taken for %q, not the loaded ROM %q", romBasename, m.cart.Title())}
	}

	sections := []func() error{
		func() error { m.cpu.Load(s); return nil },
		func() error {
			if stater, ok := m.cart.MemoryBankController.(types.Stater); ok {
				stater.Load(s)
			}
			return nil
		},
		func() error { m.mmu.Load(s); return nil },
		func() error { m.mmu.PPU.Load(s); return nil },
		func() error { m.mmu.APU.Load(s); return nil },
		func() error { m.mmu.Joypad.Load(s); return nil },
		func() error { m.mmu.Timer.Load(s); return nil },
	}
	for _, section := range sections {
		if err := s.EndSection(); err != nil {
			m.state = Paused
			return &StateError{Reason: err.Error()}
		}
		if err := section(); err != nil {
			m.state = Paused
			return &StateError{Reason: err.Error()}
		}
	}

	if m.state.IsStopped() {
		m.state = Paused
	}
	return nil
}

// SnapshotCompressed is Snapshot with the result brotli-compressed via
// internal/statecodec, for hosts that persist or transfer states often
// enough for the size win to matter.
func (m *Machine) SnapshotCompressed() ([]byte, error) {
	return statecodec.Compress(m.Snapshot())
}

// RestoreCompressed reverses SnapshotCompressed.
func (m *Machine) RestoreCompressed(compressed []byte) error {
	raw, err := statecodec.Decompress(compressed)
	if err != nil {
		return &StateError{Reason: err.Error()}
	}
	return m.Restore(raw)
}

// ExportBattery returns the cartridge's external RAM, or nil if it has
// none.
func (m *Machine) ExportBattery() []byte {
	ramCart, ok := m.cart.MemoryBankController.(cartridge.RAMController)
	if !ok {
		return nil
	}
	return ramCart.SaveRAM()
}

// State reports the Machine's current run state.
func (m *Machine) State() State {
	return m.state
}

// Pause sets the Machine's state to Paused. RunUntil does not check this
// state: the next RunUntil call sets it back to Running and runs as
// usual, and never returns PausedReason.
func (m *Machine) Pause() {
	m.state = Paused
}

// DebugSnapshot is a read-only view of register, PPU and APU state for
// introspection tools such as pkg/debugserver. It is never consulted by
// the core itself.
type DebugSnapshot struct {
	PC, SP           uint16
	A, B, C, D, E, F uint8
	H, L             uint8
	PPUMode          ppu.Mode
	LY               uint8
	ChannelEnabled   [4]bool
	State            State
}

// DebugSnapshot captures the Machine's current state for an observer.
func (m *Machine) DebugSnapshot() DebugSnapshot {
	return DebugSnapshot{
		PC: m.cpu.PC, SP: m.cpu.SP,
		A: m.cpu.A, B: m.cpu.B, C: m.cpu.C, D: m.cpu.D, E: m.cpu.E, F: m.cpu.F,
		H: m.cpu.H, L: m.cpu.L,
		PPUMode:        m.mmu.PPU.Mode,
		LY:             m.mmu.PPU.LY,
		ChannelEnabled: m.mmu.APU.Debug.ChannelEnabled,
		State:          m.state,
	}
}
