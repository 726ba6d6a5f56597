// Package mmu provides the memory management unit for the Game Boy. It
// owns the work RAM and HRAM banks directly, and routes every
// memory-mapped register address to the owning component's
// ReadRegister/WriteRegister methods rather than through a global
// hardware-register registry.
package mmu

import (
	"fmt"

	"github.com/ferrite-systems/gbcore/internal/apu"
	"github.com/ferrite-systems/gbcore/internal/cartridge"
	"github.com/ferrite-systems/gbcore/internal/interrupts"
	"github.com/ferrite-systems/gbcore/internal/joypad"
	"github.com/ferrite-systems/gbcore/internal/ppu"
	"github.com/ferrite-systems/gbcore/internal/ram"
	"github.com/ferrite-systems/gbcore/internal/serial"
	"github.com/ferrite-systems/gbcore/internal/timer"
	"github.com/ferrite-systems/gbcore/internal/types"
	"github.com/ferrite-systems/gbcore/pkg/log"
)

// MMU represents the memory management unit of the Game Boy. It owns
// the 64KB address space, delegating each region to the component
// that implements it:
//
//	0x0000-0x7FFF  Cart (ROM, possibly banked)
//	0x8000-0x9FFF  PPU VRAM
//	0xA000-0xBFFF  Cart (external RAM)
//	0xC000-0xDFFF  work RAM (banked 1-7 in CGB mode)
//	0xFE00-0xFE9F  PPU OAM
//	0xFF00         Joypad
//	0xFF01-0xFF02  Serial
//	0xFF04-0xFF07  Timer
//	0xFF0F         Interrupts (IF)
//	0xFF10-0xFF3F  APU
//	0xFF40-0xFF4B  PPU registers
//	0xFF4F         PPU VBK
//	0xFF51-0xFF55  HDMA
//	0xFF68-0xFF6B  PPU CGB palettes
//	0xFF70         SVBK (work RAM bank)
//	0xFF80-0xFFFE  HRAM
//	0xFFFF         Interrupts (IE)
type MMU struct {
	Cart       *cartridge.Cartridge
	PPU        *ppu.PPU
	APU        *apu.APU
	Timer      *timer.Controller
	Serial     *serial.Controller
	Joypad     *joypad.State
	Interrupts *interrupts.Service
	HDMA       *ppu.HDMA

	wRAM     [8]*ram.Ram
	wRAMBank uint8
	hRAM     *ram.Ram

	key0  uint8
	key1  uint8
	isGBC bool

	isMocking bool
	mockBank  ram.RAM

	Log log.Logger
}

// New returns a new MMU with cart mapped in and every other component
// freshly constructed and wired together. isGBC selects CGB-only
// register and timing behavior; tileCacheCapacity bounds the PPU's
// decoded-tile LRU (0 selects its package default).
func New(cart *cartridge.Cartridge, irq *interrupts.Service, isGBC bool, tileCacheCapacity int) *MMU {
	m := &MMU{
		Cart:       cart,
		Interrupts: irq,
		Timer:      timer.NewController(irq),
		Serial:     serial.NewController(irq),
		Joypad:     joypad.New(),
		PPU:        ppu.New(irq, isGBC, tileCacheCapacity),
		APU:        apu.NewAPU(),
		wRAM: [8]*ram.Ram{
			ram.NewRAM(0x1000), ram.NewRAM(0x1000), ram.NewRAM(0x1000), ram.NewRAM(0x1000),
			ram.NewRAM(0x1000), ram.NewRAM(0x1000), ram.NewRAM(0x1000), ram.NewRAM(0x1000),
		},
		hRAM:  ram.NewRAM(0x80),
		isGBC: isGBC,
		Log:   log.New(),
	}

	m.PPU.AttachDMABus(m)
	m.HDMA = ppu.NewHDMA(m, m.PPU)

	if isGBC {
		model := types.CGBABC
		m.APU.SetModel(model)
	}

	return m
}

// Key returns the KEY1 (speed switch) register's current value.
func (m *MMU) Key() uint8 {
	return m.key1
}

// SetKey overwrites the KEY1 register, used by the CPU to flip the
// current-speed bit after a STOP-triggered speed switch completes.
func (m *MMU) SetKey(key uint8) {
	m.key1 = key
}

// IsGBC reports whether the loaded cartridge runs in CGB mode.
func (m *MMU) IsGBC() bool {
	return m.isGBC
}

// EnableMock swaps in a flat, unchecked 64KB RAM backing for the
// whole address space, used by CPU instruction tests that don't want
// to construct a full component graph.
func (m *MMU) EnableMock() {
	m.isMocking = true
	m.mockBank = ram.NewRAM(0xFFFF)
}

// Read returns the value at the given address.
func (m *MMU) Read(address uint16) uint8 {
	if m.isMocking {
		return m.mockBank.Read(address)
	}
	switch {
	case address <= 0x7FFF:
		return m.Cart.Read(address)
	case address <= 0x9FFF:
		return m.PPU.ReadVRAM(address - 0x8000)
	case address <= 0xBFFF:
		return m.Cart.Read(address)
	case address <= 0xCFFF:
		return m.wRAM[0].Read(address - 0xC000)
	case address <= 0xDFFF:
		if m.isGBC {
			return m.wRAM[m.wRAMBank].Read(address - 0xD000)
		}
		return m.wRAM[1].Read(address - 0xD000)
	case address <= 0xEFFF:
		return m.wRAM[0].Read(address & 0x0FFF)
	case address <= 0xFDFF:
		if m.isGBC {
			return m.wRAM[m.wRAMBank].Read(address & 0x0FFF)
		}
		return m.wRAM[1].Read(address & 0x0FFF)
	case address <= 0xFE9F:
		return m.PPU.ReadOAM(address - 0xFE00)
	case address <= 0xFEFF:
		return 0xFF
	case address == types.P1:
		return m.Joypad.Read()
	case address == types.SB || address == types.SC:
		return m.Serial.ReadRegister(address)
	case address >= types.DIV && address <= types.TAC:
		return m.Timer.ReadRegister(address)
	case address == types.IF:
		return m.Interrupts.Read(address)
	case address >= types.NR10 && address <= 0xFF3F:
		return m.APU.ReadRegister(address)
	case address >= types.LCDC && address <= types.WX:
		return m.PPU.ReadRegister(address)
	case address == types.KEY0:
		if m.isGBC {
			return m.key0
		}
		return 0xFF
	case address == types.KEY1:
		if m.isGBC {
			return m.key1 | 0x7E
		}
		return 0xFF
	case address == types.VBK, address == types.BCPS, address == types.BCPD, address == types.OCPS, address == types.OCPD:
		return m.PPU.ReadRegister(address)
	case address == types.BDIS:
		return 0xFF
	case address >= types.HDMA1 && address <= types.HDMA5:
		return m.HDMA.ReadRegister(address)
	case address == types.SVBK:
		if m.isGBC {
			return m.wRAMBank
		}
		return 0xFF
	case address <= 0xFF7F:
		return 0xFF
	case address <= 0xFFFE:
		return m.hRAM.Read(address - 0xFF80)
	case address == 0xFFFF:
		return m.Interrupts.Read(address)
	}
	panic(fmt.Sprintf("mmu: unhandled read at 0x%04X", address))
}

// Write writes the given value to the given address.
func (m *MMU) Write(address uint16, value uint8) {
	if m.isMocking {
		m.mockBank.Write(address, value)
		return
	}
	switch {
	case address <= 0x7FFF:
		m.Cart.Write(address, value)
	case address <= 0x9FFF:
		m.PPU.WriteVRAM(address-0x8000, value)
	case address <= 0xBFFF:
		m.Cart.Write(address, value)
	case address <= 0xCFFF:
		m.wRAM[0].Write(address-0xC000, value)
	case address <= 0xDFFF:
		if m.isGBC {
			m.wRAM[m.wRAMBank].Write(address-0xD000, value)
		} else {
			m.wRAM[1].Write(address-0xD000, value)
		}
	case address <= 0xEFFF:
		m.wRAM[0].Write(address&0x0FFF, value)
	case address <= 0xFDFF:
		if m.isGBC {
			m.wRAM[m.wRAMBank].Write(address&0x0FFF, value)
		} else {
			m.wRAM[1].Write(address&0x0FFF, value)
		}
	case address <= 0xFE9F:
		m.PPU.WriteOAM(address-0xFE00, value)
	case address <= 0xFEFF:
		// unusable
	case address == types.P1:
		m.Joypad.Write(value)
	case address == types.SB || address == types.SC:
		m.Serial.WriteRegister(address, value)
	case address >= types.DIV && address <= types.TAC:
		m.Timer.WriteRegister(address, value)
	case address == types.IF:
		m.Interrupts.Write(address, value)
	case address >= types.NR10 && address <= 0xFF3F:
		m.APU.WriteRegister(address, value)
	case address >= types.LCDC && address <= types.WX:
		m.PPU.WriteRegister(address, value)
	case address == types.KEY0:
		if m.isGBC {
			m.key0 = value & 0x0F
		}
	case address == types.KEY1:
		if m.isGBC {
			m.key1 = (m.key1 & 0x80) | (value & types.Bit0)
		}
	case address == types.VBK, address == types.BCPS, address == types.BCPD, address == types.OCPS, address == types.OCPD:
		m.PPU.WriteRegister(address, value)
	case address == types.BDIS:
		// boot ROM unmap: no boot ROM is modelled, write is a no-op
	case address >= types.HDMA1 && address <= types.HDMA5:
		m.HDMA.WriteRegister(address, value)
	case address == types.SVBK:
		if m.isGBC {
			value &= 0x07
			if value == 0 {
				value = 1
			}
			m.wRAMBank = value
		}
	case address <= 0xFF7F:
		// unmapped I/O
	case address <= 0xFFFE:
		m.hRAM.Write(address-0xFF80, value)
	case address == 0xFFFF:
		m.Interrupts.Write(address, value)
	default:
		panic(fmt.Sprintf("mmu: unhandled write at 0x%04X", address))
	}
}

var _ types.Stater = (*MMU)(nil)

// Load restores work RAM, HRAM and the CGB bank/speed registers. Every
// owned component persists its own state independently via Load/Save.
func (m *MMU) Load(s *types.State) {
	for i := range m.wRAM {
		for a := uint16(0); a < 0x1000; a++ {
			m.wRAM[i].Write(a, s.Read8())
		}
	}
	for a := uint16(0); a < 0x80; a++ {
		m.hRAM.Write(a, s.Read8())
	}
	m.wRAMBank = s.Read8()
	m.key0 = s.Read8()
	m.key1 = s.Read8()
}

// Save persists work RAM, HRAM and the CGB bank/speed registers.
func (m *MMU) Save(s *types.State) {
	for i := range m.wRAM {
		for a := uint16(0); a < 0x1000; a++ {
			s.Write8(m.wRAM[i].Read(a))
		}
	}
	for a := uint16(0); a < 0x80; a++ {
		s.Write8(m.hRAM.Read(a))
	}
	s.Write8(m.wRAMBank)
	s.Write8(m.key0)
	s.Write8(m.key1)
}
