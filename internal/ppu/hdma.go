package ppu

import "github.com/ferrite-systems/gbcore/internal/types"

// HDMA implements the CGB's VRAM DMA controller (HDMA1-5): general
// purpose transfers that run to completion immediately, and HBlank
// transfers that copy one 16-byte block per HBlank period.
type HDMA struct {
	source, destination uint16
	length              uint8 // (HDMA5 & 0x7F) + 1, in 16-byte blocks
	remaining           uint8
	byteInBlock         uint8

	transferring bool
	hblankMode   bool

	bus Bus
	ppu *PPU
}

// NewHDMA returns a new HDMA controller copying from bus into ppu's VRAM.
func NewHDMA(bus Bus, ppu *PPU) *HDMA {
	return &HDMA{bus: bus, ppu: ppu}
}

// IsCopying reports whether the CPU should be stalled this step:
// general-purpose transfers run to completion in one burst, HBlank
// transfers only stall while the PPU is actually in HBlank.
func (h *HDMA) IsCopying() bool {
	if !h.transferring {
		return false
	}
	if !h.hblankMode {
		return true
	}
	return h.ppu.Mode == HBlank
}

// Tick copies one source byte into VRAM.
func (h *HDMA) Tick() {
	if !h.transferring {
		return
	}
	if h.hblankMode && h.ppu.Mode != HBlank {
		return
	}

	h.ppu.WriteVRAM(h.destination&0x1FFF, h.bus.Read(h.source))
	h.source++
	h.destination++
	h.byteInBlock++

	if h.byteInBlock == 16 {
		h.byteInBlock = 0
		h.remaining--
		if h.remaining == 0 {
			h.transferring = false
		} else if h.hblankMode {
			// wait for the next HBlank before copying the next block
			h.transferring = true
		}
	}
}

// ReadRegister services HDMA5 (0xFF55); HDMA1-4 are write-only.
func (h *HDMA) ReadRegister(addr uint16) uint8 {
	if addr != types.HDMA5 {
		return 0xFF
	}
	if !h.transferring {
		return 0xFF
	}
	return h.remaining - 1
}

// WriteRegister services HDMA1-5 (0xFF51-0xFF55).
func (h *HDMA) WriteRegister(addr uint16, value uint8) {
	switch addr {
	case types.HDMA1:
		h.source = uint16(value)<<8 | (h.source & 0x00FF)
	case types.HDMA2:
		h.source = (h.source & 0xFF00) | uint16(value&0xF0)
	case types.HDMA3:
		h.destination = uint16(value&0x1F)<<8 | (h.destination & 0x00FF)
	case types.HDMA4:
		h.destination = (h.destination & 0xFF00) | uint16(value&0xF0)
	case types.HDMA5:
		if h.transferring && h.hblankMode && value&types.Bit7 == 0 {
			// writing 0 to bit 7 mid-transfer cancels it
			h.transferring = false
			return
		}
		h.length = (value & 0x7F) + 1
		h.remaining = h.length
		h.byteInBlock = 0
		h.hblankMode = value&types.Bit7 != 0
		h.transferring = true

		if !h.hblankMode {
			for h.transferring {
				h.Tick()
			}
		}
	}
}

var _ types.Stater = (*HDMA)(nil)

// Load restores the HDMA controller's state.
func (h *HDMA) Load(s *types.State) {
	h.source = s.Read16()
	h.destination = s.Read16()
	h.length = s.Read8()
	h.remaining = s.Read8()
	h.byteInBlock = s.Read8()
	h.transferring = s.ReadBool()
	h.hblankMode = s.ReadBool()
}

// Save persists the HDMA controller's state.
func (h *HDMA) Save(s *types.State) {
	s.Write16(h.source)
	s.Write16(h.destination)
	s.Write8(h.length)
	s.Write8(h.remaining)
	s.Write8(h.byteInBlock)
	s.WriteBool(h.transferring)
	s.WriteBool(h.hblankMode)
}
