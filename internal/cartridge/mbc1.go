package cartridge

import "github.com/ferrite-systems/gbcore/internal/types"

// MemoryBankedCartridge1 represents an MBC1 cartridge. This cartridge
// type has external RAM and supports switching between 128 ROM banks
// and 4 RAM banks.
type MemoryBankedCartridge1 struct {
	rom    []byte
	ram    []byte
	header *Header

	// ramg enables access to cartridge SRAM: writing 0b1010 to the
	// lower 4 bits of 0x0000-0x1FFF enables it, any other value
	// disables it.
	ramg bool

	// bank1 selects the lower 5 bits of the ROM bank visible at
	// 0x4000-0x7FFF. Zero is adjusted up to one: banks 0x00, 0x20,
	// 0x40 and 0x60 are unreachable through this register.
	bank1 uint8

	// bank2 supplies either the upper 2 bits of the ROM bank number
	// or the 2-bit RAM bank number, depending on mode.
	bank2 uint8

	// mode selects whether bank2 affects 0x4000-0x7FFF only (mode
	// false) or also 0x0000-0x3FFF and 0xA000-0xBFFF (mode true).
	mode bool

	isMultiCart bool
}

// NewMemoryBankedCartridge1 returns a new MBC1 cartridge.
func NewMemoryBankedCartridge1(rom []byte, header *Header) *MemoryBankedCartridge1 {
	m := &MemoryBankedCartridge1{
		rom:    rom,
		ram:    make([]byte, header.RAMSize),
		header: header,
		bank1:  0x01,
	}
	m.checkMultiCart()
	return m
}

func (m *MemoryBankedCartridge1) bankShift() uint8 {
	if m.isMultiCart {
		return 4
	}
	return 5
}

func (m *MemoryBankedCartridge1) romBank() uint8 {
	bank := m.bank1 | m.bank2<<m.bankShift()
	if banks := uint8(len(m.rom) / 0x4000); banks > 0 && bank >= banks {
		bank %= banks
	}
	return bank
}

func (m *MemoryBankedCartridge1) lowBank() uint8 {
	if !m.mode {
		return 0
	}
	bank := m.bank2 << m.bankShift()
	if banks := uint8(len(m.rom) / 0x4000); banks > 0 && bank >= banks {
		bank %= banks
	}
	return bank
}

func (m *MemoryBankedCartridge1) ramOffset() int {
	if m.mode && len(m.ram) > 8192 {
		return int(m.bank2&0x03) * 0x2000
	}
	return 0
}

// Read returns the value at the given address from ROM or RAM.
func (m *MemoryBankedCartridge1) Read(address uint16) uint8 {
	switch {
	case address < 0x4000:
		return m.rom[int(m.lowBank())*0x4000+int(address)]
	case address < 0x8000:
		return m.rom[int(m.romBank())*0x4000+int(address-0x4000)]
	case address >= 0xA000 && address < 0xC000:
		if !m.ramg || len(m.ram) == 0 {
			return 0xFF
		}
		idx := m.ramOffset() + int(address-0xA000)
		if idx >= len(m.ram) {
			return 0xFF
		}
		return m.ram[idx]
	}
	return 0xFF
}

// Write attempts to switch the ROM or RAM bank, or write to RAM.
func (m *MemoryBankedCartridge1) Write(address uint16, value uint8) {
	switch {
	case address < 0x2000:
		m.ramg = value&0x0F == 0x0A
	case address < 0x4000:
		value &= 0x1F
		if value == 0 {
			value = 1
		}
		m.bank1 = value
		if m.isMultiCart {
			m.bank1 &= 0x0F
		}
	case address < 0x6000:
		m.bank2 = value & 0b11
	case address < 0x8000:
		m.mode = value&1 == 1
	case address >= 0xA000 && address < 0xC000:
		if len(m.ram) == 0 || !m.ramg {
			return
		}
		idx := m.ramOffset() + int(address-0xA000)
		if idx < len(m.ram) {
			m.ram[idx] = value
		}
	}
}

// SaveRAM returns the cartridge's external RAM.
func (m *MemoryBankedCartridge1) SaveRAM() []byte {
	return m.ram
}

// LoadRAM loads the cartridge's external RAM.
func (m *MemoryBankedCartridge1) LoadRAM(data []byte) {
	copy(m.ram, data)
}

func (m *MemoryBankedCartridge1) Load(s *types.State) {
	copy(m.ram, s.ReadData())
	m.ramg = s.ReadBool()
	m.bank1 = s.Read8()
	m.bank2 = s.Read8()
	m.mode = s.ReadBool()
	m.isMultiCart = s.ReadBool()
}

func (m *MemoryBankedCartridge1) Save(s *types.State) {
	s.WriteData(m.ram)
	s.WriteBool(m.ramg)
	s.Write8(m.bank1)
	s.Write8(m.bank2)
	s.WriteBool(m.mode)
	s.WriteBool(m.isMultiCart)
}

// logo is the Nintendo logo bitmap stored at 0x0104-0x0133, used to
// heuristically detect MBC1 multicart ROMs.
var logo = [48]byte{
	0xCE, 0xED, 0x66, 0x66, 0xCC, 0x0D, 0x00, 0x0B,
	0x03, 0x73, 0x00, 0x83, 0x00, 0x0C, 0x00, 0x0D,
	0x00, 0x08, 0x11, 0x1F, 0x88, 0x89, 0x00, 0x0E,
	0xDC, 0xCC, 0x6E, 0xE6, 0xDD, 0xDD, 0xD9, 0x99,
	0xBB, 0xBB, 0x67, 0x63, 0x6E, 0x0E, 0xEC, 0xCC,
	0xDD, 0xDC, 0x99, 0x9F, 0xBB, 0xB9, 0x33, 0x3E,
}

func (m *MemoryBankedCartridge1) checkMultiCart() {
	if m.header.ROMSize != 1024*1024 {
		return
	}
	count := 0
	for bank := 0; bank < 4; bank++ {
		compare := true
		for addr := 0x0104; addr <= 0x0133; addr++ {
			if m.rom[bank*0x40000+addr] != logo[addr-0x0104] {
				compare = false
				break
			}
		}
		if compare {
			count++
		}
	}
	if count > 1 {
		m.isMultiCart = true
	}
}
