package cartridge

import "github.com/ferrite-systems/gbcore/internal/types"

// MemoryBankedCartridge2 supports ROM sizes up to 2Mbit (16 banks of
// 16KiB) and has a built-in 512x4-bit RAM array, unique amongst MBC
// cartridges.
type MemoryBankedCartridge2 struct {
	rom        []byte
	ram        [512]byte
	romBank    uint8
	ramEnabled bool
}

// NewMemoryBankedCartridge2 returns a new MBC2 cartridge.
func NewMemoryBankedCartridge2(rom []byte, _ *Header) *MemoryBankedCartridge2 {
	return &MemoryBankedCartridge2{rom: rom, romBank: 1}
}

// Read returns the value at the given address from ROM or the
// internal 4-bit RAM array (upper nibble always reads as set).
func (m *MemoryBankedCartridge2) Read(address uint16) uint8 {
	switch {
	case address < 0x4000:
		return m.rom[address]
	case address < 0x8000:
		bank := int(m.romBank)
		if banks := len(m.rom) / 0x4000; banks > 0 {
			bank %= banks
		}
		return m.rom[bank*0x4000+int(address-0x4000)]
	case address >= 0xA000 && address < 0xC000:
		if !m.ramEnabled {
			return 0xFF
		}
		return m.ram[address&0x1FF] | 0xF0
	}
	return 0xFF
}

// Write switches the ROM bank or writes to the internal RAM array.
func (m *MemoryBankedCartridge2) Write(address uint16, value uint8) {
	switch {
	case address < 0x4000:
		if address&0x100 != 0 {
			bank := value & 0x0F
			if bank == 0 {
				bank = 1
			}
			m.romBank = bank
		} else {
			m.ramEnabled = value&0x0F == 0x0A
		}
	case address >= 0xA000 && address < 0xC000:
		if m.ramEnabled {
			m.ram[address&0x1FF] = value | 0xF0
		}
	}
}

// SaveRAM returns the cartridge's internal RAM array.
func (m *MemoryBankedCartridge2) SaveRAM() []byte {
	return m.ram[:]
}

// LoadRAM loads the cartridge's internal RAM array.
func (m *MemoryBankedCartridge2) LoadRAM(data []byte) {
	copy(m.ram[:], data)
}

func (m *MemoryBankedCartridge2) Load(s *types.State) {
	copy(m.ram[:], s.ReadData())
	m.romBank = s.Read8()
	m.ramEnabled = s.ReadBool()
}

func (m *MemoryBankedCartridge2) Save(s *types.State) {
	s.WriteData(m.ram[:])
	s.Write8(m.romBank)
	s.WriteBool(m.ramEnabled)
}
