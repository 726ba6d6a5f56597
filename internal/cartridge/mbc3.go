package cartridge

import "github.com/ferrite-systems/gbcore/internal/types"

// MemoryBankedCartridge3 represents an MBC3 cartridge. This cartridge
// type has external RAM and supports switching between 128 ROM banks
// and 4 RAM banks, and exposes real-time clock registers. The RTC
// registers hold whatever was last written to them; nothing advances
// them with the passage of time.
type MemoryBankedCartridge3 struct {
	rom     []byte
	romBank uint32

	ram        []byte
	ramBank    uint8
	ramEnabled bool

	rtc        []byte
	latchedRTC []byte
	latched    bool
}

// NewMemoryBankedCartridge3 returns a new MBC3 cartridge.
func NewMemoryBankedCartridge3(rom []byte, header *Header) *MemoryBankedCartridge3 {
	return &MemoryBankedCartridge3{
		rom:        rom,
		romBank:    1,
		ram:        make([]byte, header.RAMSize),
		rtc:        make([]byte, 0x10),
		latchedRTC: make([]byte, 0x10),
	}
}

// Read returns the value from the cartridge's ROM, RAM or RTC
// registers, depending on the bank selected.
func (m *MemoryBankedCartridge3) Read(address uint16) uint8 {
	switch {
	case address < 0x4000:
		return m.rom[address]
	case address < 0x8000:
		return m.rom[uint32(m.romBank)*0x4000+uint32(address-0x4000)]
	case address >= 0xA000 && address < 0xC000:
		if m.ramBank >= 0x4 {
			if m.latched {
				return m.latchedRTC[m.ramBank-0x4]
			}
			return m.rtc[m.ramBank-0x4]
		}
		if !m.ramEnabled || len(m.ram) == 0 {
			return 0xFF
		}
		idx := uint32(m.ramBank)*0x2000 + uint32(address-0xA000)
		if int(idx) >= len(m.ram) {
			return 0xFF
		}
		return m.ram[idx]
	}
	return 0xFF
}

// Write attempts to switch the ROM or RAM bank, latch the RTC, or
// write to RAM/RTC registers.
func (m *MemoryBankedCartridge3) Write(address uint16, value uint8) {
	switch {
	case address < 0x2000:
		m.ramEnabled = value&0x0F == 0x0A
	case address < 0x4000:
		bank := value & 0x7F
		if bank == 0 {
			bank = 1
		}
		m.romBank = uint32(bank)
	case address < 0x6000:
		m.ramBank = value
	case address < 0x8000:
		if value == 0x1 {
			m.latched = false
		} else if value == 0x0 {
			m.latched = true
			copy(m.latchedRTC, m.rtc)
		}
	case address >= 0xA000 && address < 0xC000:
		if m.ramBank >= 0x4 {
			m.rtc[m.ramBank-0x4] = value
			return
		}
		if !m.ramEnabled || len(m.ram) == 0 {
			return
		}
		idx := uint32(m.ramBank)*0x2000 + uint32(address-0xA000)
		if int(idx) < len(m.ram) {
			m.ram[idx] = value
		}
	}
}

// SaveRAM returns the cartridge's external RAM.
func (m *MemoryBankedCartridge3) SaveRAM() []byte {
	return m.ram
}

// LoadRAM loads the cartridge's external RAM.
func (m *MemoryBankedCartridge3) LoadRAM(data []byte) {
	copy(m.ram, data)
}

func (m *MemoryBankedCartridge3) Load(s *types.State) {
	copy(m.ram, s.ReadData())
	m.romBank = uint32(s.Read32())
	m.ramBank = s.Read8()
	m.ramEnabled = s.ReadBool()
	copy(m.rtc, s.ReadData())
	copy(m.latchedRTC, s.ReadData())
	m.latched = s.ReadBool()
}

func (m *MemoryBankedCartridge3) Save(s *types.State) {
	s.WriteData(m.ram)
	s.Write32(m.romBank)
	s.Write8(m.ramBank)
	s.WriteBool(m.ramEnabled)
	s.WriteData(m.rtc)
	s.WriteData(m.latchedRTC)
	s.WriteBool(m.latched)
}
