// Package cartridge provides a Cartridge interface for the DMG and CGB.
// The cartridge holds the emulated ROM and any external RAM.
package cartridge

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

// MemoryBankController represents a Memory Bank Controller. It
// provides a unified interface for all cartridge types; each mapper
// implementation is responsible for its own bank switching.
type MemoryBankController interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
}

// RAMController is implemented by cartridges with battery-backed
// external RAM.
type RAMController interface {
	LoadRAM([]byte)
	SaveRAM() []byte
}

// Cartridge wraps a mapper-specific MemoryBankController with the
// parsed header and an identifying hash.
type Cartridge struct {
	MemoryBankController
	header *Header
	MD5    string
}

func (c *Cartridge) Header() *Header {
	return c.header
}

// Title returns an escaped string of the cartridge title.
func (c *Cartridge) Title() string {
	return c.header.Title
}

// Filename returns the filename for the save file: an md5 hash of
// the cartridge title.
func (c *Cartridge) Filename() string {
	hash := md5.Sum([]byte(c.Title()))
	return hex.EncodeToString(hash[:])
}

// NewCartridge parses rom's header and constructs the mapper it names.
func NewCartridge(rom []byte) *Cartridge {
	if len(rom) < 0x150 {
		return NewEmptyCartridge()
	}

	header := parseHeader(rom[0x100:0x150])
	cart := &Cartridge{header: &header}

	switch header.CartridgeType {
	case ROM:
		cart.MemoryBankController = NewROMCartridge(rom)
	case MBC1, MBC1RAM, MBC1RAMBATT:
		cart.MemoryBankController = NewMemoryBankedCartridge1(rom, cart.header)
	case MBC2, MBC2BATT:
		cart.MemoryBankController = NewMemoryBankedCartridge2(rom, cart.header)
	case MBC3, MBC3RAM, MBC3RAMBATT, MBC3TIMERBATT, MBC3TIMERRAMBATT:
		cart.MemoryBankController = NewMemoryBankedCartridge3(rom, cart.header)
	case MBC5, MBC5RAM, MBC5RAMBATT, MBC5RUMBLERAMBATT, MBC5RUMBLE, MBC5RUMBLERAM:
		cart.MemoryBankController = NewMemoryBankedCartridge5(rom, cart.header)
	default:
		panic(fmt.Sprintf("cartridge type 0x%02X not implemented", uint8(header.CartridgeType)))
	}

	hash := md5.Sum(rom)
	cart.MD5 = hex.EncodeToString(hash[:])

	return cart
}

// NewEmptyCartridge returns a blank 64KB ROM-only cartridge, used
// when no ROM has been loaded yet.
func NewEmptyCartridge() *Cartridge {
	rom := make([]byte, 65536)
	for i := range rom {
		rom[i] = 0xFF
	}
	return &Cartridge{
		MemoryBankController: NewROMCartridge(rom),
		header:                &Header{},
	}
}
