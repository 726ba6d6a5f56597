package ppu

// OAM is the 160-byte Object Attribute Memory at 0xFE00-0xFE9F, holding
// 40 four-byte sprite entries (Y, X, tile index, attributes).
type OAM struct {
	data [160]uint8
}

// NewOAM returns an empty OAM table.
func NewOAM() *OAM {
	return &OAM{}
}

// Read returns the raw byte at the given OAM-relative address (0-159).
func (o *OAM) Read(address uint16) uint8 {
	return o.data[address]
}

// Write stores the raw byte at the given OAM-relative address (0-159).
func (o *OAM) Write(address uint16, value uint8) {
	o.data[address] = value
}

// sprite decodes the attribute entry at the given sprite index (0-39).
func (o *OAM) sprite(index int) spriteAttributes {
	base := index * 4
	return spriteAttributes{
		y:    o.data[base],
		x:    o.data[base+1],
		tile: o.data[base+2],
		attr: o.data[base+3],
	}
}

// spriteAttributes is a decoded view of one OAM entry.
type spriteAttributes struct {
	y, x, tile, attr uint8
}

func (s spriteAttributes) priorityBehindBG() bool { return s.attr&0x80 != 0 }
func (s spriteAttributes) flipY() bool            { return s.attr&0x40 != 0 }
func (s spriteAttributes) flipX() bool            { return s.attr&0x20 != 0 }
func (s spriteAttributes) dmgPalette() uint8       { return (s.attr >> 4) & 1 }
func (s spriteAttributes) vramBank() uint8         { return (s.attr >> 3) & 1 }
func (s spriteAttributes) cgbPalette() uint8       { return s.attr & 0x07 }
