package ppu

// Bus is the memory interface OAM DMA reads its source bytes from. The
// MMU satisfies this implicitly; the PPU package never imports mmu to
// avoid a cyclic package dependency.
type Bus interface {
	Read(address uint16) uint8
}

// DMA implements the OAM DMA controller driven by writes to 0xFF46. A
// transfer copies 160 bytes from source*0x100 into OAM over 160
// machine cycles (640 T-cycles), 4 T-cycles of startup latency included.
type DMA struct {
	enabled    bool
	restarting bool

	timer  uint16
	source uint16
	value  uint8

	bus Bus
	oam *OAM
}

// NewDMA returns a new OAM DMA controller reading from bus into oam.
func NewDMA(bus Bus, oam *OAM) *DMA {
	return &DMA{bus: bus, oam: oam}
}

// Read returns the last value written to the DMA register.
func (d *DMA) Read(uint16) uint8 {
	return d.value
}

// Write starts a new transfer from value*0x100.
func (d *DMA) Write(_ uint16, value uint8) {
	d.value = value
	d.source = uint16(value) << 8
	d.timer = 0

	d.restarting = d.enabled
	d.enabled = true
}

// Tick advances the transfer by one T-cycle.
func (d *DMA) Tick() {
	if !d.enabled {
		return
	}

	d.timer++
	if d.timer > 4 {
		d.restarting = false

		offset := (d.timer - 4) >> 2
		currentSource := d.source + offset

		// OAM cannot source itself; real hardware reads the mirrored
		// address 0x2000 below instead.
		if currentSource >= 0xFE00 {
			currentSource -= 0x2000
		}

		d.oam.Write(offset, d.bus.Read(currentSource))

		if d.timer >= 160*4+3 {
			d.enabled = false
			d.timer = 0
		}
	}
}

// IsTransferring reports whether OAM is currently locked by an
// in-progress (or just-restarted) DMA transfer.
func (d *DMA) IsTransferring() bool {
	return d.timer > 4 || d.restarting
}
