// Package serial provides a minimal serial port controller. Link-cable
// transfer to another Game Boy is out of scope; the controller still
// completes transfers against an implicit 0xFF-filled line, which is
// what real hardware sees when no accessory is plugged in, and is
// sufficient for test ROMs (e.g. Blargg's) that bit-bang status bytes
// out over SB/SC to report progress.
package serial

import (
	"github.com/ferrite-systems/gbcore/internal/interrupts"
	"github.com/ferrite-systems/gbcore/internal/types"
)

// OnByte is invoked with each byte written to SB immediately after a
// transfer completes, letting a host (or a test) observe serial output
// without wiring up a second Game Boy.
type OnByte func(b uint8)

// Controller implements the SB/SC serial registers.
type Controller struct {
	data    uint8
	control uint8

	shiftsRemaining uint8
	fallingEdgeSeen bool

	irq    *interrupts.Service
	OnByte OnByte
}

// NewController returns a new serial controller.
func NewController(irq *interrupts.Service) *Controller {
	return &Controller{irq: irq, control: 0x7E}
}

// Tick advances the transfer state machine using bit 8 of the timer's
// free-running divider as the shift clock, matching the internal-clock
// transfer rate real hardware uses.
func (c *Controller) Tick(div uint16) {
	if !c.transferActive() {
		c.fallingEdgeSeen = false
		return
	}

	edge := div&0x0100 != 0
	if c.fallingEdgeSeen && !edge {
		c.data = c.data<<1 | 1 // no remote device: line reads as 1
		c.shiftsRemaining--
		if c.shiftsRemaining == 0 {
			c.control &^= types.Bit7
			c.irq.Request(interrupts.SerialFlag)
			if c.OnByte != nil {
				c.OnByte(c.data)
			}
		}
	}
	c.fallingEdgeSeen = edge
}

func (c *Controller) transferActive() bool {
	return c.control&types.Bit7 != 0 && c.control&types.Bit0 != 0
}

// ReadRegister services SB/SC reads (0xFF01-0xFF02).
func (c *Controller) ReadRegister(addr uint16) uint8 {
	switch addr {
	case types.SB:
		return c.data
	case types.SC:
		return c.control | 0x7E
	}
	return 0xFF
}

// WriteRegister services SB/SC writes.
func (c *Controller) WriteRegister(addr uint16, value uint8) {
	switch addr {
	case types.SB:
		c.data = value
	case types.SC:
		c.control = value | 0x7E
		if c.transferActive() {
			c.shiftsRemaining = 8
			c.fallingEdgeSeen = false
		}
	}
}

var _ types.Stater = (*Controller)(nil)

// Load restores the serial controller's state.
func (c *Controller) Load(s *types.State) {
	c.data = s.Read8()
	c.control = s.Read8()
	c.shiftsRemaining = s.Read8()
	c.fallingEdgeSeen = s.ReadBool()
}

// Save persists the serial controller's state.
func (c *Controller) Save(s *types.State) {
	s.Write8(c.data)
	s.Write8(c.control)
	s.Write8(c.shiftsRemaining)
	s.WriteBool(c.fallingEdgeSeen)
}
