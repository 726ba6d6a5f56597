// Package timer provides an implementation of the Game Boy timer. DIV is
// the upper byte of a free-running 16-bit counter; TIMA increments at the
// rate selected by TAC and, on overflow, reloads from TMA and requests a
// timer interrupt four T-cycles (one machine cycle) later.
package timer

import (
	"github.com/ferrite-systems/gbcore/internal/interrupts"
	"github.com/ferrite-systems/gbcore/internal/types"
)

// tacRate maps the low two bits of TAC to the internal-counter bit that
// triggers a TIMA increment on its falling edge.
var tacRate = [4]uint{9, 3, 5, 7}

// Controller drives DIV/TIMA/TMA/TAC from direct per-T-cycle calls to
// Tick, rather than from scheduled deadline events.
type Controller struct {
	irq *interrupts.Service

	counter uint16 // free-running 16-bit divider; DIV = counter>>8
	Div     uint16 // alias kept for components (serial) that read the raw counter

	tima uint8
	tma  uint8
	tac  uint8

	enabled bool
	rate    uint

	reloadCycles int // >0 while TIMA is between overflow and reload+IRQ
}

// NewController returns a new timer controller with a post-boot DIV value.
func NewController(irq *interrupts.Service) *Controller {
	c := &Controller{irq: irq, counter: 0xABCC}
	c.Div = c.counter
	return c
}

// Tick advances the timer by one T-cycle.
func (c *Controller) Tick() {
	if c.reloadCycles > 0 {
		c.reloadCycles--
		if c.reloadCycles == 0 {
			c.tima = c.tma
			c.irq.Request(interrupts.TimerFlag)
		}
	}

	prevBit := c.enabled && c.counter&(1<<tacRate[c.rate]) != 0
	c.counter++
	c.Div = c.counter
	newBit := c.enabled && c.counter&(1<<tacRate[c.rate]) != 0

	if prevBit && !newBit {
		c.incrementTIMA()
	}
}

func (c *Controller) incrementTIMA() {
	c.tima++
	if c.tima == 0 {
		// overflow: TIMA reads as 0 for 4 cycles before reloading from TMA
		c.reloadCycles = 4
	}
}

// ReadRegister services DIV/TIMA/TMA/TAC reads (0xFF04-0xFF07).
func (c *Controller) ReadRegister(addr uint16) uint8 {
	switch addr {
	case types.DIV:
		return uint8(c.counter >> 8)
	case types.TIMA:
		return c.tima
	case types.TMA:
		return c.tma
	case types.TAC:
		return c.tac | 0xF8
	}
	return 0xFF
}

// WriteRegister services DIV/TIMA/TMA/TAC writes.
func (c *Controller) WriteRegister(addr uint16, value uint8) {
	switch addr {
	case types.DIV:
		// any write resets the whole internal counter; if the selected
		// tap bit was high this can itself cause a TIMA increment.
		prevBit := c.enabled && c.counter&(1<<tacRate[c.rate]) != 0
		c.counter = 0
		c.Div = 0
		if prevBit {
			c.incrementTIMA()
		}
	case types.TIMA:
		// a write during the reload-pending window cancels the reload.
		if c.reloadCycles > 0 {
			c.reloadCycles = 0
		}
		c.tima = value
	case types.TMA:
		c.tma = value
	case types.TAC:
		c.tac = value & 0x07
		c.enabled = value&types.Bit2 != 0
		c.rate = uint(value & 0x03)
	}
}

var _ types.Stater = (*Controller)(nil)

// Load restores the timer's state.
func (c *Controller) Load(s *types.State) {
	c.counter = s.Read16()
	c.Div = c.counter
	c.tima = s.Read8()
	c.tma = s.Read8()
	c.tac = s.Read8()
	c.enabled = s.ReadBool()
	c.rate = uint(s.Read8())
	c.reloadCycles = int(s.Read8())
}

// Save persists the timer's state.
func (c *Controller) Save(s *types.State) {
	s.Write16(c.counter)
	s.Write8(c.tima)
	s.Write8(c.tma)
	s.Write8(c.tac)
	s.WriteBool(c.enabled)
	s.Write8(uint8(c.rate))
	s.Write8(uint8(c.reloadCycles))
}
