package cpu

// halt enters the low-power HALT state entered by the HALT instruction.
// If IME is disabled and an interrupt is already pending at the moment
// HALT executes, the hardware fails to actually halt and instead
// re-executes the following opcode (the HALT bug).
func (c *CPU) halt() {
	if !c.IRQ.IME && c.hasInterrupts() {
		c.mode = ModeHaltBug
		return
	}
	c.mode = ModeHalt
}
