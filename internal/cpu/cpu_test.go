package cpu

import (
	"testing"

	"github.com/ferrite-systems/gbcore/internal/cartridge"
	"github.com/ferrite-systems/gbcore/internal/interrupts"
	"github.com/ferrite-systems/gbcore/internal/mmu"
)

// newTestCPU returns a CPU wired to a mocked, flat 64KB address space so
// instruction tests can poke memory directly without a real cartridge.
func newTestCPU() *CPU {
	cart := cartridge.NewEmptyCartridge()
	irq := interrupts.NewService()
	m := mmu.New(cart, irq, cart.Header().Hardware() == "CGB", 0)
	m.EnableMock()

	c := NewCPU(m, irq, m.PPU.DMA, m.Timer, m.PPU, m.APU, m.Serial)
	c.PC = 0x100
	c.SP = 0xFFFE
	return c
}

func TestStep_AdvancesPC(t *testing.T) {
	c := newTestCPU()
	c.writeByte(0x100, 0x00) // NOP
	pc := c.PC
	c.Step()
	if c.PC != pc+1 {
		t.Errorf("expected PC to advance by 1, got %04X -> %04X", pc, c.PC)
	}
}

func TestStep_HaltWaitsForInterrupt(t *testing.T) {
	c := newTestCPU()
	c.writeByte(0x100, 0x76) // HALT
	c.IRQ.IME = true
	c.Step()
	if c.mode != ModeHalt {
		t.Fatalf("expected CPU to enter ModeHalt, got %d", c.mode)
	}
	beforePC := c.PC
	c.Step()
	if c.PC != beforePC {
		t.Errorf("expected PC to stay put while halted, got %04X -> %04X", beforePC, c.PC)
	}
	c.IRQ.Enable = 1 << interrupts.VBlankFlag
	c.IRQ.Request(interrupts.VBlankFlag)
	c.Step()
	if c.mode != ModeNormal {
		t.Errorf("expected a pending interrupt to wake the CPU, mode is still %d", c.mode)
	}
}

func TestStep_UndefinedOpcodeHaltsPermanently(t *testing.T) {
	c := newTestCPU()
	c.writeByte(0x100, 0xD3) // undefined
	c.Step()
	if !c.IsFatal() {
		t.Fatalf("expected CPU to enter ModeFatal after an undefined opcode")
	}
	pc := c.PC
	if n := c.Step(); n != 0 {
		t.Errorf("expected Step to be a no-op once fatal, ticked %d cycles", n)
	}
	if c.PC != pc {
		t.Errorf("expected PC to stay put once fatal, got %04X -> %04X", pc, c.PC)
	}
}

func TestStop_SpeedSwitchOnCGB(t *testing.T) {
	c := newTestCPU()
	if !c.mmu.IsGBC() {
		t.Skip("empty cartridge does not report CGB hardware")
	}
	c.mmu.SetKey(0x01) // arm the speed switch
	before := c.doubleSpeed
	c.stop()
	if c.doubleSpeed == before {
		t.Errorf("expected STOP with an armed speed switch to flip doubleSpeed")
	}
}
