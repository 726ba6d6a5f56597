package cpu

import "testing"

// TestCBInstructionSet_HLCoverage guards against the generator leaving any
// of the (HL)-targeted CB opcodes as a zero-value Instruction, which would
// panic with a nil Execute func when dispatched.
func TestCBInstructionSet_HLCoverage(t *testing.T) {
	for i := 0; i < 256; i++ {
		if i&0x07 != 6 {
			continue
		}
		instr := InstructionSetCB[i]
		if instr.Execute == nil {
			t.Fatalf("CB opcode 0x%02X ((HL) variant) has no Execute func", i)
		}
	}
}

func TestCBInstructionSet_BitHL(t *testing.T) {
	c := newTestCPU()
	c.HL.SetUint16(0xC000)
	c.writeByte(0xC000, 0x00) // bit 7 clear

	// 0x7E == BIT 7, (HL)
	InstructionSetCB[0x7E].Execute(c, nil)
	if !c.isFlagSet(FlagZero) {
		t.Errorf("expected FlagZero set when bit 7 of (HL) is clear")
	}
}

func TestCBInstructionSet_ResHL(t *testing.T) {
	c := newTestCPU()
	c.HL.SetUint16(0xC000)
	c.writeByte(0xC000, 0xFF)

	// 0x86 == RES 0, (HL)
	InstructionSetCB[0x86].Execute(c, nil)
	if got := c.readByte(0xC000); got != 0xFE {
		t.Errorf("expected (HL) to have bit 0 cleared, got %08b", got)
	}
}

func TestCBInstructionSet_SetHL(t *testing.T) {
	c := newTestCPU()
	c.HL.SetUint16(0xC000)
	c.writeByte(0xC000, 0x00)

	// 0xFE == SET 7, (HL)
	InstructionSetCB[0xFE].Execute(c, nil)
	if got := c.readByte(0xC000); got != 0x80 {
		t.Errorf("expected (HL) to have bit 7 set, got %08b", got)
	}
}

func TestInstructionSet_XorA(t *testing.T) {
	c := newTestCPU()
	c.A = 0x42
	// 0xAF == XOR A
	InstructionSet[0xAF].Execute(c, nil)
	if c.A != 0 {
		t.Errorf("expected XOR A to zero the accumulator, got %02X", c.A)
	}
	if !c.isFlagSet(FlagZero) {
		t.Errorf("expected FlagZero set after XOR A produces 0")
	}
}
