package apu

import (
	"fmt"

	"github.com/ferrite-systems/gbcore/internal/types"
)

const (
	sampleRate           = 262144 // 262.144 kHz
	samplePeriod         = 4194304 / sampleRate
	frameSequencerRate   = 512
	frameSequencerPeriod = 4194304 / frameSequencerRate
)

// APU represents the GameBoy's audio processing unit. It comprises 4
// channels: 2 pulse channels, a wave channel and a noise channel.
//
// Channel 1 and 2 are both square channels. They can be used to play
// tones of different frequencies. Channel 3 is an arbitrary waveform
// channel that can be set in RAM. Channel 4 is a noise channel that
// can be used to play white noise.
//
// The APU never talks to an audio device directly: a host wires up
// OnSample to feed generated samples to whatever sink it likes
// (speaker, file, test harness).
type APU struct {
	enabled bool

	chan1 *channel1
	chan2 *channel2
	chan3 *channel3
	chan4 *channel4

	frameSequencerCounter   uint32
	frameSequencerStep      uint8
	frequencyCounter        uint32
	firstHalfOfLengthPeriod bool

	vinLeft, vinRight       bool
	volumeLeft, volumeRight uint8
	leftEnable, rightEnable [4]bool

	Debug struct {
		ChannelEnabled [4]bool
	}

	model types.Model

	// OnSample, if set, is called once per generated stereo sample
	// with amplitudes in [-1, 1].
	OnSample func(left, right float32)
}

// NewAPU returns a new APU with all channels powered down.
func NewAPU() *APU {
	a := &APU{
		frequencyCounter:      16,
		frameSequencerCounter: frameSequencerPeriod,
	}
	a.chan1 = newChannel1(a)
	a.chan2 = newChannel2(a)
	a.chan3 = newChannel3(a)
	a.chan4 = newChannel4(a)
	return a
}

// SetModel configures console-specific quirks for the channels.
func (a *APU) SetModel(model types.Model) {
	a.model = model
}

// Tick advances the APU by one T-cycle: the frame sequencer, each
// channel's wave generator, and (at the sample rate) the mixer.
func (a *APU) Tick() {
	if a.frameSequencerCounter--; a.frameSequencerCounter == 0 {
		a.frameSequencerCounter = frameSequencerPeriod
		a.firstHalfOfLengthPeriod = a.frameSequencerStep&types.Bit0 == 0

		switch a.frameSequencerStep {
		case 0, 4:
			a.chan1.lengthStep()
			a.chan2.lengthStep()
			a.chan3.lengthStep()
			a.chan4.lengthStep()
		case 2, 6:
			a.chan1.lengthStep()
			a.chan2.lengthStep()
			a.chan3.lengthStep()
			a.chan4.lengthStep()
			a.chan1.sweepClock()
		case 7:
			a.chan1.volumeStep()
			a.chan2.volumeStep()
			a.chan4.volumeStep()
		}

		a.frameSequencerStep = (a.frameSequencerStep + 1) & 7
	}

	a.chan1.step()
	a.chan2.step()
	a.chan3.step()
	a.chan4.step()

	if a.frequencyCounter--; a.frequencyCounter == 0 {
		a.frequencyCounter = samplePeriod
		a.mix()
	}
}

func (a *APU) mix() {
	if a.OnSample == nil {
		return
	}

	amplitudes := [4]float32{
		a.chan1.getAmplitude(),
		a.chan2.getAmplitude(),
		a.chan3.getAmplitude(),
		a.chan4.getAmplitude(),
	}

	var left, right float32
	for i, amplitude := range amplitudes {
		if a.leftEnable[i] && !a.Debug.ChannelEnabled[i] {
			left += amplitude
		}
		if a.rightEnable[i] && !a.Debug.ChannelEnabled[i] {
			right += amplitude
		}
	}

	left = ((float32(a.volumeLeft) / 7) * left) / 4
	right = ((float32(a.volumeRight) / 7) * right) / 4

	a.OnSample(left, right)
}

// ReadRegister services the whole NR10-NR52 range (0xFF10-0xFF26) and
// wave RAM (0xFF30-0xFF3F).
func (a *APU) ReadRegister(addr uint16) uint8 {
	switch {
	case addr >= types.NR10 && addr <= types.NR14:
		return a.chan1.ReadRegister(addr)
	case addr == 0xFF15:
		return 0xFF
	case addr >= types.NR21 && addr <= types.NR24:
		return a.chan2.ReadRegister(addr)
	case addr >= types.NR30 && addr <= types.NR34:
		return a.chan3.ReadRegister(addr)
	case addr == 0xFF1F:
		return 0xFF
	case addr >= types.NR41 && addr <= types.NR44:
		return a.chan4.ReadRegister(addr)
	case addr == types.NR50:
		b := a.volumeRight | a.volumeLeft<<4
		if a.vinRight {
			b |= types.Bit3
		}
		if a.vinLeft {
			b |= types.Bit7
		}
		return b
	case addr == types.NR51:
		b := uint8(0)
		for i := 0; i < 4; i++ {
			if a.rightEnable[i] {
				b |= 1 << i
			}
			if a.leftEnable[i] {
				b |= 1 << (i + 4)
			}
		}
		return b
	case addr == types.NR52:
		b := uint8(0)
		if a.enabled {
			b |= types.Bit7
		}
		if a.chan1.enabled {
			b |= types.Bit0
		}
		if a.chan2.enabled {
			b |= types.Bit1
		}
		if a.chan3.enabled {
			b |= types.Bit2
		}
		if a.chan4.enabled {
			b |= types.Bit3
		}
		return b | 0x70
	case addr >= 0xFF30 && addr <= 0xFF3F:
		return a.chan3.readWaveRAM(addr)
	}
	panic(fmt.Sprintf("apu: unhandled register read at 0x%04X", addr))
}

// WriteRegister services the whole NR10-NR52 range and wave RAM.
func (a *APU) WriteRegister(addr uint16, value uint8) {
	switch {
	case addr >= types.NR10 && addr <= types.NR14:
		a.chan1.WriteRegister(addr, value)
	case addr == 0xFF15:
		// unused gap register
	case addr >= types.NR21 && addr <= types.NR24:
		a.chan2.WriteRegister(addr, value)
	case addr >= types.NR30 && addr <= types.NR34:
		a.chan3.WriteRegister(addr, value)
	case addr == 0xFF1F:
		// unused gap register
	case addr >= types.NR41 && addr <= types.NR44:
		a.chan4.WriteRegister(addr, value)
	case addr == types.NR50:
		if a.enabled {
			a.volumeRight = value & 0x7
			a.volumeLeft = (value >> 4) & 0x7
			a.vinRight = value&types.Bit3 != 0
			a.vinLeft = value&types.Bit7 != 0
		}
	case addr == types.NR51:
		if a.enabled {
			a.rightEnable[0] = value&types.Bit0 != 0
			a.rightEnable[1] = value&types.Bit1 != 0
			a.rightEnable[2] = value&types.Bit2 != 0
			a.rightEnable[3] = value&types.Bit3 != 0
			a.leftEnable[0] = value&types.Bit4 != 0
			a.leftEnable[1] = value&types.Bit5 != 0
			a.leftEnable[2] = value&types.Bit6 != 0
			a.leftEnable[3] = value&types.Bit7 != 0
		}
	case addr == types.NR52:
		if value&types.Bit7 == 0 && a.enabled {
			a.powerOff()
		} else if value&types.Bit7 != 0 && !a.enabled {
			a.enabled = true
			a.frameSequencerStep = 0
		}
	case addr >= 0xFF30 && addr <= 0xFF3F:
		a.chan3.writeWaveRAM(addr, value)
	default:
		panic(fmt.Sprintf("apu: unhandled register write at 0x%04X", addr))
	}
}

// powerOff resets every channel's register state, mirroring the
// hardware behaviour of clearing NR10-NR51 when NR52 bit 7 is cleared.
func (a *APU) powerOff() {
	a.chan1.sweepPeriod, a.chan1.negate, a.chan1.shift = 0, false, 0
	a.chan1.duty, a.chan1.lengthLoad, a.chan1.frequency = 0, 0, 0
	a.chan1.startingVolume, a.chan1.envelopeAddMode, a.chan1.period = 0, false, 0
	a.chan1.enabled, a.chan1.dacEnabled = false, false

	a.chan2.duty, a.chan2.lengthLoad, a.chan2.frequency = 0, 0, 0
	a.chan2.startingVolume, a.chan2.envelopeAddMode, a.chan2.period = 0, false, 0
	a.chan2.enabled, a.chan2.dacEnabled = false, false

	a.chan3.lengthLoad, a.chan3.volumeCode, a.chan3.volumeCodeShift = 0, 0, 0
	a.chan3.frequency, a.chan3.enabled, a.chan3.dacEnabled = 0, false, false

	a.chan4.lengthLoad, a.chan4.clockShift, a.chan4.widthMode, a.chan4.divisorCode = 0, 0, 0, 0
	a.chan4.startingVolume, a.chan4.envelopeAddMode, a.chan4.period = 0, false, 0
	a.chan4.enabled, a.chan4.dacEnabled = false, false

	a.volumeLeft, a.volumeRight = 0, 0
	a.vinLeft, a.vinRight = false, false
	a.leftEnable, a.rightEnable = [4]bool{}, [4]bool{}

	a.enabled = false
}

var _ types.Stater = (*APU)(nil)

// Save persists every channel's register state and the frame sequencer.
func (a *APU) Save(s *types.State) {
	s.WriteBool(a.enabled)
	s.Write8(a.frameSequencerStep)
	s.WriteBool(a.vinLeft)
	s.WriteBool(a.vinRight)
	s.Write8(a.volumeLeft)
	s.Write8(a.volumeRight)
	for i := 0; i < 4; i++ {
		s.WriteBool(a.leftEnable[i])
		s.WriteBool(a.rightEnable[i])
	}

	s.Write8(a.chan1.sweepPeriod)
	s.WriteBool(a.chan1.negate)
	s.Write8(a.chan1.shift)
	s.Write8(a.chan1.duty)
	s.Write16(a.chan1.frequency)
	s.Write8(a.chan1.startingVolume)
	s.WriteBool(a.chan1.envelopeAddMode)
	s.Write8(a.chan1.period)
	s.WriteBool(a.chan1.enabled)
	s.WriteBool(a.chan1.dacEnabled)
	s.Write8(uint8(a.chan1.lengthCounter))

	s.Write8(a.chan2.duty)
	s.Write16(a.chan2.frequency)
	s.Write8(a.chan2.startingVolume)
	s.WriteBool(a.chan2.envelopeAddMode)
	s.Write8(a.chan2.period)
	s.WriteBool(a.chan2.enabled)
	s.WriteBool(a.chan2.dacEnabled)
	s.Write8(uint8(a.chan2.lengthCounter))

	s.WriteData(a.chan3.waveRAM[:])
	s.Write8(a.chan3.volumeCode)
	s.Write16(a.chan3.frequency)
	s.WriteBool(a.chan3.enabled)
	s.WriteBool(a.chan3.dacEnabled)
	s.Write8(uint8(a.chan3.lengthCounter))

	s.Write8(a.chan4.clockShift)
	s.Write8(a.chan4.widthMode)
	s.Write8(a.chan4.divisorCode)
	s.Write16(a.chan4.lfsr)
	s.Write8(a.chan4.startingVolume)
	s.WriteBool(a.chan4.envelopeAddMode)
	s.Write8(a.chan4.period)
	s.WriteBool(a.chan4.enabled)
	s.WriteBool(a.chan4.dacEnabled)
	s.Write8(uint8(a.chan4.lengthCounter))
}

// Load restores every channel's register state and the frame sequencer.
func (a *APU) Load(s *types.State) {
	a.enabled = s.ReadBool()
	a.frameSequencerStep = s.Read8()
	a.vinLeft = s.ReadBool()
	a.vinRight = s.ReadBool()
	a.volumeLeft = s.Read8()
	a.volumeRight = s.Read8()
	for i := 0; i < 4; i++ {
		a.leftEnable[i] = s.ReadBool()
		a.rightEnable[i] = s.ReadBool()
	}

	a.chan1.sweepPeriod = s.Read8()
	a.chan1.negate = s.ReadBool()
	a.chan1.shift = s.Read8()
	a.chan1.duty = s.Read8()
	a.chan1.frequency = s.Read16()
	a.chan1.startingVolume = s.Read8()
	a.chan1.envelopeAddMode = s.ReadBool()
	a.chan1.period = s.Read8()
	a.chan1.enabled = s.ReadBool()
	a.chan1.dacEnabled = s.ReadBool()
	a.chan1.lengthCounter = uint(s.Read8())

	a.chan2.duty = s.Read8()
	a.chan2.frequency = s.Read16()
	a.chan2.startingVolume = s.Read8()
	a.chan2.envelopeAddMode = s.ReadBool()
	a.chan2.period = s.Read8()
	a.chan2.enabled = s.ReadBool()
	a.chan2.dacEnabled = s.ReadBool()
	a.chan2.lengthCounter = uint(s.Read8())

	copy(a.chan3.waveRAM[:], s.ReadData())
	a.chan3.volumeCode = s.Read8()
	a.chan3.frequency = s.Read16()
	a.chan3.enabled = s.ReadBool()
	a.chan3.dacEnabled = s.ReadBool()
	a.chan3.lengthCounter = uint(s.Read8())

	a.chan4.clockShift = s.Read8()
	a.chan4.widthMode = s.Read8()
	a.chan4.divisorCode = s.Read8()
	a.chan4.lfsr = s.Read16()
	a.chan4.startingVolume = s.Read8()
	a.chan4.envelopeAddMode = s.ReadBool()
	a.chan4.period = s.Read8()
	a.chan4.enabled = s.ReadBool()
	a.chan4.dacEnabled = s.ReadBool()
	a.chan4.lengthCounter = uint(s.Read8())
}
