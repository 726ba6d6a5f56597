package apu

import "github.com/ferrite-systems/gbcore/internal/types"

// channel2 is the square wave channel without a sweep unit.
type channel2 struct {
	*volumeChannel

	waveDutyPosition uint8

	// NR21
	duty       uint8
	lengthLoad uint8

	// NR23/24
	frequency uint16

	a *APU
}

func newChannel2(a *APU) *channel2 {
	c := &channel2{a: a}
	c2 := newChannel()
	c2.stepWaveGeneration = func() {
		c.waveDutyPosition = (c.waveDutyPosition + 1) & 0x7
	}
	c2.reloadFrequencyTimer = func() {
		c.frequencyTimer = (2048 - c.frequency) * 4
	}
	c.volumeChannel = newVolumeChannel(c2)
	return c
}

// ReadRegister services NR21-NR24 (0xFF16-0xFF19); 0xFF15 is an
// unused gap register that always reads 0xFF.
func (c *channel2) ReadRegister(addr uint16) uint8 {
	switch addr {
	case types.NR21:
		return c.duty<<6 | 0x3F
	case types.NR22:
		return c.getNRx2()
	case types.NR23:
		return 0xFF // write only
	case types.NR24:
		b := uint8(0)
		if c.lengthCounterEnabled {
			b |= types.Bit6
		}
		return b | 0xBF
	}
	return 0xFF
}

// WriteRegister services NR21-NR24.
func (c *channel2) WriteRegister(addr uint16, value uint8) {
	a := c.a
	switch addr {
	case types.NR21:
		writeEnabled(a, func(v uint8) {
			c.duty = (v & 0xC0) >> 6
			c.lengthLoad = v & 0x3F
			c.lengthCounter = 0x40 - uint(c.lengthLoad)
		})(value)
	case types.NR22:
		writeEnabled(a, c.setNRx2)(value)
	case types.NR23:
		writeEnabled(a, func(v uint8) {
			c.frequency = (c.frequency & 0x700) | uint16(v)
		})(value)
	case types.NR24:
		writeEnabled(a, func(v uint8) {
			c.frequency = (c.frequency & 0x00FF) | (uint16(v&0x7) << 8)
			lengthCounterEnabled := v&types.Bit6 != 0
			if a.firstHalfOfLengthPeriod && !c.lengthCounterEnabled && lengthCounterEnabled && c.lengthCounter > 0 {
				c.lengthCounter--
				c.enabled = c.lengthCounter > 0
			}
			c.lengthCounterEnabled = lengthCounterEnabled
			trigger := v&types.Bit7 != 0
			if trigger {
				c.enabled = c.dacEnabled
				if c.lengthCounter == 0 {
					c.lengthCounter = 0x40
					if c.lengthCounterEnabled && a.firstHalfOfLengthPeriod {
						c.lengthCounter--
					}
				}
				c.initVolumeEnvelope()
			}
		})(value)
	}
}

func (c *channel2) getAmplitude() float32 {
	if c.enabled && c.dacEnabled {
		dacInput := channel2Duty[c.duty][c.waveDutyPosition] * c.currentVolume
		return (float32(dacInput) / 7.5) - 1
	}
	return 0
}

var channel2Duty = [4][8]uint8{
	{0, 0, 0, 0, 0, 0, 0, 1},
	{1, 0, 0, 0, 0, 0, 0, 1},
	{1, 0, 0, 0, 0, 1, 1, 1},
	{0, 1, 1, 1, 1, 1, 1, 0},
}
