package opl

// Register bases of the OPL2. Operator registers are offset by the operator
// slot (see OperatorOffset), channel registers by the channel number.
const (
	RegTest      = 0x01 // Bit 5 enables waveform selection.
	RegCSM       = 0x08 // Bit 7 is the keyboard split (note select).
	RegChar      = 0x20 // Tremolo, vibrato, sustain, KSR, frequency multiplier.
	RegLevel     = 0x40 // Key scale level and total level.
	RegAttack    = 0x60 // Attack rate and decay rate.
	RegSustain   = 0x80 // Sustain level and release rate.
	RegFreqLow   = 0xa0 // Frequency number, low 8 bits.
	RegKeyBlock  = 0xb0 // Key-on (bit 5), block (bits 2-4), frequency number high bits (0-1).
	RegRhythm    = 0xbd // Rhythm mode and percussion key bits.
	RegFeedback  = 0xc0 // Feedback and connection.
	RegWave      = 0xe0 // Waveform select.
	CarrierDelta = 3    // Carrier slot = modulator slot + 3.
)

// Bits of RegKeyBlock and RegRhythm.
const (
	KeyOn        = 0x20
	RhythmEnable = 0x20
	BassDrum     = 0x10
	HiHat        = 0x01
	Cymbal       = 0x02
)

// NumChannels is the number of melodic channels of the OPL2.
const NumChannels = 9

// Modulator operator offsets for each channel.
var operatorOffsets = [NumChannels]uint8{0x00, 0x01, 0x02, 0x08, 0x09, 0x0a, 0x10, 0x11, 0x12}

// OperatorOffset returns the modulator slot offset of a channel. Add
// CarrierDelta for the carrier.
func OperatorOffset(channel int) uint8 {
	return operatorOffsets[channel]
}

// A RegisterSink receives register writes in the order they must reach the chip.
type RegisterSink interface {
	Write(register, value uint8)
}

// SinkFunc adapts a plain function to a RegisterSink.
type SinkFunc func(register, value uint8)

func (f SinkFunc) Write(register, value uint8) {
	f(register, value)
}

// Discard is a sink that drops every write.
var Discard RegisterSink = SinkFunc(func(uint8, uint8) {})

// RegisterChannel returns the channel a register belongs to, or -1 for the
// global registers (and unused addresses).
func RegisterChannel(register uint8) int {
	switch register & 0xf0 {
	case RegFreqLow, RegKeyBlock, RegFeedback:
		if n := int(register & 0x0f); n < NumChannels {
			return n
		}
		return -1
	}

	switch register & 0xe0 {
	case RegChar, RegLevel, RegAttack, RegSustain, RegWave:
		slot := int(register & 0x1f)
		if slot > 0x15 {
			return -1
		}
		// Slots come in groups of eight: three modulators, three carriers, two unused.
		within := slot % 8
		if within > 5 {
			return -1
		}
		return (slot/8)*3 + within%3
	}
	return -1
}
