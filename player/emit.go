package player

import "github.com/QEStudios/HSCReplayer/opl"

const levelMask = 0x3f // Total level bits; the top two are key scale level.

// Percussion bit in RegRhythm for channels 6, 7 and 8.
var drumBits = [3]uint8{opl.BassDrum, opl.HiHat, opl.Cymbal}

// setInstrument loads an instrument into a channel's operators. The channel's
// key and frequency registers are left alone.
func (p *Player) setInstrument(sink opl.RegisterSink, ch int, index uint8) {
	c := &p.channels[ch]
	c.instrument = index
	ins := &p.song.Instruments[index]
	op := opl.OperatorOffset(ch)

	sink.Write(opl.RegFeedback+uint8(ch), ins.FeedbackConnection)
	sink.Write(opl.RegChar+op+opl.CarrierDelta, ins.CarrierChar)
	sink.Write(opl.RegChar+op, ins.ModulatorChar)
	sink.Write(opl.RegAttack+op+opl.CarrierDelta, ins.CarrierAttackDecay)
	sink.Write(opl.RegAttack+op, ins.ModulatorAttackDecay)
	sink.Write(opl.RegSustain+op+opl.CarrierDelta, ins.CarrierSustainRelease)
	sink.Write(opl.RegSustain+op, ins.ModulatorSustainRelease)
	sink.Write(opl.RegWave+op+opl.CarrierDelta, ins.CarrierWave)
	sink.Write(opl.RegWave+op, ins.ModulatorWave)
	p.setVolume(sink, ch, ins.CarrierLevel&levelMask, ins.ModulatorLevel&levelMask)
}

// setVolume writes both total levels, keeping the instrument's key scale
// levels. The modulator only gets the new level when it is audible
// (additive connection); otherwise its level shapes the timbre and is
// restored from the instrument.
func (p *Player) setVolume(sink opl.RegisterSink, ch int, carrier, modulator uint8) {
	ins := &p.song.Instruments[p.channels[ch].instrument]
	op := opl.OperatorOffset(ch)
	sink.Write(opl.RegLevel+op+opl.CarrierDelta, carrier|ins.CarrierLevel&^levelMask)
	if ins.Additive() {
		sink.Write(opl.RegLevel+op, modulator|ins.ModulatorLevel&^levelMask)
	} else {
		sink.Write(opl.RegLevel+op, ins.ModulatorLevel)
	}
}

func (p *Player) setCarrierLevel(sink opl.RegisterSink, ch int, level uint8) {
	ins := &p.song.Instruments[p.channels[ch].instrument]
	sink.Write(opl.RegLevel+opl.OperatorOffset(ch)+opl.CarrierDelta, level|ins.CarrierLevel&^levelMask)
}

func (p *Player) setModulatorLevel(sink opl.RegisterSink, ch int, level uint8) {
	ins := &p.song.Instruments[p.channels[ch].instrument]
	sink.Write(opl.RegLevel+opl.OperatorOffset(ch), level|ins.ModulatorLevel&^levelMask)
}

// setFreq writes the channel's frequency number. The high bits share
// RegKeyBlock with the block and key-on bit.
func (p *Player) setFreq(sink opl.RegisterSink, ch int) {
	c := &p.channels[ch]
	c.keyBlock = c.keyBlock&^0x03 | uint8(c.freq>>8)&0x03
	sink.Write(opl.RegFreqLow+uint8(ch), uint8(c.freq))
	sink.Write(opl.RegKeyBlock+uint8(ch), c.keyBlock)
}

// triggerDrum restarts the percussion voice of a rhythm channel: its bit is
// cleared, then set again together with the rhythm enable bit.
func (p *Player) triggerDrum(sink opl.RegisterSink, ch int) {
	bit := drumBits[ch-6]
	sink.Write(opl.RegRhythm, p.rhythmBits&^bit)
	p.rhythmBits |= bit | opl.RhythmEnable
	sink.Write(opl.RegRhythm, p.rhythmBits)
}
