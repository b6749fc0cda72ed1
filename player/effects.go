package player

import "github.com/QEStudios/HSCReplayer/opl"

// Effects, by high nibble of the effect byte.
const (
	effectGlobal       = 0x0
	effectSlideDown    = 0x1
	effectSlideUp      = 0x2
	effectPercussion   = 0x5 // Reserved, never implemented by the tracker.
	effectFeedback     = 0x6
	effectCarrierLevel = 0xa
	effectModLevel     = 0xb
	effectBothLevels   = 0xc
	effectJump         = 0xd
	effectSpeed        = 0xf
)

// Operands of effectGlobal.
const (
	globalPatternBreak = 0x1
	globalFadeIn       = 0x3
	globalRhythmOn     = 0x5
	globalRhythmOff    = 0x6
)

// dispatchEffect runs a cell's effect. Effects that are not listed change
// nothing.
func (p *Player) dispatchEffect(sink opl.RegisterSink, ch int, effect uint8, ev noteEvent) {
	op := effect & 0x0f
	c := &p.channels[ch]

	switch effect >> 4 {
	case effectGlobal:
		switch op {
		case globalPatternBreak:
			p.patternBreak = true
		case globalFadeIn:
			p.fadeIn = fadeInStart
		case globalRhythmOn:
			p.rhythm = true
		case globalRhythmOff:
			p.rhythm = false
			p.rhythmBits = 0
			sink.Write(opl.RegRhythm, 0)
		}

	case effectSlideDown, effectSlideUp:
		delta := int(op)
		if effect>>4 == effectSlideDown {
			delta = -delta
		}
		c.freq += delta
		c.slide += delta
		// A note on the same cell writes the frequency itself.
		if ev.kind == noNote {
			p.setFreq(sink, ch)
		}

	case effectPercussion:
		// Left unimplemented, as in the tracker.

	case effectFeedback:
		ins := &p.song.Instruments[c.instrument]
		sink.Write(opl.RegFeedback+uint8(ch), ins.FeedbackConnection&1+op<<1)

	case effectCarrierLevel:
		p.setCarrierLevel(sink, ch, op<<2)

	case effectModLevel:
		p.setModulatorLevel(sink, ch, op<<2)

	case effectBothLevels:
		p.setCarrierLevel(sink, ch, op<<2)
		p.setModulatorLevel(sink, ch, op<<2)

	case effectJump:
		p.jump = int(op)
		p.ends++

	case effectSpeed:
		p.speed = int(op)
		p.delay = p.speed + 1
	}
}
