package player

import (
	"github.com/QEStudios/HSCReplayer/hsc"
	"github.com/QEStudios/HSCReplayer/opl"
)

const keyOffNote = 0x7e // Note byte 0x7f, after the decrement.

type noteKind int

const (
	noNote noteKind = iota
	notePlay
	noteKeyOff
)

// A decoded note, committed to the chip after the cell's effect has run.
type noteEvent struct {
	kind   noteKind
	octave uint8 // Block number, already shifted into place for RegKeyBlock.
}

// playCell handles one channel's cell: instrument selects load an instrument
// and end there, everything else is note, then effect, then the note's writes.
func (p *Player) playCell(sink opl.RegisterSink, ch int, cell hsc.Cell) {
	if cell.SelectsInstrument() {
		p.setInstrument(sink, ch, cell.Instrument())
		return
	}

	var ev noteEvent
	if cell.Note != 0 {
		ev = p.decodeNote(ch, cell.Note-1)
	}

	p.dispatchEffect(sink, ch, cell.Effect, ev)

	if p.fadeIn > 0 {
		p.setVolume(sink, ch, uint8(p.fadeIn*2), uint8(p.fadeIn*2))
	}

	p.commitNote(sink, ch, ev)
}

// decodeNote works out what a (decremented) note does and computes the new
// frequency number for notes that play.
func (p *Player) decodeNote(ch int, note uint8) noteEvent {
	if note == keyOffNote {
		return noteEvent{kind: noteKeyOff}
	}

	c := &p.channels[ch]
	ins := &p.song.Instruments[c.instrument]
	c.freq = noteTable[note%12] + int(ins.Slide) + c.slide
	return noteEvent{
		kind:   notePlay,
		octave: ((note / 12) & 7) << 2,
	}
}

// commitNote writes a decoded note. Playing notes are keyed off first so the
// envelope restarts. In rhythm mode channels 6-8 never get the key bit; the
// matching percussion bit in RegRhythm is retriggered instead.
func (p *Player) commitNote(sink opl.RegisterSink, ch int, ev noteEvent) {
	c := &p.channels[ch]
	switch ev.kind {
	case noteKeyOff:
		c.keyBlock &^= opl.KeyOn
		sink.Write(opl.RegKeyBlock+uint8(ch), c.keyBlock)

	case notePlay:
		drum := p.rhythm && ch >= 6
		if drum {
			c.keyBlock = ev.octave
		} else {
			c.keyBlock = ev.octave | opl.KeyOn
		}
		sink.Write(opl.RegKeyBlock+uint8(ch), 0)
		p.setFreq(sink, ch)
		if drum {
			p.triggerDrum(sink, ch)
		}
	}
}
