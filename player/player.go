// Package player replays HSC songs by emitting OPL2 register writes, one
// Tick at a time. The player keeps no reference to any device: every write
// goes to the sink passed to the call that produced it.
//
// A Player is not safe for concurrent use. The Song it plays is never
// modified and may be shared between players.
package player

import (
	"github.com/QEStudios/HSCReplayer/hsc"
	"github.com/QEStudios/HSCReplayer/opl"
)

const (
	initialSpeed = 2
	fadeInStart  = 31
	noJump       = -1
)

// Frequency numbers of the twelve semitones, starting at C.
var noteTable = [12]int{363, 385, 408, 432, 458, 485, 514, 544, 577, 611, 647, 686}

// Per-channel playback state.
type channel struct {
	instrument uint8
	freq       int   // Frequency number including slides.
	slide      int   // Accumulated manual slide, added to every new note.
	keyBlock   uint8 // Shadow of RegKeyBlock: key-on, block, frequency high bits.
}

// Player holds the playback state of one song.
type Player struct {
	song *hsc.Song

	order   int // Position in the order list.
	pattern int // Pattern the current order resolved to.
	row     int

	speed int // Ticks per row.
	delay int // Ticks left until the next row.

	patternBreak bool
	jump         int // Order to continue at after this row, or noJump.

	rhythm     bool
	rhythmBits uint8 // Shadow of RegRhythm.
	fadeIn     int

	ends    int // Times the song end was reached.
	stopped bool

	channels [hsc.Channels]channel
}

// New creates a player positioned at the start of the song.
func New(song *hsc.Song) *Player {
	p := &Player{song: song}
	p.Restart()
	return p
}

// Restart rewinds the player to the first order with every channel back on
// its default instrument. It does not touch the chip; call Start to load the
// instruments again.
func (p *Player) Restart() {
	p.order = 0
	p.row = 0
	p.speed = initialSpeed
	p.delay = 1 // The first Tick plays row 0.
	p.patternBreak = false
	p.jump = noJump
	p.rhythm = false
	p.rhythmBits = 0
	p.fadeIn = 0
	p.ends = 0
	p.stopped = false

	for i := range p.channels {
		p.channels[i] = channel{instrument: uint8(i)}
	}

	p.resolveOrder()
}

// Start writes the chip initialisation sequence: waveform selection on,
// rhythm off, and instrument n loaded into channel n.
func (p *Player) Start(sink opl.RegisterSink) {
	sink.Write(opl.RegTest, 0x20)
	sink.Write(opl.RegRhythm, 0)
	for ch := range p.channels {
		p.setInstrument(sink, ch, p.channels[ch].instrument)
	}
}

// Stop halts playback. Further ticks are ignored until Restart.
func (p *Player) Stop() {
	p.stopped = true
}

// Silence keys off every channel and the percussion.
func (p *Player) Silence(sink opl.RegisterSink) {
	for ch := range p.channels {
		c := &p.channels[ch]
		c.keyBlock &^= opl.KeyOn
		sink.Write(opl.RegKeyBlock+uint8(ch), c.keyBlock)
	}
	if p.rhythmBits != 0 {
		p.rhythmBits = 0
		sink.Write(opl.RegRhythm, 0)
	}
}

// Order returns the current position in the order list.
func (p *Player) Order() int { return p.order }

// Row returns the row the next row tick will play.
func (p *Player) Row() int { return p.row }

// Pattern returns the pattern the current order resolved to.
func (p *Player) Pattern() int { return p.pattern }

// Speed returns the number of ticks per row.
func (p *Player) Speed() int { return p.speed }

// Rhythm reports whether channels 6 to 8 are in percussion mode.
func (p *Player) Rhythm() bool { return p.rhythm }

// SongEnded reports whether the song has reached its end (or jumped) at least
// once. Playback continues from the start if the host keeps ticking.
func (p *Player) SongEnded() bool { return p.ends > 0 }

// Loops returns how many times the song end has been reached since the last
// Restart.
func (p *Player) Loops() int { return p.ends }

// Stopped reports whether playback has been stopped, either by Stop or
// because the order list holds nothing playable.
func (p *Player) Stopped() bool { return p.stopped }

// ChannelState is a snapshot of one channel.
type ChannelState struct {
	Instrument int
	Frequency  int
	Slide      int
	Block      int
	KeyOn      bool
}

// State is a snapshot of the player, for hosts that display progress.
type State struct {
	Order    int
	Pattern  int
	Row      int
	Speed    int
	Delay    int
	Rhythm   bool
	FadeIn   int
	SongEnd  bool
	Stopped  bool
	Channels [hsc.Channels]ChannelState
}

// State returns a snapshot of the player.
func (p *Player) State() State {
	s := State{
		Order:   p.order,
		Pattern: p.pattern,
		Row:     p.row,
		Speed:   p.speed,
		Delay:   p.delay,
		Rhythm:  p.rhythm,
		FadeIn:  p.fadeIn,
		SongEnd: p.ends > 0,
		Stopped: p.stopped,
	}
	for i, c := range p.channels {
		s.Channels[i] = ChannelState{
			Instrument: int(c.instrument),
			Frequency:  c.freq,
			Slide:      c.slide,
			Block:      int(c.keyBlock>>2) & 7,
			KeyOn:      c.keyBlock&opl.KeyOn != 0,
		}
	}
	return s
}
