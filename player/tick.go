package player

import (
	"github.com/QEStudios/HSCReplayer/hsc"
	"github.com/QEStudios/HSCReplayer/opl"
)

// Tick advances playback by one timing unit. Most ticks only count down; when
// the countdown expires the current row is played and the cursor moves on.
func (p *Player) Tick(sink opl.RegisterSink) {
	if p.stopped {
		return
	}

	p.delay--
	if p.delay > 0 {
		return
	}
	p.delay = p.speed

	if p.fadeIn > 0 {
		p.fadeIn--
	}

	p.playRow(sink)
	p.advance()
}

// playRow plays all nine cells of the row under the cursor.
func (p *Player) playRow(sink opl.RegisterSink) {
	row := &p.song.Pattern(p.pattern)[p.row]
	for ch := range hsc.Channels {
		p.playCell(sink, ch, row[ch])
	}
}

// advance moves the cursor past the row just played.
func (p *Player) advance() {
	switch {
	case p.jump != noJump:
		p.enterOrder(p.jump)
	case p.patternBreak:
		p.enterOrder(p.order + 1)
	default:
		p.row++
		if p.row >= hsc.Rows {
			p.enterOrder(p.order + 1)
		}
	}
	p.jump = noJump
	p.patternBreak = false
}

// enterOrder moves the cursor to row 0 of an order position.
func (p *Player) enterOrder(order int) {
	p.row = 0
	p.order = order
	p.resolveOrder()
}

// resolveOrder follows gotos and end markers from the current order position
// until it reaches a pattern. Reaching the end of the list (or an end marker)
// flags the song end and wraps around to the first order. If every position
// has been visited without finding a pattern, the player stops.
func (p *Player) resolveOrder() {
	ended := false
	defer func() {
		if ended {
			p.ends++
		}
	}()

	for range hsc.OrderCount + 1 {
		if p.order >= hsc.OrderCount {
			ended = true
			p.order = 0
		}

		kind, target := hsc.ClassifyOrder(p.song.Orders[p.order])
		switch kind {
		case hsc.OrderPattern:
			p.pattern = p.song.ClampPattern(target)
			return
		case hsc.OrderGoto:
			p.order = target
		case hsc.OrderEnd:
			ended = true
			p.order = 0
		}
	}
	p.stopped = true
}
