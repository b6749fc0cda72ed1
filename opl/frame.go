package opl

import (
	"fmt"
	"strings"
)

// A single register write.
type Write struct {
	Register uint8
	Value    uint8
}

func (w Write) String() string {
	return fmt.Sprintf("%02X <- %02X", w.Register, w.Value)
}

// A Frame holds the writes issued during one tick, followed by the number of
// ticks to wait before the next frame.
type Frame struct {
	Writes []Write
	Delay  int
}

// Recorder is a RegisterSink that captures writes tick by tick.
// Call EndTick after every tick of the player.
type Recorder struct {
	frames  []Frame
	pending []Write
	leading int // Ticks that passed before the first write.
}

// Write implements RegisterSink.
func (r *Recorder) Write(register, value uint8) {
	r.pending = append(r.pending, Write{Register: register, Value: value})
}

// EndTick closes the current tick. A tick without writes only extends the
// delay of the previous frame.
func (r *Recorder) EndTick() {
	if len(r.pending) == 0 {
		if len(r.frames) == 0 {
			r.leading++
		} else {
			r.frames[len(r.frames)-1].Delay++
		}
		return
	}
	r.frames = append(r.frames, Frame{Writes: r.pending, Delay: 1})
	r.pending = nil
}

// Frames returns the closed frames. Writes issued since the last EndTick are
// not included.
func (r *Recorder) Frames() []Frame {
	return r.frames
}

// LeadingDelay returns the number of silent ticks before the first frame.
func (r *Recorder) LeadingDelay() int {
	return r.leading
}

// Writes returns every recorded write in order, including pending ones.
func (r *Recorder) Writes() []Write {
	var all []Write
	for _, f := range r.frames {
		all = append(all, f.Writes...)
	}
	return append(all, r.pending...)
}

// Reset discards everything recorded so far.
func (r *Recorder) Reset() {
	r.frames = nil
	r.pending = nil
	r.leading = 0
}

// formatWritesByChannel formats writes into a table with one column per
// channel plus a final column for global registers.
// indent: number of spaces to indent the table
func formatWritesByChannel(writes []Write, indent int) string {
	numColumns := NumChannels + 1

	// Group by channel
	cols := make([][]Write, numColumns)
	for _, w := range writes {
		ch := RegisterChannel(w.Register)
		if ch < 0 {
			ch = NumChannels
		}
		cols[ch] = append(cols[ch], w)
	}

	// Find max rows
	maxRows := 0
	for _, col := range cols {
		if len(col) > maxRows {
			maxRows = len(col)
		}
	}

	header := func(i int) string {
		if i == NumChannels {
			return "Global"
		}
		return fmt.Sprintf("Ch %d", i)
	}

	// Every cell is the same width ("XX <- XX"), so only the header matters.
	widths := make([]int, numColumns)
	for i := range numColumns {
		widths[i] = max(len(header(i)), len(Write{}.String()))
	}

	padRight := func(s string, w int) string {
		if len(s) >= w {
			return s
		}
		return s + strings.Repeat(" ", w-len(s))
	}

	var b strings.Builder

	separator := func() {
		b.WriteString(strings.Repeat(" ", indent))
		for i := range numColumns {
			b.WriteString("+")
			b.WriteString(strings.Repeat("-", widths[i]+2)) // +2 for the space padding either side
		}
		b.WriteString("+\n")
	}

	separator()

	// Header row
	b.WriteString(strings.Repeat(" ", indent))
	for i := range numColumns {
		b.WriteString("| ")
		b.WriteString(padRight(header(i), widths[i]))
		b.WriteString(" ")
	}
	b.WriteString("|\n")

	separator()

	for row := range maxRows {
		b.WriteString(strings.Repeat(" ", indent))
		for ch := range numColumns {
			cell := ""
			if row < len(cols[ch]) {
				cell = cols[ch][row].String()
			}
			b.WriteString("| ")
			b.WriteString(padRight(cell, widths[ch]))
			b.WriteString(" ")
		}
		b.WriteString("|\n")
	}

	separator()

	return b.String()
}

// Pretty-print
func (r *Recorder) String() string {
	var b strings.Builder
	b.WriteString("OPL register capture:\n")
	if r.leading > 0 {
		fmt.Fprintf(&b, "- Leading silence: %d ticks\n", r.leading)
	}

	tick := r.leading
	for i, frame := range r.frames {
		fmt.Fprintf(&b, "\n  - Frame #%d (tick %d):\n", i, tick)
		b.WriteString(formatWritesByChannel(frame.Writes, 6))
		fmt.Fprintf(&b, "    - Delay: %d tick", frame.Delay)
		if frame.Delay != 1 {
			b.WriteString("s") // Pluralise the word "tick" if needed.
		}
		b.WriteString("\n")
		tick += frame.Delay
	}

	fmt.Fprintf(&b, "[Total: %d frames, %d ticks]\n", len(r.frames), tick)
	return b.String()
}
