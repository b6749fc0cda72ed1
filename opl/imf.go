package opl

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

const (
	DefaultIMFRate  = 560.0 // Hz, the rate most IMF players run at.
	DefaultTickRate = 18.2  // Hz, the PC timer's default interrupt rate.

	imfEntrySize  = 4 // Register, value, 16-bit delay.
	imfHeaderSize = 2 // Type-1 files start with the length of the entry data.
	maxIMFDelay   = math.MaxUint16
)

type IMFOptions struct {
	Rate     float64 // IMF timer rate in Hz (DefaultIMFRate if zero).
	TickRate float64 // Rate the frames were captured at in Hz (DefaultTickRate if zero).

	// Type1 prefixes the data with its length. Type-0 files have no header
	// and play until the end of the file.
	Type1 bool
}

func (o IMFOptions) headerSize() int {
	if o.Type1 {
		return imfHeaderSize
	}
	return 0
}

func (o IMFOptions) withDefaults() IMFOptions {
	if o.Rate <= 0 {
		o.Rate = DefaultIMFRate
	}
	if o.TickRate <= 0 {
		o.TickRate = DefaultTickRate
	}
	return o
}

// ticksToIMF converts a time in player ticks to IMF timer units.
func (o IMFOptions) ticksToIMF(ticks int) int {
	return int(math.Round(float64(ticks) * o.Rate / o.TickRate))
}

// An entry of the IMF stream: a write followed by a delay.
type imfEntry struct {
	register, value uint8
	delay           uint16
}

// imfEntries flattens frames into IMF entries. The stream starts with a dummy
// write to register 0 that carries the leading silence. Delays too large for
// 16 bits are continued on further dummy writes, which change nothing on the chip.
//
// Frame times are converted from the running tick count, so rounding never
// accumulates: every frame starts within half a unit of its exact time.
func imfEntries(leading int, frames []Frame, opts IMFOptions) []imfEntry {
	entries := []imfEntry{{}}
	ticks, units := 0, 0

	addDelay := func(delay int) {
		for {
			last := &entries[len(entries)-1]
			room := maxIMFDelay - int(last.delay)
			if delay <= room {
				last.delay += uint16(delay)
				return
			}
			last.delay = maxIMFDelay
			delay -= room
			entries = append(entries, imfEntry{})
		}
	}

	wait := func(delay int) {
		ticks += delay
		end := opts.ticksToIMF(ticks)
		addDelay(end - units)
		units = end
	}

	wait(leading)
	for _, frame := range frames {
		for _, w := range frame.Writes {
			entries = append(entries, imfEntry{register: w.Register, value: w.Value})
		}
		wait(frame.Delay)
	}
	return entries
}

// IMFSize returns the size in bytes of the compiled IMF file.
func IMFSize(leading int, frames []Frame, opts IMFOptions) int {
	return opts.headerSize() + imfEntrySize*len(imfEntries(leading, frames, opts.withDefaults()))
}

// CompileIMF converts captured frames into an IMF file.
func CompileIMF(leading int, frames []Frame, opts IMFOptions) ([]byte, error) {
	opts = opts.withDefaults()
	entries := imfEntries(leading, frames, opts)

	dataSize := imfEntrySize * len(entries)
	if opts.Type1 && dataSize > math.MaxUint16 {
		return nil, fmt.Errorf("IMF data too long for a type-1 file: %d bytes, at most %d allowed", dataSize, math.MaxUint16)
	}

	totalSize := opts.headerSize() + dataSize
	buffer := bytes.NewBuffer(make([]byte, 0, totalSize))

	var scratch [2]byte
	if opts.Type1 {
		binary.LittleEndian.PutUint16(scratch[:], uint16(dataSize))
		buffer.Write(scratch[:])
	}

	for _, e := range entries {
		buffer.WriteByte(e.register)
		buffer.WriteByte(e.value)
		binary.LittleEndian.PutUint16(scratch[:], e.delay)
		buffer.Write(scratch[:])
	}

	// Sanity check to make sure the output is the expected size.
	if buffer.Len() != IMFSize(leading, frames, opts) {
		return nil, fmt.Errorf("IMF size mismatch: got %d bytes, expected %d", buffer.Len(), totalSize)
	}
	return buffer.Bytes(), nil
}

// CompileIMF compiles everything the recorder captured.
func (r *Recorder) CompileIMF(opts IMFOptions) ([]byte, error) {
	return CompileIMF(r.leading, r.frames, opts)
}
