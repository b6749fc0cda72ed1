package hsc

import (
	"fmt"
	"strings"
)

const (
	InstrumentCount = 128 // Number of instruments in the bank.
	InstrumentSize  = 12  // Size in bytes of a single instrument record.
	OrderCount      = 51  // Number of entries in the order list.
	Rows            = 64  // Rows in every pattern.
	Channels        = 9   // OPL2 melodic channels.
	MaxPatterns     = 50  // Maximum number of patterns a song can hold.

	CellSize    = 2                          // Note byte, effect byte.
	PatternSize = Rows * Channels * CellSize // 1152 bytes.

	instrumentsOffset = 0
	ordersOffset      = InstrumentCount * InstrumentSize // 1536
	patternsOffset    = ordersOffset + OrderCount        // 1587

	MinSize = patternsOffset + PatternSize             // Smallest valid file, holding one pattern.
	MaxSize = patternsOffset + MaxPatterns*PatternSize // Largest valid file, holding fifty patterns.
)

// A single two-operator FM voice, laid out the way the file stores it.
// Each field is written verbatim to the OPL register named in its comment,
// except for Slide which is added to every note's frequency number.
type Instrument struct {
	CarrierChar             uint8 // 0x23: tremolo, vibrato, sustain, KSR, multiplier
	ModulatorChar           uint8 // 0x20
	CarrierLevel            uint8 // 0x43: key scale level (bits 6-7), total level (bits 0-5)
	ModulatorLevel          uint8 // 0x40
	CarrierAttackDecay      uint8 // 0x63
	ModulatorAttackDecay    uint8 // 0x60
	CarrierSustainRelease   uint8 // 0x83
	ModulatorSustainRelease uint8 // 0x80
	FeedbackConnection      uint8 // 0xC0: feedback (bits 1-3), connection (bit 0)
	CarrierWave             uint8 // 0xE3
	ModulatorWave           uint8 // 0xE0
	Slide                   uint8 // Pitch slide base, 0-15.
}

// Additive reports whether both operators produce sound (connection bit set),
// in which case the modulator's level is audible too.
func (ins *Instrument) Additive() bool {
	return ins.FeedbackConnection&1 != 0
}

// A single pattern cell.
type Cell struct {
	Note   uint8 // 0 = nothing, bit 7 = instrument select, otherwise note+1.
	Effect uint8 // High nibble = effect, low nibble = operand. Instrument index for instrument selects.
}

// SelectsInstrument reports whether the cell is an instrument select.
func (c Cell) SelectsInstrument() bool { return c.Note&0x80 != 0 }

// Instrument returns the instrument an instrument select loads. Indices past
// the bank are clamped to the last instrument.
func (c Cell) Instrument() uint8 {
	return min(c.Effect, InstrumentCount-1)
}

// A pattern, stored row-major.
type Pattern [Rows][Channels]Cell

// A loaded HSC song. A Song is never modified after Load and may be shared
// between any number of players.
type Song struct {
	Instruments [InstrumentCount]Instrument
	Orders      [OrderCount]byte
	Patterns    []Pattern
}

// PatternCount returns the number of patterns stored in the file.
func (s *Song) PatternCount() int {
	return len(s.Patterns)
}

// Pattern returns the pattern with the given index, clamping the index to the
// patterns that actually exist.
func (s *Song) Pattern(index int) *Pattern {
	return &s.Patterns[s.ClampPattern(index)]
}

// ClampPattern clamps a pattern index to [0, PatternCount-1].
func (s *Song) ClampPattern(index int) int {
	if index < 0 {
		return 0
	}
	if index >= len(s.Patterns) {
		return len(s.Patterns) - 1
	}
	return index
}

type OrderKind int

const (
	OrderPattern OrderKind = iota // Play the pattern with the given index.
	OrderGoto                     // Continue at another position of the order list.
	OrderEnd                      // The song ends here.
)

func (k OrderKind) String() string {
	switch k {
	case OrderPattern:
		return "pattern"
	case OrderGoto:
		return "goto"
	case OrderEnd:
		return "end"
	default:
		return fmt.Sprintf("OrderKind(%d)", int(k))
	}
}

const (
	orderGotoFirst = 0x80
	orderGotoLast  = 0xb1
	OrderEndMarker = 0xff
)

// ClassifyOrder interprets an order list byte. For OrderPattern the target is
// the pattern index, for OrderGoto the order position to continue at.
// 0xff ends the song, and so does any other byte above the goto range.
func ClassifyOrder(b byte) (OrderKind, int) {
	switch {
	case b > orderGotoLast:
		return OrderEnd, 0
	case b >= orderGotoFirst:
		return OrderGoto, int(b & 0x7f)
	default:
		return OrderPattern, int(b)
	}
}

// formatOrder renders an order entry the way it is printed in summaries and exports.
func formatOrder(b byte) string {
	kind, target := ClassifyOrder(b)
	switch kind {
	case OrderGoto:
		return fmt.Sprintf("goto %d", target)
	case OrderEnd:
		return "end"
	default:
		return fmt.Sprintf("%d", target)
	}
}

// orderLength returns the number of order entries up to and including the first end marker.
func (s *Song) orderLength() int {
	for i, b := range s.Orders {
		if kind, _ := ClassifyOrder(b); kind == OrderEnd {
			return i + 1
		}
	}
	return OrderCount
}

// Pretty-print
func (s *Song) String() string {
	var b strings.Builder
	b.WriteString("HSC Song:\n")
	fmt.Fprintf(&b, "- Patterns: %d\n", len(s.Patterns))

	used := 0
	for i := range s.Instruments {
		if s.Instruments[i] != (Instrument{}) {
			used++
		}
	}
	fmt.Fprintf(&b, "- Instruments: %d of %d defined\n", used, InstrumentCount)

	b.WriteString("- Orders:")
	for _, o := range s.Orders[:s.orderLength()] {
		fmt.Fprintf(&b, " [%s]", formatOrder(o))
	}
	b.WriteString("\n")
	return b.String()
}
