package hsc

import "fmt"

// FormatError is returned when a file cannot be an HSC song.
type FormatError struct {
	Size   int    // Length of the rejected data in bytes.
	Reason string // What was wrong with it.
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid HSC file (%d bytes): %s", e.Size, e.Reason)
}

// Load decodes a complete HSC file. The returned song is immutable.
//
// Only the file size is validated. Instrument, pattern and order references
// are checked lazily by the player, which clamps or ignores bad values.
func Load(data []byte) (*Song, error) {
	size := len(data)
	if size < MinSize {
		return nil, &FormatError{Size: size, Reason: fmt.Sprintf("file too short, need at least %d bytes", MinSize)}
	}
	if size > MaxSize {
		return nil, &FormatError{Size: size, Reason: fmt.Sprintf("file too long, at most %d bytes allowed", MaxSize)}
	}
	patternBytes := size - patternsOffset
	if patternBytes%PatternSize != 0 {
		return nil, &FormatError{Size: size, Reason: fmt.Sprintf("pattern data (%d bytes) is not a multiple of %d", patternBytes, PatternSize)}
	}
	// The size bounds above guarantee 1..MaxPatterns.
	patternCount := patternBytes / PatternSize

	song := &Song{Patterns: make([]Pattern, patternCount)}

	for i := range song.Instruments {
		offset := instrumentsOffset + i*InstrumentSize
		song.Instruments[i] = decodeInstrument(data[offset : offset+InstrumentSize])
	}

	copy(song.Orders[:], data[ordersOffset:patternsOffset])

	for p := range song.Patterns {
		block := data[patternsOffset+p*PatternSize : patternsOffset+(p+1)*PatternSize]
		for row := range Rows {
			for ch := range Channels {
				offset := (row*Channels + ch) * CellSize
				song.Patterns[p][row][ch] = Cell{Note: block[offset], Effect: block[offset+1]}
			}
		}
	}

	return song, nil
}

// decodeInstrument applies the load-time corrections to a 12-byte record.
//
// The tracker stored bit 6 of the level bytes where the key scale level's
// upper bit belongs, so bit 6 is folded into bit 7. The slide base lives in
// the high nibble of the last byte.
func decodeInstrument(raw []byte) Instrument {
	return Instrument{
		CarrierChar:             raw[0],
		ModulatorChar:           raw[1],
		CarrierLevel:            fixLevel(raw[2]),
		ModulatorLevel:          fixLevel(raw[3]),
		CarrierAttackDecay:      raw[4],
		ModulatorAttackDecay:    raw[5],
		CarrierSustainRelease:   raw[6],
		ModulatorSustainRelease: raw[7],
		FeedbackConnection:      raw[8],
		CarrierWave:             raw[9],
		ModulatorWave:           raw[10],
		Slide:                   raw[11] >> 4,
	}
}

func fixLevel(b byte) byte {
	return b ^ (b&0x40)<<1
}
