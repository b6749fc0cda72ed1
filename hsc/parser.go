package hsc

import (
	"fmt"
	"io"
	"log"
)

// Small struct for non-fatal warnings
type ParseWarning struct {
	Order   int // Order list position the warning refers to, or -1.
	Message string
}

func (pw ParseWarning) String() string {
	if pw.Order < 0 {
		return pw.Message
	}
	return fmt.Sprintf("order %d: %s", pw.Order, pw.Message)
}

type Parser struct {
	reader io.Reader
	logger *log.Logger

	// Collect any warnings whilst parsing.
	warnings []ParseWarning

	// Whether or not the parser has already been used.
	// Parsing can only be done once per Parser.
	used bool
}

// NewParser creates a new parser to parse a file.
func NewParser(r io.Reader, logger *log.Logger) *Parser {
	if logger == nil {
		logger = log.Default()
	}
	return &Parser{
		reader: r,
		logger: logger,
	}
}

// addWarning adds to the list of warnings encountered when parsing.
func (p *Parser) addWarning(order int, format string, args ...any) {
	p.warnings = append(p.warnings, ParseWarning{
		Order:   order,
		Message: fmt.Sprintf(format, args...),
	})
}

// Warnings returns the warnings collected by Parse.
func (p *Parser) Warnings() []ParseWarning {
	return p.warnings
}

// Parse reads the whole input and decodes it into a Song.
// Problems that the player tolerates at playback time are logged as warnings.
func (p *Parser) Parse() (*Song, error) {
	if p.used {
		return nil, fmt.Errorf("parser already used")
	}
	p.used = true

	// Read at most one byte past the largest valid file, so oversized input is
	// still reported as too long without reading all of it.
	data, err := io.ReadAll(io.LimitReader(p.reader, MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("error reading song: %w", err)
	}

	song, err := Load(data)
	if err != nil {
		return nil, err
	}
	p.logger.Printf("Loaded %d patterns", song.PatternCount())

	p.checkOrders(song)

	if len(p.warnings) > 0 {
		p.logger.Println("Warnings produced while parsing file:")
		for _, warning := range p.warnings {
			p.logger.Println(warning)
		}
	}
	return song, nil
}

// checkOrders reports order entries the player will have to correct.
func (p *Parser) checkOrders(song *Song) {
	for i, b := range song.Orders {
		kind, target := ClassifyOrder(b)
		switch kind {
		case OrderEnd:
			if b != OrderEndMarker {
				p.addWarning(i, "unusual end marker 0x%02x", b)
			}
			return
		case OrderGoto:
			if target >= OrderCount {
				p.addWarning(i, "goto target %d is past the order list, song will end here", target)
			}
		case OrderPattern:
			if target >= song.PatternCount() {
				p.addWarning(i, "pattern %d does not exist, pattern %d will be played instead", target, song.PatternCount()-1)
			}
		}
	}
	p.addWarning(-1, "order list has no end marker")
}
