package hsc

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

type yamlInstrument struct {
	Index int    `yaml:"index"`
	Bytes string `yaml:"bytes"` // Corrected record, hex.
	Slide uint8  `yaml:"slide,omitempty"`
}

type yamlPattern struct {
	Index int      `yaml:"index"`
	Rows  []string `yaml:"rows"`
}

type yamlSong struct {
	Patterns    int              `yaml:"patterns"`
	Orders      []string         `yaml:"orders,flow"`
	Instruments []yamlInstrument `yaml:"instruments"`
	Pattern     []yamlPattern    `yaml:"pattern_data"`
}

// formatCell renders a cell as the tracker shows it: "..." for an empty note,
// "iXX" for an instrument select, "k--" for a key-off, and the note number
// otherwise, followed by the effect byte.
func formatCell(c Cell) string {
	var note string
	switch {
	case c.SelectsInstrument():
		note = fmt.Sprintf("i%02X", c.Instrument())
		return note + " .."
	case c.Note == 0:
		note = "..."
	case c.Note-1 == 0x7e:
		note = "k--"
	default:
		note = fmt.Sprintf("%03d", c.Note-1)
	}
	if c.Effect == 0 {
		return note + " .."
	}
	return fmt.Sprintf("%s %02X", note, c.Effect)
}

// MarshalYAML renders the song as a readable YAML document. Only defined
// instruments are listed.
func (s *Song) MarshalYAML() (any, error) {
	doc := yamlSong{Patterns: len(s.Patterns)}

	for _, o := range s.Orders[:s.orderLength()] {
		doc.Orders = append(doc.Orders, formatOrder(o))
	}

	for i, ins := range s.Instruments {
		if ins == (Instrument{}) {
			continue
		}
		raw := []byte{
			ins.CarrierChar, ins.ModulatorChar, ins.CarrierLevel, ins.ModulatorLevel,
			ins.CarrierAttackDecay, ins.ModulatorAttackDecay,
			ins.CarrierSustainRelease, ins.ModulatorSustainRelease,
			ins.FeedbackConnection, ins.CarrierWave, ins.ModulatorWave,
		}
		doc.Instruments = append(doc.Instruments, yamlInstrument{
			Index: i,
			Bytes: fmt.Sprintf("% X", raw),
			Slide: ins.Slide,
		})
	}

	for i := range s.Patterns {
		pat := yamlPattern{Index: i, Rows: make([]string, 0, Rows)}
		for _, row := range s.Patterns[i] {
			cells := make([]string, 0, Channels)
			for _, c := range row {
				cells = append(cells, formatCell(c))
			}
			pat.Rows = append(pat.Rows, strings.Join(cells, " | "))
		}
		doc.Pattern = append(doc.Pattern, pat)
	}

	return doc, nil
}

// ExportYAML returns the YAML rendition of the song.
func (s *Song) ExportYAML() ([]byte, error) {
	out, err := yaml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("cannot marshal song: %w", err)
	}
	return out, nil
}
