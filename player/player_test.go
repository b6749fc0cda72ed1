package player

import (
	"reflect"
	"testing"

	"github.com/QEStudios/HSCReplayer/hsc"
	"github.com/QEStudios/HSCReplayer/opl"
	"github.com/davecgh/go-spew/spew"
)

// newSong returns a song with the given number of empty patterns and order
// list. Unlisted order entries are end markers.
func newSong(patterns int, orders ...byte) *hsc.Song {
	song := &hsc.Song{Patterns: make([]hsc.Pattern, patterns)}
	for i := range song.Orders {
		song.Orders[i] = hsc.OrderEndMarker
	}
	copy(song.Orders[:], orders)
	return song
}

// loadSong builds the raw file for a song with one pattern and runs it through the loader.
func loadSong(t *testing.T, cells map[[2]int]hsc.Cell, orders ...byte) *hsc.Song {
	t.Helper()
	data := make([]byte, hsc.MinSize)
	orderStart := hsc.InstrumentCount * hsc.InstrumentSize
	copy(data[orderStart:], orders)
	patternStart := orderStart + hsc.OrderCount
	for pos, c := range cells {
		offset := patternStart + (pos[0]*hsc.Channels+pos[1])*hsc.CellSize
		data[offset] = c.Note
		data[offset+1] = c.Effect
	}
	song, err := hsc.Load(data)
	if err != nil {
		t.Fatal(err)
	}
	return song
}

// tickUntilRow ticks until a row has been played and returns the writes of that tick.
func tickUntilRow(t *testing.T, p *Player) []opl.Write {
	t.Helper()
	for range 32 {
		rowTick := p.delay <= 1
		var rec opl.Recorder
		p.Tick(&rec)
		if rowTick {
			return rec.Writes()
		}
	}
	t.Fatalf("no row played within 32 ticks")
	return nil
}

func checkWrites(t *testing.T, got, want []opl.Write) {
	t.Helper()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("writes:\n got: %s\nwant: %s", spew.Sdump(got), spew.Sdump(want))
	}
}

func TestEndToEnd(t *testing.T) {
	song := loadSong(t, map[[2]int]hsc.Cell{
		{0, 0}: {Note: 0x3d, Effect: 0x00},
	}, 0, 0xff)

	p := New(song)
	var rec opl.Recorder
	p.Tick(&rec)

	// Note 0x3c: C, octave 5, default instrument 0 (no slide).
	checkWrites(t, rec.Writes(), []opl.Write{
		{Register: 0xb0, Value: 0x00},
		{Register: 0xa0, Value: 0x6b}, // 363 & 0xff
		{Register: 0xb0, Value: 0x35}, // key on | block 5 | 363 >> 8
	})

	if p.SongEnded() {
		t.Fatalf("song ended after the first row")
	}

	// Speed 2: rows 1 to 63 take two ticks each.
	for range 62 * 2 {
		p.Tick(&rec)
		if p.SongEnded() {
			t.Fatalf("song ended early, at order %d row %d", p.Order(), p.Row())
		}
	}
	if p.Row() != 63 {
		t.Fatalf("expected to be at row 63, got %d", p.Row())
	}
	p.Tick(&rec)
	if p.SongEnded() {
		t.Fatalf("song ended before row 63 was played")
	}
	p.Tick(&rec)
	if !p.SongEnded() {
		t.Fatalf("song did not end after order 0")
	}
	if p.Order() != 0 || p.Row() != 0 {
		t.Errorf("expected to wrap to order 0 row 0, got order %d row %d", p.Order(), p.Row())
	}
	if len(rec.Writes()) != 3 {
		t.Errorf("empty rows produced writes: %s", spew.Sdump(rec.Writes()))
	}

	// The second pass takes 64 rows of two ticks each.
	for range 127 {
		p.Tick(&rec)
	}
	if p.Loops() != 1 {
		t.Fatalf("second pass ended early: %d loops", p.Loops())
	}
	p.Tick(&rec)
	if p.Loops() != 2 {
		t.Errorf("expected 2 loops, got %d", p.Loops())
	}
}

func TestStart(t *testing.T) {
	song := newSong(1, 0)
	song.Instruments[2] = hsc.Instrument{
		CarrierChar: 0x01, ModulatorChar: 0x02, CarrierLevel: 0x85, ModulatorLevel: 0x46,
		CarrierAttackDecay: 0x03, ModulatorAttackDecay: 0x04,
		CarrierSustainRelease: 0x05, ModulatorSustainRelease: 0x06,
		FeedbackConnection: 0x0e, CarrierWave: 0x01, ModulatorWave: 0x02,
	}

	var rec opl.Recorder
	p := New(song)
	p.Start(&rec)
	writes := rec.Writes()

	checkWrites(t, writes[:2], []opl.Write{{Register: 0x01, Value: 0x20}, {Register: 0xbd, Value: 0x00}})
	// 2 globals, then 11 writes per channel.
	if len(writes) != 2+9*11 {
		t.Fatalf("expected %d writes, got %d", 2+9*11, len(writes))
	}
	checkWrites(t, writes[2+2*11:2+3*11], []opl.Write{
		{Register: 0xc2, Value: 0x0e},
		{Register: 0x25, Value: 0x01}, {Register: 0x22, Value: 0x02},
		{Register: 0x65, Value: 0x03}, {Register: 0x62, Value: 0x04},
		{Register: 0x85, Value: 0x05}, {Register: 0x82, Value: 0x06},
		{Register: 0xe5, Value: 0x01}, {Register: 0xe2, Value: 0x02},
		{Register: 0x45, Value: 0x85}, // carrier level with KSL
		{Register: 0x42, Value: 0x46}, // not additive: modulator restored verbatim
	})
	for _, w := range writes {
		if w.Register&0xf0 == 0xb0 && w.Register != 0xbd {
			t.Errorf("Start wrote a key register: %v", w)
		}
	}
}

func TestOrderResolution(t *testing.T) {
	t.Run("end marker", func(t *testing.T) {
		p := New(newSong(1, 0xff))
		if !p.SongEnded() {
			t.Errorf("order 0xff should end the song")
		}
		if !p.Stopped() {
			t.Errorf("a song without patterns should stop")
		}
		var rec opl.Recorder
		p.Tick(&rec)
		if len(rec.Writes()) != 0 {
			t.Errorf("stopped player wrote %v", rec.Writes())
		}
	})

	t.Run("goto", func(t *testing.T) {
		song := newSong(6, 0x85, 1, 2, 3, 4, 5)
		p := New(song)
		if p.Order() != 5 || p.Pattern() != 5 {
			t.Errorf("0x85: got order %d pattern %d, want order 5 pattern 5", p.Order(), p.Pattern())
		}
		if p.SongEnded() || p.Stopped() {
			t.Errorf("goto must not end the song")
		}
	})

	t.Run("high byte is an end marker", func(t *testing.T) {
		song := newSong(2, 1, 0xb5, 0)
		song.Patterns[1][0][0] = hsc.Cell{Effect: 0x01} // pattern break
		p := New(song)
		tickUntilRow(t, p)
		if !p.SongEnded() {
			t.Errorf("0xb5 should end the song")
		}
		if p.Order() != 0 || p.Pattern() != 1 {
			t.Errorf("expected to wrap to order 0 (pattern 1), got order %d pattern %d", p.Order(), p.Pattern())
		}
	})

	t.Run("clamped pattern", func(t *testing.T) {
		p := New(newSong(2, 0x31))
		if p.Pattern() != 1 {
			t.Errorf("pattern 49 should be clamped to 1, got %d", p.Pattern())
		}
	})

	t.Run("goto loop", func(t *testing.T) {
		p := New(newSong(1, 0x81, 0x80))
		if !p.Stopped() {
			t.Errorf("a goto cycle should stop the player")
		}
	})

	t.Run("past the order list", func(t *testing.T) {
		orders := make([]byte, hsc.OrderCount)
		orders[hsc.OrderCount-1] = 1
		song := newSong(2, orders...)
		song.Patterns[1][0][0] = hsc.Cell{Effect: 0x01}
		p := New(song)
		p.enterOrder(hsc.OrderCount - 1)
		tickUntilRow(t, p)
		if !p.SongEnded() || p.Order() != 0 {
			t.Errorf("moving past order 50 should end the song and wrap, got order %d ended %v", p.Order(), p.SongEnded())
		}
	})
}

func TestPatternBreakAndJump(t *testing.T) {
	song := newSong(3, 0, 1, 2, 0xff)
	song.Patterns[0][0][4] = hsc.Cell{Effect: 0x01}
	song.Patterns[1][0][0] = hsc.Cell{Effect: 0xd0}

	p := New(song)
	tickUntilRow(t, p)
	if p.Order() != 1 || p.Row() != 0 || p.Pattern() != 1 {
		t.Fatalf("pattern break: got order %d row %d pattern %d", p.Order(), p.Row(), p.Pattern())
	}
	if p.SongEnded() {
		t.Errorf("pattern break must not end the song")
	}

	tickUntilRow(t, p)
	if p.Order() != 0 || p.Row() != 0 {
		t.Errorf("position jump: got order %d row %d, want order 0 row 0", p.Order(), p.Row())
	}
	if !p.SongEnded() {
		t.Errorf("position jump should flag the song end")
	}
}

func TestSpeed(t *testing.T) {
	song := newSong(1, 0)
	song.Patterns[0][1][3] = hsc.Cell{Effect: 0xf6}

	p := New(song)
	tickUntilRow(t, p) // row 0
	tickUntilRow(t, p) // row 1 sets the speed
	if p.Speed() != 6 {
		t.Fatalf("speed: got %d, want 6", p.Speed())
	}

	ticks := 0
	for p.Row() == 2 {
		p.Tick(opl.Discard)
		ticks++
	}
	if ticks != 7 {
		t.Errorf("first row after F006 took %d ticks, want 7", ticks)
	}

	ticks = 0
	for p.Row() == 3 {
		p.Tick(opl.Discard)
		ticks++
	}
	if ticks != 6 {
		t.Errorf("following rows took %d ticks, want 6", ticks)
	}
}

func TestKeyOff(t *testing.T) {
	song := newSong(1, 0)
	song.Patterns[0][0][2] = hsc.Cell{Note: 0x3d}
	song.Patterns[0][1][2] = hsc.Cell{Note: 0x7f}

	p := New(song)
	tickUntilRow(t, p)
	freq := p.State().Channels[2].Frequency
	if !p.State().Channels[2].KeyOn {
		t.Fatalf("note did not key on")
	}

	writes := tickUntilRow(t, p)
	checkWrites(t, writes, []opl.Write{{Register: 0xb2, Value: 0x15}})

	ch := p.State().Channels[2]
	if ch.KeyOn {
		t.Errorf("key-off did not clear the key bit")
	}
	if ch.Frequency != freq || ch.Block != 5 {
		t.Errorf("key-off changed the pitch: frequency %d block %d", ch.Frequency, ch.Block)
	}
}

func TestInstrumentSelect(t *testing.T) {
	tests := []struct {
		name   string
		effect uint8
		want   int
	}{
		{"in range", 0x05, 5},
		{"last instrument", 0x7f, 127},
		{"past the bank", 0x85, 127},
		{"highest byte", 0xff, 127},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			song := newSong(1, 0)
			song.Instruments[tt.want].Slide = 4
			song.Patterns[0][0][1] = hsc.Cell{Note: 0x80, Effect: tt.effect}
			song.Patterns[0][1][1] = hsc.Cell{Note: 0x01}

			p := New(song)
			writes := tickUntilRow(t, p)
			if got := p.State().Channels[1].Instrument; got != tt.want {
				t.Fatalf("effect %#02x: instrument %d, want %d", tt.effect, got, tt.want)
			}
			if len(writes) != 11 {
				t.Errorf("instrument select should load 11 registers, got %d", len(writes))
			}
			for _, w := range writes {
				if w.Register&0xf0 == 0xb0 {
					t.Errorf("instrument select touched a key register: %v", w)
				}
			}

			tickUntilRow(t, p)
			if got := p.State().Channels[1].Frequency; got != noteTable[0]+4 {
				t.Errorf("frequency should include the instrument slide: got %d", got)
			}
		})
	}
}

func TestSlides(t *testing.T) {
	song := newSong(1, 0)
	song.Patterns[0][0][0] = hsc.Cell{Note: 0x0a}               // A, octave 0
	song.Patterns[0][1][0] = hsc.Cell{Effect: 0x23}             // up 3
	song.Patterns[0][2][0] = hsc.Cell{Effect: 0x15}             // down 5
	song.Patterns[0][3][0] = hsc.Cell{Note: 0x0a, Effect: 0x21} // new note keeps the slide, then up 1

	p := New(song)
	tickUntilRow(t, p)
	base := noteTable[9]

	writes := tickUntilRow(t, p)
	checkWrites(t, writes, []opl.Write{{Register: 0xa0, Value: uint8(base + 3)}, {Register: 0xb0, Value: 0x22}})

	tickUntilRow(t, p)
	if ch := p.State().Channels[0]; ch.Frequency != base-2 || ch.Slide != -2 {
		t.Errorf("after slide down: frequency %d slide %d", ch.Frequency, ch.Slide)
	}

	writes = tickUntilRow(t, p)
	checkWrites(t, writes, []opl.Write{{Register: 0xb0, Value: 0x00}, {Register: 0xa0, Value: uint8(base - 1)}, {Register: 0xb0, Value: 0x22}})
	if ch := p.State().Channels[0]; ch.Slide != -1 {
		t.Errorf("slide accumulator: got %d, want -1", ch.Slide)
	}
}

func TestRhythm(t *testing.T) {
	song := newSong(1, 0)
	song.Patterns[0][0][0] = hsc.Cell{Effect: 0x05}
	song.Patterns[0][0][6] = hsc.Cell{Note: 0x19} // bass drum
	song.Patterns[0][0][7] = hsc.Cell{Note: 0x19} // hi-hat
	song.Patterns[0][1][0] = hsc.Cell{Effect: 0x06}
	song.Patterns[0][2][6] = hsc.Cell{Note: 0x19}

	p := New(song)
	writes := tickUntilRow(t, p)
	if !p.Rhythm() {
		t.Fatalf("rhythm mode not enabled")
	}

	var rhythm []uint8
	for _, w := range writes {
		switch {
		case w.Register == opl.RegRhythm:
			rhythm = append(rhythm, w.Value)
		case w.Register == 0xb6 || w.Register == 0xb7:
			if w.Value&opl.KeyOn != 0 {
				t.Errorf("rhythm channel got a key-on: %v", w)
			}
		}
	}
	if !reflect.DeepEqual(rhythm, []uint8{0x00, 0x30, 0x30, 0x31}) {
		t.Errorf("rhythm register writes: got % x", rhythm)
	}

	writes = tickUntilRow(t, p)
	if p.Rhythm() {
		t.Fatalf("rhythm mode not disabled")
	}
	checkWrites(t, writes, []opl.Write{{Register: 0xbd, Value: 0x00}})

	writes = tickUntilRow(t, p)
	last := writes[len(writes)-1]
	if last.Register != 0xb6 || last.Value&opl.KeyOn == 0 {
		t.Errorf("channel 6 should be melodic again, last write %v", last)
	}
}

func TestEffectWrites(t *testing.T) {
	song := newSong(1, 0)
	song.Instruments[3] = hsc.Instrument{CarrierLevel: 0x80, ModulatorLevel: 0x40, FeedbackConnection: 0x01}
	song.Patterns[0][0][4] = hsc.Cell{Note: 0x80, Effect: 0x03}

	tests := []struct {
		name   string
		effect uint8
		want   []opl.Write
	}{
		{"feedback", 0x65, []opl.Write{{Register: 0xc4, Value: 0x0b}}},
		{"carrier level", 0xa3, []opl.Write{{Register: 0x4c, Value: 0x8c}}},
		{"modulator level", 0xbf, []opl.Write{{Register: 0x49, Value: 0x7c}}},
		{"both levels", 0xc1, []opl.Write{{Register: 0x4c, Value: 0x84}, {Register: 0x49, Value: 0x44}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(song)
			tickUntilRow(t, p) // loads instrument 3 into channel 4
			var rec opl.Recorder
			p.dispatchEffect(&rec, 4, tt.effect, noteEvent{})
			checkWrites(t, rec.Writes(), tt.want)
		})
	}
}

func TestEffectBeforeNote(t *testing.T) {
	song := newSong(1, 0)
	song.Patterns[0][0][0] = hsc.Cell{Note: 0x3d, Effect: 0x62}

	p := New(song)
	writes := tickUntilRow(t, p)
	checkWrites(t, writes, []opl.Write{
		{Register: 0xc0, Value: 0x04},
		{Register: 0xb0, Value: 0x00},
		{Register: 0xa0, Value: 0x6b},
		{Register: 0xb0, Value: 0x35},
	})
}

func TestUnknownEffectsChangeNothing(t *testing.T) {
	song := newSong(1, 0)
	song.Patterns[0][0][0] = hsc.Cell{Note: 0x3d}

	var effects []uint8
	for _, hi := range []uint8{0x3, 0x4, 0x5, 0x7, 0x8, 0x9, 0xe} {
		for op := range uint8(16) {
			effects = append(effects, hi<<4|op)
		}
	}
	for _, op := range []uint8{0x0, 0x2, 0x4, 0x7, 0x8, 0xf} {
		effects = append(effects, op)
	}

	p := New(song)
	tickUntilRow(t, p)

	for _, effect := range effects {
		before := *p
		var rec opl.Recorder
		p.dispatchEffect(&rec, 0, effect, noteEvent{})
		if *p != before {
			t.Errorf("effect %#02x changed the player:\n got: %s\nwant: %s", effect, spew.Sdump(p.State()), spew.Sdump(before.State()))
			*p = before
		}
		if len(rec.Writes()) != 0 {
			t.Errorf("effect %#02x wrote %v", effect, rec.Writes())
		}
	}
}

func TestFadeIn(t *testing.T) {
	song := newSong(1, 0)
	song.Patterns[0][0][0] = hsc.Cell{Effect: 0x03}

	p := New(song)
	tickUntilRow(t, p)
	if p.State().FadeIn != fadeInStart {
		t.Fatalf("fade-in not started")
	}

	writes := tickUntilRow(t, p)
	if p.State().FadeIn != fadeInStart-1 {
		t.Errorf("fade-in counter: got %d", p.State().FadeIn)
	}
	// Two level writes for each of the nine channels.
	if len(writes) != 18 {
		t.Fatalf("expected 18 volume writes, got %d", len(writes))
	}
	if writes[0] != (opl.Write{Register: 0x43, Value: (fadeInStart - 1) * 2}) {
		t.Errorf("carrier volume: got %v", writes[0])
	}
}

func TestStopAndRestart(t *testing.T) {
	song := newSong(1, 0)
	song.Patterns[0][0][0] = hsc.Cell{Note: 0x3d, Effect: 0x05}

	p := New(song)
	tickUntilRow(t, p)
	tickUntilRow(t, p)

	p.Stop()
	var rec opl.Recorder
	for range 10 {
		p.Tick(&rec)
	}
	if len(rec.Writes()) != 0 || p.Row() != 2 {
		t.Errorf("stopped player kept playing")
	}

	p.Silence(&rec)
	checkWrites(t, rec.Writes()[:1], []opl.Write{{Register: 0xb0, Value: 0x15}})
	if p.State().Channels[0].KeyOn {
		t.Errorf("Silence left channel 0 keyed on")
	}

	p.Restart()
	fresh := New(song)
	if !reflect.DeepEqual(p.State(), fresh.State()) {
		t.Errorf("Restart did not reset the player:\n got: %s\nwant: %s", spew.Sdump(p.State()), spew.Sdump(fresh.State()))
	}
}

func TestSharedSong(t *testing.T) {
	song := newSong(1, 0)
	song.Patterns[0][0][0] = hsc.Cell{Note: 0x3d, Effect: 0xf3}

	a, b := New(song), New(song)
	var recA, recB opl.Recorder
	for range 20 {
		a.Tick(&recA)
	}
	b.Tick(&recB)

	if a.Row() == b.Row() {
		t.Errorf("players share a cursor")
	}
	if b.Speed() != 3 || a.Speed() != 3 {
		t.Errorf("speed: a %d, b %d", a.Speed(), b.Speed())
	}
	checkWrites(t, recB.Writes(), recA.Writes()[:3])
}
