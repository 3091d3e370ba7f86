package sequencer

import (
	"fmt"
	"math/rand/v2"
	"sort"
)

// Letter is a natural pitch class, 'A' through 'G'. The zero value is not a letter.
type Letter byte

// Letters in the order they appear within an octave (C-based octave numbering)
var Letters = []Letter{'C', 'D', 'E', 'F', 'G', 'A', 'B'}

// semitone offset from C for each letter
var letterSemitones = map[Letter]int{
	'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11,
}

// Note is an abstract pitch: a letter plus an octave number. Equality is by value.
type Note struct {
	Letter Letter
	Octave int
}

// IsZero reports whether n is the "no tone" value
func (n Note) IsZero() bool {
	return n.Letter == 0
}

func (n Note) String() string {
	if n.IsZero() {
		return "--"
	}
	return fmt.Sprintf("%c%d", n.Letter, n.Octave)
}

// MIDI returns the MIDI note number (C4 = 60), clamped to 0-127
func (n Note) MIDI() uint8 {
	v := (n.Octave+1)*12 + letterSemitones[n.Letter]
	if v < 0 {
		return 0
	}
	if v > 127 {
		return 127
	}
	return uint8(v)
}

// sortNotes orders notes by pitch so note sets render and compare deterministically
func sortNotes(notes []Note) {
	sort.Slice(notes, func(i, j int) bool {
		a, b := notes[i], notes[j]
		if a.Octave != b.Octave {
			return a.Octave < b.Octave
		}
		return letterSemitones[a.Letter] < letterSemitones[b.Letter]
	})
}

// NotePalette is the domain tones are drawn from: every letter across an
// inclusive octave range.
type NotePalette struct {
	notes []Note
}

// NewNotePalette builds a palette spanning octaves lo..hi inclusive.
func NewNotePalette(lo, hi int) (*NotePalette, error) {
	if hi < lo {
		return nil, fmt.Errorf("octave range %d..%d: %w", lo, hi, ErrPaletteTooSmall)
	}
	p := &NotePalette{}
	for oct := lo; oct <= hi; oct++ {
		for _, l := range Letters {
			p.notes = append(p.notes, Note{Letter: l, Octave: oct})
		}
	}
	return p, nil
}

// Len returns the palette size
func (p *NotePalette) Len() int {
	return len(p.notes)
}

// Notes returns a copy of the palette contents
func (p *NotePalette) Notes() []Note {
	return append([]Note(nil), p.notes...)
}

// Random picks any note from the palette
func (p *NotePalette) Random(rng *rand.Rand) Note {
	return p.notes[rng.IntN(len(p.notes))]
}

// RandomExcept picks a note different from current. Drawing from the
// palette minus one slot keeps this a single draw.
func (p *NotePalette) RandomExcept(rng *rand.Rand, current Note) Note {
	idx := -1
	for i, n := range p.notes {
		if n == current {
			idx = i
			break
		}
	}
	if idx < 0 {
		return p.Random(rng)
	}
	i := rng.IntN(len(p.notes) - 1)
	if i >= idx {
		i++
	}
	return p.notes[i]
}
