package sequencer

import (
	"slices"
	"sort"
)

// Entry is one playback instant of the merged schedule. A single note is
// carried in Note; two or more notes are carried in Chord and Note is zero.
type Entry struct {
	Offset float64
	Note   Note
	Chord  []Note
}

// Notes returns every note sounding at this entry
func (e Entry) Notes() []Note {
	if len(e.Chord) > 0 {
		return slices.Clone(e.Chord)
	}
	if e.Note.IsZero() {
		return nil
	}
	return []Note{e.Note}
}

// IsChord reports whether more than one note sounds at this entry
func (e Entry) IsChord() bool {
	return len(e.Chord) > 1
}

// Merge combines layer schedules into one sequence ordered by offset.
// Slots with exactly equal offsets collapse into one entry holding the
// union of their notes. Every call is a full rebuild.
func Merge(schedules ...[]Slot) []Entry {
	var all []Slot
	for _, s := range schedules {
		all = append(all, s...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Offset < all[j].Offset
	})

	var merged []Slot
	for _, s := range all {
		if n := len(merged); n == 0 || merged[n-1].Offset != s.Offset {
			merged = append(merged, Slot{Offset: s.Offset})
		}
		last := &merged[len(merged)-1]
		for _, note := range s.Notes {
			if !slices.Contains(last.Notes, note) {
				last.Notes = append(last.Notes, note)
			}
		}
	}

	out := make([]Entry, 0, len(merged))
	for _, s := range merged {
		if len(s.Notes) == 0 {
			continue
		}
		sortNotes(s.Notes)
		e := Entry{Offset: s.Offset}
		if len(s.Notes) == 1 {
			e.Note = s.Notes[0]
		} else {
			e.Chord = s.Notes
		}
		out = append(out, e)
	}
	return out
}
