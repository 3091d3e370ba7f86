package midi

import (
	"sort"
	"time"

	"go-sonify/sequencer"
)

// MIDI message types
const (
	NoteOn  uint8 = 0x90
	NoteOff uint8 = 0x80
)

// Event is a note message positioned within a measure
type Event struct {
	At       time.Duration // from measure start
	Type     uint8         // NoteOn, NoteOff
	Note     uint8
	Velocity uint8
}

// EventsForMeasure expands merged schedule entries into NoteOn/NoteOff
// pairs ordered by time. A note is released after gate, or just before the
// same pitch sounds again if that comes first. At equal times NoteOffs go
// first so a retriggered pitch is not cut by its own release.
func EventsForMeasure(entries []sequencer.Entry, velocity uint8, gate time.Duration) []Event {
	type onset struct {
		at   time.Duration
		note uint8
	}
	var onsets []onset
	for _, e := range entries {
		at := time.Duration(e.Offset * float64(time.Second))
		for _, n := range e.Notes() {
			onsets = append(onsets, onset{at: at, note: n.MIDI()})
		}
	}

	// next onset of the same pitch, for shortening the gate
	nextSame := make([]time.Duration, len(onsets))
	last := make(map[uint8]time.Duration)
	for i := len(onsets) - 1; i >= 0; i-- {
		o := onsets[i]
		if at, ok := last[o.note]; ok && at > o.at {
			nextSame[i] = at
		} else {
			nextSame[i] = -1
		}
		last[o.note] = o.at
	}

	events := make([]Event, 0, 2*len(onsets))
	for i, o := range onsets {
		off := o.at + gate
		if nextSame[i] >= 0 && nextSame[i] < off {
			off = nextSame[i]
		}
		events = append(events,
			Event{At: o.at, Type: NoteOn, Note: o.note, Velocity: velocity},
			Event{At: off, Type: NoteOff, Note: o.note},
		)
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].At != events[j].At {
			return events[i].At < events[j].At
		}
		return events[i].Type == NoteOff && events[j].Type == NoteOn
	})
	return events
}
