package midi

import (
	"fmt"
	"slices"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"go-sonify/debug"
	"go-sonify/sequencer"
)

// PadConfig maps drum-kit notes to control actions
type PadConfig struct {
	RimNote   uint8         // counted: 1 hit lock, 2 new layer, 3 reset
	PedalNote uint8         // new tones, immediately
	Window    time.Duration // rim hits are counted from the first hit for this long
	TomNotes  []uint8       // played hits, reported on Hits()
}

// DefaultPadConfig matches a DTX502 kit
func DefaultPadConfig() PadConfig {
	return PadConfig{RimNote: 15, PedalNote: 46, Window: 750 * time.Millisecond, TomNotes: []uint8{47, 48}}
}

// Hit is one played tom stroke
type Hit struct {
	Note     uint8
	Velocity uint8
	At       time.Time
}

// PadController turns drum pad hits into control actions
type PadController struct {
	id       string
	inPort   drivers.In
	stopFunc func()
	cfg      PadConfig

	actions chan sequencer.Action
	hits    chan Hit

	mu      sync.Mutex
	rimHits int
	timer   *time.Timer
	closed  bool
}

// NewPadController creates a pad controller listening on inPort (may be nil)
func NewPadController(id string, inPort drivers.In, cfg PadConfig) (*PadController, error) {
	pc := &PadController{
		id:      id,
		inPort:  inPort,
		cfg:     cfg,
		actions: make(chan sequencer.Action, 16),
		hits:    make(chan Hit, 64),
	}

	// Open input
	if inPort != nil {
		stop, err := gomidi.ListenTo(inPort, func(msg gomidi.Message, timestampms int32) {
			var channel, note, velocity uint8
			if msg.GetNoteOn(&channel, &note, &velocity) {
				pc.handleNote(note, velocity, time.Now())
			}
		})
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		pc.stopFunc = stop
	}

	return pc, nil
}

func (pc *PadController) ID() string {
	return pc.id
}

func (pc *PadController) Actions() <-chan sequencer.Action {
	return pc.actions
}

func (pc *PadController) Hits() <-chan Hit {
	return pc.hits
}

// handleNote reacts to a NoteOn. Zero velocity is a release and ignored.
func (pc *PadController) handleNote(note, velocity uint8, at time.Time) {
	if velocity == 0 {
		return
	}
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.closed {
		return
	}

	switch note {
	case pc.cfg.PedalNote:
		pc.emit(sequencer.ActionNewTones)
	case pc.cfg.RimNote:
		pc.rimHits++
		if pc.timer == nil {
			pc.timer = time.AfterFunc(pc.cfg.Window, pc.flushRim)
		}
		debug.Log("pads", "rim hit %d", pc.rimHits)
	default:
		if slices.Contains(pc.cfg.TomNotes, note) {
			// dropped rather than stall the MIDI callback
			select {
			case pc.hits <- Hit{Note: note, Velocity: velocity, At: at}:
			default:
				debug.LogEvery(50, "pads", "hit dropped, reader behind")
			}
		}
	}
}

// flushRim closes the counting window
func (pc *PadController) flushRim() {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	hits := pc.rimHits
	pc.rimHits = 0
	pc.timer = nil
	if pc.closed {
		return
	}
	if a := sequencer.RimAction(hits); a != sequencer.ActionNone {
		pc.emit(a)
	}
}

// emit sends without blocking the MIDI callback. Caller holds mu.
func (pc *PadController) emit(a sequencer.Action) {
	debug.Log("pads", "action %s", a)
	select {
	case pc.actions <- a:
	default:
	}
}

func (pc *PadController) Close() error {
	if pc.stopFunc != nil {
		pc.stopFunc()
	}
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.closed {
		return nil
	}
	pc.closed = true
	if pc.timer != nil {
		pc.timer.Stop()
	}
	close(pc.actions)
	close(pc.hits)
	return nil
}
