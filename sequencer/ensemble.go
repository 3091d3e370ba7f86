package sequencer

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"

	"go-sonify/debug"
)

// EnsembleParams configures an ensemble. Every layer shares the same
// frequency gradient, tempo and palette.
type EnsembleParams struct {
	Layers         int
	Frequencies    []float64
	Tempo          float64
	DriftThreshold int
	Palette        *NotePalette
	Rand           *rand.Rand
}

// Ensemble is a fixed round-robin set of layers with exactly one active.
// Its merged schedule is rebuilt whenever any layer's schedule changes.
type Ensemble struct {
	layers []*Layer
	active int
	tempo  float64
	merged []Entry
}

// NewEnsemble builds K layers. Degenerate parameters are an error.
func NewEnsemble(p EnsembleParams) (*Ensemble, error) {
	if p.Layers <= 0 {
		return nil, ErrNoLayers
	}
	rng := p.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	e := &Ensemble{tempo: p.Tempo}
	for i := 0; i < p.Layers; i++ {
		l, err := NewLayer(LayerParams{
			Frequencies:    p.Frequencies,
			Tempo:          p.Tempo,
			DriftThreshold: p.DriftThreshold,
			Palette:        p.Palette,
			Rand:           rng,
		})
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		e.layers = append(e.layers, l)
	}
	return e, nil
}

// Len returns the layer count
func (e *Ensemble) Len() int { return len(e.layers) }

// Active returns the index of the active layer
func (e *Ensemble) Active() int { return e.active }

// Tempo returns the current BPM
func (e *Ensemble) Tempo() float64 { return e.tempo }

// Layer returns layer i
func (e *Ensemble) Layer(i int) *Layer { return e.layers[i] }

// ActiveLayer returns the layer receiving feed updates
func (e *Ensemble) ActiveLayer() *Layer { return e.layers[e.active] }

// Merged returns a copy of the ensemble-wide schedule
func (e *Ensemble) Merged() []Entry {
	out := make([]Entry, len(e.merged))
	for i, en := range e.merged {
		out[i] = Entry{Offset: en.Offset, Note: en.Note, Chord: slices.Clone(en.Chord)}
	}
	return out
}

// Dispatch routes a feed update to the active layer. Updates for a locked
// layer are dropped without error; malformed updates are rejected and
// nothing changes.
func (e *Ensemble) Dispatch(amps []float64, peaks []int) error {
	err := e.ActiveLayer().UpdateAmplitudes(amps, peaks)
	if errors.Is(err, ErrLocked) {
		debug.LogEvery(50, "ensemble", "layer %d locked, update dropped", e.active)
		return nil
	}
	if err != nil {
		return fmt.Errorf("layer %d: %w", e.active, err)
	}
	e.merge()
	return nil
}

// SwitchActive locks the active layer if needed and moves to the next one
func (e *Ensemble) SwitchActive() {
	cur := e.ActiveLayer()
	if !cur.Locked() {
		cur.SetLocked(true)
	}
	e.active = (e.active + 1) % len(e.layers)
	debug.Log("ensemble", "active layer -> %d (locked=%v)", e.active, e.ActiveLayer().Locked())
}

// ResetActive clears the active layer's peaks, locked or not
func (e *Ensemble) ResetActive() {
	e.ActiveLayer().Reset()
	e.merge()
}

// ToggleLockActive flips the active layer's lock and returns the new state
func (e *Ensemble) ToggleLockActive() bool {
	return e.ActiveLayer().ToggleLock()
}

// RetuneActive draws new tones for the active layer
func (e *Ensemble) RetuneActive() {
	e.ActiveLayer().Retune()
	e.merge()
}

// Apply performs a control action. ActionNone is ignored.
func (e *Ensemble) Apply(a Action) {
	debug.Log("ensemble", "action %s on layer %d", a, e.active)
	switch a {
	case ActionReset:
		e.ResetActive()
	case ActionLock:
		e.ToggleLockActive()
	case ActionNewTones:
		e.RetuneActive()
	case ActionNewLayer:
		e.SwitchActive()
	}
}

// SetTempo re-derives every layer's measure and rebuilds all schedules
func (e *Ensemble) SetTempo(bpm float64) error {
	if !validTempo(bpm) {
		return fmt.Errorf("tempo %g: %w", bpm, ErrBadTempo)
	}
	for _, l := range e.layers {
		if err := l.SetTempo(bpm); err != nil {
			return err
		}
	}
	e.tempo = bpm
	e.merge()
	return nil
}

// Advance moves every oscillator of every layer by elapsed seconds
func (e *Ensemble) Advance(elapsed float64) {
	for _, l := range e.layers {
		l.Advance(elapsed)
	}
}

func (e *Ensemble) merge() {
	schedules := make([][]Slot, len(e.layers))
	for i, l := range e.layers {
		schedules[i] = l.schedule
	}
	e.merged = Merge(schedules...)
}
