package sequencer

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go-sonify/debug"
)

// Player receives the merged schedule once per measure. Implementations
// must not block; they own device output and timing.
type Player interface {
	PlayMeasure(start time.Time, measure time.Duration, entries []Entry)
}

// PlayerFunc adapts a function to Player
type PlayerFunc func(start time.Time, measure time.Duration, entries []Entry)

func (f PlayerFunc) PlayMeasure(start time.Time, measure time.Duration, entries []Entry) {
	f(start, measure, entries)
}

// LayerState is the render projection of one layer
type LayerState struct {
	Locked      bool
	Tones       int
	Peaks       []int
	Oscillators []OscillatorView
}

// Snapshot is an immutable view of the ensemble, published after every
// completed event. Readers never see a half-built schedule.
type Snapshot struct {
	Tempo   float64
	Measure time.Duration
	Active  int
	Layers  []LayerState
	Merged  []Entry
}

// Tempo limits
const (
	MinTempo = 20
	MaxTempo = 300
)

// DefaultRenderFPS is the render tick rate used when none is given
const DefaultRenderFPS = 60

// Manager owns an ensemble and serializes everything that touches it:
// feed updates, control actions, tempo changes and render ticks each run
// to completion under one lock.
type Manager struct {
	mu       sync.Mutex
	ensemble *Ensemble
	player   Player

	renderFPS int
	snap      atomic.Pointer[Snapshot]
	tempoChan chan struct{} // measure ticker must be reset

	// Notify TUI of updates
	UpdateChan chan struct{}
}

// NewManager wraps an ensemble. player may be nil.
func NewManager(e *Ensemble, player Player, renderFPS int) *Manager {
	if renderFPS <= 0 {
		renderFPS = DefaultRenderFPS
	}
	if bpm := clampTempo(e.Tempo()); bpm != e.Tempo() {
		debug.Log("measure", "tempo %g clamped to %g", e.Tempo(), bpm)
		e.SetTempo(bpm)
	}
	m := &Manager{
		ensemble:   e,
		player:     player,
		renderFPS:  renderFPS,
		tempoChan:  make(chan struct{}, 1),
		UpdateChan: make(chan struct{}, 1),
	}
	m.mu.Lock()
	m.publish()
	m.mu.Unlock()
	return m
}

// Snapshot returns the most recently published state
func (m *Manager) Snapshot() *Snapshot {
	return m.snap.Load()
}

// Update applies an amplitude/peak update to the active layer
func (m *Manager) Update(amps []float64, peaks []int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensemble.Dispatch(amps, peaks); err != nil {
		debug.Log("ensemble", "update rejected: %v", err)
		return err
	}
	m.publish()
	return nil
}

// Apply performs a control action
func (m *Manager) Apply(a Action) {
	if a == ActionNone {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensemble.Apply(a)
	m.publish()
}

// SetTempo sets the BPM, clamped to MinTempo..MaxTempo
func (m *Manager) SetTempo(bpm int) {
	tempo := clampTempo(float64(bpm))
	m.mu.Lock()
	if tempo == m.ensemble.Tempo() {
		m.mu.Unlock()
		return
	}
	if err := m.ensemble.SetTempo(tempo); err != nil {
		m.mu.Unlock()
		debug.Log("measure", "set tempo %g: %v", tempo, err)
		return
	}
	m.publish()
	m.mu.Unlock()

	select {
	case m.tempoChan <- struct{}{}:
	default:
	}
}

func clampTempo(bpm float64) float64 {
	return min(max(bpm, MinTempo), MaxTempo)
}

// Run drives render ticks and measure ticks until ctx is done
func (m *Manager) Run(ctx context.Context) {
	renderTicker := time.NewTicker(time.Second / time.Duration(m.renderFPS))
	defer renderTicker.Stop()

	measureTicker := time.NewTicker(m.Snapshot().Measure)
	defer measureTicker.Stop()

	last := time.Now()
	m.playMeasure(last)

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-renderTicker.C:
			m.render(now.Sub(last).Seconds())
			last = now
		case <-m.tempoChan:
			measureTicker.Reset(m.Snapshot().Measure)
		case now := <-measureTicker.C:
			m.playMeasure(now)
		}
	}
}

func (m *Manager) render(elapsed float64) {
	m.mu.Lock()
	m.ensemble.Advance(elapsed)
	m.publish()
	m.mu.Unlock()
}

func (m *Manager) playMeasure(start time.Time) {
	snap := m.Snapshot()
	debug.LogEvery(8, "measure", "measure start entries=%d", len(snap.Merged))
	if m.player != nil {
		m.player.PlayMeasure(start, snap.Measure, snap.Merged)
	}
}

// publish builds a fresh snapshot. Caller holds mu.
func (m *Manager) publish() {
	e := m.ensemble
	s := &Snapshot{
		Tempo:   e.Tempo(),
		Measure: time.Duration(math.Round(measureSeconds(e.Tempo()) * float64(time.Second))),
		Active:  e.Active(),
		Merged:  e.Merged(),
		Layers:  make([]LayerState, e.Len()),
	}
	for i := range s.Layers {
		l := e.Layer(i)
		s.Layers[i] = LayerState{
			Locked:      l.Locked(),
			Tones:       l.toneCount(),
			Peaks:       l.ActivePeaks(),
			Oscillators: l.Views(),
		}
	}
	m.snap.Store(s)

	select {
	case m.UpdateChan <- struct{}{}:
	default:
	}
}
