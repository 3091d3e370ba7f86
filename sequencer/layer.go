package sequencer

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"sort"

	"go-sonify/debug"
)

// Slot is a set of notes sounding at one time offset within a measure
type Slot struct {
	Offset float64 // seconds from the measure start
	Notes  []Note  // set semantics, sorted by pitch
}

// LayerParams configures a layer
type LayerParams struct {
	Frequencies    []float64 // one per oscillator, strictly increasing
	Tempo          float64   // BPM
	DriftThreshold int       // max index distance a peak may drift and keep its tone
	Palette        *NotePalette
	Rand           *rand.Rand
}

// Layer is a bank of frequency-ranked oscillators. It keeps a persistent
// index -> tone mapping across updates and derives its own note schedule.
type Layer struct {
	oscillators []*Oscillator
	peaks       []int  // active peaks, sorted, unique
	tones       []Note // sparse: zero Note means no tone at that index
	schedule    []Slot
	locked      bool

	measure float64 // seconds
	drift   int
	palette *NotePalette
	rng     *rand.Rand
}

// NewLayer builds a layer from p
func NewLayer(p LayerParams) (*Layer, error) {
	if len(p.Frequencies) == 0 {
		return nil, ErrNoOscillators
	}
	if !validTempo(p.Tempo) {
		return nil, fmt.Errorf("tempo %g: %w", p.Tempo, ErrBadTempo)
	}
	if p.DriftThreshold < 0 {
		return nil, ErrBadDrift
	}
	if p.Palette == nil || p.Palette.Len() < 2 {
		return nil, ErrPaletteTooSmall
	}
	for i, f := range p.Frequencies {
		if !(f > 0) || math.IsInf(f, 0) || (i > 0 && f <= p.Frequencies[i-1]) {
			return nil, fmt.Errorf("oscillator %d at %gHz: %w", i, f, ErrBadFrequency)
		}
	}

	rng := p.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	l := &Layer{
		oscillators: make([]*Oscillator, len(p.Frequencies)),
		tones:       make([]Note, len(p.Frequencies)),
		measure:     measureSeconds(p.Tempo),
		drift:       p.DriftThreshold,
		palette:     p.Palette,
		rng:         rng,
	}
	for i, f := range p.Frequencies {
		l.oscillators[i] = NewOscillator(f)
	}
	return l, nil
}

// validTempo reports whether bpm is positive and finite
func validTempo(bpm float64) bool {
	return bpm > 0 && !math.IsInf(bpm, 0)
}

// measureSeconds is four beats at bpm
func measureSeconds(bpm float64) float64 {
	return 4 * 60 / bpm
}

// Len returns the oscillator count
func (l *Layer) Len() int { return len(l.oscillators) }

// Oscillator returns the oscillator at index i
func (l *Layer) Oscillator(i int) *Oscillator { return l.oscillators[i] }

// Locked reports whether amplitude updates are currently suppressed
func (l *Layer) Locked() bool { return l.locked }

// Measure returns the measure duration in seconds
func (l *Layer) Measure() float64 { return l.measure }

// ActivePeaks returns a copy of the current peak set, ascending
func (l *Layer) ActivePeaks() []int {
	return slices.Clone(l.peaks)
}

// Tone returns the tone assigned to oscillator i, if any
func (l *Layer) Tone(i int) (Note, bool) {
	if i < 0 || i >= len(l.tones) || l.tones[i].IsZero() {
		return Note{}, false
	}
	return l.tones[i], true
}

// Tones returns a copy of the tone map
func (l *Layer) Tones() map[int]Note {
	out := make(map[int]Note)
	for i, n := range l.tones {
		if !n.IsZero() {
			out[i] = n
		}
	}
	return out
}

func (l *Layer) toneCount() int {
	n := 0
	for _, t := range l.tones {
		if !t.IsZero() {
			n++
		}
	}
	return n
}

// Schedule returns a deep copy of the layer's schedule
func (l *Layer) Schedule() []Slot {
	return cloneSlots(l.schedule)
}

func cloneSlots(in []Slot) []Slot {
	out := make([]Slot, len(in))
	for i, s := range in {
		out[i] = Slot{Offset: s.Offset, Notes: slices.Clone(s.Notes)}
	}
	return out
}

// Views returns the render projection of every oscillator
func (l *Layer) Views() []OscillatorView {
	out := make([]OscillatorView, len(l.oscillators))
	for i, o := range l.oscillators {
		out[i] = o.View()
	}
	return out
}

// Advance moves every oscillator's phase. Tones and schedule are untouched.
func (l *Layer) Advance(elapsed float64) {
	for _, o := range l.oscillators {
		o.Advance(elapsed)
	}
}

// Validate checks an update without applying it
func (l *Layer) Validate(amps []float64, peaks []int) error {
	if len(amps) != len(l.oscillators) {
		return fmt.Errorf("got %d values, want %d: %w", len(amps), len(l.oscillators), ErrLengthMismatch)
	}
	for _, p := range peaks {
		if p < 0 || p >= len(l.oscillators) {
			return fmt.Errorf("peak %d not in [0,%d): %w", p, len(l.oscillators), ErrPeakOutOfRange)
		}
	}
	return nil
}

// UpdateAmplitudes applies a feed update and recomputes the schedule.
// A locked layer returns ErrLocked and is left unchanged, as is any layer
// given malformed data.
func (l *Layer) UpdateAmplitudes(amps []float64, peaks []int) error {
	if l.locked {
		return ErrLocked
	}
	if err := l.Validate(amps, peaks); err != nil {
		return err
	}

	set := slices.Clone(peaks)
	slices.Sort(set)
	set = slices.Compact(set)

	isPeak := make([]bool, len(l.oscillators))
	for _, p := range set {
		isPeak[p] = true
	}
	for i, o := range l.oscillators {
		o.SetAmplitude(amps[i], isPeak[i])
	}
	l.peaks = set
	l.recomputeSchedule()
	return nil
}

// Retune gives every toned oscillator a fresh tone different from its current one
func (l *Layer) Retune() {
	for i, n := range l.tones {
		if !n.IsZero() {
			l.tones[i] = l.palette.RandomExcept(l.rng, n)
		}
	}
	l.recomputeSchedule()
}

// ToggleLock flips the lock and returns the new state
func (l *Layer) ToggleLock() bool {
	l.locked = !l.locked
	return l.locked
}

// SetLocked forces the lock state
func (l *Layer) SetLocked(locked bool) {
	l.locked = locked
}

// Reset clears peaks and amplitudes. Tones survive so they return with the peaks.
func (l *Layer) Reset() {
	for _, o := range l.oscillators {
		o.SetAmplitude(0, false)
	}
	l.peaks = nil
	l.recomputeSchedule()
}

// SetTempo changes the measure duration and recomputes the schedule
func (l *Layer) SetTempo(bpm float64) error {
	if !validTempo(bpm) {
		return fmt.Errorf("tempo %g: %w", bpm, ErrBadTempo)
	}
	l.measure = measureSeconds(bpm)
	l.recomputeSchedule()
	return nil
}

func (l *Layer) recomputeSchedule() {
	l.retonalize()
	l.schedule = l.buildSchedule()
	debug.Log("layer", "recompute peaks=%d tones=%d slots=%d", len(l.peaks), l.toneCount(), len(l.schedule))
}

// driftPair links a current peak to a previously toned index within the drift threshold
type driftPair struct {
	next  int
	prior int
	dist  int
}

// retonalize carries tones across small peak drift. Closest pairs claim
// first; each prior index gives up its tone at most once and each current
// peak receives at most one. Peaks left without a tone get a fresh one.
func (l *Layer) retonalize() {
	var prior []int
	for i, n := range l.tones {
		if !n.IsZero() {
			prior = append(prior, i)
		}
	}

	var pairs []driftPair
	for _, p := range l.peaks {
		for _, q := range prior {
			d := p - q
			if d < 0 {
				d = -d
			}
			if d < l.drift {
				pairs = append(pairs, driftPair{next: p, prior: q, dist: d})
			}
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].dist < pairs[j].dist
	})

	before := slices.Clone(l.tones)
	claimedPrior := make(map[int]bool, len(pairs))
	claimedNext := make(map[int]bool, len(pairs))
	for _, pr := range pairs {
		// a current peak takes at most one tone so no prior tone is overwritten
		if claimedPrior[pr.prior] || claimedNext[pr.next] {
			continue
		}
		claimedPrior[pr.prior] = true
		claimedNext[pr.next] = true
		if pr.prior == pr.next {
			continue
		}
		l.tones[pr.prior] = Note{}
		l.tones[pr.next] = before[pr.prior]
	}

	for _, p := range l.peaks {
		if l.tones[p].IsZero() {
			l.tones[p] = l.palette.Random(l.rng)
		}
	}
}

// buildSchedule lays each peak's tone out once per oscillation period
// across one measure. Peaks landing on the exact same offset share a slot.
func (l *Layer) buildSchedule() []Slot {
	var slots []Slot
	index := make(map[float64]int)
	for _, p := range l.peaks {
		dt := l.oscillators[p].Period()
		note := l.tones[p]
		for t := 0.0; t < l.measure; t += dt {
			i, ok := index[t]
			if !ok {
				i = len(slots)
				index[t] = i
				slots = append(slots, Slot{Offset: t})
			}
			if !slices.Contains(slots[i].Notes, note) {
				slots[i].Notes = append(slots[i].Notes, note)
			}
		}
	}
	sort.Slice(slots, func(i, j int) bool {
		return slots[i].Offset < slots[j].Offset
	})
	for i := range slots {
		sortNotes(slots[i].Notes)
	}
	return slots
}
