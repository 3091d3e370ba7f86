package sequencer

import (
	"fmt"
	"math"
)

// Oscillator is a single unit of a layer: fixed natural frequency plus the
// last received amplitude/peak state. Phase is presentation only.
type Oscillator struct {
	Frequency float64 // Hz, fixed at construction

	amplitude float64
	peak      bool

	phase   float64 // 0-1
	growing bool
}

// OscillatorView is the read-only projection handed to renderers
type OscillatorView struct {
	Frequency float64
	Amplitude float64
	Peak      bool
	Phase     float64
	Growing   bool
}

// NewOscillator creates an oscillator at rest (phase 0, growing)
func NewOscillator(freq float64) *Oscillator {
	return &Oscillator{Frequency: freq, growing: true}
}

// Amplitude returns the last normalized amplitude
func (o *Oscillator) Amplitude() float64 { return o.amplitude }

// IsPeak reports whether the oscillator was a detected peak in the last update
func (o *Oscillator) IsPeak() bool { return o.peak }

// Phase returns the phase position and growth direction
func (o *Oscillator) Phase() (float64, bool) { return o.phase, o.growing }

// Period returns the oscillation period in seconds
func (o *Oscillator) Period() float64 {
	return 1 / o.Frequency
}

// SetAmplitude replaces amplitude and peak flag. Callers normalize.
func (o *Oscillator) SetAmplitude(norm float64, isPeak bool) {
	o.amplitude = norm
	o.peak = isPeak
}

// Advance moves phase by elapsed/halfPeriod, reflecting off 0 and 1.
// A full period is a round trip 0 -> 1 -> 0.
func (o *Oscillator) Advance(elapsed float64) {
	if elapsed <= 0 || o.Frequency <= 0 {
		return
	}
	halfPeriod := 1 / (2 * o.Frequency)
	delta := math.Mod(elapsed/halfPeriod, 2)

	if !o.growing {
		delta = -delta
	}
	p := o.phase + delta
	for p > 1 || p < 0 {
		if p > 1 {
			p = 2 - p
			o.growing = false
		} else {
			p = -p
			o.growing = true
		}
	}
	o.phase = p
}

// View returns the render projection
func (o *Oscillator) View() OscillatorView {
	return OscillatorView{
		Frequency: o.Frequency,
		Amplitude: o.amplitude,
		Peak:      o.peak,
		Phase:     o.phase,
		Growing:   o.growing,
	}
}

// FrequencyType selects how a layer's frequency gradient is spaced
type FrequencyType string

const (
	FrequencyLinear FrequencyType = "linear"
	FrequencyLog    FrequencyType = "log"
)

// Frequencies expands a gradient of n frequencies from..to inclusive.
// Frequencies are strictly increasing when from < to.
func Frequencies(from, to float64, n int, ftype FrequencyType) ([]float64, error) {
	if n <= 0 {
		return nil, ErrNoOscillators
	}
	if from <= 0 || to < from || math.IsInf(to, 0) || math.IsNaN(from) || math.IsNaN(to) {
		return nil, fmt.Errorf("range %g..%g: %w", from, to, ErrBadFrequency)
	}
	out := make([]float64, n)
	if n == 1 {
		out[0] = from
		return out, nil
	}

	switch ftype {
	case FrequencyLinear, "":
		step := (to - from) / float64(n-1)
		for i := range out {
			out[i] = from + float64(i)*step
		}
	case FrequencyLog:
		lo, hi := math.Log10(from), math.Log10(to)
		step := (hi - lo) / float64(n-1)
		for i := range out {
			out[i] = math.Pow(10, lo+float64(i)*step)
		}
	default:
		return nil, fmt.Errorf("frequency type %q: %w", ftype, ErrBadFrequency)
	}
	out[n-1] = to
	return out, nil
}
