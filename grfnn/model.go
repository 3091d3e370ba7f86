// Package grfnn is a single-layer gradient frequency neural network: a bank
// of canonical nonlinear oscillators, tuned across a frequency gradient and
// driven by one shared input signal.
package grfnn

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"math/rand/v2"

	"go-sonify/debug"
	"go-sonify/sequencer"
)

var (
	ErrBadSampleRate = errors.New("sample rate must be positive and finite")
	ErrBadCoupling   = errors.New("coupling must not be negative")
)

// Config describes a model
type Config struct {
	Frequencies []float64
	Type        sequencer.FrequencyType
	Params      Params
	SampleRate  float64    // input samples per second
	Rand        *rand.Rand // initial phases and noise; nil seeds from the runtime
}

// Model integrates the oscillator bank one input sample at a time
type Model struct {
	freqs []float64
	p     Params
	dt    float64
	rng   *rand.Rand

	coef  tuned
	eps   complex128
	rootE complex128

	z []complex128
}

func New(cfg Config) (*Model, error) {
	if len(cfg.Frequencies) == 0 {
		return nil, sequencer.ErrNoOscillators
	}
	if !(cfg.SampleRate > 0) || math.IsInf(cfg.SampleRate, 0) {
		return nil, fmt.Errorf("%g: %w", cfg.SampleRate, ErrBadSampleRate)
	}
	if !(cfg.Params.Eps >= 0) {
		return nil, fmt.Errorf("%g: %w", cfg.Params.Eps, ErrBadCoupling)
	}
	for i, f := range cfg.Frequencies {
		if !(f > 0) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("frequency %d = %g: %w", i, f, sequencer.ErrBadFrequency)
		}
	}

	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	m := &Model{
		freqs: append([]float64(nil), cfg.Frequencies...),
		p:     cfg.Params,
		dt:    1 / cfg.SampleRate,
		rng:   rng,
		coef:  tune(cfg.Params, cfg.Frequencies, cfg.Type),
		eps:   complex(cfg.Params.Eps, 0),
		rootE: complex(math.Sqrt(cfg.Params.Eps), 0),
		z:     make([]complex128, len(cfg.Frequencies)),
	}
	m.Reset()
	return m, nil
}

func (m *Model) Len() int { return len(m.z) }

func (m *Model) Frequencies() []float64 { return append([]float64(nil), m.freqs...) }

// State returns a copy of the complex oscillator states
func (m *Model) State() []complex128 { return append([]complex128(nil), m.z...) }

// Reset puts every oscillator back at its spontaneous amplitude with a
// little noise and a random phase
func (m *Model) Reset() {
	a, b1, b2 := real(m.coef.alpha[0]), real(m.coef.beta1[0]), real(m.coef.beta2[0])
	r := SpontaneousAmplitude(a, b1, b2, m.p.Eps)
	for i := range m.z {
		amp := r + 0.01*m.rng.NormFloat64()
		phi := 2 * math.Pi * m.rng.NormFloat64()
		m.z[i] = cmplx.Rect(amp, 2*math.Pi*phi)
	}
	debug.Log("grfnn", "reset %d oscillators, resting amplitude %.3f", len(m.z), r)
}

// Step advances every oscillator by one sample of input x
func (m *Model) Step(x float64) {
	in := complex(x, 0)
	drive := in / (1 - m.rootE*in)
	for i, z := range m.z {
		ext := complex(m.coef.w[i], 0) * drive / (1 - m.rootE*cmplx.Conj(z))
		next := rk4(z, m.dt, func(z complex128) complex128 {
			return m.zdot(i, ext, z)
		})
		// a singular stimulus or compression term leaves the oscillator where it was
		if cmplx.IsNaN(next) || cmplx.IsInf(next) {
			debug.LogEvery(100, "grfnn", "non-finite state at %d, step skipped", i)
			continue
		}
		m.z[i] = next
	}
}

// Feed steps through a whole series
func (m *Model) Feed(series []float64) {
	for _, x := range series {
		m.Step(x)
	}
}

// Amplitudes returns |z| for every oscillator
func (m *Model) Amplitudes() []float64 {
	out := make([]float64, len(m.z))
	for i, z := range m.z {
		out[i] = cmplx.Abs(z)
	}
	return out
}

func (m *Model) zdot(i int, ext, z complex128) complex128 {
	r2 := real(z)*real(z) + imag(z)*imag(z)
	nl1 := m.coef.beta1[i] * complex(r2, 0)
	nl2 := m.coef.beta2[i] * m.eps * complex(r2*r2, 0) / (1 - m.eps*complex(r2, 0))
	return z*(m.coef.alpha[i]+nl1+nl2) + ext
}

// rk4 is one classic fourth-order Runge-Kutta step
func rk4(z0 complex128, h float64, dz func(complex128) complex128) complex128 {
	hc := complex(h, 0)
	k1 := hc * dz(z0)
	k2 := hc * dz(z0+k1/2)
	k3 := hc * dz(z0+k2/2)
	k4 := hc * dz(z0+k3)
	return z0 + (k1+2*k2+2*k3+k4)/6
}
