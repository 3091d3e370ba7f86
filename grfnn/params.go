package grfnn

import (
	"math"
	"slices"

	"go-sonify/sequencer"
)

// Params are the canonical oscillator model's coefficients before they are
// tuned to a frequency gradient
type Params struct {
	Alpha  float64 // linear damping
	Beta1  float64 // cubic amplitude compression
	Beta2  float64 // higher-order compression
	Delta1 float64 // detuning with amplitude
	Delta2 float64
	Eps    float64 // coupling strength, >= 0
}

// DefaultParams is a critical oscillator: no linear damping, compressed
// amplitude, unit coupling
func DefaultParams() Params {
	return Params{Beta1: -1, Beta2: -1, Eps: 1}
}

// tuned holds the per-oscillator complex coefficients
type tuned struct {
	alpha []complex128
	beta1 []complex128
	beta2 []complex128
	w     []float64
}

// tune spreads p over freqs. Linear gradients put the frequency in alpha's
// imaginary part; log gradients scale every coefficient by the frequency.
func tune(p Params, freqs []float64, ftype sequencer.FrequencyType) tuned {
	n := len(freqs)
	t := tuned{
		alpha: make([]complex128, n),
		beta1: make([]complex128, n),
		beta2: make([]complex128, n),
		w:     make([]float64, n),
	}
	b1 := complex(p.Beta1, p.Delta1)
	b2 := complex(p.Beta2, p.Delta2)
	for i, f := range freqs {
		if ftype == sequencer.FrequencyLog {
			fc := complex(f, 0)
			t.alpha[i] = complex(p.Alpha, 2*math.Pi) * fc
			t.beta1[i] = b1 * fc
			t.beta2[i] = b2 * fc
			t.w[i] = f
			continue
		}
		t.alpha[i] = complex(p.Alpha, 2*math.Pi*f)
		t.beta1[i] = b1
		t.beta2[i] = b2
		t.w[i] = 1
	}
	return t
}

// SpontaneousAmplitude returns the smallest stable resting amplitude of an
// unforced oscillator with real coefficients a, b1, b2 and coupling e. With
// no stable equilibrium it returns 0.
func SpontaneousAmplitude(a, b1, b2, e float64) float64 {
	if b2 == 0 && e != 0 {
		e = 0
	}

	// Equilibria solve r(A r^4 + B r^2 + C) = 0, a quadratic in r^2
	A, B, C := e*(b2-b1), b1-e*a, a
	roots := []float64{0}
	addSquare := func(s float64) {
		if s > 0 {
			roots = append(roots, math.Sqrt(s))
		}
	}
	switch {
	case A != 0:
		disc := B*B - 4*A*C
		if disc >= 0 {
			sq := math.Sqrt(disc)
			addSquare((-B + sq) / (2 * A))
			addSquare((-B - sq) / (2 * A))
		}
	case B != 0:
		addSquare(-C / B)
	}

	slope := func(r float64) float64 {
		r2 := r * r
		d := 1 - e*r2
		return a + 3*b1*r2 + (5*e*b2*r2*r2-3*e*e*b2*r2*r2*r2)/(d*d)
	}

	const tiny = 2.220446049250313e-16
	var stable []float64
	for _, r := range roots {
		if b2 != 0 && e > 0 && r >= 1/math.Sqrt(e) {
			continue
		}
		s := slope(r)
		if s < 0 || (s == 0 && slope(r-tiny) < 0 && slope(r+tiny) < 0) {
			stable = append(stable, r)
		}
	}
	if len(stable) == 0 {
		return 0
	}
	return slices.Min(stable)
}
