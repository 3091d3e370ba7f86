package grfnn

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"go-sonify/sequencer"
)

func newTestModel(t *testing.T, freqs []float64, seed uint64) *Model {
	t.Helper()
	m, err := New(Config{
		Frequencies: freqs,
		Type:        sequencer.FrequencyLinear,
		Params:      DefaultParams(),
		SampleRate:  160,
		Rand:        rand.New(rand.NewPCG(seed, seed+1)),
	})
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	return m
}

func TestTuneLinearAndLog(t *testing.T) {
	p := Params{Alpha: -0.5, Beta1: -1, Beta2: -2, Delta1: 0.25, Eps: 1}

	lin := tune(p, []float64{1, 2}, sequencer.FrequencyLinear)
	if lin.alpha[1] != complex(-0.5, 4*math.Pi) || lin.beta1[1] != complex(-1, 0.25) || lin.w[1] != 1 {
		t.Fatalf("linear: alpha=%v beta1=%v w=%v", lin.alpha[1], lin.beta1[1], lin.w[1])
	}

	lg := tune(p, []float64{1, 2}, sequencer.FrequencyLog)
	if lg.alpha[1] != complex(-1, 4*math.Pi) || lg.beta1[1] != complex(-2, 0.5) || lg.beta2[1] != complex(-4, 0) || lg.w[1] != 2 {
		t.Fatalf("log: alpha=%v beta1=%v beta2=%v w=%v", lg.alpha[1], lg.beta1[1], lg.beta2[1], lg.w[1])
	}
}

func TestSpontaneousAmplitude(t *testing.T) {
	tests := []struct {
		name         string
		a, b1, b2, e float64
		want         float64
	}{
		{"critical", 0, -1, -1, 1, 0},
		{"damped", -1, -1, -1, 1, 0},
		{"supercritical", 1, -1, 0, 1, 1},
		{"supercritical scaled", 4, -1, 0, 1, 2},
		{"no stable rest", 1, 1, 0, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SpontaneousAmplitude(tt.a, tt.b1, tt.b2, tt.e); math.Abs(got-tt.want) > 1e-12 {
				t.Fatalf("got=%g want=%g", got, tt.want)
			}
		})
	}
}

func TestRK4MatchesExponentialDecay(t *testing.T) {
	// dz/dt = -z has z(t) = exp(-t)
	z := complex(1, 0)
	for range 100 {
		z = rk4(z, 0.01, func(z complex128) complex128 { return -z })
	}
	if got, want := real(z), math.Exp(-1); math.Abs(got-want) > 1e-9 || imag(z) != 0 {
		t.Fatalf("got=%v want=%g", z, want)
	}
}

func TestModelUnforcedDoesNotGrow(t *testing.T) {
	m := newTestModel(t, []float64{0.5, 1, 2, 4}, 1)
	before := m.Amplitudes()
	for range 160 {
		m.Step(0)
	}
	for i, a := range m.Amplitudes() {
		if a > before[i]+1e-12 {
			t.Fatalf("oscillator %d grew without input: %g -> %g", i, before[i], a)
		}
	}
}

func TestModelResonatesWithPulse(t *testing.T) {
	// 2 Hz pulse at 160 Hz: one impulse every 80 samples
	m := newTestModel(t, []float64{1.5, 2, 2.25}, 7)
	for range 80 {
		for range 79 {
			m.Step(0)
		}
		m.Step(1000)
	}
	amps := m.Amplitudes()
	if amps[1] < 3*amps[0] || amps[1] < 3*amps[2] {
		t.Fatalf("2Hz oscillator should dominate: %v", amps)
	}
}

func TestModelSeedIsDeterministic(t *testing.T) {
	a := newTestModel(t, []float64{1, 2, 3}, 42)
	b := newTestModel(t, []float64{1, 2, 3}, 42)
	series := []float64{0, 0, 500, 0, 0, 0, 1000}
	a.Feed(series)
	b.Feed(series)
	got, want := a.State(), b.State()
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("state %d: %v != %v", i, got[i], want[i])
		}
	}
}

func TestModelResetRestoresRest(t *testing.T) {
	m := newTestModel(t, []float64{2}, 3)
	for range 40 {
		for range 79 {
			m.Step(0)
		}
		m.Step(1000)
	}
	if m.Amplitudes()[0] < 0.1 {
		t.Fatalf("pulse should excite the oscillator: %v", m.Amplitudes())
	}
	m.Reset()
	if a := m.Amplitudes()[0]; a > 0.1 {
		t.Fatalf("reset should return near rest, got %g", a)
	}
}

func TestNewRejectsDegenerateConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"no oscillators", Config{SampleRate: 160}, sequencer.ErrNoOscillators},
		{"zero rate", Config{Frequencies: []float64{1}}, ErrBadSampleRate},
		{"infinite rate", Config{Frequencies: []float64{1}, SampleRate: math.Inf(1)}, ErrBadSampleRate},
		{"negative coupling", Config{Frequencies: []float64{1}, SampleRate: 160, Params: Params{Eps: -1}}, ErrBadCoupling},
		{"nan frequency", Config{Frequencies: []float64{math.NaN()}, SampleRate: 160}, sequencer.ErrBadFrequency},
		{"infinite frequency", Config{Frequencies: []float64{math.Inf(1)}, SampleRate: 160}, sequencer.ErrBadFrequency},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); !errors.Is(err, tt.want) {
				t.Fatalf("got=%v want=%v", err, tt.want)
			}
		})
	}
}

func TestDriverZeroPadsSilence(t *testing.T) {
	m := newTestModel(t, []float64{2}, 5)
	start := time.Unix(0, 0)
	d := NewDriver(m, 160, 10, start)

	if n := d.Hit(start.Add(500*time.Millisecond), 100); n != 81 {
		t.Fatalf("half second: got=%d samples want=81", n)
	}
	if n := d.Hit(start.Add(400*time.Millisecond), 100); n != 1 {
		t.Fatalf("out of order hit: got=%d samples want=1", n)
	}
	if n := d.Hit(start.Add(time.Hour), 100); n != int(MaxGap.Seconds()*160)+1 {
		t.Fatalf("long gap: got=%d samples", n)
	}
}
