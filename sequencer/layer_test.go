package sequencer

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"
)

func newTestPalette(t *testing.T) *NotePalette {
	t.Helper()
	p, err := NewNotePalette(3, 5)
	if err != nil {
		t.Fatalf("palette: %v", err)
	}
	return p
}

func newTestLayer(t *testing.T, freqs []float64, bpm float64, drift int) *Layer {
	t.Helper()
	l, err := NewLayer(LayerParams{
		Frequencies:    freqs,
		Tempo:          bpm,
		DriftThreshold: drift,
		Palette:        newTestPalette(t),
		Rand:           rand.New(rand.NewPCG(1, 2)),
	})
	if err != nil {
		t.Fatalf("new layer: %v", err)
	}
	return l
}

func linearFreqs(t *testing.T, n int) []float64 {
	t.Helper()
	f, err := Frequencies(0.25, 4.0, n, FrequencyLinear)
	if err != nil {
		t.Fatalf("frequencies: %v", err)
	}
	return f
}

func TestLayerScheduleExample(t *testing.T) {
	l := newTestLayer(t, []float64{1, 2, 3, 4}, 240, 2)
	if l.Measure() != 1.0 {
		t.Fatalf("measure: got=%g want=1", l.Measure())
	}

	if err := l.UpdateAmplitudes([]float64{1, 0, 0.5, 0}, []int{0, 2}); err != nil {
		t.Fatalf("update: %v", err)
	}

	n0, ok0 := l.Tone(0)
	n2, ok2 := l.Tone(2)
	if !ok0 || !ok2 {
		t.Fatalf("expected tones on both peaks, got %v", l.Tones())
	}

	sched := l.Schedule()
	if len(sched) != 3 {
		t.Fatalf("expected 3 offsets, got %d: %+v", len(sched), sched)
	}
	want := []float64{0, 1.0 / 3, 2.0 / 3}
	for i, s := range sched {
		if math.Abs(s.Offset-want[i]) > 1e-9 {
			t.Fatalf("offset %d: got=%g want=%g", i, s.Offset, want[i])
		}
	}

	first := sched[0].Notes
	if n0 == n2 {
		if len(first) != 1 {
			t.Fatalf("equal tones should share one set entry, got %v", first)
		}
	} else if len(first) != 2 {
		t.Fatalf("offset 0 should hold both notes, got %v", first)
	}
	for _, s := range sched[1:] {
		if len(s.Notes) != 1 || s.Notes[0] != n2 {
			t.Fatalf("expected only %s at %g, got %v", n2, s.Offset, s.Notes)
		}
	}
}

func TestLayerOffsetsStrictlyIncreasing(t *testing.T) {
	freqs := linearFreqs(t, 250)
	l := newTestLayer(t, freqs, 60, 20)
	amps := make([]float64, 250)
	rng := rand.New(rand.NewPCG(7, 7))

	for round := 0; round < 20; round++ {
		var peaks []int
		for i := 0; i < 5; i++ {
			peaks = append(peaks, rng.IntN(250))
		}
		if err := l.UpdateAmplitudes(amps, peaks); err != nil {
			t.Fatalf("update: %v", err)
		}
		sched := l.Schedule()
		for i := 1; i < len(sched); i++ {
			if sched[i].Offset <= sched[i-1].Offset {
				t.Fatalf("round %d: offsets not strictly increasing at %d: %g <= %g", round, i, sched[i].Offset, sched[i-1].Offset)
			}
		}
		for _, s := range sched {
			if s.Offset < 0 || s.Offset >= l.Measure() {
				t.Fatalf("offset %g outside measure %g", s.Offset, l.Measure())
			}
		}
	}
}

func TestLayerDriftKeepsTones(t *testing.T) {
	l := newTestLayer(t, linearFreqs(t, 250), 60, 10)
	amps := make([]float64, 250)

	if err := l.UpdateAmplitudes(amps, []int{40, 100, 180}); err != nil {
		t.Fatalf("update: %v", err)
	}
	before := l.Tones()

	shift := map[int]int{40: 43, 100: 98, 180: 185}
	if err := l.UpdateAmplitudes(amps, []int{43, 98, 185}); err != nil {
		t.Fatalf("update: %v", err)
	}
	after := l.Tones()

	if len(after) != 3 {
		t.Fatalf("drift should re-key, not add tones: got %v", after)
	}
	for from, to := range shift {
		if after[to] != before[from] {
			t.Fatalf("tone at %d should follow from %d: got=%s want=%s", to, from, after[to], before[from])
		}
		if _, ok := after[from]; ok {
			t.Fatalf("old index %d should have been vacated", from)
		}
	}
}

func TestLayerDriftPrefersClosestMatch(t *testing.T) {
	l := newTestLayer(t, linearFreqs(t, 100), 60, 10)
	amps := make([]float64, 100)

	if err := l.UpdateAmplitudes(amps, []int{20, 30}); err != nil {
		t.Fatalf("update: %v", err)
	}
	before := l.Tones()

	// 26 is 4 from 30 and 6 from 20: it must take 30's tone.
	if err := l.UpdateAmplitudes(amps, []int{26}); err != nil {
		t.Fatalf("update: %v", err)
	}
	after := l.Tones()
	if after[26] != before[30] {
		t.Fatalf("expected closest prior tone: got=%s want=%s", after[26], before[30])
	}
	if after[20] != before[20] {
		t.Fatalf("unclaimed prior tone should persist: got=%s want=%s", after[20], before[20])
	}
}

func TestLayerDriftNeverStacksTwoTonesOnOnePeak(t *testing.T) {
	l := newTestLayer(t, linearFreqs(t, 100), 60, 5)
	amps := make([]float64, 100)

	if err := l.UpdateAmplitudes(amps, []int{10, 12}); err != nil {
		t.Fatalf("update: %v", err)
	}
	before := l.Tones()

	// 12 keeps its own tone; 10 is within drift of 12 but 12 is taken
	if err := l.UpdateAmplitudes(amps, []int{12}); err != nil {
		t.Fatalf("update: %v", err)
	}
	after := l.Tones()
	if after[12] != before[12] || after[10] != before[10] {
		t.Fatalf("tones should stay put: got=%v want=%v", after, before)
	}
}

func TestLayerBeyondDriftGetsFreshTone(t *testing.T) {
	l := newTestLayer(t, linearFreqs(t, 100), 60, 5)
	amps := make([]float64, 100)

	if err := l.UpdateAmplitudes(amps, []int{10}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := l.UpdateAmplitudes(amps, []int{50}); err != nil {
		t.Fatalf("update: %v", err)
	}
	tones := l.Tones()
	if len(tones) != 2 {
		t.Fatalf("expected prior tone to persist plus a fresh one, got %v", tones)
	}
}

func TestLayerLockIgnoresUpdates(t *testing.T) {
	l := newTestLayer(t, linearFreqs(t, 50), 60, 5)
	amps := make([]float64, 50)

	if err := l.UpdateAmplitudes(amps, []int{10, 30}); err != nil {
		t.Fatalf("update: %v", err)
	}
	sched := l.Schedule()
	tones := l.Tones()

	if !l.ToggleLock() {
		t.Fatalf("expected layer to be locked")
	}
	err := l.UpdateAmplitudes(amps, []int{5, 45})
	if !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	assertSameSchedule(t, l.Schedule(), sched)
	assertSameTones(t, l.Tones(), tones)

	l.ToggleLock()
	if err := l.UpdateAmplitudes(amps, []int{10, 30}); err != nil {
		t.Fatalf("update: %v", err)
	}
	assertSameSchedule(t, l.Schedule(), sched)
	assertSameTones(t, l.Tones(), tones)
}

func TestLayerRejectsMalformedUpdate(t *testing.T) {
	l := newTestLayer(t, linearFreqs(t, 10), 60, 3)
	if err := l.UpdateAmplitudes(make([]float64, 10), []int{2, 7}); err != nil {
		t.Fatalf("update: %v", err)
	}
	sched := l.Schedule()
	peaks := l.ActivePeaks()

	tests := []struct {
		name  string
		amps  []float64
		peaks []int
		want  error
	}{
		{"short vector", make([]float64, 9), []int{1}, ErrLengthMismatch},
		{"long vector", make([]float64, 11), []int{1}, ErrLengthMismatch},
		{"negative peak", make([]float64, 10), []int{-1}, ErrPeakOutOfRange},
		{"peak past end", make([]float64, 10), []int{3, 10}, ErrPeakOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := l.UpdateAmplitudes(tt.amps, tt.peaks)
			if !errors.Is(err, tt.want) {
				t.Fatalf("got=%v want=%v", err, tt.want)
			}
			assertSameSchedule(t, l.Schedule(), sched)
			got := l.ActivePeaks()
			if len(got) != len(peaks) || got[0] != peaks[0] || got[1] != peaks[1] {
				t.Fatalf("peaks changed: got=%v want=%v", got, peaks)
			}
		})
	}
}

func TestLayerResetKeepsTones(t *testing.T) {
	l := newTestLayer(t, linearFreqs(t, 20), 60, 3)
	amps := make([]float64, 20)
	amps[4] = 1
	if err := l.UpdateAmplitudes(amps, []int{4, 12}); err != nil {
		t.Fatalf("update: %v", err)
	}
	tones := l.Tones()

	l.Reset()
	if len(l.Schedule()) != 0 {
		t.Fatalf("expected empty schedule after reset")
	}
	if len(l.ActivePeaks()) != 0 {
		t.Fatalf("expected no peaks after reset")
	}
	if l.Oscillator(4).Amplitude() != 0 || l.Oscillator(4).IsPeak() {
		t.Fatalf("expected amplitudes cleared")
	}
	assertSameTones(t, l.Tones(), tones)

	if err := l.UpdateAmplitudes(amps, []int{4, 12}); err != nil {
		t.Fatalf("update: %v", err)
	}
	assertSameTones(t, l.Tones(), tones)
}

func TestLayerRetuneChangesEveryTone(t *testing.T) {
	l := newTestLayer(t, linearFreqs(t, 60), 60, 3)
	if err := l.UpdateAmplitudes(make([]float64, 60), []int{5, 20, 40, 55}); err != nil {
		t.Fatalf("update: %v", err)
	}
	before := l.Tones()
	l.Retune()
	after := l.Tones()

	if len(after) != len(before) {
		t.Fatalf("retune should keep the same keys: got=%v want=%v", after, before)
	}
	for i, n := range before {
		if after[i] == n {
			t.Fatalf("tone at %d unchanged after retune: %s", i, n)
		}
	}
	for _, s := range l.Schedule() {
		for _, n := range s.Notes {
			found := false
			for _, a := range after {
				if a == n {
					found = true
				}
			}
			if !found {
				t.Fatalf("schedule holds stale note %s", n)
			}
		}
	}
}

func TestLayerSetTempoRebuildsSchedule(t *testing.T) {
	l := newTestLayer(t, []float64{1, 2, 3, 4}, 240, 2)
	if err := l.UpdateAmplitudes(make([]float64, 4), []int{3}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := len(l.Schedule()); got != 4 {
		t.Fatalf("expected 4 slots at 240bpm, got %d", got)
	}
	if err := l.SetTempo(120); err != nil {
		t.Fatalf("set tempo: %v", err)
	}
	if got := len(l.Schedule()); got != 8 {
		t.Fatalf("expected 8 slots at 120bpm, got %d", got)
	}
	for _, bpm := range []float64{0, math.NaN(), math.Inf(1)} {
		if err := l.SetTempo(bpm); !errors.Is(err, ErrBadTempo) {
			t.Fatalf("tempo %v: expected ErrBadTempo, got %v", bpm, err)
		}
	}
	if got := len(l.Schedule()); got != 8 {
		t.Fatalf("rejected tempo should keep the schedule, got %d slots", got)
	}
}

func TestNewLayerRejectsDegenerateParams(t *testing.T) {
	pal := newTestPalette(t)

	tests := []struct {
		name string
		p    LayerParams
		want error
	}{
		{"no oscillators", LayerParams{Tempo: 60, Palette: pal}, ErrNoOscillators},
		{"zero tempo", LayerParams{Frequencies: []float64{1}, Tempo: 0, Palette: pal}, ErrBadTempo},
		{"negative drift", LayerParams{Frequencies: []float64{1}, Tempo: 60, DriftThreshold: -1, Palette: pal}, ErrBadDrift},
		{"no palette", LayerParams{Frequencies: []float64{1}, Tempo: 60}, ErrPaletteTooSmall},
		{"zero frequency", LayerParams{Frequencies: []float64{0, 1}, Tempo: 60, Palette: pal}, ErrBadFrequency},
		{"unsorted", LayerParams{Frequencies: []float64{2, 1}, Tempo: 60, Palette: pal}, ErrBadFrequency},
		{"infinite frequency", LayerParams{Frequencies: []float64{1, math.Inf(1)}, Tempo: 60, Palette: pal}, ErrBadFrequency},
		{"NaN frequency", LayerParams{Frequencies: []float64{math.NaN()}, Tempo: 60, Palette: pal}, ErrBadFrequency},
		{"infinite tempo", LayerParams{Frequencies: []float64{1}, Tempo: math.Inf(1), Palette: pal}, ErrBadTempo},
		{"NaN tempo", LayerParams{Frequencies: []float64{1}, Tempo: math.NaN(), Palette: pal}, ErrBadTempo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewLayer(tt.p); !errors.Is(err, tt.want) {
				t.Fatalf("got=%v want=%v", err, tt.want)
			}
		})
	}
}

func assertSameSchedule(t *testing.T, got, want []Slot) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("schedule length: got=%d want=%d", len(got), len(want))
	}
	for i := range got {
		if got[i].Offset != want[i].Offset || len(got[i].Notes) != len(want[i].Notes) {
			t.Fatalf("slot %d: got=%+v want=%+v", i, got[i], want[i])
		}
		for j := range got[i].Notes {
			if got[i].Notes[j] != want[i].Notes[j] {
				t.Fatalf("slot %d note %d: got=%s want=%s", i, j, got[i].Notes[j], want[i].Notes[j])
			}
		}
	}
}

func assertSameTones(t *testing.T, got, want map[int]Note) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("tone count: got=%d want=%d", len(got), len(want))
	}
	for i, n := range want {
		if got[i] != n {
			t.Fatalf("tone %d: got=%s want=%s", i, got[i], n)
		}
	}
}
