package midi

import (
	"testing"
	"time"

	"go-sonify/sequencer"
)

func newTestPads(t *testing.T) *PadController {
	t.Helper()
	pc, err := NewPadController("test", nil, PadConfig{RimNote: 15, PedalNote: 46, Window: 30 * time.Millisecond, TomNotes: []uint8{47, 48}})
	if err != nil {
		t.Fatalf("new pads: %v", err)
	}
	t.Cleanup(func() { pc.Close() })
	return pc
}

func nextAction(t *testing.T, pc *PadController) sequencer.Action {
	t.Helper()
	select {
	case a := <-pc.Actions():
		return a
	case <-time.After(time.Second):
		t.Fatalf("no action emitted")
		return sequencer.ActionNone
	}
}

func TestPadPedalEmitsNewTones(t *testing.T) {
	pc := newTestPads(t)
	pc.handleNote(46, 100, time.Now())
	if a := nextAction(t, pc); a != sequencer.ActionNewTones {
		t.Fatalf("got=%s want=%s", a, sequencer.ActionNewTones)
	}
}

func TestPadRimCounting(t *testing.T) {
	tests := []struct {
		hits int
		want sequencer.Action
	}{
		{1, sequencer.ActionLock},
		{2, sequencer.ActionNewLayer},
		{3, sequencer.ActionReset},
	}
	for _, tt := range tests {
		pc := newTestPads(t)
		for range tt.hits {
			pc.handleNote(15, 90, time.Now())
		}
		if a := nextAction(t, pc); a != tt.want {
			t.Fatalf("%d hits: got=%s want=%s", tt.hits, a, tt.want)
		}
	}
}

func TestPadIgnoresOtherInput(t *testing.T) {
	pc := newTestPads(t)
	pc.handleNote(15, 0, time.Now()) // release
	pc.handleNote(38, 100, time.Now())
	for range 4 {
		pc.handleNote(15, 100, time.Now())
	}

	select {
	case a := <-pc.Actions():
		t.Fatalf("unexpected action %s", a)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPadTomHitsReported(t *testing.T) {
	pc := newTestPads(t)
	at := time.Unix(100, 0)
	pc.handleNote(47, 0, at) // release
	pc.handleNote(38, 100, at)
	pc.handleNote(48, 64, at)

	select {
	case h := <-pc.Hits():
		if h.Note != 48 || h.Velocity != 64 || !h.At.Equal(at) {
			t.Fatalf("hit: got=%+v", h)
		}
	case <-time.After(time.Second):
		t.Fatalf("no hit reported")
	}
	select {
	case h := <-pc.Hits():
		t.Fatalf("unexpected hit %+v", h)
	case a := <-pc.Actions():
		t.Fatalf("tom hit should not act, got %s", a)
	default:
	}
}

func TestPadCloseIsIdempotent(t *testing.T) {
	pc := newTestPads(t)
	pc.handleNote(15, 100, time.Now())
	if err := pc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := pc.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	pc.handleNote(46, 100, time.Now())
	if _, ok := <-pc.Actions(); ok {
		t.Fatalf("actions should be closed and empty")
	}
	pc.handleNote(47, 100, time.Now())
	if _, ok := <-pc.Hits(); ok {
		t.Fatalf("hits should be closed and empty")
	}
}

func TestMatchPort(t *testing.T) {
	if !matchPort("DTX Drums Port 1", "dtx drums") {
		t.Fatalf("case-insensitive substring should match")
	}
	if matchPort("IAC Bus 1", "dtx") || matchPort("anything", "") {
		t.Fatalf("unexpected match")
	}
}
