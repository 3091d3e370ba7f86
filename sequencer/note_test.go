package sequencer

import (
	"errors"
	"math/rand/v2"
	"testing"
)

func TestNoteMIDIAndString(t *testing.T) {
	tests := []struct {
		note Note
		midi uint8
		str  string
	}{
		{Note{Letter: 'C', Octave: 4}, 60, "C4"},
		{Note{Letter: 'A', Octave: 4}, 69, "A4"},
		{Note{Letter: 'B', Octave: 3}, 59, "B3"},
		{Note{Letter: 'C', Octave: -1}, 0, "C-1"},
		{Note{Letter: 'G', Octave: 9}, 127, "G9"},
		{Note{Letter: 'B', Octave: 12}, 127, "B12"},
	}
	for _, tt := range tests {
		if got := tt.note.MIDI(); got != tt.midi {
			t.Fatalf("%s MIDI: got=%d want=%d", tt.str, got, tt.midi)
		}
		if got := tt.note.String(); got != tt.str {
			t.Fatalf("String: got=%q want=%q", got, tt.str)
		}
	}
	if !(Note{}).IsZero() || (Note{}).String() != "--" {
		t.Fatalf("zero note should render as no tone")
	}
}

func TestNotePalette(t *testing.T) {
	p, err := NewNotePalette(3, 4)
	if err != nil {
		t.Fatalf("palette: %v", err)
	}
	if p.Len() != 14 {
		t.Fatalf("palette size: got=%d want=14", p.Len())
	}
	if _, err := NewNotePalette(5, 4); !errors.Is(err, ErrPaletteTooSmall) {
		t.Fatalf("inverted range: got %v", err)
	}
}

func TestRandomExceptNeverRepeats(t *testing.T) {
	p, err := NewNotePalette(4, 4)
	if err != nil {
		t.Fatalf("palette: %v", err)
	}
	rng := rand.New(rand.NewPCG(5, 6))
	seen := map[Note]bool{}
	cur := p.Random(rng)
	for i := 0; i < 500; i++ {
		next := p.RandomExcept(rng, cur)
		if next == cur {
			t.Fatalf("draw %d repeated %s", i, cur)
		}
		seen[next] = true
		cur = next
	}
	if len(seen) != p.Len() {
		t.Fatalf("expected every note reachable, saw %d of %d", len(seen), p.Len())
	}
}

func TestActionTags(t *testing.T) {
	for _, a := range []Action{ActionReset, ActionLock, ActionNewTones, ActionNewLayer} {
		if got := ParseAction(a.Tag()); got != a {
			t.Fatalf("round trip %s: got %s", a, got)
		}
	}
	if ParseAction("SHUFFLE") != ActionNone || ParseAction("") != ActionNone {
		t.Fatalf("unknown tags should parse to NONE")
	}
	if ParseAction("lock") != ActionNone {
		t.Fatalf("tags are case sensitive")
	}
}

func TestRimAction(t *testing.T) {
	want := map[int]Action{0: ActionNone, 1: ActionLock, 2: ActionNewLayer, 3: ActionReset, 4: ActionNone}
	for hits, a := range want {
		if got := RimAction(hits); got != a {
			t.Fatalf("%d hits: got=%s want=%s", hits, got, a)
		}
	}
}
