package tui

import (
	"math/rand/v2"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"go-sonify/sequencer"
	"go-sonify/theme"
)

type fixedClients int

func (f fixedClients) Clients() int { return int(f) }

func newTestModel(t *testing.T) Model {
	t.Helper()
	palette, err := sequencer.NewNotePalette(4, 4)
	if err != nil {
		t.Fatalf("palette: %v", err)
	}
	e, err := sequencer.NewEnsemble(sequencer.EnsembleParams{
		Layers:         2,
		Frequencies:    []float64{1, 2, 3, 4},
		Tempo:          240,
		DriftThreshold: 2,
		Palette:        palette,
		Rand:           rand.New(rand.NewPCG(1, 2)),
	})
	if err != nil {
		t.Fatalf("ensemble: %v", err)
	}
	return NewModel(sequencer.NewManager(e, nil, 0), nil, fixedClients(3), theme.New(theme.DefaultPalette()))
}

func press(m Model, key string) Model {
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)})
	return next.(Model)
}

func TestKeysDriveManager(t *testing.T) {
	m := newTestModel(t)

	m = press(m, "l")
	if !m.Manager.Snapshot().Layers[0].Locked {
		t.Fatalf("l should lock the active layer")
	}
	m = press(m, "l")
	m = press(m, "n")
	snap := m.Manager.Snapshot()
	if snap.Active != 1 || !snap.Layers[0].Locked {
		t.Fatalf("n should lock and switch: active=%d locked=%v", snap.Active, snap.Layers[0].Locked)
	}

	m = press(m, "+")
	if got := m.Manager.Snapshot().Tempo; got != 245 {
		t.Fatalf("tempo: got=%v want=245", got)
	}
	m = press(m, "-")
	m = press(m, "-")
	if got := m.Manager.Snapshot().Tempo; got != 235 {
		t.Fatalf("tempo: got=%v want=235", got)
	}
}

func TestViewShowsState(t *testing.T) {
	m := newTestModel(t)
	if err := m.Manager.Update([]float64{1, 0, 1, 0}, []int{0, 2}); err != nil {
		t.Fatalf("update: %v", err)
	}

	view := m.View()
	for _, want := range []string{"240bpm", "layer 1/2", "feed:3", "L1", "L2", "schedule 3", "q:quit"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}
}

func TestQuit(t *testing.T) {
	m := newTestModel(t)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil || next.(Model).View() != "" {
		t.Fatalf("q should quit")
	}
}
