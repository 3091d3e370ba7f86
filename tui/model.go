package tui

import (
	"fmt"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-sonify/debug"
	"go-sonify/midi"
	"go-sonify/sequencer"
	"go-sonify/theme"
	"go-sonify/widgets"
)

const (
	defaultWidth = 80
	labelWidth   = 26 // "▶ L1 ■ tones:12 peaks:12 "
	minStrip     = 16
	maxListed    = 8 // schedule entries spelled out under the timeline
	tempoStep    = 5
)

var keys = []widgets.KeyBinding{
	{Key: "r", Desc: "reset"},
	{Key: "l", Desc: "lock"},
	{Key: "t", Desc: "new tones"},
	{Key: "n", Desc: "new layer"},
	{Key: "+/-", Desc: "tempo"},
	{Key: "q", Desc: "quit"},
}

// Clients reports connected feed clients
type Clients interface {
	Clients() int
}

type Model struct {
	Manager   *sequencer.Manager
	DeviceMgr *midi.DeviceManager // may be nil
	Feed      Clients             // may be nil
	Theme     *theme.Theme

	width      int
	quitting   bool
	controller midi.Controller // current pad controller (may be nil)
}

type UpdateMsg struct{}

type DeviceEventMsg midi.DeviceEvent

func NewModel(manager *sequencer.Manager, deviceMgr *midi.DeviceManager, feed Clients, th *theme.Theme) Model {
	return Model{
		Manager:   manager,
		DeviceMgr: deviceMgr,
		Feed:      feed,
		Theme:     th,
		width:     defaultWidth,
	}
}

func ListenForUpdates(manager *sequencer.Manager) tea.Cmd {
	return func() tea.Msg {
		<-manager.UpdateChan
		return UpdateMsg{}
	}
}

func ListenForDevices(deviceMgr *midi.DeviceManager) tea.Cmd {
	if deviceMgr == nil {
		return nil
	}
	return func() tea.Msg {
		event, ok := <-deviceMgr.Events()
		if !ok {
			return nil
		}
		return DeviceEventMsg(event)
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		ListenForUpdates(m.Manager),
		ListenForDevices(m.DeviceMgr),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.Manager.Apply(sequencer.ActionReset)
		case "l":
			m.Manager.Apply(sequencer.ActionLock)
		case "t":
			m.Manager.Apply(sequencer.ActionNewTones)
		case "n":
			m.Manager.Apply(sequencer.ActionNewLayer)
		case "+", "=":
			m.Manager.SetTempo(int(math.Round(m.Manager.Snapshot().Tempo)) + tempoStep)
		case "-", "_":
			m.Manager.SetTempo(int(math.Round(m.Manager.Snapshot().Tempo)) - tempoStep)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case UpdateMsg:
		return m, ListenForUpdates(m.Manager)

	case DeviceEventMsg:
		event := midi.DeviceEvent(msg)
		switch event.Type {
		case midi.DeviceConnected:
			m.controller = event.Controller

			// Forward pad actions to the ensemble
			go func(c midi.Controller) {
				for a := range c.Actions() {
					m.Manager.Apply(a)
				}
			}(event.Controller)
		case midi.DeviceDisconnected:
			if m.controller != nil && m.controller.ID() == event.ID {
				m.controller = nil
			}
		}
		debug.Log("tui", "device event %d %s", event.Type, event.ID)
		return m, ListenForDevices(m.DeviceMgr)
	}

	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	snap := m.Manager.Snapshot()

	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(headerStyle.Render(m.header(snap)))
	out.WriteString("\n\n")

	cols := max(minStrip, m.width-labelWidth)
	for i, layer := range snap.Layers {
		out.WriteString(m.layerLabel(i, i == snap.Active, layer))
		out.WriteString(m.strip(layer, cols))
		out.WriteString("\n")
	}

	out.WriteString("\n")
	out.WriteString(m.schedule(snap, cols))
	out.WriteString("\n\n")
	out.WriteString(dimStyle.Render(widgets.RenderKeyLine(keys)))
	return out.String()
}

func (m Model) header(snap *sequencer.Snapshot) string {
	feed := "off"
	if m.Feed != nil {
		feed = fmt.Sprintf("%d", m.Feed.Clients())
	}
	pads := "-"
	if m.controller != nil {
		pads = m.controller.ID()
	}
	return fmt.Sprintf("go-sonify  %3.0fbpm  layer %d/%d  feed:%s  pads:%s",
		snap.Tempo, snap.Active+1, len(snap.Layers), feed, pads)
}

func (m Model) layerLabel(i int, active bool, layer sequencer.LayerState) string {
	sym := m.Theme.Symbols
	marker, lock := ' ', sym.Unlocked
	if active {
		marker = sym.Active
	}
	if layer.Locked {
		lock = sym.Locked
	}
	label := fmt.Sprintf("%c L%d %c tones:%2d peaks:%2d ", marker, i+1, lock, layer.Tones, len(layer.Peaks))

	style := lipgloss.NewStyle().Foreground(m.Theme.FG())
	if active {
		style = style.Foreground(m.Theme.Active()).Bold(true)
	} else if layer.Locked {
		style = style.Foreground(m.Theme.Muted())
	}
	return style.Render(label)
}

// strip renders one layer's oscillators, folded into cols columns
func (m Model) strip(layer sequencer.LayerState, cols int) string {
	n := len(layer.Oscillators)
	amps := make([]float64, n)
	peaks := make([]bool, n)
	phases := make([]float64, n)
	for i, o := range layer.Oscillators {
		amps[i], peaks[i], phases[i] = o.Amplitude, o.Peak, o.Phase
	}

	columns := widgets.Downsample(amps, peaks, phases, cols)
	cells := make([]widgets.Cell, len(columns))
	for i, c := range columns {
		cell := widgets.Cell{
			Color: m.Theme.Palette.Lookup(c.Amplitude),
			Glyph: m.Theme.Level(c.Amplitude),
		}
		if c.Peak {
			// peaks pulse with their oscillator
			cell.Color = m.Theme.Palette.Lookup(0.5 + 0.5*c.Phase)
			cell.Glyph = m.Theme.Symbols.Peak
			cell.Bold = true
		}
		cells[i] = cell
	}
	return widgets.RenderStrip(cells)
}

// schedule renders the merged schedule as a timeline over one measure,
// followed by the first few entries spelled out
func (m Model) schedule(snap *sequencer.Snapshot, cols int) string {
	sym := m.Theme.Symbols
	line := []rune(strings.Repeat(string(sym.Rest), cols))
	measure := snap.Measure.Seconds()
	for _, e := range snap.Merged {
		if measure <= 0 {
			break
		}
		pos := int(e.Offset / measure * float64(cols))
		if pos >= 0 && pos < cols {
			line[pos] = sym.Onset
		}
	}

	var parts []string
	for i, e := range snap.Merged {
		if i == maxListed {
			parts = append(parts, fmt.Sprintf("+%d", len(snap.Merged)-maxListed))
			break
		}
		names := make([]string, 0, len(e.Notes()))
		for _, n := range e.Notes() {
			names = append(names, n.String())
		}
		parts = append(parts, fmt.Sprintf("%.2f %s", e.Offset, strings.Join(names, " ")))
	}

	label := lipgloss.NewStyle().Foreground(m.Theme.FG()).Render(fmt.Sprintf("%-*s", labelWidth, fmt.Sprintf("  schedule %d", len(snap.Merged))))
	timeline := lipgloss.NewStyle().Foreground(m.Theme.Peak()).Render(string(line))
	listing := lipgloss.NewStyle().Foreground(m.Theme.Muted()).Render(strings.Join(parts, " | "))
	return label + timeline + "\n" + strings.Repeat(" ", labelWidth) + listing
}
