package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Cell is one coloured glyph of a strip
type Cell struct {
	Color [3]uint8
	Glyph rune
	Bold  bool
}

// RenderCell renders a single coloured glyph
func RenderCell(c Cell) string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(rgbToHex(c.Color))).Bold(c.Bold)
	return style.Render(string(c.Glyph))
}

// RenderStrip renders cells side by side
func RenderStrip(cells []Cell) string {
	var out strings.Builder
	for _, c := range cells {
		out.WriteString(RenderCell(c))
	}
	return out.String()
}

// Column is a down-sampled run of oscillators
type Column struct {
	Amplitude float64 // loudest in the run
	Peak      bool    // any peak in the run
	Phase     float64 // phase of the peak (or loudest) oscillator
}

// Downsample folds n oscillators into at most cols columns. amps, peaks and
// phases must have equal length.
func Downsample(amps []float64, peaks []bool, phases []float64, cols int) []Column {
	n := len(amps)
	if cols <= 0 || n == 0 {
		return nil
	}
	if cols > n {
		cols = n
	}
	out := make([]Column, cols)
	for c := range out {
		lo := c * n / cols
		hi := (c + 1) * n / cols
		col := Column{Amplitude: -1}
		for i := lo; i < hi; i++ {
			switch {
			case peaks[i] && !col.Peak:
				col.Peak = true
				col.Phase = phases[i]
			case !col.Peak && amps[i] > col.Amplitude:
				col.Phase = phases[i]
			}
			if amps[i] > col.Amplitude {
				col.Amplitude = amps[i]
			}
		}
		out[c] = col
	}
	return out
}

// RenderKeyHelp formats key bindings in a friendly way
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			lines = append(lines, fmt.Sprintf("  %-12s %s", k.Key, k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}

// RenderKeyLine formats key bindings on one line: "r:reset  l:lock"
func RenderKeyLine(keys []KeyBinding) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k.Key + ":" + k.Desc
	}
	return strings.Join(parts, "  ")
}

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}

func rgbToHex(c [3]uint8) string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}
