package grfnn

import (
	"math"
	"time"
)

// MaxGap bounds the silence zero-padded before one hit
const MaxGap = 30 * time.Second

// Driver turns timestamped drum hits into the model's input series: the
// silence since the previous hit becomes zero samples, then the hit itself
// is one scaled impulse.
type Driver struct {
	model *Model
	rate  float64
	scale float64
	last  time.Time
}

// NewDriver starts counting silence from start
func NewDriver(m *Model, sampleRate, velocityScale float64, start time.Time) *Driver {
	return &Driver{model: m, rate: sampleRate, scale: velocityScale, last: start}
}

func (d *Driver) Model() *Model { return d.model }

// Hit feeds one stroke and returns how many samples were stepped
func (d *Driver) Hit(at time.Time, velocity uint8) int {
	gap := min(max(at.Sub(d.last), 0), MaxGap)
	if at.After(d.last) {
		d.last = at
	}

	silent := int(math.Floor(gap.Seconds() * d.rate))
	for range silent {
		d.model.Step(0)
	}
	d.model.Step(float64(velocity) * d.scale)
	return silent + 1
}
