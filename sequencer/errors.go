package sequencer

import "errors"

// Feed data errors
var (
	ErrLengthMismatch = errors.New("amplitude vector length mismatch")
	ErrPeakOutOfRange = errors.New("peak index out of range")
	ErrLocked         = errors.New("layer is locked")
)

// Construction errors
var (
	ErrNoLayers        = errors.New("ensemble needs at least one layer")
	ErrNoOscillators   = errors.New("layer needs at least one oscillator")
	ErrBadTempo        = errors.New("tempo must be positive")
	ErrBadFrequency    = errors.New("invalid frequency range")
	ErrPaletteTooSmall = errors.New("note palette needs more than one note")
	ErrBadDrift        = errors.New("drift threshold must not be negative")
)
