package midi

import "go-sonify/sequencer"

// Controller is the interface for MIDI control inputs
type Controller interface {
	ID() string

	// Control actions decoded from the device
	Actions() <-chan sequencer.Action

	// Played hits, for inputs that drive an oscillator model
	Hits() <-chan Hit

	// Lifecycle
	Close() error
}
