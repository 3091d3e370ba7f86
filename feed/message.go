// Package feed carries amplitude/peak updates and control actions over a
// websocket. Producers (the oscillator model, feedsim) send frames to the
// server, which applies them to the running ensemble and relays them to every
// other connected client.
package feed

import (
	"encoding/json"
	"fmt"
)

// Wire keys
const (
	KeyData   = "GrFNN_Data"
	KeyAction = "GrFNN_Action"
	KeyAmps   = "GrFNN_Amps"
	KeyPeaks  = "GrFNN_Peaks"
	KeyError  = "error"
)

// Message is one JSON text frame: {"type": ..., "data": ...}
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Data is the GrFNN_Data payload. Peaks is nil when the producer left it
// out or sent null, in which case the server derives peaks from the
// amplitudes. An empty list means no peaks.
type Data struct {
	Amps  []float64 `json:"GrFNN_Amps"`
	Peaks []int     `json:"GrFNN_Peaks"`
}

// NewDataMessage encodes an amplitude/peak update
func NewDataMessage(amps []float64, peaks []int) (Message, error) {
	raw, err := json.Marshal(Data{Amps: amps, Peaks: peaks})
	if err != nil {
		return Message{}, fmt.Errorf("encode data: %w", err)
	}
	return Message{Type: KeyData, Data: raw}, nil
}

// NewActionMessage encodes a control action tag (RESET, LOCK, ...)
func NewActionMessage(tag string) (Message, error) {
	raw, err := json.Marshal(tag)
	if err != nil {
		return Message{}, fmt.Errorf("encode action: %w", err)
	}
	return Message{Type: KeyAction, Data: raw}, nil
}

func errorMessage(msg string) Message {
	raw, _ := json.Marshal(msg)
	return Message{Type: KeyError, Data: raw}
}

// DecodeData parses a GrFNN_Data payload
func (m Message) DecodeData() (Data, error) {
	var d Data
	if err := json.Unmarshal(m.Data, &d); err != nil {
		return Data{}, fmt.Errorf("decode data: %w", err)
	}
	return d, nil
}

// DecodeString parses a string payload (action tags, error text)
func (m Message) DecodeString() (string, error) {
	var s string
	if err := json.Unmarshal(m.Data, &s); err != nil {
		return "", fmt.Errorf("decode %s: %w", m.Type, err)
	}
	return s, nil
}
