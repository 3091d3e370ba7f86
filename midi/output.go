package midi

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"

	"go-sonify/debug"
	"go-sonify/sequencer"
)

// Output plays the merged schedule on a MIDI output port. It implements
// sequencer.Player: each measure is dispatched on its own goroutine so the
// measure clock never waits on device I/O.
type Output struct {
	send     func(gomidi.Message) error
	channel  uint8 // 0-15
	velocity uint8
	gate     time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.Mutex
	held map[uint8]int // sounding notes, for all-notes-off on close
}

// OpenOutput finds the named output port and opens it.
// channel is 1-16 as shown to users.
func OpenOutput(portName string, channel, velocity int, gate time.Duration) (*Output, error) {
	for _, port := range gomidi.GetOutPorts() {
		if port.String() == portName {
			send, err := gomidi.SendTo(port)
			if err != nil {
				return nil, fmt.Errorf("open output %q: %w", portName, err)
			}
			return NewOutput(send, channel, velocity, gate), nil
		}
	}
	return nil, fmt.Errorf("output port %q not found", portName)
}

// NewOutput wraps a send function
func NewOutput(send func(gomidi.Message) error, channel, velocity int, gate time.Duration) *Output {
	ctx, cancel := context.WithCancel(context.Background())
	return &Output{
		send:     send,
		channel:  uint8(clamp(channel, 1, 16) - 1),
		velocity: uint8(clamp(velocity, 1, 127)),
		gate:     gate,
		ctx:      ctx,
		cancel:   cancel,
		held:     make(map[uint8]int),
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// PlayMeasure schedules one measure of entries relative to start
func (o *Output) PlayMeasure(start time.Time, measure time.Duration, entries []sequencer.Entry) {
	if len(entries) == 0 {
		return
	}
	events := EventsForMeasure(entries, o.velocity, o.gate)
	debug.Log("midi", "measure: %d entries -> %d events (%v)", len(entries), len(events), measure)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.dispatch(start, events)
	}()
}

// dispatch waits for each event's time and sends it
func (o *Output) dispatch(start time.Time, events []Event) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for _, evt := range events {
		wait := time.Until(start.Add(evt.At))
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-o.ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		} else if o.ctx.Err() != nil {
			return
		}
		o.sendEvent(evt)
	}
}

func (o *Output) sendEvent(evt Event) {
	o.mu.Lock()
	defer o.mu.Unlock()

	var err error
	switch evt.Type {
	case NoteOn:
		o.held[evt.Note]++
		err = o.send(gomidi.NoteOn(o.channel, evt.Note, evt.Velocity))
	case NoteOff:
		if o.held[evt.Note] > 0 {
			o.held[evt.Note]--
		}
		if o.held[evt.Note] == 0 {
			delete(o.held, evt.Note)
		}
		err = o.send(gomidi.NoteOff(o.channel, evt.Note))
	}
	if err != nil {
		debug.LogEvery(20, "midi", "send failed: %v", err)
	}
}

// Close stops pending measures and releases any sounding notes
func (o *Output) Close() error {
	o.cancel()
	o.wg.Wait()

	o.mu.Lock()
	defer o.mu.Unlock()
	for note := range o.held {
		o.send(gomidi.NoteOff(o.channel, note))
	}
	o.held = make(map[uint8]int)
	return nil
}
