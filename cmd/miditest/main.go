package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"go-sonify/config"
	"go-sonify/midi"
	"go-sonify/sequencer"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "list":
		listPorts()
	case "pads":
		monitorPads(arg(2, config.DefaultConfig().MIDI.PadPort))
	case "note":
		testNotes(arg(2, ""))
	case "poll":
		pollDevices()
	default:
		usage()
	}
}

func arg(i int, fallback string) string {
	if len(os.Args) > i {
		return os.Args[i]
	}
	return fallback
}

func usage() {
	fmt.Println("MIDI Test Scripts")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list          - List all MIDI ports")
	fmt.Println("  pads [match]  - Print control actions from a drum-pad input")
	fmt.Println("  note <port>   - Play a test measure on an output port")
	fmt.Println("  poll          - Poll for device changes")
}

func listPorts() {
	fmt.Println("=== MIDI Input Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")

	type result struct {
		ins  []drivers.In
		outs []drivers.Out
	}
	ch := make(chan result, 1)
	go func() {
		ins := gomidi.GetInPorts()
		outs := gomidi.GetOutPorts()
		ch <- result{ins: ins, outs: outs}
	}()

	select {
	case r := <-ch:
		for i, p := range r.ins {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
		fmt.Println("\n=== MIDI Output Ports ===")
		for i, p := range r.outs {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
	case <-time.After(3 * time.Second):
		fmt.Println("\nTIMEOUT! CoreMIDI is hung.")
		fmt.Println("Fix: sudo killall coreaudiod midiserver")
	}
}

func monitorPads(match string) {
	fmt.Printf("Waiting for an input matching %q. Ctrl+C to exit.\n", match)
	fmt.Println("Pedal = NEW_TONES, rim x1 = LOCK, x2 = NEW_GRFNN, x3 = RESET")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	dm := midi.NewDeviceManager(match, midi.DefaultPadConfig())
	go dm.Run(ctx)

	for event := range dm.Events() {
		switch event.Type {
		case midi.DeviceConnected:
			fmt.Printf("[%s] connected: %s\n", time.Now().Format("15:04:05"), event.ID)
			go func(c midi.Controller) {
				for a := range c.Actions() {
					fmt.Printf("[%s] %s\n", time.Now().Format("15:04:05.000"), a)
				}
			}(event.Controller)
		case midi.DeviceDisconnected:
			fmt.Printf("[%s] disconnected: %s\n", time.Now().Format("15:04:05"), event.ID)
		}
	}
}

func testNotes(port string) {
	if port == "" {
		fmt.Println("usage: miditest note <output port>")
		return
	}
	out, err := midi.OpenOutput(port, 1, 100, 150*time.Millisecond)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer out.Close()

	c4 := sequencer.Note{Letter: 'C', Octave: 4}
	e4 := sequencer.Note{Letter: 'E', Octave: 4}
	g4 := sequencer.Note{Letter: 'G', Octave: 4}
	entries := []sequencer.Entry{
		{Offset: 0, Chord: []sequencer.Note{c4, e4, g4}},
		{Offset: 0.5, Note: e4},
		{Offset: 1, Note: g4},
		{Offset: 1.5, Note: c4},
	}

	fmt.Printf("Playing a 2s test measure on %s...\n", port)
	out.PlayMeasure(time.Now(), 2*time.Second, entries)
	time.Sleep(2 * time.Second)
	fmt.Println("Done!")
}

func pollDevices() {
	fmt.Println("Polling for device changes every 2 seconds...")
	fmt.Println("Connect/disconnect pads to test. Ctrl+C to exit.")

	padPort := strings.ToLower(config.DefaultConfig().MIDI.PadPort)
	lastIn := ""
	lastOut := ""

	for {
		ins := gomidi.GetInPorts()
		outs := gomidi.GetOutPorts()

		var inNames, outNames []string
		for _, p := range ins {
			inNames = append(inNames, p.String())
		}
		for _, p := range outs {
			outNames = append(outNames, p.String())
		}

		currentIn := strings.Join(inNames, ",")
		currentOut := strings.Join(outNames, ",")

		if currentIn != lastIn || currentOut != lastOut {
			fmt.Printf("\n[%s] Device change detected!\n", time.Now().Format("15:04:05"))
			fmt.Printf("  Inputs: %v\n", inNames)
			fmt.Printf("  Outputs: %v\n", outNames)

			for _, name := range inNames {
				if strings.Contains(strings.ToLower(name), padPort) {
					fmt.Println("  -> Pads detected!")
				}
			}

			lastIn = currentIn
			lastOut = currentOut
		}

		time.Sleep(2 * time.Second)
	}
}
