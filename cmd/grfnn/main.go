// grfnn drives an oscillator bank from live tom hits and streams its
// amplitudes and peaks to a running go-sonify. Rim and pedal hits on the same
// kit are forwarded as control actions.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"time"

	"go-sonify/config"
	"go-sonify/debug"
	"go-sonify/feed"
	"go-sonify/grfnn"
	"go-sonify/midi"
	"go-sonify/sequencer"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("grfnn", flag.ContinueOnError)
	defaultPath, _ := config.ConfigPath()
	configPath := fs.String("config", defaultPath, "config file")
	url := fs.String("url", "", "feed server (default from config)")
	port := fs.String("port", "", "drum input port match (default from config)")
	seed := fs.Uint64("seed", uint64(time.Now().UnixNano()), "random seed")
	logPath := fs.String("log", "", "debug log file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *logPath != "" {
		if err := debug.Enable(*logPath); err != nil {
			fmt.Fprintf(os.Stderr, "debug log: %v\n", err)
		}
		defer debug.Disable()
	}

	cfg, err := config.LoadFrom(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}
	if *url == "" {
		*url = "ws://" + cfg.Feed.Listen + cfg.Feed.Path
	}
	if *port == "" {
		*port = cfg.MIDI.PadPort
	}

	model, err := newModel(cfg, rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "model: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	client, err := feed.Dial(dialCtx, *url)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer client.Close()

	go func() {
		for {
			msg, err := client.Read()
			if err != nil {
				return
			}
			if msg.Type == feed.KeyError {
				text, _ := msg.DecodeString()
				fmt.Fprintf(os.Stderr, "server: %s\n", text)
			}
		}
	}()

	dm := midi.NewDeviceManager(*port, padConfig(cfg))
	go dm.Run(ctx)

	p := &producer{
		driver: grfnn.NewDriver(model, cfg.GrFNN.SampleRate, cfg.GrFNN.VelocityScale, time.Now()),
		sink:   client,
		window: cfg.Feed.SmoothWindow,
		order:  cfg.Feed.PeakOrder,
	}

	fmt.Printf("%d oscillators %g..%gHz, waiting for %q, sending to %s\n",
		model.Len(), cfg.Model.FromFreq, cfg.Model.ToFreq, *port, *url)

	hits := make(chan midi.Hit, 64)
	actions := make(chan sequencer.Action, 16)
	for {
		select {
		case <-ctx.Done():
			fmt.Printf("\nsent %d frames\n", p.sent)
			return 0
		case event, ok := <-dm.Events():
			if !ok {
				return 0
			}
			if event.Type == midi.DeviceConnected {
				fmt.Printf("[%s] connected: %s\n", time.Now().Format("15:04:05"), event.ID)
				go forward(event.Controller, hits, actions)
			} else {
				fmt.Printf("[%s] disconnected: %s\n", time.Now().Format("15:04:05"), event.ID)
			}
		case h := <-hits:
			if err := p.hit(h); err != nil {
				fmt.Fprintf(os.Stderr, "send: %v\n", err)
				return 1
			}
		case a := <-actions:
			if err := p.action(a); err != nil {
				fmt.Fprintf(os.Stderr, "send: %v\n", err)
				return 1
			}
		}
	}
}

func newModel(cfg *config.Config, rng *rand.Rand) (*grfnn.Model, error) {
	ftype := sequencer.FrequencyType(cfg.Model.FrequencyType)
	freqs, err := sequencer.Frequencies(cfg.Model.FromFreq, cfg.Model.ToFreq, cfg.Model.Oscillators, ftype)
	if err != nil {
		return nil, err
	}
	g := cfg.GrFNN
	return grfnn.New(grfnn.Config{
		Frequencies: freqs,
		Type:        ftype,
		Params: grfnn.Params{
			Alpha:  g.Alpha,
			Beta1:  g.Beta1,
			Beta2:  g.Beta2,
			Delta1: g.Delta1,
			Delta2: g.Delta2,
			Eps:    g.Epsilon,
		},
		SampleRate: g.SampleRate,
		Rand:       rng,
	})
}

func padConfig(cfg *config.Config) midi.PadConfig {
	toms := make([]uint8, len(cfg.MIDI.TomNotes))
	for i, n := range cfg.MIDI.TomNotes {
		toms[i] = uint8(n)
	}
	return midi.PadConfig{
		RimNote:   uint8(cfg.MIDI.RimNote),
		PedalNote: uint8(cfg.MIDI.PedalNote),
		Window:    time.Duration(cfg.MIDI.RimWindowMs) * time.Millisecond,
		TomNotes:  toms,
	}
}

// forward fans one controller's output into the main loop until it closes
func forward(c midi.Controller, hits chan<- midi.Hit, actions chan<- sequencer.Action) {
	go func() {
		for a := range c.Actions() {
			actions <- a
		}
	}()
	for h := range c.Hits() {
		hits <- h
	}
}

// sink is the part of feed.Client the producer writes to
type sink interface {
	SendData(amps []float64, peaks []int) error
	SendAction(a sequencer.Action) error
}

// producer owns the model; it is only touched from the main loop
type producer struct {
	driver *grfnn.Driver
	sink   sink
	window int
	order  int
	sent   int
}

// hit feeds one stroke and sends the normalized amplitudes with their peaks
func (p *producer) hit(h midi.Hit) error {
	n := p.driver.Hit(h.At, h.Velocity)
	amps := feed.Normalize(p.driver.Model().Amplitudes())
	peaks := feed.DerivePeaks(amps, p.window, p.order)
	if peaks == nil {
		peaks = []int{}
	}
	debug.Log("grfnn", "hit note=%d vel=%d samples=%d peaks=%d", h.Note, h.Velocity, n, len(peaks))
	if err := p.sink.SendData(amps, peaks); err != nil {
		return err
	}
	p.sent++
	return nil
}

// action relays a pad action; reset and new-layer also restart the model
func (p *producer) action(a sequencer.Action) error {
	if a == sequencer.ActionNone {
		return nil
	}
	if err := p.sink.SendAction(a); err != nil {
		return err
	}
	if a == sequencer.ActionReset || a == sequencer.ActionNewLayer {
		p.driver.Model().Reset()
	}
	return nil
}
