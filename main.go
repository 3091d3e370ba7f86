package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"go-sonify/config"
	"go-sonify/debug"
	"go-sonify/feed"
	"go-sonify/midi"
	"go-sonify/sequencer"
	"go-sonify/theme"
	"go-sonify/tui"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run returns the exit code so deferred cleanup (note-offs, log close)
// happens before the process exits
func run(args []string) int {
	fs := flag.NewFlagSet("go-sonify", flag.ContinueOnError)
	defaultPath, _ := config.ConfigPath()
	configPath := fs.String("config", defaultPath, "config file")
	logPath := fs.String("log", "", "debug log file (default ~/.config/go-sonify/debug.log)")
	noLog := fs.Bool("nolog", false, "disable the debug log")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if !*noLog {
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
	debug.Log("config", "loaded %s", *configPath)

	ensemble, err := buildEnsemble(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ensemble: %v\n", err)
		return 1
	}

	palette, err := theme.LoadOrDefault(cfg.UI.Palette)
	if err != nil {
		fmt.Fprintf(os.Stderr, "palette: %v\n", err)
		return 1
	}
	th := theme.New(palette)

	// Playback sink (optional)
	var player sequencer.Player
	if cfg.MIDI.OutputPort != "" {
		out, err := midi.OpenOutput(cfg.MIDI.OutputPort, cfg.MIDI.Channel, cfg.MIDI.Velocity,
			time.Duration(cfg.MIDI.GateMs)*time.Millisecond)
		if err != nil {
			fmt.Fprintf(os.Stderr, "midi output: %v\n", err)
			return 1
		}
		defer out.Close()
		player = out
	}

	manager := sequencer.NewManager(ensemble, player, cfg.Music.RenderFPS)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go manager.Run(ctx)

	// Amplitude/peak feed
	server := feed.NewServer(manager, feed.Options{
		SmoothWindow: cfg.Feed.SmoothWindow,
		PeakOrder:    cfg.Feed.PeakOrder,
	})
	go func() {
		if err := server.ListenAndServe(ctx, cfg.Feed.Listen, cfg.Feed.Path); err != nil {
			debug.Log("feed", "server stopped: %v", err)
		}
	}()

	// Drum pads (handles hot-plug)
	var deviceMgr *midi.DeviceManager
	if cfg.MIDI.PadPort != "" {
		deviceMgr = midi.NewDeviceManager(cfg.MIDI.PadPort, midi.PadConfig{
			RimNote:   uint8(cfg.MIDI.RimNote),
			PedalNote: uint8(cfg.MIDI.PedalNote),
			Window:    time.Duration(cfg.MIDI.RimWindowMs) * time.Millisecond,
		})
		go deviceMgr.Run(ctx)
	}

	// Live tempo changes
	if err := config.Watch(ctx, *configPath, func(c *config.Config) {
		manager.SetTempo(c.Music.Tempo)
	}); err != nil {
		debug.Log("config", "watch disabled: %v", err)
	}

	m := tui.NewModel(manager, deviceMgr, server, th)
	p := tea.NewProgram(m, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		return 1
	}
	return 0
}

func buildEnsemble(cfg *config.Config) (*sequencer.Ensemble, error) {
	freqs, err := sequencer.Frequencies(cfg.Model.FromFreq, cfg.Model.ToFreq, cfg.Model.Oscillators,
		sequencer.FrequencyType(cfg.Model.FrequencyType))
	if err != nil {
		return nil, err
	}
	notes, err := sequencer.NewNotePalette(cfg.Music.Octaves[0], cfg.Music.Octaves[1])
	if err != nil {
		return nil, err
	}
	return sequencer.NewEnsemble(sequencer.EnsembleParams{
		Layers:         cfg.Model.Layers,
		Frequencies:    freqs,
		Tempo:          float64(cfg.Music.Tempo),
		DriftThreshold: cfg.Model.DriftThreshold,
		Palette:        notes,
	})
}
