package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// FrequencyType names how oscillator frequencies are spaced
type FrequencyType string

const (
	FrequencyLinear FrequencyType = "linear"
	FrequencyLog    FrequencyType = "log"
)

// ModelConfig describes the oscillator ensemble
type ModelConfig struct {
	Oscillators    int           `json:"oscillators"`
	FromFreq       float64       `json:"fromFreq"`
	ToFreq         float64       `json:"toFreq"`
	FrequencyType  FrequencyType `json:"frequencyType,omitempty"`
	Layers         int           `json:"layers"`
	DriftThreshold int           `json:"driftThreshold"`
}

// MusicConfig describes tempo, tones and render rate
type MusicConfig struct {
	Tempo     int    `json:"tempo"`
	Octaves   [2]int `json:"octaves"` // inclusive range for the note palette
	RenderFPS int    `json:"renderFps,omitempty"`
}

// FeedConfig describes the amplitude/peak websocket feed
type FeedConfig struct {
	Listen       string `json:"listen"`
	Path         string `json:"path"`
	PeakOrder    int    `json:"peakOrder"`    // neighbours each side a peak must exceed
	SmoothWindow int    `json:"smoothWindow"` // moving average width before peak picking
}

// MIDIConfig describes the playback output and the drum-pad control input
type MIDIConfig struct {
	OutputPort  string `json:"outputPort,omitempty"`
	Channel     int    `json:"channel"`
	Velocity    int    `json:"velocity"`
	GateMs      int    `json:"gateMs"`
	PadPort     string `json:"padPort,omitempty"`
	RimNote     int    `json:"rimNote"`
	PedalNote   int    `json:"pedalNote"`
	RimWindowMs int    `json:"rimWindowMs"`
	TomNotes    []int  `json:"tomNotes,omitempty"` // hits that drive cmd/grfnn
}

// GrFNNConfig tunes the oscillator model that tom hits drive (cmd/grfnn)
type GrFNNConfig struct {
	SampleRate    float64 `json:"sampleRate"`    // Hz of the zero-padded hit series
	VelocityScale float64 `json:"velocityScale"` // hits are sparse impulses, so they are amplified
	Alpha         float64 `json:"alpha"`         // damping
	Beta1         float64 `json:"beta1"`         // amplitude compression
	Beta2         float64 `json:"beta2"`
	Delta1        float64 `json:"delta1"` // frequency detuning with amplitude
	Delta2        float64 `json:"delta2"`
	Epsilon       float64 `json:"epsilon"` // coupling strength
}

// UIConfig stores UI preferences
type UIConfig struct {
	Palette string `json:"palette,omitempty"` // .gpl path, empty = built-in
}

// Config is the main configuration structure
type Config struct {
	Model ModelConfig `json:"model"`
	Music MusicConfig `json:"music"`
	Feed  FeedConfig  `json:"feed"`
	MIDI  MIDIConfig  `json:"midi"`
	GrFNN GrFNNConfig `json:"grfnn"`
	UI    UIConfig    `json:"ui,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Oscillators:    250,
			FromFreq:       0.25,
			ToFreq:         4.0,
			FrequencyType:  FrequencyLinear,
			Layers:         3,
			DriftThreshold: 20,
		},
		Music: MusicConfig{
			Tempo:     60,
			Octaves:   [2]int{3, 5},
			RenderFPS: 60,
		},
		Feed: FeedConfig{
			Listen:       "127.0.0.1:5000",
			Path:         "/feed",
			PeakOrder:    50,
			SmoothWindow: 51,
		},
		MIDI: MIDIConfig{
			Channel:     1,
			Velocity:    100,
			GateMs:      200,
			PadPort:     "DTX drums",
			RimNote:     15,
			PedalNote:   46,
			RimWindowMs: 750,
			TomNotes:    []int{47, 48},
		},
		GrFNN: GrFNNConfig{
			SampleRate:    160,
			VelocityScale: 10,
			Beta1:         -1,
			Beta2:         -1,
			Epsilon:       1,
		},
	}
}

// Validation errors
var (
	ErrNoOscillators = errors.New("model.oscillators must be positive")
	ErrNoLayers      = errors.New("model.layers must be positive")
	ErrBadTempo      = errors.New("music.tempo must be positive")
	ErrBadFrequency  = errors.New("model frequency range invalid")
	ErrBadDrift      = errors.New("model.driftThreshold must not be negative")
	ErrBadOctaves    = errors.New("music.octaves range is empty")
	ErrBadChannel    = errors.New("midi.channel must be 1-16")
	ErrBadGrFNN      = errors.New("grfnn.sampleRate must be positive and grfnn.epsilon not negative")
)

// Validate rejects configurations no consistent schedule could come from
func (c *Config) Validate() error {
	m := c.Model
	switch {
	case m.Oscillators <= 0:
		return ErrNoOscillators
	case m.Layers <= 0:
		return ErrNoLayers
	case m.FromFreq <= 0 || m.ToFreq < m.FromFreq:
		return fmt.Errorf("%g..%g: %w", m.FromFreq, m.ToFreq, ErrBadFrequency)
	case m.Oscillators > 1 && m.ToFreq == m.FromFreq:
		return fmt.Errorf("%d oscillators at one frequency: %w", m.Oscillators, ErrBadFrequency)
	case m.FrequencyType != "" && m.FrequencyType != FrequencyLinear && m.FrequencyType != FrequencyLog:
		return fmt.Errorf("type %q: %w", m.FrequencyType, ErrBadFrequency)
	case m.DriftThreshold < 0:
		return ErrBadDrift
	}
	if c.Music.Tempo <= 0 {
		return ErrBadTempo
	}
	if c.Music.Octaves[1] < c.Music.Octaves[0] {
		return ErrBadOctaves
	}
	if c.MIDI.Channel < 1 || c.MIDI.Channel > 16 {
		return ErrBadChannel
	}
	if g := c.GrFNN; !(g.SampleRate > 0) || math.IsInf(g.SampleRate, 0) || !(g.Epsilon >= 0) {
		return ErrBadGrFNN
	}
	return nil
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-sonify"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from the default path, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads and validates the config at path. A missing file gives
// defaults; fields absent from the file keep their default values.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to the default path
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the config to path, creating its directory
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
