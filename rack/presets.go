package rack

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// DJ effect presets.
var (
	EchoPreset = Effect{ID: "echo-1", Type: "Tone.FeedbackDelay", Options: Options{
		"delayTime": 0.25, "feedback": 0.4, "wet": 0.3,
	}}
	FlangerPreset = Effect{ID: "flanger-1", Type: "Tone.Chorus", Options: Options{
		"frequency": 0.5, "delayTime": 3.5, "depth": 0.8, "feedback": 0.7, "spread": 180.0, "wet": 0.5,
	}}
	PhaserPreset = Effect{ID: "phaser-1", Type: "Tone.Phaser", Options: Options{
		"frequency": 0.3, "octaves": 3.0, "stages": 10, "Q": 10.0, "baseFrequency": 350.0, "wet": 0.5,
	}}
	FilterSweepPreset = Effect{ID: "filter-sweep-1", Type: "Tone.AutoFilter", Options: Options{
		"frequency": 0.2, "type": "lowpass", "baseFrequency": 200.0, "octaves": 5.0, "wet": 1.0,
	}}
	ReverbPreset = Effect{ID: "reverb-1", Type: "Tone.Freeverb", Options: Options{
		"roomSize": 0.7, "dampening": 3000.0, "wet": 0.3,
	}}
	BitCrusherPreset = Effect{ID: "bitcrusher-1", Type: "Tuna.Bitcrusher", Options: Options{
		"bits": 4, "normfreq": 0.1, "bufferSize": 4096,
	}}
	OverdrivePreset = Effect{ID: "overdrive-1", Type: "Tuna.Overdrive", Options: Options{
		"outputGain": 0.5, "drive": 0.4, "curveAmount": 0.7, "algorithmIndex": 0,
	}}
	CompressorPreset = Effect{ID: "compressor-1", Type: "Tuna.Compressor", Options: Options{
		"threshold": -20.0, "makeupGain": 1.0, "attack": 1.0, "release": 250.0, "ratio": 4.0, "knee": 5.0, "automakeup": true,
	}}
	// WahWahPreset has no registered factory and is skipped by RebuildChain.
	WahWahPreset = Effect{ID: "wahwah-1", Type: "Tuna.WahWah", Options: Options{
		"automode": true, "baseFrequency": 0.5, "excursionOctaves": 2, "sweep": 0.2, "resonance": 10.0, "sensitivity": 0.5,
	}}
)

// Presets indexes the DJ presets by name.
var Presets = map[string]Effect{
	"echo":        EchoPreset,
	"flanger":     FlangerPreset,
	"phaser":      PhaserPreset,
	"filterSweep": FilterSweepPreset,
	"reverb":      ReverbPreset,
	"bitcrusher":  BitCrusherPreset,
	"overdrive":   OverdrivePreset,
	"compressor":  CompressorPreset,
	"wahwah":      WahWahPreset,
}

// Chains indexes the DJ effect chains by name.
var Chains = map[string][]Effect{
	"basic":   {EchoPreset, FlangerPreset, ReverbPreset},
	"buildup": {FilterSweepPreset, PhaserPreset, ReverbPreset},
	"drop":    {CompressorPreset, BitCrusherPreset},
	"lofi":    {BitCrusherPreset, OverdrivePreset, ReverbPreset.WithOptions(Options{"wet": 0.5})},
}

// ErrUnknownPreset is returned for preset or chain names that do not exist.
var ErrUnknownPreset = errors.New("rack: unknown preset")

// ChainNames returns the chain names in sorted order.
func ChainNames() []string {
	names := make([]string, 0, len(Chains))
	for k := range Chains {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// DelayTime returns the echo time in seconds for a note division at bpm:
// division 4 is a quarter note, 8 an eighth, 2 a half.
func DelayTime(bpm, division float64) float64 {
	if bpm <= 0 || division <= 0 {
		return 0
	}
	return (60 / bpm) / (division / 4)
}

// BpmSyncedEcho returns the echo preset with its delay synced to bpm.
func BpmSyncedEcho(bpm, division float64) Effect {
	return EchoPreset.WithOptions(Options{"delayTime": DelayTime(bpm, division)})
}

// File is the on-disk rack description. Entries may name a built-in preset;
// their own options are then merged over the preset's.
//
//	chain: buildup
//	effects:
//	  - preset: echo
//	    options: {wet: 0.5}
//	  - type: Tone.Tremolo
//	    options: {frequency: 4}
type File struct {
	Chain   string      `yaml:"chain,omitempty"`
	Effects []FileEntry `yaml:"effects"`
}

// FileEntry is one effect in a File.
type FileEntry struct {
	Preset   string  `yaml:"preset,omitempty"`
	ID       string  `yaml:"id,omitempty"`
	Type     string  `yaml:"type,omitempty"`
	Bypassed bool    `yaml:"bypassed,omitempty"`
	Options  Options `yaml:"options,omitempty"`
}

// Parse decodes a rack file and resolves presets into a flat effect list.
// The named chain, if any, comes first.
func Parse(data []byte) ([]Effect, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("rack: decode: %w", err)
	}

	var out []Effect
	if f.Chain != "" {
		chain, ok := Chains[f.Chain]
		if !ok {
			return nil, fmt.Errorf("%w: chain %q", ErrUnknownPreset, f.Chain)
		}
		out = append(out, chain...)
	}
	for i, e := range f.Effects {
		var eff Effect
		if e.Preset != "" {
			p, ok := Presets[e.Preset]
			if !ok {
				return nil, fmt.Errorf("%w: %q (entry %d)", ErrUnknownPreset, e.Preset, i)
			}
			eff = p.WithOptions(e.Options)
		} else {
			if e.Type == "" {
				return nil, fmt.Errorf("rack: entry %d has neither preset nor type", i)
			}
			eff = Effect{Type: e.Type, Options: e.Options}
		}
		if e.ID != "" {
			eff.ID = e.ID
		}
		eff.Bypassed = e.Bypassed
		out = append(out, eff)
	}
	return out, nil
}

// Load reads and parses a rack file.
func Load(path string) ([]Effect, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rack: %w", err)
	}
	return Parse(data)
}

// Marshal encodes effects as a rack file.
func Marshal(effects []Effect) ([]byte, error) {
	f := File{Effects: make([]FileEntry, len(effects))}
	for i, e := range effects {
		f.Effects[i] = FileEntry{ID: e.ID, Type: e.Type, Bypassed: e.Bypassed, Options: e.Options}
	}
	return yaml.Marshal(f)
}
