// Package strip implements the four-stage channel strip used by mixer tracks,
// the master bus and the deck paths: EQ, compressor, saturation and tube.
package strip

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/dsp/shaper"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/graph"
)

// Crossover frequencies of the EQ stage in Hz.
const (
	DefaultLowCrossover  = 200.0
	DefaultHighCrossover = 2000.0
)

// Stage identifies one processing stage.
type Stage int

// Stages in signal order.
const (
	EQ Stage = iota
	Dynamics
	Saturation
	Tube
	numStages
)

var stageNames = [...]string{"eq", "dynamics", "saturation", "tube"}

func (s Stage) String() string {
	if s < 0 || s >= numStages {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// ErrUnknownStage is returned for stage names or values outside the strip.
var ErrUnknownStage = errors.New("strip: unknown stage")

// ParseStage resolves a stage name. "compressor" is accepted for Dynamics.
func ParseStage(s string) (Stage, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "compressor" {
		return Dynamics, nil
	}
	for i, n := range stageNames {
		if n == name {
			return Stage(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStage, s)
}

// Compressor holds compressor settings as entered by a user. Attack and
// Release are in milliseconds.
type Compressor struct {
	Threshold float64 `yaml:"threshold"`
	Ratio     float64 `yaml:"ratio"`
	Attack    float64 `yaml:"attack"`
	Release   float64 `yaml:"release"`
	Knee      float64 `yaml:"knee"`
}

// DefaultCompressor returns -24 dB, 4:1, 10 ms, 100 ms, 6 dB knee.
func DefaultCompressor() Compressor {
	d := graph.DefaultCompressorSettings()
	return Compressor{
		Threshold: d.Threshold,
		Ratio:     d.Ratio,
		Attack:    d.Attack * 1000,
		Release:   d.Release * 1000,
		Knee:      d.Knee,
	}
}

func (c Compressor) settings() graph.CompressorSettings {
	return graph.CompressorSettings{
		Threshold: c.Threshold,
		Ratio:     c.Ratio,
		Knee:      c.Knee,
		Attack:    c.Attack / 1000,
		Release:   c.Release / 1000,
	}
}

// Config is a full strip setting. The zero value is not useful; start from
// DefaultConfig.
type Config struct {
	Low, Mid, High float64
	Compressor     Compressor
	Saturation     shaper.Saturation
	SatDrive       float64
	TubeDrive      float64
	Bypass         [numStages]bool
}

// DefaultConfig is a flat EQ, the default compressor, tape saturation and
// zero drive everywhere with no stage bypassed.
func DefaultConfig() Config {
	return Config{Compressor: DefaultCompressor(), Saturation: shaper.Tape}
}

// PassConfig is DefaultConfig with every stage bypassed. A strip set to it
// passes the signal through unchanged until a stage is switched in.
func PassConfig() Config {
	c := DefaultConfig()
	for st := range numStages {
		c.Bypass[st] = true
	}
	return c
}

// Strip is a channel strip built from graph nodes. Connect sources to Input
// and take the processed signal from Output.
type Strip struct {
	mu sync.Mutex

	input   *graph.Gain
	eq      *graph.EQ3
	comp    *graph.Compressor
	satPre  *graph.Gain
	sat     *graph.WaveShaper
	tubePre *graph.Gain
	tube    *graph.WaveShaper
	output  *graph.Gain

	satType   shaper.Saturation
	satDrive  float64
	tubeDrive float64
	comp0     Compressor
	bypass    [numStages]bool
	disposed  bool
}

// New builds a strip on ctx with the default configuration.
func New(ctx *graph.Context) *Strip {
	s := &Strip{
		input:   graph.NewGain(ctx, 1),
		eq:      graph.NewEQ3(ctx, DefaultLowCrossover, DefaultHighCrossover),
		comp:    graph.NewCompressor(ctx, graph.DefaultCompressorSettings()),
		satPre:  graph.NewGain(ctx, 1),
		sat:     graph.NewWaveShaper(ctx, shaper.SaturationCurve(shaper.Tape, 0)),
		tubePre: graph.NewGain(ctx, 1),
		tube:    graph.NewWaveShaper(ctx, shaper.TubeCurve(0)),
		output:  graph.NewGain(ctx, 1),
		satType: shaper.Tape,
		comp0:   DefaultCompressor(),
	}
	s.relink()
	return s
}

// Input returns the node sources connect to.
func (s *Strip) Input() *graph.Gain { return s.input }

// Output returns the node to connect onward from.
func (s *Strip) Output() *graph.Gain { return s.output }

// EQNode exposes the EQ stage for direct param automation.
func (s *Strip) EQNode() *graph.EQ3 { return s.eq }

// SetEQ sets all three band gains in dB.
func (s *Strip) SetEQ(low, mid, high float64) {
	s.eq.Low.SetValue(low)
	s.eq.Mid.SetValue(mid)
	s.eq.High.SetValue(high)
}

// SetBand sets one EQ band: "low", "mid" or "high".
func (s *Strip) SetBand(band string, db float64) error {
	p, err := s.band(band)
	if err != nil {
		return err
	}
	p.SetValue(db)
	return nil
}

func (s *Strip) band(name string) (*graph.Param, error) {
	switch strings.ToLower(name) {
	case "low":
		return s.eq.Low, nil
	case "mid":
		return s.eq.Mid, nil
	case "high":
		return s.eq.High, nil
	}
	return nil, fmt.Errorf("strip: unknown EQ band %q", name)
}

// EQ returns the current band gains in dB.
func (s *Strip) EQ() (low, mid, high float64) {
	return s.eq.Low.Value(), s.eq.Mid.Value(), s.eq.High.Value()
}

// SetCompressor applies compressor settings. Attack and release are given in
// milliseconds. Out-of-range values are clamped.
func (s *Strip) SetCompressor(c Compressor) {
	s.comp.Set(c.settings())
	applied := s.comp.Settings()
	s.mu.Lock()
	s.comp0 = Compressor{
		Threshold: applied.Threshold,
		Ratio:     applied.Ratio,
		Attack:    applied.Attack * 1000,
		Release:   applied.Release * 1000,
		Knee:      applied.Knee,
	}
	s.mu.Unlock()
}

// CompressorSettings returns the applied compressor settings with times in
// milliseconds.
func (s *Strip) CompressorSettings() Compressor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.comp0
}

// Reduction returns the compressor gain reduction in dB.
func (s *Strip) Reduction() float64 { return s.comp.Reduction() }

// SetSaturation selects the curve family and drive. Negative drive is
// treated as zero. The curve is regenerated before the call returns.
func (s *Strip) SetSaturation(kind shaper.Saturation, drive float64) {
	drive = math.Max(drive, 0)
	s.mu.Lock()
	s.satType, s.satDrive = kind, drive
	s.mu.Unlock()
	s.sat.SetCurve(shaper.SaturationCurve(kind, drive))
	s.satPre.Gain.SetValue(1 + drive*0.5)
}

// Saturation returns the curve family and drive.
func (s *Strip) Saturation() (shaper.Saturation, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.satType, s.satDrive
}

// SetTube sets the tube drive. Negative drive is treated as zero.
func (s *Strip) SetTube(drive float64) {
	drive = math.Max(drive, 0)
	s.mu.Lock()
	s.tubeDrive = drive
	s.mu.Unlock()
	s.tube.SetCurve(shaper.TubeCurve(drive))
	s.tubePre.Gain.SetValue(1 + drive*0.3)
}

// TubeDrive returns the tube drive.
func (s *Strip) TubeDrive() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tubeDrive
}

// SaturationCurve returns a copy of the active saturation lookup table.
func (s *Strip) SaturationCurve() []float64 { return s.sat.Curve() }

// TubeCurve returns a copy of the active tube lookup table.
func (s *Strip) TubeCurve() []float64 { return s.tube.Curve() }

// Bypass removes or restores a stage. The stage keeps its parameters while
// bypassed.
func (s *Strip) Bypass(stage Stage, on bool) error {
	if stage < 0 || stage >= numStages {
		return fmt.Errorf("%w: %d", ErrUnknownStage, int(stage))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return graph.ErrDisposed
	}
	if s.bypass[stage] == on {
		return nil
	}
	s.bypass[stage] = on
	s.relink()
	return nil
}

// Bypassed reports whether stage is bypassed.
func (s *Strip) Bypassed(stage Stage) bool {
	if stage < 0 || stage >= numStages {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bypass[stage]
}

// Apply sets every stage from cfg.
func (s *Strip) Apply(cfg Config) error {
	s.SetEQ(cfg.Low, cfg.Mid, cfg.High)
	s.SetCompressor(cfg.Compressor)
	s.SetSaturation(cfg.Saturation, cfg.SatDrive)
	s.SetTube(cfg.TubeDrive)
	for st := range numStages {
		if err := s.Bypass(st, cfg.Bypass[st]); err != nil {
			return err
		}
	}
	return nil
}

// Config returns a snapshot of the strip settings.
func (s *Strip) Config() Config {
	low, mid, high := s.EQ()
	s.mu.Lock()
	defer s.mu.Unlock()
	return Config{
		Low:        low,
		Mid:        mid,
		High:       high,
		Compressor: s.comp0,
		Saturation: s.satType,
		SatDrive:   s.satDrive,
		TubeDrive:  s.tubeDrive,
		Bypass:     s.bypass,
	}
}

// relink drops every internal edge and connects input, the active stages and
// output in order. Edges leaving Output are left alone.
func (s *Strip) relink() {
	internal := []graph.Node{s.input, s.eq, s.comp, s.satPre, s.sat, s.tubePre, s.tube}
	for _, n := range internal {
		n.DisconnectAll()
	}
	path := []graph.Node{s.input}
	if !s.bypass[EQ] {
		path = append(path, s.eq)
	}
	if !s.bypass[Dynamics] {
		path = append(path, s.comp)
	}
	if !s.bypass[Saturation] {
		path = append(path, s.satPre, s.sat)
	}
	if !s.bypass[Tube] {
		path = append(path, s.tubePre, s.tube)
	}
	path = append(path, s.output)
	// Every node is fresh and owned by the strip, so the chain is acyclic.
	_ = graph.Chain(path...)
}

// Dispose disposes every strip node.
func (s *Strip) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	s.disposed = true
	for _, n := range []graph.Node{s.input, s.eq, s.comp, s.satPre, s.sat, s.tubePre, s.tube, s.output} {
		n.Dispose()
	}
}
