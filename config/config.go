// Package config loads the decks configuration from a YAML file and
// DECKS_* environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/dsp/core"
)

// Engine holds the audio context settings.
type Engine struct {
	SampleRate float64 `yaml:"sampleRate"`
	BlockSize  int     `yaml:"blockSize"`
	// FrameRate is how often per second the scheduler runs frame tasks.
	FrameRate float64 `yaml:"frameRate"`
}

// Service locates an HTTP collaborator.
type Service struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Stems configures stem separation.
type Stems struct {
	Service      `yaml:",inline"`
	Model        string        `yaml:"model"`
	PollInterval time.Duration `yaml:"pollInterval"`
}

// Transition holds the default transition settings.
type Transition struct {
	Type        string  `yaml:"type"`
	Duration    float64 `yaml:"duration"`
	BeatAlign   bool    `yaml:"beatAlign"`
	EQSwap      bool    `yaml:"eqSwap"`
	FilterSweep bool    `yaml:"filterSweep"`
	Curve       string  `yaml:"curve"`
}

// Controls sets the step sizes of the named commands.
type Controls struct {
	TempoStep     float64 `yaml:"tempoStep"`
	VolumeStep    float64 `yaml:"volumeStep"`
	CrossfadeStep float64 `yaml:"crossfadeStep"`
	BeatJump      float64 `yaml:"beatJump"`
	Nudge         float64 `yaml:"nudge"`
}

// Config is the full configuration.
type Config struct {
	LogLevel   string     `yaml:"logLevel"`
	Engine     Engine     `yaml:"engine"`
	Analysis   Service    `yaml:"analysis"`
	Sidecars   bool       `yaml:"sidecars"`
	Stems      Stems      `yaml:"stems"`
	Transition Transition `yaml:"transition"`
	Controls   Controls   `yaml:"controls"`
	// Rack is an optional effect preset file applied to the master bus.
	Rack string `yaml:"rack"`
}

// Default returns the built-in configuration.
func Default() Config {
	eng := core.DefaultEngineConfig()
	return Config{
		LogLevel: "info",
		Engine: Engine{
			SampleRate: eng.SampleRate,
			BlockSize:  eng.BlockSize,
			FrameRate:  eng.FrameRate,
		},
		Analysis: Service{Timeout: 60 * time.Second},
		Sidecars: true,
		Stems: Stems{
			Service:      Service{Timeout: 30 * time.Second},
			Model:        "htdemucs",
			PollInterval: 2 * time.Second,
		},
		Transition: Transition{
			Type:     "blend",
			Duration: 8,
			Curve:    "equalPower",
		},
		Controls: Controls{
			TempoStep:     0.1,
			VolumeStep:    0.05,
			CrossfadeStep: 0.05,
			BeatJump:      4,
			Nudge:         0.02,
		},
	}
}

// Load reads path over the defaults and applies environment overrides. An
// empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	cfg.applyEnv(os.Getenv)
	cfg.clamp()
	return cfg, nil
}

// Parse decodes YAML over the defaults without consulting the environment.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := decode(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg.clamp()
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *float64) {
		if v := getenv(key); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = f
			}
		}
	}
	integer := func(key string, dst *int) {
		if v := getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	flag := func(key string, dst *bool) {
		if v := getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v := getenv(key); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}

	str("DECKS_LOG_LEVEL", &c.LogLevel)
	num("DECKS_SAMPLE_RATE", &c.Engine.SampleRate)
	integer("DECKS_BLOCK_SIZE", &c.Engine.BlockSize)
	num("DECKS_FRAME_RATE", &c.Engine.FrameRate)
	str("DECKS_ANALYSIS_URL", &c.Analysis.URL)
	dur("DECKS_ANALYSIS_TIMEOUT", &c.Analysis.Timeout)
	flag("DECKS_SIDECARS", &c.Sidecars)
	str("DECKS_STEMS_URL", &c.Stems.URL)
	str("DECKS_STEMS_MODEL", &c.Stems.Model)
	dur("DECKS_STEMS_POLL", &c.Stems.PollInterval)
	str("DECKS_TRANSITION_TYPE", &c.Transition.Type)
	num("DECKS_TRANSITION_DURATION", &c.Transition.Duration)
	str("DECKS_CURVE", &c.Transition.Curve)
	str("DECKS_RACK", &c.Rack)
}

func (c *Config) clamp() {
	def := Default()
	c.Engine.SampleRate = core.Clamp(c.Engine.SampleRate, 8000, 192000)
	c.Engine.BlockSize = max(32, min(c.Engine.BlockSize, 8192))
	c.Engine.FrameRate = core.Clamp(c.Engine.FrameRate, 1, 1000)
	c.Transition.Duration = core.Clamp(c.Transition.Duration, 0.1, 600)
	c.Controls.TempoStep = core.Clamp(c.Controls.TempoStep, 0.01, 8)
	c.Controls.VolumeStep = core.Clamp(c.Controls.VolumeStep, 0.01, 1)
	c.Controls.CrossfadeStep = core.Clamp(c.Controls.CrossfadeStep, 0.01, 1)
	c.Controls.BeatJump = core.Clamp(c.Controls.BeatJump, 0.25, 64)
	c.Controls.Nudge = core.Clamp(c.Controls.Nudge, 0.001, 1)
	if c.Analysis.Timeout <= 0 {
		c.Analysis.Timeout = def.Analysis.Timeout
	}
	if c.Stems.Timeout <= 0 {
		c.Stems.Timeout = def.Stems.Timeout
	}
	if c.Stems.PollInterval <= 0 {
		c.Stems.PollInterval = def.Stems.PollInterval
	}
	c.Analysis.URL = strings.TrimRight(c.Analysis.URL, "/")
	c.Stems.URL = strings.TrimRight(c.Stems.URL, "/")
}

// Level parses LogLevel. Unknown names fall back to info.
func (c Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// EngineOptions converts the engine section for graph.NewContext.
func (c Config) EngineOptions() []core.EngineOption {
	return []core.EngineOption{
		core.WithSampleRate(c.Engine.SampleRate),
		core.WithBlockSize(c.Engine.BlockSize),
		core.WithFrameRate(c.Engine.FrameRate),
	}
}
