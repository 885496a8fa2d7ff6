package core

// EngineConfig holds the settings shared by every engine in a session.
type EngineConfig struct {
	SampleRate float64
	BlockSize  int
	// FrameRate is the cooperative scheduler tick rate in Hz.
	FrameRate float64
}

// EngineOption mutates an EngineConfig.
type EngineOption func(*EngineConfig)

// DefaultEngineConfig returns the defaults used for realtime playback.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		SampleRate: 48000,
		BlockSize:  128,
		FrameRate:  60,
	}
}

// WithSampleRate sets the render sample rate.
func WithSampleRate(sampleRate float64) EngineOption {
	return func(cfg *EngineConfig) {
		if sampleRate > 0 {
			cfg.SampleRate = sampleRate
		}
	}
}

// WithBlockSize sets the render quantum in frames.
func WithBlockSize(blockSize int) EngineOption {
	return func(cfg *EngineConfig) {
		if blockSize > 0 {
			cfg.BlockSize = blockSize
		}
	}
}

// WithFrameRate sets the scheduler tick rate.
func WithFrameRate(fps float64) EngineOption {
	return func(cfg *EngineConfig) {
		if fps > 0 {
			cfg.FrameRate = fps
		}
	}
}

// ApplyEngineOptions applies zero or more options to the default config.
func ApplyEngineOptions(opts ...EngineOption) EngineConfig {
	cfg := DefaultEngineConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}
