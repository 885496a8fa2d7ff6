package rack

import (
	"math"

	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/dsp/biquad"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/dsp/conv"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/dsp/core"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/dsp/shaper"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/graph"
)

const convolverPartition = 1024

// DefaultRegistry returns a Registry holding the Tone.* and Tuna.* effect
// vocabularies. Option names follow each vocabulary's conventions: Tone
// times are seconds, Tuna times are milliseconds.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	registerTone(r)
	registerTuna(r)
	return r
}

func registerTone(r *Registry) {
	r.MustRegister("Tone.AutoFilter", func(ctx *graph.Context, o Options) (graph.Node, error) {
		kind, err := biquad.ParseKind(o.GetString("type", "lowpass"))
		if err != nil {
			return nil, err
		}
		n := graph.NewAutoFilter(ctx, kind, o.GetNum("frequency", 1), o.GetNum("baseFrequency", 200), o.GetNum("octaves", 2.6))
		n.Depth.SetValue(o.GetNum("depth", 1))
		n.Wet.SetValue(o.GetNum("wet", 1))
		return n, nil
	})
	r.MustRegister("Tone.AutoPanner", func(ctx *graph.Context, o Options) (graph.Node, error) {
		return graph.NewAutoPanner(ctx, o.GetNum("frequency", 1), o.GetNum("depth", 1)), nil
	})
	r.MustRegister("Tone.BitCrusher", func(ctx *graph.Context, o Options) (graph.Node, error) {
		n := graph.NewBitCrusher(ctx, o.GetNum("bits", 4))
		n.Wet.SetValue(o.GetNum("wet", 1))
		return n, nil
	})
	r.MustRegister("Tone.Chebyshev", func(ctx *graph.Context, o Options) (graph.Node, error) {
		return graph.NewWaveShaper(ctx, shaper.Generate(shaper.Size, shaper.ChebyshevFunc(o.GetInt("order", 1)))), nil
	})
	r.MustRegister("Tone.Chorus", func(ctx *graph.Context, o Options) (graph.Node, error) {
		n := graph.NewChorus(ctx, o.GetNum("frequency", 1.5), o.GetNum("delayTime", 3.5), o.GetNum("depth", 0.7))
		n.Feedback.SetValue(o.GetNum("feedback", 0))
		n.Wet.SetValue(o.GetNum("wet", 0.5))
		return n, nil
	})
	r.MustRegister("Tone.Distortion", func(ctx *graph.Context, o Options) (graph.Node, error) {
		return graph.NewWaveShaper(ctx, shaper.Generate(shaper.Size, shaper.DistortionFunc(o.GetNum("distortion", 0.4)))), nil
	})
	r.MustRegister("Tone.FeedbackDelay", func(ctx *graph.Context, o Options) (graph.Node, error) {
		n := graph.NewFeedbackDelay(ctx, o.GetNum("delayTime", 0.25), o.GetNum("feedback", 0.125))
		n.Wet.SetValue(o.GetNum("wet", 0.5))
		return n, nil
	})
	r.MustRegister("Tone.Freeverb", func(ctx *graph.Context, o Options) (graph.Node, error) {
		damp := dampingFromHz(o.GetNum("dampening", 3000), ctx.SampleRate())
		n := graph.NewFreeverb(ctx, o.GetNum("roomSize", 0.7), damp)
		n.Wet.SetValue(o.GetNum("wet", 0.5))
		return n, nil
	})
	r.MustRegister("Tone.JCReverb", func(ctx *graph.Context, o Options) (graph.Node, error) {
		n := graph.NewFreeverb(ctx, o.GetNum("roomSize", 0.5), 0)
		n.Wet.SetValue(o.GetNum("wet", 0.5))
		return n, nil
	})
	r.MustRegister("Tone.Phaser", func(ctx *graph.Context, o Options) (graph.Node, error) {
		n := graph.NewPhaser(ctx, o.GetNum("frequency", 0.5), o.GetNum("baseFrequency", 350), o.GetNum("octaves", 3), o.GetInt("stages", 10))
		n.Q.SetValue(o.GetNum("Q", 10))
		n.Wet.SetValue(o.GetNum("wet", 0.5))
		return n, nil
	})
	r.MustRegister("Tone.PingPongDelay", func(ctx *graph.Context, o Options) (graph.Node, error) {
		n := graph.NewPingPongDelay(ctx, o.GetNum("delayTime", 0.25), o.GetNum("feedback", 0.2))
		n.Wet.SetValue(o.GetNum("wet", 0.5))
		return n, nil
	})
	r.MustRegister("Tone.Reverb", func(ctx *graph.Context, o Options) (graph.Node, error) {
		n := graph.NewReverb(ctx, o.GetNum("decay", 1.5))
		n.SetPreDelay(o.GetNum("preDelay", 0.01))
		n.Wet.SetValue(o.GetNum("wet", 1))
		return n, nil
	})
	r.MustRegister("Tone.StereoWidener", func(ctx *graph.Context, o Options) (graph.Node, error) {
		return graph.NewStereoWidener(ctx, o.GetNum("width", 0.5)), nil
	})
	r.MustRegister("Tone.Tremolo", func(ctx *graph.Context, o Options) (graph.Node, error) {
		n := graph.NewTremolo(ctx, o.GetNum("frequency", 10), o.GetNum("depth", 0.5), o.GetNum("spread", 180)/360)
		n.Wet.SetValue(o.GetNum("wet", 1))
		return n, nil
	})
	r.MustRegister("Tone.Vibrato", func(ctx *graph.Context, o Options) (graph.Node, error) {
		return graph.NewVibrato(ctx, o.GetNum("frequency", 5), o.GetNum("depth", 0.1)), nil
	})
	r.MustRegister("Tone.Compressor", func(ctx *graph.Context, o Options) (graph.Node, error) {
		d := graph.DefaultCompressorSettings()
		return graph.NewCompressor(ctx, graph.CompressorSettings{
			Threshold: o.GetNum("threshold", d.Threshold),
			Ratio:     o.GetNum("ratio", d.Ratio),
			Knee:      o.GetNum("knee", d.Knee),
			Attack:    o.GetNum("attack", d.Attack),
			Release:   o.GetNum("release", d.Release),
		}), nil
	})
	r.MustRegister("Tone.EQ3", func(ctx *graph.Context, o Options) (graph.Node, error) {
		n := graph.NewEQ3(ctx, o.GetNum("lowFrequency", 400), o.GetNum("highFrequency", 2500))
		n.Low.SetValue(o.GetNum("low", 0))
		n.Mid.SetValue(o.GetNum("mid", 0))
		n.High.SetValue(o.GetNum("high", 0))
		return n, nil
	})
	r.MustRegister("Tone.Filter", func(ctx *graph.Context, o Options) (graph.Node, error) {
		return newFilter(ctx, o.GetString("type", "lowpass"), o.GetNum("frequency", 350), o.GetInt("rolloff", -12), o.GetNum("Q", 1), o.GetNum("gain", 0))
	})
	r.MustRegister("Tone.Gain", func(ctx *graph.Context, o Options) (graph.Node, error) {
		return graph.NewGain(ctx, o.GetNum("gain", 1)), nil
	})
}

func registerTuna(r *Registry) {
	r.MustRegister("Tuna.Bitcrusher", func(ctx *graph.Context, o Options) (graph.Node, error) {
		n := graph.NewBitCrusher(ctx, o.GetNum("bits", 4))
		if f := o.GetNum("normfreq", 0.1); f > 0 {
			n.Downsample.SetValue(math.Round(1 / f))
		}
		return n, nil
	})
	r.MustRegister("Tuna.Chorus", func(ctx *graph.Context, o Options) (graph.Node, error) {
		n := graph.NewChorus(ctx, o.GetNum("rate", 1.5), o.GetNum("delay", 0.0045)*1000, o.GetNum("depth", 0.7))
		n.Feedback.SetValue(o.GetNum("feedback", 0.4))
		return n, nil
	})
	r.MustRegister("Tuna.Compressor", func(ctx *graph.Context, o Options) (graph.Node, error) {
		return graph.NewCompressor(ctx, graph.CompressorSettings{
			Threshold: o.GetNum("threshold", -20),
			Ratio:     o.GetNum("ratio", 4),
			Knee:      o.GetNum("knee", 5),
			Attack:    o.GetNum("attack", 1) / 1000,
			Release:   o.GetNum("release", 250) / 1000,
		}), nil
	})
	r.MustRegister("Tuna.Convolver", func(ctx *graph.Context, o Options) (graph.Node, error) {
		l, rr := conv.DecayingNoise(ctx.SampleRate(), o.GetNum("decay", 2), 0, uint64(o.GetInt("seed", 1)))
		n, err := graph.NewConvolver(ctx, l, rr, convolverPartition)
		if err != nil {
			return nil, err
		}
		n.Wet.SetValue(o.GetNum("wetLevel", 1))
		return n, nil
	})
	r.MustRegister("Tuna.Delay", func(ctx *graph.Context, o Options) (graph.Node, error) {
		n := graph.NewFeedbackDelay(ctx, o.GetNum("delayTime", 100)/1000, o.GetNum("feedback", 0.45))
		n.Wet.SetValue(o.GetNum("wetLevel", 0.5))
		return n, nil
	})
	r.MustRegister("Tuna.Filter", func(ctx *graph.Context, o Options) (graph.Node, error) {
		return newFilter(ctx, o.GetString("filterType", "lowpass"), o.GetNum("frequency", 800), -12, o.GetNum("Q", 1), o.GetNum("gain", 0))
	})
	r.MustRegister("Tuna.Gain", func(ctx *graph.Context, o Options) (graph.Node, error) {
		return graph.NewGain(ctx, o.GetNum("gain", 1)), nil
	})
	r.MustRegister("Tuna.MoogFilter", func(ctx *graph.Context, o Options) (graph.Node, error) {
		cutoff := core.Clamp(o.GetNum("cutoff", 0.065), 0, 1)
		res := core.Clamp(o.GetNum("resonance", 3.5), 0, 4)
		freq := 20 * math.Pow(1000, cutoff)
		return newFilter(ctx, "lowpass", freq, -24, biquad.DefaultQ*(1+res), 0)
	})
	r.MustRegister("Tuna.Overdrive", func(ctx *graph.Context, o Options) (graph.Node, error) {
		return graph.NewWaveShaper(ctx, shaper.Generate(shaper.Size, shaper.OverdriveFunc(o.GetNum("drive", 0.7)))), nil
	})
	r.MustRegister("Tuna.Panner", func(ctx *graph.Context, o Options) (graph.Node, error) {
		return graph.NewPanner(ctx, o.GetNum("pan", 0)), nil
	})
	r.MustRegister("Tuna.PingPongDelay", func(ctx *graph.Context, o Options) (graph.Node, error) {
		n := graph.NewPingPongDelay(ctx, o.GetNum("delayTimeLeft", 150)/1000, o.GetNum("feedback", 0.3))
		n.Wet.SetValue(o.GetNum("wetLevel", 0.5))
		return n, nil
	})
	r.MustRegister("Tuna.Tremolo", func(ctx *graph.Context, o Options) (graph.Node, error) {
		return graph.NewTremolo(ctx, o.GetNum("rate", 4), o.GetNum("intensity", 0.3), o.GetNum("stereoPhase", 0)/360), nil
	})
}

func newFilter(ctx *graph.Context, typ string, freq float64, rolloff int, q, gain float64) (graph.Node, error) {
	kind, err := biquad.ParseKind(typ)
	if err != nil {
		return nil, err
	}
	n := graph.NewFilter(ctx, kind, freq, rolloff)
	n.Q.SetValue(q)
	n.Gain.SetValue(gain)
	return n, nil
}

// dampingFromHz converts a lowpass cutoff to the one-pole coefficient used
// inside the comb feedback.
func dampingFromHz(hz, sampleRate float64) float64 {
	if hz <= 0 {
		return 1
	}
	return core.Clamp(math.Exp(-2*math.Pi*hz/sampleRate), 0, 1)
}
