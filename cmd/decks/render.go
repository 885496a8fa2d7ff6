package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gopxl/beep/v2"

	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/deck"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/meter"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/session"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/source"
)

// RenderCmd bounces a mix offline.
type RenderCmd struct {
	A string `arg:"" help:"Track on deck A."`
	B string `arg:"" help:"Track on deck B."`

	Out      string  `short:"o" type:"path" default:"mix.wav" help:"Output WAV file."`
	Length   float64 `default:"60" help:"Seconds to render."`
	At       float64 `default:"-1" help:"Transition start in seconds on deck A. Negative uses the suggested point."`
	Type     string  `help:"Transition type (blend, drop, spinBack, echo, filter)."`
	Duration float64 `help:"Transition duration in seconds."`
	Sync     bool    `default:"true" negatable:"" help:"Sync deck B's tempo to deck A."`
}

// Run renders the mix.
func (r *RenderCmd) Run(a *app) error {
	cfg := a.cfg
	if r.Type != "" {
		cfg.Transition.Type = r.Type
	}
	if r.Duration > 0 {
		cfg.Transition.Duration = r.Duration
	}
	s, err := session.New(cfg, session.WithLogger(a.log))
	if err != nil {
		return err
	}
	defer s.Dispose()

	if err := s.LoadPair(context.Background(), r.A, r.B); err != nil {
		return err
	}
	plan := r.plan(s)
	if r.Sync {
		s.SyncTempo(deck.B)
	}
	s.Transition().SetCrossfade(0)
	s.Deck(deck.A).Play()

	rate := s.Context().SampleRate()
	lead := min(max(int(plan.at*rate), 0), int(r.Length*rate))
	total := int(r.Length * rate)
	var startErr error
	mix := beep.Seq(
		beep.Take(lead, s),
		beep.Callback(func() {
			b := s.Deck(deck.B)
			b.Seek(plan.cueB)
			b.Play()
			startErr = s.StartTransition()
		}),
		beep.Take(total-lead, s),
	)

	f, err := os.Create(r.Out)
	if err != nil {
		return err
	}
	defer f.Close()
	loud := &measured{s: mix, m: meter.NewLoudness(rate)}
	if err := source.EncodeWAV(f, loud, rate); err != nil {
		return err
	}
	if startErr != nil {
		return fmt.Errorf("start transition: %w", startErr)
	}
	a.log.Info("mix rendered", "out", r.Out, "seconds", r.Length,
		"transition", cfg.Transition.Type, "at", plan.at, "cueB", plan.cueB,
		"lufs", loud.m.Integrated(), "peakDB", loud.m.PeakDB())
	return nil
}

// measured feeds everything it streams into a loudness meter.
type measured struct {
	s    beep.Streamer
	m    *meter.Loudness
	l, r []float64
}

func (m *measured) Stream(samples [][2]float64) (int, bool) {
	n, ok := m.s.Stream(samples)
	if cap(m.l) < n {
		m.l, m.r = make([]float64, n), make([]float64, n)
	}
	l, r := m.l[:n], m.r[:n]
	for i, s := range samples[:n] {
		l[i], r[i] = s[0], s[1]
	}
	m.m.Write(l, r)
	return n, ok
}

func (m *measured) Err() error { return m.s.Err() }

type renderPlan struct {
	at, cueB float64
}

func (r *RenderCmd) plan(s *session.Session) renderPlan {
	if r.At >= 0 {
		return renderPlan{at: r.At}
	}
	if tp, ok := s.SuggestTransition(); ok {
		return renderPlan{at: tp.FadeOutStart, cueB: tp.FadeInStart}
	}
	return renderPlan{at: r.Length / 2}
}
