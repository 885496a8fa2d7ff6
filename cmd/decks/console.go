package main

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"

	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/rack"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/session"
)

// speakerBuffer is the device buffer length.
const speakerBuffer = 50 * time.Millisecond

// ConsoleCmd runs the interactive mixer.
type ConsoleCmd struct {
	A string `arg:"" optional:"" help:"Track to load on deck A."`
	B string `arg:"" optional:"" help:"Track to load on deck B."`

	Mute bool `help:"Do not open the audio device; the mix still runs."`
}

// Run opens the audio device and the terminal UI.
func (c *ConsoleCmd) Run(a *app) error {
	s, err := session.New(a.cfg, session.WithLogger(a.log))
	if err != nil {
		return err
	}
	defer s.Dispose()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if c.Mute {
		go func() {
			// Render the mix against the wall clock without a device.
			buf := make([][2]float64, int(s.Context().SampleRate()*speakerBuffer.Seconds()))
			t := time.NewTicker(speakerBuffer)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					s.Stream(buf)
				}
			}
		}()
	} else {
		rate := beep.SampleRate(int(s.Context().SampleRate()))
		if err := speaker.Init(rate, rate.N(speakerBuffer)); err != nil {
			return err
		}
		defer speaker.Close()
		speaker.Play(s)
	}

	p := tea.NewProgram(newModel(s), tea.WithAltScreen())

	go func() {
		err := s.LoadPair(ctx, c.A, c.B)
		p.Send(loadedMsg{err: err})
	}()

	if path := a.cfg.Rack; path != "" {
		w, err := rack.Watch(path)
		if err != nil {
			a.log.Warn("rack hot reload disabled", "path", path, "err", err)
		} else {
			defer w.Close()
			go watchRack(w, s, p)
		}
	}

	_, err = p.Run()
	return err
}

// watchRack applies every reloaded rack file to the master chain.
func watchRack(w *rack.Watcher, s *session.Session, p *tea.Program) {
	for {
		select {
		case effects, ok := <-w.Effects:
			if !ok {
				return
			}
			err := s.SetMasterEffects(effects)
			p.Send(rackMsg{effects: len(effects), err: err})
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			p.Send(rackMsg{err: err})
		}
	}
}
