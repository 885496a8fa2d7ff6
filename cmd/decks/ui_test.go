package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/config"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/deck"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/graph"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/session"
)

func newTestModel(t *testing.T) model {
	t.Helper()
	dec := deck.DecoderFunc(func(context.Context, string) (*graph.Buffer, error) {
		return graph.NewBuffer(48000, make([]float64, 48000*10), nil)
	})
	s, err := session.New(config.Default(), session.WithDecoder(dec))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Dispose)
	if err := s.Load(context.Background(), deck.A, "/music/opener.wav"); err != nil {
		t.Fatal(err)
	}
	return newModel(s)
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func TestKeysDriveCommands(t *testing.T) {
	t.Parallel()

	m := newTestModel(t)
	next, _ := m.Update(runes("x"))
	m = next.(model)
	if !m.s.Deck(deck.A).State().IsPlaying {
		t.Fatal("x did not start deck A")
	}
	if m.status != "x" {
		t.Fatalf("status = %q", m.status)
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeySpace})
	m = next.(model)
	if m.s.Deck(deck.A).State().IsPlaying {
		t.Fatal("space did not pause deck A")
	}

	next, _ = m.Update(runes("h"))
	m = next.(model)
	if m.s.Transition().Crossfade() <= 0.5 {
		t.Fatalf("crossfade = %v", m.s.Transition().Crossfade())
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if next.(model).status != "beat lock on" {
		t.Fatalf("status = %q", next.(model).status)
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if cmd == nil {
		t.Fatal("esc returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("esc did not quit")
	}
}

func TestViewShowsDecks(t *testing.T) {
	t.Parallel()

	m := newTestModel(t)
	next, _ := m.Update(loadedMsg{})
	v := next.(model).View()
	for _, want := range []string{"DECK A", "DECK B", "opener.wav", "120.0", "empty", "ready"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q:\n%s", want, v)
		}
	}

	next, _ = m.Update(rackMsg{err: errors.New("bad rack")})
	if v := next.(model).View(); !strings.Contains(v, "bad rack") {
		t.Errorf("view missing rack error:\n%s", v)
	}
}

func TestDrawHelpers(t *testing.T) {
	t.Parallel()

	if got := clock(75.25); got != "1:15.2" && got != "1:15.3" {
		t.Errorf("clock = %q", got)
	}
	if got := fader(0, 5); got != "┃────" {
		t.Errorf("fader(0) = %q", got)
	}
	if got := fader(1, 5); got != "────┃" {
		t.Errorf("fader(1) = %q", got)
	}
	if got := level(0, 4); got != "████" {
		t.Errorf("level(0) = %q", got)
	}
	if got := level(-120, 4); got != "░░░░" {
		t.Errorf("level(-120) = %q", got)
	}
	if got := truncate("abcdef", 4); got != "…def" {
		t.Errorf("truncate = %q", got)
	}
}
