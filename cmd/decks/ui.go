package main

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/deck"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/session"
)

// refresh is the redraw interval.
const refresh = time.Second / 30

const (
	meterBands = 16
	meterFloor = -60.0
)

var (
	accent = lipgloss.Color("#22c55e")
	muted  = lipgloss.Color("#888888")
	alert  = lipgloss.Color("#ef4444")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	keyStyle   = lipgloss.NewStyle().Foreground(muted)
	errStyle   = lipgloss.NewStyle().Bold(true).Foreground(alert)
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(muted).
			Padding(0, 1).
			Width(38)
)

type (
	tickMsg   time.Time
	loadedMsg struct{ err error }
	stemsMsg  struct{ err error }
	rackMsg   struct {
		effects int
		err     error
	}
)

// model is the console UI. All engine state is read from the session on
// every redraw.
type model struct {
	s      *session.Session
	status string
	err    error
}

func newModel(s *session.Session) model {
	return model{s: s, status: "loading"}
}

func tick() tea.Cmd {
	return tea.Tick(refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Init() tea.Cmd { return tick() }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.key(msg.String())
	case tickMsg:
		return m, tick()
	case loadedMsg:
		m.err = msg.err
		m.status = "ready"
	case rackMsg:
		m.err = msg.err
		if msg.err == nil {
			m.status = fmt.Sprintf("master rack reloaded (%d effects)", msg.effects)
		}
	case stemsMsg:
		m.err = msg.err
		if msg.err == nil {
			m.status = "stems ready"
		}
	}
	return m, nil
}

func (m model) key(k string) (tea.Model, tea.Cmd) {
	switch k {
	case "ctrl+c", "esc":
		return m, tea.Quit
	case "tab":
		if m.s.ToggleBeatLock() {
			m.status = "beat lock on"
		} else {
			m.status = "beat lock off"
		}
		return m, nil
	case "ctrl+s":
		m.status = "separating stems"
		s := m.s
		return m, func() tea.Msg { return stemsMsg{err: s.SeparateAll(context.Background())} }
	}
	handled, err := m.s.Commands().HandleKey(k)
	m.err = err
	if handled && err == nil {
		m.status = k
	}
	return m, nil
}

func (m model) View() string {
	decks := lipgloss.JoinHorizontal(lipgloss.Top,
		m.deckView(deck.A), " ", m.deckView(deck.B))

	var b strings.Builder
	b.WriteString(titleStyle.Render("DECKS"))
	b.WriteString("\n\n")
	b.WriteString(decks)
	b.WriteString("\n")
	b.WriteString(m.mixView())
	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(errStyle.Render("error: " + m.err.Error()))
	} else {
		b.WriteString(keyStyle.Render(m.status))
	}
	b.WriteString("\n")
	b.WriteString(keyStyle.Render("space play all · enter transition · tab beat lock · ctrl+s stems · esc quit"))
	return b.String()
}

func (m model) deckView(side deck.Side) string {
	d := m.s.Deck(side)
	st := d.State()

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", titleStyle.Render("DECK "+side.String()))
	if !st.IsLoaded {
		b.WriteString(keyStyle.Render("empty"))
		return panelStyle.Render(b.String())
	}
	fmt.Fprintf(&b, "%s\n", truncate(st.Source, 34))
	fmt.Fprintf(&b, "%s / %s  %s\n", clock(st.CurrentTime), clock(st.Duration), transport(st))
	fmt.Fprintf(&b, "%s %.1f  %s %+.1f%%\n", keyStyle.Render("bpm"), st.BPM, keyStyle.Render("pitch"), st.PitchPercent)
	vol := fmt.Sprintf("%.0f%%", st.Volume*100)
	if st.IsMuted {
		vol = errStyle.Render("muted")
	}
	fmt.Fprintf(&b, "%s %s  %s %s\n", keyStyle.Render("vol"), vol, keyStyle.Render("cue"), clock(d.CuePoint()))

	loop := d.Loop()
	switch {
	case loop.IsActive:
		fmt.Fprintf(&b, "%s %s-%s\n", titleStyle.Render("loop"), clock(loop.Start), clock(loop.End))
	default:
		fmt.Fprintf(&b, "%s %g bars\n", keyStyle.Render("loop"), loop.Bars)
	}

	for _, c := range d.HotCues() {
		label := fmt.Sprintf("%d", c.Index)
		if c.Set {
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(c.Color)).Render(label))
		} else {
			b.WriteString(keyStyle.Render(label))
		}
		b.WriteString(" ")
	}
	return panelStyle.Render(b.String())
}

func (m model) mixView() string {
	e := m.s.Transition()
	ms := m.s.Matcher().State()

	var b strings.Builder
	fmt.Fprintf(&b, "A %s B\n", fader(e.Crossfade(), 30))

	sync, lock := "off", "off"
	if ms.TempoSync {
		sync = "on"
	}
	if ms.BeatLock {
		lock = "on"
	}
	fmt.Fprintf(&b, "%s %s  %s %s  %s %+.0fms\n",
		keyStyle.Render("sync"), sync, keyStyle.Render("lock"), lock,
		keyStyle.Render("phase"), m.s.PhaseDifference())

	if run := e.Current(); run.Active() {
		fmt.Fprintf(&b, "%s %s %3.0f%%\n", titleStyle.Render("transition"),
			run.Settings().Type, run.Progress()*100)
	}

	rms, peak := m.s.MasterLevel()
	fmt.Fprintf(&b, "%s %s %5.1f dB (peak %5.1f)\n", keyStyle.Render("master"), level(rms, 20), rms, peak)
	if bands, err := m.s.MasterBands(meterBands); err == nil {
		b.WriteString(spectrum(bands))
	}
	return b.String()
}

func transport(st deck.State) string {
	switch {
	case st.IsPlaying:
		return titleStyle.Render("▶")
	case st.IsPaused:
		return keyStyle.Render("Ⅱ")
	default:
		return keyStyle.Render("■")
	}
}

func clock(sec float64) string {
	if sec < 0 || math.IsNaN(sec) {
		sec = 0
	}
	m := int(sec) / 60
	return fmt.Sprintf("%d:%04.1f", m, sec-float64(m*60))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return "…" + string(r[len(r)-n+1:])
}

// fader draws the crossfader position in [0, 1].
func fader(pos float64, width int) string {
	i := int(math.Round(pos * float64(width-1)))
	i = max(0, min(i, width-1))
	return strings.Repeat("─", i) + "┃" + strings.Repeat("─", width-1-i)
}

// level draws a dB value between meterFloor and 0.
func level(db float64, width int) string {
	n := int(float64(width) * (db - meterFloor) / -meterFloor)
	n = max(0, min(n, width))
	return strings.Repeat("█", n) + strings.Repeat("░", width-n)
}

var bars = []rune(" ▁▂▃▄▅▆▇█")

func spectrum(bands []float64) string {
	out := make([]rune, len(bands))
	for i, db := range bands {
		k := int(float64(len(bars)-1) * (db - meterFloor) / -meterFloor)
		out[i] = bars[max(0, min(k, len(bars)-1))]
	}
	return string(out)
}
