package command

import (
	"fmt"
	"math"
	"strconv"

	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/config"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/deck"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/transition"
)

// Target is what the commands act on.
type Target interface {
	Deck(side deck.Side) *deck.Deck
	Transition() *transition.Engine
	// SetPitch changes a deck's pitch and keeps the beat matcher in step.
	SetPitch(side deck.Side, percent float64)
	// SyncTempo matches side's tempo to the other deck.
	SyncTempo(side deck.Side)
	StartTransition() error
	CancelTransition()
}

// deckKeys holds the per-deck key layout.
type deckKeys struct {
	playPause   string
	cue         string
	hotCues     [deck.NumHotCues]string
	jumpBack    string
	jumpForward string
	tempoDown   string
	tempoUp     string
	sync        string
	bendDown    string
	bendUp      string
	loopToggle  string
	loopHalf    string
	loopDouble  string
	loopIn      string
	loopOut     string
	kill        [3]string // low, mid, high
	volDown     string
	volUp       string
}

var layout = [2]deckKeys{
	deck.A: {
		playPause:   "x",
		cue:         "z",
		hotCues:     [deck.NumHotCues]string{"1", "2", "3", "4", "5"},
		jumpBack:    "c",
		jumpForward: "v",
		tempoDown:   "a",
		tempoUp:     "s",
		sync:        "[",
		bendDown:    "q",
		bendUp:      "w",
		loopToggle:  "r",
		loopHalf:    "e",
		loopDouble:  "t",
		loopIn:      "R",
		loopOut:     "T",
		kill:        [3]string{"ctrl+x", "ctrl+d", "ctrl+e"},
		volDown:     "d",
		volUp:       "f",
	},
	deck.B: {
		playPause:   ".",
		cue:         ",",
		hotCues:     [deck.NumHotCues]string{"6", "7", "8", "9", "0"},
		jumpBack:    "n",
		jumpForward: "m",
		tempoDown:   "l",
		tempoUp:     ";",
		sync:        "]",
		bendDown:    "o",
		bendUp:      "p",
		loopToggle:  "u",
		loopHalf:    "y",
		loopDouble:  "i",
		loopIn:      "U",
		loopOut:     "I",
		kill:        [3]string{"ctrl+n", "ctrl+l", "ctrl+o"},
		volDown:     "j",
		volUp:       "k",
	},
}

// Bind registers the full command set against t with the step sizes in c.
func Bind(r *Registry, t Target, c config.Controls) error {
	for _, side := range deck.Sides {
		for _, cmd := range deckCommands(t, side, c) {
			if err := r.Register(cmd); err != nil {
				return err
			}
		}
	}
	for _, cmd := range mixerCommands(t, c) {
		if err := r.Register(cmd); err != nil {
			return err
		}
	}
	return nil
}

func do(fn func()) func() error {
	return func() error {
		fn()
		return nil
	}
}

func deckCommands(t Target, side deck.Side, c config.Controls) []Command {
	k := layout[side]
	s := side.String()
	d := func() *deck.Deck { return t.Deck(side) }
	pitch := func(delta float64) func() error {
		return do(func() { t.SetPitch(side, d().State().PitchPercent+delta) })
	}
	nudge := func(delta float64) func() error {
		return do(func() { d().Seek(d().CurrentTime() + delta) })
	}
	volume := func(delta float64) func() error {
		return do(func() { d().SetVolume(d().State().Volume + delta) })
	}

	cmds := []Command{
		{Name: "playPause" + s, Group: "transport", Help: "play or pause deck " + s, Keys: []string{k.playPause}, Run: do(func() { d().PlayPause() })},
		{Name: "cue" + s, Group: "transport", Help: "set or return to the cue point", Keys: []string{k.cue}, Run: do(func() { d().Cue() })},
		{Name: "stop" + s, Group: "transport", Help: "stop and rewind deck " + s, Run: do(func() { d().Stop() })},
		{Name: "beatJumpBack" + s, Group: "transport", Help: "jump back", Keys: []string{k.jumpBack}, Run: do(func() { d().BeatJump(-c.BeatJump) })},
		{Name: "beatJumpForward" + s, Group: "transport", Help: "jump forward", Keys: []string{k.jumpForward}, Run: do(func() { d().BeatJump(c.BeatJump) })},
		{Name: "tempoDown" + s, Group: "tempo", Help: "lower pitch", Keys: []string{k.tempoDown}, Run: pitch(-c.TempoStep)},
		{Name: "tempoUp" + s, Group: "tempo", Help: "raise pitch", Keys: []string{k.tempoUp}, Run: pitch(c.TempoStep)},
		{Name: "tempoReset" + s, Group: "tempo", Help: "reset pitch to 0", Run: do(func() { t.SetPitch(side, 0) })},
		{Name: "tempoSync" + s, Group: "tempo", Help: "match the other deck's tempo", Keys: []string{k.sync}, Run: do(func() { t.SyncTempo(side) })},
		{Name: "pitchBendDown" + s, Group: "tempo", Help: "nudge back", Keys: []string{k.bendDown}, Run: nudge(-c.Nudge)},
		{Name: "pitchBendUp" + s, Group: "tempo", Help: "nudge forward", Keys: []string{k.bendUp}, Run: nudge(c.Nudge)},
		{Name: "loopToggle" + s, Group: "loop", Help: "loop on or off", Keys: []string{k.loopToggle}, Run: do(func() { d().ToggleLoop() })},
		{Name: "loopHalf" + s, Group: "loop", Help: "halve the loop", Keys: []string{k.loopHalf}, Run: do(func() { d().LoopHalve() })},
		{Name: "loopDouble" + s, Group: "loop", Help: "double the loop", Keys: []string{k.loopDouble}, Run: do(func() { d().LoopDouble() })},
		{Name: "loopIn" + s, Group: "loop", Help: "mark loop start", Keys: []string{k.loopIn}, Run: do(func() { d().SetLoopIn() })},
		{Name: "loopOut" + s, Group: "loop", Help: "mark loop end", Keys: []string{k.loopOut}, Run: do(func() { d().SetLoopOut() })},
		{Name: "autoLoop" + s, Group: "loop", Help: "loop the current bar count", Run: do(func() { d().SetAutoLoop(d().Loop().Bars) })},
		{Name: "volumeDown" + s, Group: "mixer", Help: "lower deck volume", Keys: []string{k.volDown}, Run: volume(-c.VolumeStep)},
		{Name: "volumeUp" + s, Group: "mixer", Help: "raise deck volume", Keys: []string{k.volUp}, Run: volume(c.VolumeStep)},
		{Name: "mute" + s, Group: "mixer", Help: "toggle mute", Run: do(func() { d().ToggleMute() })},
	}
	for i, key := range k.hotCues {
		n := i + 1
		cmds = append(cmds, Command{
			Name:  "hotCue" + strconv.Itoa(n) + s,
			Group: "cue",
			Help:  fmt.Sprintf("jump to hot cue %d, or set it when empty", n),
			Keys:  []string{key},
			Run:   do(func() { hotCue(d(), n) }),
		}, Command{
			Name:  "hotCueClear" + strconv.Itoa(n) + s,
			Group: "cue",
			Help:  fmt.Sprintf("clear hot cue %d", n),
			Run:   do(func() { d().ClearHotCue(n) }),
		})
	}
	for i, b := range []transition.Band{transition.Low, transition.Mid, transition.High} {
		cmds = append(cmds, Command{
			Name:  "eq" + title(b.String()) + "Kill" + s,
			Group: "eq",
			Help:  "toggle the " + b.String() + " kill",
			Keys:  []string{k.kill[i]},
			Run:   do(func() { toggleKill(t.Transition(), side, b) }),
		})
	}
	return cmds
}

func hotCue(d *deck.Deck, n int) {
	if d.HotCues()[n-1].Set {
		d.JumpToHotCue(n)
		return
	}
	d.SetHotCue(n)
}

func toggleKill(e *transition.Engine, side deck.Side, b transition.Band) {
	low, mid, high := e.EQ(side)
	cur := [...]float64{low, mid, high}[b]
	if math.IsInf(cur, -1) {
		e.RestoreEQ(side, b)
		return
	}
	e.KillEQ(side, b)
}

func title(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}

func mixerCommands(t Target, c config.Controls) []Command {
	e := func() *transition.Engine { return t.Transition() }
	fade := func(delta float64) func() error {
		return do(func() { e().SetCrossfade(e().Crossfade() + delta) })
	}
	set := func(v float64) func() error {
		return do(func() { e().SetCrossfade(v) })
	}
	return []Command{
		{Name: "crossfaderLeft", Group: "mixer", Help: "crossfader towards A", Keys: []string{"g"}, Run: fade(-c.CrossfadeStep)},
		{Name: "crossfaderRight", Group: "mixer", Help: "crossfader towards B", Keys: []string{"h"}, Run: fade(c.CrossfadeStep)},
		{Name: "crossfaderCutLeft", Group: "mixer", Help: "crossfader fully to A", Keys: []string{"F"}, Run: set(0)},
		{Name: "crossfaderCutRight", Group: "mixer", Help: "crossfader fully to B", Keys: []string{"J"}, Run: set(1)},
		{Name: "crossfaderCenter", Group: "mixer", Help: "center the crossfader", Keys: []string{"B"}, Run: set(transition.CenterFade)},
		{Name: "playPauseAll", Group: "transport", Help: "play or pause both decks", Keys: []string{" "}, Run: do(func() {
			for _, side := range deck.Sides {
				t.Deck(side).PlayPause()
			}
		})},
		{Name: "transition", Group: "transition", Help: "run the configured transition", Keys: []string{"enter"}, Run: t.StartTransition},
		{Name: "cancelTransition", Group: "transition", Help: "cancel the running transition", Keys: []string{"backspace"}, Run: do(t.CancelTransition)},
	}
}
