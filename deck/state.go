package deck

import "math"

// Deck limits and defaults.
const (
	MaxPitch      = 8.0
	DefaultBPM    = 120.0
	DefaultVolume = 0.8
	DefaultBars   = 4
	NumHotCues    = 5
	BeatsPerBar   = 4
)

// State is a snapshot of a deck's transport.
type State struct {
	IsLoaded     bool
	IsPlaying    bool
	IsPaused     bool
	CurrentTime  float64
	Duration     float64
	BPM          float64
	OriginalBPM  float64
	PitchPercent float64
	Volume       float64
	IsMuted      bool
	Source       string
}

func initialState() State {
	return State{BPM: DefaultBPM, OriginalBPM: DefaultBPM, Volume: DefaultVolume}
}

// HotCueColors are the default colours of cues 1 to 5.
var HotCueColors = [NumHotCues]string{"#ef4444", "#f97316", "#eab308", "#22c55e", "#3b82f6"}

// HotCue is a stored cue point. Set is false while the cue is empty.
type HotCue struct {
	Index int
	Time  float64
	Set   bool
	Color string
}

func defaultCues() [NumHotCues]HotCue {
	var cues [NumHotCues]HotCue
	for i := range cues {
		cues[i] = HotCue{Index: i + 1, Color: HotCueColors[i]}
	}
	return cues
}

// Loop is the loop region. HasStart and HasEnd mark which bounds are set;
// End > Start whenever both are set and IsActive implies both.
type Loop struct {
	IsActive bool
	Start    float64
	End      float64
	HasStart bool
	HasEnd   bool
	Bars     float64
}

func defaultLoop() Loop { return Loop{Bars: DefaultBars} }

func (l Loop) bounded() bool { return l.HasStart && l.HasEnd }

// bpmFor returns the tempo at pitch p rounded to one decimal.
func bpmFor(original, pitch float64) float64 {
	return math.Round(original*(1+pitch/100)*10) / 10
}
