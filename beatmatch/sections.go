package beatmatch

import (
	"fmt"
	"strings"
)

// SectionName labels a song section.
type SectionName string

// Section names produced by the analysis service.
const (
	Intro  SectionName = "Intro"
	Verse  SectionName = "Verse"
	Chorus SectionName = "Chorus"
	Break  SectionName = "Break"
	Outro  SectionName = "Outro"
)

// ParseSectionName matches a section name case-insensitively.
func ParseSectionName(s string) (SectionName, error) {
	for _, n := range []SectionName{Intro, Verse, Chorus, Break, Outro} {
		if strings.EqualFold(string(n), strings.TrimSpace(s)) {
			return n, nil
		}
	}
	return "", fmt.Errorf("beatmatch: unknown section %q", s)
}

// Section is a labelled time range in seconds.
type Section struct {
	Name  SectionName `yaml:"name" json:"name"`
	Start float64     `yaml:"start" json:"start"`
	End   float64     `yaml:"end" json:"end"`
}

// ValidateSections checks start < end and that sections do not overlap when
// taken in order.
func ValidateSections(sections []Section) error {
	for i, s := range sections {
		if !(s.Start < s.End) {
			return fmt.Errorf("%w: section %d (%s) has start %v >= end %v", ErrInvalidGrid, i, s.Name, s.Start, s.End)
		}
		if i > 0 && s.Start < sections[i-1].End {
			return fmt.Errorf("%w: section %d (%s) overlaps %s", ErrInvalidGrid, i, s.Name, sections[i-1].Name)
		}
	}
	return nil
}

// TransitionPoint is a suggested pair of cue times.
type TransitionPoint struct {
	FadeOutStart float64
	FadeInStart  float64
}

// SuggestTransitionPoint prefers fading out at A's outro into B's intro and
// falls back to the end of A's last chorus. ok is false when B has no intro
// or A has neither an outro nor a chorus. timeA is currently unused.
func SuggestTransitionPoint(sectionsA, sectionsB []Section, _ float64) (TransitionPoint, bool) {
	intro, ok := first(sectionsB, Intro)
	if !ok {
		return TransitionPoint{}, false
	}
	if outro, ok := first(sectionsA, Outro); ok {
		return TransitionPoint{FadeOutStart: outro.Start, FadeInStart: intro.Start}, true
	}
	if chorus, ok := last(sectionsA, Chorus); ok {
		return TransitionPoint{FadeOutStart: chorus.End, FadeInStart: intro.Start}, true
	}
	return TransitionPoint{}, false
}

func first(sections []Section, name SectionName) (Section, bool) {
	for _, s := range sections {
		if s.Name == name {
			return s, true
		}
	}
	return Section{}, false
}

func last(sections []Section, name SectionName) (Section, bool) {
	for i := len(sections) - 1; i >= 0; i-- {
		if sections[i].Name == name {
			return sections[i], true
		}
	}
	return Section{}, false
}
