// Package score ingests note material for the preview engine from JSON note
// lists and Standard MIDI Files. It is a thin adapter, not a full import
// pipeline: anything beyond notes, tempo and meter is ignored.
package score

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/llehouerou/arpeggio/internal/synth"
	"github.com/llehouerou/arpeggio/internal/tempo"
)

// Score is everything the preview controller needs from a piece.
type Score struct {
	Events          []synth.Event
	PPQ             int
	Tempo           float64
	TempoChanges    []tempo.Change
	BeatsPerMeasure int
	BeatUnit        int
}

// Load picks the parser from the file extension.
func Load(path string) (*Score, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return LoadJSON(path)
	case ".mid", ".midi", ".smf":
		return LoadSMF(path)
	default:
		return nil, fmt.Errorf("score: unsupported file type %q", filepath.Ext(path))
	}
}

// DurationTick returns the largest event end tick.
func (s *Score) DurationTick() int {
	duration := 0
	for _, ev := range s.Events {
		if end := ev.OnsetTick + ev.DurationTicks; end > duration {
			duration = end
		}
	}
	return duration
}

func (s *Score) normalize() {
	if s.PPQ < 1 {
		s.PPQ = 480
	}
	if s.Tempo <= 0 {
		s.Tempo = tempo.First(s.TempoChanges, 120)
	}
	if s.BeatsPerMeasure <= 0 {
		s.BeatsPerMeasure = 4
	}
	if s.BeatUnit <= 0 {
		s.BeatUnit = 4
	}
	sort.SliceStable(s.Events, func(i, j int) bool {
		if s.Events[i].OnsetTick != s.Events[j].OnsetTick {
			return s.Events[i].OnsetTick < s.Events[j].OnsetTick
		}
		return s.Events[i].Pitch < s.Events[j].Pitch
	})
}
