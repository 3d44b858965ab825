package score

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/llehouerou/arpeggio/internal/synth"
	"github.com/llehouerou/arpeggio/internal/tempo"
)

type jsonNote struct {
	Onset    int `json:"onset"`
	Duration int `json:"duration"`
	Pitch    int `json:"pitch"`
	Program  int `json:"program"`
}

type jsonTempoChange struct {
	Tick int     `json:"tick"`
	BPM  float64 `json:"bpm"`
}

type jsonScore struct {
	PPQ             int               `json:"ppq"`
	Tempo           float64           `json:"tempo"`
	BeatsPerMeasure int               `json:"beats_per_measure"`
	BeatUnit        int               `json:"beat_unit"`
	TempoChanges    []jsonTempoChange `json:"tempo_changes"`
	Notes           []jsonNote        `json:"notes"`
}

// LoadJSON reads a JSON note list.
func LoadJSON(path string) (*Score, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw jsonScore
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("score: parse %s: %w", path, err)
	}

	s := &Score{
		PPQ:             raw.PPQ,
		Tempo:           raw.Tempo,
		BeatsPerMeasure: raw.BeatsPerMeasure,
		BeatUnit:        raw.BeatUnit,
	}
	for _, c := range raw.TempoChanges {
		s.TempoChanges = append(s.TempoChanges, tempo.Change{Tick: c.Tick, BPM: c.BPM})
	}
	for _, n := range raw.Notes {
		if n.Duration <= 0 {
			continue
		}
		s.Events = append(s.Events, synth.Event{
			OnsetTick:     n.Onset,
			DurationTicks: n.Duration,
			Pitch:         n.Pitch,
			Program:       n.Program,
		})
	}
	s.normalize()
	return s, nil
}
