package score

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/llehouerou/arpeggio/internal/synth"
	"github.com/llehouerou/arpeggio/internal/tempo"
)

type noteKey struct {
	channel uint8
	key     uint8
}

type openNote struct {
	onset   int64
	program int
}

// LoadSMF reads a Standard MIDI File. Note-on/off pairs become events carrying
// the channel's program at onset time; tempo changes and the first time
// signature are picked up from the meta tracks.
func LoadSMF(path string) (*Score, error) {
	data, err := smf.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("score: read %s: %w", path, err)
	}

	ppq := 960
	if mt, ok := data.TimeFormat.(smf.MetricTicks); ok {
		ppq = int(mt.Resolution())
	}
	s := &Score{PPQ: ppq}

	for _, tc := range data.TempoChanges() {
		s.TempoChanges = append(s.TempoChanges, tempo.Change{
			Tick: int(tc.AbsTicks),
			BPM:  tc.BPM,
		})
	}

	for _, track := range data.Tracks {
		var abs int64
		programs := make(map[uint8]uint8)
		open := make(map[noteKey]openNote)

		for _, ev := range track {
			abs += int64(ev.Delta)
			msg := ev.Message

			var ch, key, vel uint8
			switch {
			case msg.GetNoteStart(&ch, &key, &vel):
				open[noteKey{ch, key}] = openNote{onset: abs, program: int(programs[ch])}
			case msg.GetNoteEnd(&ch, &key):
				k := noteKey{ch, key}
				note, ok := open[k]
				if !ok {
					continue
				}
				delete(open, k)
				duration := int(abs - note.onset)
				if duration <= 0 {
					duration = 1
				}
				s.Events = append(s.Events, synth.Event{
					OnsetTick:     int(note.onset),
					DurationTicks: duration,
					Pitch:         int(key),
					Program:       note.program,
				})
			default:
				var prog uint8
				if msg.GetProgramChange(&ch, &prog) {
					programs[ch] = prog
					continue
				}
				var num, denom uint8
				if msg.GetMetaMeter(&num, &denom) && s.BeatsPerMeasure == 0 {
					s.BeatsPerMeasure = int(num)
					s.BeatUnit = int(denom)
				}
			}
		}
	}

	s.normalize()
	return s, nil
}
