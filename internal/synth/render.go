package synth

import (
	"encoding/binary"
	"math"

	"go.uber.org/zap"

	"github.com/llehouerou/arpeggio/internal/tempo"
)

// MetronomeSettings describes the click overlay mixed into a render.
type MetronomeSettings struct {
	Enabled         bool
	BeatsPerMeasure int
	BeatUnit        int
}

// RenderConfig carries the fixed parameters of one render pass.
type RenderConfig struct {
	SampleRate int
	Amplitude  float64
	ChunkSize  int
	Metronome  MetronomeSettings
}

const (
	// tailSeconds of silence appended after the final note so releases are
	// not clipped by the end of the buffer.
	tailSeconds = 0.5

	clickSeconds    = 0.08
	clickDecayRatio = 0.8
	accentClickHz   = 1760.0
	weakClickHz     = 1320.0
	accentClickAmp  = 1.0
	weakClickAmp    = 0.6
)

// RenderEvents mixes the given events into a peak-normalized little-endian
// 16-bit mono PCM buffer. Tempo changes (normalized, defaulting to a single
// change at tempoBPM) drive a tempo map used both for sample placement and
// for picking the locally correct cached note segments. When progress is
// non-nil it receives monotonically non-decreasing fractions ending at 1.
// A mix whose peak is ~0 yields a zero-length buffer.
func (e *Engine) RenderEvents(
	events []Event,
	tempoBPM float64,
	ppq int,
	cfg RenderConfig,
	progress func(float64),
	changes []tempo.Change,
) ([]byte, *tempo.Map, error) {
	quarters := max(1, ppq)
	if len(changes) == 0 {
		changes = []tempo.Change{{Tick: 0, BPM: tempoBPM}}
	}
	tm, err := tempo.NewMap(quarters, changes)
	if err != nil {
		return nil, nil, err
	}

	if len(events) == 0 {
		if progress != nil {
			progress(1.0)
		}
		return nil, tm, nil
	}

	sampleRate := cfg.SampleRate
	maxTick := 0
	for _, ev := range events {
		if end := ev.OnsetTick + ev.DurationTicks; end > maxTick {
			maxTick = end
		}
	}
	totalSeconds := tm.SecondsAt(maxTick)
	sampleCount := max(1, int(math.Ceil(totalSeconds*float64(sampleRate)))+
		int(float64(sampleRate)*tailSeconds))
	mix := make([]float64, sampleCount)

	chunkSize := max(1, cfg.ChunkSize)

	totalWork := 0
	if progress != nil {
		for _, ev := range events {
			if MIDIToFrequency(ev.Pitch) <= 0 {
				continue
			}
			start := tm.TickToSample(ev.OnsetTick, sampleRate)
			if start >= sampleCount {
				continue
			}
			duration := max(1, ev.DurationTicks)
			seconds := tm.DurationBetween(ev.OnsetTick, ev.OnsetTick+duration)
			estimated := max(1, int(math.Round(seconds*float64(sampleRate))))
			limit := min(estimated, sampleCount-max(0, start))
			if limit > 0 {
				totalWork += limit
			}
		}
		if cfg.Metronome.Enabled {
			totalWork += estimateMetronomeSamples(tm, sampleCount, cfg.Metronome, quarters, sampleRate)
		}
	}

	completed := 0
	report := func(units int) {
		if progress == nil || totalWork <= 0 || units <= 0 {
			return
		}
		completed = min(totalWork, completed+units)
		progress(math.Min(1.0, float64(completed)/float64(totalWork)))
	}

	if progress != nil && totalWork > 0 {
		progress(0.0)
	}

	for _, ev := range events {
		if MIDIToFrequency(ev.Pitch) <= 0 {
			continue
		}
		start := tm.TickToSample(ev.OnsetTick, sampleRate)
		if start >= sampleCount {
			continue
		}
		segment := e.NoteSegment(
			ev.Program, ev.Pitch, ev.DurationTicks,
			localTempoKey(tm, ev, quarters), quarters, sampleRate,
		)
		if len(segment) == 0 {
			continue
		}
		base := max(0, start)
		limit := min(len(segment), sampleCount-base)
		if limit <= 0 {
			continue
		}
		for processed := 0; processed < limit; {
			step := limit - processed
			if progress != nil && totalWork > 0 {
				step = min(step, chunkSize)
			}
			for i := 0; i < step; i++ {
				mix[base+processed+i] += segment[processed+i]
			}
			processed += step
			report(step)
		}
	}

	if cfg.Metronome.Enabled {
		overlayMetronome(mix, tm, cfg.Metronome, quarters, sampleRate, report)
	}

	if progress != nil && totalWork > 0 && completed < totalWork {
		report(totalWork - completed)
	}

	peak := 0.0
	for _, v := range mix {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	if peak <= 1e-9 {
		e.log.Debug("render produced silence", zap.Int("events", len(events)))
		return nil, tm, nil
	}

	scale := (cfg.Amplitude * 32767.0) / peak
	pcm := make([]byte, len(mix)*2)
	for i, v := range mix {
		sample := math.Round(v * scale)
		if sample > 32767 {
			sample = 32767
		} else if sample < -32767 {
			sample = -32767
		}
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(sample)))
	}
	return pcm, tm, nil
}

// localTempoKey derives the bpm-equivalent tempo in effect over a note's
// span, so variable-tempo renders pick segments of the right length.
func localTempoKey(tm *tempo.Map, ev Event, ppq int) int {
	duration := max(1, ev.DurationTicks)
	seconds := tm.DurationBetween(ev.OnsetTick, ev.OnsetTick+duration)
	if seconds <= 0 {
		return TempoKey(tm.TempoAt(ev.OnsetTick))
	}
	ticksPerSecond := float64(duration) / seconds
	return TempoKey(ticksPerSecond * 60.0 / float64(ppq))
}

func beatLengthTicks(ppq, beatUnit int) int {
	return int(math.Round(float64(ppq*4) / float64(max(1, beatUnit))))
}

func overlayMetronome(
	mix []float64,
	tm *tempo.Map,
	settings MetronomeSettings,
	ppq, sampleRate int,
	report func(int),
) {
	beatTicks := beatLengthTicks(ppq, settings.BeatUnit)
	if beatTicks <= 0 {
		return
	}
	sampleCount := len(mix)
	clickSamples := max(1, int(float64(sampleRate)*clickSeconds))
	decay := max(1, int(float64(clickSamples)*clickDecayRatio))
	beatsPerMeasure := max(1, settings.BeatsPerMeasure)

	for beat := 0; ; beat++ {
		start := tm.TickToSample(beat*beatTicks, sampleRate)
		if start >= sampleCount {
			break
		}
		end := min(sampleCount, start+clickSamples)
		if end <= start {
			break
		}
		frequency, amplitude := weakClickHz, weakClickAmp
		if beat%beatsPerMeasure == 0 {
			frequency, amplitude = accentClickHz, accentClickAmp
		}
		phase := 0.0
		phaseStep := 2 * math.Pi * frequency / float64(sampleRate)
		for i := start; i < end; i++ {
			step := i - start
			envelope := 0.0
			if step < decay {
				envelope = 1.0 - float64(step)/float64(decay)
			}
			mix[i] += math.Sin(phase) * amplitude * envelope
			phase += phaseStep
		}
		if report != nil {
			report(end - start)
		}
	}
}

func estimateMetronomeSamples(
	tm *tempo.Map,
	sampleCount int,
	settings MetronomeSettings,
	ppq, sampleRate int,
) int {
	beatTicks := beatLengthTicks(ppq, settings.BeatUnit)
	if beatTicks <= 0 {
		return 0
	}
	clickSamples := max(1, int(float64(sampleRate)*clickSeconds))
	total := 0
	for beat := 0; ; beat++ {
		start := tm.TickToSample(beat*beatTicks, sampleRate)
		if start >= sampleCount {
			break
		}
		end := min(sampleCount, start+clickSamples)
		if end <= start {
			break
		}
		total += end - start
	}
	return total
}
